package models

import (
	"time"

	"github.com/tunga/taskpay/lib"
)

// ClientNumber : sequence table for client numbers, the row id is the sequence value
type ClientNumber struct {
	ID        int64     `bun:",pk,autoincrement"`
	UserID    int64     `bun:",notnull,unique"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (c *ClientNumber) Number() string {
	return lib.SerializedID(uint64(c.ID))
}
