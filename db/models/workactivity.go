package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WorkActivity : a line of an estimate or quote
type WorkActivity struct {
	ID         int64           `bun:",pk,autoincrement"`
	TaskID     int64           `bun:",notnull"`
	EstimateID int64           `bun:",nullzero"`
	Title      string          `bun:",nullzero"`
	Hours      decimal.Decimal `bun:"type:numeric,notnull"`
	CreatedAt  time.Time       `bun:",nullzero,notnull,default:current_timestamp"`
}
