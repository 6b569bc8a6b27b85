package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participation : one accepted (or invited) developer on a task
type Participation struct {
	ID          int64               `json:"id" bun:",pk,autoincrement"`
	TaskID      int64               `json:"task_id" bun:",notnull"`
	Task        *Task               `json:"-" bun:"rel:belongs-to,join:task_id=id"`
	UserID      int64               `json:"user_id" bun:",notnull"`
	DisplayName string              `json:"display_name" bun:",nullzero"`
	Accepted    bool                `json:"accepted" bun:",notnull,default:false"`
	Share       decimal.NullDecimal `json:"share" bun:"type:numeric"`
	Paid        bool                `json:"paid" bun:",notnull,default:false"`
	CreatedAt   time.Time           `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}

// Weight is the raw share weight, a missing share counts as zero.
func (p *Participation) Weight() decimal.Decimal {
	if !p.Share.Valid || p.Share.Decimal.IsNegative() {
		return decimal.Zero
	}
	return p.Share.Decimal
}
