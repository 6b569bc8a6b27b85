package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// TaskPayment : an inbound on-chain payment towards the fee of a task
type TaskPayment struct {
	ID          int64           `json:"id" bun:",pk,autoincrement"`
	TaskID      int64           `json:"task_id" bun:",notnull"`
	Task        *Task           `json:"-" bun:"rel:belongs-to,join:task_id=id"`
	BTCAddress  string          `json:"btc_address" bun:"btc_address,notnull,unique:address_ref"`
	Ref         string          `json:"ref" bun:",notnull,unique:address_ref"`
	BTCPrice    decimal.Decimal `json:"btc_price" bun:"btc_price,type:numeric,notnull"`
	BTCReceived decimal.Decimal `json:"btc_received" bun:"btc_received,type:numeric,notnull"`
	Processed   bool            `json:"processed" bun:",notnull,default:false"`
	ReceivedAt  bun.NullTime    `json:"received_at"`
	CreatedAt   time.Time       `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt   bun.NullTime    `json:"updated_at"`
}

func (p *TaskPayment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		p.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*TaskPayment)(nil)
