package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// TaskInvoice : a frozen snapshot of the fee of a task for billing.
// The platform rates are copied from the task when the invoice is created
// so later task edits don't change issued invoices.
type TaskInvoice struct {
	ID                 int64           `json:"id" bun:",pk,autoincrement"`
	TaskID             int64           `json:"task_id" bun:",notnull" validate:"required"`
	Task               *Task           `json:"-" bun:"rel:belongs-to,join:task_id=id"`
	ClientID           int64           `json:"client_id" bun:",notnull" validate:"required"`
	DeveloperID        int64           `json:"developer_id" bun:",nullzero"`
	Title              string          `json:"title" bun:",notnull" validate:"required,max=200"`
	Fee                decimal.Decimal `json:"fee" bun:"type:numeric,notnull"`
	Currency           string          `json:"currency" bun:",notnull" validate:"required,oneof=BTC EUR USD UGX TZS NGN"`
	PaymentMethod      string          `json:"payment_method" bun:",notnull" validate:"required,oneof=bitonic bitcoin bank"`
	BTCAddress         string          `json:"btc_address" bun:"btc_address,nullzero"`
	BTCPrice           decimal.Decimal `json:"btc_price" bun:"btc_price,type:numeric,notnull"`
	TungaPercentageDev decimal.Decimal `json:"tunga_percentage_dev" bun:"type:numeric,notnull"`
	TungaPercentagePM  decimal.Decimal `json:"tunga_percentage_pm" bun:"tunga_percentage_pm,type:numeric,notnull"`
	PMTimePercentage   decimal.Decimal `json:"pm_time_percentage" bun:"pm_time_percentage,type:numeric,notnull"`
	PMBillable         bool            `json:"pm_billable" bun:"pm_billable,notnull,default:false"`
	Number             string          `json:"number" bun:",nullzero"`
	CreatedAt          time.Time       `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt          bun.NullTime    `json:"updated_at"`
}

func (i *TaskInvoice) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		i.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*TaskInvoice)(nil)
