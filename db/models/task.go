package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tunga/taskpay/common"
	"github.com/tunga/taskpay/lib"
	"github.com/uptrace/bun"
)

var percent = decimal.NewFromFloat(0.01)

// Task : Task Model
type Task struct {
	ID                 int64               `json:"id" bun:",pk,autoincrement"`
	UserID             int64               `json:"user_id" bun:",notnull"`
	Title              string              `json:"title" bun:",nullzero"`
	Description        string              `json:"description" bun:",nullzero"`
	Scope              string              `json:"scope" bun:",notnull,default:'task'"`
	PMID               int64               `json:"pm_id" bun:"pm_id,nullzero"`
	Fee                decimal.NullDecimal `json:"fee" bun:"type:numeric"`
	Bid                decimal.NullDecimal `json:"bid" bun:"type:numeric"`
	Currency           string              `json:"currency" bun:",notnull,default:'EUR'"`
	PaymentMethod      string              `json:"payment_method" bun:",nullzero"`
	DevRate            decimal.Decimal     `json:"dev_rate" bun:"type:numeric,notnull"`
	PMRate             decimal.Decimal     `json:"pm_rate" bun:"pm_rate,type:numeric,notnull"`
	PMTimePercentage   decimal.Decimal     `json:"pm_time_percentage" bun:"pm_time_percentage,type:numeric,notnull"`
	TungaPercentageDev decimal.Decimal     `json:"tunga_percentage_dev" bun:"type:numeric,notnull"`
	TungaPercentagePM  decimal.Decimal     `json:"tunga_percentage_pm" bun:"tunga_percentage_pm,type:numeric,notnull"`
	Paid               bool                `json:"paid" bun:",notnull,default:false"`
	PaidAt             bun.NullTime        `json:"paid_at"`
	PayDistributed     bool                `json:"pay_distributed" bun:",notnull,default:false"`
	CreatedAt          time.Time           `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt          bun.NullTime        `json:"updated_at"`
}

func (t *Task) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		t.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

// Pay is the amount the client pays for the task, the accepted bid wins over the posted fee.
func (t *Task) Pay() decimal.Decimal {
	if t.Bid.Valid && !t.Bid.Decimal.IsZero() {
		return t.Bid.Decimal
	}
	if t.Fee.Valid {
		return t.Fee.Decimal
	}
	return decimal.Zero
}

func (t *Task) TungaRatioDev() decimal.Decimal {
	return t.TungaPercentageDev.Mul(percent)
}

func (t *Task) TungaRatioPM() decimal.Decimal {
	return t.TungaPercentagePM.Mul(percent)
}

func (t *Task) PMTimeRatio() decimal.Decimal {
	return t.PMTimePercentage.Mul(percent)
}

func (t *Task) IsProject() bool {
	return t.Scope != common.TaskScopeTask
}

// HasPMComponent reports whether part of the fee is billed for project management.
func (t *Task) HasPMComponent() bool {
	return t.IsProject() && t.PMID != 0
}

func (t *Task) Number() string {
	return lib.SerializedID(uint64(t.ID))
}

func (t *Task) Summary() string {
	if t.Title != "" {
		return t.Title
	}
	words := strings.Fields(t.Description)
	if len(words) > 10 {
		return strings.Join(words[:10], " ") + " ..."
	}
	if len(words) > 0 {
		return strings.Join(words, " ")
	}
	kind := "Task"
	if t.IsProject() {
		kind = "Project"
	}
	return fmt.Sprintf("%s #%d", kind, t.ID)
}

var _ bun.BeforeAppendModelHook = (*Task)(nil)
