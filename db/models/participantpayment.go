package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tunga/taskpay/common"
	"github.com/uptrace/bun"
)

// ParticipantPayment : one payout leg, the share of a TaskPayment sent to one Participation
type ParticipantPayment struct {
	ID            int64               `json:"id" bun:",pk,autoincrement"`
	ParticipantID int64               `json:"participant_id" bun:",notnull,unique:participant_source"`
	Participant   *Participation      `json:"-" bun:"rel:belongs-to,join:participant_id=id"`
	SourceID      int64               `json:"source_id" bun:",notnull,unique:participant_source"`
	Source        *TaskPayment        `json:"-" bun:"rel:belongs-to,join:source_id=id"`
	Destination   string              `json:"destination" bun:",nullzero"`
	IdemKey       string              `json:"idem_key" bun:",notnull,unique"`
	Ref           string              `json:"ref" bun:",nullzero"`
	BTCSent       decimal.NullDecimal `json:"btc_sent" bun:"btc_sent,type:numeric"`
	BTCReceived   decimal.Decimal     `json:"btc_received" bun:"btc_received,type:numeric,notnull"`
	Status        string              `json:"status" bun:",notnull,default:'pending'"`
	Attempts      int                 `json:"attempts" bun:",notnull,default:0"`
	Description   string              `json:"description" bun:",nullzero"`
	ErrorMessage  string              `json:"error_message,omitempty" bun:",nullzero"`
	CreatedAt     time.Time           `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt     bun.NullTime        `json:"updated_at"`
	ReceivedAt    bun.NullTime        `json:"received_at"`
}

func (p *ParticipantPayment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		p.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

// Advanced reports whether a transfer for this leg was accepted by the provider.
func (p *ParticipantPayment) Advanced() bool {
	return p.Status == common.PaymentStatusProcessing || p.Status == common.PaymentStatusCompleted
}

// Submittable reports whether the leg may (re)submit its transfer.
func (p *ParticipantPayment) Submittable() bool {
	return p.Status == common.PaymentStatusPending
}

var _ bun.BeforeAppendModelHook = (*ParticipantPayment)(nil)
