package service

import (
	"fmt"
	"time"

	"github.com/tunga/taskpay/common"
)

// Event is a lifecycle notification, emitted fire and forget.
type Event struct {
	Type      string    `json:"type"`
	TaskID    int64     `json:"task_id,omitempty"`
	InvoiceID int64     `json:"invoice_id,omitempty"`
	UserID    int64     `json:"user_id,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (svc *PayoutService) Notify(event Event) {
	if svc.EventPubSub == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if dropped := svc.EventPubSub.Publish(event.Type, event); dropped > 0 {
		svc.Logger.Warnf("Dropped %s event for %d subscriber(s)", event.Type, dropped)
	}
}

func payoutDistributedEvent(taskID int64, summary string) Event {
	return Event{
		Type:   common.EventTypePayoutDistributed,
		TaskID: taskID,
		Text:   fmt.Sprintf("Payout distributed for %s", summary),
	}
}

func invoiceNumberedEvent(invoiceID, taskID int64, number string) Event {
	return Event{
		Type:      common.EventTypeInvoiceNumbered,
		TaskID:    taskID,
		InvoiceID: invoiceID,
		Text:      fmt.Sprintf("Invoice %s issued", number),
	}
}

func lifecycleText(eventType, summary string) string {
	switch eventType {
	case common.EventTypeTaskApproved:
		return fmt.Sprintf("Task approved: %s", summary)
	case common.EventTypeApplicationResponded:
		return fmt.Sprintf("Application responded for %s", summary)
	case common.EventTypeInvitationAccepted:
		return fmt.Sprintf("Invitation accepted for %s", summary)
	case common.EventTypeProgressReported:
		return fmt.Sprintf("Progress reported for %s", summary)
	}
	return summary
}
