package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tunga/taskpay/common"
	"github.com/tunga/taskpay/db/models"
	"github.com/tunga/taskpay/rabbitmq"
	"github.com/uptrace/bun"
)

// StartDistributionRoutine sweeps the paid but undistributed tasks, right away and then every interval.
func (svc *PayoutService) StartDistributionRoutine(ctx context.Context) (err error) {
	return svc.every(ctx, time.Duration(svc.Config.DistributionInterval)*time.Second, func(ctx context.Context) error {
		return svc.DistributePendingTasks(ctx)
	})
}

func (svc *PayoutService) StartReconciliationRoutine(ctx context.Context) (err error) {
	return svc.every(ctx, time.Duration(svc.Config.ReconciliationInterval)*time.Second, func(ctx context.Context) error {
		result, err := svc.ReconcileProcessingLegs(ctx)
		if err != nil {
			return err
		}
		svc.Logger.Infof("Reconciled legs: %d checked, %d completed, %d pending again", result.Checked, result.Completed, result.Reverted)
		return nil
	})
}

func (svc *PayoutService) every(ctx context.Context, interval time.Duration, sweep func(context.Context) error) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := sweep(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			svc.captureErr(err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (svc *PayoutService) StartTaskEventRoutine(ctx context.Context, client rabbitmq.Client) (err error) {
	err = client.SubscribeToTaskEvents(ctx, svc)
	if err != nil && err != context.Canceled {
		// in case of an error in this routine, we want to restart the worker
		return err
	}
	return nil
}

// HandleTaskEvent runs the job a task event asks for.
func (svc *PayoutService) HandleTaskEvent(ctx context.Context, event *rabbitmq.TaskEvent) error {
	switch event.Type {
	case common.TaskEventPaid, common.TaskEventPaymentReceived:
		_, err := svc.DistributeTaskPayment(ctx, event.TaskID)
		return err
	case common.TaskEventPaymentConfirmed:
		return svc.confirmPayment(ctx, event)
	case common.TaskEventInvoiceCreated:
		_, err := svc.AssignInvoiceNumber(ctx, event.InvoiceID)
		return err
	case common.EventTypeTaskApproved, common.EventTypeApplicationResponded,
		common.EventTypeInvitationAccepted, common.EventTypeProgressReported:
		return svc.relayLifecycleEvent(ctx, event)
	}
	return fmt.Errorf("unsupported task event %q", event.Type)
}

// relayLifecycleEvent passes a task lifecycle transition on to the notification subscribers.
func (svc *PayoutService) relayLifecycleEvent(ctx context.Context, event *rabbitmq.TaskEvent) error {
	text := event.Text
	if text == "" {
		task, err := svc.Store.GetTask(ctx, event.TaskID)
		if err != nil {
			return fmt.Errorf("loading task %d: %w", event.TaskID, err)
		}
		text = lifecycleText(event.Type, task.Summary())
	}
	svc.Notify(Event{
		Type:   event.Type,
		TaskID: event.TaskID,
		UserID: event.UserID,
		Text:   text,
	})
	return nil
}

// confirmPayment records an inbound payment, marks its task paid and distributes it.
// A replayed confirmation finds the recorded payment and only distributes.
func (svc *PayoutService) confirmPayment(ctx context.Context, event *rabbitmq.TaskEvent) error {
	confirmation := event.Payment
	if !confirmation.BTCReceived.IsPositive() {
		return fmt.Errorf("payment %s of task %d: received amount %s is not positive", confirmation.Ref, event.TaskID, confirmation.BTCReceived)
	}
	receivedAt := confirmation.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	payment, created, err := svc.Store.RecordTaskPayment(ctx, &models.TaskPayment{
		TaskID:      event.TaskID,
		BTCAddress:  confirmation.BTCAddress,
		Ref:         confirmation.Ref,
		BTCPrice:    confirmation.BTCPrice,
		BTCReceived: confirmation.BTCReceived,
		ReceivedAt:  bun.NullTime{Time: receivedAt},
	})
	if err != nil {
		return fmt.Errorf("recording payment %s of task %d: %w", confirmation.Ref, event.TaskID, err)
	}
	if payment.TaskID != event.TaskID {
		return fmt.Errorf("payment %s is recorded for task %d, not %d", confirmation.Ref, payment.TaskID, event.TaskID)
	}
	if created {
		svc.Logger.Infof("Recorded payment %d of %s BTC for task %d", payment.ID, payment.BTCReceived.String(), event.TaskID)
	}
	if err := svc.Store.MarkTaskPaid(ctx, event.TaskID, receivedAt); err != nil {
		return fmt.Errorf("marking task %d paid: %w", event.TaskID, err)
	}
	_, err = svc.DistributeTaskPayment(ctx, event.TaskID)
	return err
}

// SubscribeToNotifications feeds the events of the pubsub to the rabbitmq publisher.
func (svc *PayoutService) SubscribeToNotifications() (<-chan rabbitmq.Notification, func(), error) {
	if svc.EventPubSub == nil {
		return nil, nil, errors.New("no event pubsub configured")
	}
	events := make(chan Event, 64)
	subId := svc.EventPubSub.Subscribe(AllEvents, events)
	notifications := make(chan rabbitmq.Notification)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case notifications <- rabbitmq.Notification{Type: event.Type, Payload: event}:
				case <-done:
					return
				}
			}
		}
	}()
	unsubscribe := func() {
		close(done)
		svc.EventPubSub.Unsubscribe(subId, AllEvents)
	}
	return notifications, unsubscribe, nil
}
