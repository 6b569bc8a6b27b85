package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tunga/taskpay/coinbase"
	"github.com/tunga/taskpay/common"
	"github.com/tunga/taskpay/db/models"
	"golang.org/x/sync/errgroup"
)

// DistributionResult summarizes one distribution run of a task.
type DistributionResult struct {
	TaskID             int64 `json:"task_id"`
	PaymentsConsidered int   `json:"payments_considered"`
	PaymentsProcessed  int   `json:"payments_processed"`
	LegsCreated        int   `json:"legs_created"`
	LegsSubmitted      int   `json:"legs_submitted"`
	LegsAdvanced       int   `json:"legs_advanced"`
	LegsSkipped        int   `json:"legs_skipped"`
	LegsFailed         int   `json:"legs_failed"`
	Distributed        bool  `json:"distributed"`
}

// ProviderTransferError is a transfer that raised or ended in a terminal status.
type ProviderTransferError struct {
	LegID  int64
	Status string
	Err    error
}

func (e *ProviderTransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transfer of leg %d failed: %v", e.LegID, e.Err)
	}
	return fmt.Sprintf("transfer of leg %d ended with status %s", e.LegID, e.Status)
}

func (e *ProviderTransferError) Unwrap() []error {
	if e.Err == nil {
		return []error{common.ErrProviderTransfer}
	}
	return []error{common.ErrProviderTransfer, e.Err}
}

// FormatBTC renders an amount the way the provider expects it.
func FormatBTC(amount decimal.Decimal) string {
	return amount.RoundBank(6).StringFixed(6)
}

// DistributeTaskPayment pays every accepted participant their share of every
// received payment of a paid task. It is safe to call repeatedly: a leg that
// the provider accepted is never submitted again, and a pending leg is
// retried with the idempotency key it got when it was created.
func (svc *PayoutService) DistributeTaskPayment(ctx context.Context, taskID int64) (*DistributionResult, error) {
	v, err, _ := svc.distributions.Do(strconv.FormatInt(taskID, 10), func() (interface{}, error) {
		return svc.distributeTaskPayment(ctx, taskID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*DistributionResult), nil
}

func (svc *PayoutService) distributeTaskPayment(ctx context.Context, taskID int64) (*DistributionResult, error) {
	task, err := svc.Store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task %d: %w", taskID, err)
	}
	result := &DistributionResult{TaskID: taskID, Distributed: task.PayDistributed}
	if !task.Paid || task.PayDistributed {
		return result, nil
	}

	shares, err := svc.ComputeTaskShares(ctx, taskID)
	if err != nil {
		return nil, err
	}
	payouts := svc.payoutShares(shares, task)

	payments, err := svc.Store.ListReceivedPayments(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("loading payments of task %d: %w", taskID, err)
	}

	allProcessed := len(payments) > 0
	for i := range payments {
		payment := &payments[i]
		if payment.Processed {
			continue
		}
		result.PaymentsConsidered++
		if !svc.distributePayment(ctx, task, payment, payouts, result) {
			allProcessed = false
			continue
		}
		if err := svc.Store.MarkPaymentProcessed(ctx, payment.ID); err != nil {
			svc.captureErr(fmt.Errorf("marking payment %d of task %d processed: %w", payment.ID, taskID, err))
			allProcessed = false
			continue
		}
		result.PaymentsProcessed++
	}

	if !allProcessed {
		svc.Logger.Infof("Task %d distribution incomplete: %d of %d payments processed, %d legs skipped", taskID, result.PaymentsProcessed, result.PaymentsConsidered, result.LegsSkipped)
		return result, nil
	}
	if err := svc.Store.MarkTaskDistributed(ctx, taskID); err != nil {
		return result, fmt.Errorf("marking task %d distributed: %w", taskID, err)
	}
	result.Distributed = true
	svc.Logger.Infof("Task %d payment distributed", taskID)
	svc.Notify(payoutDistributedEvent(taskID, task.Summary()))
	return result, nil
}

// distributePayment reports whether the leg of every share has advanced.
func (svc *PayoutService) distributePayment(ctx context.Context, task *models.Task, payment *models.TaskPayment, payouts ShareMap, result *DistributionResult) bool {
	if payouts.Len() == 0 {
		return false
	}
	advanced := true
	// one failing leg must not keep the others from being paid
	for _, ps := range payouts.Shares {
		if ps.Share.Mul(payment.BTCReceived).RoundBank(6).IsZero() {
			// nothing to send for a zero weight next to weighted participants
			continue
		}
		if !svc.distributeLeg(ctx, task, payment, ps, result) {
			advanced = false
		}
	}
	return advanced
}

func (svc *PayoutService) distributeLeg(ctx context.Context, task *models.Task, payment *models.TaskPayment, ps ParticipantShare, result *DistributionResult) bool {
	participation := ps.Participation
	leg, err := svc.Store.GetParticipantPayment(ctx, participation.ID, payment.ID)
	switch {
	case err == nil:
		if leg.Advanced() {
			result.LegsAdvanced++
			return true
		}
		if !leg.Submittable() {
			result.LegsSkipped++
			return false
		}
	case errors.Is(err, common.ErrNotFound):
		leg = nil
	default:
		svc.captureErr(fmt.Errorf("loading leg of participation %d for payment %d: %w", participation.ID, payment.ID, err))
		result.LegsSkipped++
		return false
	}

	destination := ""
	if leg != nil {
		destination = leg.Destination
	}
	if destination == "" {
		destination, err = svc.Resolver.ResolveDestination(ctx, participation.UserID)
		if errors.Is(err, common.ErrUnresolvedDestination) {
			svc.Logger.Infof("No payout destination for user %d on task %d: %v", participation.UserID, task.ID, err)
			result.LegsSkipped++
			return false
		}
		if err != nil {
			svc.captureErr(fmt.Errorf("resolving destination of user %d: %w", participation.UserID, err))
			result.LegsSkipped++
			return false
		}
	}

	if leg == nil {
		var created bool
		leg, created, err = svc.Store.GetOrCreateParticipantPayment(ctx, &models.ParticipantPayment{
			ParticipantID: participation.ID,
			SourceID:      payment.ID,
			Destination:   destination,
			IdemKey:       uuid.NewString(),
			Status:        common.PaymentStatusPending,
			Description:   legDescription(task, &participation),
		})
		if errors.Is(err, common.ErrPersistenceConflict) {
			leg, err = svc.Store.GetParticipantPayment(ctx, participation.ID, payment.ID)
		}
		if err != nil {
			svc.captureErr(fmt.Errorf("creating leg of participation %d for payment %d: %w", participation.ID, payment.ID, err))
			result.LegsSkipped++
			return false
		}
		if created {
			result.LegsCreated++
		}
		// another run may have won the race and advanced the leg already
		if leg.Advanced() {
			result.LegsAdvanced++
			return true
		}
		if !leg.Submittable() {
			result.LegsSkipped++
			return false
		}
	}
	if leg.Destination == "" {
		leg.Destination = destination
	}
	if leg.Description == "" {
		leg.Description = legDescription(task, &participation)
	}
	return svc.submitTransfer(ctx, leg, ps.Share.Mul(payment.BTCReceived), result)
}

func (svc *PayoutService) submitTransfer(ctx context.Context, leg *models.ParticipantPayment, amount decimal.Decimal, result *DistributionResult) bool {
	result.LegsSubmitted++
	leg.Attempts++
	tx, err := svc.Coinbase.SendMoney(ctx, &coinbase.SendMoneyRequest{
		To:          leg.Destination,
		Amount:      FormatBTC(amount),
		Currency:    common.CurrencyBTC,
		Description: leg.Description,
		Idem:        leg.IdemKey,
	})
	if err != nil {
		err = &ProviderTransferError{LegID: leg.ID, Err: err}
	} else if tx.Failed() {
		err = &ProviderTransferError{LegID: leg.ID, Status: tx.Status}
	}

	if err != nil {
		leg.ErrorMessage = err.Error()
		maxAttempts := svc.Config.MaxTransferAttempts
		if maxAttempts > 0 && leg.Attempts >= maxAttempts {
			leg.Status = common.PaymentStatusFailed
			result.LegsFailed++
			svc.captureErr(fmt.Errorf("giving up on leg %d after %d attempts: %w", leg.ID, leg.Attempts, err))
		} else {
			svc.Logger.Errorf("Leg %d stays pending: %v", leg.ID, err)
		}
		if uerr := svc.Store.UpdateParticipantPayment(ctx, leg); uerr != nil {
			svc.captureErr(fmt.Errorf("updating leg %d: %w", leg.ID, uerr))
		}
		return false
	}

	leg.Ref = tx.ID
	leg.BTCSent = decimal.NewNullDecimal(tx.Amount.Amount.Abs())
	leg.Status = common.PaymentStatusProcessing
	leg.ErrorMessage = ""
	if err := svc.Store.UpdateParticipantPayment(ctx, leg); err != nil {
		// the leg is still pending in storage, the next run resubmits it with the same key
		svc.captureErr(fmt.Errorf("updating leg %d after transfer %s: %w", leg.ID, tx.ID, err))
		return false
	}
	result.LegsAdvanced++
	return true
}

func legDescription(task *models.Task, participation *models.Participation) string {
	name := participation.DisplayName
	if name == "" {
		name = fmt.Sprintf("user #%d", participation.UserID)
	}
	return fmt.Sprintf("%s - %s", task.Summary(), name)
}

// DistributePendingTasks runs the distribution of every paid task that is not distributed yet.
func (svc *PayoutService) DistributePendingTasks(ctx context.Context) error {
	taskIDs, err := svc.Store.ListPaidUndistributedTaskIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing undistributed tasks: %w", err)
	}
	svc.Logger.Infof("Found %d undistributed paid tasks", len(taskIDs))

	concurrency := svc.Config.DistributionConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, taskID := range taskIDs {
		taskID := taskID
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			result, err := svc.DistributeTaskPayment(gctx, taskID)
			if err != nil {
				svc.captureErr(fmt.Errorf("distributing task %d: %w", taskID, err))
				return nil
			}
			svc.Logger.Infof("Task %d: %d legs advanced, %d skipped, distributed: %t", taskID, result.LegsAdvanced, result.LegsSkipped, result.Distributed)
			return nil
		})
	}
	return g.Wait()
}
