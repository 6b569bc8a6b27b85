package service

import (
	"context"
	"fmt"
	"time"

	"github.com/tunga/taskpay/common"
	"github.com/uptrace/bun"
)

type ReconciliationResult struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Reverted  int `json:"reverted"`
}

// ReconcileProcessingLegs follows up on transfers the provider accepted.
// Settled transfers complete their leg. A transfer that ended in a terminal
// failure puts its leg back to pending, keeping its idempotency key, and
// reopens its payment and task so the next distribution run resubmits it.
func (svc *PayoutService) ReconcileProcessingLegs(ctx context.Context) (*ReconciliationResult, error) {
	legs, err := svc.Store.ListProcessingParticipantPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processing legs: %w", err)
	}
	svc.Logger.Infof("Found %d processing legs", len(legs))

	result := &ReconciliationResult{}
	for i := range legs {
		leg := &legs[i]
		if leg.Ref == "" {
			continue
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Checked++
		tx, err := svc.Coinbase.GetTransaction(ctx, leg.Ref)
		if err != nil {
			svc.captureErr(fmt.Errorf("fetching transaction %s of leg %d: %w", leg.Ref, leg.ID, err))
			continue
		}
		switch {
		case tx.Completed():
			leg.Status = common.PaymentStatusCompleted
			leg.BTCReceived = tx.Amount.Amount.Abs()
			leg.ReceivedAt = bun.NullTime{Time: time.Now()}
			leg.ErrorMessage = ""
		case tx.Failed():
			// reopen the source payment first, a leg left processing is checked again next run
			if err := svc.Store.ReopenPayment(ctx, leg.SourceID); err != nil {
				svc.captureErr(fmt.Errorf("reopening payment %d of leg %d: %w", leg.SourceID, leg.ID, err))
				continue
			}
			leg.Status = common.PaymentStatusPending
			leg.ErrorMessage = (&ProviderTransferError{LegID: leg.ID, Status: tx.Status}).Error()
		default:
			continue
		}
		if err := svc.Store.UpdateParticipantPayment(ctx, leg); err != nil {
			svc.captureErr(fmt.Errorf("updating leg %d: %w", leg.ID, err))
			continue
		}
		if leg.Status == common.PaymentStatusCompleted {
			result.Completed++
		} else {
			svc.Logger.Warnf("Transfer %s of leg %d ended with status %s, leg is pending again", leg.Ref, leg.ID, tx.Status)
			result.Reverted++
		}
	}
	return result, nil
}
