package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tunga/taskpay/db/models"
)

// ParticipantShare is the normalized claim of one participation on the developer pool.
type ParticipantShare struct {
	Participation models.Participation
	Share         decimal.Decimal
}

type ShareMap struct {
	Shares          []ParticipantShare
	ByParticipation map[int64]ParticipantShare
}

func (sm ShareMap) Len() int {
	return len(sm.Shares)
}

// Share returns zero for participations that are not part of the map.
func (sm ShareMap) Share(participationID int64) decimal.Decimal {
	ps, ok := sm.ByParticipation[participationID]
	if !ok {
		return decimal.Zero
	}
	return ps.Share
}

func (sm ShareMap) Total() decimal.Decimal {
	total := decimal.Zero
	for _, ps := range sm.Shares {
		total = total.Add(ps.Share)
	}
	return total
}

// ComputeShares normalizes the weights of the accepted participations so they sum to 1.
// When no weights are set every participant gets an equal split.
func ComputeShares(participations []models.Participation) ShareMap {
	accepted := make([]models.Participation, 0, len(participations))
	for _, p := range participations {
		if p.Accepted {
			accepted = append(accepted, p)
		}
	}
	sort.SliceStable(accepted, func(i, j int) bool {
		wi, wj := accepted[i].Weight(), accepted[j].Weight()
		if !wi.Equal(wj) {
			return wi.GreaterThan(wj)
		}
		return accepted[i].ID < accepted[j].ID
	})

	result := ShareMap{
		Shares:          make([]ParticipantShare, 0, len(accepted)),
		ByParticipation: make(map[int64]ParticipantShare, len(accepted)),
	}
	if len(accepted) == 0 {
		return result
	}

	total := decimal.Zero
	for _, p := range accepted {
		total = total.Add(p.Weight())
	}
	equal := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(accepted))))
	for _, p := range accepted {
		share := equal
		if !total.IsZero() {
			share = p.Weight().Div(total)
		}
		ps := ParticipantShare{Participation: p, Share: share}
		result.Shares = append(result.Shares, ps)
		result.ByParticipation[p.ID] = ps
	}
	return result
}

// PaymentShares scales every share by the developer side of the fee,
// what remains of an inbound payment after the platform cut.
func PaymentShares(shares ShareMap, task *models.Task) ShareMap {
	net := decimal.NewFromInt(1).Sub(task.TungaRatioDev())
	result := ShareMap{
		Shares:          make([]ParticipantShare, 0, shares.Len()),
		ByParticipation: make(map[int64]ParticipantShare, shares.Len()),
	}
	for _, ps := range shares.Shares {
		scaled := ParticipantShare{Participation: ps.Participation, Share: ps.Share.Mul(net)}
		result.Shares = append(result.Shares, scaled)
		result.ByParticipation[ps.Participation.ID] = scaled
	}
	return result
}

func (svc *PayoutService) ComputeTaskShares(ctx context.Context, taskID int64) (ShareMap, error) {
	participations, err := svc.Store.ListAcceptedParticipations(ctx, taskID)
	if err != nil {
		return ShareMap{}, fmt.Errorf("loading participations of task %d: %w", taskID, err)
	}
	return ComputeShares(participations), nil
}

// ParticipationPaymentShare is the part of every inbound payment owed to one participation.
func (svc *PayoutService) ParticipationPaymentShare(ctx context.Context, task *models.Task, participationID int64) (decimal.Decimal, error) {
	shares, err := svc.ComputeTaskShares(ctx, task.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return svc.payoutShares(shares, task).Share(participationID), nil
}

func (svc *PayoutService) payoutShares(shares ShareMap, task *models.Task) ShareMap {
	if svc.Config.PayoutNetOfPlatformFee {
		return PaymentShares(shares, task)
	}
	return shares
}
