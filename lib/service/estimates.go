package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tunga/taskpay/db/models"
)

type FeeDetails struct {
	DevHours decimal.Decimal `json:"dev_hours"`
	DevFee   decimal.Decimal `json:"dev_fee"`
	PMHours  decimal.Decimal `json:"pm_hours"`
	PMFee    decimal.Decimal `json:"pm_fee"`
	Hours    decimal.Decimal `json:"hours"`
	Fee      decimal.Decimal `json:"fee"`
}

// EstimateFee prices the hours of an estimate. Project management time is
// billed on top of the development hours as a percentage of them.
func EstimateFee(hours []decimal.Decimal, devRate, pmRate, pmTimePercentage decimal.Decimal) FeeDetails {
	devHours := decimal.Zero
	for _, h := range hours {
		devHours = devHours.Add(h)
	}
	pmHours := devHours.Mul(pmTimePercentage.Mul(percent))
	devFee := devHours.Mul(devRate)
	pmFee := pmHours.Mul(pmRate)
	return FeeDetails{
		DevHours: devHours,
		DevFee:   round(devFee),
		PMHours:  pmHours,
		PMFee:    round(pmFee),
		Hours:    devHours.Add(pmHours),
		Fee:      round(devFee.Add(pmFee)),
	}
}

func (svc *PayoutService) EstimateTaskFee(ctx context.Context, task *models.Task) (*FeeDetails, error) {
	activities, err := svc.Store.ListWorkActivities(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("loading work activities of task %d: %w", task.ID, err)
	}
	hours := make([]decimal.Decimal, 0, len(activities))
	for _, activity := range activities {
		hours = append(hours, activity.Hours)
	}
	details := EstimateFee(hours, task.DevRate, task.PMRate, task.PMTimePercentage)
	return &details, nil
}
