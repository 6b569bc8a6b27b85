package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tunga/taskpay/common"
	"github.com/tunga/taskpay/db/models"
)

var (
	one     = decimal.NewFromInt(1)
	percent = decimal.NewFromFloat(0.01)
)

// Rates are the platform percentages that apply to a fee.
type Rates struct {
	TungaPercentageDev decimal.Decimal
	TungaPercentagePM  decimal.Decimal
	PMTimePercentage   decimal.Decimal
	// PMBillable is set when part of the fee pays for project management
	PMBillable bool
}

type FeeRequest struct {
	Fee           decimal.Decimal
	Currency      string
	PaymentMethod string
	Rates         Rates
	// Share scales the fee to the slice of one participant, null means the whole fee
	Share decimal.NullDecimal
}

// Breakdown is a rendered fee split, every amount is rounded to 2 decimals.
type Breakdown struct {
	Currency       string          `json:"currency"`
	CurrencySymbol string          `json:"currency_symbol"`
	Share          decimal.Decimal `json:"share"`
	Pledge         decimal.Decimal `json:"pledge"`
	Portion        decimal.Decimal `json:"portion"`
	Developer      decimal.Decimal `json:"developer"`
	PM             decimal.Decimal `json:"pm"`
	Platform       decimal.Decimal `json:"tunga"`
	Processing     decimal.Decimal `json:"processing"`
	Total          decimal.Decimal `json:"total"`
	TotalDeveloper decimal.Decimal `json:"total_dev"`
	TotalPM        decimal.Decimal `json:"total_pm"`
}

type InvalidFeeError struct {
	Fee decimal.Decimal
}

func (e *InvalidFeeError) Error() string {
	return fmt.Sprintf("invalid fee %s: must not be negative", e.Fee.String())
}

func (e *InvalidFeeError) Unwrap() error {
	return common.ErrInvalidFee
}

type FeeSplitter struct {
	// ProcessingRates maps a task payment method to its cost in percent
	ProcessingRates RateMap
}

func NewFeeSplitter(rates RateMap) *FeeSplitter {
	return &FeeSplitter{ProcessingRates: rates}
}

// ProcessingRate is the cost of the payment method as a fraction.
func (fs *FeeSplitter) ProcessingRate(method string) decimal.Decimal {
	rate, ok := fs.ProcessingRates[method]
	if !ok {
		return decimal.Zero
	}
	return rate.Mul(percent)
}

func (fs *FeeSplitter) Split(req FeeRequest) (*Breakdown, error) {
	if req.Fee.IsNegative() {
		return nil, &InvalidFeeError{Fee: req.Fee}
	}
	share := one
	if req.Share.Valid {
		share = req.Share.Decimal
	}
	breakdown := &Breakdown{
		Currency:       req.Currency,
		CurrencySymbol: common.CurrencySymbols[req.Currency],
		Share:          share,
	}
	if req.Fee.IsZero() {
		return breakdown, nil
	}

	processingRate := fs.ProcessingRate(req.PaymentMethod)
	portion := req.Fee.Mul(share)
	pmPortion := decimal.Zero
	if req.Rates.PMBillable {
		pmPortion = portion.Mul(req.Rates.PMTimePercentage.Mul(percent))
	}
	devPortion := portion.Sub(pmPortion)

	developer := devPortion.Mul(one.Sub(req.Rates.TungaPercentageDev.Mul(percent)))
	pm := pmPortion.Mul(one.Sub(req.Rates.TungaPercentagePM.Mul(percent)))
	processing := portion.Mul(processingRate)

	// the platform amount and the total are derived from the rounded parts
	// so the rendered breakdown adds up
	breakdown.Pledge = round(req.Fee)
	breakdown.Portion = round(portion)
	breakdown.Developer = round(developer)
	breakdown.PM = round(pm)
	breakdown.Platform = breakdown.Portion.Sub(breakdown.Developer.Add(breakdown.PM))
	breakdown.Processing = round(processing)
	breakdown.Total = breakdown.Portion.Add(breakdown.Processing)
	breakdown.TotalDeveloper = round(devPortion.Add(devPortion.Mul(processingRate)))
	breakdown.TotalPM = round(pmPortion.Add(pmPortion.Mul(processingRate)))
	return breakdown, nil
}

// round is half up for the non negative amounts a breakdown holds
func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func (svc *PayoutService) FeeSplitter() *FeeSplitter {
	return NewFeeSplitter(svc.Config.ProcessingRates())
}

// TaskAmount previews the split of the current task fee.
func (svc *PayoutService) TaskAmount(task *models.Task) (*Breakdown, error) {
	return svc.FeeSplitter().Split(FeeRequest{
		Fee:           task.Pay(),
		Currency:      task.Currency,
		PaymentMethod: task.PaymentMethod,
		Rates: Rates{
			TungaPercentageDev: task.TungaPercentageDev,
			TungaPercentagePM:  task.TungaPercentagePM,
			PMTimePercentage:   task.PMTimePercentage,
			PMBillable:         task.HasPMComponent(),
		},
	})
}

// InvoiceAmount splits the frozen fee of an invoice, optionally scaled by a share.
func (svc *PayoutService) InvoiceAmount(invoice *models.TaskInvoice, share decimal.NullDecimal) (*Breakdown, error) {
	return svc.FeeSplitter().Split(FeeRequest{
		Fee:           invoice.Fee,
		Currency:      invoice.Currency,
		PaymentMethod: invoice.PaymentMethod,
		Rates: Rates{
			TungaPercentageDev: invoice.TungaPercentageDev,
			TungaPercentagePM:  invoice.TungaPercentagePM,
			PMTimePercentage:   invoice.PMTimePercentage,
			PMBillable:         invoice.PMBillable,
		},
		Share: share,
	})
}

// ParticipantInvoiceAmount is the slice of an invoice belonging to one participation.
func (svc *PayoutService) ParticipantInvoiceAmount(ctx context.Context, invoice *models.TaskInvoice, participationID int64) (*Breakdown, error) {
	shares, err := svc.ComputeTaskShares(ctx, invoice.TaskID)
	if err != nil {
		return nil, err
	}
	return svc.InvoiceAmount(invoice, decimal.NewNullDecimal(shares.Share(participationID)))
}
