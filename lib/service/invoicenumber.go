package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/tunga/taskpay/db/models"
	"github.com/tunga/taskpay/lib"
)

var validate = validator.New()

const maxInvoiceTitle = 200

// FormatInvoiceNumber is client code, issue month, invoice id and task code, e.g. A000520231123A0007.
func FormatInvoiceNumber(client *models.ClientNumber, invoice *models.TaskInvoice) string {
	return fmt.Sprintf("%s%s%02d%s", client.Number(), invoice.CreatedAt.Format("200601"), invoice.ID, lib.SerializedID(uint64(invoice.TaskID)))
}

// AssignInvoiceNumber gives the invoice its number. An invoice keeps the first
// number it was given, calling this again returns it unchanged.
func (svc *PayoutService) AssignInvoiceNumber(ctx context.Context, invoiceID int64) (*models.TaskInvoice, error) {
	invoice, err := svc.Store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("loading invoice %d: %w", invoiceID, err)
	}
	if invoice.Number != "" {
		return invoice, nil
	}

	client, err := svc.Store.GetOrCreateClientNumber(ctx, invoice.ClientID)
	if err != nil {
		return nil, fmt.Errorf("getting client number of user %d: %w", invoice.ClientID, err)
	}
	number := FormatInvoiceNumber(client, invoice)
	updated, err := svc.Store.SetInvoiceNumber(ctx, invoice.ID, number)
	if err != nil {
		return nil, fmt.Errorf("storing number of invoice %d: %w", invoice.ID, err)
	}
	if !updated {
		// numbered concurrently, the stored number wins
		return svc.Store.GetInvoice(ctx, invoiceID)
	}
	invoice.Number = number
	svc.Logger.Infof("Invoice %d numbered %s", invoice.ID, number)
	svc.Notify(invoiceNumberedEvent(invoice.ID, invoice.TaskID, number))
	return invoice, nil
}

// CreateInvoice freezes the current fee and platform rates of the task into a new invoice and numbers it.
func (svc *PayoutService) CreateInvoice(ctx context.Context, task *models.Task, clientID, developerID int64) (*models.TaskInvoice, error) {
	title := []rune(task.Summary())
	if len(title) > maxInvoiceTitle {
		title = title[:maxInvoiceTitle]
	}
	invoice := &models.TaskInvoice{
		TaskID:             task.ID,
		ClientID:           clientID,
		DeveloperID:        developerID,
		Title:              string(title),
		Fee:                task.Pay(),
		Currency:           task.Currency,
		PaymentMethod:      task.PaymentMethod,
		TungaPercentageDev: task.TungaPercentageDev,
		TungaPercentagePM:  task.TungaPercentagePM,
		PMTimePercentage:   task.PMTimePercentage,
		PMBillable:         task.HasPMComponent(),
	}
	if err := validate.StructCtx(ctx, invoice); err != nil {
		return nil, fmt.Errorf("invalid invoice for task %d: %w", task.ID, err)
	}
	if err := svc.Store.InsertInvoice(ctx, invoice); err != nil {
		return nil, fmt.Errorf("inserting invoice for task %d: %w", task.ID, err)
	}
	return svc.AssignInvoiceNumber(ctx, invoice.ID)
}
