package service

import (
	"context"
	"time"

	"github.com/tunga/taskpay/db/models"
)

// Store is the persistence the payout core needs. Lookups of a single row
// return common.ErrNotFound when the row does not exist.
type Store interface {
	GetTask(ctx context.Context, taskID int64) (*models.Task, error)
	ListPaidUndistributedTaskIDs(ctx context.Context) ([]int64, error)
	// MarkTaskPaid sets paid and paid_at once, later calls keep the first paid_at.
	MarkTaskPaid(ctx context.Context, taskID int64, paidAt time.Time) error
	MarkTaskDistributed(ctx context.Context, taskID int64) error
	ListAcceptedParticipations(ctx context.Context, taskID int64) ([]models.Participation, error)
	ListWorkActivities(ctx context.Context, taskID int64) ([]models.WorkActivity, error)

	// RecordTaskPayment inserts the payment unless one with the same address and ref exists.
	RecordTaskPayment(ctx context.Context, payment *models.TaskPayment) (*models.TaskPayment, bool, error)
	// ListReceivedPayments returns the payments of the task that have been received, processed or not.
	ListReceivedPayments(ctx context.Context, taskID int64) ([]models.TaskPayment, error)
	MarkPaymentProcessed(ctx context.Context, paymentID int64) error
	// ReopenPayment clears the processed flag of the payment and the pay_distributed flag of its task.
	ReopenPayment(ctx context.Context, paymentID int64) error

	GetParticipantPayment(ctx context.Context, participantID, sourceID int64) (*models.ParticipantPayment, error)
	// GetOrCreateParticipantPayment returns the stored leg of the pair and whether this call created it.
	GetOrCreateParticipantPayment(ctx context.Context, leg *models.ParticipantPayment) (*models.ParticipantPayment, bool, error)
	UpdateParticipantPayment(ctx context.Context, leg *models.ParticipantPayment) error
	ListProcessingParticipantPayments(ctx context.Context) ([]models.ParticipantPayment, error)

	GetInvoice(ctx context.Context, invoiceID int64) (*models.TaskInvoice, error)
	InsertInvoice(ctx context.Context, invoice *models.TaskInvoice) error
	GetOrCreateClientNumber(ctx context.Context, userID int64) (*models.ClientNumber, error)
	// SetInvoiceNumber stores the number only if the invoice has none yet and reports whether it did.
	SetInvoiceNumber(ctx context.Context, invoiceID int64, number string) (bool, error)

	GetUserProfile(ctx context.Context, userID int64) (*models.UserProfile, error)
	UpdateBTCWallet(ctx context.Context, wallet *models.BTCWallet) error
}
