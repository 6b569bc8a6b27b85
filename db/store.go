package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tunga/taskpay/common"
	"github.com/tunga/taskpay/db/models"
	"github.com/tunga/taskpay/lib/service"
	"github.com/uptrace/bun"
)

// Store persists the payout state with bun, on postgres or sqlite.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

var _ service.Store = (*Store)(nil)

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	return err
}

// affected maps an update that touched no row to common.ErrNotFound.
func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	task := &models.Task{}
	if err := s.db.NewSelect().Model(task).Where("id = ?", taskID).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

func (s *Store) ListPaidUndistributedTaskIDs(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	err := s.db.NewSelect().
		Model((*models.Task)(nil)).
		Column("id").
		Where("paid = ?", true).
		Where("pay_distributed = ?", false).
		Order("id ASC").
		Scan(ctx, &ids)
	return ids, err
}

func (s *Store) MarkTaskPaid(ctx context.Context, taskID int64, paidAt time.Time) error {
	return affected(s.db.NewUpdate().
		Model((*models.Task)(nil)).
		Set("paid = ?", true).
		Set("paid_at = COALESCE(paid_at, ?)", paidAt).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", taskID).
		Exec(ctx))
}

func (s *Store) MarkTaskDistributed(ctx context.Context, taskID int64) error {
	return affected(s.db.NewUpdate().
		Model((*models.Task)(nil)).
		Set("pay_distributed = ?", true).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", taskID).
		Exec(ctx))
}

func (s *Store) ListAcceptedParticipations(ctx context.Context, taskID int64) ([]models.Participation, error) {
	participations := []models.Participation{}
	err := s.db.NewSelect().
		Model(&participations).
		Where("task_id = ?", taskID).
		Where("accepted = ?", true).
		Order("id ASC").
		Scan(ctx)
	return participations, err
}

func (s *Store) ListWorkActivities(ctx context.Context, taskID int64) ([]models.WorkActivity, error) {
	activities := []models.WorkActivity{}
	err := s.db.NewSelect().Model(&activities).Where("task_id = ?", taskID).Order("id ASC").Scan(ctx)
	return activities, err
}

// insertIgnore inserts the model unless it violates a unique constraint and reports whether a row was written.
func (s *Store) insertIgnore(ctx context.Context, model interface{}) (bool, error) {
	res, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) RecordTaskPayment(ctx context.Context, payment *models.TaskPayment) (*models.TaskPayment, bool, error) {
	created, err := s.insertIgnore(ctx, payment)
	if err != nil {
		return nil, false, err
	}
	stored := &models.TaskPayment{}
	err = s.db.NewSelect().
		Model(stored).
		Where("btc_address = ?", payment.BTCAddress).
		Where("ref = ?", payment.Ref).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, false, notFound(err)
	}
	return stored, created, nil
}

func (s *Store) ListReceivedPayments(ctx context.Context, taskID int64) ([]models.TaskPayment, error) {
	payments := []models.TaskPayment{}
	err := s.db.NewSelect().
		Model(&payments).
		Where("task_id = ?", taskID).
		Where("received_at IS NOT NULL").
		Order("id ASC").
		Scan(ctx)
	return payments, err
}

func (s *Store) MarkPaymentProcessed(ctx context.Context, paymentID int64) error {
	return affected(s.db.NewUpdate().
		Model((*models.TaskPayment)(nil)).
		Set("processed = ?", true).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", paymentID).
		Exec(ctx))
}

// ReopenPayment marks the payment unprocessed and its task undistributed so
// the next distribution run picks the payment up again.
func (s *Store) ReopenPayment(ctx context.Context, paymentID int64) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		payment := &models.TaskPayment{}
		if err := tx.NewSelect().Model(payment).Where("id = ?", paymentID).Limit(1).Scan(ctx); err != nil {
			return notFound(err)
		}
		_, err := tx.NewUpdate().
			Model((*models.TaskPayment)(nil)).
			Set("processed = ?", false).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", paymentID).
			Exec(ctx)
		if err != nil {
			return err
		}
		return affected(tx.NewUpdate().
			Model((*models.Task)(nil)).
			Set("pay_distributed = ?", false).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", payment.TaskID).
			Exec(ctx))
	})
}

func (s *Store) GetParticipantPayment(ctx context.Context, participantID, sourceID int64) (*models.ParticipantPayment, error) {
	leg := &models.ParticipantPayment{}
	err := s.db.NewSelect().
		Model(leg).
		Where("participant_id = ?", participantID).
		Where("source_id = ?", sourceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return leg, nil
}

// GetOrCreateParticipantPayment relies on the unique (participant_id, source_id)
// constraint, concurrent callers all get the one stored leg.
func (s *Store) GetOrCreateParticipantPayment(ctx context.Context, leg *models.ParticipantPayment) (*models.ParticipantPayment, bool, error) {
	created, err := s.insertIgnore(ctx, leg)
	if err != nil {
		return nil, false, err
	}
	stored, err := s.GetParticipantPayment(ctx, leg.ParticipantID, leg.SourceID)
	if errors.Is(err, common.ErrNotFound) {
		// the insert hit another unique constraint, the idempotency key
		return nil, false, common.ErrPersistenceConflict
	}
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (s *Store) UpdateParticipantPayment(ctx context.Context, leg *models.ParticipantPayment) error {
	return affected(s.db.NewUpdate().
		Model(leg).
		ExcludeColumn("id", "participant_id", "source_id", "idem_key", "created_at").
		WherePK().
		Exec(ctx))
}

func (s *Store) ListProcessingParticipantPayments(ctx context.Context) ([]models.ParticipantPayment, error) {
	legs := []models.ParticipantPayment{}
	err := s.db.NewSelect().
		Model(&legs).
		Where("status = ?", common.PaymentStatusProcessing).
		Order("id ASC").
		Scan(ctx)
	return legs, err
}

func (s *Store) GetInvoice(ctx context.Context, invoiceID int64) (*models.TaskInvoice, error) {
	invoice := &models.TaskInvoice{}
	if err := s.db.NewSelect().Model(invoice).Where("id = ?", invoiceID).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return invoice, nil
}

func (s *Store) InsertInvoice(ctx context.Context, invoice *models.TaskInvoice) error {
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now()
	}
	_, err := s.db.NewInsert().Model(invoice).Exec(ctx)
	return err
}

// GetOrCreateClientNumber hands out the next client number the first time a user is invoiced.
func (s *Store) GetOrCreateClientNumber(ctx context.Context, userID int64) (*models.ClientNumber, error) {
	if _, err := s.insertIgnore(ctx, &models.ClientNumber{UserID: userID}); err != nil {
		return nil, err
	}
	client := &models.ClientNumber{}
	if err := s.db.NewSelect().Model(client).Where("user_id = ?", userID).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return client, nil
}

func (s *Store) SetInvoiceNumber(ctx context.Context, invoiceID int64, number string) (bool, error) {
	err := affected(s.db.NewUpdate().
		Model((*models.TaskInvoice)(nil)).
		Set("number = ?", number).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", invoiceID).
		Where("number IS NULL").
		Exec(ctx))
	if errors.Is(err, common.ErrNotFound) {
		// numbered already, or no such invoice
		if _, err := s.GetInvoice(ctx, invoiceID); err != nil {
			return false, err
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetUserProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	profile := &models.UserProfile{}
	err := s.db.NewSelect().
		Model(profile).
		Relation("BTCWallet").
		Where("user_profile.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return profile, nil
}

func (s *Store) UpdateBTCWallet(ctx context.Context, wallet *models.BTCWallet) error {
	return affected(s.db.NewUpdate().
		Model(wallet).
		Column("token", "token_secret", "expiry").
		WherePK().
		Exec(ctx))
}
