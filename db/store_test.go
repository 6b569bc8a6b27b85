package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunga/taskpay/common"
	"github.com/tunga/taskpay/db/migrations"
	"github.com/tunga/taskpay/db/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/migrate"
)

func setupStore(t *testing.T) (*Store, *bun.DB) {
	t.Helper()
	sqldb, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)
	return NewStore(db), db
}

func insertTask(t *testing.T, db *bun.DB, task *models.Task) {
	t.Helper()
	if task.Currency == "" {
		task.Currency = common.CurrencyEUR
	}
	if task.Scope == "" {
		task.Scope = common.TaskScopeTask
	}
	_, err := db.NewInsert().Model(task).Exec(context.Background())
	require.NoError(t, err)
}

func TestStoreTasks(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	insertTask(t, db, &models.Task{UserID: 1, Title: "paid", Paid: true, Fee: decimal.NewNullDecimal(decimal.NewFromInt(1000))})
	insertTask(t, db, &models.Task{UserID: 1, Title: "unpaid"})
	insertTask(t, db, &models.Task{UserID: 1, Title: "done", Paid: true, PayDistributed: true})

	ids, err := store.ListPaidUndistributedTaskIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	task, err := store.GetTask(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "paid", task.Title)
	assert.True(t, decimal.NewFromInt(1000).Equal(task.Fee.Decimal))

	_, err = store.GetTask(ctx, 99)
	assert.ErrorIs(t, err, common.ErrNotFound)

	first := time.Date(2023, time.November, 14, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkTaskPaid(ctx, 2, first))
	require.NoError(t, store.MarkTaskPaid(ctx, 2, first.Add(time.Hour)))
	task, err = store.GetTask(ctx, 2)
	require.NoError(t, err)
	assert.True(t, task.Paid)
	assert.True(t, first.Equal(task.PaidAt.Time), task.PaidAt.Time)

	require.NoError(t, store.MarkTaskDistributed(ctx, 1))
	ids, err = store.ListPaidUndistributedTaskIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)

	assert.ErrorIs(t, store.MarkTaskDistributed(ctx, 99), common.ErrNotFound)
}

func TestStoreParticipationsAndActivities(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	insertTask(t, db, &models.Task{UserID: 1, Title: "task"})

	participations := []models.Participation{
		{TaskID: 1, UserID: 100, Accepted: true, Share: decimal.NewNullDecimal(decimal.NewFromInt(30))},
		{TaskID: 1, UserID: 101, Accepted: false},
		{TaskID: 1, UserID: 102, Accepted: true},
	}
	for i := range participations {
		_, err := db.NewInsert().Model(&participations[i]).Exec(ctx)
		require.NoError(t, err)
	}
	_, err := db.NewInsert().Model(&models.WorkActivity{TaskID: 1, Hours: decimal.NewFromInt(8)}).Exec(ctx)
	require.NoError(t, err)

	accepted, err := store.ListAcceptedParticipations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, accepted, 2)
	assert.EqualValues(t, 100, accepted[0].UserID)
	assert.True(t, decimal.NewFromInt(30).Equal(accepted[0].Share.Decimal))
	assert.False(t, accepted[1].Share.Valid)

	activities, err := store.ListWorkActivities(ctx, 1)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.True(t, decimal.NewFromInt(8).Equal(activities[0].Hours))
}

func TestStoreRecordTaskPayment(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	insertTask(t, db, &models.Task{UserID: 1, Title: "task"})

	payment := &models.TaskPayment{
		TaskID:      1,
		BTCAddress:  "3Task",
		Ref:         "in-1",
		BTCReceived: decimal.NewFromInt(1),
		ReceivedAt:  bun.NullTime{Time: time.Now()},
	}
	stored, created, err := store.RecordTaskPayment(ctx, payment)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, stored.ID)

	replayed, created, err := store.RecordTaskPayment(ctx, &models.TaskPayment{TaskID: 1, BTCAddress: "3Task", Ref: "in-1", BTCReceived: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, replayed.ID)
	assert.True(t, decimal.NewFromInt(1).Equal(replayed.BTCReceived))

	// announced but not received yet
	_, _, err = store.RecordTaskPayment(ctx, &models.TaskPayment{TaskID: 1, BTCAddress: "3Task", Ref: "in-2"})
	require.NoError(t, err)

	received, err := store.ListReceivedPayments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, stored.ID, received[0].ID)

	require.NoError(t, store.MarkPaymentProcessed(ctx, stored.ID))
	received, err = store.ListReceivedPayments(ctx, 1)
	require.NoError(t, err)
	assert.True(t, received[0].Processed)
	assert.ErrorIs(t, store.MarkPaymentProcessed(ctx, 99), common.ErrNotFound)
}

func TestStoreReopenPayment(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	insertTask(t, db, &models.Task{UserID: 1, Title: "task"})

	payment, _, err := store.RecordTaskPayment(ctx, &models.TaskPayment{
		TaskID:      1,
		BTCAddress:  "3Task",
		Ref:         "in-1",
		BTCReceived: decimal.NewFromInt(1),
		ReceivedAt:  bun.NullTime{Time: time.Now()},
	})
	require.NoError(t, err)
	require.NoError(t, store.MarkTaskPaid(ctx, 1, time.Now()))
	require.NoError(t, store.MarkPaymentProcessed(ctx, payment.ID))
	require.NoError(t, store.MarkTaskDistributed(ctx, 1))

	ids, err := store.ListPaidUndistributedTaskIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.ReopenPayment(ctx, payment.ID))

	task, err := store.GetTask(ctx, 1)
	require.NoError(t, err)
	assert.False(t, task.PayDistributed)
	received, err := store.ListReceivedPayments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.False(t, received[0].Processed)
	ids, err = store.ListPaidUndistributedTaskIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	assert.ErrorIs(t, store.ReopenPayment(ctx, 99), common.ErrNotFound)
}

func TestStoreParticipantPayments(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	_, err := store.GetParticipantPayment(ctx, 10, 5)
	assert.ErrorIs(t, err, common.ErrNotFound)

	leg, created, err := store.GetOrCreateParticipantPayment(ctx, &models.ParticipantPayment{
		ParticipantID: 10,
		SourceID:      5,
		Destination:   "1BoatSLRHtKNngkdXEeobR76b53LETtpyT",
		IdemKey:       "idem-1",
		Status:        common.PaymentStatusPending,
	})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := store.GetOrCreateParticipantPayment(ctx, &models.ParticipantPayment{
		ParticipantID: 10,
		SourceID:      5,
		IdemKey:       "idem-2",
		Status:        common.PaymentStatusPending,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, leg.ID, again.ID)
	assert.Equal(t, "idem-1", again.IdemKey)

	_, _, err = store.GetOrCreateParticipantPayment(ctx, &models.ParticipantPayment{
		ParticipantID: 11,
		SourceID:      5,
		IdemKey:       "idem-1",
		Status:        common.PaymentStatusPending,
	})
	assert.ErrorIs(t, err, common.ErrPersistenceConflict)

	leg.Status = common.PaymentStatusProcessing
	leg.Ref = "tx-1"
	leg.Attempts = 1
	leg.BTCSent = decimal.NewNullDecimal(decimal.RequireFromString("0.3"))
	leg.IdemKey = "changed"
	require.NoError(t, store.UpdateParticipantPayment(ctx, leg))

	processing, err := store.ListProcessingParticipantPayments(ctx)
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, "tx-1", processing[0].Ref)
	assert.Equal(t, 1, processing[0].Attempts)
	assert.Equal(t, "idem-1", processing[0].IdemKey)
	assert.True(t, decimal.RequireFromString("0.3").Equal(processing[0].BTCSent.Decimal))

	assert.ErrorIs(t, store.UpdateParticipantPayment(ctx, &models.ParticipantPayment{ID: 99}), common.ErrNotFound)
}

func TestStoreGetOrCreateParticipantPaymentConcurrently(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	keys := make([]string, callers)
	createdCount := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			leg, created, err := store.GetOrCreateParticipantPayment(ctx, &models.ParticipantPayment{
				ParticipantID: 10,
				SourceID:      5,
				IdemKey:       uuid.NewString(),
				Status:        common.PaymentStatusPending,
			})
			if assert.NoError(t, err) {
				keys[i] = leg.IdemKey
				createdCount[i] = created
			}
		}(i)
	}
	wg.Wait()

	creators := 0
	for i := range keys {
		assert.Equal(t, keys[0], keys[i])
		if createdCount[i] {
			creators++
		}
	}
	assert.Equal(t, 1, creators)
}

func TestStoreInvoices(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	invoice := &models.TaskInvoice{
		TaskID:        7,
		ClientID:      50,
		Title:         "Build API",
		Fee:           decimal.NewFromInt(1000),
		Currency:      common.CurrencyEUR,
		PaymentMethod: common.TaskPaymentMethodBank,
	}
	require.NoError(t, store.InsertInvoice(ctx, invoice))
	require.NotZero(t, invoice.ID)

	client, err := store.GetOrCreateClientNumber(ctx, 50)
	require.NoError(t, err)
	same, err := store.GetOrCreateClientNumber(ctx, 50)
	require.NoError(t, err)
	other, err := store.GetOrCreateClientNumber(ctx, 51)
	require.NoError(t, err)
	assert.Equal(t, client.ID, same.ID)
	assert.NotEqual(t, client.ID, other.ID)

	updated, err := store.SetInvoiceNumber(ctx, invoice.ID, "A0001")
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = store.SetInvoiceNumber(ctx, invoice.ID, "A0002")
	require.NoError(t, err)
	assert.False(t, updated)

	stored, err := store.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "A0001", stored.Number)

	_, err = store.SetInvoiceNumber(ctx, 99, "A0003")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStoreUserProfiles(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	wallet := &models.BTCWallet{UserID: 100, Provider: common.BTCWalletProviderCoinbase, Token: "old", TokenSecret: "refresh"}
	_, err := db.NewInsert().Model(wallet).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&models.UserProfile{UserID: 100, PaymentMethod: common.PaymentMethodBTCWallet, BTCWalletID: wallet.ID}).Exec(ctx)
	require.NoError(t, err)

	profile, err := store.GetUserProfile(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, profile.BTCWallet)
	assert.Equal(t, "old", profile.BTCWallet.Token)

	profile.BTCWallet.Token = "new"
	require.NoError(t, store.UpdateBTCWallet(ctx, profile.BTCWallet))
	profile, err = store.GetUserProfile(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "new", profile.BTCWallet.Token)
	assert.Equal(t, "refresh", profile.BTCWallet.TokenSecret)

	_, err = store.GetUserProfile(ctx, 404)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
