package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tunga/taskpay/coinbase"
	"github.com/tunga/taskpay/common"
	"github.com/tunga/taskpay/db/models"
	"github.com/ziflex/lecho/v3"
)

// memStore is an in-memory Store, rows are copied in and out like a database would.
type memStore struct {
	mu sync.Mutex

	tasks          map[int64]models.Task
	participations []models.Participation
	payments       map[int64]models.TaskPayment
	legs           map[int64]models.ParticipantPayment
	invoices       map[int64]models.TaskInvoice
	clients        map[int64]models.ClientNumber
	profiles       map[int64]models.UserProfile
	wallets        map[int64]models.BTCWallet
	activities     []models.WorkActivity

	nextPaymentID int64
	nextLegID     int64
	nextClientID  int64
	nextInvoiceID int64

	// conflictOnLegCreate makes the next leg creation lose a race against another writer
	conflictOnLegCreate bool
	legUpdates          int
	numberUpdates       int
}

func newMemStore() *memStore {
	return &memStore{
		tasks:         map[int64]models.Task{},
		payments:      map[int64]models.TaskPayment{},
		legs:          map[int64]models.ParticipantPayment{},
		invoices:      map[int64]models.TaskInvoice{},
		clients:       map[int64]models.ClientNumber{},
		profiles:      map[int64]models.UserProfile{},
		wallets:       map[int64]models.BTCWallet{},
		nextPaymentID: 1,
		nextLegID:     1,
		nextClientID:  1,
		nextInvoiceID: 1,
	}
}

func (s *memStore) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &task, nil
}

func (s *memStore) ListPaidUndistributedTaskIDs(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []int64{}
	for id, task := range s.tasks {
		if task.Paid && !task.PayDistributed {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *memStore) MarkTaskPaid(ctx context.Context, taskID int64, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return common.ErrNotFound
	}
	if !task.Paid {
		task.Paid = true
		task.PaidAt.Time = paidAt
	}
	s.tasks[taskID] = task
	return nil
}

func (s *memStore) MarkTaskDistributed(ctx context.Context, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return common.ErrNotFound
	}
	task.PayDistributed = true
	s.tasks[taskID] = task
	return nil
}

func (s *memStore) ListAcceptedParticipations(ctx context.Context, taskID int64) ([]models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.Participation{}
	for _, p := range s.participations {
		if p.TaskID == taskID && p.Accepted {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *memStore) ListWorkActivities(ctx context.Context, taskID int64) ([]models.WorkActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.WorkActivity{}
	for _, a := range s.activities {
		if a.TaskID == taskID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *memStore) RecordTaskPayment(ctx context.Context, payment *models.TaskPayment) (*models.TaskPayment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payments {
		if existing.BTCAddress == payment.BTCAddress && existing.Ref == payment.Ref {
			return &existing, false, nil
		}
	}
	stored := *payment
	stored.ID = s.nextPaymentID
	s.nextPaymentID++
	s.payments[stored.ID] = stored
	return &stored, true, nil
}

func (s *memStore) ListReceivedPayments(ctx context.Context, taskID int64) ([]models.TaskPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.TaskPayment{}
	for _, p := range s.payments {
		if p.TaskID == taskID && !p.ReceivedAt.IsZero() {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *memStore) MarkPaymentProcessed(ctx context.Context, paymentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[paymentID]
	if !ok {
		return common.ErrNotFound
	}
	payment.Processed = true
	s.payments[paymentID] = payment
	return nil
}

func (s *memStore) ReopenPayment(ctx context.Context, paymentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[paymentID]
	if !ok {
		return common.ErrNotFound
	}
	task, ok := s.tasks[payment.TaskID]
	if !ok {
		return common.ErrNotFound
	}
	payment.Processed = false
	task.PayDistributed = false
	s.payments[paymentID] = payment
	s.tasks[payment.TaskID] = task
	return nil
}

func (s *memStore) findLeg(participantID, sourceID int64) (models.ParticipantPayment, bool) {
	for _, leg := range s.legs {
		if leg.ParticipantID == participantID && leg.SourceID == sourceID {
			return leg, true
		}
	}
	return models.ParticipantPayment{}, false
}

func (s *memStore) GetParticipantPayment(ctx context.Context, participantID, sourceID int64) (*models.ParticipantPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	leg, ok := s.findLeg(participantID, sourceID)
	if !ok {
		return nil, common.ErrNotFound
	}
	return &leg, nil
}

func (s *memStore) GetOrCreateParticipantPayment(ctx context.Context, leg *models.ParticipantPayment) (*models.ParticipantPayment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.findLeg(leg.ParticipantID, leg.SourceID); ok {
		return &existing, false, nil
	}
	stored := *leg
	stored.ID = s.nextLegID
	s.nextLegID++
	if s.conflictOnLegCreate {
		s.conflictOnLegCreate = false
		stored.IdemKey = "winner-" + leg.IdemKey
		s.legs[stored.ID] = stored
		return nil, false, common.ErrPersistenceConflict
	}
	s.legs[stored.ID] = stored
	return &stored, true, nil
}

func (s *memStore) UpdateParticipantPayment(ctx context.Context, leg *models.ParticipantPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.legs[leg.ID]; !ok {
		return common.ErrNotFound
	}
	s.legUpdates++
	s.legs[leg.ID] = *leg
	return nil
}

func (s *memStore) ListProcessingParticipantPayments(ctx context.Context) ([]models.ParticipantPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.ParticipantPayment{}
	for _, leg := range s.legs {
		if leg.Status == common.PaymentStatusProcessing {
			result = append(result, leg)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *memStore) GetInvoice(ctx context.Context, invoiceID int64) (*models.TaskInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invoice, ok := s.invoices[invoiceID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &invoice, nil
}

func (s *memStore) InsertInvoice(ctx context.Context, invoice *models.TaskInvoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	invoice.ID = s.nextInvoiceID
	s.nextInvoiceID++
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now()
	}
	s.invoices[invoice.ID] = *invoice
	return nil
}

func (s *memStore) GetOrCreateClientNumber(ctx context.Context, userID int64) (*models.ClientNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[userID]; ok {
		return &client, nil
	}
	client := models.ClientNumber{ID: s.nextClientID, UserID: userID}
	s.nextClientID++
	s.clients[userID] = client
	return &client, nil
}

func (s *memStore) SetInvoiceNumber(ctx context.Context, invoiceID int64, number string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	invoice, ok := s.invoices[invoiceID]
	if !ok {
		return false, common.ErrNotFound
	}
	if invoice.Number != "" {
		return false, nil
	}
	s.numberUpdates++
	invoice.Number = number
	s.invoices[invoiceID] = invoice
	return true, nil
}

func (s *memStore) GetUserProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	if profile.BTCWalletID != 0 {
		wallet := s.wallets[profile.BTCWalletID]
		profile.BTCWallet = &wallet
	}
	return &profile, nil
}

func (s *memStore) UpdateBTCWallet(ctx context.Context, wallet *models.BTCWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[wallet.ID] = *wallet
	return nil
}

func (s *memStore) task(id int64) models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}

func (s *memStore) payment(id int64) models.TaskPayment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[id]
}

func (s *memStore) leg(participantID, sourceID int64) (models.ParticipantPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLeg(participantID, sourceID)
}

// mapResolver pays users to a fixed address book.
type mapResolver struct {
	mu        sync.Mutex
	addresses map[int64]string
	calls     int
}

func (r *mapResolver) ResolveDestination(ctx context.Context, userID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	address, ok := r.addresses[userID]
	if !ok {
		return "", common.ErrUnresolvedDestination
	}
	return address, nil
}

func (r *mapResolver) set(userID int64, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addresses[userID] = address
}

func newTestService(store Store, client coinbase.Client, resolver DestinationResolver) *PayoutService {
	return &PayoutService{
		Config: &Config{
			TungaPercentageDev:                decimal.RequireFromString("34.21"),
			TungaPercentagePM:                 decimal.RequireFromString("48.71"),
			PMTimePercentage:                  decimal.NewFromInt(15),
			BitonicPaymentCostPercentage:      decimal.NewFromInt(3),
			BankTransferPaymentCostPercentage: decimal.RequireFromString("5.5"),
			MaxTransferAttempts:               3,
			DistributionConcurrency:           2,
		},
		Store:       store,
		Coinbase:    client,
		Resolver:    resolver,
		Logger:      lecho.New(io.Discard),
		EventPubSub: NewPubsub(),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
