package coinbase

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusExpired   = "expired"
	TransactionStatusCanceled  = "canceled"
)

// Client sends payouts from the platform account.
type Client interface {
	SendMoney(ctx context.Context, req *SendMoneyRequest) (*Transaction, error)
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
}

// WalletClient acts on behalf of a user who connected their wallet with OAuth.
type WalletClient interface {
	NewAddress(ctx context.Context) (string, error)
	// Token returns the current token, it differs from the initial one after a refresh.
	Token() (*oauth2.Token, error)
}

type WalletClientFactory interface {
	NewWalletClient(ctx context.Context, token *oauth2.Token) WalletClient
}

type SendMoneyRequest struct {
	Type        string `json:"type"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	Idem        string `json:"idem"`
}

type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type Transaction struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Amount      Money  `json:"amount"`
	Description string `json:"description"`
}

// Failed reports a terminal failure, the transfer will not move any funds.
func (t *Transaction) Failed() bool {
	switch t.Status {
	case TransactionStatusFailed, TransactionStatusExpired, TransactionStatusCanceled:
		return true
	}
	return false
}

func (t *Transaction) Completed() bool {
	return t.Status == TransactionStatusCompleted
}

type ErrorDetail struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type APIError struct {
	StatusCode int
	Errors     []ErrorDetail `json:"errors"`
}

func (e *APIError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, detail := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", detail.ID, detail.Message))
	}
	return fmt.Sprintf("coinbase: status %d: %s", e.StatusCode, strings.Join(msgs, "; "))
}

// Retryable is true for rate limits and server side errors.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
