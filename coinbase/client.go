package coinbase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type account struct {
	ID string `json:"id"`
}

// DefaultClient talks to the coinbase v2 API with an API key of the platform account.
type DefaultClient struct {
	http    *resty.Client
	config  *Config
	limiter *rate.Limiter

	mu        sync.Mutex
	accountID string
	lookup    singleflight.Group

	now func() time.Time
}

func NewClient(config *Config) *DefaultClient {
	httpClient := resty.New().
		SetBaseURL(config.APIURL).
		SetTimeout(time.Duration(config.Timeout)*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("CB-VERSION", config.APIVersion)

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &DefaultClient{
		http:      httpClient,
		config:    config,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		accountID: config.AccountID,
		now:       time.Now,
	}
}

// SendMoney submits a send transaction. Coinbase deduplicates on the idem token,
// so a retried request returns the original transaction instead of paying twice.
func (c *DefaultClient) SendMoney(ctx context.Context, req *SendMoneyRequest) (*Transaction, error) {
	if req.Type == "" {
		req.Type = "send"
	}
	accountID, err := c.account(ctx)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{}
	err = c.retry(ctx, func() error {
		return c.do(ctx, http.MethodPost, fmt.Sprintf("/v2/accounts/%s/transactions", accountID), req, tx)
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (c *DefaultClient) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	accountID, err := c.account(ctx)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{}
	err = c.retry(ctx, func() error {
		return c.do(ctx, http.MethodGet, fmt.Sprintf("/v2/accounts/%s/transactions/%s", accountID, id), nil, tx)
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// account returns the primary account id. Concurrent callers share one
// lookup and the lock is only held to read or store the cached id.
func (c *DefaultClient) account(ctx context.Context) (string, error) {
	c.mu.Lock()
	accountID := c.accountID
	c.mu.Unlock()
	if accountID != "" {
		return accountID, nil
	}
	v, err, _ := c.lookup.Do("primary", func() (interface{}, error) {
		acc := &account{}
		err := c.retry(ctx, func() error {
			return c.do(ctx, http.MethodGet, "/v2/accounts/primary", nil, acc)
		})
		if err != nil {
			return "", fmt.Errorf("fetching primary account: %w", err)
		}
		c.mu.Lock()
		c.accountID = acc.ID
		c.mu.Unlock()
		return acc.ID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *DefaultClient) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.config.MaxRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func (c *DefaultClient) do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return backoff.Permanent(err)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return backoff.Permanent(err)
		}
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	req := c.http.R().
		SetContext(ctx).
		SetHeader("CB-ACCESS-KEY", c.config.APIKey).
		SetHeader("CB-ACCESS-TIMESTAMP", timestamp).
		SetHeader("CB-ACCESS-SIGN", Sign(c.config.APISecret, timestamp, method, path, payload))
	if payload != nil {
		req.SetBody(payload)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	return decodeResponse(resp, result)
}

func decodeResponse(resp *resty.Response, result interface{}) error {
	if resp.IsError() {
		apiErr := &APIError{StatusCode: resp.StatusCode()}
		// an unparseable error body still yields the status code
		_ = json.Unmarshal(resp.Body(), apiErr)
		return apiErr
	}
	env := envelope{}
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return backoff.Permanent(fmt.Errorf("coinbase: decoding response: %w", err))
	}
	if result == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return backoff.Permanent(fmt.Errorf("coinbase: decoding data: %w", err))
	}
	return nil
}

// Sign computes the CB-ACCESS-SIGN header for an API key request.
func Sign(secret, timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + path))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
