package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunga/taskpay/common"
)

func TestPubsubDeliversToTopicAndWildcard(t *testing.T) {
	ps := NewPubsub()
	topic := make(chan Event, 1)
	all := make(chan Event, 1)
	other := make(chan Event, 1)
	ps.Subscribe(common.EventTypePayoutDistributed, topic)
	ps.Subscribe(AllEvents, all)
	ps.Subscribe(common.EventTypeInvoiceNumbered, other)

	dropped := ps.Publish(common.EventTypePayoutDistributed, Event{Type: common.EventTypePayoutDistributed, TaskID: 1})
	assert.Equal(t, 0, dropped)
	assert.Len(t, topic, 1)
	assert.Len(t, all, 1)
	assert.Len(t, other, 0)

	// full subscribers are skipped, not waited for
	dropped = ps.Publish(common.EventTypePayoutDistributed, Event{Type: common.EventTypePayoutDistributed, TaskID: 2})
	assert.Equal(t, 2, dropped)
}

func TestPubsubUnsubscribeClosesChannel(t *testing.T) {
	ps := NewPubsub()
	ch := make(chan Event, 1)
	id := ps.Subscribe(AllEvents, ch)
	ps.Unsubscribe(id, AllEvents)
	ps.Unsubscribe(id, AllEvents)

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, ps.Publish("any", Event{}))
}

type webhookRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *webhookRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		event := Event{}
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&event))
		r.mu.Lock()
		r.events = append(r.events, event)
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (r *webhookRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestPostToWebhook(t *testing.T) {
	rec := &webhookRecorder{}
	server := httptest.NewServer(rec.handler(t))
	defer server.Close()

	svc := newTestService(newMemStore(), nil, &mapResolver{})
	svc.Config.WebhookUrl = server.URL
	svc.postToWebhook(context.Background(), resty.New(), payoutDistributedEvent(1, "Build API"))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, common.EventTypePayoutDistributed, rec.events[0].Type)
	assert.EqualValues(t, 1, rec.events[0].TaskID)
	assert.Equal(t, "Payout distributed for Build API", rec.events[0].Text)
}

func TestStartWebhookSubscription(t *testing.T) {
	rec := &webhookRecorder{}
	server := httptest.NewServer(rec.handler(t))
	defer server.Close()

	svc := newTestService(newMemStore(), nil, &mapResolver{})
	svc.Config.WebhookUrl = server.URL

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartWebhookSubscription(ctx)
		close(done)
	}()

	// the subscription starts asynchronously, keep notifying until it shows up
	assert.Eventually(t, func() bool {
		svc.Notify(invoiceNumberedEvent(23, 7, "A000520231123A0007"))
		return rec.count() > 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook subscription did not stop")
	}
}
