package service

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

func (svc *PayoutService) StartWebhookSubscription(ctx context.Context) {
	svc.Logger.Infof("Starting webhook subscription with webhook url %s", svc.Config.WebhookUrl)
	client := resty.New().SetTimeout(10 * time.Second)
	events := make(chan Event, 64)
	subId := svc.EventPubSub.Subscribe(AllEvents, events)
	defer svc.EventPubSub.Unsubscribe(subId, AllEvents)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			svc.postToWebhook(ctx, client, event)
		}
	}
}

// postToWebhook sends the event as a Slack compatible message, the text plus the event fields.
func (svc *PayoutService) postToWebhook(ctx context.Context, client *resty.Client, event Event) {
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Post(svc.Config.WebhookUrl)
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	if resp.StatusCode() != http.StatusOK {
		svc.Logger.Errorf("Webhook status code was %d, body: %s", resp.StatusCode(), resp.Body())
	}
}
