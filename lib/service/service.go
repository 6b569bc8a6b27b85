package service

import (
	"github.com/getsentry/sentry-go"
	"github.com/tunga/taskpay/coinbase"
	"github.com/ziflex/lecho/v3"
	"golang.org/x/sync/singleflight"
)

type PayoutService struct {
	Config      *Config
	Store       Store
	Coinbase    coinbase.Client
	Resolver    DestinationResolver
	Logger      *lecho.Logger
	EventPubSub *Pubsub

	// distributions coalesces overlapping runs for the same task
	distributions singleflight.Group
}

func (svc *PayoutService) captureErr(err error) {
	svc.Logger.Error(err)
	sentry.CaptureException(err)
}
