package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/tunga/taskpay/coinbase"
	"github.com/tunga/taskpay/db"
	"github.com/tunga/taskpay/lib/logging"
	"github.com/tunga/taskpay/lib/service"
)

// script to distribute the paid tasks, or a single one, and settle the processing payout legs
func main() {
	taskID := flag.Int64("task", 0, "only distribute the payments of this task")
	flag.Parse()

	c := &service.Config{}

	// Load configruation from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configrued log file
	logger := logging.Logger(c.LogFilePath)

	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}
	defer dbConn.Close()

	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{Dsn: c.SentryDSN}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
	}

	network, err := service.NetworkParams(c.BTCNetwork)
	if err != nil {
		logger.Fatal(err)
	}
	cbConfig, err := coinbase.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load coinbase config %v", err)
	}
	store := db.NewStore(dbConn)
	svc := &service.PayoutService{
		Config:   c,
		Store:    store,
		Coinbase: coinbase.NewClient(cbConfig),
		Resolver: &service.ProfileDestinationResolver{
			Store:   store,
			Wallets: coinbase.NewOAuthWalletFactory(cbConfig),
			Network: network,
		},
		Logger:      logger,
		EventPubSub: service.NewPubsub(),
	}

	ctx := context.Background()
	if *taskID != 0 {
		distribution, err := svc.DistributeTaskPayment(ctx, *taskID)
		if err != nil {
			sentry.CaptureException(err)
			logger.Fatal(err)
		}
		logger.Infof("Task %d: %d legs advanced, %d skipped, %d failed, distributed: %t", *taskID, distribution.LegsAdvanced, distribution.LegsSkipped, distribution.LegsFailed, distribution.Distributed)
	} else if err := svc.DistributePendingTasks(ctx); err != nil {
		sentry.CaptureException(err)
		logger.Error(err)
	}

	result, err := svc.ReconcileProcessingLegs(ctx)
	if err != nil {
		sentry.CaptureException(err)
		logger.Fatal(err)
	}
	logger.Infof("Reconciled legs: %d checked, %d completed, %d pending again", result.Checked, result.Completed, result.Reverted)
}
