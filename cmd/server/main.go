package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/tunga/taskpay/coinbase"
	"github.com/tunga/taskpay/db"
	"github.com/tunga/taskpay/db/migrations"
	"github.com/tunga/taskpay/lib/logging"
	"github.com/tunga/taskpay/lib/service"
	"github.com/tunga/taskpay/rabbitmq"
	"github.com/uptrace/bun/migrate"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

func main() {

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

	// Migrate the DB
	startupCtx := context.Background()
	migrator := migrate.NewMigrator(dbConn, migrations.Migrations)
	err = migrator.Init(startupCtx)
	if err != nil {
		logger.Fatalf("Error initializing db migrator: %v", err)
	}
	_, err = migrator.Migrate(startupCtx)
	if err != nil {
		logger.Fatalf("Error migrating database: %v", err)
	}
	// Setup exception tracking with Sentry if configured
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			EnableTracing:    c.SentryTracesSampleRate > 0,
			TracesSampleRate: c.SentryTracesSampleRate,
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
	}
	//if Datadog is configured, the sql traces of db.Open are sent there
	if c.DatadogAgentUrl != "" {
		tracer.Start(tracer.WithAgentAddr(c.DatadogAgentUrl), tracer.WithService("taskpay"))
		defer tracer.Stop()
	}

	network, err := service.NetworkParams(c.BTCNetwork)
	if err != nil {
		logger.Fatal(err)
	}
	cbConfig, err := coinbase.LoadConfig()
	if err != nil {
		logger.Fatalf("Error loading coinbase config: %v", err)
	}
	store := db.NewStore(dbConn)

	// If no RABBITMQ_URI was provided we will not attempt to create a client
	// Jobs then only run from the periodic sweeps.
	var rabbitmqClient rabbitmq.Client
	if c.RabbitMQUri != "" {
		amqpClient, err := rabbitmq.DialAMQP(c.RabbitMQUri, rabbitmq.WithAMQPLogger(logger))
		if err != nil {
			logger.Fatal(err)
		}

		defer amqpClient.Close()

		rabbitmqClient, err = rabbitmq.NewClient(amqpClient,
			rabbitmq.WithLogger(logger),
			rabbitmq.WithTaskExchange(c.RabbitMQTaskExchange),
			rabbitmq.WithTaskConsumerQueueName(c.RabbitMQTaskConsumerQueueName),
			rabbitmq.WithNotificationExchange(c.RabbitMQNotificationExchange),
		)
		if err != nil {
			logger.Fatal(err)
		}

		// close the connection gently at the end of the runtime
		defer rabbitmqClient.Close()
	}

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

	var backgroundWg sync.WaitGroup
	backGroundCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Sweep paid tasks that still have undistributed payments
	backgroundWg.Add(1)
	go func() {
		defer backgroundWg.Done()
		if err := svc.StartDistributionRoutine(backGroundCtx); err != nil {
			sentry.CaptureException(err)
			svc.Logger.Error(err)
		}
		svc.Logger.Info("Distribution routine done")
	}()

	// Follow up on transfers the provider accepted
	backgroundWg.Add(1)
	go func() {
		defer backgroundWg.Done()
		if err := svc.StartReconciliationRoutine(backGroundCtx); err != nil {
			sentry.CaptureException(err)
			svc.Logger.Error(err)
		}
		svc.Logger.Info("Reconciliation routine done")
	}()

	//Start webhook subscription
	if svc.Config.WebhookUrl != "" {
		backgroundWg.Add(1)
		go func() {
			defer backgroundWg.Done()
			svc.StartWebhookSubscription(backGroundCtx)
			svc.Logger.Info("Webhook routine done")
		}()
	}

	if rabbitmqClient != nil {
		backgroundWg.Add(1)
		go func() {
			defer backgroundWg.Done()
			if err := svc.StartTaskEventRoutine(backGroundCtx, rabbitmqClient); err != nil {
				sentry.CaptureException(err)
				//we want to restart in case of an error here
				svc.Logger.Fatal(err)
			}
			svc.Logger.Info("Task event routine done")
		}()

		backgroundWg.Add(1)
		go func() {
			defer backgroundWg.Done()
			err := rabbitmqClient.StartPublishNotifications(backGroundCtx,
				svc.SubscribeToNotifications,
				rabbitmq.EncodeNotificationJSON,
			)
			if err != nil {
				svc.Logger.Error(err)
				sentry.CaptureException(err)
			}
			svc.Logger.Info("Rabbit notification publisher done")
		}()
	}

	<-backGroundCtx.Done()
	//Wait for graceful shutdown of background routines
	backgroundWg.Wait()
	svc.Logger.Info("taskpay exiting gracefully. Goodbye.")
}
