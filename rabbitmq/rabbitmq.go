package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/ziflex/lecho/v3"
)

// bufPool is a classic buffer pool pattern that allows more clever reuse of heap memory.
// Instead of allocating new memory everytime we need to encode a notification we
// reuse buffers from this buffer pool.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

var validate = validator.New()

const (
	contentTypeJSON = "application/json"
)

// TaskEvent asks for a job on a task or invoice, or reports a lifecycle
// transition to relay as a notification. Type falls back to the routing key.
type TaskEvent struct {
	Type      string               `json:"type" validate:"required,oneof=task.paid task.payment.received task.payment.confirmed invoice.created task.approved application.responded invitation.accepted progress.reported"`
	TaskID    int64                `json:"task_id" validate:"required_unless=Type invoice.created"`
	InvoiceID int64                `json:"invoice_id" validate:"required_if=Type invoice.created"`
	UserID    int64                `json:"user_id,omitempty"`
	Text      string               `json:"text,omitempty"`
	Payment   *PaymentConfirmation `json:"payment,omitempty" validate:"required_if=Type task.payment.confirmed"`
}

// taskEventBindings covers the job events and the lifecycle events.
var taskEventBindings = []string{"task.#", "invoice.#", "application.#", "invitation.#", "progress.#"}

// PaymentConfirmation is an inbound payment the provider confirmed.
type PaymentConfirmation struct {
	BTCAddress  string          `json:"btc_address" validate:"required"`
	Ref         string          `json:"ref" validate:"required"`
	BTCReceived decimal.Decimal `json:"btc_received"`
	BTCPrice    decimal.Decimal `json:"btc_price"`
	ReceivedAt  time.Time       `json:"received_at"`
}

// Notification is published with routing key notification.<Type>.
type Notification struct {
	Type    string
	Payload interface{}
}

type (
	SubscribeToNotificationsFunc = func() (notifications <-chan Notification, unsubscribe func(), err error)
	EncodeNotificationFunc       = func(ctx context.Context, w io.Writer, notification Notification) error
)

type TaskEventProcessor interface {
	HandleTaskEvent(ctx context.Context, event *TaskEvent) error
}

type Client interface {
	SubscribeToTaskEvents(context.Context, TaskEventProcessor) error
	StartPublishNotifications(context.Context, SubscribeToNotificationsFunc, EncodeNotificationFunc) error
	// Close will close all connections to rabbitmq
	Close() error
}

type DefaultClient struct {
	amqpClient AMQPClient
	logger     *lecho.Logger

	taskExchange          string
	taskConsumerQueueName string
	notificationExchange  string
}

type ClientOption = func(client *DefaultClient)

func WithTaskExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.taskExchange = exchange
	}
}

func WithTaskConsumerQueueName(name string) ClientOption {
	return func(client *DefaultClient) {
		client.taskConsumerQueueName = name
	}
}

func WithNotificationExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.notificationExchange = exchange
	}
}

func WithLogger(logger *lecho.Logger) ClientOption {
	return func(client *DefaultClient) {
		client.logger = logger
	}
}

func NewClient(amqpClient AMQPClient, options ...ClientOption) (Client, error) {
	client := &DefaultClient{
		amqpClient: amqpClient,

		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.DEBUG),
			lecho.WithTimestamp(),
		),

		taskExchange:          "tunga_task",
		taskConsumerQueueName: "taskpay_task_consumer",
		notificationExchange:  "tunga_notification",
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

func (client *DefaultClient) Close() error { return client.amqpClient.Close() }

func (client *DefaultClient) SubscribeToTaskEvents(ctx context.Context, processor TaskEventProcessor) error {
	deliveryChan, err := client.amqpClient.Listen(ctx, client.taskExchange, taskEventBindings, client.taskConsumerQueueName)
	if err != nil {
		return err
	}

	client.logger.Info("Starting RabbitMQ task event consumer loop")
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case delivery, ok := <-deliveryChan:
			if !ok {
				return fmt.Errorf("disconnected from RabbitMQ")
			}

			event, err := decodeTaskEvent(delivery)
			if err != nil {
				captureErr(client.logger, err)

				// A badly formatted event will never be handled,
				// Nack it and explicitly do not requeue it.
				err = delivery.Nack(false, false)
				if err != nil {
					captureErr(client.logger, err)
				}

				continue
			}

			err = processor.HandleTaskEvent(ctx, event)
			if err != nil {
				captureErr(client.logger, err)

				// Jobs are re-derived from stored state by the periodic sweeps,
				// requeueing would only put pressure on the database and logs.
				err := delivery.Nack(false, false)
				if err != nil {
					captureErr(client.logger, err)
				}

				continue
			}

			err = delivery.Ack(false)
			if err != nil {
				captureErr(client.logger, err)
			}
		}
	}
}

func decodeTaskEvent(delivery amqp.Delivery) (*TaskEvent, error) {
	event := &TaskEvent{}
	if err := json.Unmarshal(delivery.Body, event); err != nil {
		return nil, fmt.Errorf("decoding task event %q: %w", delivery.RoutingKey, err)
	}
	if event.Type == "" {
		event.Type = delivery.RoutingKey
	}
	if err := validate.Struct(event); err != nil {
		return nil, fmt.Errorf("invalid task event %q: %w", delivery.RoutingKey, err)
	}
	return event, nil
}

func (client *DefaultClient) StartPublishNotifications(ctx context.Context, subscribe SubscribeToNotificationsFunc, payloadFunc EncodeNotificationFunc) error {
	err := client.amqpClient.ExchangeDeclare(
		client.notificationExchange,
		// topic is a type of exchange that allows routing messages to different queue's bases on a routing key
		"topic",
		// Durable and Non-Auto-Deleted exchanges will survive server restarts and remain
		// declared when there are no remaining bindings.
		true,
		false,
		// Non-Internal exchange's accept direct publishing
		false,
		// Nowait: We set this to false as we want to wait for a server response
		// to check whether the exchange was created succesfully
		false,
		nil,
	)
	if err != nil {
		return err
	}

	notifications, unsubscribe, err := subscribe()
	if err != nil {
		return err
	}
	defer unsubscribe()

	client.logger.Info("Starting rabbitmq notification publisher")
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case notification, ok := <-notifications:
			if !ok {
				return nil
			}
			// failures are captured, a lost notification must not stop the publisher
			_ = client.publishNotification(ctx, notification, payloadFunc)
		}
	}
}

func (client *DefaultClient) publishNotification(ctx context.Context, notification Notification, payloadFunc EncodeNotificationFunc) error {
	payload := bufPool.Get().(*bytes.Buffer)
	payload.Reset()
	defer bufPool.Put(payload)

	err := payloadFunc(ctx, payload, notification)
	if err != nil {
		captureErr(client.logger, err)
		return err
	}

	key := fmt.Sprintf("notification.%s", notification.Type)

	err = client.amqpClient.PublishWithContext(ctx,
		client.notificationExchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		captureErr(client.logger, err)
		return err
	}

	client.logger.Debugf("Successfully published %s notification to rabbitmq", notification.Type)

	return nil
}

// EncodeNotificationJSON writes the payload of the notification as JSON.
func EncodeNotificationJSON(ctx context.Context, w io.Writer, notification Notification) error {
	return json.NewEncoder(w).Encode(notification.Payload)
}

func captureErr(logger *lecho.Logger, err error) {
	logger.Error(err)
	sentry.CaptureException(err)
}
