package rabbitmq

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

const (
	defaultHeartbeat = 10 * time.Second
	defaultLocale    = "en_US"

	msgReconnect = "RECONNECT_DONE"
	msgClose     = "CLOSE"
)

type listenerMsg = string

type AMQPClient interface {
	Listen(ctx context.Context, exchange string, routingKeys []string, queueName string, options ...AMQPListenOptions) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Close() error
}

type defaultAMQPCLient struct {
	mu   sync.RWMutex
	conn *amqp.Connection
	uri  string

	// It is recommended that, when possible, publishers and consumers
	// use separate connections so that consumers are isolated from potential
	// flow control measures that may be applied to publishing connections.
	consumeChannel *amqp.Channel
	publishChannel *amqp.Channel

	notifyCloseChan chan *amqp.Error

	listeners []chan listenerMsg
	reconFlag atomic.Bool

	logger *lecho.Logger
}

type AMQPOption = func(client *defaultAMQPCLient)

func WithAMQPLogger(logger *lecho.Logger) AMQPOption {
	return func(client *defaultAMQPCLient) {
		client.logger = logger
	}
}

// DialAMQP connects to rabbitmq and keeps reconnecting in the background when the connection drops.
func DialAMQP(uri string, options ...AMQPOption) (AMQPClient, error) {
	client := &defaultAMQPCLient{
		uri: uri,
		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.DEBUG),
			lecho.WithTimestamp(),
		),
	}
	for _, opt := range options {
		opt(client)
	}

	err := client.connect()
	if err != nil {
		return nil, err
	}

	go client.reconnectionLoop()

	return client, nil
}

func (c *defaultAMQPCLient) connect() error {
	conn, err := amqp.DialConfig(c.uri, amqp.Config{
		Heartbeat: defaultHeartbeat,
		Locale:    defaultLocale,
		Dial:      amqp.DefaultDial(time.Second * 3),
	})
	if err != nil {
		return err
	}

	consumeChannel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	publishChannel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	notifyCloseChan := make(chan *amqp.Error, 1)
	conn.NotifyClose(notifyCloseChan)

	c.mu.Lock()
	c.conn = conn
	c.consumeChannel = consumeChannel
	c.publishChannel = publishChannel
	c.notifyCloseChan = notifyCloseChan
	c.mu.Unlock()

	return nil
}

func (c *defaultAMQPCLient) reconnectionLoop() {
	for {
		c.mu.RLock()
		notifyCloseChan := c.notifyCloseChan
		c.mu.RUnlock()

		amqpError, ok := <-notifyCloseChan
		if !ok || amqpError == nil {
			// closed on purpose
			return
		}
		c.logger.Error(amqpError)

		expontentialBackoff := backoff.NewExponentialBackOff()
		expontentialBackoff.MaxInterval = time.Second * 10
		expontentialBackoff.MaxElapsedTime = time.Minute

		c.reconFlag.Store(true)
		c.logger.Info("amqp: trying to reconnect...")
		err := backoff.Retry(c.connect, expontentialBackoff)
		if err != nil {
			c.logger.Errorf("amqp: giving up reconnecting: %v", err)
			c.notifyListeners(msgClose)
			return
		}

		c.reconFlag.Store(false)
		c.logger.Info("amqp: succesfully reconnected")
		c.notifyListeners(msgReconnect)
	}
}

func (c *defaultAMQPCLient) notifyListeners(msg listenerMsg) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, listener := range c.listeners {
		listener <- msg
	}
}

func (c *defaultAMQPCLient) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn.Close()
}

func (c *defaultAMQPCLient) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	// a short lived channel, declaring happens once per routine
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, args)
}

type ListenOptions struct {
	Durable    bool
	AutoDelete bool
	Internal   bool
	Wait       bool
	Exclusive  bool
	AutoAck    bool
}

type AMQPListenOptions = func(opts ListenOptions) ListenOptions

func WithDurable(durable bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.Durable = durable
		return opts
	}
}

func WithAutoDelete(autoDelete bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.AutoDelete = autoDelete
		return opts
	}
}

func WithExclusive(exclusive bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.Exclusive = exclusive
		return opts
	}
}

func WithAutoAck(autoAck bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.AutoAck = autoAck
		return opts
	}
}

func (c *defaultAMQPCLient) Listen(ctx context.Context, exchange string, routingKeys []string, queueName string, options ...AMQPListenOptions) (<-chan amqp.Delivery, error) {
	deliveries, err := c.consume(exchange, routingKeys, queueName, options...)
	if err != nil {
		return nil, err
	}

	clientChannel := make(chan amqp.Delivery)

	notifyReconnectChan := make(chan listenerMsg, 2)
	c.mu.Lock()
	c.listeners = append(c.listeners, notifyReconnectChan)
	c.mu.Unlock()

	// Wraps the raw delivery channel. After a reconnect the listener swaps in
	// the deliveries channel of the new amqp channel, so consumers of
	// clientChannel never see the reconnect.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return

			case msg := <-notifyReconnectChan:
				switch msg {
				case msgReconnect:
					d, err := c.consume(exchange, routingKeys, queueName, options...)
					if err != nil {
						c.logger.Error(err)
						close(clientChannel)
						return
					}

					c.logger.Infof("amqp: succesfully consuming messages from queue %s from new deliveries channel", queueName)
					deliveries = d

				case msgClose:
					close(clientChannel)
					return
				default:
					c.logger.Warnf("amqp: unrecognized message send to listener: %s", msg)
				}

			case delivery, ok := <-deliveries:
				if !ok {
					// wait for the reconnection loop
					deliveries = nil
					continue
				}
				select {
				case clientChannel <- delivery:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return clientChannel, nil
}

func (c *defaultAMQPCLient) consume(exchange string, routingKeys []string, queueName string, options ...AMQPListenOptions) (<-chan amqp.Delivery, error) {
	opts := ListenOptions{
		Durable:    true,
		AutoDelete: false,
		Internal:   false,
		Wait:       false,
		Exclusive:  false,
		AutoAck:    false,
	}

	for _, opt := range options {
		opts = opt(opts)
	}

	c.mu.RLock()
	consumeChannel := c.consumeChannel
	c.mu.RUnlock()

	err := consumeChannel.ExchangeDeclare(
		exchange,
		// topic is a type of exchange that allows routing messages to different queue's bases on a routing key
		"topic",
		// Durable and Non-Auto-Deleted exchanges will survive server restarts and remain
		// declared when there are no remaining bindings.
		opts.Durable,
		opts.AutoDelete,
		// Non-Internal exchange's accept direct publishing
		opts.Internal,
		// Nowait: We set this to false as we want to wait for a server response
		// to check whether the exchange was created succesfully
		opts.Wait,
		nil,
	)
	if err != nil {
		return nil, err
	}

	queue, err := consumeChannel.QueueDeclare(
		queueName,
		opts.Durable,
		opts.AutoDelete,
		// None-Exclusive means other consumers can consume from this queue.
		// Messages are load balanced between the payout workers.
		opts.Exclusive,
		opts.Wait,
		// Failed messages are not requeued, the limit guards against
		// redelivery loops anyway.
		amqp.Table{
			"delivery-limit": 10,
		},
	)
	if err != nil {
		return nil, err
	}

	for _, routingKey := range routingKeys {
		err = consumeChannel.QueueBind(queue.Name, routingKey, exchange, opts.Wait, nil)
		if err != nil {
			return nil, err
		}
	}

	return consumeChannel.Consume(
		queue.Name,
		"",
		opts.AutoAck,
		opts.Exclusive,
		false,
		opts.Wait,
		nil,
	)
}

func (c *defaultAMQPCLient) PublishWithContext(ctx context.Context, exchange string, key string, mandatory bool, immediate bool, msg amqp.Publishing) error {
	if c.reconFlag.Load() {
		expontentialBackoff := backoff.NewExponentialBackOff()
		expontentialBackoff.MaxInterval = time.Second * 10
		expontentialBackoff.MaxElapsedTime = time.Minute

		err := backoff.Retry(func() error {
			if c.reconFlag.Load() {
				return errors.New("amqp: trying to publish during reconnect")
			}

			return nil
		}, backoff.WithContext(expontentialBackoff, ctx))

		if err != nil {
			return err
		}
	}

	c.mu.RLock()
	publishChannel := c.publishChannel
	c.mu.RUnlock()

	return publishChannel.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}
