package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseUri                       string          `envconfig:"DATABASE_URI" required:"true"`
	DatabaseMaxConns                  int             `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns              int             `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime           int             `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes
	DatabaseTimeout                   int             `envconfig:"DATABASE_TIMEOUT" default:"60"`             // 60 seconds
	SentryDSN                         string          `envconfig:"SENTRY_DSN"`
	DatadogAgentUrl                   string          `envconfig:"DATADOG_AGENT_URL"`
	SentryTracesSampleRate            float64         `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	LogFilePath                       string          `envconfig:"LOG_FILE_PATH"`
	TungaPercentageDev                decimal.Decimal `envconfig:"TUNGA_PERCENTAGE_DEV" default:"34.21"`
	TungaPercentagePM                 decimal.Decimal `envconfig:"TUNGA_PERCENTAGE_PM" default:"48.71"`
	PMTimePercentage                  decimal.Decimal `envconfig:"PM_TIME_PERCENTAGE" default:"15"`
	BitonicPaymentCostPercentage      decimal.Decimal `envconfig:"BITONIC_PAYMENT_COST_PERCENTAGE" default:"3"`
	BankTransferPaymentCostPercentage decimal.Decimal `envconfig:"BANK_TRANSFER_PAYMENT_COST_PERCENTAGE" default:"5.5"`
	ExtraProcessingRates              RateMap         `envconfig:"EXTRA_PROCESSING_RATES"`
	BTCNetwork                        string          `envconfig:"BTC_NETWORK" default:"mainnet"`
	MaxTransferAttempts               int             `envconfig:"MAX_TRANSFER_ATTEMPTS" default:"5"`         // 0 retries forever
	DistributionInterval              int             `envconfig:"DISTRIBUTION_INTERVAL" default:"300"`       // in seconds
	ReconciliationInterval            int             `envconfig:"RECONCILIATION_INTERVAL" default:"600"`     // in seconds
	DistributionConcurrency           int             `envconfig:"DISTRIBUTION_CONCURRENCY" default:"4"`
	PayoutNetOfPlatformFee            bool            `envconfig:"PAYOUT_NET_OF_PLATFORM_FEE" default:"false"`
	WebhookUrl                        string          `envconfig:"WEBHOOK_URL"`
	RabbitMQUri                       string          `envconfig:"RABBITMQ_URI"`
	RabbitMQTaskExchange              string          `envconfig:"RABBITMQ_TASK_EXCHANGE" default:"tunga_task"`
	RabbitMQNotificationExchange      string          `envconfig:"RABBITMQ_NOTIFICATION_EXCHANGE" default:"tunga_notification"`
	RabbitMQTaskConsumerQueueName     string          `envconfig:"RABBITMQ_TASK_CONSUMER_QUEUE_NAME" default:"taskpay_task_consumer"`
}

// ProcessingRates returns the payment processing cost per task payment method, in percent.
// Methods that are not listed cost nothing.
func (c *Config) ProcessingRates() RateMap {
	rates := RateMap{
		"bitonic": c.BitonicPaymentCostPercentage,
		"bank":    c.BankTransferPaymentCostPercentage,
	}
	for method, rate := range c.ExtraProcessingRates {
		rates[method] = rate
	}
	return rates
}

// envconfig map decoder uses colon (:) as the default separator and can't parse decimals,
// so rates are given as "method=percent;method=percent"

type RateMap map[string]decimal.Decimal

func (rm *RateMap) Decode(value string) error {
	m := RateMap{}
	if value == "" {
		*rm = m
		return nil
	}
	for _, pair := range strings.Split(value, ";") {
		kvpair := strings.Split(pair, "=")
		if len(kvpair) != 2 {
			return fmt.Errorf("invalid map item: %q", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(kvpair[1]))
		if err != nil {
			return fmt.Errorf("invalid rate for %q: %w", kvpair[0], err)
		}
		m[strings.TrimSpace(kvpair[0])] = rate
	}
	*rm = m
	return nil
}
