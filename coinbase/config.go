package coinbase

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	APIURL            string  `envconfig:"COINBASE_API_URL" default:"https://api.coinbase.com"`
	APIKey            string  `envconfig:"COINBASE_API_KEY"`
	APISecret         string  `envconfig:"COINBASE_API_SECRET"`
	APIVersion        string  `envconfig:"COINBASE_API_VERSION" default:"2017-05-19"`
	AccountID         string  `envconfig:"COINBASE_ACCOUNT_ID"` // empty means the primary account
	OAuthClientID     string  `envconfig:"COINBASE_OAUTH_CLIENT_ID"`
	OAuthClientSecret string  `envconfig:"COINBASE_OAUTH_CLIENT_SECRET"`
	OAuthAuthURL      string  `envconfig:"COINBASE_OAUTH_AUTH_URL" default:"https://www.coinbase.com/oauth/authorize"`
	OAuthTokenURL     string  `envconfig:"COINBASE_OAUTH_TOKEN_URL" default:"https://api.coinbase.com/oauth/token"`
	RequestsPerSecond float64 `envconfig:"COINBASE_REQUESTS_PER_SECOND" default:"5"`
	MaxRetries        uint64  `envconfig:"COINBASE_MAX_RETRIES" default:"3"`
	Timeout           int     `envconfig:"COINBASE_TIMEOUT" default:"30"` // seconds
}

func LoadConfig() (c *Config, err error) {
	c = &Config{}
	err = envconfig.Process("", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}
