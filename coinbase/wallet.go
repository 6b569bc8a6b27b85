package coinbase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

type address struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// OAuthWalletFactory builds wallet clients for users who connected coinbase with OAuth.
type OAuthWalletFactory struct {
	config *Config
	oauth  *oauth2.Config
}

func NewOAuthWalletFactory(config *Config) *OAuthWalletFactory {
	return &OAuthWalletFactory{
		config: config,
		oauth: &oauth2.Config{
			ClientID:     config.OAuthClientID,
			ClientSecret: config.OAuthClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  config.OAuthAuthURL,
				TokenURL: config.OAuthTokenURL,
			},
			Scopes: []string{"wallet:accounts:read", "wallet:addresses:create"},
		},
	}
}

func (f *OAuthWalletFactory) NewWalletClient(ctx context.Context, token *oauth2.Token) WalletClient {
	ts := f.oauth.TokenSource(ctx, token)
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = time.Duration(f.config.Timeout) * time.Second
	return &oauthWallet{
		tokenSource: ts,
		http: resty.NewWithClient(httpClient).
			SetBaseURL(f.config.APIURL).
			SetHeader("Content-Type", "application/json").
			SetHeader("CB-VERSION", f.config.APIVersion),
	}
}

type oauthWallet struct {
	tokenSource oauth2.TokenSource
	http        *resty.Client
}

// NewAddress creates a fresh receiving address on the primary account of the user.
func (w *oauthWallet) NewAddress(ctx context.Context) (string, error) {
	acc := &account{}
	resp, err := w.http.R().SetContext(ctx).Execute(http.MethodGet, "/v2/accounts/primary")
	if err != nil {
		return "", err
	}
	if err := decodeResponse(resp, acc); err != nil {
		return "", err
	}

	addr := &address{}
	resp, err = w.http.R().
		SetContext(ctx).
		SetBody(map[string]string{}).
		Execute(http.MethodPost, fmt.Sprintf("/v2/accounts/%s/addresses", acc.ID))
	if err != nil {
		return "", err
	}
	if err := decodeResponse(resp, addr); err != nil {
		return "", err
	}
	return addr.Address, nil
}

func (w *oauthWallet) Token() (*oauth2.Token, error) {
	return w.tokenSource.Token()
}
