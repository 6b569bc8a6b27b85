package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tunga/taskpay/coinbase"
	"github.com/tunga/taskpay/common"
	"github.com/tunga/taskpay/db/models"
	"golang.org/x/oauth2"
)

// DestinationResolver finds the address a user is paid out to.
// It returns common.ErrUnresolvedDestination when the user has none configured.
type DestinationResolver interface {
	ResolveDestination(ctx context.Context, userID int64) (string, error)
}

type ProfileDestinationResolver struct {
	Store   Store
	Wallets coinbase.WalletClientFactory
	Network *chaincfg.Params
}

func NetworkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet3", "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	}
	return nil, fmt.Errorf("unknown bitcoin network %q", name)
}

func (r *ProfileDestinationResolver) ResolveDestination(ctx context.Context, userID int64) (string, error) {
	profile, err := r.Store.GetUserProfile(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return "", common.ErrUnresolvedDestination
	}
	if err != nil {
		return "", err
	}

	switch profile.PaymentMethod {
	case common.PaymentMethodBTCAddress:
		return r.validAddress(profile.BTCAddress)
	case common.PaymentMethodBTCWallet:
		if profile.BTCWallet == nil || profile.BTCWallet.Provider != common.BTCWalletProviderCoinbase || r.Wallets == nil {
			return "", common.ErrUnresolvedDestination
		}
		return r.walletAddress(ctx, profile.BTCWallet)
	}
	return "", common.ErrUnresolvedDestination
}

func (r *ProfileDestinationResolver) validAddress(address string) (string, error) {
	if address == "" {
		return "", common.ErrUnresolvedDestination
	}
	decoded, err := btcutil.DecodeAddress(address, r.Network)
	if err != nil || !decoded.IsForNet(r.Network) {
		return "", fmt.Errorf("address %q is not valid on %s: %w", address, r.Network.Name, common.ErrUnresolvedDestination)
	}
	return decoded.EncodeAddress(), nil
}

// walletAddress asks the hosted wallet for a fresh receiving address.
// A refreshed OAuth token is stored back on the wallet.
func (r *ProfileDestinationResolver) walletAddress(ctx context.Context, wallet *models.BTCWallet) (string, error) {
	token := &oauth2.Token{
		AccessToken:  wallet.Token,
		RefreshToken: wallet.TokenSecret,
		Expiry:       wallet.Expiry,
	}
	client := r.Wallets.NewWalletClient(ctx, token)
	address, err := client.NewAddress(ctx)
	if err != nil {
		return "", fmt.Errorf("creating wallet address for user %d: %w", wallet.UserID, err)
	}

	current, err := client.Token()
	if err == nil && current.AccessToken != wallet.Token {
		wallet.Token = current.AccessToken
		if current.RefreshToken != "" {
			wallet.TokenSecret = current.RefreshToken
		}
		wallet.Expiry = current.Expiry
		if err := r.Store.UpdateBTCWallet(ctx, wallet); err != nil {
			return "", fmt.Errorf("storing refreshed wallet token for user %d: %w", wallet.UserID, err)
		}
	}
	return r.validAddress(address)
}
