package service

import (
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunga/taskpay/coinbase"
	"github.com/tunga/taskpay/coinbase/mock_coinbase"
	"github.com/tunga/taskpay/common"
	"github.com/tunga/taskpay/db/models"
	"golang.org/x/oauth2"
)

func TestResolveDestinationFromAddress(t *testing.T) {
	store := newMemStore()
	store.profiles[100] = models.UserProfile{UserID: 100, PaymentMethod: common.PaymentMethodBTCAddress, BTCAddress: addressA}
	store.profiles[101] = models.UserProfile{UserID: 101, PaymentMethod: common.PaymentMethodBTCAddress, BTCAddress: addressB}
	store.profiles[102] = models.UserProfile{UserID: 102, PaymentMethod: common.PaymentMethodBTCAddress, BTCAddress: "not-an-address"}
	store.profiles[103] = models.UserProfile{UserID: 103, PaymentMethod: common.PaymentMethodBTCAddress}
	store.profiles[104] = models.UserProfile{UserID: 104, PaymentMethod: common.PaymentMethodMobileMoney}
	resolver := &ProfileDestinationResolver{Store: store, Network: &chaincfg.MainNetParams}
	ctx := context.Background()

	address, err := resolver.ResolveDestination(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, addressA, address)

	address, err = resolver.ResolveDestination(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, addressB, address)

	for _, userID := range []int64{102, 103, 104, 404} {
		_, err = resolver.ResolveDestination(ctx, userID)
		assert.ErrorIs(t, err, common.ErrUnresolvedDestination, "user %d", userID)
	}
}

func TestResolveDestinationRejectsOtherNetwork(t *testing.T) {
	store := newMemStore()
	store.profiles[100] = models.UserProfile{UserID: 100, PaymentMethod: common.PaymentMethodBTCAddress, BTCAddress: addressA}
	resolver := &ProfileDestinationResolver{Store: store, Network: &chaincfg.TestNet3Params}

	_, err := resolver.ResolveDestination(context.Background(), 100)
	assert.ErrorIs(t, err, common.ErrUnresolvedDestination)
	assert.Contains(t, err.Error(), "testnet3")
}

func TestResolveDestinationFromWallet(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := newMemStore()
	store.profiles[100] = models.UserProfile{UserID: 100, PaymentMethod: common.PaymentMethodBTCWallet, BTCWalletID: 3}
	store.wallets[3] = models.BTCWallet{ID: 3, UserID: 100, Provider: common.BTCWalletProviderCoinbase, Token: "old", TokenSecret: "refresh"}

	factory := mock_coinbase.NewMockWalletClientFactory(ctrl)
	wallet := mock_coinbase.NewMockWalletClient(ctrl)
	factory.EXPECT().NewWalletClient(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, token *oauth2.Token) coinbase.WalletClient {
		assert.Equal(t, "old", token.AccessToken)
		assert.Equal(t, "refresh", token.RefreshToken)
		return wallet
	})
	wallet.EXPECT().NewAddress(gomock.Any()).Return(addressB, nil)
	wallet.EXPECT().Token().Return(&oauth2.Token{AccessToken: "new", RefreshToken: "refresh-2"}, nil)

	resolver := &ProfileDestinationResolver{Store: store, Wallets: factory, Network: &chaincfg.MainNetParams}
	address, err := resolver.ResolveDestination(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, addressB, address)
	assert.Equal(t, "new", store.wallets[3].Token)
	assert.Equal(t, "refresh-2", store.wallets[3].TokenSecret)
}

func TestResolveDestinationWalletErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := newMemStore()
	store.profiles[100] = models.UserProfile{UserID: 100, PaymentMethod: common.PaymentMethodBTCWallet, BTCWalletID: 3}
	store.wallets[3] = models.BTCWallet{ID: 3, UserID: 100, Provider: common.BTCWalletProviderCoinbase, Token: "old"}
	store.profiles[101] = models.UserProfile{UserID: 101, PaymentMethod: common.PaymentMethodBTCWallet, BTCWalletID: 4}
	store.wallets[4] = models.BTCWallet{ID: 4, UserID: 101, Provider: "blockchain.info", Token: "t"}

	factory := mock_coinbase.NewMockWalletClientFactory(ctrl)
	wallet := mock_coinbase.NewMockWalletClient(ctrl)
	factory.EXPECT().NewWalletClient(gomock.Any(), gomock.Any()).Return(wallet)
	wallet.EXPECT().NewAddress(gomock.Any()).Return("", errors.New("token revoked"))

	resolver := &ProfileDestinationResolver{Store: store, Wallets: factory, Network: &chaincfg.MainNetParams}
	_, err := resolver.ResolveDestination(context.Background(), 100)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrUnresolvedDestination)

	_, err = resolver.ResolveDestination(context.Background(), 101)
	assert.ErrorIs(t, err, common.ErrUnresolvedDestination)
}

func TestNetworkParams(t *testing.T) {
	params, err := NetworkParams("")
	require.NoError(t, err)
	assert.Equal(t, chaincfg.MainNetParams.Name, params.Name)

	params, err = NetworkParams("testnet")
	require.NoError(t, err)
	assert.Equal(t, chaincfg.TestNet3Params.Name, params.Name)

	_, err = NetworkParams("litecoin")
	assert.Error(t, err)
}
