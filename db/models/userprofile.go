package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserProfile : the payout settings of a user
type UserProfile struct {
	UserID        int64      `bun:",pk"`
	DisplayName   string     `bun:",nullzero"`
	PaymentMethod string     `bun:",nullzero"`
	BTCAddress    string     `bun:"btc_address,nullzero"`
	BTCWalletID   int64      `bun:"btc_wallet_id,nullzero"`
	BTCWallet     *BTCWallet `bun:"rel:belongs-to,join:btc_wallet_id=id"`
}

// BTCWallet : OAuth credentials for a hosted wallet
type BTCWallet struct {
	bun.BaseModel `bun:"table:btc_wallets"`

	ID          int64     `bun:",pk,autoincrement"`
	UserID      int64     `bun:",notnull"`
	Provider    string    `bun:",notnull"`
	Token       string    `bun:",notnull"`
	TokenSecret string    `bun:",nullzero"`
	Expiry      time.Time `bun:",nullzero"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}
