package common

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidFee            = errors.New("invalid fee")
	ErrUnresolvedDestination = errors.New("no payout destination configured")
	ErrPersistenceConflict   = errors.New("persistence conflict")
	ErrProviderTransfer      = errors.New("provider transfer failed")
)
