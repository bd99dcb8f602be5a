package wallet

import "errors"

var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInsufficientFunds       = errors.New("insufficient wallet balance")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrRecipientWalletNotFound = errors.New("recipient wallet not found")
	ErrWalletInactive          = errors.New("wallet is deactivated")
	ErrCurrencyMismatch        = errors.New("wallet currency mismatch")
	ErrSelfTransfer            = errors.New("cannot transfer to own wallet")
)
