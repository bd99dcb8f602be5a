package payment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidChannel         = errors.New("unsupported payment channel")
	ErrPayeeRequired          = errors.New("payee is required for wallet payments")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrUnknownPayment         = errors.New("no payment matches the external reference")
	ErrDuplicateExternalRef   = errors.New("external reference already attached to another payment")
	ErrInvalidStateTransition = errors.New("invalid payment state transition")
	ErrAlreadyRefunded        = errors.New("payment already refunded")
	ErrRefundExceedsAmount    = errors.New("refund amount exceeds original payment")
	ErrRefundFailed           = errors.New("refund failed")
)

// GatewayError wraps a failure reported by an external channel during
// initiation or reversal. The external side may still have succeeded on a
// timeout, so callers must not treat it as proof of failure.
type GatewayError struct {
	Channel Channel
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error on channel %s: %v", e.Channel, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
