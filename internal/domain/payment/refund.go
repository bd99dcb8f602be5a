package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/devlink/devlink-api/internal/pkg/notifier"
)

// RefundResult reports the outcome of a refund
type RefundResult struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	Amount      int64     `json:"amount"`
	ReversalRef string    `json:"reversal_ref"`
	Status      Status    `json:"status"`
}

// Refund reverses a completed payment through the same channel it settled
// on. Amount defaults to the full original amount and may not exceed it.
// A reversal failure leaves the record completed and untouched; the record
// only moves to refunded after the channel accepted the reversal.
func (s *Service) Refund(ctx context.Context, paymentID uuid.UUID, amount int64, reason string) (*RefundResult, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPaymentNotFound
	}

	if p.Status == StatusRefunded {
		return nil, ErrAlreadyRefunded
	}
	if p.Status != StatusCompleted {
		return nil, ErrInvalidStateTransition
	}

	if amount == 0 {
		amount = p.Amount
	}
	if amount < 0 || amount > p.Amount {
		return nil, ErrRefundExceedsAmount
	}

	adapter, ok := s.adapters[p.Channel]
	if !ok {
		return nil, ErrInvalidChannel
	}

	reversalRef, err := adapter.Reverse(ctx, p, amount, reason)
	if err != nil {
		log.Warn().
			Err(err).
			Str("payment_id", p.ID.String()).
			Str("channel", string(p.Channel)).
			Int64("amount", amount).
			Msg("refund reversal failed, record unchanged")
		return nil, fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}

	applied, err := s.repo.MarkRefunded(ctx, p.ID, RefundMetadata{
		Amount:      amount,
		Reason:      reason,
		ReversalRef: reversalRef,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent refund won; the reversal above already moved money,
		// which an operator has to reconcile against the channel
		log.Error().
			Str("payment_id", p.ID.String()).
			Str("reversal_ref", reversalRef).
			Msg("refund lost record race after reversal was issued")
		return nil, ErrAlreadyRefunded
	}

	log.Info().
		Str("payment_id", p.ID.String()).
		Str("channel", string(p.Channel)).
		Int64("amount", amount).
		Str("reversal_ref", reversalRef).
		Msg("payment refunded")

	s.notifier.Publish(notifier.Event{
		Type:      notifier.EventPaymentRefunded,
		PaymentID: p.ID,
		UserID:    p.PayerID,
		Amount:    amount,
		Currency:  p.Currency,
	})

	return &RefundResult{
		PaymentID:   p.ID,
		Amount:      amount,
		ReversalRef: reversalRef,
		Status:      StatusRefunded,
	}, nil
}
