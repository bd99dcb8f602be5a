package payment

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/devlink/devlink-api/internal/pkg/notifier"
)

// Reconcile applies an asynchronous confirmation from a channel to the
// payment it references. Webhook delivery is at-least-once, so the same
// confirmation may arrive many times and out of order: a replay of an
// already-applied terminal status is a no-op, and any other mutation of a
// settled record is rejected with ErrInvalidStateTransition. Confirmations
// never create records; an unknown reference is ErrUnknownPayment.
func (s *Service) Reconcile(ctx context.Context, channel Channel, externalRef string, newStatus Status, settlementID string) error {
	if newStatus != StatusCompleted && newStatus != StatusFailed {
		return ErrInvalidStateTransition
	}

	p, err := s.repo.GetByExternalRef(ctx, channel, externalRef)
	if err != nil {
		return err
	}
	if p == nil {
		log.Warn().
			Str("channel", string(channel)).
			Str("external_ref", externalRef).
			Msg("confirmation for unknown payment")
		return ErrUnknownPayment
	}

	// Idempotent replay of a confirmation already applied
	if p.Status == newStatus {
		log.Debug().
			Str("payment_id", p.ID.String()).
			Str("status", string(newStatus)).
			Msg("duplicate confirmation ignored")
		return nil
	}

	if !CanTransition(p.Status, newStatus) {
		log.Warn().
			Str("payment_id", p.ID.String()).
			Str("from", string(p.Status)).
			Str("to", string(newStatus)).
			Msg("confirmation rejected, record already settled")
		return ErrInvalidStateTransition
	}

	applied, err := s.repo.Transition(ctx, p.ID, p.Status, newStatus, settlementID)
	if err != nil {
		return err
	}
	if !applied {
		// Another delivery of the same confirmation won the race; re-read
		// to distinguish a duplicate from a conflicting transition
		current, err := s.repo.GetByID(ctx, p.ID)
		if err != nil {
			return err
		}
		if current != nil && current.Status == newStatus {
			return nil
		}
		return ErrInvalidStateTransition
	}

	log.Info().
		Str("payment_id", p.ID.String()).
		Str("channel", string(channel)).
		Str("status", string(newStatus)).
		Str("settlement_id", settlementID).
		Msg("payment reconciled")

	// Effects fire only on the delivery that won the transition
	switch newStatus {
	case StatusCompleted:
		s.applyCompletionEffects(ctx, p)
	case StatusFailed:
		s.notifier.Publish(notifier.Event{
			Type:      notifier.EventPaymentFailed,
			PaymentID: p.ID,
			UserID:    p.PayerID,
			Amount:    p.Amount,
			Currency:  p.Currency,
		})
	}

	return nil
}
