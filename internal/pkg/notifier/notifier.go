package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventType identifies the kind of payment event being announced
type EventType string

const (
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentRefunded  EventType = "payment.refunded"
)

// Channel is the Redis pub/sub channel the notification subsystem listens on
const Channel = "payments.events"

// Event is the payload published for every settled payment outcome
type Event struct {
	Type       EventType `json:"type"`
	PaymentID  uuid.UUID `json:"payment_id"`
	UserID     uuid.UUID `json:"user_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier publishes payment events for the notification subsystem.
// Delivery is fire-and-forget: publishing never blocks the payment path and
// failures are only logged.
type Notifier struct {
	redis *redis.Client
}

// New creates a notifier. A nil redis client disables publishing.
func New(redisClient *redis.Client) *Notifier {
	return &Notifier{redis: redisClient}
}

// Publish announces a payment event without blocking the caller
func (n *Notifier) Publish(event Event) {
	if n == nil || n.redis == nil {
		log.Debug().Str("type", string(event.Type)).Msg("notifier disabled, event dropped")
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		payload, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Msg("failed to encode payment event")
			return
		}

		if err := n.redis.Publish(ctx, Channel, payload).Err(); err != nil {
			log.Warn().
				Err(err).
				Str("type", string(event.Type)).
				Str("payment_id", event.PaymentID.String()).
				Msg("failed to publish payment event")
			return
		}

		log.Debug().
			Str("type", string(event.Type)).
			Str("payment_id", event.PaymentID.String()).
			Msg("payment event published")
	}()
}
