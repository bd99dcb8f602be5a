package payment

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents payment lifecycle status
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// Channel represents a money-movement channel
type Channel string

const (
	ChannelCard         Channel = "card"
	ChannelPeer         Channel = "peer"
	ChannelMobileMoney  Channel = "mobile_money"
	ChannelBankTransfer Channel = "bank_transfer"
	ChannelWallet       Channel = "wallet"
)

// transitions is the only legal set of status edges. Everything else,
// including any mutation of a settled record except completed→refunded,
// is rejected.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusRefunded},
}

// CanTransition reports whether moving from one status to another is legal
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status ends the payment lifecycle.
// Completed is terminal for confirmations but still admits a refund.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRefunded
}

// JSONRawMessage handles NULL json fields from DB
type JSONRawMessage []byte

func (j *JSONRawMessage) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("unsupported type: %T", src)
	}
	return nil
}

func (j JSONRawMessage) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// Payment is the lifecycle record of one payment attempt. Amount, currency
// and channel are immutable after creation; only status, external reference
// and metadata mutate.
type Payment struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	PayerID      uuid.UUID      `db:"payer_id" json:"payer_id"`
	PayeeID      uuid.NullUUID  `db:"payee_id" json:"payee_id,omitempty"`
	ProjectID    uuid.NullUUID  `db:"project_id" json:"project_id,omitempty"`
	Amount       int64          `db:"amount" json:"amount"`
	Currency     string         `db:"currency" json:"currency"`
	Channel      Channel        `db:"channel" json:"channel"`
	Status       Status         `db:"status" json:"status"`
	ExternalRef  sql.NullString `db:"external_ref" json:"external_ref,omitempty"`
	SettlementID sql.NullString `db:"settlement_id" json:"settlement_id,omitempty"`
	Description  sql.NullString `db:"description" json:"description,omitempty"`
	Metadata     JSONRawMessage `db:"metadata" json:"metadata,omitempty"`
	CompletedAt  sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
	FailedAt     sql.NullTime   `db:"failed_at" json:"failed_at,omitempty"`
	RefundedAt   sql.NullTime   `db:"refunded_at" json:"refunded_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// IsSettled reports whether funds have confirmed moved
func (p *Payment) IsSettled() bool {
	return p.Status == StatusCompleted || p.Status == StatusRefunded
}
