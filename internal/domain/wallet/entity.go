package wallet

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind marks which side of a transfer a ledger row records
type EntryKind string

const (
	EntryKindDebit  EntryKind = "debit"
	EntryKindCredit EntryKind = "credit"
)

// Wallet holds a user's internal balance in minor currency units.
// Wallets are created lazily on the owner's first balance query and are
// never deleted, only deactivated.
type Wallet struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	Currency  string    `db:"currency" json:"currency"`
	Active    bool      `db:"active" json:"active"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Entry is one side of a transfer. Every transfer writes a debit row for
// the payer and a credit row for the payee inside the same transaction.
type Entry struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Kind        EntryKind `db:"kind" json:"kind"`
	ReferenceID *string   `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
