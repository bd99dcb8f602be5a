package wallet

import (
	"bytes"
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db              *sqlx.DB
	defaultCurrency string
}

func NewRepository(db *sqlx.DB, defaultCurrency string) *Repository {
	return &Repository{db: db, defaultCurrency: defaultCurrency}
}

// EnsureWallet lazily creates the user's wallet. Called only on explicit
// balance queries for the querying user, never as a transfer side effect.
func (r *Repository) EnsureWallet(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, currency, active)
		VALUES ($1, 0, $2, true)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, r.defaultCurrency)
	return err
}

// GetByUserID returns the user's wallet, creating it lazily
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if err := r.EnsureWallet(ctx, userID); err != nil {
		return nil, err
	}

	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT user_id, balance, currency, active, updated_at
		FROM wallets WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Deactivate flags the wallet inactive. Wallets are never deleted.
func (r *Repository) Deactivate(ctx context.Context, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wallets SET active = false, updated_at = now() WHERE user_id = $1
	`, userID)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// ListEntries returns the user's ledger entries, newest first
func (r *Repository) ListEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Entry, error) {
	var entries []Entry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, amount, kind, reference_id, created_at
		FROM wallet_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return entries, err
}

// Transfer debits the payer and credits the payee inside one transaction.
// Both wallet rows are locked FOR UPDATE in deterministic id order so two
// opposite-direction transfers between the same pair cannot deadlock.
// Neither wallet is touched on any precondition failure, and the recipient
// wallet is never auto-created here.
func (r *Repository) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount int64, referenceID string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fromUserID == toUserID {
		return ErrSelfTransfer
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	first, second := fromUserID, toUserID
	if bytes.Compare(toUserID[:], fromUserID[:]) < 0 {
		first, second = toUserID, fromUserID
	}

	wallets := map[uuid.UUID]*Wallet{}
	for _, id := range []uuid.UUID{first, second} {
		w, err := lockWallet(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			if id == toUserID {
				return ErrRecipientWalletNotFound
			}
			return ErrWalletNotFound
		}
		if err != nil {
			return err
		}
		wallets[id] = w
	}

	from := wallets[fromUserID]
	to := wallets[toUserID]

	if !from.Active {
		return ErrWalletInactive
	}
	if from.Currency != to.Currency {
		return ErrCurrencyMismatch
	}
	if from.Balance < amount {
		return ErrInsufficientFunds
	}

	if err := updateBalance(ctx, tx, fromUserID, from.Balance-amount); err != nil {
		return err
	}
	if err := updateBalance(ctx, tx, toUserID, to.Balance+amount); err != nil {
		return err
	}

	if err := insertEntry(ctx, tx, fromUserID, -amount, EntryKindDebit, referenceID); err != nil {
		return err
	}
	if err := insertEntry(ctx, tx, toUserID, amount, EntryKindCredit, referenceID); err != nil {
		return err
	}

	return tx.Commit()
}

func lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := tx.GetContext(ctx, &w, `
		SELECT user_id, balance, currency, active, updated_at
		FROM wallets WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func updateBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = $1, updated_at = now() WHERE user_id = $2
	`, balance, userID)
	return err
}

func insertEntry(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int64, kind EntryKind, referenceID string) error {
	var ref interface{}
	if referenceID != "" {
		ref = referenceID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_entries (id, user_id, amount, kind, reference_id)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), userID, amount, string(kind), ref)
	return err
}
