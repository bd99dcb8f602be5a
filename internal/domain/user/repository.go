package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("user not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetByID returns the directory record for a user
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		SELECT id, contact_email, contact_phone, tokens, created_at
		FROM users WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreditTokens grants reward tokens to a user
func (r *Repository) CreditTokens(ctx context.Context, id uuid.UUID, amount int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET tokens = tokens + $1 WHERE id = $2
	`, amount, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	log.Info().Str("user_id", id.String()).Int64("amount", amount).Msg("tokens credited")
	return nil
}
