package project

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("project not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetBudget returns the project's budget in minor units
func (r *Repository) GetBudget(ctx context.Context, id uuid.UUID) (int64, error) {
	var budget int64
	err := r.db.GetContext(ctx, &budget, `SELECT budget FROM projects WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return budget, err
}

// MarkCompleted transitions the project to completed. Completion is a
// one-way business event; calling it on an already completed project is
// harmless.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status <> 'completed'
	`, id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		log.Info().Str("project_id", id.String()).Msg("project budget reached, marked completed")
	}
	return nil
}
