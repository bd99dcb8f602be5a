package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetWallet returns the user's wallet, creating it lazily on first query
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// Transfer moves amount from one wallet to another atomically. The debit
// and the credit either both commit or neither does.
func (s *Service) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount int64, referenceID string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := s.repo.Transfer(ctx, fromUserID, toUserID, amount, referenceID); err != nil {
		return err
	}
	log.Info().
		Str("from", fromUserID.String()).
		Str("to", toUserID.String()).
		Int64("amount", amount).
		Str("reference_id", referenceID).
		Msg("wallet transfer applied")
	return nil
}

// ListEntries returns the user's ledger history
func (s *Service) ListEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListEntries(ctx, userID, limit, offset)
}

// Deactivate disables a wallet without deleting its history
func (s *Service) Deactivate(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, userID); err != nil {
		return err
	}
	log.Info().Str("user_id", userID.String()).Msg("wallet deactivated")
	return nil
}
