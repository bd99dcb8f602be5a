package payment

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/devlink/devlink-api/internal/pkg/notifier"
)

// Service orchestrates payment creation, reconciliation and refunds over
// the channel adapters. All gateway and store dependencies are injected;
// the service holds no mutable state of its own.
type Service struct {
	repo          Repository
	adapters      map[Channel]Adapter
	users         UserDirectory
	projects      ProjectStore
	notifier      Notifier
	rewardRateBps int64
}

// NewService creates payment service
func NewService(repo Repository, users UserDirectory, projects ProjectStore, n Notifier, rewardRateBps int64, adapters ...Adapter) *Service {
	byChannel := make(map[Channel]Adapter, len(adapters))
	for _, a := range adapters {
		byChannel[a.Channel()] = a
	}
	return &Service{
		repo:          repo,
		adapters:      byChannel,
		users:         users,
		projects:      projects,
		notifier:      n,
		rewardRateBps: rewardRateBps,
	}
}

// CreatePaymentRequest carries a validated payment creation request
type CreatePaymentRequest struct {
	PayerID     uuid.UUID
	PayeeID     *uuid.UUID
	ProjectID   *uuid.UUID
	Amount      int64
	Currency    string
	Channel     Channel
	Description string
}

// PaymentHandle is what the caller gets back: the record id plus the
// channel-specific next step
type PaymentHandle struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Channel   Channel   `json:"channel"`
	Status    Status    `json:"status"`
	Handle    Handle    `json:"handle"`
}

// CreatePayment persists a new payment attempt and dispatches it to the
// matching channel adapter. An adapter failure leaves the record pending
// with no external reference; a retry by the caller creates a fresh
// record, it never reuses this one.
func (s *Service) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentHandle, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	adapter, ok := s.adapters[req.Channel]
	if !ok {
		return nil, ErrInvalidChannel
	}
	if req.Channel == ChannelWallet && req.PayeeID == nil {
		return nil, ErrPayeeRequired
	}

	p := &Payment{
		ID:       uuid.New(),
		PayerID:  req.PayerID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Channel:  req.Channel,
		Status:   StatusPending,
	}
	if req.PayeeID != nil {
		p.PayeeID = uuid.NullUUID{UUID: *req.PayeeID, Valid: true}
	}
	if req.ProjectID != nil {
		p.ProjectID = uuid.NullUUID{UUID: *req.ProjectID, Valid: true}
	}
	if req.Description != "" {
		p.Description = sql.NullString{String: req.Description, Valid: true}
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	res, err := adapter.Initiate(ctx, p)
	if err != nil {
		log.Warn().
			Err(err).
			Str("payment_id", p.ID.String()).
			Str("channel", string(p.Channel)).
			Msg("payment initiation failed, record left pending")
		return nil, err
	}

	if err := s.repo.AttachExternalRef(ctx, p.ID, res.ExternalRef, res.NextStatus); err != nil {
		log.Error().
			Err(err).
			Str("payment_id", p.ID.String()).
			Str("external_ref", res.ExternalRef).
			Msg("failed to attach external reference")
		return nil, err
	}

	log.Info().
		Str("payment_id", p.ID.String()).
		Str("channel", string(p.Channel)).
		Str("external_ref", res.ExternalRef).
		Int64("amount", p.Amount).
		Msg("payment initiated")

	// The wallet channel settles inside Initiate, so completion effects
	// fire here instead of waiting for a confirmation that never comes
	if res.NextStatus == StatusCompleted {
		p.Status = StatusCompleted
		p.ExternalRef = sql.NullString{String: res.ExternalRef, Valid: true}
		s.applyCompletionEffects(ctx, p)
	}

	return &PaymentHandle{
		PaymentID: p.ID,
		Channel:   p.Channel,
		Status:    res.NextStatus,
		Handle:    res.Handle,
	}, nil
}

// GetPaymentHistory returns the payer's payment records, newest first
func (s *Service) GetPaymentHistory(ctx context.Context, payerID uuid.UUID, limit, offset int) ([]*Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByPayer(ctx, payerID, limit, offset)
}

// applyCompletionEffects fires the downstream effects of a completed
// payment: payee token reward, project completion check and the success
// notification. Callers must only invoke this after winning the status
// transition, which is what bounds each effect to at most once per
// payment. Effect failures are logged, never propagated: the money has
// already settled.
func (s *Service) applyCompletionEffects(ctx context.Context, p *Payment) {
	if p.PayeeID.Valid {
		reward := p.Amount * s.rewardRateBps / 10000
		if reward > 0 {
			if err := s.users.CreditTokens(ctx, p.PayeeID.UUID, reward); err != nil {
				log.Error().
					Err(err).
					Str("payment_id", p.ID.String()).
					Str("payee_id", p.PayeeID.UUID.String()).
					Int64("reward", reward).
					Msg("failed to credit payee reward tokens")
			}
		}
	}

	if p.ProjectID.Valid {
		s.checkProjectCompletion(ctx, p.ProjectID.UUID)
	}

	s.notifier.Publish(notifier.Event{
		Type:      notifier.EventPaymentSucceeded,
		PaymentID: p.ID,
		UserID:    p.PayerID,
		Amount:    p.Amount,
		Currency:  p.Currency,
	})
}

// checkProjectCompletion recomputes the project's completed-payment sum
// and marks the project completed once it meets the budget
func (s *Service) checkProjectCompletion(ctx context.Context, projectID uuid.UUID) {
	sum, err := s.repo.SumCompletedByProject(ctx, projectID)
	if err != nil {
		log.Error().Err(err).Str("project_id", projectID.String()).Msg("failed to sum project payments")
		return
	}

	budget, err := s.projects.GetBudget(ctx, projectID)
	if err != nil {
		log.Error().Err(err).Str("project_id", projectID.String()).Msg("failed to load project budget")
		return
	}

	if sum >= budget {
		if err := s.projects.MarkCompleted(ctx, projectID); err != nil {
			log.Error().Err(err).Str("project_id", projectID.String()).Msg("failed to mark project completed")
		}
	}
}
