package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/devlink/devlink-api/internal/domain/wallet"
	"github.com/devlink/devlink-api/internal/middleware"
	"github.com/devlink/devlink-api/internal/pkg/response"
	"github.com/devlink/devlink-api/internal/pkg/validator"
)

// Handler handles payment HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates payment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createPaymentRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,currency"`
	Channel     string `json:"channel" validate:"required,channel"`
	PayeeID     string `json:"payee_id,omitempty" validate:"omitempty,uuid"`
	ProjectID   string `json:"project_id,omitempty" validate:"omitempty,uuid"`
	Description string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// Create handles POST /payments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	payerID := middleware.GetUserID(r.Context())
	if payerID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	svcReq := CreatePaymentRequest{
		PayerID:     payerID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Channel:     Channel(req.Channel),
		Description: req.Description,
	}
	if req.PayeeID != "" {
		payeeID, err := uuid.Parse(req.PayeeID)
		if err != nil {
			response.BadRequest(w, "invalid payee_id")
			return
		}
		svcReq.PayeeID = &payeeID
	}
	if req.ProjectID != "" {
		projectID, err := uuid.Parse(req.ProjectID)
		if err != nil {
			response.BadRequest(w, "invalid project_id")
			return
		}
		svcReq.ProjectID = &projectID
	}

	handle, err := h.service.CreatePayment(r.Context(), svcReq)
	if err != nil {
		h.writeCreateError(w, err)
		return
	}

	response.Created(w, handle)
}

func (h *Handler) writeCreateError(w http.ResponseWriter, err error) {
	var gatewayErr *GatewayError

	switch {
	case errors.Is(err, ErrInvalidChannel), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrPayeeRequired):
		response.BadRequest(w, err.Error())
	case errors.Is(err, wallet.ErrInsufficientFunds):
		response.Conflict(w, "insufficient wallet balance")
	case errors.Is(err, wallet.ErrRecipientWalletNotFound):
		response.NotFound(w, "recipient wallet not found")
	case errors.Is(err, wallet.ErrWalletInactive):
		response.Conflict(w, "wallet is deactivated")
	case errors.Is(err, wallet.ErrCurrencyMismatch), errors.Is(err, wallet.ErrSelfTransfer):
		response.BadRequest(w, err.Error())
	case errors.As(err, &gatewayErr):
		response.BadGateway(w, gatewayErr.Error())
	default:
		response.InternalError(w)
	}
}

// History handles GET /payments
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	payments, err := h.service.GetPaymentHistory(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, payments)
}

type refundRequest struct {
	Amount int64  `json:"amount,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Refund handles POST /payments/{id}/refund (admin only)
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payment id")
		return
	}

	var req refundRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON body")
			return
		}
	}

	result, err := h.service.Refund(r.Context(), paymentID, req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrPaymentNotFound):
			response.NotFound(w, "payment not found")
		case errors.Is(err, ErrAlreadyRefunded):
			response.Conflict(w, "payment already refunded")
		case errors.Is(err, ErrInvalidStateTransition):
			response.Conflict(w, "payment is not refundable in its current state")
		case errors.Is(err, ErrRefundExceedsAmount):
			response.BadRequest(w, "refund amount exceeds original payment")
		case errors.Is(err, ErrRefundFailed):
			response.BadGateway(w, "refund was rejected by the payment channel")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, result)
}

type confirmRequest struct {
	ExternalReference string `json:"external_reference"`
	TransactionID     string `json:"transaction_id,omitempty"`
	Status            string `json:"status"`
	SettlementID      string `json:"settlement_id,omitempty"`
}

// Confirm handles POST /webhooks/{channel}, the asynchronous confirmation
// entry point. Gateways retry on non-2xx, so idempotent replays and
// protected-state rejections both answer 200.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	channel := Channel(chi.URLParam(r, "channel"))
	switch channel {
	case ChannelCard, ChannelPeer, ChannelMobileMoney, ChannelBankTransfer:
	default:
		response.BadRequest(w, "unknown channel")
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid webhook payload")
		return
	}

	externalRef := req.ExternalReference
	if externalRef == "" {
		externalRef = req.TransactionID
	}
	if externalRef == "" {
		response.BadRequest(w, "missing external reference")
		return
	}

	status, ok := normalizeStatus(req.Status)
	if !ok {
		response.BadRequest(w, "unknown status")
		return
	}

	err := h.service.Reconcile(r.Context(), channel, externalRef, status, req.SettlementID)
	switch {
	case err == nil:
		response.OK(w, map[string]string{"status": "ok"})
	case errors.Is(err, ErrUnknownPayment):
		// Do not expose internals, but stop the gateway's retry loop
		response.OK(w, map[string]string{"status": "error", "message": "payment not found"})
	case errors.Is(err, ErrInvalidStateTransition):
		// The record is protected, not broken; logged inside Reconcile
		response.OK(w, map[string]string{"status": "ignored"})
	default:
		log.Error().Err(err).Str("channel", string(channel)).Msg("confirmation processing failed")
		response.InternalError(w)
	}
}

// normalizeStatus maps gateway status vocabulary onto the internal state
// machine
func normalizeStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "succeeded", "completed", "paid", "captured":
		return StatusCompleted, true
	case "failed", "cancelled", "canceled", "declined", "rejected", "expired":
		return StatusFailed, true
	default:
		return "", false
	}
}

// Routes returns payment router
func (h *Handler) Routes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Create)
	r.Get("/", h.History)
	r.With(adminMiddleware).Post("/{id}/refund", h.Refund)
	return r
}

// WebhookRoutes returns webhook router (no auth; confirmations carry the
// external reference issued during initiation)
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{channel}", h.Confirm)
	return r
}
