package cardpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds CardPay API configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client represents the card processor API client
type Client struct {
	httpClient *http.Client
	config     Config
}

// CreateIntentRequest represents a payment intent creation request
type CreateIntentRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	OrderID     string            `json:"order_id"`
	Description string            `json:"description,omitempty"`
	CallbackURL string            `json:"callback_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CreateIntentResponse represents a payment intent creation response
type CreateIntentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// RefundRequest represents a refund request against a captured intent
type RefundRequest struct {
	IntentID string `json:"intent_id"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason,omitempty"`
}

// RefundResponse represents a refund response
type RefundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// NewClient creates new CardPay API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// CreateIntent creates a payment intent and returns the client secret
// the frontend uses to collect card details
func (c *Client) CreateIntent(ctx context.Context, req CreateIntentRequest) (*CreateIntentResponse, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, fmt.Errorf("validation error: order_id must be non-empty")
	}

	var out CreateIntentResponse
	if err := c.post(ctx, "/v1/payment_intents", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refund reverses a captured payment intent, fully or partially
func (c *Client) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	if strings.TrimSpace(req.IntentID) == "" {
		return nil, fmt.Errorf("validation error: intent_id must be non-empty")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}

	var out RefundResponse
	if err := c.post(ctx, "/v1/refunds", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("cardpay client is not initialized")
	}
	if strings.TrimSpace(c.config.BaseURL) == "" {
		return fmt.Errorf("cardpay config error: base_url is empty")
	}
	if strings.TrimSpace(c.config.APIKey) == "" {
		return fmt.Errorf("cardpay config error: api_key is empty")
	}

	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode cardpay request: %w", err)
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	url := base + path

	timeout := c.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("cardpay api call failed: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("cardpay api call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cardpay api call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cardpay api returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse cardpay response: %w", err)
	}

	return nil
}
