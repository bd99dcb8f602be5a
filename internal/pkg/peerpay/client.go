package peerpay

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

// Config holds PeerPay API configuration
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client represents the peer-to-peer payment network API client
type Client struct {
	httpClient *http.Client
	config     Config
}

// CreateOrderRequest represents an order creation request
type CreateOrderRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	OrderID     string `json:"order_id"`
	Description string `json:"description,omitempty"`
	ReturnURL   string `json:"return_url"`
	CallbackURL string `json:"callback_url"`
}

// CreateOrderResponse represents an order creation response
type CreateOrderResponse struct {
	TransactionID string `json:"transaction_id"`
	ApprovalURL   string `json:"approval_url"`
	Status        string `json:"status"`
}

// RefundRequest represents a refund request for a captured transaction
type RefundRequest struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason,omitempty"`
}

// RefundResponse represents a refund response
type RefundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// NewClient creates new PeerPay API client
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

// CreateOrder creates an order and returns the approval URL the payer is
// redirected to
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, fmt.Errorf("validation error: order_id must be non-empty")
	}

	var out CreateOrderResponse
	if err := c.post(ctx, "/v2/checkout/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refund reverses a captured transaction
func (c *Client) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	if strings.TrimSpace(req.TransactionID) == "" {
		return nil, fmt.Errorf("validation error: transaction_id must be non-empty")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}

	var out RefundResponse
	path := "/v2/payments/captures/" + req.TransactionID + "/refund"
	if err := c.post(ctx, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("peerpay client is not initialized")
	}
	if strings.TrimSpace(c.config.BaseURL) == "" {
		return fmt.Errorf("peerpay config error: base_url is empty")
	}
	if strings.TrimSpace(c.config.ClientID) == "" {
		return fmt.Errorf("peerpay config error: client_id is empty")
	}

	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode peerpay request: %w", err)
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
		return fmt.Errorf("peerpay api call failed: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("peerpay api call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("peerpay api call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("peerpay api returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse peerpay response: %w", err)
	}

	return nil
}
