package mobilemoney

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config holds mobile money gateway configuration
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	Timeout        time.Duration
}

// Client represents the mobile money gateway API client.
// The gateway uses OAuth client-credentials; access tokens are cached until
// shortly before expiry.
type Client struct {
	httpClient *http.Client
	config     Config

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// PushRequest represents an STK push (payment prompt) request
type PushRequest struct {
	Phone       string `json:"phone"`
	Amount      int64  `json:"amount"`
	AccountRef  string `json:"account_ref"`
	Description string `json:"description,omitempty"`
	CallbackURL string `json:"callback_url"`
}

// PushResponse represents an STK push response
type PushResponse struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	ResponseCode      string `json:"response_code"`
	CustomerMessage   string `json:"customer_message"`
}

// ReversalRequest represents a transaction reversal request
type ReversalRequest struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Remarks       string `json:"remarks,omitempty"`
}

// ReversalResponse represents a transaction reversal response
type ReversalResponse struct {
	ConversationID string `json:"conversation_id"`
	ResponseCode   string `json:"response_code"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in,string"`
}

// NewClient creates new mobile money API client
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

// StkPush sends a payment prompt to the customer's phone. The customer
// confirms with a PIN on-device; the result arrives on the callback URL.
func (c *Client) StkPush(ctx context.Context, req PushRequest) (*PushResponse, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return nil, fmt.Errorf("validation error: phone must be non-empty")
	}

	var out PushResponse
	if err := c.post(ctx, "/stkpush/v1/processrequest", req, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		return nil, fmt.Errorf("mobile money push rejected: code %s", out.ResponseCode)
	}
	return &out, nil
}

// Reverse requests a reversal of a settled transaction
func (c *Client) Reverse(ctx context.Context, req ReversalRequest) (*ReversalResponse, error) {
	if strings.TrimSpace(req.TransactionID) == "" {
		return nil, fmt.Errorf("validation error: transaction_id must be non-empty")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}

	var out ReversalResponse
	if err := c.post(ctx, "/reversal/v1/request", req, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		return nil, fmt.Errorf("mobile money reversal rejected: code %s", out.ResponseCode)
	}
	return &out, nil
}

// token returns a cached access token, fetching a fresh one when expired
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	url := base + "/oauth/v1/generate?grant_type=client_credentials"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("mobile money token request failed: %w", err)
	}

	creds := base64.StdEncoding.EncodeToString([]byte(c.config.ConsumerKey + ":" + c.config.ConsumerSecret))
	httpReq.Header.Set("Authorization", "Basic "+creds)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("mobile money token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("mobile money token request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("mobile money token endpoint returned status %d, body: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("failed to parse mobile money token response: %w", err)
	}

	c.accessToken = tok.AccessToken
	// Renew a minute early to avoid using a token that expires in flight
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)

	return c.accessToken, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("mobile money client is not initialized")
	}
	if strings.TrimSpace(c.config.BaseURL) == "" {
		return fmt.Errorf("mobile money config error: base_url is empty")
	}
	if strings.TrimSpace(c.config.ConsumerKey) == "" {
		return fmt.Errorf("mobile money config error: consumer_key is empty")
	}

	timeout := c.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode mobile money request: %w", err)
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	url := base + path

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("mobile money api call failed: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("mobile money api call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mobile money api call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mobile money api returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse mobile money response: %w", err)
	}

	return nil
}
