package payment

import "context"

// HandleKind tells the caller what to do with a payment handle
type HandleKind string

const (
	HandleKindRedirect     HandleKind = "redirect"
	HandleKindClientSecret HandleKind = "client_secret"
	HandleKindStkPrompt    HandleKind = "stk_prompt"
	HandleKindBankDetails  HandleKind = "bank_details"
	HandleKindReceipt      HandleKind = "receipt"
)

// Handle is the channel-specific next step returned to the caller after
// a payment is initiated
type Handle struct {
	Kind         HandleKind `json:"kind"`
	RedirectURL  string     `json:"redirect_url,omitempty"`
	ClientSecret string     `json:"client_secret,omitempty"`
	Reference    string     `json:"reference,omitempty"`
	Message      string     `json:"message,omitempty"`
}

// InitiateResult is the normalized outcome of dispatching a payment to a
// channel adapter
type InitiateResult struct {
	ExternalRef string
	NextStatus  Status
	Handle      Handle
}

// Adapter translates generic payment operations into channel-specific
// calls. Adapters are stateless with respect to the payment store; all
// state lives in the record, so any adapter instance can service any
// request. External-channel adapters normalize failures to *GatewayError;
// the wallet adapter surfaces wallet errors untranslated.
type Adapter interface {
	Channel() Channel
	Initiate(ctx context.Context, p *Payment) (*InitiateResult, error)
	Reverse(ctx context.Context, p *Payment, amount int64, reason string) (string, error)
}
