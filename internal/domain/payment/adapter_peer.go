package payment

import (
	"context"

	"github.com/devlink/devlink-api/internal/pkg/peerpay"
)

// PeerAdapter drives the peer-to-peer payment network. The payer approves
// the order on the network's site via the returned redirect URL.
type PeerAdapter struct {
	client      *peerpay.Client
	returnURL   string
	callbackURL string
}

func NewPeerAdapter(client *peerpay.Client, returnURL, callbackURL string) *PeerAdapter {
	return &PeerAdapter{client: client, returnURL: returnURL, callbackURL: callbackURL}
}

func (a *PeerAdapter) Channel() Channel {
	return ChannelPeer
}

func (a *PeerAdapter) Initiate(ctx context.Context, p *Payment) (*InitiateResult, error) {
	res, err := a.client.CreateOrder(ctx, peerpay.CreateOrderRequest{
		Amount:      p.Amount,
		Currency:    p.Currency,
		OrderID:     p.ID.String(),
		Description: p.Description.String,
		ReturnURL:   a.returnURL,
		CallbackURL: a.callbackURL,
	})
	if err != nil {
		return nil, &GatewayError{Channel: ChannelPeer, Err: err}
	}

	return &InitiateResult{
		ExternalRef: res.TransactionID,
		NextStatus:  StatusProcessing,
		Handle: Handle{
			Kind:        HandleKindRedirect,
			RedirectURL: res.ApprovalURL,
			Reference:   res.TransactionID,
		},
	}, nil
}

func (a *PeerAdapter) Reverse(ctx context.Context, p *Payment, amount int64, reason string) (string, error) {
	res, err := a.client.Refund(ctx, peerpay.RefundRequest{
		TransactionID: p.ExternalRef.String,
		Amount:        amount,
		Reason:        reason,
	})
	if err != nil {
		return "", &GatewayError{Channel: ChannelPeer, Err: err}
	}
	return res.RefundID, nil
}
