package payment

import (
	"context"

	"github.com/devlink/devlink-api/internal/pkg/cardpay"
)

// CardAdapter drives the card network processor. Initiation opens a
// payment intent; the caller finishes card collection with the client
// secret and settlement arrives on the card webhook.
type CardAdapter struct {
	client      *cardpay.Client
	callbackURL string
}

func NewCardAdapter(client *cardpay.Client, callbackURL string) *CardAdapter {
	return &CardAdapter{client: client, callbackURL: callbackURL}
}

func (a *CardAdapter) Channel() Channel {
	return ChannelCard
}

func (a *CardAdapter) Initiate(ctx context.Context, p *Payment) (*InitiateResult, error) {
	res, err := a.client.CreateIntent(ctx, cardpay.CreateIntentRequest{
		Amount:      p.Amount,
		Currency:    p.Currency,
		OrderID:     p.ID.String(),
		Description: p.Description.String,
		CallbackURL: a.callbackURL,
		Metadata:    map[string]string{"payment_id": p.ID.String()},
	})
	if err != nil {
		return nil, &GatewayError{Channel: ChannelCard, Err: err}
	}

	return &InitiateResult{
		ExternalRef: res.IntentID,
		NextStatus:  StatusProcessing,
		Handle: Handle{
			Kind:         HandleKindClientSecret,
			ClientSecret: res.ClientSecret,
			Reference:    res.IntentID,
		},
	}, nil
}

func (a *CardAdapter) Reverse(ctx context.Context, p *Payment, amount int64, reason string) (string, error) {
	res, err := a.client.Refund(ctx, cardpay.RefundRequest{
		IntentID: p.ExternalRef.String,
		Amount:   amount,
		Reason:   reason,
	})
	if err != nil {
		return "", &GatewayError{Channel: ChannelCard, Err: err}
	}
	return res.RefundID, nil
}
