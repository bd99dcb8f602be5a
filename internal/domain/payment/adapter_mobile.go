package payment

import (
	"context"
	"fmt"

	"github.com/devlink/devlink-api/internal/pkg/mobilemoney"
)

// MobileMoneyAdapter drives the mobile money gateway via STK push. The
// payer confirms the prompt on their phone; the result arrives on the
// mobile money callback.
type MobileMoneyAdapter struct {
	client      *mobilemoney.Client
	users       UserDirectory
	callbackURL string
}

func NewMobileMoneyAdapter(client *mobilemoney.Client, users UserDirectory, callbackURL string) *MobileMoneyAdapter {
	return &MobileMoneyAdapter{client: client, users: users, callbackURL: callbackURL}
}

func (a *MobileMoneyAdapter) Channel() Channel {
	return ChannelMobileMoney
}

func (a *MobileMoneyAdapter) Initiate(ctx context.Context, p *Payment) (*InitiateResult, error) {
	payer, err := a.users.GetByID(ctx, p.PayerID)
	if err != nil {
		return nil, &GatewayError{Channel: ChannelMobileMoney, Err: fmt.Errorf("payer lookup failed: %w", err)}
	}
	if !payer.ContactPhone.Valid || payer.ContactPhone.String == "" {
		return nil, &GatewayError{Channel: ChannelMobileMoney, Err: fmt.Errorf("payer has no contact phone on file")}
	}

	res, err := a.client.StkPush(ctx, mobilemoney.PushRequest{
		Phone:       payer.ContactPhone.String,
		Amount:      p.Amount,
		AccountRef:  p.ID.String(),
		Description: p.Description.String,
		CallbackURL: a.callbackURL,
	})
	if err != nil {
		return nil, &GatewayError{Channel: ChannelMobileMoney, Err: err}
	}

	return &InitiateResult{
		ExternalRef: res.CheckoutRequestID,
		NextStatus:  StatusProcessing,
		Handle: Handle{
			Kind:      HandleKindStkPrompt,
			Reference: res.CheckoutRequestID,
			Message:   res.CustomerMessage,
		},
	}, nil
}

func (a *MobileMoneyAdapter) Reverse(ctx context.Context, p *Payment, amount int64, reason string) (string, error) {
	// Reversals run against the settlement transaction, not the checkout
	// request that initiated it
	txID := p.SettlementID.String
	if txID == "" {
		txID = p.ExternalRef.String
	}

	res, err := a.client.Reverse(ctx, mobilemoney.ReversalRequest{
		TransactionID: txID,
		Amount:        amount,
		Remarks:       reason,
	})
	if err != nil {
		return "", &GatewayError{Channel: ChannelMobileMoney, Err: err}
	}
	return res.ConversationID, nil
}
