package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/devlink/devlink-api/internal/domain/wallet"
)

// WalletAdapter settles payments between internal wallets. Unlike the
// external channels it never awaits another system: the atomic transfer
// runs inside Initiate and the payment completes synchronously. Wallet
// errors pass through untranslated so callers see insufficient funds and
// missing recipient wallets directly.
type WalletAdapter struct {
	wallets WalletEngine
}

func NewWalletAdapter(wallets WalletEngine) *WalletAdapter {
	return &WalletAdapter{wallets: wallets}
}

func (a *WalletAdapter) Channel() Channel {
	return ChannelWallet
}

func (a *WalletAdapter) Initiate(ctx context.Context, p *Payment) (*InitiateResult, error) {
	if !p.PayeeID.Valid {
		return nil, ErrPayeeRequired
	}

	// The record's currency must match the ledger the money moves in;
	// the transfer itself only compares the two wallets to each other
	payerWallet, err := a.wallets.GetWallet(ctx, p.PayerID)
	if err != nil {
		return nil, err
	}
	if payerWallet.Currency != p.Currency {
		return nil, wallet.ErrCurrencyMismatch
	}

	if err := a.wallets.Transfer(ctx, p.PayerID, p.PayeeID.UUID, p.Amount, p.ID.String()); err != nil {
		return nil, err
	}

	ref := "wal_" + uuid.New().String()

	return &InitiateResult{
		ExternalRef: ref,
		NextStatus:  StatusCompleted,
		Handle: Handle{
			Kind:      HandleKindReceipt,
			Reference: ref,
			Message:   fmt.Sprintf("Wallet transfer of %d %s settled", p.Amount, p.Currency),
		},
	}, nil
}

// Reverse refunds a wallet payment with a second transfer in the opposite
// direction. The transfer primitive still enforces balance ≥ amount, so a
// refund the payee can no longer cover fails instead of driving their
// wallet negative.
func (a *WalletAdapter) Reverse(ctx context.Context, p *Payment, amount int64, reason string) (string, error) {
	if !p.PayeeID.Valid {
		return "", ErrPayeeRequired
	}

	ref := "walrev_" + uuid.New().String()
	if err := a.wallets.Transfer(ctx, p.PayeeID.UUID, p.PayerID, amount, ref); err != nil {
		return "", err
	}
	return ref, nil
}
