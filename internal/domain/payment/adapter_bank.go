package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// BankTransferAdapter handles manual bank transfers. There is no external
// API: initiation issues a transfer reference the payer quotes on the wire
// transfer, and the back office confirms receipt through the bank_transfer
// callback once the funds show up.
type BankTransferAdapter struct {
	accountName   string
	accountNumber string
	bankName      string
}

func NewBankTransferAdapter(accountName, accountNumber, bankName string) *BankTransferAdapter {
	return &BankTransferAdapter{
		accountName:   accountName,
		accountNumber: accountNumber,
		bankName:      bankName,
	}
}

func (a *BankTransferAdapter) Channel() Channel {
	return ChannelBankTransfer
}

func (a *BankTransferAdapter) Initiate(ctx context.Context, p *Payment) (*InitiateResult, error) {
	ref := "BT-" + strings.ToUpper(uuid.New().String()[:13])

	return &InitiateResult{
		ExternalRef: ref,
		NextStatus:  StatusProcessing,
		Handle: Handle{
			Kind:      HandleKindBankDetails,
			Reference: ref,
			Message: fmt.Sprintf(
				"Transfer %d %s to %s, account %s at %s, quoting reference %s",
				p.Amount, p.Currency, a.accountName, a.accountNumber, a.bankName, ref,
			),
		},
	}, nil
}

func (a *BankTransferAdapter) Reverse(ctx context.Context, p *Payment, amount int64, reason string) (string, error) {
	// Manual channel: the reversal reference is handed to the back office,
	// which wires the money back out of band
	return "BTR-" + strings.ToUpper(uuid.New().String()[:13]), nil
}
