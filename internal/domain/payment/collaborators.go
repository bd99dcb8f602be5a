package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/devlink/devlink-api/internal/domain/user"
	"github.com/devlink/devlink-api/internal/domain/wallet"
	"github.com/devlink/devlink-api/internal/pkg/notifier"
)

// UserDirectory is the slice of the user subsystem the engine consumes:
// contact lookup for gateway calls and token reward crediting.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	CreditTokens(ctx context.Context, id uuid.UUID, amount int64) error
}

// ProjectStore is the slice of the project subsystem the engine consumes:
// budget lookup and the one-way completion effect.
type ProjectStore interface {
	GetBudget(ctx context.Context, id uuid.UUID) (int64, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
}

// Notifier announces settled payment outcomes. Publishing is
// fire-and-forget; the engine never blocks on delivery.
type Notifier interface {
	Publish(event notifier.Event)
}

// WalletEngine is the slice of the wallet subsystem the wallet channel
// settles through: the payer's wallet for currency validation and the
// atomic transfer primitive, the only balance mutation API the engine uses.
type WalletEngine interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount int64, referenceID string) error
}
