package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/devlink/devlink-api/internal/pkg/notifier"
)

func createProcessingPayment(t *testing.T, env *testEnv, payee uuid.UUID, amount int64) (uuid.UUID, string) {
	t.Helper()
	handle, err := env.svc.CreatePayment(context.Background(), CreatePaymentRequest{
		PayerID:  uuid.New(),
		PayeeID:  &payee,
		Amount:   amount,
		Currency: "USD",
		Channel:  ChannelCard,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return handle.PaymentID, fmt.Sprintf("card_ref_%s", handle.PaymentID)
}

func TestReconcileCompletesPayment(t *testing.T) {
	env := newTestEnv()
	payee := uuid.New()
	id, ref := createProcessingPayment(t, env, payee, 2000)

	err := env.svc.Reconcile(context.Background(), ChannelCard, ref, StatusCompleted, "settle_001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := env.repo.status(t, id); got != StatusCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
	// 2000 * 500bps = 100 tokens
	if env.users.tokens[payee] != 100 {
		t.Fatalf("expected 100 reward tokens, got %d", env.users.tokens[payee])
	}
	if len(env.events.byType(notifier.EventPaymentSucceeded)) != 1 {
		t.Fatal("expected one success event")
	}
}

func TestReconcileDuplicateConfirmation(t *testing.T) {
	env := newTestEnv()
	payee := uuid.New()
	_, ref := createProcessingPayment(t, env, payee, 2000)

	for i := 0; i < 5; i++ {
		if err := env.svc.Reconcile(context.Background(), ChannelCard, ref, StatusCompleted, ""); err != nil {
			t.Fatalf("delivery %d: unexpected error: %v", i, err)
		}
	}

	// Effects fired exactly once despite five deliveries
	if env.users.tokens[payee] != 100 {
		t.Fatalf("expected 100 reward tokens, got %d", env.users.tokens[payee])
	}
	if n := len(env.events.byType(notifier.EventPaymentSucceeded)); n != 1 {
		t.Fatalf("expected one success event, got %d", n)
	}
}

func TestReconcileConcurrentConfirmations(t *testing.T) {
	env := newTestEnv()
	payee := uuid.New()
	_, ref := createProcessingPayment(t, env, payee, 2000)

	const deliveries = 10
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := env.svc.Reconcile(context.Background(), ChannelCard, ref, StatusCompleted, ""); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if env.users.tokens[payee] != 100 {
		t.Fatalf("expected 100 reward tokens, got %d", env.users.tokens[payee])
	}
	if n := len(env.events.byType(notifier.EventPaymentSucceeded)); n != 1 {
		t.Fatalf("expected one success event, got %d", n)
	}
}

func TestReconcileRejectsConflictingStatus(t *testing.T) {
	env := newTestEnv()
	payee := uuid.New()
	id, ref := createProcessingPayment(t, env, payee, 500)

	if err := env.svc.Reconcile(context.Background(), ChannelCard, ref, StatusCompleted, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A late failure confirmation must not overwrite the settled record
	err := env.svc.Reconcile(context.Background(), ChannelCard, ref, StatusFailed, "")
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if got := env.repo.status(t, id); got != StatusCompleted {
		t.Fatalf("record mutated to %s", got)
	}
}

func TestReconcileFailedStaysFailed(t *testing.T) {
	env := newTestEnv()
	payee := uuid.New()
	id, ref := createProcessingPayment(t, env, payee, 500)

	if err := env.svc.Reconcile(context.Background(), ChannelCard, ref, StatusFailed, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(env.events.byType(notifier.EventPaymentFailed)); n != 1 {
		t.Fatalf("expected one failure event, got %d", n)
	}

	err := env.svc.Reconcile(context.Background(), ChannelCard, ref, StatusCompleted, "")
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if got := env.repo.status(t, id); got != StatusFailed {
		t.Fatalf("record mutated to %s", got)
	}
	if env.users.tokens[payee] != 0 {
		t.Fatalf("reward credited on failed payment: %d", env.users.tokens[payee])
	}
}

func TestReconcileUnknownReference(t *testing.T) {
	env := newTestEnv()

	err := env.svc.Reconcile(context.Background(), ChannelCard, "no_such_ref", StatusCompleted, "")
	if !errors.Is(err, ErrUnknownPayment) {
		t.Fatalf("expected ErrUnknownPayment, got %v", err)
	}

	// Confirmations never create records
	env.repo.mu.Lock()
	defer env.repo.mu.Unlock()
	if len(env.repo.payments) != 0 {
		t.Fatalf("expected no records, got %d", len(env.repo.payments))
	}
}

func TestReconcileRejectsNonTerminalStatus(t *testing.T) {
	env := newTestEnv()
	_, ref := createProcessingPayment(t, env, uuid.New(), 500)

	err := env.svc.Reconcile(context.Background(), ChannelCard, ref, StatusPending, "")
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}
