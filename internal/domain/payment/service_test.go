package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/devlink/devlink-api/internal/domain/user"
	"github.com/devlink/devlink-api/internal/domain/wallet"
	"github.com/devlink/devlink-api/internal/pkg/notifier"
)

type fakeRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*Payment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{payments: make(map[uuid.UUID]*Payment)}
}

func (f *fakeRepo) Create(ctx context.Context, p *Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) GetByExternalRef(ctx context.Context, channel Channel, externalRef string) (*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.Channel == channel && p.ExternalRef.Valid && p.ExternalRef.String == externalRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) AttachExternalRef(ctx context.Context, id uuid.UUID, externalRef string, next Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ExternalRef.Valid && p.ExternalRef.String == externalRef && p.ID != id {
			return ErrDuplicateExternalRef
		}
	}
	p, ok := f.payments[id]
	if !ok || p.Status != StatusPending {
		return ErrInvalidStateTransition
	}
	p.ExternalRef = sql.NullString{String: externalRef, Valid: true}
	p.Status = next
	return nil
}

func (f *fakeRepo) Transition(ctx context.Context, id uuid.UUID, from, to Status, settlementID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	if settlementID != "" {
		p.SettlementID = sql.NullString{String: settlementID, Valid: true}
	}
	return true, nil
}

func (f *fakeRepo) MarkRefunded(ctx context.Context, id uuid.UUID, meta RefundMetadata) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || p.Status != StatusCompleted {
		return false, nil
	}
	p.Status = StatusRefunded
	return true, nil
}

func (f *fakeRepo) ListByPayer(ctx context.Context, payerID uuid.UUID, limit, offset int) ([]*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Payment
	for _, p := range f.payments {
		if p.PayerID == payerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) SumCompletedByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, p := range f.payments {
		if p.ProjectID.Valid && p.ProjectID.UUID == projectID && p.Status == StatusCompleted {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (f *fakeRepo) status(t *testing.T, id uuid.UUID) Status {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		t.Fatalf("payment %s not found", id)
	}
	return p.Status
}

type fakeAdapter struct {
	channel    Channel
	nextStatus Status
	fixedRef   string
	initErr    error
	reverseErr error

	mu           sync.Mutex
	initiated    int
	reversals    int
	lastReversal int64
}

func (a *fakeAdapter) Channel() Channel { return a.channel }

func (a *fakeAdapter) Initiate(ctx context.Context, p *Payment) (*InitiateResult, error) {
	a.mu.Lock()
	a.initiated++
	a.mu.Unlock()
	if a.initErr != nil {
		return nil, a.initErr
	}
	next := a.nextStatus
	if next == "" {
		next = StatusProcessing
	}
	ref := a.fixedRef
	if ref == "" {
		ref = fmt.Sprintf("%s_ref_%s", a.channel, p.ID)
	}
	return &InitiateResult{
		ExternalRef: ref,
		NextStatus:  next,
		Handle:      Handle{Kind: HandleKindRedirect, RedirectURL: "https://pay.example.com/x"},
	}, nil
}

func (a *fakeAdapter) Reverse(ctx context.Context, p *Payment, amount int64, reason string) (string, error) {
	a.mu.Lock()
	a.reversals++
	a.lastReversal = amount
	a.mu.Unlock()
	if a.reverseErr != nil {
		return "", a.reverseErr
	}
	return "rev_" + p.ID.String(), nil
}

type fakeUsers struct {
	mu     sync.Mutex
	phones map[uuid.UUID]string
	tokens map[uuid.UUID]int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		phones: make(map[uuid.UUID]string),
		tokens: make(map[uuid.UUID]int64),
	}
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &user.User{ID: id}
	if phone, ok := f.phones[id]; ok {
		u.ContactPhone = sql.NullString{String: phone, Valid: true}
	}
	return u, nil
}

func (f *fakeUsers) CreditTokens(ctx context.Context, id uuid.UUID, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[id] += amount
	return nil
}

type fakeProjects struct {
	mu        sync.Mutex
	budgets   map[uuid.UUID]int64
	completed map[uuid.UUID]int
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{
		budgets:   make(map[uuid.UUID]int64),
		completed: make(map[uuid.UUID]int),
	}
}

func (f *fakeProjects) GetBudget(ctx context.Context, id uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	budget, ok := f.budgets[id]
	if !ok {
		return 0, errors.New("project not found")
	}
	return budget, nil
}

func (f *fakeProjects) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id]++
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (f *fakeNotifier) Publish(event notifier.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) byType(eventType notifier.EventType) []notifier.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notifier.Event
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeWallets struct {
	mu       sync.Mutex
	currency string
	balances map[uuid.UUID]int64
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{currency: "USD", balances: make(map[uuid.UUID]int64)}
}

func (f *fakeWallets) GetWallet(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &wallet.Wallet{
		UserID:   userID,
		Balance:  f.balances[userID],
		Currency: f.currency,
		Active:   true,
	}, nil
}

func (f *fakeWallets) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount int64, referenceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.balances[toUserID]; !ok {
		return wallet.ErrRecipientWalletNotFound
	}
	if f.balances[fromUserID] < amount {
		return wallet.ErrInsufficientFunds
	}
	f.balances[fromUserID] -= amount
	f.balances[toUserID] += amount
	return nil
}

type testEnv struct {
	repo     *fakeRepo
	users    *fakeUsers
	projects *fakeProjects
	events   *fakeNotifier
	wallets  *fakeWallets
	card     *fakeAdapter
	svc      *Service
}

func newTestEnv(extra ...Adapter) *testEnv {
	env := &testEnv{
		repo:     newFakeRepo(),
		users:    newFakeUsers(),
		projects: newFakeProjects(),
		events:   &fakeNotifier{},
		wallets:  newFakeWallets(),
		card:     &fakeAdapter{channel: ChannelCard, nextStatus: StatusProcessing},
	}
	adapters := append([]Adapter{env.card}, extra...)
	env.svc = NewService(env.repo, env.users, env.projects, env.events, 500, adapters...)
	return env
}

func TestCreatePaymentCard(t *testing.T) {
	env := newTestEnv()
	payer := uuid.New()
	payee := uuid.New()

	handle, err := env.svc.CreatePayment(context.Background(), CreatePaymentRequest{
		PayerID:  payer,
		PayeeID:  &payee,
		Amount:   5000,
		Currency: "USD",
		Channel:  ChannelCard,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle.Status != StatusProcessing {
		t.Fatalf("expected processing, got %s", handle.Status)
	}
	if got := env.repo.status(t, handle.PaymentID); got != StatusProcessing {
		t.Fatalf("expected record processing, got %s", got)
	}
	// No effects before the confirmation arrives
	if env.users.tokens[payee] != 0 {
		t.Fatalf("reward credited before settlement: %d", env.users.tokens[payee])
	}
	if len(env.events.byType(notifier.EventPaymentSucceeded)) != 0 {
		t.Fatal("success event published before settlement")
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	env := newTestEnv()
	payer := uuid.New()

	_, err := env.svc.CreatePayment(context.Background(), CreatePaymentRequest{
		PayerID:  payer,
		Amount:   0,
		Currency: "USD",
		Channel:  ChannelCard,
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	_, err = env.svc.CreatePayment(context.Background(), CreatePaymentRequest{
		PayerID:  payer,
		Amount:   100,
		Currency: "USD",
		Channel:  Channel("carrier_pigeon"),
	})
	if !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
}

func TestCreatePaymentInitiateFailureLeavesPending(t *testing.T) {
	env := newTestEnv()
	env.card.initErr = &GatewayError{Channel: ChannelCard, Err: errors.New("processor down")}
	payer := uuid.New()

	_, err := env.svc.CreatePayment(context.Background(), CreatePaymentRequest{
		PayerID:  payer,
		Amount:   100,
		Currency: "USD",
		Channel:  ChannelCard,
	})

	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}

	// Record exists and stayed pending
	env.repo.mu.Lock()
	defer env.repo.mu.Unlock()
	if len(env.repo.payments) != 1 {
		t.Fatalf("expected 1 record, got %d", len(env.repo.payments))
	}
	for _, p := range env.repo.payments {
		if p.Status != StatusPending {
			t.Fatalf("expected pending, got %s", p.Status)
		}
	}
}

func TestWalletPaymentSettlesSynchronously(t *testing.T) {
	env := newTestEnv()
	walletAdapter := NewWalletAdapter(env.wallets)
	env.svc = NewService(env.repo, env.users, env.projects, env.events, 500, env.card, walletAdapter)

	payer := uuid.New()
	payee := uuid.New()
	env.wallets.balances[payer] = 1000
	env.wallets.balances[payee] = 0

	handle, err := env.svc.CreatePayment(context.Background(), CreatePaymentRequest{
		PayerID:  payer,
		PayeeID:  &payee,
		Amount:   300,
		Currency: "USD",
		Channel:  ChannelWallet,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", handle.Status)
	}
	if env.wallets.balances[payer] != 700 || env.wallets.balances[payee] != 300 {
		t.Fatalf("balances wrong: payer=%d payee=%d", env.wallets.balances[payer], env.wallets.balances[payee])
	}
	// Completion effects fired immediately: 300 * 500bps = 15 tokens
	if env.users.tokens[payee] != 15 {
		t.Fatalf("expected 15 reward tokens, got %d", env.users.tokens[payee])
	}
	if len(env.events.byType(notifier.EventPaymentSucceeded)) != 1 {
		t.Fatal("expected one success event")
	}
}

func TestWalletPaymentRequiresPayee(t *testing.T) {
	env := newTestEnv(NewWalletAdapter(newFakeWallets()))

	_, err := env.svc.CreatePayment(context.Background(), CreatePaymentRequest{
		PayerID:  uuid.New(),
		Amount:   100,
		Currency: "USD",
		Channel:  ChannelWallet,
	})
	if !errors.Is(err, ErrPayeeRequired) {
		t.Fatalf("expected ErrPayeeRequired, got %v", err)
	}
}

func TestCreatePaymentDuplicateExternalRef(t *testing.T) {
	env := newTestEnv()
	env.card.fixedRef = "card_ref_reused"
	payer := uuid.New()

	if _, err := env.svc.CreatePayment(context.Background(), CreatePaymentRequest{
		PayerID:  payer,
		Amount:   100,
		Currency: "USD",
		Channel:  ChannelCard,
	}); err != nil {
		t.Fatalf("first payment failed: %v", err)
	}

	// The adapter hands back a reference already attached to another record
	_, err := env.svc.CreatePayment(context.Background(), CreatePaymentRequest{
		PayerID:  payer,
		Amount:   200,
		Currency: "USD",
		Channel:  ChannelCard,
	})
	if !errors.Is(err, ErrDuplicateExternalRef) {
		t.Fatalf("expected ErrDuplicateExternalRef, got %v", err)
	}

	// The colliding record never left pending
	env.repo.mu.Lock()
	defer env.repo.mu.Unlock()
	var pending, processing int
	for _, p := range env.repo.payments {
		switch p.Status {
		case StatusPending:
			pending++
		case StatusProcessing:
			processing++
		}
	}
	if pending != 1 || processing != 1 {
		t.Fatalf("expected 1 pending and 1 processing record, got %d/%d", pending, processing)
	}
}

func TestWalletPaymentCurrencyMismatch(t *testing.T) {
	env := newTestEnv()
	walletAdapter := NewWalletAdapter(env.wallets)
	env.svc = NewService(env.repo, env.users, env.projects, env.events, 500, walletAdapter)

	payer := uuid.New()
	payee := uuid.New()
	env.wallets.balances[payer] = 1000
	env.wallets.balances[payee] = 0

	_, err := env.svc.CreatePayment(context.Background(), CreatePaymentRequest{
		PayerID:  payer,
		PayeeID:  &payee,
		Amount:   300,
		Currency: "EUR",
		Channel:  ChannelWallet,
	})
	if !errors.Is(err, wallet.ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
	if env.wallets.balances[payer] != 1000 || env.wallets.balances[payee] != 0 {
		t.Fatal("balances changed on rejected payment")
	}
}

func TestWalletPaymentInsufficientFunds(t *testing.T) {
	env := newTestEnv()
	walletAdapter := NewWalletAdapter(env.wallets)
	env.svc = NewService(env.repo, env.users, env.projects, env.events, 500, walletAdapter)

	payer := uuid.New()
	payee := uuid.New()
	env.wallets.balances[payer] = 50
	env.wallets.balances[payee] = 0

	_, err := env.svc.CreatePayment(context.Background(), CreatePaymentRequest{
		PayerID:  payer,
		PayeeID:  &payee,
		Amount:   100,
		Currency: "USD",
		Channel:  ChannelWallet,
	})
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if env.wallets.balances[payer] != 50 || env.wallets.balances[payee] != 0 {
		t.Fatal("balances changed on failed transfer")
	}
}

func TestProjectCompletionAtBudget(t *testing.T) {
	env := newTestEnv()
	payer := uuid.New()
	payee := uuid.New()
	projectID := uuid.New()
	env.projects.budgets[projectID] = 1000

	pay := func(amount int64) uuid.UUID {
		handle, err := env.svc.CreatePayment(context.Background(), CreatePaymentRequest{
			PayerID:   payer,
			PayeeID:   &payee,
			ProjectID: &projectID,
			Amount:    amount,
			Currency:  "USD",
			Channel:   ChannelCard,
		})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		return handle.PaymentID
	}

	confirm := func(id uuid.UUID) {
		ref := fmt.Sprintf("card_ref_%s", id)
		if err := env.svc.Reconcile(context.Background(), ChannelCard, ref, StatusCompleted, ""); err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}
	}

	first := pay(600)
	confirm(first)
	if env.projects.completed[projectID] != 0 {
		t.Fatal("project completed below budget")
	}

	second := pay(500)
	confirm(second)
	if env.projects.completed[projectID] != 1 {
		t.Fatalf("expected project completed once, got %d", env.projects.completed[projectID])
	}
}
