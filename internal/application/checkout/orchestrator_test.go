package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CreatePaymentIntent(ctx context.Context, req IntentRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockBackend) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ConfirmCardPayment(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ConfirmResult), args.Error(1)
}

type fakeLedger struct {
	mu     sync.Mutex
	orders []domain.SimulatedOrder
}

func (l *fakeLedger) Record(_ context.Context, o domain.SimulatedOrder) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = append(l.orders, o)
	return nil
}

func (l *fakeLedger) List(context.Context) ([]domain.SimulatedOrder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.SimulatedOrder(nil), l.orders...), nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *fakePublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return "id-" + string(rune('0'+g.n))
}

// --- helpers ---

type fixture struct {
	backend   *mockBackend
	gateway   *mockGateway
	ledger    *fakeLedger
	publisher *fakePublisher
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	amount, err := domain.NewMoney(1999, "inr")
	require.NoError(t, err)
	session, err := domain.NewSession("sess-1", amount, &domain.ProductRef{ID: "p-7", Name: "Warli painting"})
	require.NoError(t, err)

	f := &fixture{
		backend:   new(mockBackend),
		gateway:   new(mockGateway),
		ledger:    &fakeLedger{},
		publisher: &fakePublisher{},
	}
	f.orch = NewOrchestrator(session, Dependencies{
		Backend:   f.backend,
		Gateway:   f.gateway,
		Ledger:    f.ledger,
		IDs:       &seqIDs{},
		Publisher: f.publisher,
	})
	return f
}

// --- Card ---

func TestCardPaymentSucceeds(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SetMethodInput(domain.MethodInput{CardHandle: "pm_card_visa"}))

	f.backend.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(req IntentRequest) bool {
		return req.Amount.MinorUnits == 1999 && req.Amount.Currency == "inr" && req.SessionID == "sess-1"
	})).Return("sec_1", nil).Once()
	f.gateway.On("ConfirmCardPayment", mock.Anything, ConfirmRequest{ClientSecret: "sec_1", Card: "pm_card_visa"}).
		Return(ConfirmResult{Status: domain.GatewaySucceeded, PaymentID: "pi_1"}, nil).Once()

	s, err := f.orch.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseSucceeded, s.Phase())
	assert.Equal(t, "Payment succeeded. Thank you!", s.StatusText)
	assert.Nil(t, s.LastError)
	assert.Equal(t, "pi_1", s.Reference)
	assert.False(t, s.Simulated)
	assert.Equal(t, []string{"checkout.succeeded"}, f.publisher.names())
	f.backend.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func TestCardIntentFailureSkipsGateway(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SetMethodInput(domain.MethodInput{CardHandle: "pm_card_visa"}))

	f.backend.On("CreatePaymentIntent", mock.Anything, mock.Anything).
		Return("", ErrBackendUnavailable).Once()

	s, err := f.orch.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseFailed, s.Phase())
	require.NotNil(t, s.LastError)
	assert.Equal(t, domain.KindNetwork, s.LastError.Kind)
	assert.ErrorIs(t, s.LastError, domain.ErrNetwork)
	assert.ErrorIs(t, s.LastError, ErrBackendUnavailable)
	assert.False(t, s.Simulated)
	f.gateway.AssertNumberOfCalls(t, "ConfirmCardPayment", 0)
	assert.Equal(t, []string{"checkout.failed"}, f.publisher.names())
}

func TestCardGatewayDecline(t *testing.T) {
	tests := []struct {
		name   string
		result ConfirmResult
		reason string
	}{
		{"error", ConfirmResult{Status: domain.GatewayError, Message: "Your card was declined."}, "Your card was declined."},
		{"requires action", ConfirmResult{Status: domain.GatewayRequiresAction, PaymentID: "pi_2"}, "Payment not completed."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.orch.SetMethodInput(domain.MethodInput{CardHandle: "pm_card_visa"}))
			f.backend.On("CreatePaymentIntent", mock.Anything, mock.Anything).Return("sec_1", nil).Once()
			f.gateway.On("ConfirmCardPayment", mock.Anything, mock.Anything).Return(tt.result, nil).Once()

			s, err := f.orch.Submit(context.Background())
			require.NoError(t, err)

			assert.Equal(t, domain.PhaseFailed, s.Phase())
			require.NotNil(t, s.LastError)
			assert.Equal(t, domain.KindGatewayDeclined, s.LastError.Kind)
			assert.Equal(t, tt.reason, s.LastError.Message)
			assert.Contains(t, s.StatusText, tt.reason)
		})
	}
}

func TestCardGatewayUnreachable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SetMethodInput(domain.MethodInput{CardHandle: "pm_card_visa"}))
	f.backend.On("CreatePaymentIntent", mock.Anything, mock.Anything).Return("sec_1", nil).Once()
	f.gateway.On("ConfirmCardPayment", mock.Anything, mock.Anything).
		Return(ConfirmResult{}, errors.New("dial tcp: connection refused")).Once()

	s, err := f.orch.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseFailed, s.Phase())
	assert.Equal(t, domain.KindNetwork, s.LastError.Kind)
}

func TestCardWithoutHandleIsRejected(t *testing.T) {
	f := newFixture(t)

	s, err := f.orch.Submit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, domain.PhaseIdle, s.Phase())
	f.backend.AssertNumberOfCalls(t, "CreatePaymentIntent", 0)
}

func TestFailedCardCanBeRetriedAfterReset(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SetMethodInput(domain.MethodInput{CardHandle: "pm_card_visa"}))
	f.backend.On("CreatePaymentIntent", mock.Anything, mock.Anything).Return("", ErrBackendUnavailable).Once()
	f.backend.On("CreatePaymentIntent", mock.Anything, mock.Anything).Return("sec_2", nil).Once()
	f.gateway.On("ConfirmCardPayment", mock.Anything, mock.Anything).
		Return(ConfirmResult{Status: domain.GatewaySucceeded, PaymentID: "pi_9"}, nil).Once()

	s, err := f.orch.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.PhaseFailed, s.Phase())

	_, err = f.orch.Submit(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	require.NoError(t, f.orch.Reset())
	s, err = f.orch.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSucceeded, s.Phase())
	assert.Nil(t, s.LastError)
	f.backend.AssertNumberOfCalls(t, "CreatePaymentIntent", 2)
}

// --- UPI / COD ---

func TestUPIEmptyPayerNeverCallsBackend(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SelectMethod(domain.KindUPI))

	s, err := f.orch.Submit(context.Background())
	require.Error(t, err)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindValidation, kind)
	assert.Equal(t, domain.PhaseIdle, s.Phase())
	require.NotNil(t, s.LastError)
	assert.Equal(t, domain.KindValidation, s.LastError.Kind)
	f.backend.AssertNumberOfCalls(t, "CreateOrder", 0)
	assert.Empty(t, f.publisher.names())
}

func TestUPIOrderCreated(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SelectMethod(domain.KindUPI))
	require.NoError(t, f.orch.SetMethodInput(domain.MethodInput{UPIPayerID: "  buyer@okbank "}))

	f.backend.On("CreateOrder", mock.Anything, OrderRequest{
		SessionID:  "sess-1",
		Amount:     domain.Money{MinorUnits: 1999, Currency: "inr"},
		Method:     domain.KindUPI,
		UPIPayerID: "buyer@okbank",
		Product:    &domain.ProductRef{ID: "p-7", Name: "Warli painting"},
	}).Return("ord_42", nil).Once()

	s, err := f.orch.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseSucceeded, s.Phase())
	assert.Equal(t, "ord_42", s.Reference)
	assert.False(t, s.Simulated)
	assert.Contains(t, s.StatusText, "UPI app")
	assert.NotContains(t, s.StatusText, "simulated")
	f.backend.AssertExpectations(t)
}

func TestNonCardFallbackIsSimulated(t *testing.T) {
	tests := []struct {
		kind  domain.MethodKind
		input domain.MethodInput
	}{
		{domain.KindUPI, domain.MethodInput{UPIPayerID: "buyer@okbank"}},
		{domain.KindCashOnDelivery, domain.MethodInput{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.orch.SelectMethod(tt.kind))
			require.NoError(t, f.orch.SetMethodInput(tt.input))
			f.backend.On("CreateOrder", mock.Anything, mock.Anything).
				Return("", errors.New("dial tcp 127.0.0.1:4242: connect: connection refused")).Once()

			s, err := f.orch.Submit(context.Background())
			require.NoError(t, err)

			assert.Equal(t, domain.PhaseSucceeded, s.Phase())
			assert.True(t, s.Simulated)
			assert.Contains(t, s.StatusText, "simulated")
			assert.Contains(t, s.StatusText, "locally")
			assert.Nil(t, s.LastError)

			orders, _ := f.ledger.List(context.Background())
			require.Len(t, orders, 1)
			assert.Equal(t, tt.kind, orders[0].Method)
			assert.Equal(t, s.Reference, orders[0].ID)
			assert.Equal(t, int64(1999), orders[0].Amount.MinorUnits)
			assert.Equal(t, []string{"checkout.simulated_order_recorded", "checkout.succeeded"}, f.publisher.names())
		})
	}
}

func TestCashOnDeliveryOrderPlaced(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SelectMethod(domain.KindCashOnDelivery))
	f.backend.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req OrderRequest) bool {
		return req.Method == domain.KindCashOnDelivery && req.UPIPayerID == ""
	})).Return("", nil).Once()

	s, err := f.orch.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseSucceeded, s.Phase())
	assert.Contains(t, s.StatusText, "Cash on Delivery")
	assert.False(t, s.Simulated)
}

// --- concurrency ---

func TestSecondSubmitWhileInFlightIsNoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SelectMethod(domain.KindCashOnDelivery))

	release := make(chan struct{})
	f.backend.On("CreateOrder", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return("ord_1", nil)

	done := make(chan *domain.Session, 1)
	go func() {
		s, _ := f.orch.Submit(context.Background())
		done <- s
	}()

	require.Eventually(t, func() bool {
		return f.orch.Snapshot().Phase() == domain.PhaseAwaitingManualAction
	}, time.Second, time.Millisecond)

	s, err := f.orch.Submit(context.Background())
	assert.ErrorIs(t, err, domain.ErrSubmitInFlight)
	assert.Equal(t, domain.PhaseAwaitingManualAction, s.Phase())
	assert.Equal(t, "Placing COD order...", s.StatusText)

	close(release)
	final := <-done
	assert.Equal(t, domain.PhaseSucceeded, final.Phase())
	f.backend.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestAbandonDiscardsLateResult(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SelectMethod(domain.KindCashOnDelivery))
	f.backend.On("CreateOrder", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.Canceled)

	errc := make(chan error, 1)
	go func() {
		_, err := f.orch.Submit(context.Background())
		errc <- err
	}()

	require.Eventually(t, func() bool {
		return f.orch.Snapshot().Phase().InFlight()
	}, time.Second, time.Millisecond)
	f.orch.Abandon()

	assert.ErrorIs(t, <-errc, ErrSessionClosed)
	assert.Equal(t, domain.PhaseAwaitingManualAction, f.orch.Snapshot().Phase())
	orders, _ := f.ledger.List(context.Background())
	assert.Empty(t, orders)
	assert.Empty(t, f.publisher.names())
	assert.ErrorIs(t, f.orch.SelectMethod(domain.KindCard), ErrSessionClosed)
}
