package checkout

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

// DefaultAmount is charged when a caller opens checkout without an amount.
const DefaultAmount int64 = 1999

// Service opens checkout sessions and routes buyer actions to their orchestrator.
type Service struct {
	store SessionStore
	deps  Dependencies
	log   observability.Logger
}

func NewService(store SessionStore, deps Dependencies) *Service {
	if deps.Tel == nil {
		deps.Tel = observability.Nop()
	}
	return &Service{
		store: store,
		deps:  deps,
		log:   deps.Tel.Logger().With(observability.F("component", "checkout_service")),
	}
}

// StartInput describes the cart total. Give either DisplayAmount (major units, as shown)
// or MinorUnits; with neither, DefaultAmount is used.
type StartInput struct {
	DisplayAmount *float64
	MinorUnits    *int64
	Currency      string
	ProductID     string
	ProductName   string
}

// Start normalises the amount and opens a session in Idle.
func (s *Service) Start(ctx context.Context, in StartInput) (*domain.Session, error) {
	currency := in.Currency
	if currency == "" {
		currency = string(domain.DefaultCurrency)
	}

	var (
		amount domain.Money
		err    error
	)
	switch {
	case in.DisplayAmount != nil && in.MinorUnits != nil:
		return nil, domain.NewFailure(domain.KindInvalidAmount, "give either a display amount or minor units, not both", nil)
	case in.DisplayAmount != nil:
		amount, err = domain.Normalize(*in.DisplayAmount, currency)
	case in.MinorUnits != nil:
		amount, err = domain.NewMoney(*in.MinorUnits, currency)
	default:
		amount, err = domain.NewMoney(DefaultAmount, currency)
	}
	if err != nil {
		return nil, err
	}

	var product *domain.ProductRef
	if in.ProductID != "" || in.ProductName != "" {
		product = &domain.ProductRef{ID: in.ProductID, Name: in.ProductName}
	}

	session, err := domain.NewSession(s.deps.IDs.NewID(), amount, product)
	if err != nil {
		return nil, err
	}
	orch := NewOrchestrator(session, s.deps)
	if err := s.store.Insert(ctx, orch); err != nil {
		return nil, fmt.Errorf("checkout: store session: %w", err)
	}

	logctx.FromOr(ctx, s.log).Info("checkout_started",
		observability.F("session_id", session.ID),
		observability.F("amount", amount.MinorUnits),
		observability.F("currency", string(amount.Currency)),
	)
	return orch.Snapshot(), nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Session, error) {
	orch, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return orch.Snapshot(), nil
}

func (s *Service) SelectMethod(ctx context.Context, id string, kind domain.MethodKind) (*domain.Session, error) {
	return s.apply(ctx, id, func(o *Orchestrator) error { return o.SelectMethod(kind) })
}

func (s *Service) SetMethodInput(ctx context.Context, id string, in domain.MethodInput) (*domain.Session, error) {
	return s.apply(ctx, id, func(o *Orchestrator) error { return o.SetMethodInput(in) })
}

func (s *Service) Reset(ctx context.Context, id string) (*domain.Session, error) {
	return s.apply(ctx, id, (*Orchestrator).Reset)
}

// Submit runs the session's payment protocol; see Orchestrator.Submit.
func (s *Service) Submit(ctx context.Context, id string) (*domain.Session, error) {
	orch, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	session, err := orch.Submit(ctx)
	if errors.Is(err, ErrSessionClosed) {
		_ = s.store.Delete(context.WithoutCancel(ctx), id)
	}
	return session, err
}

// Abandon closes the session and forgets it.
func (s *Service) Abandon(ctx context.Context, id string) error {
	orch, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	orch.Abandon()
	return s.store.Delete(ctx, id)
}

func (s *Service) apply(ctx context.Context, id string, fn func(*Orchestrator) error) (*domain.Session, error) {
	orch, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(orch); err != nil {
		return orch.Snapshot(), err
	}
	return orch.Snapshot(), nil
}
