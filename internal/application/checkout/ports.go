package checkout

import (
	"context"
	"errors"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
)

// ErrBackendUnavailable is returned by OrderBackend for non-2xx replies and transport failures.
var ErrBackendUnavailable = errors.New("order backend: unavailable")

// ErrSessionClosed is returned once a session has been abandoned.
var ErrSessionClosed = errors.New("checkout: session closed")

type IDGenerator interface {
	NewID() string
}

type IntentRequest struct {
	SessionID string
	Amount    domain.Money
	Product   *domain.ProductRef
}

type OrderRequest struct {
	SessionID  string
	Amount     domain.Money
	Method     domain.MethodKind
	UPIPayerID string
	Product    *domain.ProductRef
}

// OrderBackend is the storefront's order and payment-intent API.
type OrderBackend interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (clientSecret string, err error)
	// CreateOrder returns the backend order id when the backend reports one.
	CreateOrder(ctx context.Context, req OrderRequest) (orderID string, err error)
}

type ConfirmRequest struct {
	ClientSecret string
	Card         domain.CardHandle
}

type ConfirmResult struct {
	Status    domain.GatewayStatus
	PaymentID string
	// Message is the gateway's human-readable reason for a non-succeeded status.
	Message string
}

// PaymentGateway confirms card payments. A returned error means the gateway could not be
// reached; declines are reported through ConfirmResult.
type PaymentGateway interface {
	ConfirmCardPayment(ctx context.Context, req ConfirmRequest) (ConfirmResult, error)
}

// SessionStore keeps the orchestrator of every open session.
type SessionStore interface {
	Insert(ctx context.Context, o *Orchestrator) error
	Get(ctx context.Context, id string) (*Orchestrator, error)
	Delete(ctx context.Context, id string) error
}
