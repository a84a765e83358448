package checkout

import (
	"context"
	"strings"
)

// MethodKind names a payment method on the wire.
type MethodKind string

const (
	KindCard           MethodKind = "card"
	KindUPI            MethodKind = "upi"
	KindCashOnDelivery MethodKind = "cod"
)

const minUPIPayerLength = 3

// CardHandle is an opaque reference to card details captured by the payment gateway
// (for Stripe, a PaymentMethod id). The service never sees card numbers.
type CardHandle string

// Ready reports whether the gateway has handed back a usable handle.
func (h CardHandle) Ready() bool { return strings.TrimSpace(string(h)) != "" }

// MethodHandler runs the protocol of each payment method. Every variant must be handled.
type MethodHandler interface {
	HandleCard(ctx context.Context, m Card) Outcome
	HandleUPI(ctx context.Context, m UPI) Outcome
	HandleCashOnDelivery(ctx context.Context, m CashOnDelivery) Outcome
}

// Method is the closed set of payment methods. Only this package can add variants.
type Method interface {
	Kind() MethodKind
	// Validate checks method-specific input before any external call is made.
	Validate() error
	// Dispatch invokes the handler for the concrete variant.
	Dispatch(ctx context.Context, h MethodHandler) Outcome
	// Phase is the phase a submission of this method waits in.
	Phase() Phase

	sealed()
}

// Card pays through the gateway with a card captured client-side.
type Card struct {
	Handle CardHandle
}

func (Card) Kind() MethodKind { return KindCard }
func (Card) Phase() Phase     { return PhaseConfirmingExternal }
func (Card) sealed()          {}

func (c Card) Validate() error {
	if !c.Handle.Ready() {
		return NewFailure(KindValidation, "Card details are not ready yet.", nil)
	}
	return nil
}

func (c Card) Dispatch(ctx context.Context, h MethodHandler) Outcome {
	return h.HandleCard(ctx, c)
}

// UPI creates an order the buyer pays from their UPI app.
type UPI struct {
	PayerID string
}

func (UPI) Kind() MethodKind { return KindUPI }
func (UPI) Phase() Phase     { return PhaseAwaitingManualAction }
func (UPI) sealed()          {}

func (u UPI) Validate() error {
	if len(strings.TrimSpace(u.PayerID)) < minUPIPayerLength {
		return NewFailure(KindValidation, "Enter a valid UPI ID", nil)
	}
	return nil
}

func (u UPI) Dispatch(ctx context.Context, h MethodHandler) Outcome {
	return h.HandleUPI(ctx, u)
}

// CashOnDelivery creates an order paid to the courier.
type CashOnDelivery struct{}

func (CashOnDelivery) Kind() MethodKind { return KindCashOnDelivery }
func (CashOnDelivery) Phase() Phase     { return PhaseAwaitingManualAction }
func (CashOnDelivery) Validate() error  { return nil }
func (CashOnDelivery) sealed()          {}

func (c CashOnDelivery) Dispatch(ctx context.Context, h MethodHandler) Outcome {
	return h.HandleCashOnDelivery(ctx, c)
}

// NewMethod returns an empty variant for kind.
func NewMethod(kind MethodKind) (Method, error) {
	switch MethodKind(strings.ToLower(string(kind))) {
	case KindCard:
		return Card{}, nil
	case KindUPI:
		return UPI{}, nil
	case KindCashOnDelivery:
		return CashOnDelivery{}, nil
	default:
		return nil, ErrUnknownMethod
	}
}

// MethodInput carries method-specific fields entered by the buyer.
// Fields that do not belong to the selected method are ignored.
type MethodInput struct {
	CardHandle CardHandle
	UPIPayerID string
}

// apply returns m with the input fields relevant to its variant.
func apply(m Method, in MethodInput) Method {
	switch v := m.(type) {
	case Card:
		v.Handle = in.CardHandle
		return v
	case UPI:
		v.PayerID = strings.TrimSpace(in.UPIPayerID)
		return v
	default:
		return m
	}
}

// GatewayStatus is the confirmation status reported by the payment gateway.
type GatewayStatus string

const (
	GatewaySucceeded      GatewayStatus = "succeeded"
	GatewayRequiresAction GatewayStatus = "requires_action"
	GatewayError          GatewayStatus = "error"
)

// Outcome is the terminal result of running a method's protocol.
type Outcome struct {
	Succeeded  bool
	StatusText string
	Failure    *Failure
	// Reference is the gateway payment id or the order id.
	Reference string
	// Simulated marks orders recorded locally because the backend was unavailable.
	Simulated bool
}

func Success(statusText, reference string, simulated bool) Outcome {
	return Outcome{Succeeded: true, StatusText: statusText, Reference: reference, Simulated: simulated}
}

func Failed(f *Failure, statusText string) Outcome {
	return Outcome{StatusText: statusText, Failure: f}
}
