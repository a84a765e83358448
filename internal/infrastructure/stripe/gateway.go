package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	appcheckout "github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	stripego "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
)

const secretSeparator = "_secret_"

var ErrMalformedClientSecret = errors.New("stripe: malformed client secret")

// confirmer is the slice of the PaymentIntents API the gateway needs.
type confirmer interface {
	Confirm(id string, params *stripego.PaymentIntentConfirmParams) (*stripego.PaymentIntent, error)
}

// Gateway confirms card payments against Stripe PaymentIntents.
type Gateway struct {
	intents confirmer
}

var _ appcheckout.PaymentGateway = (*Gateway)(nil)

// New returns a gateway authenticated with the account's secret key.
func New(secretKey string) *Gateway {
	return &Gateway{intents: &paymentintent.Client{
		B:   stripego.GetBackend(stripego.APIBackend),
		Key: secretKey,
	}}
}

func (g *Gateway) ConfirmCardPayment(ctx context.Context, req appcheckout.ConfirmRequest) (appcheckout.ConfirmResult, error) {
	intentID, err := IntentID(req.ClientSecret)
	if err != nil {
		return appcheckout.ConfirmResult{}, err
	}

	params := &stripego.PaymentIntentConfirmParams{
		PaymentMethod: stripego.String(string(req.Card)),
	}
	params.Context = ctx

	pi, err := g.intents.Confirm(intentID, params)
	if err != nil {
		var serr *stripego.Error
		if errors.As(err, &serr) && !transportFailure(serr) {
			return appcheckout.ConfirmResult{Status: domain.GatewayError, Message: serr.Msg}, nil
		}
		return appcheckout.ConfirmResult{}, fmt.Errorf("stripe: confirm %s: %w", intentID, err)
	}
	return resultOf(pi), nil
}

// IntentID extracts the PaymentIntent id from a client secret of the form
// "pi_123_secret_abc".
func IntentID(clientSecret string) (string, error) {
	id, _, ok := strings.Cut(clientSecret, secretSeparator)
	if !ok || id == "" {
		return "", ErrMalformedClientSecret
	}
	return id, nil
}

func resultOf(pi *stripego.PaymentIntent) appcheckout.ConfirmResult {
	res := appcheckout.ConfirmResult{PaymentID: pi.ID}
	switch pi.Status {
	case stripego.PaymentIntentStatusSucceeded:
		res.Status = domain.GatewaySucceeded
	case stripego.PaymentIntentStatusRequiresAction:
		res.Status = domain.GatewayRequiresAction
		res.Message = "Additional authentication is required to complete this payment."
	default:
		res.Status = domain.GatewayError
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			res.Message = pi.LastPaymentError.Msg
		} else {
			res.Message = fmt.Sprintf("Payment status is %s.", pi.Status)
		}
	}
	return res
}

// transportFailure reports whether Stripe itself could not process the request, as opposed
// to declining it.
func transportFailure(err *stripego.Error) bool {
	return err.Type == stripego.ErrorTypeAPI || err.HTTPStatusCode == 0 || err.HTTPStatusCode >= 500
}
