package checkout

import (
	"context"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const localOrderPrefix = "local-"

// submission runs the protocol of the method being submitted.
type submission struct {
	o      *Orchestrator
	logger observability.Logger
}

var _ domain.MethodHandler = (*submission)(nil)

// HandleCard requests a payment intent and then confirms it with the gateway.
// There is no fallback: a card charge is never simulated.
func (s *submission) HandleCard(ctx context.Context, m domain.Card) domain.Outcome {
	o := s.o
	var clientSecret string
	err := o.callExternal(ctx, s.logger, peerOrderBackend, endpointIntent, func(ctx context.Context) error {
		var err error
		clientSecret, err = o.deps.Backend.CreatePaymentIntent(ctx, IntentRequest{
			SessionID: o.session.ID,
			Amount:    o.session.Amount,
			Product:   o.session.Product,
		})
		return err
	})
	if err != nil {
		return networkFailure(err)
	}

	o.progress("Confirming card payment...")

	var res ConfirmResult
	err = o.callExternal(ctx, s.logger, peerGateway, endpointConfirm, func(ctx context.Context) error {
		var err error
		res, err = o.deps.Gateway.ConfirmCardPayment(ctx, ConfirmRequest{
			ClientSecret: clientSecret,
			Card:         m.Handle,
		})
		return err
	})
	if err != nil {
		return networkFailure(err)
	}

	if res.Status == domain.GatewaySucceeded {
		return domain.Success("Payment succeeded. Thank you!", res.PaymentID, false)
	}
	reason := res.Message
	if reason == "" {
		reason = "Payment not completed."
	}
	s.logger.Info("card_payment_declined",
		observability.F("gateway_status", string(res.Status)),
		observability.F("reason", reason),
	)
	return domain.Failed(
		domain.NewFailure(domain.KindGatewayDeclined, reason, nil),
		"Payment failed: "+reason,
	)
}

func (s *submission) HandleUPI(ctx context.Context, m domain.UPI) domain.Outcome {
	orderID, ok := s.placeOrder(ctx, domain.KindUPI, m.PayerID)
	if !ok {
		return domain.Success("UPI order recorded locally (simulated). Please complete payment using your UPI app.", orderID, true)
	}
	return domain.Success("UPI order created. Complete payment from your UPI app.", orderID, false)
}

func (s *submission) HandleCashOnDelivery(ctx context.Context, _ domain.CashOnDelivery) domain.Outcome {
	orderID, ok := s.placeOrder(ctx, domain.KindCashOnDelivery, "")
	if !ok {
		return domain.Success("Placed order locally (COD simulated). The courier will collect payment on delivery.", orderID, true)
	}
	return domain.Success("Order placed (Cash on Delivery). The courier will collect payment on delivery.", orderID, false)
}

// placeOrder asks the backend to create the order. When the backend cannot be reached the
// order is recorded in the local ledger instead and ok is false.
func (s *submission) placeOrder(ctx context.Context, kind domain.MethodKind, upiPayer string) (orderID string, ok bool) {
	o := s.o
	err := o.callExternal(ctx, s.logger, peerOrderBackend, endpointOrder, func(ctx context.Context) error {
		var err error
		orderID, err = o.deps.Backend.CreateOrder(ctx, OrderRequest{
			SessionID:  o.session.ID,
			Amount:     o.session.Amount,
			Method:     kind,
			UPIPayerID: upiPayer,
			Product:    o.session.Product,
		})
		return err
	})
	if err == nil {
		return orderID, true
	}
	if ctx.Err() != nil {
		// abandoned; the result is discarded
		return "", false
	}

	local := domain.SimulatedOrder{
		ID:         localOrderPrefix + o.newID(),
		SessionID:  o.session.ID,
		Method:     kind,
		Amount:     o.session.Amount,
		UPIPayerID: upiPayer,
		Product:    o.session.Product,
		Cause:      err.Error(),
	}
	if o.deps.Ledger != nil {
		if lerr := o.deps.Ledger.Record(context.WithoutCancel(ctx), local); lerr != nil {
			s.logger.Error("simulated_order_record_failed",
				observability.F("order_id", local.ID),
				observability.Err(lerr),
			)
		}
	}
	s.logger.Warn("order_backend_fallback",
		observability.F("method", string(kind)),
		observability.F("order_id", local.ID),
		observability.F("cause", err.Error()),
	)
	o.publishEvent(ctx, s.logger, domain.NewSimulatedOrderRecordedEvent(local))
	return local.ID, false
}

func (o *Orchestrator) newID() string {
	if o.deps.IDs == nil {
		return o.session.ID
	}
	return o.deps.IDs.NewID()
}

func networkFailure(err error) domain.Outcome {
	return domain.Failed(
		domain.NewFailure(domain.KindNetwork, networkErrMessage, err),
		"Payment failed: "+networkErrMessage,
	)
}
