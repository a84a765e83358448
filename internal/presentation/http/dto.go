package httppresentation

import (
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
)

type startSessionRequest struct {
	// Amount is the display value in major units, e.g. 19.99.
	Amount      *float64 `json:"amount"`
	AmountMinor *int64   `json:"amount_minor"`
	Currency    string   `json:"currency" validate:"omitempty,alpha,len=3"`
	ProductID   string   `json:"product_id" validate:"max=64"`
	ProductName string   `json:"product_name" validate:"max=200"`
}

type selectMethodRequest struct {
	Method string `json:"method" validate:"required"`
}

type methodInputRequest struct {
	CardHandle string `json:"card_handle" validate:"max=255"`
	UPIID      string `json:"upi_id" validate:"max=100"`
}

type moneyResponse struct {
	MinorUnits int64  `json:"minor_units"`
	Currency   string `json:"currency"`
	Display    string `json:"display"`
}

type failureResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type productResponse struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type sessionResponse struct {
	ID          string           `json:"id"`
	Amount      moneyResponse    `json:"amount"`
	Product     *productResponse `json:"product,omitempty"`
	Phase       string           `json:"phase"`
	InFlight    bool             `json:"in_flight"`
	Method      string           `json:"method"`
	UPIID       string           `json:"upi_id,omitempty"`
	CardReady   bool             `json:"card_ready"`
	StatusText  string           `json:"status_text,omitempty"`
	LastError   *failureResponse `json:"last_error,omitempty"`
	Reference   string           `json:"reference,omitempty"`
	Simulated   bool             `json:"simulated"`
	ActionLabel string           `json:"action_label"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type simulatedOrderResponse struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Method    string           `json:"method"`
	Amount    moneyResponse    `json:"amount"`
	UPIID     string           `json:"upi_id,omitempty"`
	Product   *productResponse `json:"product,omitempty"`
	Cause     string           `json:"cause"`
}

type errorResponse struct {
	Error   failureResponse  `json:"error"`
	Session *sessionResponse `json:"session,omitempty"`
}

func toMoney(m domain.Money) moneyResponse {
	return moneyResponse{
		MinorUnits: m.MinorUnits,
		Currency:   string(m.Currency),
		Display:    m.Display(),
	}
}

func toProduct(p *domain.ProductRef) *productResponse {
	if p == nil {
		return nil
	}
	return &productResponse{ID: p.ID, Name: p.Name}
}

func toSession(s *domain.Session) *sessionResponse {
	if s == nil {
		return nil
	}
	resp := &sessionResponse{
		ID:          s.ID,
		Amount:      toMoney(s.Amount),
		Product:     toProduct(s.Product),
		Phase:       string(s.Phase()),
		InFlight:    s.Phase().InFlight(),
		Method:      string(s.Method.Kind()),
		StatusText:  s.StatusText,
		Reference:   s.Reference,
		Simulated:   s.Simulated,
		ActionLabel: s.ActionLabel(),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	switch m := s.Method.(type) {
	case domain.Card:
		resp.CardReady = m.Handle.Ready()
	case domain.UPI:
		resp.UPIID = m.PayerID
	}
	if s.LastError != nil {
		resp.LastError = &failureResponse{Kind: string(s.LastError.Kind), Message: s.LastError.Message}
	}
	return resp
}

func toSimulatedOrder(o domain.SimulatedOrder) simulatedOrderResponse {
	return simulatedOrderResponse{
		ID:        o.ID,
		SessionID: o.SessionID,
		Method:    string(o.Method),
		Amount:    toMoney(o.Amount),
		UPIID:     o.UPIPayerID,
		Product:   toProduct(o.Product),
		Cause:     o.Cause,
	}
}
