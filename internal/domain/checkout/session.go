package checkout

import (
	"time"
)

// ProductRef identifies what is being bought. Both fields are informational.
type ProductRef struct {
	ID   string
	Name string
}

// Session is one buyer's pass through checkout. It is owned by a single orchestrator
// and never shared between flows.
type Session struct {
	ID         string
	Amount     Money
	Product    *ProductRef
	Method     Method
	StatusText string
	LastError  *Failure
	// Reference is the gateway payment id or order id of a completed session.
	Reference string
	Simulated bool
	CreatedAt time.Time
	UpdatedAt time.Time

	state sessionState
}

// NewSession starts a session in Idle with Card preselected.
func NewSession(id string, amount Money, product *ProductRef) (*Session, error) {
	if amount.MinorUnits < 1 {
		return nil, NewFailure(KindInvalidAmount, "amount must be greater than zero", nil)
	}
	if _, err := ParseCurrency(string(amount.Currency)); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var p *ProductRef
	if product != nil {
		cp := *product
		p = &cp
	}
	return &Session{
		ID:        id,
		Amount:    amount,
		Product:   p,
		Method:    Card{},
		CreatedAt: now,
		UpdatedAt: now,
		state:     idleState{},
	}, nil
}

func (s *Session) Phase() Phase {
	if s.state == nil {
		return PhaseIdle
	}
	return s.state.Phase()
}

// SelectMethod switches the payment method. Input entered for the previous method is discarded.
func (s *Session) SelectMethod(kind MethodKind) error {
	if s.Phase() != PhaseIdle {
		return s.busyErr()
	}
	m, err := NewMethod(kind)
	if err != nil {
		return err
	}
	s.Method = m
	s.touch()
	return nil
}

// SetMethodInput stores the buyer's input for the selected method.
func (s *Session) SetMethodInput(in MethodInput) error {
	if s.Phase() != PhaseIdle {
		return s.busyErr()
	}
	s.Method = apply(s.Method, in)
	s.touch()
	return nil
}

// BeginSubmit moves Idle to Submitting and returns the method to run.
func (s *Session) BeginSubmit() (Method, error) {
	if err := s.transition(s.state.OnSubmit(s)); err != nil {
		return nil, err
	}
	return s.Method, nil
}

// RejectInput returns a submitting session to Idle with a validation failure.
func (s *Session) RejectInput(f *Failure) error {
	return s.transition(s.state.OnValidationFailed(s, f))
}

// Dispatch moves a submitting session into the waiting phase of its method.
func (s *Session) Dispatch(statusText string) error {
	return s.transition(s.state.OnDispatched(s, statusText))
}

// Progress updates the status text while external calls run.
func (s *Session) Progress(statusText string) {
	if s.Phase().InFlight() {
		s.StatusText = statusText
		s.touch()
	}
}

// Complete records the terminal outcome.
func (s *Session) Complete(o Outcome) error {
	return s.transition(s.state.OnCompleted(s, o))
}

// Reset returns a finished session to Idle so it can be submitted again.
func (s *Session) Reset() error {
	return s.transition(s.state.OnReset(s))
}

// ActionLabel is the text of the buyer's submit button.
func (s *Session) ActionLabel() string {
	if s.Phase().InFlight() {
		return "Processing…"
	}
	switch s.Method.Kind() {
	case KindUPI:
		return "Create UPI Order"
	case KindCashOnDelivery:
		return "Place COD Order"
	default:
		return "Pay " + s.Amount.Display()
	}
}

// Clone returns a copy safe to hand to callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Product != nil {
		p := *s.Product
		c.Product = &p
	}
	if s.LastError != nil {
		f := *s.LastError
		c.LastError = &f
	}
	return &c
}

func (s *Session) transition(next sessionState, err error) error {
	if err != nil {
		return err
	}
	s.state = next
	s.touch()
	return nil
}

func (s *Session) busyErr() error {
	if s.Phase().InFlight() {
		return ErrSubmitInFlight
	}
	return ErrInvalidStateTransition
}

func (s *Session) clearFeedback() {
	s.StatusText = ""
	s.LastError = nil
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}
