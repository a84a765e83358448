package checkout

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a checkout step failed.
type ErrorKind string

const (
	KindInvalidAmount   ErrorKind = "invalid_amount"
	KindValidation      ErrorKind = "validation_error"
	KindNetwork         ErrorKind = "network_error"
	KindGatewayDeclined ErrorKind = "gateway_declined"
)

var (
	ErrInvalidAmount   = errors.New("checkout: invalid amount")
	ErrValidation      = errors.New("checkout: validation failed")
	ErrNetwork         = errors.New("checkout: network error")
	ErrGatewayDeclined = errors.New("checkout: payment declined")

	ErrNotFound               = errors.New("checkout: session not found")
	ErrInvalidStateTransition = errors.New("checkout: invalid state transition")
	ErrSubmitInFlight         = errors.New("checkout: submission already in flight")
	ErrMethodRequired         = errors.New("checkout: payment method not selected")
	ErrUnknownMethod          = errors.New("checkout: unknown payment method")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidAmount:   ErrInvalidAmount,
	KindValidation:      ErrValidation,
	KindNetwork:         ErrNetwork,
	KindGatewayDeclined: ErrGatewayDeclined,
}

// Failure is the error recorded on a session. Message is safe to show to the buyer.
type Failure struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewFailure(kind ErrorKind, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: cause}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Is matches the sentinel for the failure's kind.
func (f *Failure) Is(target error) bool {
	return kindSentinels[f.Kind] == target
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf extracts the failure kind from err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}
