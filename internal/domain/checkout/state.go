package checkout

// Phase is the position of a session in the checkout state machine.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseSubmitting           Phase = "submitting"
	PhaseConfirmingExternal   Phase = "confirming_external"
	PhaseAwaitingManualAction Phase = "awaiting_manual_action"
	PhaseSucceeded            Phase = "succeeded"
	PhaseFailed               Phase = "failed"
)

// InFlight reports whether a submission is running in this phase.
func (p Phase) InFlight() bool {
	return p == PhaseSubmitting || p == PhaseConfirmingExternal || p == PhaseAwaitingManualAction
}

// Terminal reports whether the phase is a final outcome.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// sessionState implements the state pattern for session phase transitions.
type sessionState interface {
	Phase() Phase
	OnSubmit(s *Session) (sessionState, error)
	OnValidationFailed(s *Session, f *Failure) (sessionState, error)
	OnDispatched(s *Session, statusText string) (sessionState, error)
	OnCompleted(s *Session, o Outcome) (sessionState, error)
	OnReset(s *Session) (sessionState, error)
}

// rejectAll refuses every transition; states embed it and override what they allow.
type rejectAll struct{}

func (rejectAll) OnSubmit(*Session) (sessionState, error) { return nil, ErrInvalidStateTransition }
func (rejectAll) OnValidationFailed(*Session, *Failure) (sessionState, error) {
	return nil, ErrInvalidStateTransition
}
func (rejectAll) OnDispatched(*Session, string) (sessionState, error) {
	return nil, ErrInvalidStateTransition
}
func (rejectAll) OnCompleted(*Session, Outcome) (sessionState, error) {
	return nil, ErrInvalidStateTransition
}
func (rejectAll) OnReset(*Session) (sessionState, error) { return nil, ErrInvalidStateTransition }

type idleState struct{ rejectAll }

func (idleState) Phase() Phase { return PhaseIdle }

func (idleState) OnSubmit(s *Session) (sessionState, error) {
	s.clearFeedback()
	return submittingState{}, nil
}

func (idleState) OnReset(s *Session) (sessionState, error) {
	s.clearFeedback()
	return idleState{}, nil
}

type submittingState struct{ rejectAll }

func (submittingState) Phase() Phase { return PhaseSubmitting }

func (submittingState) OnSubmit(*Session) (sessionState, error) { return nil, ErrSubmitInFlight }

func (submittingState) OnReset(*Session) (sessionState, error) { return nil, ErrSubmitInFlight }

func (submittingState) OnValidationFailed(s *Session, f *Failure) (sessionState, error) {
	s.clearFeedback()
	s.LastError = f
	s.StatusText = f.Message
	return idleState{}, nil
}

func (submittingState) OnDispatched(s *Session, statusText string) (sessionState, error) {
	s.StatusText = statusText
	if s.Method.Phase() == PhaseConfirmingExternal {
		return confirmingExternalState{}, nil
	}
	return awaitingManualActionState{}, nil
}

// inFlight is shared by the two phases that wait on external calls.
type inFlight struct{ rejectAll }

func (inFlight) OnSubmit(*Session) (sessionState, error) { return nil, ErrSubmitInFlight }

func (inFlight) OnReset(*Session) (sessionState, error) { return nil, ErrSubmitInFlight }

func (inFlight) OnCompleted(s *Session, o Outcome) (sessionState, error) {
	s.StatusText = o.StatusText
	s.Reference = o.Reference
	s.Simulated = o.Simulated
	if o.Succeeded {
		s.LastError = nil
		return succeededState{}, nil
	}
	s.LastError = o.Failure
	return failedState{}, nil
}

type confirmingExternalState struct{ inFlight }

func (confirmingExternalState) Phase() Phase { return PhaseConfirmingExternal }

type awaitingManualActionState struct{ inFlight }

func (awaitingManualActionState) Phase() Phase { return PhaseAwaitingManualAction }

// terminal phases only leave through an explicit reset.
type terminal struct{ rejectAll }

func (terminal) OnReset(s *Session) (sessionState, error) {
	s.clearFeedback()
	s.Reference = ""
	s.Simulated = false
	return idleState{}, nil
}

type succeededState struct{ terminal }

func (succeededState) Phase() Phase { return PhaseSucceeded }

type failedState struct{ terminal }

func (failedState) Phase() Phase { return PhaseFailed }
