package enums

import "fmt"

// SessionState tracks the workflow stage of an order session.
type SessionState string

const (
	SessionStateInitiated         SessionState = "order_initiated"
	SessionStateNegotiationCheck  SessionState = "negotiation_check"
	SessionStateNegotiation       SessionState = "customer_negotiation"
	SessionStateFinalConfirmation SessionState = "final_confirmation"
	SessionStateWaitingOwner      SessionState = "waiting_owner_confirmation"
	SessionStateOrderCompleted    SessionState = "order_completed"
	SessionStateOrderRejected     SessionState = "order_rejected"
	SessionStateLedgerUpdated     SessionState = "ledger_updated"
)

var validSessionStates = []SessionState{
	SessionStateInitiated,
	SessionStateNegotiationCheck,
	SessionStateNegotiation,
	SessionStateFinalConfirmation,
	SessionStateWaitingOwner,
	SessionStateOrderCompleted,
	SessionStateOrderRejected,
	SessionStateLedgerUpdated,
}

// TerminalSessionStates lists states in which a session is closed; a customer
// phone may hold at most one session outside this set.
var TerminalSessionStates = []SessionState{
	SessionStateOrderCompleted,
	SessionStateOrderRejected,
	SessionStateLedgerUpdated,
}

// String implements fmt.Stringer.
func (s SessionState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SessionState.
func (s SessionState) IsValid() bool {
	for _, candidate := range validSessionStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the session is closed.
func (s SessionState) IsTerminal() bool {
	for _, candidate := range TerminalSessionStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSessionState converts raw input into a SessionState.
func ParseSessionState(value string) (SessionState, error) {
	for _, candidate := range validSessionStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session state %q", value)
}
