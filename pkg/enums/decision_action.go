package enums

import "fmt"

// DecisionAction is a structured per-item decision extracted from a customer
// reply by the external classifier.
type DecisionAction string

const (
	DecisionAccept             DecisionAction = "accept"
	DecisionCancel             DecisionAction = "cancel"
	DecisionRequestAlternative DecisionAction = "request_alternative"
	DecisionEdit               DecisionAction = "edit"
)

var validDecisionActions = []DecisionAction{
	DecisionAccept,
	DecisionCancel,
	DecisionRequestAlternative,
	DecisionEdit,
}

// String implements fmt.Stringer.
func (d DecisionAction) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DecisionAction.
func (d DecisionAction) IsValid() bool {
	for _, candidate := range validDecisionActions {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDecisionAction converts raw input into a DecisionAction.
func ParseDecisionAction(value string) (DecisionAction, error) {
	for _, candidate := range validDecisionActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid decision action %q", value)
}
