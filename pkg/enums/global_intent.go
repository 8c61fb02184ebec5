package enums

// GlobalIntent is the whole-message intent of a customer reply during final
// confirmation.
type GlobalIntent string

const (
	IntentConfirmOrder GlobalIntent = "confirm_order"
	IntentCancelOrder  GlobalIntent = "cancel_order"
	IntentModifyOrder  GlobalIntent = "modify_order"
	IntentUnclear      GlobalIntent = "unclear"
)

// String implements fmt.Stringer.
func (g GlobalIntent) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GlobalIntent.
func (g GlobalIntent) IsValid() bool {
	switch g {
	case IntentConfirmOrder, IntentCancelOrder, IntentModifyOrder, IntentUnclear:
		return true
	}
	return false
}
