package enums

// OrderStatus is the denormalized reporting status on the parent order row,
// kept in sync with the session workflow state.
type OrderStatus string

const (
	OrderStatusInitiated       OrderStatus = "INITIATED"
	OrderStatusPendingApproval OrderStatus = "PENDING_APPROVAL"
	OrderStatusCompleted       OrderStatus = "COMPLETED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}
