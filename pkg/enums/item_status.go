package enums

import "fmt"

// ItemStatus tracks the negotiation outcome of a single session item.
type ItemStatus string

const (
	ItemStatusNegotiating ItemStatus = "negotiating"
	ItemStatusAccepted    ItemStatus = "accepted"
	ItemStatusCancelled   ItemStatus = "cancelled"
	ItemStatusReplaced    ItemStatus = "replaced"
)

var validItemStatuses = []ItemStatus{
	ItemStatusNegotiating,
	ItemStatusAccepted,
	ItemStatusCancelled,
	ItemStatusReplaced,
}

// String implements fmt.Stringer.
func (s ItemStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ItemStatus.
func (s ItemStatus) IsValid() bool {
	for _, candidate := range validItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsLive reports whether the item still participates in the session.
// Cancelled and replaced items stay persisted for audit but are dead.
func (s ItemStatus) IsLive() bool {
	return s == ItemStatusNegotiating || s == ItemStatusAccepted
}

// ParseItemStatus converts raw input into an ItemStatus.
func ParseItemStatus(value string) (ItemStatus, error) {
	for _, candidate := range validItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item status %q", value)
}
