package enums

// InventoryStatus classifies an allocation-planner result.
type InventoryStatus string

const (
	InventoryStatusFull    InventoryStatus = "FULL_AVAILABLE"
	InventoryStatusPartial InventoryStatus = "PARTIAL_AVAILABLE"
	InventoryStatusOut     InventoryStatus = "OUT_OF_STOCK"
)

// String implements fmt.Stringer.
func (s InventoryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known InventoryStatus.
func (s InventoryStatus) IsValid() bool {
	switch s {
	case InventoryStatusFull, InventoryStatusPartial, InventoryStatusOut:
		return true
	}
	return false
}
