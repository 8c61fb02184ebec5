package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// BatchAllocation records how many meters of a request one batch covers.
type BatchAllocation struct {
	BatchID         uuid.UUID `json:"batch_id"`
	AllocatedMeters float64   `json:"allocated_meters"`
}

// BatchAllocations is the cached allocation snapshot stored on a session
// item, serialized as a JSON column.
type BatchAllocations []BatchAllocation

// Value implements driver.Valuer.
func (a BatchAllocations) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *BatchAllocations) Scan(src any) error {
	if src == nil {
		*a = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported batch allocation source %T", src)
	}
}

// TotalMeters sums the allocated meters across batches.
func (a BatchAllocations) TotalMeters() float64 {
	var total float64
	for _, alloc := range a {
		total += alloc.AllocatedMeters
	}
	return total
}
