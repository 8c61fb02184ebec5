package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bunai-labs/bunai-backend/pkg/db/types"
	"github.com/bunai-labs/bunai-backend/pkg/enums"
)

// OrderSessionItem is one requested line inside a session. Items are never
// deleted; cancellation and replacement are status transitions so the
// negotiation history stays auditable. ReplacedBy points forward to the
// successor item, never the reverse.
type OrderSessionItem struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`

	MaterialName     string  `gorm:"column:material_name;not null"`
	Color            *string `gorm:"column:color"`
	InputQuantity    float64 `gorm:"column:input_quantity;not null"`
	InputUnit        string  `gorm:"column:input_unit;not null;default:'meter'"`
	NormalizedMeters float64 `gorm:"column:normalized_meters;not null"`

	Status     enums.ItemStatus `gorm:"column:status;not null;default:'negotiating'"`
	ReplacedBy *uuid.UUID       `gorm:"column:replaced_by;type:uuid"`

	InventoryStatus *enums.InventoryStatus `gorm:"column:inventory_status"`
	AvailableMeters float64                `gorm:"column:available_meters;not null;default:0"`
	Allocations     types.BatchAllocations `gorm:"column:allocations;type:jsonb"`

	// RequestedMeters keeps the original demand when accept normalizes a
	// partial item's quantity down.
	RequestedMeters *float64 `gorm:"column:requested_meters"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsLive reports whether the item still counts toward session resolution.
func (i OrderSessionItem) IsLive() bool {
	return i.Status.IsLive()
}

// IsResolved reports whether negotiation finished for this item: it is no
// longer negotiating, and an out-of-stock result has been dealt with.
func (i OrderSessionItem) IsResolved() bool {
	if i.Status == enums.ItemStatusCancelled || i.Status == enums.ItemStatusReplaced {
		return true
	}
	if i.Status == enums.ItemStatusNegotiating {
		return false
	}
	// An accepted item that still carries an out-of-stock snapshot keeps
	// the session open until the snapshot is refreshed.
	if i.InventoryStatus != nil && *i.InventoryStatus == enums.InventoryStatusOut {
		return false
	}
	return true
}
