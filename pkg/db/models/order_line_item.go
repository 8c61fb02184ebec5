package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLineItem is the permanent per-material line created at approval time,
// after inventory has actually been deducted.
type OrderLineItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	MaterialID     uuid.UUID       `gorm:"column:material_id;type:uuid;not null"`
	Color          *string         `gorm:"column:color"`
	QuantityMeters float64         `gorm:"column:quantity_meters;not null"`
	PricePerMeter  decimal.Decimal `gorm:"column:price_per_meter;type:numeric;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
