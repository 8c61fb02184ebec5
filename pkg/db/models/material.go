package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Material is a cloth type the shop trades in.
type Material struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name          string          `gorm:"column:name;not null;uniqueIndex"`
	Category      *string         `gorm:"column:category"`
	PricePerMeter decimal.Decimal `gorm:"column:price_per_meter;type:numeric;not null;default:0"`
}
