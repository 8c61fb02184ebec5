package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxRate holds the GST rate per material category. The "default" category is
// the configured fallback before the hard-coded one.
type TaxRate struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Category  string          `gorm:"column:category;not null;uniqueIndex"`
	Rate      decimal.Decimal `gorm:"column:rate;type:numeric;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
