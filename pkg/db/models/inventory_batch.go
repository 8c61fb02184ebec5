package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryBatch is a physical lot of one material/color. Stock is held as
// whole rolls plus loose meters; total meters = rolls*metersPerRoll + loose.
type InventoryBatch struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	MaterialID           uuid.UUID `gorm:"column:material_id;type:uuid;not null;index"`
	Material             *Material `gorm:"foreignKey:MaterialID"`
	Color                string    `gorm:"column:color;not null"`
	DyeLot               *string   `gorm:"column:dye_lot"`
	RollsAvailable       int       `gorm:"column:rolls_available;not null;default:0"`
	MetersPerRoll        float64   `gorm:"column:meters_per_roll;not null"`
	LooseMetersAvailable float64   `gorm:"column:loose_meters_available;not null;default:0"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TotalMeters returns the full stock of the batch in meters.
func (b InventoryBatch) TotalMeters() float64 {
	return float64(b.RollsAvailable)*b.MetersPerRoll + b.LooseMetersAvailable
}
