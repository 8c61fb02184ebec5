package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bunai-labs/bunai-backend/pkg/enums"
)

// Order is the permanent order record. Its status is denormalized from the
// session workflow state for listing/reporting.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CustomerPhone string            `gorm:"column:customer_phone;not null;index"`
	Status        enums.OrderStatus `gorm:"column:status;not null;default:'INITIATED'"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
}
