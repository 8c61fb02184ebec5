package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bunai-labs/bunai-backend/pkg/enums"
)

// OrderSession is the workflow state machine row for one order. At most one
// non-terminal session exists per customer phone.
type OrderSession struct {
	OrderID               uuid.UUID          `gorm:"column:order_id;type:uuid;primaryKey"`
	CustomerPhone         string             `gorm:"column:customer_phone;not null;index"`
	WorkflowState         enums.SessionState `gorm:"column:workflow_state;not null;default:'order_initiated'"`
	NegotiationPending    bool               `gorm:"column:negotiation_pending;not null;default:false"`
	OwnerApprovalRequired bool               `gorm:"column:owner_approval_required;not null;default:false"`
	CreatedAt             time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time          `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderSessionItem `gorm:"foreignKey:OrderID"`
}
