package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bunai-labs/bunai-backend/pkg/enums"
)

// CreditEntry is one row of the customer credit ledger. Invoices add credit
// rows; payments settle them. Outstanding balance is recomputed from the sum.
type CreditEntry struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	CustomerPhone string                `gorm:"column:customer_phone;not null;index"`
	OrderID       *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	Amount        decimal.Decimal       `gorm:"column:amount;type:numeric;not null"`
	Type          enums.CreditEntryType `gorm:"column:type;not null"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}
