package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is issued exactly once per approved order, inside the approval
// transaction.
type Invoice struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	InvoiceNumber string          `gorm:"column:invoice_number;not null;uniqueIndex"`
	Subtotal      decimal.Decimal `gorm:"column:subtotal;type:numeric;not null"`
	TaxAmount     decimal.Decimal `gorm:"column:tax_amount;type:numeric;not null"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:numeric;not null"`
	DocumentRef   string          `gorm:"column:document_ref;not null;default:'PENDING'"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
