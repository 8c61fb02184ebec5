package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is keyed by WhatsApp phone number.
type Customer struct {
	PhoneNumber        string          `gorm:"column:phone_number;primaryKey"`
	BusinessName       *string         `gorm:"column:business_name"`
	CreditLimit        decimal.Decimal `gorm:"column:credit_limit;type:numeric;not null;default:0"`
	OutstandingBalance decimal.Decimal `gorm:"column:outstanding_balance;type:numeric;not null;default:0"`
	LastReminderAt     *time.Time      `gorm:"column:last_reminder_at"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
}
