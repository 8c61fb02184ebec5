package customers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	"github.com/bunai-labs/bunai-backend/pkg/enums"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
	"github.com/bunai-labs/bunai-backend/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:customers_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Customer{}, &models.CreditEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, window time.Duration) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	svc, err := NewService(NewRepository(db), window, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRecordInvoiceCredit_RaisesBalance(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, 7*24*time.Hour)
	ctx := context.Background()

	customer, err := svc.RecordInvoiceCredit(ctx, "+911234567890", uuid.New(), decimal.RequireFromString("1050.00"))
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !customer.OutstandingBalance.Equal(decimal.RequireFromString("1050.00")) {
		t.Fatalf("expected 1050 outstanding, got %s", customer.OutstandingBalance)
	}

	customer, err = svc.RecordInvoiceCredit(ctx, "+911234567890", uuid.New(), decimal.RequireFromString("450.00"))
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if !customer.OutstandingBalance.Equal(decimal.RequireFromString("1500.00")) {
		t.Fatalf("expected 1500 outstanding, got %s", customer.OutstandingBalance)
	}
}

func TestRecordPayment_SettlesAndGuardsOverpayment(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, 7*24*time.Hour)
	ctx := context.Background()

	if _, err := svc.RecordInvoiceCredit(ctx, "+911111111111", uuid.New(), decimal.RequireFromString("1000")); err != nil {
		t.Fatalf("credit: %v", err)
	}

	customer, err := svc.RecordPayment(ctx, "+911111111111", decimal.RequireFromString("400"))
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if !customer.OutstandingBalance.Equal(decimal.RequireFromString("600")) {
		t.Fatalf("expected 600 outstanding, got %s", customer.OutstandingBalance)
	}

	_, err = svc.RecordPayment(ctx, "+911111111111", decimal.RequireFromString("700"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("overpayment must be rejected, got %v", err)
	}

	// The failed payment must leave no ledger row behind.
	var count int64
	if err := db.Model(&models.CreditEntry{}).Where("type = ?", enums.CreditEntryPayment).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 payment entry, got %d", count)
	}
}

func TestIsOverdue(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, 7*24*time.Hour)
	ctx := context.Background()

	// Fresh balance inside the window is not overdue.
	if _, err := svc.RecordInvoiceCredit(ctx, "+912222222222", uuid.New(), decimal.RequireFromString("500")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	due, err := svc.IsOverdue(ctx, "+912222222222")
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if due {
		t.Fatalf("fresh balance must not be overdue")
	}

	// Backdated credit with no payment is overdue.
	old := models.CreditEntry{
		ID:            uuid.New(),
		CustomerPhone: "+913333333333",
		Amount:        decimal.RequireFromString("800"),
		Type:          enums.CreditEntryCredit,
		CreatedAt:     time.Now().Add(-10 * 24 * time.Hour),
	}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	if err := db.Create(&models.Customer{
		PhoneNumber:        "+913333333333",
		OutstandingBalance: decimal.RequireFromString("800"),
	}).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	due, err = svc.IsOverdue(ctx, "+913333333333")
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if !due {
		t.Fatalf("backdated unpaid balance must be overdue")
	}

	// A recent payment resets the clock.
	if _, err := svc.RecordPayment(ctx, "+913333333333", decimal.RequireFromString("100")); err != nil {
		t.Fatalf("payment: %v", err)
	}
	due, err = svc.IsOverdue(ctx, "+913333333333")
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if due {
		t.Fatalf("recent payment must reset the overdue clock")
	}

	// Zero balance is never overdue.
	due, err = svc.IsOverdue(ctx, "+914444444444")
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if due {
		t.Fatalf("customer with no balance must not be overdue")
	}
}

func TestOverdueCustomers(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, 7*24*time.Hour)
	ctx := context.Background()

	entry := models.CreditEntry{
		ID:            uuid.New(),
		CustomerPhone: "+915555555555",
		Amount:        decimal.RequireFromString("300"),
		Type:          enums.CreditEntryCredit,
		CreatedAt:     time.Now().Add(-30 * 24 * time.Hour),
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	if err := db.Create(&models.Customer{
		PhoneNumber:        "+915555555555",
		OutstandingBalance: decimal.RequireFromString("300"),
	}).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	if err := db.Create(&models.Customer{PhoneNumber: "+916666666666"}).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	overdue, err := svc.OverdueCustomers(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(overdue) != 1 || overdue[0].PhoneNumber != "+915555555555" {
		t.Fatalf("expected one overdue customer, got %+v", overdue)
	}
}
