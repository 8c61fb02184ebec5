package customers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	"github.com/bunai-labs/bunai-backend/pkg/enums"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
	"github.com/bunai-labs/bunai-backend/pkg/logger"
)

// Service manages customers and their credit ledger. Every balance change
// writes a ledger row first and then recomputes the stored balance from the
// ledger, so the balance can always be audited back to entries.
type Service interface {
	WithTx(tx *gorm.DB) Service
	GetOrCreate(ctx context.Context, phone string) (*models.Customer, error)
	RecordInvoiceCredit(ctx context.Context, phone string, orderID uuid.UUID, amount decimal.Decimal) (*models.Customer, error)
	RecordPayment(ctx context.Context, phone string, amount decimal.Decimal) (*models.Customer, error)
	IsOverdue(ctx context.Context, phone string) (bool, error)
	OverdueCustomers(ctx context.Context) ([]models.Customer, error)
	MarkReminded(ctx context.Context, phone string) error
}

type service struct {
	repo          Repository
	overdueWindow time.Duration
	logg          *logger.Logger
}

// NewService builds a customer service backed by the provided stack.
func NewService(repo Repository, overdueWindow time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if overdueWindow <= 0 {
		return nil, fmt.Errorf("overdue window must be positive")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, overdueWindow: overdueWindow, logg: logg}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx), overdueWindow: s.overdueWindow, logg: s.logg}
}

func (s *service) GetOrCreate(ctx context.Context, phone string) (*models.Customer, error) {
	return s.repo.GetOrCreate(ctx, phone)
}

// RecordInvoiceCredit adds an invoice amount to the customer's ledger and
// refreshes the stored balance.
func (s *service) RecordInvoiceCredit(ctx context.Context, phone string, orderID uuid.UUID, amount decimal.Decimal) (*models.Customer, error) {
	if amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount cannot be negative")
	}
	customer, err := s.repo.GetOrCreate(ctx, phone)
	if err != nil {
		return nil, err
	}
	entry := &models.CreditEntry{
		CustomerPhone: phone,
		OrderID:       &orderID,
		Amount:        amount,
		Type:          enums.CreditEntryCredit,
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return s.refreshBalance(ctx, customer)
}

// RecordPayment settles part of the customer's balance. Paying more than is
// outstanding is rejected so the ledger cannot go negative.
func (s *service) RecordPayment(ctx context.Context, phone string, amount decimal.Decimal) (*models.Customer, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	customer, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(customer.OutstandingBalance) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment exceeds outstanding balance").
			WithDetails(map[string]any{
				"payment":     amount.String(),
				"outstanding": customer.OutstandingBalance.String(),
			})
	}
	entry := &models.CreditEntry{
		CustomerPhone: phone,
		Amount:        amount,
		Type:          enums.CreditEntryPayment,
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	return s.refreshBalance(ctx, customer)
}

func (s *service) refreshBalance(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	sum, err := s.repo.LedgerSum(ctx, customer.PhoneNumber)
	if err != nil {
		return nil, err
	}
	customer.OutstandingBalance = sum
	if err := s.repo.Save(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// IsOverdue reports whether the customer carries a balance older than the
// overdue window. The clock starts at their last payment, or at their first
// credit entry if they never paid.
func (s *service) IsOverdue(ctx context.Context, phone string) (bool, error) {
	customer, err := s.repo.GetOrCreate(ctx, phone)
	if err != nil {
		return false, err
	}
	if !customer.OutstandingBalance.IsPositive() {
		return false, nil
	}
	reference, err := s.repo.LastPaymentAt(ctx, phone)
	if err != nil {
		return false, err
	}
	if reference == nil {
		reference, err = s.repo.OldestCreditAt(ctx, phone)
		if err != nil {
			return false, err
		}
	}
	if reference == nil {
		return false, nil
	}
	return time.Since(*reference) > s.overdueWindow, nil
}

// OverdueCustomers lists customers whose balance is past the window, for the
// reminder scan.
func (s *service) OverdueCustomers(ctx context.Context) ([]models.Customer, error) {
	withBalance, err := s.repo.ListWithBalance(ctx)
	if err != nil {
		return nil, err
	}
	var overdue []models.Customer
	for _, customer := range withBalance {
		due, err := s.IsOverdue(ctx, customer.PhoneNumber)
		if err != nil {
			return nil, err
		}
		if due {
			overdue = append(overdue, customer)
		}
	}
	return overdue, nil
}

func (s *service) MarkReminded(ctx context.Context, phone string) error {
	customer, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		return err
	}
	now := time.Now()
	customer.LastReminderAt = &now
	return s.repo.Save(ctx, customer)
}
