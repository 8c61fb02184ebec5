package customers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	"github.com/bunai-labs/bunai-backend/pkg/enums"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
)

// Repository persists customers and their credit ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByPhone(ctx context.Context, phone string) (*models.Customer, error)
	GetOrCreate(ctx context.Context, phone string) (*models.Customer, error)
	Save(ctx context.Context, customer *models.Customer) error
	CreateEntry(ctx context.Context, entry *models.CreditEntry) error
	LedgerSum(ctx context.Context, phone string) (decimal.Decimal, error)
	LastPaymentAt(ctx context.Context, phone string) (*time.Time, error)
	OldestCreditAt(ctx context.Context, phone string) (*time.Time, error)
	ListWithBalance(ctx context.Context) ([]models.Customer, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a customer repository backed by the provided DB.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *repository) FindByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := r.conn(ctx).Where("phone_number = ?", phone).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found").
			WithDetails(map[string]any{"phone": phone})
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetOrCreate returns the customer row for a phone, creating it on first
// contact.
func (r *repository) GetOrCreate(ctx context.Context, phone string) (*models.Customer, error) {
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer phone required")
	}
	var customer models.Customer
	err := r.conn(ctx).Where("phone_number = ?", phone).First(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	customer = models.Customer{PhoneNumber: phone}
	if err := r.conn(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) Save(ctx context.Context, customer *models.Customer) error {
	return r.conn(ctx).Save(customer).Error
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.CreditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.conn(ctx).Create(entry).Error
}

// LedgerSum recomputes the outstanding balance from the ledger: credits
// minus payments.
func (r *repository) LedgerSum(ctx context.Context, phone string) (decimal.Decimal, error) {
	var entries []models.CreditEntry
	err := r.conn(ctx).
		Where("customer_phone = ?", phone).
		Find(&entries).Error
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, entry := range entries {
		switch entry.Type {
		case enums.CreditEntryCredit:
			sum = sum.Add(entry.Amount)
		case enums.CreditEntryPayment:
			sum = sum.Sub(entry.Amount)
		}
	}
	return sum, nil
}

// LastPaymentAt returns when the customer last paid, or nil if they never
// have.
func (r *repository) LastPaymentAt(ctx context.Context, phone string) (*time.Time, error) {
	var entry models.CreditEntry
	err := r.conn(ctx).
		Where("customer_phone = ?", phone).
		Where("type = ?", enums.CreditEntryPayment).
		Order("created_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	at := entry.CreatedAt
	return &at, nil
}

// OldestCreditAt returns when the customer's ledger first went into credit.
func (r *repository) OldestCreditAt(ctx context.Context, phone string) (*time.Time, error) {
	var entry models.CreditEntry
	err := r.conn(ctx).
		Where("customer_phone = ?", phone).
		Where("type = ?", enums.CreditEntryCredit).
		Order("created_at ASC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	at := entry.CreatedAt
	return &at, nil
}

func (r *repository) ListWithBalance(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	err := r.conn(ctx).
		Where("outstanding_balance > 0").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
