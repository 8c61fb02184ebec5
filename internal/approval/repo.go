package approval

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
)

// Repository persists the artifacts the approval transaction produces:
// permanent line items, the invoice, and tax rate lookups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateLineItems(ctx context.Context, items []*models.OrderLineItem) error
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	RateForCategory(ctx context.Context, category string) (*decimal.Decimal, error)
	LineItemsByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an approval repository backed by the provided DB.
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

func (r *repository) CreateLineItems(ctx context.Context, items []*models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
	}
	return r.conn(ctx).Create(items).Error
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	return r.conn(ctx).Create(invoice).Error
}

func (r *repository) FindInvoiceByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.conn(ctx).Where("order_id = ?", orderID).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found").
			WithDetails(map[string]any{"order_id": orderID})
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// RateForCategory returns the stored rate for a category, or nil when the
// category has no row. Callers fall back to "default" and then to the
// configured rate.
func (r *repository) RateForCategory(ctx context.Context, category string) (*decimal.Decimal, error) {
	var rate models.TaxRate
	err := r.conn(ctx).Where("category = ?", category).First(&rate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	value := rate.Rate
	return &value, nil
}

func (r *repository) LineItemsByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.conn(ctx).
		Where("order_id = ?", orderID).
		Order("created_at, id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
