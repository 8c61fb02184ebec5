package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	"github.com/bunai-labs/bunai-backend/pkg/enums"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
)

// Repository persists order sessions, their items, and the parent order rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveByPhone(ctx context.Context, phone string) (*models.OrderSession, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderSession, error)
	FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.OrderSession, error)
	CreateWithOrder(ctx context.Context, session *models.OrderSession) error
	UpdateState(ctx context.Context, orderID uuid.UUID, state enums.SessionState) error
	UpdateStateFrom(ctx context.Context, orderID uuid.UUID, from, to enums.SessionState) error
	SetNegotiationPending(ctx context.Context, orderID uuid.UUID, pending bool) error
	SetOwnerApprovalRequired(ctx context.Context, orderID uuid.UUID, required bool) error
	CreateItems(ctx context.Context, items []*models.OrderSessionItem) error
	SaveItem(ctx context.Context, item *models.OrderSessionItem) error
	ListPending(ctx context.Context) ([]models.OrderSession, error)
	ListOrders(ctx context.Context, phone string) ([]models.Order, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a session repository backed by the provided DB.
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

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("created_at, id")
	})
}

// FindActiveByPhone returns the customer's single non-terminal session, or
// nil when none is open.
func (r *repository) FindActiveByPhone(ctx context.Context, phone string) (*models.OrderSession, error) {
	var session models.OrderSession
	err := preloadItems(r.conn(ctx)).
		Where("customer_phone = ?", phone).
		Where("workflow_state NOT IN ?", enums.TerminalSessionStates).
		Order("created_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderSession, error) {
	var session models.OrderSession
	err := preloadItems(r.conn(ctx)).
		Where("order_id = ?", orderID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order session not found").
			WithDetails(map[string]any{"order_id": orderID})
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByOrderIDForUpdate loads the session under a pessimistic row lock.
// Must be called inside a transaction; the lock holds until commit or
// rollback.
func (r *repository) FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.OrderSession, error) {
	query := r.conn(ctx)
	// sqlite has no FOR UPDATE; its transactions take a database write lock.
	if r.db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var session models.OrderSession
	err := query.
		Where("order_id = ?", orderID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order session not found").
			WithDetails(map[string]any{"order_id": orderID})
	}
	if err != nil {
		return nil, err
	}
	err = r.conn(ctx).
		Where("order_id = ?", orderID).
		Order("created_at, id").
		Find(&session.Items).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateWithOrder inserts the permanent order row and its session together.
// The session's OrderID is assigned when unset.
func (r *repository) CreateWithOrder(ctx context.Context, session *models.OrderSession) error {
	if session.OrderID == uuid.Nil {
		session.OrderID = uuid.New()
	}
	order := models.Order{
		ID:            session.OrderID,
		CustomerPhone: session.CustomerPhone,
		Status:        enums.OrderStatusInitiated,
	}
	if err := r.conn(ctx).Create(&order).Error; err != nil {
		return err
	}
	return r.conn(ctx).Create(session).Error
}

// orderStatusFor maps a workflow state onto the denormalized order status.
// States with no reporting meaning return "" and leave the order untouched.
func orderStatusFor(state enums.SessionState) enums.OrderStatus {
	switch state {
	case enums.SessionStateWaitingOwner:
		return enums.OrderStatusPendingApproval
	case enums.SessionStateOrderCompleted, enums.SessionStateLedgerUpdated:
		return enums.OrderStatusCompleted
	case enums.SessionStateOrderRejected:
		return enums.OrderStatusRejected
	}
	return ""
}

// UpdateState moves the session to the given workflow state and keeps the
// parent order's status in sync.
func (r *repository) UpdateState(ctx context.Context, orderID uuid.UUID, state enums.SessionState) error {
	if !state.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid workflow state").
			WithDetails(map[string]any{"state": state})
	}
	err := r.conn(ctx).
		Model(&models.OrderSession{}).
		Where("order_id = ?", orderID).
		Update("workflow_state", state).Error
	if err != nil {
		return err
	}
	if status := orderStatusFor(state); status != "" {
		return r.conn(ctx).
			Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("status", status).Error
	}
	return nil
}

// UpdateStateFrom moves the session from one workflow state to another only
// if it still holds the expected state, and conflicts on zero rows affected.
// This is the write barrier for racing finalizations of the same order.
func (r *repository) UpdateStateFrom(ctx context.Context, orderID uuid.UUID, from, to enums.SessionState) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid workflow state").
			WithDetails(map[string]any{"state": to})
	}
	res := r.conn(ctx).
		Model(&models.OrderSession{}).
		Where("order_id = ?", orderID).
		Where("workflow_state = ?", from).
		Update("workflow_state", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "session already moved on").
			WithDetails(map[string]any{"order_id": orderID, "expected_state": from})
	}
	if status := orderStatusFor(to); status != "" {
		return r.conn(ctx).
			Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("status", status).Error
	}
	return nil
}

func (r *repository) SetNegotiationPending(ctx context.Context, orderID uuid.UUID, pending bool) error {
	return r.conn(ctx).
		Model(&models.OrderSession{}).
		Where("order_id = ?", orderID).
		Update("negotiation_pending", pending).Error
}

func (r *repository) SetOwnerApprovalRequired(ctx context.Context, orderID uuid.UUID, required bool) error {
	return r.conn(ctx).
		Model(&models.OrderSession{}).
		Where("order_id = ?", orderID).
		Update("owner_approval_required", required).Error
}

func (r *repository) CreateItems(ctx context.Context, items []*models.OrderSessionItem) error {
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

func (r *repository) SaveItem(ctx context.Context, item *models.OrderSessionItem) error {
	return r.conn(ctx).Save(item).Error
}

// ListPending returns sessions awaiting owner confirmation, oldest first.
func (r *repository) ListPending(ctx context.Context) ([]models.OrderSession, error) {
	var sessions []models.OrderSession
	err := preloadItems(r.conn(ctx)).
		Where("workflow_state = ?", enums.SessionStateWaitingOwner).
		Order("created_at").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListOrders returns orders newest-first, optionally filtered by phone.
func (r *repository) ListOrders(ctx context.Context, phone string) ([]models.Order, error) {
	query := r.conn(ctx).Order("created_at DESC")
	if phone != "" {
		query = query.Where("customer_phone = ?", phone)
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.conn(ctx).Where("id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"order_id": orderID})
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
