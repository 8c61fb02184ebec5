package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
)

// Repository exposes batch queries plus the locked read used by deduction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindMatching(ctx context.Context, material, color string) ([]models.InventoryBatch, error)
	FindAllWithStock(ctx context.Context) ([]models.InventoryBatch, error)
	FindForUpdate(ctx context.Context, batchID uuid.UUID) (*models.InventoryBatch, error)
	Save(ctx context.Context, batch *models.InventoryBatch) error
	AvailableColors(ctx context.Context, material string) ([]string, error)
	MaterialByName(ctx context.Context, name string) (*models.Material, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository backed by the provided DB.
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

// FindMatching returns stocked batches for a (material, color) pair,
// case-insensitively, ordered oldest-first so allocation order is stable.
func (r *repository) FindMatching(ctx context.Context, material, color string) ([]models.InventoryBatch, error) {
	if material == "" || color == "" {
		return nil, nil
	}
	var batches []models.InventoryBatch
	err := r.conn(ctx).
		Joins("JOIN materials ON materials.id = inventory_batches.material_id").
		Where("LOWER(materials.name) = ?", strings.ToLower(material)).
		Where("LOWER(inventory_batches.color) = ?", strings.ToLower(color)).
		Where("inventory_batches.rolls_available > 0 OR inventory_batches.loose_meters_available > 0").
		Order("inventory_batches.created_at, inventory_batches.id").
		Preload("Material").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// FindAllWithStock returns every stocked batch, used for ranking
// alternatives across materials and colors.
func (r *repository) FindAllWithStock(ctx context.Context) ([]models.InventoryBatch, error) {
	var batches []models.InventoryBatch
	err := r.conn(ctx).
		Where("rolls_available > 0 OR loose_meters_available > 0").
		Order("created_at, id").
		Preload("Material").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// FindForUpdate loads a batch under a pessimistic row lock. Must be called
// inside a transaction; the lock holds until commit or rollback.
func (r *repository) FindForUpdate(ctx context.Context, batchID uuid.UUID) (*models.InventoryBatch, error) {
	query := r.conn(ctx)
	// sqlite has no FOR UPDATE; its transactions take a database write lock.
	if r.db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var batch models.InventoryBatch
	err := query.
		Where("id = ?", batchID).
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory batch not found")
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) Save(ctx context.Context, batch *models.InventoryBatch) error {
	return r.conn(ctx).Save(batch).Error
}

// AvailableColors lists distinct colors of a material that have stock, for
// the missing-color prompt.
func (r *repository) AvailableColors(ctx context.Context, material string) ([]string, error) {
	if material == "" {
		return nil, nil
	}
	var colors []string
	err := r.conn(ctx).
		Model(&models.InventoryBatch{}).
		Joins("JOIN materials ON materials.id = inventory_batches.material_id").
		Where("LOWER(materials.name) = ?", strings.ToLower(material)).
		Where("inventory_batches.rolls_available > 0 OR inventory_batches.loose_meters_available > 0").
		Distinct().
		Pluck("inventory_batches.color", &colors).Error
	if err != nil {
		return nil, err
	}
	return colors, nil
}

func (r *repository) MaterialByName(ctx context.Context, name string) (*models.Material, error) {
	var material models.Material
	err := r.conn(ctx).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		First(&material).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found").
			WithDetails(map[string]any{"material": name})
	}
	if err != nil {
		return nil, err
	}
	return &material, nil
}
