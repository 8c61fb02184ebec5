package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Material{}, &models.InventoryBatch{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedBatch(t *testing.T, db *gorm.DB, rolls int, perRoll, loose float64) *models.InventoryBatch {
	t.Helper()
	material := models.Material{ID: uuid.New(), Name: "cotton"}
	if err := db.Create(&material).Error; err != nil {
		t.Fatalf("create material: %v", err)
	}
	batch := models.InventoryBatch{
		ID:                   uuid.New(),
		MaterialID:           material.ID,
		Color:                "red",
		RollsAvailable:       rolls,
		MetersPerRoll:        perRoll,
		LooseMetersAvailable: loose,
	}
	if err := db.Create(&batch).Error; err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return &batch
}

func TestDeductMeters_LooseFirstThenRolls(t *testing.T) {
	db := newTestDB(t)
	batch := seedBatch(t, db, 2, 10, 5)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := DeductMeters(ctx, tx, batch.ID, 22)
		return err
	})
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}

	var got models.InventoryBatch
	if err := db.First(&got, "id = ?", batch.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.RollsAvailable != 0 {
		t.Fatalf("expected 0 rolls, got %d", got.RollsAvailable)
	}
	if got.LooseMetersAvailable != 3 {
		t.Fatalf("expected 3 loose meters credited back, got %v", got.LooseMetersAvailable)
	}
	if before, after := batch.TotalMeters(), got.TotalMeters(); before-after != 22 {
		t.Fatalf("meters not conserved: before=%v after=%v", before, after)
	}
}

func TestDeductMeters_LooseOnly(t *testing.T) {
	db := newTestDB(t)
	batch := seedBatch(t, db, 2, 10, 8)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := DeductMeters(ctx, tx, batch.ID, 6)
		return err
	})
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}

	var got models.InventoryBatch
	if err := db.First(&got, "id = ?", batch.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.RollsAvailable != 2 {
		t.Fatalf("rolls should be untouched, got %d", got.RollsAvailable)
	}
	if got.LooseMetersAvailable != 2 {
		t.Fatalf("expected 2 loose meters left, got %v", got.LooseMetersAvailable)
	}
}

func TestDeductMeters_ExactRollBoundary(t *testing.T) {
	db := newTestDB(t)
	batch := seedBatch(t, db, 3, 10, 0)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := DeductMeters(ctx, tx, batch.ID, 20)
		return err
	})
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}

	var got models.InventoryBatch
	if err := db.First(&got, "id = ?", batch.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.RollsAvailable != 1 {
		t.Fatalf("expected 1 roll left, got %d", got.RollsAvailable)
	}
	if got.LooseMetersAvailable != 0 {
		t.Fatalf("exact roll multiple must not credit loose meters, got %v", got.LooseMetersAvailable)
	}
}

func TestDeductMeters_InsufficientStock(t *testing.T) {
	db := newTestDB(t)
	batch := seedBatch(t, db, 1, 10, 2)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := DeductMeters(ctx, tx, batch.ID, 30)
		return err
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}

	var got models.InventoryBatch
	if err := db.First(&got, "id = ?", batch.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.RollsAvailable != 1 || got.LooseMetersAvailable != 2 {
		t.Fatalf("failed deduction must not change stock: %+v", got)
	}
}

func TestDeductMeters_Validation(t *testing.T) {
	db := newTestDB(t)
	batch := seedBatch(t, db, 1, 10, 0)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := DeductMeters(ctx, tx, batch.ID, 0)
		return err
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := DeductMeters(ctx, tx, uuid.New(), 5)
		return err
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
