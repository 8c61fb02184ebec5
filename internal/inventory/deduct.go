package inventory

import (
	"context"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
)

// DeductMeters removes meters from one batch under a pessimistic row lock.
// Loose meters are consumed first; if they fall short, the minimum number of
// whole rolls is opened and the unused remainder is credited back as loose
// meters. Counters can never go negative: a shortfall aborts with
// INSUFFICIENT_STOCK before any write.
//
// Must run inside the caller's transaction so the lock spans the whole
// check-and-decrement.
func DeductMeters(ctx context.Context, tx *gorm.DB, batchID uuid.UUID, meters float64) (*models.InventoryBatch, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "deduction requires a transaction")
	}
	if meters <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deduction meters must be positive")
	}

	repo := NewRepository(tx)
	batch, err := repo.FindForUpdate(ctx, batchID)
	if err != nil {
		return nil, err
	}

	remaining := meters

	if batch.LooseMetersAvailable >= remaining {
		batch.LooseMetersAvailable -= remaining
		remaining = 0
	} else {
		remaining -= batch.LooseMetersAvailable
		batch.LooseMetersAvailable = 0
	}

	if remaining > 0 {
		rollLength := batch.MetersPerRoll
		if rollLength <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "batch has invalid meters per roll").
				WithDetails(map[string]any{"batch_id": batch.ID})
		}

		rollsNeeded := int(math.Ceil(remaining / rollLength))
		if batch.RollsAvailable < rollsNeeded {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough rolls in batch").
				WithDetails(map[string]any{
					"batch_id":        batch.ID,
					"rolls_needed":    rollsNeeded,
					"rolls_available": batch.RollsAvailable,
				})
		}

		batch.RollsAvailable -= rollsNeeded
		batch.LooseMetersAvailable += float64(rollsNeeded)*rollLength - remaining
	}

	if err := repo.Save(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}
