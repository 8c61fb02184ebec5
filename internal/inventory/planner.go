package inventory

import (
	"sort"
	"strings"

	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	"github.com/bunai-labs/bunai-backend/pkg/db/types"
	"github.com/bunai-labs/bunai-backend/pkg/enums"
)

// Plan is the pure projection of how current batches could satisfy a
// request. Nothing is reserved or mutated; the same function backs the
// negotiation preview and the pre-approval re-validation.
type Plan struct {
	Status          enums.InventoryStatus
	AvailableMeters float64
	Allocations     types.BatchAllocations
}

// PlanAllocation walks the matching batches in their given (stable) order,
// drawing meters until the request is covered or the batches run out.
// Allocations record only batches actually drawn from.
func PlanAllocation(batches []models.InventoryBatch, requestedMeters float64) Plan {
	if len(batches) == 0 {
		return Plan{Status: enums.InventoryStatusOut}
	}

	var (
		allocations    types.BatchAllocations
		totalAvailable float64
		remaining      = requestedMeters
	)

	for _, batch := range batches {
		if remaining <= 0 {
			break
		}
		batchMeters := batch.TotalMeters()
		if batchMeters <= 0 {
			continue
		}
		totalAvailable += batchMeters

		allocated := batchMeters
		if remaining < allocated {
			allocated = remaining
		}
		allocations = append(allocations, types.BatchAllocation{
			BatchID:         batch.ID,
			AllocatedMeters: allocated,
		})
		remaining -= allocated
	}

	status := enums.InventoryStatusOut
	switch {
	case totalAvailable >= requestedMeters && requestedMeters > 0:
		status = enums.InventoryStatusFull
	case totalAvailable > 0:
		status = enums.InventoryStatusPartial
	}

	return Plan{
		Status:          status,
		AvailableMeters: totalAvailable,
		Allocations:     allocations,
	}
}

// Alternative is a suggested substitute for an out-of-stock item.
type Alternative struct {
	Material        string
	Color           string
	AvailableMeters float64
	priority        int
}

// RankAlternatives suggests substitutes for an unavailable (material, color)
// pair: same material in another color first, then the same color in another
// material. Stock is aggregated across batches per pair and capped at limit.
func RankAlternatives(batches []models.InventoryBatch, material, color string, limit int) []Alternative {
	if material == "" || color == "" || limit <= 0 {
		return nil
	}

	matLower := strings.ToLower(material)
	colorLower := strings.ToLower(color)

	type pairKey struct{ material, color string }
	totals := map[pairKey]*Alternative{}
	var order []pairKey

	for _, batch := range batches {
		if batch.Material == nil {
			continue
		}
		batchMat := strings.ToLower(batch.Material.Name)
		batchColor := strings.ToLower(batch.Color)

		if batchMat == matLower && batchColor == colorLower {
			continue
		}

		meters := batch.TotalMeters()
		if meters <= 0 {
			continue
		}

		var priority int
		switch {
		case batchMat == matLower:
			priority = 1
		case batchColor == colorLower:
			priority = 2
		default:
			continue
		}

		key := pairKey{material: batchMat, color: batchColor}
		if existing, ok := totals[key]; ok {
			existing.AvailableMeters += meters
			continue
		}
		totals[key] = &Alternative{
			Material:        batch.Material.Name,
			Color:           batch.Color,
			AvailableMeters: meters,
			priority:        priority,
		}
		order = append(order, key)
	}

	alternatives := make([]Alternative, 0, len(order))
	for _, key := range order {
		alternatives = append(alternatives, *totals[key])
	}
	sort.SliceStable(alternatives, func(i, j int) bool {
		return alternatives[i].priority < alternatives[j].priority
	})

	if len(alternatives) > limit {
		alternatives = alternatives[:limit]
	}
	return alternatives
}
