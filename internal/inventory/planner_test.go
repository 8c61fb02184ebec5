package inventory

import (
	"testing"

	"github.com/google/uuid"

	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	"github.com/bunai-labs/bunai-backend/pkg/enums"
)

func batch(material, color string, rolls int, perRoll, loose float64) models.InventoryBatch {
	return models.InventoryBatch{
		ID:                   uuid.New(),
		MaterialID:           uuid.New(),
		Material:             &models.Material{Name: material},
		Color:                color,
		RollsAvailable:       rolls,
		MetersPerRoll:        perRoll,
		LooseMetersAvailable: loose,
	}
}

func TestPlanAllocation_FullFromSingleBatch(t *testing.T) {
	batches := []models.InventoryBatch{batch("cotton", "red", 2, 10, 5)}

	plan := PlanAllocation(batches, 20)

	if plan.Status != enums.InventoryStatusFull {
		t.Fatalf("expected full, got %s", plan.Status)
	}
	if len(plan.Allocations) != 1 {
		t.Fatalf("expected one allocation, got %d", len(plan.Allocations))
	}
	if plan.Allocations[0].AllocatedMeters != 20 {
		t.Fatalf("expected 20m allocated, got %v", plan.Allocations[0].AllocatedMeters)
	}
	if plan.AvailableMeters != 25 {
		t.Fatalf("expected 25m available, got %v", plan.AvailableMeters)
	}
}

func TestPlanAllocation_SpansBatchesInOrder(t *testing.T) {
	first := batch("cotton", "red", 1, 10, 0)
	second := batch("cotton", "red", 3, 10, 0)
	batches := []models.InventoryBatch{first, second}

	plan := PlanAllocation(batches, 25)

	if plan.Status != enums.InventoryStatusFull {
		t.Fatalf("expected full, got %s", plan.Status)
	}
	if len(plan.Allocations) != 2 {
		t.Fatalf("expected two allocations, got %d", len(plan.Allocations))
	}
	if plan.Allocations[0].BatchID != first.ID || plan.Allocations[0].AllocatedMeters != 10 {
		t.Fatalf("first batch should be drained first: %+v", plan.Allocations[0])
	}
	if plan.Allocations[1].BatchID != second.ID || plan.Allocations[1].AllocatedMeters != 15 {
		t.Fatalf("second batch should cover the remainder: %+v", plan.Allocations[1])
	}
}

func TestPlanAllocation_Partial(t *testing.T) {
	batches := []models.InventoryBatch{batch("cotton", "red", 1, 10, 2)}

	plan := PlanAllocation(batches, 50)

	if plan.Status != enums.InventoryStatusPartial {
		t.Fatalf("expected partial, got %s", plan.Status)
	}
	if plan.AvailableMeters != 12 {
		t.Fatalf("expected 12m available, got %v", plan.AvailableMeters)
	}
	if got := plan.Allocations.TotalMeters(); got != 12 {
		t.Fatalf("allocations should cover everything available, got %v", got)
	}
}

func TestPlanAllocation_OutOfStock(t *testing.T) {
	if plan := PlanAllocation(nil, 50); plan.Status != enums.InventoryStatusOut {
		t.Fatalf("no batches should be out of stock, got %s", plan.Status)
	}

	empty := batch("cotton", "red", 0, 10, 0)
	plan := PlanAllocation([]models.InventoryBatch{empty}, 50)
	if plan.Status != enums.InventoryStatusOut {
		t.Fatalf("zero stock should be out of stock, got %s", plan.Status)
	}
	if len(plan.Allocations) != 0 {
		t.Fatalf("no allocations expected, got %d", len(plan.Allocations))
	}
}

func TestRankAlternatives(t *testing.T) {
	batches := []models.InventoryBatch{
		batch("cotton", "blue", 1, 10, 0),
		batch("cotton", "green", 0, 10, 4),
		batch("silk", "red", 2, 15, 0),
		batch("linen", "yellow", 5, 20, 0),
		batch("polyester", "red", 0, 10, 0), // empty, must be skipped
	}

	alts := RankAlternatives(batches, "cotton", "red", 3)

	if len(alts) != 3 {
		t.Fatalf("expected 3 alternatives, got %d", len(alts))
	}
	// Same material, other colors first.
	if alts[0].Material != "cotton" || alts[1].Material != "cotton" {
		t.Fatalf("same-material alternatives should rank first: %+v", alts)
	}
	// Then same color, other material.
	if alts[2].Material != "silk" || alts[2].Color != "red" {
		t.Fatalf("same-color alternative should rank second: %+v", alts[2])
	}
	// linen/yellow matches neither and is excluded entirely.
	for _, alt := range alts {
		if alt.Material == "linen" {
			t.Fatalf("unrelated material must not be suggested: %+v", alt)
		}
	}
}

func TestRankAlternatives_AggregatesAcrossBatches(t *testing.T) {
	batches := []models.InventoryBatch{
		batch("cotton", "blue", 1, 10, 0),
		batch("cotton", "blue", 0, 10, 7),
	}

	alts := RankAlternatives(batches, "cotton", "red", 3)

	if len(alts) != 1 {
		t.Fatalf("expected aggregated single alternative, got %d", len(alts))
	}
	if alts[0].AvailableMeters != 17 {
		t.Fatalf("expected 17m aggregated, got %v", alts[0].AvailableMeters)
	}
}

func TestRankAlternatives_CapsSuggestions(t *testing.T) {
	batches := []models.InventoryBatch{
		batch("cotton", "blue", 1, 10, 0),
		batch("cotton", "green", 1, 10, 0),
		batch("cotton", "white", 1, 10, 0),
		batch("cotton", "black", 1, 10, 0),
	}

	if alts := RankAlternatives(batches, "cotton", "red", 3); len(alts) != 3 {
		t.Fatalf("expected cap of 3, got %d", len(alts))
	}
}
