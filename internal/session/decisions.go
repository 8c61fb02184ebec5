package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/bunai-labs/bunai-backend/internal/extraction"
	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	"github.com/bunai-labs/bunai-backend/pkg/enums"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
)

// ApplyResult reports what a batch of customer decisions did to the session.
type ApplyResult struct {
	// Accepted, Cancelled, Replaced hold the items whose status changed.
	Accepted  []*models.OrderSessionItem
	Cancelled []*models.OrderSessionItem
	Replaced  []*models.OrderSessionItem

	// NewItems are replacement items created by edits, still negotiating.
	NewItems []*models.OrderSessionItem

	// AlternativeRequests are items whose customer asked for substitutes.
	AlternativeRequests []*models.OrderSessionItem

	// Unmatched collects decisions that named no live item; the customer
	// gets re-prompted rather than the whole reply failing.
	Unmatched []extraction.ItemDecision

	// Skipped collects decisions that matched an item but could not be
	// applied in its current state, such as accepting out-of-stock.
	Skipped []extraction.ItemDecision
}

// ApplyDecisions applies classified per-item decisions to the session. Each
// decision binds to the first live item matching its material (and color,
// when given) that no earlier decision in the batch already claimed. Items
// are never deleted: cancel and edit are status transitions, and an edit
// links the old item forward to its replacement.
func (s *service) ApplyDecisions(ctx context.Context, sess *models.OrderSession, decisions []extraction.ItemDecision) (*ApplyResult, error) {
	if sess == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session required")
	}

	result := &ApplyResult{}
	claimed := map[uuid.UUID]bool{}

	for _, decision := range decisions {
		item := matchDecision(sess.Items, decision, claimed)
		if item == nil {
			result.Unmatched = append(result.Unmatched, decision)
			continue
		}
		claimed[item.ID] = true

		switch decision.Action {
		case enums.DecisionAccept:
			if item.InventoryStatus != nil && *item.InventoryStatus == enums.InventoryStatusOut {
				result.Skipped = append(result.Skipped, decision)
				continue
			}
			acceptItem(item)
			if err := s.repo.SaveItem(ctx, item); err != nil {
				return nil, err
			}
			result.Accepted = append(result.Accepted, item)

		case enums.DecisionCancel:
			item.Status = enums.ItemStatusCancelled
			item.Allocations = nil
			item.AvailableMeters = 0
			if err := s.repo.SaveItem(ctx, item); err != nil {
				return nil, err
			}
			result.Cancelled = append(result.Cancelled, item)

		case enums.DecisionRequestAlternative:
			item.Status = enums.ItemStatusNegotiating
			if err := s.repo.SaveItem(ctx, item); err != nil {
				return nil, err
			}
			result.AlternativeRequests = append(result.AlternativeRequests, item)

		case enums.DecisionEdit:
			replacement, err := s.replaceItem(ctx, sess, item, decision)
			if err != nil {
				return nil, err
			}
			result.Replaced = append(result.Replaced, item)
			result.NewItems = append(result.NewItems, replacement)

		default:
			result.Unmatched = append(result.Unmatched, decision)
		}
	}
	return result, nil
}

// acceptItem marks the item accepted. A partial item is normalized down to
// what the ledger can supply, keeping the original demand in RequestedMeters.
func acceptItem(item *models.OrderSessionItem) {
	if item.InventoryStatus != nil && *item.InventoryStatus == enums.InventoryStatusPartial &&
		item.AvailableMeters < item.NormalizedMeters {
		requested := item.NormalizedMeters
		item.RequestedMeters = &requested
		item.NormalizedMeters = item.AvailableMeters
		item.InputQuantity = item.AvailableMeters
		item.InputUnit = "meter"
	}
	item.Status = enums.ItemStatusAccepted
}

// replaceItem retires the old item and creates its successor carrying the
// edit's overrides. The new item starts negotiating with no snapshot; the
// caller refreshes availability afterwards.
func (s *service) replaceItem(ctx context.Context, sess *models.OrderSession, old *models.OrderSessionItem, decision extraction.ItemDecision) (*models.OrderSessionItem, error) {
	replacement := &models.OrderSessionItem{
		ID:               uuid.New(),
		OrderID:          sess.OrderID,
		MaterialName:     old.MaterialName,
		Color:            old.Color,
		InputQuantity:    old.NormalizedMeters,
		InputUnit:        "meter",
		NormalizedMeters: old.NormalizedMeters,
		Status:           enums.ItemStatusNegotiating,
	}
	if decision.NewMaterial != "" {
		replacement.MaterialName = decision.NewMaterial
	}
	if decision.NewColor != "" {
		color := decision.NewColor
		replacement.Color = &color
	}
	if decision.NewMeters > 0 {
		replacement.InputQuantity = decision.NewMeters
		replacement.NormalizedMeters = decision.NewMeters
	}
	if err := s.repo.CreateItems(ctx, []*models.OrderSessionItem{replacement}); err != nil {
		return nil, err
	}

	old.Status = enums.ItemStatusReplaced
	old.ReplacedBy = &replacement.ID
	old.Allocations = nil
	old.AvailableMeters = 0
	if err := s.repo.SaveItem(ctx, old); err != nil {
		return nil, err
	}

	sess.Items = append(sess.Items, *replacement)
	return &sess.Items[len(sess.Items)-1], nil
}

func matchDecision(items []models.OrderSessionItem, decision extraction.ItemDecision, claimed map[uuid.UUID]bool) *models.OrderSessionItem {
	item := findLiveItemExcluding(items, decision.Material, decision.Color, claimed)
	if item == nil && decision.Color != "" {
		// Retry on material alone; classifiers sometimes echo a color the
		// item was created without.
		item = findLiveItemExcluding(items, decision.Material, "", claimed)
	}
	return item
}

func findLiveItemExcluding(items []models.OrderSessionItem, material, color string, claimed map[uuid.UUID]bool) *models.OrderSessionItem {
	for i := range items {
		item := &items[i]
		if claimed[item.ID] {
			continue
		}
		if found := findLiveItem(items[i:i+1], material, color); found != nil {
			return item
		}
	}
	return nil
}
