package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bunai-labs/bunai-backend/internal/extraction"
	"github.com/bunai-labs/bunai-backend/internal/inventory"
	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	"github.com/bunai-labs/bunai-backend/pkg/enums"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
	"github.com/bunai-labs/bunai-backend/pkg/logger"
)

type batchFinder interface {
	FindMatching(ctx context.Context, material, color string) ([]models.InventoryBatch, error)
}

// Service owns the order session lifecycle: opening sessions, merging newly
// extracted items, refreshing availability snapshots, and deciding workflow
// transitions.
type Service interface {
	ActiveSession(ctx context.Context, phone string) (*models.OrderSession, error)
	SessionByOrderID(ctx context.Context, orderID string) (*models.OrderSession, error)
	StartSession(ctx context.Context, phone string, measurements []extraction.Measurement) (*models.OrderSession, error)
	AddItems(ctx context.Context, session *models.OrderSession, measurements []extraction.Measurement) ([]*models.OrderSessionItem, error)
	RefreshAvailability(ctx context.Context, session *models.OrderSession) error
	ApplyDecisions(ctx context.Context, session *models.OrderSession, decisions []extraction.ItemDecision) (*ApplyResult, error)
	Advance(ctx context.Context, session *models.OrderSession) (enums.SessionState, error)
	Transition(ctx context.Context, session *models.OrderSession, state enums.SessionState) error
	SetNegotiationPending(ctx context.Context, session *models.OrderSession, pending bool) error
	SetOwnerApprovalRequired(ctx context.Context, session *models.OrderSession, required bool) error
}

type service struct {
	repo    Repository
	batches batchFinder
	logg    *logger.Logger
}

// NewService builds a session service backed by the provided stack.
func NewService(repo Repository, batches batchFinder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if batches == nil {
		return nil, fmt.Errorf("inventory batch finder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, batches: batches, logg: logg}, nil
}

func (s *service) ActiveSession(ctx context.Context, phone string) (*models.OrderSession, error) {
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer phone required")
	}
	return s.repo.FindActiveByPhone(ctx, phone)
}

func (s *service) SessionByOrderID(ctx context.Context, orderID string) (*models.OrderSession, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByOrderID(ctx, id)
}

// StartSession opens a new session for the phone with the extracted items.
// The caller must have checked there is no active session already; the
// one-active-session rule is enforced there so the conflict can be messaged.
func (s *service) StartSession(ctx context.Context, phone string, measurements []extraction.Measurement) (*models.OrderSession, error) {
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer phone required")
	}
	if len(measurements) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "an order needs at least one item")
	}
	if err := validateMeasurements(measurements); err != nil {
		return nil, err
	}

	sess := &models.OrderSession{
		CustomerPhone: phone,
		WorkflowState: enums.SessionStateInitiated,
	}
	if err := s.repo.CreateWithOrder(ctx, sess); err != nil {
		return nil, err
	}

	items := itemsFromMeasurements(sess, measurements)
	if err := s.repo.CreateItems(ctx, items); err != nil {
		return nil, err
	}
	for _, item := range items {
		sess.Items = append(sess.Items, *item)
	}

	ctx = s.logg.WithOrderID(ctx, sess.OrderID.String())
	s.logg.Info(ctx, "session started")
	return sess, nil
}

// AddItems merges newly extracted measurements into an open session. A
// measurement matching a live item's material and color is a duplicate and
// is dropped instead of creating a second line.
func (s *service) AddItems(ctx context.Context, sess *models.OrderSession, measurements []extraction.Measurement) ([]*models.OrderSessionItem, error) {
	if sess == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session required")
	}
	if err := validateMeasurements(measurements); err != nil {
		return nil, err
	}

	fresh := make([]extraction.Measurement, 0, len(measurements))
	for _, m := range measurements {
		if findLiveItem(sess.Items, m.MaterialName, m.Color) == nil {
			fresh = append(fresh, m)
		}
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	items := itemsFromMeasurements(sess, fresh)
	if err := s.repo.CreateItems(ctx, items); err != nil {
		return nil, err
	}
	for _, item := range items {
		sess.Items = append(sess.Items, *item)
	}
	return items, nil
}

// validateMeasurements rejects quantities a zero- or negative-meter item
// would wedge the workflow with: such an item can never be fully allocated,
// yet classifies as partially available against any stocked batch.
func validateMeasurements(measurements []extraction.Measurement) error {
	for _, m := range measurements {
		if m.NormalizedMeters <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{
					"material": m.MaterialName,
					"meters":   m.NormalizedMeters,
				})
		}
	}
	return nil
}

func itemsFromMeasurements(sess *models.OrderSession, measurements []extraction.Measurement) []*models.OrderSessionItem {
	items := make([]*models.OrderSessionItem, 0, len(measurements))
	for _, m := range measurements {
		item := &models.OrderSessionItem{
			OrderID:          sess.OrderID,
			MaterialName:     m.MaterialName,
			InputQuantity:    m.InputQuantity,
			InputUnit:        m.InputUnit,
			NormalizedMeters: m.NormalizedMeters,
			Status:           enums.ItemStatusNegotiating,
		}
		if m.Color != "" {
			color := m.Color
			item.Color = &color
		}
		if item.InputUnit == "" {
			item.InputUnit = "meter"
		}
		items = append(items, item)
	}
	return items
}

// RefreshAvailability recomputes the availability snapshot for every live
// negotiating item that has a color. Fully available items are accepted on
// the spot; nothing is reserved.
func (s *service) RefreshAvailability(ctx context.Context, sess *models.OrderSession) error {
	if sess == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "session required")
	}
	for i := range sess.Items {
		item := &sess.Items[i]
		if item.Status != enums.ItemStatusNegotiating {
			continue
		}
		if item.Color == nil || *item.Color == "" {
			continue
		}

		batches, err := s.batches.FindMatching(ctx, item.MaterialName, *item.Color)
		if err != nil {
			return err
		}
		plan := inventory.PlanAllocation(batches, item.NormalizedMeters)

		status := plan.Status
		item.InventoryStatus = &status
		item.AvailableMeters = plan.AvailableMeters
		item.Allocations = plan.Allocations
		if status == enums.InventoryStatusFull {
			item.Status = enums.ItemStatusAccepted
		}
		if err := s.repo.SaveItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate decides the next workflow state from the session's items:
// nothing live means the order completed empty, everything resolved moves to
// final confirmation, anything still open keeps negotiating.
func Evaluate(sess *models.OrderSession) enums.SessionState {
	live := 0
	unresolved := 0
	for _, item := range sess.Items {
		if !item.IsLive() {
			continue
		}
		live++
		if !item.IsResolved() {
			unresolved++
		}
	}
	switch {
	case live == 0:
		return enums.SessionStateOrderCompleted
	case unresolved == 0:
		return enums.SessionStateFinalConfirmation
	default:
		return enums.SessionStateNegotiation
	}
}

// Advance evaluates the session and persists the resulting state. The
// negotiation-pending flag follows the outcome.
func (s *service) Advance(ctx context.Context, sess *models.OrderSession) (enums.SessionState, error) {
	next := Evaluate(sess)
	if err := s.Transition(ctx, sess, next); err != nil {
		return "", err
	}
	pending := next == enums.SessionStateNegotiation
	if sess.NegotiationPending != pending {
		if err := s.SetNegotiationPending(ctx, sess, pending); err != nil {
			return "", err
		}
	}
	return next, nil
}

func (s *service) Transition(ctx context.Context, sess *models.OrderSession, state enums.SessionState) error {
	if sess == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "session required")
	}
	if err := s.repo.UpdateState(ctx, sess.OrderID, state); err != nil {
		return err
	}
	sess.WorkflowState = state

	ctx = s.logg.WithOrderID(ctx, sess.OrderID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{"workflow_state": state.String()})
	s.logg.Info(ctx, "session transitioned")
	return nil
}

func (s *service) SetNegotiationPending(ctx context.Context, sess *models.OrderSession, pending bool) error {
	if err := s.repo.SetNegotiationPending(ctx, sess.OrderID, pending); err != nil {
		return err
	}
	sess.NegotiationPending = pending
	return nil
}

func (s *service) SetOwnerApprovalRequired(ctx context.Context, sess *models.OrderSession, required bool) error {
	if err := s.repo.SetOwnerApprovalRequired(ctx, sess.OrderID, required); err != nil {
		return err
	}
	sess.OwnerApprovalRequired = required
	return nil
}

// findLiveItem returns the first live item matching the material and,
// when given, the color. Matching is case-insensitive.
func findLiveItem(items []models.OrderSessionItem, material, color string) *models.OrderSessionItem {
	matLower := strings.ToLower(strings.TrimSpace(material))
	colorLower := strings.ToLower(strings.TrimSpace(color))
	for i := range items {
		item := &items[i]
		if !item.IsLive() {
			continue
		}
		if strings.ToLower(item.MaterialName) != matLower {
			continue
		}
		if colorLower != "" {
			if item.Color == nil || strings.ToLower(*item.Color) != colorLower {
				continue
			}
		}
		return item
	}
	return nil
}

func parseOrderID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id").
			WithDetails(map[string]any{"order_id": raw})
	}
	return id, nil
}
