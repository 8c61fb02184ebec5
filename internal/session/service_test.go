package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bunai-labs/bunai-backend/internal/extraction"
	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	"github.com/bunai-labs/bunai-backend/pkg/enums"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
	"github.com/bunai-labs/bunai-backend/pkg/logger"
)

type fakeBatchFinder struct {
	batches map[string][]models.InventoryBatch
}

func (f *fakeBatchFinder) FindMatching(_ context.Context, material, color string) ([]models.InventoryBatch, error) {
	return f.batches[material+"/"+color], nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:session_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Material{},
		&models.InventoryBatch{},
		&models.Order{},
		&models.OrderSession{},
		&models.OrderSessionItem{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, finder *fakeBatchFinder) Service {
	t.Helper()
	if finder == nil {
		finder = &fakeBatchFinder{}
	}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	svc, err := NewService(NewRepository(db), finder, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func stockedBatch(material, color string, rolls int, perRoll, loose float64) models.InventoryBatch {
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

func TestStartSession_OneActivePerPhone(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "+911234567890", []extraction.Measurement{
		{MaterialName: "cotton", Color: "red", InputQuantity: 20, InputUnit: "meter", NormalizedMeters: 20},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.WorkflowState != enums.SessionStateInitiated {
		t.Fatalf("expected initiated, got %s", sess.WorkflowState)
	}
	if len(sess.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(sess.Items))
	}

	active, err := svc.ActiveSession(ctx, "+911234567890")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active == nil || active.OrderID != sess.OrderID {
		t.Fatalf("expected the open session back, got %+v", active)
	}

	// Closing the session frees the phone.
	if err := svc.Transition(ctx, sess, enums.SessionStateOrderCompleted); err != nil {
		t.Fatalf("transition: %v", err)
	}
	active, err = svc.ActiveSession(ctx, "+911234567890")
	if err != nil {
		t.Fatalf("active after close: %v", err)
	}
	if active != nil {
		t.Fatalf("terminal session must not count as active")
	}

	var order models.Order
	if err := db.First(&order, "id = ?", sess.OrderID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusCompleted {
		t.Fatalf("order status should track the session, got %s", order.Status)
	}
}

func TestStartSession_RejectsNonPositiveQuantity(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	_, err := svc.StartSession(ctx, "+911234567890", []extraction.Measurement{
		{MaterialName: "cotton", Color: "red", NormalizedMeters: 0},
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("zero meters must be rejected, got %v", err)
	}

	sess, err := svc.StartSession(ctx, "+911234567890", []extraction.Measurement{
		{MaterialName: "cotton", Color: "red", NormalizedMeters: 20},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err = svc.AddItems(ctx, sess, []extraction.Measurement{
		{MaterialName: "silk", Color: "blue", NormalizedMeters: -3},
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("negative meters must be rejected, got %v", err)
	}
	if len(sess.Items) != 1 {
		t.Fatalf("rejected measurement must not create an item, got %d", len(sess.Items))
	}
}

func TestUpdateStateFrom_GuardsRacingFinalization(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sess := &models.OrderSession{
		CustomerPhone: "+911234567890",
		WorkflowState: enums.SessionStateWaitingOwner,
	}
	if err := repo.CreateWithOrder(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := repo.UpdateStateFrom(ctx, sess.OrderID,
		enums.SessionStateWaitingOwner, enums.SessionStateOrderCompleted)
	if err != nil {
		t.Fatalf("first finalization: %v", err)
	}
	var order models.Order
	if err := db.First(&order, "id = ?", sess.OrderID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusCompleted {
		t.Fatalf("order status must track the transition, got %s", order.Status)
	}

	// The state already moved on, so a second finalization hits zero rows.
	err = repo.UpdateStateFrom(ctx, sess.OrderID,
		enums.SessionStateWaitingOwner, enums.SessionStateOrderCompleted)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for the losing caller, got %v", err)
	}
}

func TestAddItems_DropsDuplicates(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "+911111111111", []extraction.Measurement{
		{MaterialName: "cotton", Color: "red", NormalizedMeters: 20},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	added, err := svc.AddItems(ctx, sess, []extraction.Measurement{
		{MaterialName: "Cotton", Color: "RED", NormalizedMeters: 5},
		{MaterialName: "silk", Color: "blue", NormalizedMeters: 10},
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(added) != 1 || added[0].MaterialName != "silk" {
		t.Fatalf("duplicate should be dropped, got %+v", added)
	}
	if len(sess.Items) != 2 {
		t.Fatalf("expected 2 items in session, got %d", len(sess.Items))
	}
}

func TestRefreshAvailability_AutoAcceptsFull(t *testing.T) {
	db := newTestDB(t)
	finder := &fakeBatchFinder{batches: map[string][]models.InventoryBatch{
		"cotton/red": {stockedBatch("cotton", "red", 3, 10, 0)},
		"silk/blue":  {stockedBatch("silk", "blue", 0, 10, 4)},
	}}
	svc := newTestService(t, db, finder)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "+912222222222", []extraction.Measurement{
		{MaterialName: "cotton", Color: "red", NormalizedMeters: 20},
		{MaterialName: "silk", Color: "blue", NormalizedMeters: 10},
		{MaterialName: "linen", NormalizedMeters: 5}, // no color yet
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.RefreshAvailability(ctx, sess); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	cotton := sess.Items[0]
	if cotton.Status != enums.ItemStatusAccepted {
		t.Fatalf("fully available item must auto-accept, got %s", cotton.Status)
	}
	if cotton.Allocations.TotalMeters() != 20 {
		t.Fatalf("expected 20m allocated, got %v", cotton.Allocations.TotalMeters())
	}

	silk := sess.Items[1]
	if silk.Status != enums.ItemStatusNegotiating {
		t.Fatalf("partial item stays negotiating, got %s", silk.Status)
	}
	if silk.InventoryStatus == nil || *silk.InventoryStatus != enums.InventoryStatusPartial {
		t.Fatalf("expected partial snapshot, got %+v", silk.InventoryStatus)
	}

	linen := sess.Items[2]
	if linen.InventoryStatus != nil {
		t.Fatalf("colorless item must not be planned, got %+v", linen.InventoryStatus)
	}
}

func TestEvaluate(t *testing.T) {
	full := enums.InventoryStatusFull
	accepted := models.OrderSessionItem{Status: enums.ItemStatusAccepted, InventoryStatus: &full}
	negotiating := models.OrderSessionItem{Status: enums.ItemStatusNegotiating}
	cancelled := models.OrderSessionItem{Status: enums.ItemStatusCancelled}

	cases := []struct {
		name  string
		items []models.OrderSessionItem
		want  enums.SessionState
	}{
		{"no items", nil, enums.SessionStateOrderCompleted},
		{"all cancelled", []models.OrderSessionItem{cancelled, cancelled}, enums.SessionStateOrderCompleted},
		{"all accepted", []models.OrderSessionItem{accepted, cancelled}, enums.SessionStateFinalConfirmation},
		{"one still open", []models.OrderSessionItem{accepted, negotiating}, enums.SessionStateNegotiation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := &models.OrderSession{Items: tc.items}
			if got := Evaluate(sess); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestApplyDecisions_AcceptPartialNormalizesDown(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "+913333333333", []extraction.Measurement{
		{MaterialName: "cotton", Color: "red", NormalizedMeters: 50},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	partial := enums.InventoryStatusPartial
	item := &sess.Items[0]
	item.InventoryStatus = &partial
	item.AvailableMeters = 30

	result, err := svc.ApplyDecisions(ctx, sess, []extraction.ItemDecision{
		{Material: "cotton", Action: enums.DecisionAccept},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.Accepted) != 1 {
		t.Fatalf("expected 1 accepted, got %+v", result)
	}
	got := result.Accepted[0]
	if got.NormalizedMeters != 30 {
		t.Fatalf("quantity should normalize down to 30, got %v", got.NormalizedMeters)
	}
	if got.RequestedMeters == nil || *got.RequestedMeters != 50 {
		t.Fatalf("original demand should be kept, got %+v", got.RequestedMeters)
	}
}

func TestApplyDecisions_AcceptOutOfStockSkipped(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "+914444444444", []extraction.Measurement{
		{MaterialName: "cotton", Color: "red", NormalizedMeters: 50},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	out := enums.InventoryStatusOut
	sess.Items[0].InventoryStatus = &out

	result, err := svc.ApplyDecisions(ctx, sess, []extraction.ItemDecision{
		{Material: "cotton", Action: enums.DecisionAccept},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.Skipped) != 1 || len(result.Accepted) != 0 {
		t.Fatalf("out-of-stock accept must be skipped, got %+v", result)
	}
	if sess.Items[0].Status != enums.ItemStatusNegotiating {
		t.Fatalf("item must stay negotiating, got %s", sess.Items[0].Status)
	}
}

func TestApplyDecisions_CancelWipesAllocation(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "+915555555555", []extraction.Measurement{
		{MaterialName: "cotton", Color: "red", NormalizedMeters: 20},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	result, err := svc.ApplyDecisions(ctx, sess, []extraction.ItemDecision{
		{Material: "cotton", Action: enums.DecisionCancel},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.Cancelled) != 1 {
		t.Fatalf("expected 1 cancelled, got %+v", result)
	}
	got := result.Cancelled[0]
	if got.Status != enums.ItemStatusCancelled || got.Allocations != nil || got.AvailableMeters != 0 {
		t.Fatalf("cancelled item must carry no allocation: %+v", got)
	}
}

func TestApplyDecisions_EditCreatesReplacementChain(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "+916666666666", []extraction.Measurement{
		{MaterialName: "cotton", Color: "red", NormalizedMeters: 20},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	oldID := sess.Items[0].ID

	result, err := svc.ApplyDecisions(ctx, sess, []extraction.ItemDecision{
		{Material: "cotton", Action: enums.DecisionEdit, NewColor: "blue", NewMeters: 15},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.Replaced) != 1 || len(result.NewItems) != 1 {
		t.Fatalf("expected one replacement, got %+v", result)
	}

	var old models.OrderSessionItem
	if err := db.First(&old, "id = ?", oldID).Error; err != nil {
		t.Fatalf("load old item: %v", err)
	}
	if old.Status != enums.ItemStatusReplaced {
		t.Fatalf("old item must be replaced, got %s", old.Status)
	}
	if old.ReplacedBy == nil || *old.ReplacedBy != result.NewItems[0].ID {
		t.Fatalf("old item must point forward to its successor")
	}

	replacement := result.NewItems[0]
	if replacement.MaterialName != "cotton" || replacement.Color == nil || *replacement.Color != "blue" {
		t.Fatalf("replacement should keep material and take the new color: %+v", replacement)
	}
	if replacement.NormalizedMeters != 15 {
		t.Fatalf("replacement should take the new quantity, got %v", replacement.NormalizedMeters)
	}
	if replacement.Status != enums.ItemStatusNegotiating {
		t.Fatalf("replacement starts negotiating, got %s", replacement.Status)
	}
}

func TestApplyDecisions_UnmatchedReported(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "+917777777777", []extraction.Measurement{
		{MaterialName: "cotton", Color: "red", NormalizedMeters: 20},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	result, err := svc.ApplyDecisions(ctx, sess, []extraction.ItemDecision{
		{Material: "velvet", Action: enums.DecisionAccept},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.Unmatched) != 1 {
		t.Fatalf("decision naming no item must be reported, got %+v", result)
	}
}
