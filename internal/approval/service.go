package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bunai-labs/bunai-backend/internal/customers"
	"github.com/bunai-labs/bunai-backend/internal/inventory"
	"github.com/bunai-labs/bunai-backend/internal/notify"
	"github.com/bunai-labs/bunai-backend/internal/session"
	"github.com/bunai-labs/bunai-backend/pkg/config"
	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	"github.com/bunai-labs/bunai-backend/pkg/enums"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
	"github.com/bunai-labs/bunai-backend/pkg/logger"
	"github.com/bunai-labs/bunai-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result is what one approval produced. Invoice is nil when the session
// closed with nothing accepted.
type Result struct {
	Session  *models.OrderSession
	Invoice  *models.Invoice
	Lines    []models.OrderLineItem
	Customer *models.Customer
}

// Service is the approval orchestrator. Approve runs the whole commit
// sequence in one transaction: re-resolve each accepted item against current
// stock and deduct, write permanent line items, issue the invoice, post the
// credit entry, and close the session. Either everything lands or nothing
// does.
type Service interface {
	Approve(ctx context.Context, orderID uuid.UUID) (*Result, error)
	Reject(ctx context.Context, orderID uuid.UUID) (*models.OrderSession, error)
}

type service struct {
	tx        txRunner
	repo      Repository
	sessions  session.Repository
	inventory inventory.Repository
	customers customers.Service
	messenger notify.Messenger
	renderer  notify.InvoiceRenderer
	cfg       config.WorkflowConfig
	logg      *logger.Logger
}

// NewService builds the approval orchestrator.
func NewService(
	tx txRunner,
	repo Repository,
	sessions session.Repository,
	inventoryRepo inventory.Repository,
	customerSvc customers.Service,
	messenger notify.Messenger,
	renderer notify.InvoiceRenderer,
	cfg config.WorkflowConfig,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("approval repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if inventoryRepo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if customerSvc == nil {
		return nil, fmt.Errorf("customer service required")
	}
	if messenger == nil {
		return nil, fmt.Errorf("messenger required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("invoice renderer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        tx,
		repo:      repo,
		sessions:  sessions,
		inventory: inventoryRepo,
		customers: customerSvc,
		messenger: messenger,
		renderer:  renderer,
		cfg:       cfg,
		logg:      logg,
	}, nil
}

// Approve commits the order. The state guard doubles as the idempotency
// barrier: once the first call moves the session out of
// waiting_owner_confirmation, a repeat lands on the terminal state and gets
// an idempotency error instead of deducting stock twice. The session row is
// read under a pessimistic lock and the closing update is conditional on the
// pending state, so two racing calls serialize on the row and the loser
// conflicts instead of committing a second deduction.
func (s *service) Approve(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	result := &Result{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		sessions := s.sessions.WithTx(tx)
		sess, err := sessions.FindByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.guardPending(ctx, tx, sess); err != nil {
			return err
		}
		result.Session = sess

		accepted := acceptedItems(sess.Items)
		if len(accepted) == 0 {
			return sessions.UpdateStateFrom(ctx, orderID,
				enums.SessionStateWaitingOwner, enums.SessionStateOrderCompleted)
		}

		invRepo := s.inventory.WithTx(tx)
		repo := s.repo.WithTx(tx)

		var (
			lines    []*models.OrderLineItem
			subtotal = decimal.Zero
			tax      = decimal.Zero
		)
		for _, item := range accepted {
			if item.Color == nil || *item.Color == "" {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "accepted item has no color").
					WithDetails(map[string]any{"item_id": item.ID})
			}

			// Allocations are re-resolved against current stock rather than
			// replayed from the negotiation snapshot, so drift to another
			// batch of the same material and color does not fail the order.
			batches, err := invRepo.FindMatching(ctx, item.MaterialName, *item.Color)
			if err != nil {
				return err
			}
			plan := inventory.PlanAllocation(batches, item.NormalizedMeters)
			if plan.Status != enums.InventoryStatusFull {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock no longer covers the accepted item").
					WithDetails(map[string]any{
						"item_id":          item.ID,
						"material":         item.MaterialName,
						"color":            *item.Color,
						"requested_meters": item.NormalizedMeters,
						"available_meters": plan.AvailableMeters,
					})
			}
			for _, alloc := range plan.Allocations {
				if _, err := inventory.DeductMeters(ctx, tx, alloc.BatchID, alloc.AllocatedMeters); err != nil {
					return err
				}
			}

			material, err := invRepo.MaterialByName(ctx, item.MaterialName)
			if err != nil {
				return err
			}

			line := &models.OrderLineItem{
				OrderID:        orderID,
				MaterialID:     material.ID,
				Color:          item.Color,
				QuantityMeters: item.NormalizedMeters,
				PricePerMeter:  material.PricePerMeter,
			}
			lines = append(lines, line)

			amount := decimal.NewFromFloat(item.NormalizedMeters).Mul(material.PricePerMeter)
			rate, err := s.taxRateFor(ctx, repo, material)
			if err != nil {
				return err
			}
			subtotal = subtotal.Add(amount)
			tax = tax.Add(amount.Mul(rate))
		}

		if err := repo.CreateLineItems(ctx, lines); err != nil {
			return err
		}

		invoice := &models.Invoice{
			OrderID:       orderID,
			InvoiceNumber: s.invoiceNumber(orderID),
			Subtotal:      subtotal.Round(2),
			TaxAmount:     tax.Round(2),
			TotalAmount:   subtotal.Add(tax).Round(2),
		}
		if err := repo.CreateInvoice(ctx, invoice); err != nil {
			return err
		}

		customer, err := s.customers.WithTx(tx).
			RecordInvoiceCredit(ctx, sess.CustomerPhone, orderID, invoice.TotalAmount)
		if err != nil {
			return err
		}

		if err := sessions.UpdateStateFrom(ctx, orderID,
			enums.SessionStateWaitingOwner, enums.SessionStateOrderCompleted); err != nil {
			return err
		}

		result.Invoice = invoice
		result.Customer = customer
		for _, line := range lines {
			result.Lines = append(result.Lines, *line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Session.WorkflowState = enums.SessionStateOrderCompleted

	metrics.OrdersApproved.Inc()
	if result.Invoice != nil {
		metrics.InvoicesIssued.Inc()
	}
	s.logg.Info(ctx, "order approved")

	s.notifyApproved(ctx, result)
	return result, nil
}

// Reject closes the order without touching inventory or money.
func (s *service) Reject(ctx context.Context, orderID uuid.UUID) (*models.OrderSession, error) {
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	var sess *models.OrderSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		sessions := s.sessions.WithTx(tx)
		found, err := sessions.FindByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.guardPending(ctx, tx, found); err != nil {
			return err
		}
		sess = found
		return sessions.UpdateStateFrom(ctx, orderID,
			enums.SessionStateWaitingOwner, enums.SessionStateOrderRejected)
	})
	if err != nil {
		return nil, err
	}
	sess.WorkflowState = enums.SessionStateOrderRejected

	metrics.OrdersRejected.Inc()
	s.logg.Info(ctx, "order rejected")

	if sendErr := s.messenger.SendMessage(ctx, sess.CustomerPhone,
		"Sorry, your order could not be confirmed. Please contact the shop for details."); sendErr != nil {
		s.logg.Error(ctx, "rejection notification failed", sendErr)
	}
	return sess, nil
}

func (s *service) guardPending(ctx context.Context, tx *gorm.DB, sess *models.OrderSession) error {
	if sess.WorkflowState == enums.SessionStateWaitingOwner {
		return nil
	}
	if sess.WorkflowState.IsTerminal() {
		err := pkgerrors.New(pkgerrors.CodeIdempotency, "order already finalized").
			WithDetails(map[string]any{"workflow_state": sess.WorkflowState})
		if invoice, findErr := s.repo.WithTx(tx).FindInvoiceByOrderID(ctx, sess.OrderID); findErr == nil {
			err = err.WithDetails(map[string]any{
				"workflow_state": sess.WorkflowState,
				"invoice_number": invoice.InvoiceNumber,
			})
		}
		return err
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting owner confirmation").
		WithDetails(map[string]any{"workflow_state": sess.WorkflowState})
}

// taxRateFor resolves the GST rate: material category, then the "default"
// category row, then the configured fallback.
func (s *service) taxRateFor(ctx context.Context, repo Repository, material *models.Material) (decimal.Decimal, error) {
	if material.Category != nil && *material.Category != "" {
		rate, err := repo.RateForCategory(ctx, *material.Category)
		if err != nil {
			return decimal.Zero, err
		}
		if rate != nil {
			return *rate, nil
		}
	}
	rate, err := repo.RateForCategory(ctx, "default")
	if err != nil {
		return decimal.Zero, err
	}
	if rate != nil {
		return *rate, nil
	}
	return s.cfg.DefaultTax(), nil
}

func (s *service) invoiceNumber(orderID uuid.UUID) string {
	prefix := s.cfg.InvoiceNumberSeed
	if prefix == "" {
		prefix = "INV"
	}
	short := strings.ToUpper(strings.ReplaceAll(orderID.String(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().UTC().Format("20060102150405"), short)
}

// notifyApproved delivers the post-commit messages. The order is already
// committed; delivery failures are logged, never propagated.
func (s *service) notifyApproved(ctx context.Context, result *Result) {
	sess := result.Session
	if result.Invoice == nil {
		if err := s.messenger.SendMessage(ctx, sess.CustomerPhone,
			"Your order was closed with no items to deliver."); err != nil {
			s.logg.Error(ctx, "completion notification failed", err)
		}
		return
	}

	ic := notify.InvoiceContext{
		InvoiceNumber: result.Invoice.InvoiceNumber,
		CustomerName:  sess.CustomerPhone,
		Date:          result.Invoice.CreatedAt.Format("02 Jan 2006"),
		Subtotal:      result.Invoice.Subtotal,
		Tax:           result.Invoice.TaxAmount,
		Total:         result.Invoice.TotalAmount,
	}
	// Lines were built from the accepted items in order, so the names line up.
	accepted := acceptedItems(sess.Items)
	for i, line := range result.Lines {
		il := notify.InvoiceLine{
			Meters: line.QuantityMeters,
			Rate:   line.PricePerMeter,
			Amount: decimal.NewFromFloat(line.QuantityMeters).Mul(line.PricePerMeter).Round(2),
		}
		if i < len(accepted) {
			il.Material = accepted[i].MaterialName
		}
		ic.Lines = append(ic.Lines, il)
	}

	fileRef, err := s.renderer.RenderInvoice(ctx, ic)
	if err != nil {
		s.logg.Error(ctx, "invoice rendering failed", err)
		fileRef = ""
	}

	caption := fmt.Sprintf("Invoice %s, total %s", result.Invoice.InvoiceNumber, result.Invoice.TotalAmount.StringFixed(2))
	if fileRef != "" {
		if err := s.messenger.SendDocument(ctx, sess.CustomerPhone, fileRef, caption); err != nil {
			s.logg.Error(ctx, "invoice delivery failed", err)
		}
	} else if err := s.messenger.SendMessage(ctx, sess.CustomerPhone, caption); err != nil {
		s.logg.Error(ctx, "invoice notification failed", err)
	}

	if s.cfg.OwnerPhone != "" {
		summary := fmt.Sprintf("Order %s approved. Invoice %s issued for %s.",
			sess.OrderID, result.Invoice.InvoiceNumber, result.Invoice.TotalAmount.StringFixed(2))
		if err := s.messenger.SendMessage(ctx, s.cfg.OwnerPhone, summary); err != nil {
			s.logg.Error(ctx, "owner notification failed", err)
		}
	}
}

func acceptedItems(items []models.OrderSessionItem) []models.OrderSessionItem {
	var accepted []models.OrderSessionItem
	for _, item := range items {
		if item.Status == enums.ItemStatusAccepted {
			accepted = append(accepted, item)
		}
	}
	return accepted
}
