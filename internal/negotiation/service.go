// Package negotiation routes inbound WhatsApp-style messages through the
// order workflow: it opens sessions from extracted orders, applies reply
// decisions during negotiation, runs final confirmation, and handles the
// owner's command channel.
package negotiation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bunai-labs/bunai-backend/internal/approval"
	"github.com/bunai-labs/bunai-backend/internal/customers"
	"github.com/bunai-labs/bunai-backend/internal/extraction"
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

// Reply is the outbound answer to one inbound message.
type Reply struct {
	Text    string
	OrderID *uuid.UUID
}

// Service processes inbound messages from customers and the owner.
type Service interface {
	ProcessInbound(ctx context.Context, phone, message string) (*Reply, error)
}

type service struct {
	sessions   session.Service
	sessRepo   session.Repository
	inventory  inventory.Repository
	customers  customers.Service
	approvals  approval.Service
	extractor  extraction.Extractor
	classifier extraction.ReplyClassifier
	intents    extraction.IntentClassifier
	messenger  notify.Messenger
	cfg        config.WorkflowConfig
	logg       *logger.Logger
}

// NewService builds the negotiation message router.
func NewService(
	sessions session.Service,
	sessRepo session.Repository,
	inventoryRepo inventory.Repository,
	customerSvc customers.Service,
	approvals approval.Service,
	extractor extraction.Extractor,
	classifier extraction.ReplyClassifier,
	intents extraction.IntentClassifier,
	messenger notify.Messenger,
	cfg config.WorkflowConfig,
	logg *logger.Logger,
) (Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session service required")
	}
	if sessRepo == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if inventoryRepo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if customerSvc == nil {
		return nil, fmt.Errorf("customer service required")
	}
	if approvals == nil {
		return nil, fmt.Errorf("approval service required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("order extractor required")
	}
	if classifier == nil {
		return nil, fmt.Errorf("reply classifier required")
	}
	if intents == nil {
		return nil, fmt.Errorf("intent classifier required")
	}
	if messenger == nil {
		return nil, fmt.Errorf("messenger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		sessions:   sessions,
		sessRepo:   sessRepo,
		inventory:  inventoryRepo,
		customers:  customerSvc,
		approvals:  approvals,
		extractor:  extractor,
		classifier: classifier,
		intents:    intents,
		messenger:  messenger,
		cfg:        cfg,
		logg:       logg,
	}, nil
}

func (s *service) ProcessInbound(ctx context.Context, phone, message string) (*Reply, error) {
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender phone required")
	}
	if message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body required")
	}
	ctx = s.logg.WithCustomerPhone(ctx, phone)

	if s.cfg.OwnerPhone != "" && phone == s.cfg.OwnerPhone {
		metrics.InboundMessages.WithLabelValues("owner").Inc()
		return s.handleOwnerMessage(ctx, message)
	}

	sess, err := s.sessions.ActiveSession(ctx, phone)
	if err != nil {
		return nil, err
	}

	var reply *Reply
	if sess == nil {
		metrics.InboundMessages.WithLabelValues("new_order").Inc()
		reply, err = s.handleNewOrder(ctx, phone, message)
	} else {
		metrics.InboundMessages.WithLabelValues(sess.WorkflowState.String()).Inc()
		ctx = s.logg.WithOrderID(ctx, sess.OrderID.String())
		switch sess.WorkflowState {
		case enums.SessionStateFinalConfirmation:
			reply, err = s.handleFinalConfirmation(ctx, sess, message)
		case enums.SessionStateWaitingOwner:
			reply = &Reply{
				Text:    "Your order is with the shop for confirmation. We will message you shortly.",
				OrderID: &sess.OrderID,
			}
		default:
			reply, err = s.handleNegotiationReply(ctx, sess, message)
		}
	}
	if err != nil {
		return nil, err
	}

	if sendErr := s.messenger.SendMessage(ctx, phone, reply.Text); sendErr != nil {
		s.logg.Error(ctx, "reply delivery failed", sendErr)
	}
	return reply, nil
}

// handleNewOrder extracts line items from a first message and opens a
// session. A message no items can be read from gets a prompt instead of a
// session.
func (s *service) handleNewOrder(ctx context.Context, phone, message string) (*Reply, error) {
	measurements, err := s.extractor.ExtractOrderItems(ctx, message)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "order extraction failed")
		return &Reply{Text: msgExtractionFailed}, nil
	}
	if len(measurements) == 0 {
		return &Reply{Text: msgExtractionFailed}, nil
	}

	sess, err := s.sessions.StartSession(ctx, phone, measurements)
	if err != nil {
		return nil, err
	}

	// An overdue balance sends the order straight to the owner, before any
	// stock is checked or negotiated.
	overdue, err := s.customers.IsOverdue(ctx, phone)
	if err != nil {
		return nil, err
	}
	if overdue {
		return s.handOffToOwner(ctx, sess, true)
	}

	if err := s.sessions.RefreshAvailability(ctx, sess); err != nil {
		return nil, err
	}
	return s.advanceAndRespond(ctx, sess)
}

// handleNegotiationReply classifies a reply into per-item decisions and
// applies them. Anything unreadable re-prompts with the current order.
func (s *service) handleNegotiationReply(ctx context.Context, sess *models.OrderSession, message string) (*Reply, error) {
	intent, err := s.intents.ClassifyGlobalIntent(ctx, message)
	if err == nil && intent == enums.IntentCancelOrder {
		return s.cancelOrder(ctx, sess)
	}

	classification, err := s.classifier.ClassifyReplyDecisions(ctx, message, pendingMeasurements(sess))
	if err != nil || len(classification.ItemDecisions) == 0 {
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "reply classification failed")
		}
		// A reply that yields no decisions may still add new items.
		if added, addErr := s.tryAddItems(ctx, sess, message); addErr == nil && added {
			return s.advanceAndRespond(ctx, sess)
		}
		text, buildErr := s.pendingItemsMessage(ctx, sess)
		if buildErr != nil {
			return nil, buildErr
		}
		return &Reply{Text: msgUnclearReply + "\n\n" + text, OrderID: &sess.OrderID}, nil
	}

	result, err := s.sessions.ApplyDecisions(ctx, sess, classification.ItemDecisions)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RefreshAvailability(ctx, sess); err != nil {
		return nil, err
	}

	reply, err := s.advanceAndRespond(ctx, sess)
	if err != nil {
		return nil, err
	}
	if len(result.Unmatched) > 0 || len(result.Skipped) > 0 {
		reply.Text = msgSomeDecisionsIgnored + "\n\n" + reply.Text
	}
	return reply, nil
}

// tryAddItems attempts to read the message as additional order items.
func (s *service) tryAddItems(ctx context.Context, sess *models.OrderSession, message string) (bool, error) {
	measurements, err := s.extractor.ExtractOrderItems(ctx, message)
	if err != nil || len(measurements) == 0 {
		return false, err
	}
	added, err := s.sessions.AddItems(ctx, sess, measurements)
	if err != nil {
		return false, err
	}
	if len(added) == 0 {
		return false, nil
	}
	if err := s.sessions.RefreshAvailability(ctx, sess); err != nil {
		return false, err
	}
	return true, nil
}

// handleFinalConfirmation runs the customer's last word on a fully resolved
// order.
func (s *service) handleFinalConfirmation(ctx context.Context, sess *models.OrderSession, message string) (*Reply, error) {
	intent, err := s.intents.ClassifyGlobalIntent(ctx, message)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "intent classification failed")
		intent = enums.IntentUnclear
	}

	switch intent {
	case enums.IntentConfirmOrder:
		return s.sendToOwner(ctx, sess)
	case enums.IntentCancelOrder:
		return s.cancelOrder(ctx, sess)
	case enums.IntentModifyOrder:
		return s.handleModify(ctx, sess, message)
	default:
		text, err := s.finalSummaryMessage(ctx, sess)
		if err != nil {
			return nil, err
		}
		return &Reply{Text: msgUnclearReply + "\n\n" + text, OrderID: &sess.OrderID}, nil
	}
}

// handleModify reopens negotiation from final confirmation. The modify
// message usually carries the change itself, so it is read for decisions or
// new items before re-prompting.
func (s *service) handleModify(ctx context.Context, sess *models.OrderSession, message string) (*Reply, error) {
	if err := s.sessions.Transition(ctx, sess, enums.SessionStateNegotiation); err != nil {
		return nil, err
	}
	if err := s.sessions.SetNegotiationPending(ctx, sess, true); err != nil {
		return nil, err
	}

	applied := false
	classification, err := s.classifier.ClassifyReplyDecisions(ctx, message, pendingMeasurements(sess))
	if err == nil && len(classification.ItemDecisions) > 0 {
		if _, err := s.sessions.ApplyDecisions(ctx, sess, classification.ItemDecisions); err != nil {
			return nil, err
		}
		if err := s.sessions.RefreshAvailability(ctx, sess); err != nil {
			return nil, err
		}
		applied = true
	} else if added, addErr := s.tryAddItems(ctx, sess, message); addErr == nil && added {
		applied = true
	}

	if applied {
		reply, err := s.advanceAndRespond(ctx, sess)
		if err != nil {
			return nil, err
		}
		reply.Text = msgModifyPrompt + "\n\n" + reply.Text
		return reply, nil
	}

	text, err := s.pendingItemsMessage(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: msgModifyPrompt + "\n\n" + text, OrderID: &sess.OrderID}, nil
}

// sendToOwner moves the confirmed order to the owner's queue. An overdue
// balance flags the session so the owner sees the warning.
func (s *service) sendToOwner(ctx context.Context, sess *models.OrderSession) (*Reply, error) {
	overdue, err := s.customers.IsOverdue(ctx, sess.CustomerPhone)
	if err != nil {
		return nil, err
	}
	return s.handOffToOwner(ctx, sess, overdue)
}

func (s *service) handOffToOwner(ctx context.Context, sess *models.OrderSession, overdue bool) (*Reply, error) {
	if overdue != sess.OwnerApprovalRequired {
		if err := s.sessions.SetOwnerApprovalRequired(ctx, sess, overdue); err != nil {
			return nil, err
		}
	}
	if err := s.sessions.Transition(ctx, sess, enums.SessionStateWaitingOwner); err != nil {
		return nil, err
	}
	metrics.SessionTransitions.WithLabelValues(enums.SessionStateWaitingOwner.String()).Inc()

	if s.cfg.OwnerPhone != "" {
		var balance decimal.Decimal
		if overdue {
			customer, err := s.customers.GetOrCreate(ctx, sess.CustomerPhone)
			if err != nil {
				return nil, err
			}
			balance = customer.OutstandingBalance
		}
		if err := s.messenger.SendMessage(ctx, s.cfg.OwnerPhone, s.ownerApprovalRequest(sess, overdue, balance)); err != nil {
			s.logg.Error(ctx, "owner notification failed", err)
		}
	}
	return &Reply{Text: msgSentToOwner, OrderID: &sess.OrderID}, nil
}

func (s *service) cancelOrder(ctx context.Context, sess *models.OrderSession) (*Reply, error) {
	if err := s.sessions.Transition(ctx, sess, enums.SessionStateOrderRejected); err != nil {
		return nil, err
	}
	metrics.SessionTransitions.WithLabelValues(enums.SessionStateOrderRejected.String()).Inc()
	return &Reply{Text: msgOrderCancelled, OrderID: &sess.OrderID}, nil
}

// advanceAndRespond evaluates the session and answers according to where it
// landed.
func (s *service) advanceAndRespond(ctx context.Context, sess *models.OrderSession) (*Reply, error) {
	state, err := s.sessions.Advance(ctx, sess)
	if err != nil {
		return nil, err
	}
	metrics.SessionTransitions.WithLabelValues(state.String()).Inc()

	switch state {
	case enums.SessionStateOrderCompleted:
		return &Reply{Text: msgNothingLeft, OrderID: &sess.OrderID}, nil
	case enums.SessionStateFinalConfirmation:
		// A resolved order from an overdue customer skips the customer's
		// final word and goes to the owner directly.
		overdue, err := s.customers.IsOverdue(ctx, sess.CustomerPhone)
		if err != nil {
			return nil, err
		}
		if overdue {
			return s.handOffToOwner(ctx, sess, true)
		}
		text, err := s.finalSummaryMessage(ctx, sess)
		if err != nil {
			return nil, err
		}
		return &Reply{Text: text, OrderID: &sess.OrderID}, nil
	default:
		text, err := s.pendingItemsMessage(ctx, sess)
		if err != nil {
			return nil, err
		}
		return &Reply{Text: text, OrderID: &sess.OrderID}, nil
	}
}

func pendingMeasurements(sess *models.OrderSession) []extraction.Measurement {
	var pending []extraction.Measurement
	for _, item := range sess.Items {
		if !item.IsLive() {
			continue
		}
		m := extraction.Measurement{
			MaterialName:     item.MaterialName,
			InputQuantity:    item.InputQuantity,
			InputUnit:        item.InputUnit,
			NormalizedMeters: item.NormalizedMeters,
		}
		if item.Color != nil {
			m.Color = *item.Color
		}
		pending = append(pending, m)
	}
	return pending
}
