package negotiation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
)

const msgOwnerHelp = "Commands: APPROVE <order-id>, REJECT <order-id>, PENDING"

// handleOwnerMessage parses the owner's command channel. When exactly one
// order is pending, APPROVE and REJECT work without an id.
func (s *service) handleOwnerMessage(ctx context.Context, message string) (*Reply, error) {
	fields := strings.Fields(strings.TrimSpace(message))
	if len(fields) == 0 {
		return &Reply{Text: msgOwnerHelp}, nil
	}

	command := strings.ToUpper(fields[0])
	switch command {
	case "PENDING":
		return s.listPending(ctx)

	case "APPROVE", "REJECT":
		orderID, err := s.resolveOrderID(ctx, fields[1:])
		if err != nil {
			return &Reply{Text: err.Error() + "\n" + msgOwnerHelp}, nil
		}
		if command == "APPROVE" {
			result, err := s.approvals.Approve(ctx, orderID)
			if err != nil {
				return s.ownerCommandFailed(orderID, err)
			}
			text := fmt.Sprintf("Order %s approved.", orderID)
			if result.Invoice != nil {
				text = fmt.Sprintf("Order %s approved. Invoice %s for %s sent to the customer.",
					orderID, result.Invoice.InvoiceNumber, result.Invoice.TotalAmount.StringFixed(2))
			}
			return &Reply{Text: text, OrderID: &orderID}, nil
		}
		if _, err := s.approvals.Reject(ctx, orderID); err != nil {
			return s.ownerCommandFailed(orderID, err)
		}
		return &Reply{Text: fmt.Sprintf("Order %s rejected.", orderID), OrderID: &orderID}, nil

	default:
		return &Reply{Text: msgOwnerHelp}, nil
	}
}

func (s *service) listPending(ctx context.Context) (*Reply, error) {
	pending, err := s.sessRepo.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return &Reply{Text: "No orders are awaiting confirmation."}, nil
	}
	var b strings.Builder
	b.WriteString("Orders awaiting confirmation:\n")
	for _, sess := range pending {
		fmt.Fprintf(&b, "- %s from %s", sess.OrderID, sess.CustomerPhone)
		if sess.OwnerApprovalRequired {
			b.WriteString(" (overdue balance)")
		}
		b.WriteString("\n")
	}
	return &Reply{Text: strings.TrimRight(b.String(), "\n")}, nil
}

// resolveOrderID takes the id argument, or falls back to the single pending
// order when the owner omitted it.
func (s *service) resolveOrderID(ctx context.Context, args []string) (uuid.UUID, error) {
	if len(args) > 0 {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return uuid.Nil, fmt.Errorf("%q is not an order id", args[0])
		}
		return id, nil
	}
	pending, err := s.sessRepo.ListPending(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	switch len(pending) {
	case 0:
		return uuid.Nil, fmt.Errorf("no orders are awaiting confirmation")
	case 1:
		return pending[0].OrderID, nil
	default:
		return uuid.Nil, fmt.Errorf("%d orders are pending, please include the order id", len(pending))
	}
}

// ownerCommandFailed turns workflow errors into owner-readable replies;
// anything unexpected still propagates.
func (s *service) ownerCommandFailed(orderID uuid.UUID, err error) (*Reply, error) {
	for _, code := range []pkgerrors.Code{
		pkgerrors.CodeNotFound,
		pkgerrors.CodeStateConflict,
		pkgerrors.CodeIdempotency,
		pkgerrors.CodeInsufficientStock,
	} {
		if pkgerrors.IsCode(err, code) {
			return &Reply{Text: fmt.Sprintf("Order %s: %s", orderID, err.Error())}, nil
		}
	}
	return nil, err
}
