package negotiation

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bunai-labs/bunai-backend/internal/inventory"
	"github.com/bunai-labs/bunai-backend/pkg/db/models"
	"github.com/bunai-labs/bunai-backend/pkg/enums"
)

const (
	msgExtractionFailed = "Sorry, we could not read an order from that message. " +
		"Please send the material, color and meters, for example: \"20 meters red cotton\"."
	msgUnclearReply = "Sorry, we did not catch that."
	msgSomeDecisionsIgnored = "Some of your choices did not match an item on the order " +
		"and were skipped."
	msgModifyPrompt   = "Sure, let's adjust your order."
	msgSentToOwner    = "Thank you! Your order has been sent to the shop for confirmation."
	msgOrderCancelled = "Your order has been cancelled. Message us any time to start a new one."
	msgNothingLeft    = "All items were removed, so the order was closed. " +
		"Message us any time to start a new one."
)

// pendingItemsMessage builds the single consolidated status message for a
// session still in negotiation: one line per live item, with alternatives
// for out-of-stock items and a color prompt for items missing one.
func (s *service) pendingItemsMessage(ctx context.Context, sess *models.OrderSession) (string, error) {
	var b strings.Builder
	b.WriteString("Here is your order so far:\n")

	n := 0
	var needsReply bool
	for i := range sess.Items {
		item := &sess.Items[i]
		if !item.IsLive() {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s", n, itemLabel(item))

		switch {
		case item.Color == nil || *item.Color == "":
			needsReply = true
			colors, err := s.inventory.AvailableColors(ctx, item.MaterialName)
			if err != nil {
				return "", err
			}
			if len(colors) > 0 {
				fmt.Fprintf(&b, " - which color? We have: %s", strings.Join(colors, ", "))
			} else {
				b.WriteString(" - which color would you like?")
			}

		case item.Status == enums.ItemStatusAccepted:
			b.WriteString(" - confirmed")

		case item.InventoryStatus == nil:
			needsReply = true
			b.WriteString(" - checking stock")

		case *item.InventoryStatus == enums.InventoryStatusPartial:
			needsReply = true
			fmt.Fprintf(&b, " - only %.0fm in stock, reply \"accept %s\" to take %.0fm or \"cancel %s\" to drop it",
				item.AvailableMeters, item.MaterialName, item.AvailableMeters, item.MaterialName)

		case *item.InventoryStatus == enums.InventoryStatusOut:
			needsReply = true
			b.WriteString(" - out of stock")
			alts, err := s.alternativesFor(ctx, item)
			if err != nil {
				return "", err
			}
			if len(alts) > 0 {
				b.WriteString(". We do have: ")
				b.WriteString(formatAlternatives(alts))
			}
		}
		b.WriteString("\n")
	}

	if needsReply {
		b.WriteString("\nReply per item with accept, cancel or change, or say \"cancel order\".")
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

// finalSummaryMessage lists the accepted items and asks for the final yes.
func (s *service) finalSummaryMessage(_ context.Context, sess *models.OrderSession) (string, error) {
	var b strings.Builder
	b.WriteString("Your order is ready to confirm:\n")
	n := 0
	for i := range sess.Items {
		item := &sess.Items[i]
		if item.Status != enums.ItemStatusAccepted {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, itemLabel(item))
	}
	b.WriteString("\nReply \"confirm\" to place the order, \"change\" to adjust it, or \"cancel\" to drop it.")
	return b.String(), nil
}

// ownerApprovalRequest is the message the owner gets when a customer
// confirms, or when an overdue balance routes an order past negotiation.
// Overdue orders may still carry unresolved items, so every live item is
// listed.
func (s *service) ownerApprovalRequest(sess *models.OrderSession, overdue bool, balance decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s from %s is awaiting your confirmation:\n", sess.OrderID, sess.CustomerPhone)
	for i := range sess.Items {
		item := &sess.Items[i]
		if !item.IsLive() {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", itemLabel(item))
	}
	if overdue {
		fmt.Fprintf(&b, "\nNote: this customer has an overdue outstanding balance of %s.\n", balance.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nReply \"APPROVE %s\" or \"REJECT %s\".", sess.OrderID, sess.OrderID)
	return b.String()
}

// alternativesFor ranks substitutes for an out-of-stock item.
func (s *service) alternativesFor(ctx context.Context, item *models.OrderSessionItem) ([]inventory.Alternative, error) {
	if item.Color == nil || *item.Color == "" {
		return nil, nil
	}
	batches, err := s.inventory.FindAllWithStock(ctx)
	if err != nil {
		return nil, err
	}
	limit := s.cfg.MaxAlternatives
	if limit <= 0 {
		limit = 3
	}
	return inventory.RankAlternatives(batches, item.MaterialName, *item.Color, limit), nil
}

func formatAlternatives(alts []inventory.Alternative) string {
	parts := make([]string, 0, len(alts))
	for _, alt := range alts {
		parts = append(parts, fmt.Sprintf("%s in %s (%.0fm)", alt.Material, alt.Color, alt.AvailableMeters))
	}
	return strings.Join(parts, ", ")
}

func itemLabel(item *models.OrderSessionItem) string {
	label := item.MaterialName
	if item.Color != nil && *item.Color != "" {
		label = fmt.Sprintf("%s (%s)", item.MaterialName, *item.Color)
	}
	return fmt.Sprintf("%s - %.0fm", label, item.NormalizedMeters)
}
