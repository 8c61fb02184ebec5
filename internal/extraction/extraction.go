// Package extraction defines the narrow interfaces through which the order
// workflow consumes natural-language understanding. Implementations live
// outside this repo; the workflow only depends on the structured results.
package extraction

import (
	"context"

	"github.com/bunai-labs/bunai-backend/pkg/enums"
)

// Measurement is one structured line item extracted from a customer message.
// Quantities are normalized to meters before any comparison.
type Measurement struct {
	MaterialName     string
	Color            string
	InputQuantity    float64
	InputUnit        string
	NormalizedMeters float64
}

// ItemDecision is a structured per-item decision from a customer reply.
// Color is optional; when set it narrows the item match.
type ItemDecision struct {
	Material string
	Color    string
	Action   enums.DecisionAction

	// Edit overrides; zero values mean "keep the current value".
	NewMaterial string
	NewColor    string
	NewMeters   float64
}

// ReplyClassification is the full result of classifying a free-form reply
// against the session's pending items.
type ReplyClassification struct {
	ItemDecisions []ItemDecision
	Language      string
}

// Extractor turns free text or media into structured line items. A failed
// extraction must leave no partial state behind.
type Extractor interface {
	ExtractOrderItems(ctx context.Context, input string) ([]Measurement, error)
}

// ReplyClassifier maps a free-form reply to per-item decisions.
type ReplyClassifier interface {
	ClassifyReplyDecisions(ctx context.Context, message string, pending []Measurement) (ReplyClassification, error)
}

// IntentClassifier maps a whole message to a global intent. Callers treat
// classification failures as IntentUnclear and re-prompt.
type IntentClassifier interface {
	ClassifyGlobalIntent(ctx context.Context, message string) (enums.GlobalIntent, error)
}
