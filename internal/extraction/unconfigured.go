package extraction

import (
	"context"

	"github.com/bunai-labs/bunai-backend/pkg/enums"
	pkgerrors "github.com/bunai-labs/bunai-backend/pkg/errors"
)

// Unconfigured implementations stand in until a real NLU provider is wired.
// Extraction fails loudly; classification degrades to "unclear" so the
// conversation re-prompts instead of erroring out.

type UnconfiguredExtractor struct{}

func (UnconfiguredExtractor) ExtractOrderItems(ctx context.Context, input string) ([]Measurement, error) {
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "no order extractor configured")
}

type UnconfiguredReplyClassifier struct{}

func (UnconfiguredReplyClassifier) ClassifyReplyDecisions(ctx context.Context, message string, pending []Measurement) (ReplyClassification, error) {
	return ReplyClassification{}, pkgerrors.New(pkgerrors.CodeDependency, "no reply classifier configured")
}

type UnconfiguredIntentClassifier struct{}

func (UnconfiguredIntentClassifier) ClassifyGlobalIntent(ctx context.Context, message string) (enums.GlobalIntent, error) {
	return enums.IntentUnclear, nil
}
