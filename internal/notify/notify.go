// Package notify abstracts the outbound message channel and invoice
// rendering. Delivery failures after a committed approval are logged and
// retried out of band; they never roll anything back.
package notify

import (
	"context"

	"github.com/bunai-labs/bunai-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// Messenger sends outbound messages to a phone number.
type Messenger interface {
	SendMessage(ctx context.Context, phone, text string) error
	SendDocument(ctx context.Context, phone, fileRef, caption string) error
}

// InvoiceContext carries everything a renderer needs to produce a document.
type InvoiceContext struct {
	InvoiceNumber string
	CustomerName  string
	Date          string
	Lines         []InvoiceLine
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
}

// InvoiceLine is one rendered invoice row.
type InvoiceLine struct {
	Material string
	Meters   float64
	Rate     decimal.Decimal
	Amount   decimal.Decimal
}

// InvoiceRenderer produces a document and returns a file reference.
type InvoiceRenderer interface {
	RenderInvoice(ctx context.Context, ic InvoiceContext) (string, error)
}

// LogMessenger is the default Messenger; it records outbound traffic in the
// logs instead of hitting a channel provider.
type LogMessenger struct {
	Logg *logger.Logger
}

func (m LogMessenger) SendMessage(ctx context.Context, phone, text string) error {
	if m.Logg != nil {
		ctx = m.Logg.WithFields(ctx, map[string]any{"phone": phone, "text": text})
		m.Logg.Info(ctx, "notify.message")
	}
	return nil
}

func (m LogMessenger) SendDocument(ctx context.Context, phone, fileRef, caption string) error {
	if m.Logg != nil {
		ctx = m.Logg.WithFields(ctx, map[string]any{"phone": phone, "file": fileRef, "caption": caption})
		m.Logg.Info(ctx, "notify.document")
	}
	return nil
}

// NoopRenderer satisfies InvoiceRenderer without producing a document.
type NoopRenderer struct{}

func (NoopRenderer) RenderInvoice(ctx context.Context, ic InvoiceContext) (string, error) {
	return "PENDING", nil
}
