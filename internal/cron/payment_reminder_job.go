package cron

import (
	"context"
	"fmt"

	"github.com/bunai-labs/bunai-backend/internal/customers"
	"github.com/bunai-labs/bunai-backend/internal/notify"
	"github.com/bunai-labs/bunai-backend/pkg/logger"
)

// PaymentReminderJobParams configure the overdue payment reminder sweep.
type PaymentReminderJobParams struct {
	Logger    *logger.Logger
	Customers customers.Service
	Messenger notify.Messenger
}

// NewPaymentReminderJob builds the job that messages every overdue customer
// and stamps the reminder time on their record.
func NewPaymentReminderJob(params PaymentReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customer service required")
	}
	if params.Messenger == nil {
		return nil, fmt.Errorf("messenger required")
	}
	return &paymentReminderJob{
		logg:      params.Logger,
		customers: params.Customers,
		messenger: params.Messenger,
	}, nil
}

type paymentReminderJob struct {
	logg      *logger.Logger
	customers customers.Service
	messenger notify.Messenger
}

func (j *paymentReminderJob) Name() string { return "payment-reminder" }

func (j *paymentReminderJob) Run(ctx context.Context) error {
	overdue, err := j.customers.OverdueCustomers(ctx)
	if err != nil {
		return fmt.Errorf("list overdue customers: %w", err)
	}

	sent := 0
	for _, customer := range overdue {
		custCtx := j.logg.WithCustomerPhone(ctx, customer.PhoneNumber)
		text := fmt.Sprintf(
			"Friendly reminder: your outstanding balance is ₹%s. Please arrange payment at your convenience.",
			customer.OutstandingBalance.StringFixed(2),
		)
		if err := j.messenger.SendMessage(custCtx, customer.PhoneNumber, text); err != nil {
			j.logg.Error(custCtx, "payment reminder send failed", err)
			continue
		}
		if err := j.customers.MarkReminded(custCtx, customer.PhoneNumber); err != nil {
			j.logg.Error(custCtx, "payment reminder stamp failed", err)
			continue
		}
		sent++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"overdue_customers": len(overdue),
		"reminders_sent":    sent,
	})
	j.logg.Info(logCtx, "payment reminder sweep complete")
	return nil
}
