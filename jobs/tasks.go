// Package jobs runs background work: billing notifications and dashboard
// cache warmup.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/slipdesk/slipdesk/internal/challan"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeInvoiceEmail delivers invoice details to the billing team.
	TaskTypeInvoiceEmail = "billing:invoice-email"
	// TaskTypeDashboardWarmup precomputes the all-time dashboard report.
	TaskTypeDashboardWarmup = "dashboard:warmup"
)

// InvoiceEmailPayload carries one billing notification.
type InvoiceEmailPayload struct {
	To    []string             `json:"to"`
	Email challan.InvoiceEmail `json:"email"`
}

// NewInvoiceEmailTask constructs an invoice email task.
func NewInvoiceEmailTask(payload InvoiceEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeInvoiceEmail, data), nil
}

// NewDashboardWarmupTask constructs a dashboard warmup task.
func NewDashboardWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeDashboardWarmup, nil)
}
