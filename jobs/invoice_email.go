package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/slipdesk/slipdesk/internal/challan"
	jobmetrics "github.com/slipdesk/slipdesk/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Mailer delivers a rendered message.
type Mailer interface {
	Send(to []string, subject, body string) error
}

// InvoiceEmailJob sends invoice details to the billing inbox.
type InvoiceEmailJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewInvoiceEmailJob wires dependencies for the billing mail handler.
func NewInvoiceEmailJob(mailer Mailer, logger *slog.Logger) *InvoiceEmailJob {
	return &InvoiceEmailJob{Mailer: mailer, Logger: logger}
}

// Handle processes TaskTypeInvoiceEmail tasks.
func (j *InvoiceEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Mailer == nil {
		return errors.New("invoice email: handler not configured")
	}
	var payload InvoiceEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.To) == 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeInvoiceEmail)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("number", payload.Email.Number))
	subject := fmt.Sprintf("Invoice request %s", payload.Email.Number)
	if err := j.Mailer.Send(payload.To, subject, invoiceBody(payload.Email)); err != nil {
		resultErr = err
		logger.Error("send invoice mail", slog.Any("error", err))
		return resultErr
	}
	logger.Info("invoice mail sent")
	return nil
}

func (j *InvoiceEmailJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func invoiceBody(email challan.InvoiceEmail) string {
	lines := []string{
		"Slip number: " + email.Number,
		"Client: " + email.ClientName,
		"Address: " + email.Address,
		"Contact: " + email.Contact,
		"Services: " + email.Services,
		"Service status: " + email.ServiceStatus,
	}
	if email.Area != "" {
		lines = append(lines, "Area: "+email.Area)
	}
	if email.WorkLocation != "" {
		lines = append(lines, "Work location: "+email.WorkLocation)
	}
	lines = append(lines, fmt.Sprintf("Amount: %.2f", email.Amount))
	if email.GST != "" {
		lines = append(lines, "GST: "+email.GST)
	}
	if len(email.Attachments) > 0 {
		lines = append(lines, "Attachments: "+strings.Join(email.Attachments, ", "))
	}
	lines = append(lines, "Requested by: "+email.User)
	return strings.Join(lines, "\n")
}

func (j *InvoiceEmailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeInvoiceEmail))
	}
	return slog.Default().With(slog.String("job", TaskTypeInvoiceEmail))
}
