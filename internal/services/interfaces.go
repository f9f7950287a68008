// Package services defines the collaborator interfaces the workflow core
// depends on, and the application manager that wires everything together.
// Email delivery, invoicing, audit logging and the like are owned by other
// parts of the platform; the core calls them as opaque fallible services.
package services

import (
	"context"
	"time"

	"clientflow/internal/storage"
)

// EmailService sends a single email. Transport and templating live outside
// the core.
type EmailService interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// InvoiceReminder is one due invoice reminder as surfaced by the invoice
// service.
type InvoiceReminder struct {
	ID        string
	InvoiceID int64
	ClientID  int64
	DueAt     time.Time
}

// InvoiceService is the invoicing subsystem's surface consumed by the core.
type InvoiceService interface {
	CreateMilestoneInvoice(ctx context.Context, milestoneID, projectID, clientID int64, amount float64) (*storage.Invoice, error)
	GetInvoiceByID(ctx context.Context, id int64) (*storage.Invoice, error)

	// ProcessScheduledInvoices and ProcessRecurringInvoices generate invoices
	// that have come due; both return the number generated.
	ProcessScheduledInvoices(ctx context.Context) (int, error)
	ProcessRecurringInvoices(ctx context.Context) (int, error)

	// CheckAndMarkOverdue marks invoices past their due date as overdue and
	// returns the affected invoices.
	CheckAndMarkOverdue(ctx context.Context) ([]*storage.Invoice, error)

	DueReminders(ctx context.Context) ([]*InvoiceReminder, error)
	MarkReminderSent(ctx context.Context, reminderID string) error
	MarkReminderFailed(ctx context.Context, reminderID, reason string) error
	SkipReminder(ctx context.Context, reminderID string) error
}

// AuditEntry is one row in the platform's audit trail. NewValue stays nil
// for deletion events.
type AuditEntry struct {
	Action      string
	EntityType  string
	EntityID    any
	OldValue    map[string]any
	NewValue    map[string]any
	Actor       string
	ActorUserID int64
	At          time.Time
}

// AuditLogger appends entries to the audit trail.
type AuditLogger interface {
	Log(ctx context.Context, entry AuditEntry) error
}

// UserService resolves platform users.
type UserService interface {
	GetUserIDByEmail(ctx context.Context, email string) (int64, error)
}

// SoftDeleteService purges soft-deleted records whose retention has expired.
type SoftDeleteService interface {
	PermanentlyDeleteExpired(ctx context.Context) (int, error)
}

// EscalatedTask describes one task whose priority was raised.
type EscalatedTask struct {
	TaskID      int64
	ProjectID   int64
	OldPriority string
	NewPriority string
}

// EscalationResult is the outcome of a priority-escalation pass.
type EscalationResult struct {
	Updated   int
	Escalated []EscalatedTask
}

// EscalationService recomputes task priority from due-date proximity.
type EscalationService interface {
	EscalateAllProjects(ctx context.Context) (EscalationResult, error)
}

// TaskService creates tasks on behalf of trigger actions.
type TaskService interface {
	CreateTask(ctx context.Context, projectID int64, title, description string) error
}

// WebhookSender posts a payload to an outbound URL.
type WebhookSender interface {
	Send(ctx context.Context, url string, payload map[string]any) error
}

// Notifier delivers a message to an in-app or chat notification channel.
type Notifier interface {
	Notify(ctx context.Context, channel, message string) error
}
