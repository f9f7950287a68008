package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clientflow/internal/events"
	"clientflow/internal/services"
	"clientflow/internal/storage"
)

var errInvoiceServiceMissing = errors.New("invoice service not configured")

// errNoRecipient marks reminders whose client genuinely cannot be reached:
// the entity is gone or has no email address. Transient store failures are
// not wrapped in it, so callers leave those rows pending for the next tick.
var errNoRecipient = errors.New("no reachable client email")

// welcomeSequenceTemplates is the onboarding email schedule seeded for every
// new client, as day offsets from signup.
var welcomeSequenceTemplates = []struct {
	EmailType string
	Days      int
}{
	{"welcome", 0},
	{"getting_started", 3},
	{"resources", 7},
	{"check_in", 14},
}

// CheckOverdueInvoices marks invoices past their due date as overdue and
// emits invoice.overdue for each so declarative triggers and automations
// react the same way they would to a user action. Returns the count marked.
func (s *Scheduler) CheckOverdueInvoices(ctx context.Context) (int, error) {
	if s.invoices == nil {
		return 0, errInvoiceServiceMissing
	}
	invoices, err := s.invoices.CheckAndMarkOverdue(ctx)
	if err != nil {
		return 0, fmt.Errorf("overdue check failed: %w", err)
	}

	for _, inv := range invoices {
		s.bus.Emit(ctx, events.InvoicePayload{
			Event:     events.InvoiceOverdue,
			InvoiceID: inv.ID,
			ClientID:  inv.ClientID,
			ProjectID: inv.ProjectID,
			Amount:    inv.Amount,
			Status:    inv.Status,
		})
	}

	if len(invoices) > 0 {
		s.logger.Info("marked invoices overdue", "count", len(invoices))
	}
	return len(invoices), nil
}

// ReminderResult is the outcome of one invoice-reminder batch.
type ReminderResult struct {
	Sent    int
	Skipped int
	Failed  int
}

// ProcessReminders sends the due invoice reminders. A reminder whose client
// has no email address is marked skipped without touching the send path; one
// reminder's failure never aborts the batch.
func (s *Scheduler) ProcessReminders(ctx context.Context) (ReminderResult, error) {
	var result ReminderResult
	if s.invoices == nil {
		return result, errInvoiceServiceMissing
	}

	due, err := s.invoices.DueReminders(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load due reminders: %w", err)
	}

	for _, r := range due {
		client, err := s.domain.GetClient(ctx, r.ClientID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("failed to load reminder client, leaving pending",
				"reminder_id", r.ID, "client_id", r.ClientID, "error", err)
			result.Failed++
			continue
		}
		if err != nil || client.Email == "" {
			s.logger.Warn("reminder client has no email, skipping",
				"reminder_id", r.ID, "client_id", r.ClientID)
			if err := s.invoices.SkipReminder(ctx, r.ID); err != nil {
				s.logger.Error("failed to skip reminder", "reminder_id", r.ID, "error", err)
			}
			result.Skipped++
			continue
		}

		subject := "Invoice payment reminder"
		body := fmt.Sprintf("Hi %s, this is a reminder that invoice #%d is awaiting payment.",
			client.Name, r.InvoiceID)
		if err := s.email.SendEmail(ctx, client.Email, subject, body); err != nil {
			s.logger.Error("failed to send invoice reminder",
				"reminder_id", r.ID, "error", err)
			if err := s.invoices.MarkReminderFailed(ctx, r.ID, err.Error()); err != nil {
				s.logger.Error("failed to mark reminder failed", "reminder_id", r.ID, "error", err)
			}
			result.Failed++
			continue
		}

		if err := s.invoices.MarkReminderSent(ctx, r.ID); err != nil {
			s.logger.Error("failed to mark reminder sent", "reminder_id", r.ID, "error", err)
		}
		result.Sent++
	}

	return result, nil
}

// ProcessScheduledInvoices delegates to the invoice service's scheduled
// generation and returns the count generated.
func (s *Scheduler) ProcessScheduledInvoices(ctx context.Context) (int, error) {
	if s.invoices == nil {
		return 0, errInvoiceServiceMissing
	}
	return s.invoices.ProcessScheduledInvoices(ctx)
}

// ProcessRecurringInvoices delegates to the invoice service's recurring
// generation and returns the count generated.
func (s *Scheduler) ProcessRecurringInvoices(ctx context.Context) (int, error) {
	if s.invoices == nil {
		return 0, errInvoiceServiceMissing
	}
	return s.invoices.ProcessRecurringInvoices(ctx)
}

// CleanupResult reports per-table deletion counts from an analytics cleanup
// pass.
type CleanupResult struct {
	PageViews         int64
	InteractionEvents int64
	PurgedRecords     int
}

// CleanupAnalyticsData deletes raw analytics rows past the retention window
// and purges expired soft-deleted records.
func (s *Scheduler) CleanupAnalyticsData(ctx context.Context) (CleanupResult, error) {
	var result CleanupResult
	before := time.Now().Add(-s.cfg.AnalyticsRetention)

	pv, err := s.analytics.DeleteAgedPageViews(ctx, before)
	if err != nil {
		return result, fmt.Errorf("page view cleanup failed: %w", err)
	}
	result.PageViews = pv

	ie, err := s.analytics.DeleteAgedInteractionEvents(ctx, before)
	if err != nil {
		return result, fmt.Errorf("interaction event cleanup failed: %w", err)
	}
	result.InteractionEvents = ie

	if s.softDelete != nil {
		purged, err := s.softDelete.PermanentlyDeleteExpired(ctx)
		if err != nil {
			s.logger.Error("soft-delete purge failed", "error", err)
		} else {
			result.PurgedRecords = purged
		}
	}

	s.logger.Info("analytics cleanup finished",
		"page_views", result.PageViews,
		"interaction_events", result.InteractionEvents,
		"purged", result.PurgedRecords)
	return result, nil
}

// ProcessPriorityEscalation recomputes task priorities via the escalation
// service.
func (s *Scheduler) ProcessPriorityEscalation(ctx context.Context) (services.EscalationResult, error) {
	if s.escalation == nil {
		return services.EscalationResult{}, errors.New("escalation service not configured")
	}
	return s.escalation.EscalateAllProjects(ctx)
}

// ScheduleContractReminders resets the signature-reminder cadence for a
// project: any pending reminders are removed, then exactly four rows are
// inserted at the fixed day offsets relative to contract-send time.
func (s *Scheduler) ScheduleContractReminders(ctx context.Context, projectID int64) error {
	if _, err := s.reminders.DeletePendingContractReminders(ctx, projectID); err != nil {
		return fmt.Errorf("failed to clear pending reminders: %w", err)
	}

	base := time.Now()
	if project, err := s.domain.GetProject(ctx, projectID); err == nil && project.ContractSentAt != nil {
		base = *project.ContractSentAt
	}

	rows := make([]*storage.ContractReminder, 0, len(storage.ContractReminderOffsets))
	for _, days := range storage.ContractReminderOffsets {
		rows = append(rows, &storage.ContractReminder{
			ID:            uuid.NewString(),
			ProjectID:     projectID,
			ReminderType:  reminderTypeForOffset(days),
			ScheduledDate: base.AddDate(0, 0, days),
			Status:        storage.ReminderPending,
		})
	}
	if err := s.reminders.InsertContractReminders(ctx, rows); err != nil {
		return fmt.Errorf("failed to insert contract reminders: %w", err)
	}

	s.logger.Info("scheduled contract reminders", "project_id", projectID, "count", len(rows))
	return nil
}

func reminderTypeForOffset(days int) string {
	if days == 0 {
		return "initial"
	}
	return fmt.Sprintf("followup_day_%d", days)
}

// CancelContractReminders marks a project's pending signature reminders as
// skipped. Called when the contract is signed or the project is resolved.
func (s *Scheduler) CancelContractReminders(ctx context.Context, projectID int64) (int64, error) {
	n, err := s.reminders.CancelPendingContractReminders(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel contract reminders: %w", err)
	}
	if n > 0 {
		s.logger.Info("cancelled contract reminders", "project_id", projectID, "count", n)
	}
	return n, nil
}

// StartWelcomeSequence seeds the onboarding email schedule for a client.
// The client's started-at marker guards against double-seeding: a second
// call is a no-op returning zero.
func (s *Scheduler) StartWelcomeSequence(ctx context.Context, clientID int64) (int, error) {
	now := time.Now()
	started, err := s.domain.MarkWelcomeSequenceStarted(ctx, clientID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark welcome sequence started: %w", err)
	}
	if !started {
		s.logger.Info("welcome sequence already started", "client_id", clientID)
		return 0, nil
	}

	rows := make([]*storage.WelcomeSequenceEmail, 0, len(welcomeSequenceTemplates))
	for _, tpl := range welcomeSequenceTemplates {
		rows = append(rows, &storage.WelcomeSequenceEmail{
			ID:              uuid.NewString(),
			ClientID:        clientID,
			EmailType:       tpl.EmailType,
			DaysAfterSignup: tpl.Days,
			SendAt:          now.AddDate(0, 0, tpl.Days),
			Status:          storage.ReminderPending,
		})
	}
	if err := s.reminders.InsertWelcomeEmails(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to seed welcome sequence: %w", err)
	}

	s.logger.Info("seeded welcome sequence", "client_id", clientID, "emails", len(rows))
	return len(rows), nil
}

// CancelWelcomeSequence marks a client's pending welcome emails as skipped.
func (s *Scheduler) CancelWelcomeSequence(ctx context.Context, clientID int64) (int64, error) {
	n, err := s.reminders.CancelPendingWelcomeEmails(ctx, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel welcome sequence: %w", err)
	}
	return n, nil
}

// ProcessContractReminders sends the due contract-signature reminders.
// Returns the count sent.
func (s *Scheduler) ProcessContractReminders(ctx context.Context) (int, error) {
	due, err := s.reminders.ListDueContractReminders(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to load due contract reminders: %w", err)
	}

	sent := 0
	for _, r := range due {
		client, err := s.resolveProjectClient(ctx, r.ProjectID)
		if errors.Is(err, errNoRecipient) {
			if err := s.reminders.SetContractReminderStatus(ctx, r.ID, storage.ReminderSkipped); err != nil {
				s.logger.Error("failed to skip contract reminder", "reminder_id", r.ID, "error", err)
			}
			continue
		}
		if err != nil {
			s.logger.Error("failed to resolve contract reminder client, leaving pending",
				"reminder_id", r.ID, "error", err)
			continue
		}

		subject := "Your contract is awaiting signature"
		body := fmt.Sprintf("Hi %s, your project contract is still waiting for a signature.", client.Name)
		if err := s.email.SendEmail(ctx, client.Email, subject, body); err != nil {
			s.logger.Error("failed to send contract reminder",
				"reminder_id", r.ID, "error", err)
			continue
		}
		if err := s.reminders.SetContractReminderStatus(ctx, r.ID, storage.ReminderSent); err != nil {
			s.logger.Error("failed to mark contract reminder sent", "reminder_id", r.ID, "error", err)
		}
		sent++
	}
	return sent, nil
}

// ProcessWelcomeEmails sends the due onboarding emails. Returns the count
// sent.
func (s *Scheduler) ProcessWelcomeEmails(ctx context.Context) (int, error) {
	due, err := s.reminders.ListDueWelcomeEmails(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to load due welcome emails: %w", err)
	}

	sent := 0
	for _, w := range due {
		client, err := s.domain.GetClient(ctx, w.ClientID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("failed to load welcome email client, leaving pending",
				"email_id", w.ID, "client_id", w.ClientID, "error", err)
			continue
		}
		if err != nil || client.Email == "" {
			s.logger.Warn("welcome email client has no address, skipping",
				"email_id", w.ID, "client_id", w.ClientID)
			if err := s.reminders.SetWelcomeEmailStatus(ctx, w.ID, storage.ReminderSkipped); err != nil {
				s.logger.Error("failed to skip welcome email", "email_id", w.ID, "error", err)
			}
			continue
		}

		subject := welcomeSubject(w.EmailType)
		body := fmt.Sprintf("Hi %s, welcome aboard!", client.Name)
		if err := s.email.SendEmail(ctx, client.Email, subject, body); err != nil {
			s.logger.Error("failed to send welcome email", "email_id", w.ID, "error", err)
			continue
		}
		if err := s.reminders.SetWelcomeEmailStatus(ctx, w.ID, storage.ReminderSent); err != nil {
			s.logger.Error("failed to mark welcome email sent", "email_id", w.ID, "error", err)
		}
		sent++
	}
	return sent, nil
}

func welcomeSubject(emailType string) string {
	switch emailType {
	case "welcome":
		return "Welcome!"
	case "getting_started":
		return "Getting started with your project"
	case "resources":
		return "Resources you might find useful"
	case "check_in":
		return "How is everything going?"
	default:
		return "Hello from the team"
	}
}

// ProcessApprovalReminders nudges clients about deliverables awaiting their
// approval, at the configured day offsets after submission. Returns the
// count sent.
func (s *Scheduler) ProcessApprovalReminders(ctx context.Context) (int, error) {
	deliverables, err := s.domain.ListAwaitingApprovalDeliverables(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load deliverables awaiting approval: %w", err)
	}

	now := time.Now()
	sent := 0
	for _, d := range deliverables {
		if d.SubmittedAt == nil {
			continue
		}
		offset, due := dueApprovalOffset(s.cfg.ApprovalReminderOffsets, *d.SubmittedAt, d.LastApprovalReminderAt, now)
		if !due {
			continue
		}

		client, err := s.resolveProjectClient(ctx, d.ProjectID)
		if err != nil {
			if !errors.Is(err, errNoRecipient) {
				s.logger.Error("failed to resolve approval reminder client",
					"deliverable_id", d.ID, "error", err)
			}
			continue
		}

		subject := fmt.Sprintf("Reminder: %q is awaiting your approval", d.Title)
		body := fmt.Sprintf("Hi %s, the deliverable %q was submitted %d days ago and is waiting for your review.",
			client.Name, d.Title, offset)
		if err := s.email.SendEmail(ctx, client.Email, subject, body); err != nil {
			s.logger.Error("failed to send approval reminder",
				"deliverable_id", d.ID, "error", err)
			continue
		}
		if err := s.domain.SetApprovalReminderSent(ctx, d.ID, now); err != nil {
			s.logger.Error("failed to record approval reminder", "deliverable_id", d.ID, "error", err)
		}
		sent++
	}
	return sent, nil
}

// dueApprovalOffset returns the largest configured offset that has elapsed
// since submission and has not yet been covered by a reminder.
func dueApprovalOffset(offsets []int, submitted time.Time, lastReminder *time.Time, now time.Time) (int, bool) {
	best := -1
	for _, days := range offsets {
		threshold := submitted.AddDate(0, 0, days)
		if now.Before(threshold) {
			continue
		}
		if lastReminder != nil && !lastReminder.Before(threshold) {
			continue
		}
		if days > best {
			best = days
		}
	}
	return best, best >= 0
}

// resolveProjectClient joins project to client and checks for a usable email
// address. Missing entities or a blank address report errNoRecipient; any
// other store error is returned as is so the caller can retry next tick.
func (s *Scheduler) resolveProjectClient(ctx context.Context, projectID int64) (*storage.Client, error) {
	project, err := s.domain.GetProject(ctx, projectID)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("project not found for reminder", "project_id", projectID)
		return nil, errNoRecipient
	}
	if err != nil {
		return nil, err
	}
	client, err := s.domain.GetClient(ctx, project.ClientID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && client.Email == "") {
		s.logger.Warn("client has no email for reminder",
			"project_id", projectID, "client_id", project.ClientID)
		return nil, errNoRecipient
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GenerationResult is the outcome of an on-demand invoice generation run.
type GenerationResult struct {
	Scheduled int
	Recurring int
}

// TriggerInvoiceGeneration runs scheduled and recurring invoice generation
// synchronously, for operator-triggered runs. Same logic as the cron path.
func (s *Scheduler) TriggerInvoiceGeneration(ctx context.Context) (GenerationResult, error) {
	var result GenerationResult

	scheduled, err := s.ProcessScheduledInvoices(ctx)
	if err != nil {
		return result, fmt.Errorf("scheduled invoice generation failed: %w", err)
	}
	result.Scheduled = scheduled

	recurring, err := s.ProcessRecurringInvoices(ctx)
	if err != nil {
		return result, fmt.Errorf("recurring invoice generation failed: %w", err)
	}
	result.Recurring = recurring

	return result, nil
}

// TriggerPriorityEscalation runs a priority-escalation pass synchronously.
func (s *Scheduler) TriggerPriorityEscalation(ctx context.Context) (services.EscalationResult, error) {
	return s.ProcessPriorityEscalation(ctx)
}

// TriggerReminderProcessing runs the invoice-reminder batch synchronously.
func (s *Scheduler) TriggerReminderProcessing(ctx context.Context) (ReminderResult, error) {
	return s.ProcessReminders(ctx)
}
