package services

import (
	"context"
	"log/slog"
)

// Dev collaborators log what they would do instead of calling the
// surrounding platform. The standalone binary uses them when the real
// invoicing/email/audit subsystems are not wired in; tests use mocks.

type DevEmailService struct {
	Logger *slog.Logger
}

func (s *DevEmailService) SendEmail(ctx context.Context, to, subject, body string) error {
	s.Logger.Info("email (dev)", "to", to, "subject", subject)
	return nil
}

type DevAuditLogger struct {
	Logger *slog.Logger
}

func (l *DevAuditLogger) Log(ctx context.Context, entry AuditEntry) error {
	l.Logger.Info("audit (dev)", "action", entry.Action, "entity", entry.EntityType, "entity_id", entry.EntityID)
	return nil
}

type DevNotifier struct {
	Logger *slog.Logger
}

func (n *DevNotifier) Notify(ctx context.Context, channel, message string) error {
	n.Logger.Info("notification (dev)", "channel", channel, "message", message)
	return nil
}

type DevTaskService struct {
	Logger *slog.Logger
}

func (s *DevTaskService) CreateTask(ctx context.Context, projectID int64, title, description string) error {
	s.Logger.Info("task (dev)", "project_id", projectID, "title", title)
	return nil
}

type DevWebhookSender struct {
	Logger *slog.Logger
}

func (s *DevWebhookSender) Send(ctx context.Context, url string, payload map[string]any) error {
	s.Logger.Info("webhook (dev)", "url", url)
	return nil
}
