package workflow

import (
	"context"
	"fmt"

	"clientflow/internal/events"
	"clientflow/internal/services"
	"clientflow/internal/storage"
)

// RegisterBuiltinActions wires the built-in action types to their external
// collaborators. These adapters stay thin: they read the trigger's action
// config, fall back to event context where that makes sense, and let the
// engine record the outcome.
func (e *Engine) RegisterBuiltinActions(
	email services.EmailService,
	notifier services.Notifier,
	tasks services.TaskService,
	webhooks services.WebhookSender,
) {
	e.RegisterAction(storage.ActionSendEmail, sendEmailAction(email))
	e.RegisterAction(storage.ActionNotify, notifyAction(notifier))
	e.RegisterAction(storage.ActionCreateTask, createTaskAction(tasks))
	e.RegisterAction(storage.ActionWebhook, webhookAction(webhooks))
}

func sendEmailAction(email services.EmailService) Action {
	return func(ctx context.Context, t *storage.Trigger, evt events.Event) error {
		to := configString(t.ActionConfig, "to")
		if to == "" {
			to, _ = evt.Context["email"].(string)
		}
		if to == "" {
			return fmt.Errorf("send_email: no recipient in action config or event context")
		}

		subject := configString(t.ActionConfig, "subject")
		if subject == "" {
			subject = fmt.Sprintf("Notification: %s", evt.Type)
		}
		body := configString(t.ActionConfig, "body")

		return email.SendEmail(ctx, to, subject, body)
	}
}

func notifyAction(notifier services.Notifier) Action {
	return func(ctx context.Context, t *storage.Trigger, evt events.Event) error {
		channel := configString(t.ActionConfig, "channel")
		if channel == "" {
			channel = "general"
		}
		message := configString(t.ActionConfig, "message")
		if message == "" {
			message = fmt.Sprintf("Event %s fired trigger %q", evt.Type, t.Name)
		}
		return notifier.Notify(ctx, channel, message)
	}
}

func createTaskAction(tasks services.TaskService) Action {
	return func(ctx context.Context, t *storage.Trigger, evt events.Event) error {
		projectID := configInt(t.ActionConfig, "project_id")
		if projectID == 0 {
			projectID = contextInt(evt.Context, "project_id")
		}
		title := configString(t.ActionConfig, "title")
		if title == "" {
			title = fmt.Sprintf("Follow up on %s", evt.Type)
		}
		return tasks.CreateTask(ctx, projectID, title, configString(t.ActionConfig, "description"))
	}
}

func webhookAction(webhooks services.WebhookSender) Action {
	return func(ctx context.Context, t *storage.Trigger, evt events.Event) error {
		url := configString(t.ActionConfig, "url")
		if url == "" {
			return fmt.Errorf("webhook: no url in action config")
		}
		payload := map[string]any{
			"event_id":   evt.ID,
			"event_type": string(evt.Type),
			"timestamp":  evt.Timestamp,
			"context":    evt.Context,
			"trigger":    t.Name,
		}
		return webhooks.Send(ctx, url, payload)
	}
}

func configString(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}

func configInt(cfg map[string]any, key string) int64 {
	return contextInt(cfg, key)
}

func contextInt(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
