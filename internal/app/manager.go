// Package app wires the workflow core together: storage, the event bus, the
// automation handlers and the scheduler, with ordered startup and shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"clientflow/internal/automation"
	"clientflow/internal/config"
	"clientflow/internal/scheduler"
	"clientflow/internal/services"
	mongostore "clientflow/internal/storage/mongo"
	"clientflow/internal/workflow"
)

// Collaborators are the external subsystems the core calls. All are treated
// as fallible opaque services.
type Collaborators struct {
	Invoices   services.InvoiceService
	Email      services.EmailService
	Audit      services.AuditLogger
	Users      services.UserService
	SoftDelete services.SoftDeleteService
	Escalation services.EscalationService
	Tasks      services.TaskService
	Webhooks   services.WebhookSender
	Notifier   services.Notifier
}

// Manager owns the wired application components and their lifetimes.
type Manager struct {
	cfg         *config.Config
	store       *mongostore.Store
	engine      *workflow.Engine
	automations *automation.Automations
	scheduler   *scheduler.Scheduler
	logger      *slog.Logger
}

// NewManager connects storage and builds the engine, automations and
// scheduler. Nothing starts running until Start.
func NewManager(ctx context.Context, cfg *config.Config, collab Collaborators, logger *slog.Logger) (*Manager, error) {
	store, err := mongostore.NewStore(ctx, cfg.Storage.Mongo, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	var users *services.UserCache
	if collab.Users != nil {
		users = services.NewUserCache(collab.Users)
	}

	engine, err := workflow.NewEngine(store, collab.Audit, users, cfg.Workflow, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build workflow engine: %w", err)
	}
	engine.RegisterBuiltinActions(collab.Email, collab.Notifier, collab.Tasks, collab.Webhooks)

	sched := scheduler.New(cfg.Scheduler, scheduler.Deps{
		Bus:        engine,
		Invoices:   collab.Invoices,
		Email:      collab.Email,
		Escalation: collab.Escalation,
		SoftDelete: collab.SoftDelete,
		Domain:     store,
		Reminders:  store,
		Analytics:  store,
	}, logger)

	automations := automation.New(store, collab.Invoices, collab.Email, collab.Audit, sched, logger)
	automations.Register(engine)

	return &Manager{
		cfg:         cfg,
		store:       store,
		engine:      engine,
		automations: automations,
		scheduler:   sched,
		logger:      logger.With("component", "app"),
	}, nil
}

// Engine returns the event bus for emitters elsewhere in the process.
func (m *Manager) Engine() *workflow.Engine {
	return m.engine
}

// Scheduler returns the job runner, including its manual trigger methods.
func (m *Manager) Scheduler() *scheduler.Scheduler {
	return m.scheduler
}

// Start launches the scheduler when enabled in configuration.
func (m *Manager) Start(ctx context.Context) error {
	if !m.cfg.Scheduler.Enabled {
		m.logger.Info("scheduler disabled by configuration")
		return nil
	}
	return m.scheduler.Start(ctx)
}

// Shutdown stops the scheduler and closes storage.
func (m *Manager) Shutdown(ctx context.Context) error {
	if err := m.scheduler.Stop(ctx); err != nil {
		m.logger.Error("scheduler stop failed", "error", err)
	}
	if err := m.store.Close(ctx); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}
