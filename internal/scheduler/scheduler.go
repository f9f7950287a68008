// Package scheduler runs the time-based batch jobs of the platform:
// reminder cadences, scheduled and recurring invoicing, overdue marking,
// analytics retention, and priority escalation. Every batch is also callable
// directly so operators can trigger a run on demand.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"clientflow/internal/events"
	"clientflow/internal/scheduler/config"
	"clientflow/internal/services"
	"clientflow/internal/storage"
	"clientflow/internal/workflow"
)

// EventBus is the slice of the workflow engine the scheduler emits through,
// so time-triggered actions fire the same automations as user actions.
type EventBus interface {
	Emit(ctx context.Context, payload events.Payload, opts ...workflow.EmitOption)
}

// Scheduler owns the named periodic jobs. Start and Stop are idempotent.
type Scheduler struct {
	cfg        config.Config
	bus        EventBus
	invoices   services.InvoiceService
	email      services.EmailService
	escalation services.EscalationService
	softDelete services.SoftDeleteService
	domain     storage.DomainStore
	reminders  storage.ReminderStore
	analytics  storage.AnalyticsStore
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	jobs    []*job
}

// job is one registered periodic job. busy guards against a tick overlapping
// a still-running previous invocation.
type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	busy     atomic.Bool
}

// Deps bundles the scheduler's collaborators.
type Deps struct {
	Bus        EventBus
	Invoices   services.InvoiceService
	Email      services.EmailService
	Escalation services.EscalationService
	SoftDelete services.SoftDeleteService
	Domain     storage.DomainStore
	Reminders  storage.ReminderStore
	Analytics  storage.AnalyticsStore
}

func New(cfg config.Config, deps Deps, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		cfg:        cfg,
		bus:        deps.Bus,
		invoices:   deps.Invoices,
		email:      deps.Email,
		escalation: deps.Escalation,
		softDelete: deps.SoftDelete,
		domain:     deps.Domain,
		reminders:  deps.Reminders,
		analytics:  deps.Analytics,
		logger:     logger.With("component", "scheduler"),
	}
	s.registerJobs()
	return s
}

func (s *Scheduler) registerJobs() {
	add := func(name string, jc config.JobConfig, run func(ctx context.Context) error) {
		if !jc.Enabled || jc.Interval <= 0 {
			return
		}
		s.jobs = append(s.jobs, &job{name: name, interval: jc.Interval, run: run})
	}

	if s.invoices != nil {
		add("overdue_check", s.cfg.OverdueCheck, func(ctx context.Context) error {
			_, err := s.CheckOverdueInvoices(ctx)
			return err
		})
		add("invoice_reminders", s.cfg.InvoiceReminders, func(ctx context.Context) error {
			_, err := s.ProcessReminders(ctx)
			return err
		})
		add("invoice_generation", s.cfg.InvoiceGeneration, func(ctx context.Context) error {
			_, err := s.TriggerInvoiceGeneration(ctx)
			return err
		})
	}
	add("analytics_cleanup", s.cfg.AnalyticsCleanup, func(ctx context.Context) error {
		_, err := s.CleanupAnalyticsData(ctx)
		return err
	})
	if s.escalation != nil {
		add("priority_escalation", s.cfg.PriorityEscalation, func(ctx context.Context) error {
			_, err := s.ProcessPriorityEscalation(ctx)
			return err
		})
	}
	add("contract_reminders", s.cfg.ContractReminders, func(ctx context.Context) error {
		_, err := s.ProcessContractReminders(ctx)
		return err
	})
	add("welcome_emails", s.cfg.WelcomeEmails, func(ctx context.Context) error {
		_, err := s.ProcessWelcomeEmails(ctx)
		return err
	})
	add("approval_reminders", s.cfg.ApprovalReminders, func(ctx context.Context) error {
		_, err := s.ProcessApprovalReminders(ctx)
		return err
	})
}

// Start launches every enabled job loop. Calling Start while running is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(runCtx, j)
	}

	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels all job loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status describes the scheduler's current state.
type Status struct {
	Running bool
	Jobs    []string
	Config  config.Config
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.name
	}
	return Status{
		Running: s.running,
		Jobs:    names,
		Config:  s.cfg,
	}
}

func (s *Scheduler) runLoop(ctx context.Context, j *job) {
	defer s.wg.Done()

	// First run happens on start rather than one interval later.
	s.runJob(ctx, j)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, j)
		}
	}
}

// runJob executes one invocation with the overlap guard. A job whose
// previous run is still going skips the tick instead of piling up.
func (s *Scheduler) runJob(ctx context.Context, j *job) {
	if !j.busy.CompareAndSwap(false, true) {
		s.logger.Warn("skipping tick, previous run still in progress", "job", j.name)
		return
	}
	defer j.busy.Store(false)

	if err := j.run(ctx); err != nil {
		s.logger.Error("job failed", "job", j.name, "error", err)
	}
}
