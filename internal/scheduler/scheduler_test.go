package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientflow/internal/scheduler/config"
	"clientflow/internal/services"
)

func minimalConfig() config.Config {
	var cfg config.Config
	cfg.Enabled = true
	return cfg
}

func TestRegisterJobs(t *testing.T) {
	t.Run("invoice jobs need the invoice service", func(t *testing.T) {
		cfg := config.DefaultConfig()
		s := New(cfg, Deps{}, testLogger())

		names := s.Status().Jobs
		assert.NotContains(t, names, "overdue_check")
		assert.NotContains(t, names, "invoice_reminders")
		assert.NotContains(t, names, "invoice_generation")
		assert.NotContains(t, names, "priority_escalation")
		assert.Contains(t, names, "contract_reminders")
		assert.Contains(t, names, "welcome_emails")
	})

	t.Run("disabled jobs are not registered", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.ContractReminders.Enabled = false
		s := New(cfg, Deps{}, testLogger())
		assert.NotContains(t, s.Status().Jobs, "contract_reminders")
	})

	t.Run("full dependency set registers everything", func(t *testing.T) {
		s := New(config.DefaultConfig(), Deps{
			Invoices:   &fakeInvoices{},
			Escalation: stubEscalation{},
		}, testLogger())
		assert.Len(t, s.Status().Jobs, 8)
	})
}

type stubEscalation struct{}

func (stubEscalation) EscalateAllProjects(ctx context.Context) (services.EscalationResult, error) {
	return services.EscalationResult{}, nil
}

func TestStartStopIdempotent(t *testing.T) {
	cfg := minimalConfig()
	cfg.WelcomeEmails = config.JobConfig{Enabled: true, Interval: time.Hour}
	s := New(cfg, Deps{
		Domain:    &fakeDomain{},
		Reminders: &fakeReminders{},
		Email:     &fakeEmail{},
	}, testLogger())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx), "second start is a no-op")
	assert.True(t, s.Status().Running)

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "second stop is a no-op")
	assert.False(t, s.Status().Running)
}

func TestJobRunsImmediatelyOnStart(t *testing.T) {
	var runs atomic.Int32
	s := New(minimalConfig(), Deps{}, testLogger())
	s.jobs = []*job{{
		name:     "probe",
		interval: time.Hour,
		run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}}

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() == 1 },
		time.Second, 5*time.Millisecond, "first run fires on start, not one interval later")
	require.NoError(t, s.Stop(context.Background()))
}

func TestOverlapGuardSkipsTick(t *testing.T) {
	var runs atomic.Int32
	j := &job{
		name:     "slow",
		interval: time.Hour,
		run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}
	s := New(minimalConfig(), Deps{}, testLogger())

	j.busy.Store(true)
	s.runJob(context.Background(), j)
	assert.Zero(t, runs.Load(), "busy job skips the tick")

	j.busy.Store(false)
	s.runJob(context.Background(), j)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, j.busy.Load(), "guard is released after the run")
}

func TestStopWaitsForInflightRuns(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	s := New(minimalConfig(), Deps{}, testLogger())
	s.jobs = []*job{{
		name:     "blocking",
		interval: time.Hour,
		run: func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		},
	}}

	require.NoError(t, s.Start(context.Background()))
	<-entered

	stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, s.Stop(stopCtx), "stop times out while a run is in flight")

	close(release)
	require.NoError(t, s.Stop(context.Background()))
}
