package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientflow/internal/ctxkeys"
	"clientflow/internal/events"
	"clientflow/internal/services"
	"clientflow/internal/storage"
	"clientflow/internal/workflow/condition"
	"clientflow/internal/workflow/config"
)

type stubStore struct {
	mu sync.Mutex

	events      []*events.Event
	triggers    []*storage.Trigger
	triggersErr error
	logs        []*storage.TriggerExecutionLog
}

func (s *stubStore) InsertEvent(ctx context.Context, evt *events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *stubStore) ListActiveTriggers(ctx context.Context, eventType string) ([]*storage.Trigger, error) {
	if s.triggersErr != nil {
		return nil, s.triggersErr
	}
	return s.triggers, nil
}

func (s *stubStore) InsertTriggerLog(ctx context.Context, log *storage.TriggerExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

type stubAudit struct {
	entries []services.AuditEntry
}

func (a *stubAudit) Log(ctx context.Context, entry services.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, store *stubStore, audit services.AuditLogger) *Engine {
	t.Helper()
	eng, err := NewEngine(store, audit, nil, config.Config{MaxChainDepth: 4}, testLogger())
	require.NoError(t, err)
	return eng
}

func mustParse(t *testing.T, raw map[string]any) condition.Expr {
	t.Helper()
	expr, err := condition.ParseExpr(raw)
	require.NoError(t, err)
	return expr
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	eng := newTestEngine(t, store, nil)

	eng.Emit(context.Background(), events.InvoicePayload{
		Event:     events.InvoicePaid,
		InvoiceID: 3,
		ClientID:  7,
		Amount:    150,
	}, WithTriggeredBy("billing@acme.test"))

	require.Len(t, store.events, 1)
	evt := store.events[0]
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, events.InvoicePaid, evt.Type)
	assert.Equal(t, "billing@acme.test", evt.TriggeredBy)
	assert.Equal(t, int64(3), evt.Context["invoice_id"])
	assert.Empty(t, evt.CausationID)
	assert.Zero(t, evt.ChainDepth)
}

func TestEmitListenerIsolation(t *testing.T) {
	store := &stubStore{}
	eng := newTestEngine(t, store, nil)

	var calls []string
	eng.On(events.InvoicePaid, func(ctx context.Context, evt events.Event, payload events.Payload) error {
		calls = append(calls, "panics")
		panic("boom")
	})
	eng.On(events.InvoicePaid, func(ctx context.Context, evt events.Event, payload events.Payload) error {
		calls = append(calls, "errors")
		return errors.New("listener failed")
	})
	eng.On(events.InvoicePaid, func(ctx context.Context, evt events.Event, payload events.Payload) error {
		calls = append(calls, "ok")
		p, ok := payload.(events.InvoicePayload)
		require.True(t, ok)
		assert.Equal(t, int64(3), p.InvoiceID)
		return nil
	})

	eng.Emit(context.Background(), events.InvoicePayload{Event: events.InvoicePaid, InvoiceID: 3})

	assert.Equal(t, []string{"panics", "errors", "ok"}, calls,
		"a failing listener must not prevent its siblings from running")
}

func TestEmitChainDepthCap(t *testing.T) {
	store := &stubStore{}
	eng := newTestEngine(t, store, nil)

	var emitted int
	eng.On(events.InvoiceCreated, func(ctx context.Context, evt events.Event, payload events.Payload) error {
		emitted++
		// Re-emitting the same kind forever; the cap must break the loop.
		eng.Emit(ctx, payload)
		return nil
	})

	eng.Emit(context.Background(), events.InvoicePayload{Event: events.InvoiceCreated, InvoiceID: 1})

	assert.Equal(t, 4, emitted, "listener runs once per allowed depth")
	assert.Len(t, store.events, 4)
}

func TestEmitCausationChain(t *testing.T) {
	store := &stubStore{}
	eng := newTestEngine(t, store, nil)

	eng.On(events.ContractSigned, func(ctx context.Context, evt events.Event, payload events.Payload) error {
		eng.Emit(ctx, events.ProjectStatusChangedPayload{ProjectID: 1, OldStatus: "pending", NewStatus: "active"})
		return nil
	})

	eng.Emit(context.Background(), events.ContractSignedPayload{ContractID: 5, ProjectID: 1})

	require.Len(t, store.events, 2)
	parent, child := store.events[0], store.events[1]
	assert.Equal(t, events.ContractSigned, parent.Type)
	assert.Equal(t, events.ProjectStatusChanged, child.Type)
	assert.Equal(t, parent.ID, child.CausationID)
	assert.Equal(t, 1, child.ChainDepth)
}

func TestExecuteTriggers(t *testing.T) {
	store := &stubStore{
		triggers: []*storage.Trigger{
			{
				ID: 1, Name: "big invoice", ActionType: storage.ActionNotify, Priority: 10,
				IsActive: true,
				Parsed:   mustParse(t, map[string]any{"amount_gt": 1000}),
			},
			{
				ID: 2, Name: "wrong status", ActionType: storage.ActionNotify,
				IsActive: true,
				Parsed:   mustParse(t, map[string]any{"status": "draft"}),
			},
			{
				ID: 3, Name: "cel gated", ActionType: storage.ActionNotify,
				IsActive:      true,
				ConditionExpr: "event.client_id == 7",
			},
			{
				ID: 6, Name: "ast matches but cel blocks", ActionType: storage.ActionNotify,
				IsActive:      true,
				ConditionExpr: "event.amount > 10000.0",
				Parsed:        mustParse(t, map[string]any{"status": "sent"}),
			},
			{
				ID: 4, Name: "unknown action", ActionType: "teleport",
				IsActive: true,
			},
			{
				ID: 5, Name: "action fails", ActionType: storage.ActionSendEmail,
				IsActive: true,
			},
			{
				ID: 7, Name: "deactivated", ActionType: storage.ActionNotify,
				IsActive: false,
			},
		},
	}
	eng := newTestEngine(t, store, nil)

	var fired []int64
	eng.RegisterAction(storage.ActionNotify, func(ctx context.Context, tr *storage.Trigger, evt events.Event) error {
		fired = append(fired, tr.ID)
		return nil
	})
	eng.RegisterAction(storage.ActionSendEmail, func(ctx context.Context, tr *storage.Trigger, evt events.Event) error {
		return errors.New("smtp down")
	})

	eng.Emit(context.Background(), events.InvoicePayload{
		Event:     events.InvoiceCreated,
		InvoiceID: 9,
		ClientID:  7,
		Amount:    2500,
		Status:    "sent",
	})

	assert.Equal(t, []int64{1, 3}, fired, "only matching triggers with a registered action fire")

	statusByTrigger := map[int64]string{}
	errByTrigger := map[int64]string{}
	for _, l := range store.logs {
		statusByTrigger[l.TriggerID] = l.Status
		errByTrigger[l.TriggerID] = l.Error
	}
	assert.Equal(t, storage.ExecutionSuccess, statusByTrigger[1])
	assert.NotContains(t, statusByTrigger, int64(2), "non-matching trigger leaves no log row")
	assert.Equal(t, storage.ExecutionSuccess, statusByTrigger[3])
	assert.Equal(t, storage.ExecutionFailed, statusByTrigger[4])
	assert.Contains(t, errByTrigger[4], "unknown action type")
	assert.Equal(t, storage.ExecutionFailed, statusByTrigger[5])
	assert.Contains(t, errByTrigger[5], "smtp down")
	assert.NotContains(t, statusByTrigger, int64(6),
		"a false expression blocks the trigger even when its conditions match")
	assert.NotContains(t, statusByTrigger, int64(7), "inactive triggers never fire")
}

func TestExecuteTriggersPriorityOrder(t *testing.T) {
	store := &stubStore{
		triggers: []*storage.Trigger{
			{ID: 1, Name: "low", ActionType: storage.ActionNotify, Priority: 1, IsActive: true},
			{ID: 2, Name: "high", ActionType: storage.ActionNotify, Priority: 100, IsActive: true},
			{ID: 3, Name: "low tie", ActionType: storage.ActionNotify, Priority: 1, IsActive: true},
		},
	}
	eng := newTestEngine(t, store, nil)

	var fired []int64
	eng.RegisterAction(storage.ActionNotify, func(ctx context.Context, tr *storage.Trigger, evt events.Event) error {
		fired = append(fired, tr.ID)
		return nil
	})

	eng.Emit(context.Background(), events.InvoicePayload{Event: events.InvoiceCreated})

	assert.Equal(t, []int64{2, 1, 3}, fired,
		"triggers run by priority descending, id ascending on ties, whatever order the store returns")
}

func TestExecuteTriggersBadExpression(t *testing.T) {
	store := &stubStore{
		triggers: []*storage.Trigger{
			{ID: 1, ActionType: storage.ActionNotify, IsActive: true, ConditionExpr: "event.amount >"},
			{ID: 2, ActionType: storage.ActionNotify, IsActive: true},
		},
	}
	eng := newTestEngine(t, store, nil)

	var fired []int64
	eng.RegisterAction(storage.ActionNotify, func(ctx context.Context, tr *storage.Trigger, evt events.Event) error {
		fired = append(fired, tr.ID)
		return nil
	})

	eng.Emit(context.Background(), events.InvoicePayload{Event: events.InvoiceCreated, Amount: 1})

	assert.Equal(t, []int64{2}, fired, "a broken expression skips its trigger, not the batch")
}

func TestEmitAudit(t *testing.T) {
	t.Run("regular event carries new value", func(t *testing.T) {
		audit := &stubAudit{}
		eng := newTestEngine(t, &stubStore{}, audit)

		eng.Emit(context.Background(), events.InvoicePayload{Event: events.InvoicePaid, InvoiceID: 42, Amount: 10},
			WithTriggeredBy("ops@acme.test"))

		require.Len(t, audit.entries, 1)
		entry := audit.entries[0]
		assert.Equal(t, "invoice.paid", entry.Action)
		assert.Equal(t, "invoice", entry.EntityType)
		assert.Equal(t, int64(42), entry.EntityID)
		assert.Equal(t, "ops@acme.test", entry.Actor)
		assert.NotNil(t, entry.NewValue)
	})

	t.Run("document request resolves its entity id", func(t *testing.T) {
		audit := &stubAudit{}
		eng := newTestEngine(t, &stubStore{}, audit)

		eng.Emit(context.Background(), events.DocumentRequestApprovedPayload{
			RequestID: 5, ProjectID: 2, ClientID: 7, Title: "passport scan",
		})

		require.Len(t, audit.entries, 1)
		entry := audit.entries[0]
		assert.Equal(t, "document_request", entry.EntityType)
		assert.Equal(t, int64(5), entry.EntityID)
	})

	t.Run("deletion event carries no new value", func(t *testing.T) {
		audit := &stubAudit{}
		eng := newTestEngine(t, &stubStore{}, audit)

		eng.Emit(context.Background(), events.DeliverablePayload{Event: events.DeliverableDeleted, DeliverableID: 8})

		require.Len(t, audit.entries, 1)
		assert.Nil(t, audit.entries[0].NewValue)
	})
}

func TestEmitDropsBeyondDepthCap(t *testing.T) {
	store := &stubStore{}
	eng := newTestEngine(t, store, nil)

	ctx := context.WithValue(context.Background(), ctxkeys.KeyChainDepth, 4)
	eng.Emit(ctx, events.InvoicePayload{Event: events.InvoiceCreated})

	assert.Empty(t, store.events, "emits at the cap are dropped before persistence")
}
