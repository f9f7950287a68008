// Package workflow implements the in-process event bus: event persistence,
// listener fan-out, and declarative trigger execution.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clientflow/internal/ctxkeys"
	"clientflow/internal/events"
	"clientflow/internal/services"
	"clientflow/internal/storage"
	"clientflow/internal/workflow/condition"
	"clientflow/internal/workflow/config"
)

// Listener is an in-process handler subscribed to an event kind. The typed
// payload is passed alongside the persisted event so handlers can type-assert
// instead of digging through the context map.
type Listener func(ctx context.Context, evt events.Event, payload events.Payload) error

// Action executes one declarative trigger action against an event.
type Action func(ctx context.Context, t *storage.Trigger, evt events.Event) error

// Engine is the workflow event bus. Emit never surfaces business failures to
// the caller: listener errors, trigger action errors and log-write errors are
// caught, logged and isolated per unit.
type Engine struct {
	store   storage.WorkflowStore
	audit   services.AuditLogger
	users   *services.UserCache
	cel     *condition.CELEvaluator
	actions map[string]Action
	cfg     config.Config
	logger  *slog.Logger

	mu        sync.RWMutex
	listeners map[events.Kind][]Listener
}

// NewEngine creates the bus. audit and users may be nil; cel is created
// internally and actions start empty until RegisterAction is called.
func NewEngine(store storage.WorkflowStore, audit services.AuditLogger, users *services.UserCache, cfg config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg.MaxChainDepth <= 0 {
		cfg = config.DefaultConfig()
	}

	cel, err := condition.NewCELEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	return &Engine{
		store:     store,
		audit:     audit,
		users:     users,
		cel:       cel,
		actions:   make(map[string]Action),
		cfg:       cfg,
		logger:    logger.With("component", "workflow-engine"),
		listeners: make(map[events.Kind][]Listener),
	}, nil
}

// On registers a listener for an event kind. Multiple listeners per kind are
// supported; all run on every emission in registration order.
func (e *Engine) On(kind events.Kind, l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[kind] = append(e.listeners[kind], l)
}

// RegisterAction binds an action type to its executor.
func (e *Engine) RegisterAction(actionType string, fn Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions[actionType] = fn
}

// EmitOption customizes a single emission.
type EmitOption func(*events.Event)

// WithTriggeredBy records who or what caused the emission.
func WithTriggeredBy(who string) EmitOption {
	return func(evt *events.Event) {
		evt.TriggeredBy = who
	}
}

// Emit publishes a domain event: persists the event row, writes an audit
// entry, runs every registered listener, then evaluates and executes the
// matching declarative triggers. Failures along the way degrade to "skip and
// log"; nothing propagates to the caller.
//
// Listeners receive a context carrying the event's id as causation, so
// re-emits from inside a listener form a tracked chain. Chains deeper than
// the configured cap are dropped.
func (e *Engine) Emit(ctx context.Context, payload events.Payload, opts ...EmitOption) {
	depth, _ := ctx.Value(ctxkeys.KeyChainDepth).(int)
	if depth >= e.cfg.MaxChainDepth {
		e.logger.Error("event chain depth cap reached, dropping emit",
			"event_type", payload.Kind(), "depth", depth)
		return
	}
	causationID, _ := ctx.Value(ctxkeys.KeyCausationID).(string)

	evt := events.Event{
		ID:          uuid.NewString(),
		Type:        payload.Kind(),
		Timestamp:   time.Now(),
		Context:     payload.Context(),
		CausationID: causationID,
		ChainDepth:  depth,
	}
	for _, opt := range opts {
		opt(&evt)
	}

	logger := e.logger.With("event_type", evt.Type, "event_id", evt.ID)

	if err := e.store.InsertEvent(ctx, &evt); err != nil {
		logger.Error("failed to persist event", "error", err)
	}

	e.writeAudit(ctx, evt, logger)

	e.mu.RLock()
	listeners := e.listeners[evt.Type]
	e.mu.RUnlock()

	listenerCtx := context.WithValue(ctx, ctxkeys.KeyCausationID, evt.ID)
	listenerCtx = context.WithValue(listenerCtx, ctxkeys.KeyChainDepth, depth+1)
	for i, l := range listeners {
		e.runListener(listenerCtx, l, evt, payload, i, logger)
	}

	e.executeTriggers(ctx, evt, logger)
}

// runListener invokes one listener with full failure isolation, including
// panic recovery, so a failing listener never prevents its siblings.
func (e *Engine) runListener(ctx context.Context, l Listener, evt events.Event, payload events.Payload, idx int, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("listener panicked", "listener", idx, "panic", r)
		}
	}()
	if err := l(ctx, evt, payload); err != nil {
		logger.Error("listener failed", "listener", idx, "error", err)
	}
}

// executeTriggers loads active triggers for the event type, evaluates each
// one and executes the matches, writing one execution-log row per firing.
func (e *Engine) executeTriggers(ctx context.Context, evt events.Event, logger *slog.Logger) {
	triggers, err := e.store.ListActiveTriggers(ctx, string(evt.Type))
	if err != nil {
		logger.Error("failed to load triggers", "error", err)
		return
	}

	// Higher-priority triggers run first regardless of store ordering.
	sort.SliceStable(triggers, func(i, j int) bool {
		if triggers[i].Priority != triggers[j].Priority {
			return triggers[i].Priority > triggers[j].Priority
		}
		return triggers[i].ID < triggers[j].ID
	})

	category := evt.Type.Category()
	for _, t := range triggers {
		if !t.IsActive {
			continue
		}
		if !t.Parsed.Matches(category, evt.Context) {
			continue
		}
		if t.ConditionExpr != "" {
			match, err := e.cel.Evaluate(t.ConditionExpr, evt.Context)
			if err != nil {
				logger.Warn("trigger condition expression failed",
					"trigger_id", t.ID, "error", err)
				continue
			}
			if !match {
				continue
			}
		}

		execErr := e.executeAction(ctx, t, evt)

		log := &storage.TriggerExecutionLog{
			ID:         uuid.NewString(),
			TriggerID:  t.ID,
			EventID:    evt.ID,
			Status:     storage.ExecutionSuccess,
			ExecutedAt: time.Now(),
		}
		if execErr != nil {
			log.Status = storage.ExecutionFailed
			log.Error = execErr.Error()
			logger.Error("trigger action failed",
				"trigger_id", t.ID, "action", t.ActionType, "error", execErr)
		}
		if err := e.store.InsertTriggerLog(ctx, log); err != nil {
			logger.Error("failed to write trigger log", "trigger_id", t.ID, "error", err)
		}
	}
}

func (e *Engine) executeAction(ctx context.Context, t *storage.Trigger, evt events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	e.mu.RLock()
	fn, ok := e.actions[t.ActionType]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown action type %q", t.ActionType)
	}
	return fn(ctx, t, evt)
}

// writeAudit appends one audit-trail entry for the event. Deletion events
// carry no new value.
func (e *Engine) writeAudit(ctx context.Context, evt events.Event, logger *slog.Logger) {
	if e.audit == nil {
		return
	}

	entry := services.AuditEntry{
		Action:     string(evt.Type),
		EntityType: evt.Type.Category(),
		EntityID:   evt.Context[evt.Type.Category()+"_id"],
		Actor:      evt.TriggeredBy,
		At:         evt.Timestamp,
	}
	if !evt.Type.IsDeletion() {
		entry.NewValue = evt.Context
	}
	if e.users != nil && evt.TriggeredBy != "" {
		if id, err := e.users.GetUserIDByEmail(ctx, evt.TriggeredBy); err == nil {
			entry.ActorUserID = id
		}
	}

	if err := e.audit.Log(ctx, entry); err != nil {
		logger.Error("failed to write audit entry", "error", err)
	}
}
