package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCELEvaluator_Evaluate(t *testing.T) {
	eval, err := NewCELEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name       string
		expression string
		eventCtx   map[string]any
		want       bool
		wantErr    bool
	}{
		{
			name:       "empty expression matches",
			expression: "",
			eventCtx:   map[string]any{"amount": 1},
			want:       true,
		},
		{
			name:       "numeric comparison true",
			expression: "event.amount > 5000.0",
			eventCtx:   map[string]any{"amount": 7500.0},
			want:       true,
		},
		{
			name:       "numeric comparison false",
			expression: "event.amount > 5000.0",
			eventCtx:   map[string]any{"amount": 100.0},
			want:       false,
		},
		{
			name:       "string and boolean logic",
			expression: `event.status == "active" && event.client_id == 7`,
			eventCtx:   map[string]any{"status": "active", "client_id": 7},
			want:       true,
		},
		{
			name:       "non-boolean result",
			expression: "event.amount",
			eventCtx:   map[string]any{"amount": 5},
			wantErr:    true,
		},
		{
			name:       "compile error",
			expression: "event.amount >",
			eventCtx:   map[string]any{"amount": 5},
			wantErr:    true,
		},
		{
			name:       "missing field errors",
			expression: "event.nope > 1",
			eventCtx:   map[string]any{"amount": 5},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(tt.expression, tt.eventCtx)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCELEvaluator_ProgramCache(t *testing.T) {
	eval, err := NewCELEvaluator()
	require.NoError(t, err)

	const expr = "event.amount > 1.0"
	_, err = eval.Evaluate(expr, map[string]any{"amount": 2.0})
	require.NoError(t, err)

	eval.cacheMutex.RLock()
	first, cached := eval.prgCache[expr]
	eval.cacheMutex.RUnlock()
	require.True(t, cached)

	_, err = eval.Evaluate(expr, map[string]any{"amount": 0.5})
	require.NoError(t, err)

	eval.cacheMutex.RLock()
	second := eval.prgCache[expr]
	order := len(eval.cacheOrder)
	eval.cacheMutex.RUnlock()

	assert.Equal(t, 1, order)
	assert.True(t, first == second, "second evaluation should reuse the compiled program")
}
