package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpr(t *testing.T) {
	t.Run("nil conditions", func(t *testing.T) {
		expr, err := ParseExpr(nil)
		require.NoError(t, err)
		assert.Nil(t, expr)
	})

	t.Run("suffix operators", func(t *testing.T) {
		expr, err := ParseExpr(map[string]any{
			"status":               "completed",
			"amount_gt":            5000,
			"amount_lt":            100,
			"projectType_contains": "website",
		})
		require.NoError(t, err)
		require.Len(t, expr, 4)

		ops := map[string]Op{}
		for _, c := range expr {
			ops[c.Field+"/"+c.Op.String()] = c.Op
		}
		assert.Contains(t, ops, "status/eq")
		assert.Contains(t, ops, "amount/gt")
		assert.Contains(t, ops, "amount/lt")
		assert.Contains(t, ops, "projectType/contains")
	})

	t.Run("non-numeric comparison value", func(t *testing.T) {
		_, err := ParseExpr(map[string]any{"amount_gt": "a lot"})
		assert.Error(t, err)
	})

	t.Run("bare suffix is an equality field", func(t *testing.T) {
		// "_gt" with no base field name is treated as a literal key.
		expr, err := ParseExpr(map[string]any{"_gt": 1})
		require.NoError(t, err)
		require.Len(t, expr, 1)
		assert.Equal(t, OpEq, expr[0].Op)
		assert.Equal(t, "_gt", expr[0].Field)
	})
}

func TestExprMatches(t *testing.T) {
	tests := []struct {
		name       string
		conditions map[string]any
		category   string
		context    map[string]any
		want       bool
	}{
		{
			name:       "nil conditions always match",
			conditions: nil,
			context:    map[string]any{"anything": 1},
			want:       true,
		},
		{
			name:       "equality match",
			conditions: map[string]any{"status": "completed"},
			context:    map[string]any{"status": "completed"},
			want:       true,
		},
		{
			name:       "equality mismatch",
			conditions: map[string]any{"status": "completed"},
			context:    map[string]any{"status": "pending"},
			want:       false,
		},
		{
			name:       "numeric equality across types",
			conditions: map[string]any{"client_id": float64(7)},
			context:    map[string]any{"client_id": 7},
			want:       true,
		},
		{
			name:       "greater than passes",
			conditions: map[string]any{"amount_gt": 5000},
			context:    map[string]any{"amount": 7500.0},
			want:       true,
		},
		{
			name:       "greater than boundary fails",
			conditions: map[string]any{"amount_gt": 5000},
			context:    map[string]any{"amount": 5000},
			want:       false,
		},
		{
			name:       "less than passes",
			conditions: map[string]any{"amount_lt": 100},
			context:    map[string]any{"amount": 99.5},
			want:       true,
		},
		{
			name:       "contains passes",
			conditions: map[string]any{"projectType_contains": "website"},
			context:    map[string]any{"projectType": "website redesign"},
			want:       true,
		},
		{
			name:       "contains is case sensitive",
			conditions: map[string]any{"projectType_contains": "Website"},
			context:    map[string]any{"projectType": "website redesign"},
			want:       false,
		},
		{
			name:       "missing field fails rather than errors",
			conditions: map[string]any{"status": "completed"},
			context:    map[string]any{"amount": 5},
			want:       false,
		},
		{
			name:       "all conditions must pass",
			conditions: map[string]any{"status": "completed", "amount_gt": 100},
			context:    map[string]any{"status": "completed", "amount": 50},
			want:       false,
		},
		{
			name:       "nested category object preferred",
			conditions: map[string]any{"amount_gt": 100},
			category:   "invoice",
			context: map[string]any{
				"amount":  1,
				"invoice": map[string]any{"amount": 500},
			},
			want: true,
		},
		{
			name:       "falls back to flat context",
			conditions: map[string]any{"status": "paid"},
			category:   "invoice",
			context:    map[string]any{"status": "paid"},
			want:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseExpr(tt.conditions)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.Matches(tt.category, tt.context))
		})
	}
}
