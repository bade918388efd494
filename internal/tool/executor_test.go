package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridefit-ai/coaching-engine/internal/model"
	"github.com/stridefit-ai/coaching-engine/pkg/logger"
)

func newTestExecutor(t *testing.T, defs ...Definition) *Executor {
	t.Helper()
	reg := NewRegistry()
	for _, def := range defs {
		require.NoError(t, reg.Register(def))
	}
	return NewExecutor(reg, logger.NewNop())
}

func TestRegistry_RejectsDuplicatesAndNilHandlers(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	ok := Definition{Name: "a", Handler: func(context.Context, map[string]string) (string, error) { return "", nil }}

	require.NoError(t, reg.Register(ok))
	assert.Error(t, reg.Register(ok))
	assert.Error(t, reg.Register(Definition{Name: "b"}))
	assert.Error(t, reg.Register(Definition{Handler: ok.Handler}))
}

func TestExecuteAll_SequentialOrder(t *testing.T) {
	t.Parallel()

	var order []string
	record := func(name string) HandlerFunc {
		return func(ctx context.Context, params map[string]string) (string, error) {
			order = append(order, name)
			return "done", nil
		}
	}

	ex := newTestExecutor(t,
		Definition{Name: "first", Handler: record("first")},
		Definition{Name: "second", Handler: record("second")},
	)

	results := ex.ExecuteAll(context.Background(), []model.ToolCall{
		{Name: "first"},
		{Name: "second"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestExecute_UnknownTool(t *testing.T) {
	t.Parallel()

	ex := newTestExecutor(t, Definition{
		Name:    "log_set",
		Handler: func(context.Context, map[string]string) (string, error) { return "", nil },
	})

	res := ex.Execute(context.Background(), model.ToolCall{Name: "log_sets"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Result, `"log_sets"`)
	assert.Contains(t, res.Result, "log_set")
}

func TestExecute_MissingRequiredParam(t *testing.T) {
	t.Parallel()

	called := false
	ex := newTestExecutor(t, Definition{
		Name:     "log_set",
		Required: []string{"exercise", "reps"},
		Handler: func(context.Context, map[string]string) (string, error) {
			called = true
			return "", nil
		},
	})

	res := ex.Execute(context.Background(), model.ToolCall{
		Name:   "log_set",
		Params: map[string]string{"exercise": "Bench Press"},
	})

	assert.False(t, res.Success)
	assert.Contains(t, res.Result, `"reps"`)
	assert.False(t, called, "handler must not run with missing params")
}

func TestExecuteAll_FailureDoesNotAbortRemaining(t *testing.T) {
	t.Parallel()

	var ran []string
	ex := newTestExecutor(t,
		Definition{Name: "broken", Handler: func(context.Context, map[string]string) (string, error) {
			ran = append(ran, "broken")
			return "", errors.New("storage unavailable")
		}},
		Definition{Name: "fine", Handler: func(context.Context, map[string]string) (string, error) {
			ran = append(ran, "fine")
			return "ok", nil
		}},
	)

	results := ex.ExecuteAll(context.Background(), []model.ToolCall{
		{Name: "broken"},
		{Name: "fine"},
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Result, "storage unavailable")
	assert.True(t, results[1].Success)
	assert.Equal(t, []string{"broken", "fine"}, ran)
}

func TestFormatResults(t *testing.T) {
	t.Parallel()

	out := FormatResults([]model.ToolCallResult{
		{Tool: "log_set", Success: true, Result: "Logged 8 reps of Bench Press"},
		{Tool: "get_recent_workouts", Success: false, Result: "storage unavailable"},
	})

	assert.Contains(t, out, "Tool results:")
	assert.Contains(t, out, "[log_set] OK: Logged 8 reps of Bench Press")
	assert.Contains(t, out, "[get_recent_workouts] ERROR: storage unavailable")
}
