package tool

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stridefit-ai/coaching-engine/internal/model"
	"github.com/stridefit-ai/coaching-engine/pkg/logger"
	"github.com/stridefit-ai/coaching-engine/pkg/metrics"
)

// Executor dispatches parsed tool calls to registered handlers. It
// fails closed: an unknown tool, a missing required parameter, or a
// handler error all produce a failed ToolCallResult whose text is
// actionable feedback for the model. No error ever escapes here.
type Executor struct {
	registry *Registry
	logger   *logger.Logger
}

// NewExecutor creates an executor over a registry.
func NewExecutor(registry *Registry, log *logger.Logger) *Executor {
	return &Executor{registry: registry, logger: log}
}

// ExecuteAll runs calls sequentially in the order given. Later calls
// may depend on side effects of earlier ones, so execution never fans
// out. One call failing does not abort the rest; all results are
// collected and returned together.
func (e *Executor) ExecuteAll(ctx context.Context, calls []model.ToolCall) []model.ToolCallResult {
	results := make([]model.ToolCallResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, e.Execute(ctx, call))
	}
	return results
}

// Execute runs a single call. Each parsed call is dispatched to its
// handler at most once.
func (e *Executor) Execute(ctx context.Context, call model.ToolCall) model.ToolCallResult {
	def, ok := e.registry.Get(call.Name)
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues(call.Name, "unknown").Inc()
		return model.ToolCallResult{
			Tool:    call.Name,
			Success: false,
			Result: fmt.Sprintf("unknown tool %q; available tools: %s",
				call.Name, strings.Join(e.registry.Names(), ", ")),
		}
	}

	for _, key := range def.Required {
		if _, present := call.Params[key]; !present {
			metrics.ToolCallsTotal.WithLabelValues(call.Name, "missing_param").Inc()
			return model.ToolCallResult{
				Tool:    call.Name,
				Success: false,
				Result: fmt.Sprintf("missing required parameter %q for tool %q; required parameters: %s",
					key, call.Name, strings.Join(def.Required, ", ")),
			}
		}
	}

	result, err := def.Handler(ctx, call.Params)
	if err != nil {
		e.logger.Warn("tool execution failed",
			zap.String("tool", call.Name),
			zap.Error(err),
		)
		metrics.ToolCallsTotal.WithLabelValues(call.Name, "error").Inc()
		return model.ToolCallResult{
			Tool:    call.Name,
			Success: false,
			Result:  fmt.Sprintf("tool %q failed: %v", call.Name, err),
		}
	}

	metrics.ToolCallsTotal.WithLabelValues(call.Name, "success").Inc()
	return model.ToolCallResult{
		Tool:    call.Name,
		Success: true,
		Result:  result,
	}
}

// FormatResults renders all results from one turn into the content of
// a single synthetic system message, preserving per-call success and
// failure framing so the next model turn can see exactly which calls
// succeeded.
func FormatResults(results []model.ToolCallResult) string {
	var b strings.Builder
	b.WriteString("Tool results:\n")
	for _, r := range results {
		status := "OK"
		if !r.Success {
			status = "ERROR"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", r.Tool, status, r.Result)
	}
	return strings.TrimRight(b.String(), "\n")
}
