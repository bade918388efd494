package model

// ToolCall is a structured invocation parsed from model output.
// Parameter values are always strings; numeric or enum interpretation
// is each tool handler's responsibility.
type ToolCall struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

// ToolCallResult is the outcome of executing one tool call. When
// Success is false, Result carries human-readable, actionable error
// text; that text is the model's only feedback for self-correction on
// the next turn.
type ToolCallResult struct {
	Tool    string `json:"tool"`
	Result  string `json:"result"`
	Success bool   `json:"success"`
}
