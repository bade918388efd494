// Package orchestrator drives the multi-turn conversation loop: one
// streaming model call per turn, inline tool detection and execution,
// and finalization of the assistant message.
package orchestrator

// Accumulator folds an ordered sequence of content and reasoning
// deltas into growing strings. It is a value type with total
// transition functions: every method returns the next state, so a
// dropped field shows up as a compile-visible gap instead of a silent
// bug. One accumulator lives for exactly one streaming turn.
type Accumulator struct {
	content      string
	reasoning    string
	hasReasoning bool
	messageID    string
	completed    bool
}

// NewAccumulator returns the empty starting state for a turn.
func NewAccumulator() Accumulator {
	return Accumulator{}
}

// AppendContent folds one content delta.
func (a Accumulator) AppendContent(delta string) Accumulator {
	a.content += delta
	return a
}

// AppendReasoning folds one reasoning delta.
func (a Accumulator) AppendReasoning(delta string) Accumulator {
	a.reasoning += delta
	a.hasReasoning = true
	return a
}

// Bind records the message this accumulator's output belongs to. The
// binding happens lazily, on the first byte of a turn.
func (a Accumulator) Bind(messageID string) Accumulator {
	a.messageID = messageID
	return a
}

// Complete marks the stream as finished.
func (a Accumulator) Complete() Accumulator {
	a.completed = true
	return a
}

// Content returns the accumulated content so far.
func (a Accumulator) Content() string { return a.content }

// Reasoning returns the accumulated reasoning so far and whether any
// reasoning delta arrived.
func (a Accumulator) Reasoning() (string, bool) { return a.reasoning, a.hasReasoning }

// MessageID returns the bound message ID, empty until first content.
func (a Accumulator) MessageID() string { return a.messageID }

// Final is the read-only finalized view of a turn's accumulation.
type Final struct {
	Content   string
	Reasoning *string
	IsEmpty   bool
}

// Finalize exposes the accumulated state as a finalized view.
// Reasoning is nil when no reasoning delta ever arrived, so a turn
// without deliberation is distinguishable from an empty deliberation.
func (a Accumulator) Finalize() Final {
	f := Final{
		Content: a.content,
		IsEmpty: a.content == "" && !a.hasReasoning,
	}
	if a.hasReasoning {
		r := a.reasoning
		f.Reasoning = &r
	}
	return f
}
