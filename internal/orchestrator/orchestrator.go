package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridefit-ai/coaching-engine/internal/llm"
	"github.com/stridefit-ai/coaching-engine/internal/model"
	"github.com/stridefit-ai/coaching-engine/internal/store"
	"github.com/stridefit-ai/coaching-engine/internal/tool"
	"github.com/stridefit-ai/coaching-engine/pkg/logger"
	"github.com/stridefit-ai/coaching-engine/pkg/metrics"
)

const (
	defaultMaxTurns       = 5
	defaultNotifyInterval = 50 * time.Millisecond

	// emptyTurnContent is shown instead of an empty bubble when a turn
	// yields neither content nor reasoning.
	emptyTurnContent = "I wasn't able to come up with a response just now. Please try again."

	// truncationMarker is appended when a turn is cancelled with
	// partial content already streamed.
	truncationMarker = "\n\n[response interrupted]"
)

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	Model          string
	MaxTokens      int
	Temperature    float64
	Reasoning      bool
	MaxTurns       int
	NotifyInterval time.Duration
}

// Orchestrator runs the multi-turn loop for one user request until a
// final assistant answer is ready. It streams into a message instance
// it owns and publishes snapshots of it into the history, which copies
// under its lock, so concurrent readers never observe a half-written
// message. It never retries internally; transport and server errors
// propagate up to the retry coordinator, the sole place backoff
// decisions are made.
type Orchestrator struct {
	transport llm.Client
	executor  *tool.Executor
	store     store.Store
	logger    *logger.Logger
	cfg       Config
}

// New creates an orchestrator with constructor-injected collaborators.
func New(transport llm.Client, executor *tool.Executor, st store.Store, log *logger.Logger, cfg Config) *Orchestrator {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.NotifyInterval == 0 {
		cfg.NotifyInterval = defaultNotifyInterval
	}
	return &Orchestrator{
		transport: transport,
		executor:  executor,
		store:     st,
		logger:    log,
		cfg:       cfg,
	}
}

// TurnOptions carries per-call overrides and presentation callbacks.
// OnDelta receives coalesced snapshots at the configured cadence, not
// one call per delta.
type TurnOptions struct {
	Model   string
	OnDelta func(model.DeltaEvent)
	OnTool  func(model.ToolEvent)
}

// RunTurn drives streaming turns against the history until a turn
// produces no tool calls, then returns the finalized assistant
// message. Tool calls found in a turn are executed sequentially in
// parse order and their results appended as one synthetic system
// message before the next turn.
func (o *Orchestrator) RunTurn(ctx context.Context, conversationID string, hist *model.History, systemPrompt string, opts TurnOptions) (*model.Message, error) {
	start := time.Now()
	modelName := opts.Model
	if modelName == "" {
		modelName = o.cfg.Model
	}

	log := o.logger.WithConversation(conversationID)

	for turn := 0; turn < o.cfg.MaxTurns; turn++ {
		msg, final, resp, err := o.streamTurn(ctx, conversationID, hist, systemPrompt, modelName, opts.OnDelta)
		if err != nil {
			metrics.RecordTurn(modelName, "error", time.Since(start).Seconds())
			return msg, err
		}

		if final.IsEmpty {
			msg = o.finalizeEmpty(ctx, conversationID, hist, msg)
			metrics.RecordTurn(modelName, "empty", time.Since(start).Seconds())
			return msg, nil
		}

		calls, visible, perr := tool.Detect(final.Content)
		if perr != nil {
			// Unparsable tool syntax is fatal for the turn but must not
			// corrupt history: keep what was accumulated, note the
			// failure, finalize.
			msg.Content = final.Content + "\n\n[the response contained a malformed action and could not be completed]"
			msg.Reasoning = final.Reasoning
			o.finalize(ctx, hist, msg, model.StateCompleted, resp)
			log.Warn("malformed tool call syntax", zap.Error(perr))
			metrics.RecordTurn(modelName, "protocol_error", time.Since(start).Seconds())
			return msg, perr
		}

		// The raw wire syntax is never shown to the user.
		msg.Content = visible
		msg.Reasoning = final.Reasoning
		o.finalize(ctx, hist, msg, model.StateCompleted, resp)

		if len(calls) == 0 {
			log.Info("turn complete",
				zap.Int("turns", turn+1),
				zap.Int("content_len", len(msg.Content)),
			)
			metrics.RecordTurn(modelName, "success", time.Since(start).Seconds())
			return msg, nil
		}

		// Sequential on purpose: later calls may depend on side effects
		// of earlier ones.
		results := o.executor.ExecuteAll(ctx, calls)
		if opts.OnTool != nil {
			opts.OnTool(model.ToolEvent{Results: results})
		}

		sysMsg := &model.Message{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conversationID,
			Role:           model.RoleSystem,
			Content:        tool.FormatResults(results),
			State:          model.StateCompleted,
			CreatedAt:      time.Now(),
		}
		hist.Append(sysMsg)
		o.persist(ctx, sysMsg)
		metrics.MessagesTotal.WithLabelValues(string(model.RoleSystem)).Inc()

		log.Info("tool calls executed",
			zap.Int("calls", len(calls)),
			zap.Int("turn", turn+1),
		)
	}

	metrics.RecordTurn(modelName, "turn_cap", time.Since(start).Seconds())
	return nil, &model.ProtocolError{
		Reason: fmt.Sprintf("turn cap (%d) exceeded without a final answer", o.cfg.MaxTurns),
	}
}

// streamTurn runs one streaming call, folding deltas through an
// accumulator and creating the bound message lazily on the first
// content or reasoning byte. On a mid-stream failure it falls back to
// the transport's non-streaming mode, carrying forward any reasoning
// collected before the failure.
func (o *Orchestrator) streamTurn(
	ctx context.Context,
	conversationID string,
	hist *model.History,
	systemPrompt, modelName string,
	onDelta func(model.DeltaEvent),
) (*model.Message, Final, *llm.CompletionResponse, error) {
	req := &llm.CompletionRequest{
		Model:        modelName,
		SystemPrompt: systemPrompt,
		Messages:     hist.APIView(),
		MaxTokens:    o.cfg.MaxTokens,
		Temperature:  o.cfg.Temperature,
		Reasoning:    o.cfg.Reasoning,
	}

	acc := NewAccumulator()
	var msg *model.Message

	notify := newNotifier(o.cfg.NotifyInterval, func(snapshot *model.Message) {
		hist.Update(snapshot)
		o.persist(context.WithoutCancel(ctx), snapshot)
		if onDelta != nil {
			ev := model.DeltaEvent{MessageID: snapshot.ID, Content: snapshot.Content}
			if snapshot.Reasoning != nil {
				ev.Reasoning = *snapshot.Reasoning
			}
			onDelta(ev)
		}
	})
	defer notify.close()

	// ensure creates the bound message lazily, on the first byte.
	ensure := func() *model.Message {
		if msg != nil {
			return msg
		}
		msg = &model.Message{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conversationID,
			Role:           model.RoleAssistant,
			State:          model.StateStreaming,
			CreatedAt:      time.Now(),
		}
		acc = acc.Bind(msg.ID)
		hist.Append(msg)
		o.persist(ctx, msg)
		metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
		return msg
	}

	events, err := o.transport.Stream(ctx, req)
	if err != nil {
		// Streaming setup itself failed: go straight to the
		// non-streaming mode with nothing accumulated yet.
		return o.fallback(ctx, conversationID, hist, req, acc, ensure, err)
	}

	var streamErr error
	var resp *llm.CompletionResponse

consume:
	for ev := range events {
		switch ev.Type {
		case llm.EventContentDelta:
			acc = acc.AppendContent(ev.Delta)
			metrics.DeltasTotal.WithLabelValues("content").Inc()
			m := ensure()
			m.Content = acc.Content()
			notify.publish(m.Clone())
		case llm.EventReasoningDelta:
			acc = acc.AppendReasoning(ev.Delta)
			metrics.DeltasTotal.WithLabelValues("reasoning").Inc()
			m := ensure()
			r, _ := acc.Reasoning()
			m.Reasoning = &r
			notify.publish(m.Clone())
		case llm.EventCompleted:
			acc = acc.Complete()
			resp = ev.Response
			break consume
		case llm.EventFailed:
			streamErr = ev.Err
			break consume
		}
	}

	// Flush any pending snapshot before finalizing, so a coalesced
	// streaming state never overwrites the terminal one.
	notify.close()

	if resp == nil && streamErr == nil {
		// Channel closed without a terminal event: the turn was
		// cancelled from outside.
		return o.cancelled(ctx, hist, msg, acc)
	}

	if streamErr != nil {
		return o.fallback(ctx, conversationID, hist, req, acc, ensure, streamErr)
	}

	return msg, acc.Finalize(), resp, nil
}

// fallback retries the turn through the non-streaming mode after a
// streaming failure. Reasoning already streamed before the failure is
// preserved in the result; dropping it would silently lose data.
func (o *Orchestrator) fallback(
	ctx context.Context,
	conversationID string,
	hist *model.History,
	req *llm.CompletionRequest,
	acc Accumulator,
	ensure func() *model.Message,
	cause error,
) (*model.Message, Final, *llm.CompletionResponse, error) {
	o.logger.WithConversation(conversationID).Warn("stream failed, falling back to non-streaming",
		zap.Error(cause),
	)

	resp, err := o.transport.Complete(ctx, req)
	if err != nil {
		if prior := ensureIfBound(acc, ensure); prior != nil {
			o.finalize(context.WithoutCancel(ctx), hist, prior, model.StateFailed, nil)
		}
		return nil, Final{}, nil, err
	}

	final := Final{Content: resp.Content}
	streamed, hasStreamed := acc.Reasoning()
	switch {
	case hasStreamed && resp.Reasoning != "":
		merged := streamed + resp.Reasoning
		final.Reasoning = &merged
	case hasStreamed:
		final.Reasoning = &streamed
	case resp.Reasoning != "":
		r := resp.Reasoning
		final.Reasoning = &r
	}
	final.IsEmpty = final.Content == "" && final.Reasoning == nil

	var msg *model.Message
	if !final.IsEmpty {
		msg = ensure()
	}
	return msg, final, resp, nil
}

// ensureIfBound returns the already-created message without creating a
// new one for a turn that never produced a byte.
func ensureIfBound(acc Accumulator, ensure func() *model.Message) *model.Message {
	if acc.MessageID() == "" {
		return nil
	}
	return ensure()
}

// cancelled applies the explicit cancellation policy: partial content
// is preserved as completed with a truncation marker; a turn with no
// content yet fails.
func (o *Orchestrator) cancelled(ctx context.Context, hist *model.History, msg *model.Message, acc Accumulator) (*model.Message, Final, *llm.CompletionResponse, error) {
	// Persist outside the cancelled request context.
	pctx := context.WithoutCancel(ctx)

	cause := ctx.Err()
	if cause == nil {
		cause = errors.New("stream closed without completion")
	}

	if msg == nil || acc.Content() == "" {
		if msg != nil {
			o.finalize(pctx, hist, msg, model.StateFailed, nil)
		}
		return nil, Final{}, nil, &model.TransportError{Err: cause}
	}

	msg.Content = acc.Content() + truncationMarker
	if r, ok := acc.Reasoning(); ok {
		msg.Reasoning = &r
	}
	o.finalize(pctx, hist, msg, model.StateCompleted, nil)
	return msg, Final{}, nil, &model.TransportError{Err: cause}
}

// finalizeEmpty synthesizes the deterministic placeholder for a turn
// that yielded neither content nor reasoning. The placeholder always
// has nil reasoning: no real completion occurred, so there is nothing
// to preserve.
func (o *Orchestrator) finalizeEmpty(ctx context.Context, conversationID string, hist *model.History, msg *model.Message) *model.Message {
	if msg == nil {
		msg = &model.Message{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conversationID,
			Role:           model.RoleAssistant,
			CreatedAt:      time.Now(),
		}
		hist.Append(msg)
	}
	msg.Content = emptyTurnContent
	msg.Reasoning = nil
	o.finalize(ctx, hist, msg, model.StateCompleted, nil)
	return msg
}

// finalize stamps terminal state and metadata, publishes the result to
// the history, and persists.
func (o *Orchestrator) finalize(ctx context.Context, hist *model.History, msg *model.Message, state model.State, resp *llm.CompletionResponse) {
	msg.State = state
	if resp != nil {
		if resp.Model != "" {
			m := resp.Model
			msg.Model = &m
		}
		if resp.TokensIn > 0 {
			v := resp.TokensIn
			msg.TokensIn = &v
		}
		if resp.TokensOut > 0 {
			v := resp.TokensOut
			msg.TokensOut = &v
		}
		if resp.StopReason != "" {
			s := resp.StopReason
			msg.StopReason = &s
		}
	}
	hist.Update(msg)
	o.persist(ctx, msg)
}

func (o *Orchestrator) persist(ctx context.Context, msg *model.Message) {
	if err := o.store.AppendOrUpdate(ctx, msg); err != nil {
		o.logger.Warn("failed to persist message",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}
