package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/stridefit-ai/coaching-engine/internal/model"
	"github.com/stridefit-ai/coaching-engine/internal/store"
	"github.com/stridefit-ai/coaching-engine/pkg/logger"
	"github.com/stridefit-ai/coaching-engine/pkg/metrics"
)

// ErrQueuedOffline is returned by Send when the device is offline and
// the message was placed on the offline queue. The send auto-resolves
// once connectivity returns; no caller action is required.
var ErrQueuedOffline = errors.New("message queued while offline")

// ErrSendInFlight is returned when a send for the same message is
// already running. Attempts for a message are strictly sequential.
var ErrSendInFlight = errors.New("send already in flight for this message")

// Config tunes the backoff policy. Constants are configuration, not
// behavior to bit-match.
type Config struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
	MaxAttempts  int
}

// DefaultConfig returns the default backoff policy.
func DefaultConfig() Config {
	return Config{
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
		MaxAttempts:  3,
	}
}

// AttemptFunc performs one send attempt end to end.
type AttemptFunc func(ctx context.Context) error

// Coordinator wraps the orchestrator's outward send with error
// classification, exponential backoff, and an offline queue fed by the
// connectivity monitor.
type Coordinator struct {
	monitor Monitor
	store   store.Store
	logger  *logger.Logger
	cfg     Config

	mu           sync.Mutex
	queue        []*queued
	draining     bool
	inflight     map[string]struct{}
	onTransition func(*model.Message)
}

type queued struct {
	msg     *model.Message
	attempt AttemptFunc
}

// New creates a coordinator and subscribes it to connectivity changes
// so the offline queue drains the moment the network returns.
func New(monitor Monitor, st store.Store, log *logger.Logger, cfg Config) *Coordinator {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultConfig()
	}
	c := &Coordinator{
		monitor:  monitor,
		store:    st,
		logger:   log,
		cfg:      cfg,
		inflight: make(map[string]struct{}),
	}
	monitor.OnChange(func(online bool) {
		if online {
			go c.drain()
		}
	})
	return c
}

// OnTransition registers a hook called after every send-status
// transition with the message being sent. Callers use it to mirror
// transitions into their live conversation view; the coordinator
// itself only ever writes to its own copy of a queued message.
func (c *Coordinator) OnTransition(fn func(*model.Message)) {
	c.mu.Lock()
	c.onTransition = fn
	c.mu.Unlock()
}

// Send runs the attempt under the retry state machine. Retryable
// failures back off exponentially with jitter up to MaxAttempts;
// non-retryable failures go terminal immediately without consuming a
// retry. When offline, no backoff timer is started: the message is
// queued and re-attempted automatically on reconnect.
func (c *Coordinator) Send(ctx context.Context, msg *model.Message, attempt AttemptFunc) error {
	if !c.acquire(msg.ID) {
		return ErrSendInFlight
	}
	defer c.release(msg.ID)
	return c.send(ctx, msg, attempt)
}

func (c *Coordinator) send(ctx context.Context, msg *model.Message, attempt AttemptFunc) error {
	log := c.logger.WithMessage(msg.ConversationID, msg.ID)

	if !c.monitor.IsOnline() {
		c.enqueue(msg, attempt)
		log.Info("offline, message queued")
		return ErrQueuedOffline
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.BaseDelay
	bo.MaxInterval = c.cfg.MaxDelay
	bo.Multiplier = c.cfg.Multiplier
	bo.RandomizationFactor = c.cfg.JitterFactor
	bo.MaxElapsedTime = 0
	bo.Reset()

	for attemptNo := 1; ; attemptNo++ {
		c.transition(ctx, msg, model.SendSending)

		err := attempt(ctx)
		if err == nil {
			c.transition(ctx, msg, model.SendSent)
			metrics.SendsTotal.WithLabelValues(string(model.SendSent)).Inc()
			log.Info("message sent", zap.Int("attempts", attemptNo))
			return nil
		}

		if !model.Retryable(err) {
			c.transition(ctx, msg, model.SendFailed)
			metrics.SendsTotal.WithLabelValues(string(model.SendFailed)).Inc()
			log.Warn("non-retryable send failure", zap.Error(err))
			return err
		}

		if attemptNo >= c.cfg.MaxAttempts {
			c.transition(ctx, msg, model.SendFailed)
			metrics.SendsTotal.WithLabelValues(string(model.SendFailed)).Inc()
			log.Warn("send failed after max attempts",
				zap.Int("attempts", attemptNo),
				zap.Error(err),
			)
			return err
		}

		if !c.monitor.IsOnline() {
			// Connectivity dropped mid-send: queue instead of burning
			// retries against a dead network. No retryCount increment.
			c.enqueue(msg, attempt)
			log.Info("went offline mid-send, message queued")
			return ErrQueuedOffline
		}

		msg.RetryCount++
		c.transition(ctx, msg, model.SendRetrying)
		metrics.RetryAttemptsTotal.Inc()

		delay := bo.NextBackOff()
		log.Info("retrying send",
			zap.Int("attempt", attemptNo),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.transition(context.WithoutCancel(ctx), msg, model.SendFailed)
			return ctx.Err()
		}
	}
}

// ManualRetry re-triggers sending for a failed message. It resets the
// retry counter; failed is otherwise terminal.
func (c *Coordinator) ManualRetry(ctx context.Context, msg *model.Message, attempt AttemptFunc) error {
	if msg.SendStatus != model.SendFailed {
		return fmt.Errorf("manual retry requires a failed message, status is %q", msg.SendStatus)
	}
	msg.RetryCount = 0
	return c.Send(ctx, msg, attempt)
}

// QueueDepth reports how many messages await connectivity.
func (c *Coordinator) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Coordinator) enqueue(msg *model.Message, attempt AttemptFunc) {
	ctx := context.Background()
	c.transition(ctx, msg, model.SendOffline)
	c.transition(ctx, msg, model.SendQueued)

	c.mu.Lock()
	// The queue owns its copy: the drain goroutine must not write to a
	// message instance the caller still holds after Send returns.
	c.queue = append(c.queue, &queued{msg: msg.Clone(), attempt: attempt})
	depth := len(c.queue)
	c.mu.Unlock()

	metrics.OfflineQueueDepth.Set(float64(depth))
}

// drain re-attempts queued messages in original enqueue order. Only
// one drain loop runs at a time; sends within it are sequential.
func (c *Coordinator) drain() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.draining = false
		c.mu.Unlock()
	}()

	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		next := c.queue[0]
		c.queue = c.queue[1:]
		depth := len(c.queue)
		c.mu.Unlock()

		metrics.OfflineQueueDepth.Set(float64(depth))

		if err := c.Send(context.Background(), next.msg, next.attempt); err != nil {
			if errors.Is(err, ErrQueuedOffline) {
				// Went offline again; the message is back on the queue
				// and the next reconnect will resume from here.
				return
			}
			c.logger.WithMessage(next.msg.ConversationID, next.msg.ID).
				Warn("queued send failed", zap.Error(err))
		}
	}
}

func (c *Coordinator) acquire(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[id]; busy {
		return false
	}
	c.inflight[id] = struct{}{}
	return true
}

func (c *Coordinator) release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
}

// transition updates send status, mirrors it through the hook, and
// persists the snapshot. A message never leaves sent, and never leaves
// failed except via ManualRetry.
func (c *Coordinator) transition(ctx context.Context, msg *model.Message, status model.SendStatus) {
	if msg.SendStatus == model.SendSent {
		return
	}
	msg.SendStatus = status

	c.mu.Lock()
	hook := c.onTransition
	c.mu.Unlock()
	if hook != nil {
		hook(msg)
	}

	if c.store != nil {
		if err := c.store.AppendOrUpdate(ctx, msg); err != nil {
			c.logger.Warn("failed to persist send status",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
}
