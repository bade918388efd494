package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/stridefit-ai/coaching-engine/internal/model"
)

// idleTimeoutClient enforces a maximum idle time between stream events.
// A stalled stream is surfaced as a retryable transport failure rather
// than hanging the turn indefinitely.
type idleTimeoutClient struct {
	Client
	idle time.Duration
}

// WithIdleTimeout wraps a client so that its streams fail with a
// TransportError if no event arrives within d.
func WithIdleTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &idleTimeoutClient{Client: c, idle: d}
}

func (c *idleTimeoutClient) Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error) {
	inner, err := c.Client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamEvent)

	go func() {
		defer close(out)

		timer := time.NewTimer(c.idle)
		defer timer.Stop()

		for {
			select {
			case ev, ok := <-inner:
				if !ok {
					return
				}
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(c.idle)
				if !emit(ctx, out, ev) {
					return
				}
				if ev.Type == EventCompleted || ev.Type == EventFailed {
					return
				}
			case <-timer.C:
				emit(ctx, out, StreamEvent{
					Type: EventFailed,
					Err:  &model.TransportError{Err: fmt.Errorf("stream idle for %s", c.idle)},
				})
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
