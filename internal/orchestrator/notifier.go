package orchestrator

import (
	"sync"
	"time"

	"github.com/stridefit-ai/coaching-engine/internal/model"
)

// notifier decouples raw delta arrival from presentation and
// persistence. Deltas can arrive at 100+ events per second; consumers
// (UI push, store writes) only need the latest snapshot at a fixed
// cadence. The accumulator itself applies every delta immediately;
// the notifier coalesces snapshots, so batching never loses data.
// Each delivery carries the full accumulated state.
type notifier struct {
	mu      sync.Mutex
	pending *model.Message
	deliver func(*model.Message)
	done    chan struct{}
	wg      sync.WaitGroup
	sync    bool
	once    sync.Once
}

// newNotifier starts a notifier delivering coalesced snapshots every
// interval. An interval <= 0 delivers synchronously on every publish.
func newNotifier(interval time.Duration, deliver func(*model.Message)) *notifier {
	n := &notifier{
		deliver: deliver,
		done:    make(chan struct{}),
		sync:    interval <= 0,
	}
	if n.sync {
		return n
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n.flush()
			case <-n.done:
				return
			}
		}
	}()
	return n
}

// publish records the latest snapshot. Snapshots between ticks are
// coalesced; only the most recent one is delivered.
func (n *notifier) publish(msg *model.Message) {
	if n.sync {
		n.deliver(msg)
		return
	}
	n.mu.Lock()
	n.pending = msg
	n.mu.Unlock()
}

func (n *notifier) flush() {
	n.mu.Lock()
	msg := n.pending
	n.pending = nil
	n.mu.Unlock()
	if msg != nil {
		n.deliver(msg)
	}
}

// close stops the ticker and delivers any pending snapshot. Safe to
// call more than once.
func (n *notifier) close() {
	if n.sync {
		return
	}
	n.once.Do(func() {
		close(n.done)
		n.wg.Wait()
		n.flush()
	})
}
