package orchestrator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridefit-ai/coaching-engine/internal/model"
)

func TestNotifier_SyncModeDeliversImmediately(t *testing.T) {
	t.Parallel()

	var got []*model.Message
	n := newNotifier(-1, func(m *model.Message) { got = append(got, m) })
	defer n.close()

	n.publish(&model.Message{ID: "a"})
	n.publish(&model.Message{ID: "b"})

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestNotifier_CoalescesToLatestSnapshot(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var got []*model.Message
	n := newNotifier(20*time.Millisecond, func(m *model.Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})

	// Burst of snapshots well inside one tick.
	for i := 0; i < 50; i++ {
		n.publish(&model.Message{ID: "m", Content: string(rune('a' + i%26))})
	}
	n.publish(&model.Message{ID: "m", Content: "final"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, time.Second, 5*time.Millisecond)

	n.close()

	mu.Lock()
	defer mu.Unlock()
	// Far fewer deliveries than publishes, and the last one carries the
	// latest snapshot.
	assert.Less(t, len(got), 10)
	assert.Equal(t, "final", got[len(got)-1].Content)
}

func TestNotifier_CloseFlushesPending(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var got []*model.Message
	n := newNotifier(time.Hour, func(m *model.Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})

	n.publish(&model.Message{ID: "m", Content: "pending"})
	n.close()

	// Closing again neither panics nor delivers twice.
	n.close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "pending", got[0].Content)
}
