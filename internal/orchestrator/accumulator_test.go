package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulator_ConcatenatesInOrder(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	for _, d := range []string{"Keep ", "your ", "elbows ", "tucked."} {
		acc = acc.AppendContent(d)
	}

	assert.Equal(t, "Keep your elbows tucked.", acc.Content())
}

func TestAccumulator_InterleavedStreams(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator().
		AppendReasoning("step 1").
		AppendContent("Here's ").
		AppendReasoning(", step 2").
		AppendContent("the plan.")

	assert.Equal(t, "Here's the plan.", acc.Content())
	r, ok := acc.Reasoning()
	assert.True(t, ok)
	assert.Equal(t, "step 1, step 2", r)
}

func TestAccumulator_FinalizeDistinguishesNoReasoning(t *testing.T) {
	t.Parallel()

	t.Run("no reasoning deltas", func(t *testing.T) {
		t.Parallel()
		f := NewAccumulator().AppendContent("hi").Finalize()
		assert.Nil(t, f.Reasoning)
		assert.False(t, f.IsEmpty)
	})

	t.Run("empty reasoning delta still counts", func(t *testing.T) {
		t.Parallel()
		f := NewAccumulator().AppendReasoning("").Finalize()
		require.NotNil(t, f.Reasoning)
		assert.Equal(t, "", *f.Reasoning)
		assert.False(t, f.IsEmpty)
	})

	t.Run("nothing at all is empty", func(t *testing.T) {
		t.Parallel()
		f := NewAccumulator().Complete().Finalize()
		assert.True(t, f.IsEmpty)
		assert.Nil(t, f.Reasoning)
	})
}

func TestAccumulator_ValueSemantics(t *testing.T) {
	t.Parallel()

	base := NewAccumulator().AppendContent("a")
	branch := base.AppendContent("b")

	assert.Equal(t, "a", base.Content())
	assert.Equal(t, "ab", branch.Content())
}

func TestAccumulator_Bind(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator()
	assert.Equal(t, "", acc.MessageID())

	acc = acc.Bind("msg-1")
	assert.Equal(t, "msg-1", acc.MessageID())
}
