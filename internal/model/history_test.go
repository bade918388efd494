package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AppendAndGet(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	h.Append(&Message{ID: "a", Role: RoleUser, Content: "hi", State: StateCompleted})
	h.Append(&Message{ID: "b", Role: RoleAssistant, Content: "hello", State: StateCompleted})

	assert.Equal(t, 2, h.Len())
	require.NotNil(t, h.Get("a"))
	assert.Equal(t, "hi", h.Get("a").Content)
	assert.Nil(t, h.Get("missing"))
}

func TestHistory_UpdateInPlace(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	h.Append(&Message{ID: "a", Role: RoleAssistant, Content: "par", State: StateStreaming})

	ok := h.Update(&Message{ID: "a", Role: RoleAssistant, Content: "partial text", State: StateStreaming})
	assert.True(t, ok)
	assert.Equal(t, "partial text", h.Get("a").Content)
	assert.Equal(t, 1, h.Len())

	assert.False(t, h.Update(&Message{ID: "zzz"}))
}

func TestHistory_OwnsItsCopies(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	msg := &Message{ID: "a", Role: RoleAssistant, Content: "v1", State: StateStreaming}
	h.Append(msg)

	// A writer streaming into its own instance is invisible until it
	// publishes via Update.
	msg.Content = "v1 plus unpublished"
	assert.Equal(t, "v1", h.Get("a").Content)

	h.Update(msg)
	assert.Equal(t, "v1 plus unpublished", h.Get("a").Content)

	// Mutating what readers got back never touches the log.
	got := h.Get("a")
	got.Content = "scribbled"
	h.Snapshot()[0].Content = "scribbled again"
	assert.Equal(t, "v1 plus unpublished", h.Get("a").Content)
}

func TestHistory_APIViewFilters(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	h.Append(&Message{ID: "u1", Role: RoleUser, Content: "hi", State: StateCompleted})
	h.Append(&Message{ID: "f1", Role: RoleAssistant, Content: "broken", State: StateFailed})
	h.Append(&Message{ID: "s1", Role: RoleAssistant, Content: "", State: StateStreaming})
	h.Append(&Message{ID: "s2", Role: RoleAssistant, Content: "streaming text", State: StateStreaming})
	h.Append(&Message{ID: "sys1", Role: RoleSystem, Content: "Tool results:", State: StateCompleted})

	view := h.APIView()

	require.Len(t, view, 3)
	assert.Equal(t, "user", view[0].Role)
	assert.Equal(t, "streaming text", view[1].Content)
	assert.Equal(t, "system", view[2].Role)
}

func TestMessage_CloneIsDeep(t *testing.T) {
	t.Parallel()

	reasoning := "thinking"
	modelName := "test-model"
	orig := &Message{
		ID:        "a",
		Reasoning: &reasoning,
		Model:     &modelName,
		Attachments: []Attachment{
			{Name: "form-check.mp4", MimeType: "video/mp4"},
		},
	}

	c := orig.Clone()
	*c.Reasoning = "changed"
	c.Attachments[0].Name = "other"

	assert.Equal(t, "thinking", *orig.Reasoning)
	assert.Equal(t, "form-check.mp4", orig.Attachments[0].Name)
}
