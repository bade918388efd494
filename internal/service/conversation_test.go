package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridefit-ai/coaching-engine/internal/model"
	"github.com/stridefit-ai/coaching-engine/internal/store"
	"github.com/stridefit-ai/coaching-engine/pkg/logger"
)

func newConvService() *ConversationService {
	return NewConversationService(store.NewMemory(), logger.NewNop())
}

func TestConversationService_CreateAndGet(t *testing.T) {
	t.Parallel()

	svc := newConvService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, "athlete-1", &model.CreateConversationRequest{Title: "Week 3 block"})
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "Week 3 block", conv.Title)
	require.NotNil(t, conv.History)

	got, err := svc.Get(ctx, "athlete-1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
}

func TestConversationService_DefaultTitle(t *testing.T) {
	t.Parallel()

	svc := newConvService()
	conv, err := svc.Create(context.Background(), "athlete-1", &model.CreateConversationRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, conv.Title)
}

func TestConversationService_OwnershipEnforced(t *testing.T) {
	t.Parallel()

	svc := newConvService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, "athlete-1", &model.CreateConversationRequest{Title: "mine"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "athlete-2", conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	_, err = svc.Update(ctx, "athlete-2", conv.ID, &model.UpdateConversationRequest{Title: "stolen"})
	assert.ErrorIs(t, err, ErrConversationNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "athlete-2", conv.ID), ErrConversationNotFound)
}

func TestConversationService_ListPagination(t *testing.T) {
	t.Parallel()

	svc := newConvService()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, "athlete-1", &model.CreateConversationRequest{Title: "c"})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "athlete-2", &model.CreateConversationRequest{Title: "other"})
	require.NoError(t, err)

	resp, err := svc.List(ctx, "athlete-1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)
	assert.Len(t, resp.Conversations, 2)
	assert.True(t, resp.HasMore)

	resp, err = svc.List(ctx, "athlete-1", 10, 4)
	require.NoError(t, err)
	assert.Len(t, resp.Conversations, 1)
	assert.False(t, resp.HasMore)
}

func TestConversationService_DeleteHidesConversation(t *testing.T) {
	t.Parallel()

	svc := newConvService()
	ctx := context.Background()

	conv, err := svc.Create(ctx, "athlete-1", &model.CreateConversationRequest{Title: "done"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "athlete-1", conv.ID))

	_, err = svc.Get(ctx, "athlete-1", conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	resp, err := svc.List(ctx, "athlete-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, resp.Conversations)
}

func TestConversationService_HydratesHistoryFromStore(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.AppendOrUpdate(ctx, &model.Message{
		ID:             "m1",
		ConversationID: "conv-1",
		Role:           model.RoleUser,
		Content:        "old message",
		State:          model.StateCompleted,
	}))

	svc := NewConversationService(mem, logger.NewNop())

	// Simulate a conversation known from a previous run whose history
	// has not been loaded yet.
	svc.convs["conv-1"] = &model.Conversation{ID: "conv-1", UserID: "athlete-1"}

	conv, err := svc.Get(ctx, "athlete-1", "conv-1")
	require.NoError(t, err)
	require.NotNil(t, conv.History)
	assert.Equal(t, 1, conv.History.Len())
	assert.Equal(t, "old message", conv.History.Get("m1").Content)
}
