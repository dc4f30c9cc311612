package repo

import (
	"context"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sous-chef/server/internal/agent/model"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestMemoryConversationRepository(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	r := NewMemoryConversationRepository(time.Minute, 3)
	r.now = c.now

	for _, text := range []string{"one", "two", "three", "four"} {
		require.NoError(t, r.AddMessage(ctx, "c1", schema.UserMessage(text)))
	}

	n, err := r.MessageCount(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	h, err := r.LoadHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, h.Messages, 3)
	assert.Equal(t, "two", h.Messages[0].Content)
	assert.Equal(t, schema.User, h.Messages[0].Role)

	h.Messages[0].Content = "mutated"
	again, err := r.LoadHistory(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "two", again.Messages[0].Content)

	t.Run("expires after ttl", func(t *testing.T) {
		c.t = c.t.Add(2 * time.Minute)
		h, err := r.LoadHistory(ctx, "c1")
		require.NoError(t, err)
		assert.Empty(t, h.Messages)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, r.AddMessage(ctx, "c2", schema.AssistantMessage("hi", nil)))
		require.NoError(t, r.ClearHistory(ctx, "c2"))
		n, err := r.MessageCount(ctx, "c2")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	assert.Error(t, r.AddMessage(ctx, "c3", nil))
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemorySessionStore(time.Minute)
	s.now = c.now

	fresh, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", fresh.ConversationID)
	assert.Empty(t, fresh.CurrentRecipeID)

	fresh.CurrentRecipeID = "r1"
	fresh.ListIDs = []string{"a", "b"}
	fresh.Record(string(model.IntentGetRecent))
	require.NoError(t, s.Save(ctx, fresh))
	fresh.ListIDs[0] = "mutated"

	loaded, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "r1", loaded.CurrentRecipeID)
	assert.Equal(t, []string{"a", "b"}, loaded.ListIDs)
	assert.Equal(t, 1, loaded.Stats.SearchesPerformed)

	c.t = c.t.Add(2 * time.Minute)
	expired, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, expired.CurrentRecipeID)

	require.NoError(t, s.Save(ctx, loaded))
	require.NoError(t, s.Delete(ctx, "c1"))
	gone, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, gone.ListIDs)
}

func TestNewWithoutRedisUsesMemory(t *testing.T) {
	stores := New(nil, time.Minute, 10)
	assert.IsType(t, &MemoryConversationRepository{}, stores.Conversations)
	assert.IsType(t, &MemorySessionStore{}, stores.Sessions)
}
