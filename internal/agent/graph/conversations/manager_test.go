package conversations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sous-chef/server/internal/agent/model"
	"github.com/sous-chef/server/internal/agent/repo"
)

func TestMessagesManager(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryConversationRepository(time.Hour, 0)
	mm := NewMessagesManager(store, model.ConversationConfig{MaxTurns: 3})

	for i := range 3 {
		require.NoError(t, mm.SaveUserMessage(ctx, "c1", fmt.Sprintf("question %d", i)))
		require.NoError(t, mm.SaveResponse(ctx, "c1", fmt.Sprintf("answer %d", i)))
	}
	require.NoError(t, mm.SaveUserMessage(ctx, "c1", "   "))
	require.NoError(t, mm.SaveResponse(ctx, "c1", ""))

	t.Run("response context keeps the tail", func(t *testing.T) {
		msgs, err := mm.BuildResponseContext(ctx, "c1", "be helpful")
		require.NoError(t, err)
		require.Len(t, msgs, 4)
		assert.Equal(t, schema.System, msgs[0].Role)
		assert.Equal(t, "be helpful", msgs[0].Content)
		assert.Equal(t, "answer 1", msgs[1].Content)
		assert.Equal(t, "answer 2", msgs[3].Content)
	})

	t.Run("empty conversation id", func(t *testing.T) {
		assert.Error(t, mm.SaveUserMessage(ctx, "", "hi"))
	})

	t.Run("default max turns", func(t *testing.T) {
		assert.Equal(t, defaultMaxTurns, NewMessagesManager(store, model.ConversationConfig{}).maxTurns)
	})
}
