package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	pkgredis "github.com/sous-chef/server/pkg/redis"
)

// startRedis runs a throwaway Redis container. Tests using it are skipped
// under -short or when Docker is unavailable.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("redis container test skipped in short mode")
	}
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Ready to accept connections"),
				wait.ForListeningPort("6379/tcp"),
			),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cfg := pkgredis.Config{URL: fmt.Sprintf("redis://%s:%s/0", host, port.Port()), ReadTimeout: 3, WriteTimeout: 3, DialTimeout: 5}
	rdb, err := cfg.New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisRepositories(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()

	t.Run("conversation history is capped and expires", func(t *testing.T) {
		r := NewRedisConversationRepository(rdb, time.Minute, 2)
		for _, text := range []string{"one", "two", "three"} {
			require.NoError(t, r.AddMessage(ctx, "c1", schema.UserMessage(text)))
		}
		h, err := r.LoadHistory(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, h.Messages, 2)
		assert.Equal(t, "two", h.Messages[0].Content)

		ttl, err := rdb.TTL(ctx, conversationKey("c1")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		require.NoError(t, r.ClearHistory(ctx, "c1"))
		n, err := r.MessageCount(ctx, "c1")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("unknown conversation is empty", func(t *testing.T) {
		h, err := NewRedisConversationRepository(rdb, 0, 0).LoadHistory(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, h.Messages)
	})

	t.Run("sessions round trip", func(t *testing.T) {
		s := NewRedisSessionStore(rdb, time.Minute)
		sess, err := s.Load(ctx, "c1")
		require.NoError(t, err)
		sess.CurrentRecipeID = "r1"
		sess.Awaiting = "ingredients"
		require.NoError(t, s.Save(ctx, sess))

		loaded, err := s.Load(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "r1", loaded.CurrentRecipeID)
		assert.Equal(t, "ingredients", loaded.Awaiting)

		require.NoError(t, rdb.Set(ctx, sessionKey("c2"), "{not json", time.Minute).Err())
		broken, err := s.Load(ctx, "c2")
		require.NoError(t, err)
		assert.Equal(t, "c2", broken.ConversationID)

		require.NoError(t, s.Delete(ctx, "c1"))
		gone, err := s.Load(ctx, "c1")
		require.NoError(t, err)
		assert.Empty(t, gone.CurrentRecipeID)
	})
}
