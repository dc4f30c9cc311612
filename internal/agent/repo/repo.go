// Package repo stores conversation history and per-conversation session
// state, in Redis when configured and in process memory otherwise.
package repo

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sous-chef/server/internal/agent/model"
)

// Stores bundles the two repositories a runner needs.
type Stores struct {
	Conversations model.ConversationRepository
	Sessions      model.SessionStore
}

// New picks Redis when rdb is non-nil. maxMessages caps stored history.
func New(rdb redis.Cmdable, ttl time.Duration, maxMessages int) Stores {
	if rdb == nil {
		return Stores{
			Conversations: NewMemoryConversationRepository(ttl, maxMessages),
			Sessions:      NewMemorySessionStore(ttl),
		}
	}
	return Stores{
		Conversations: NewRedisConversationRepository(rdb, ttl, maxMessages),
		Sessions:      NewRedisSessionStore(rdb, ttl),
	}
}
