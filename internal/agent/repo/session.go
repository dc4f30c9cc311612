package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sous-chef/server/internal/agent/model"
	errx "github.com/sous-chef/server/internal/core/error"
	logx "github.com/sous-chef/server/pkg/logger"
)

// RedisSessionStore keeps one JSON session per conversation.
type RedisSessionStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSessionStore(rdb redis.Cmdable, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func sessionKey(conversationID string) string {
	return fmt.Sprintf("sous-chef:conversation:%s:session", conversationID)
}

func (s *RedisSessionStore) Load(ctx context.Context, conversationID string) (*model.Session, error) {
	key := sessionKey(conversationID)
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.NewSession(conversationID), nil
	}
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load session")
		return nil, errx.WrapRedis(err)
	}

	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		// A corrupt session is replaced rather than failing every turn.
		logx.Warn().Err(err).Str("key", key).Msg("discarding unreadable session")
		return model.NewSession(conversationID), nil
	}
	sess.ConversationID = conversationID
	return &sess, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *model.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	key := sessionKey(sess.ConversationID)
	if err := s.rdb.Set(ctx, key, b, s.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save session")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, conversationID string) error {
	key := sessionKey(conversationID)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete session")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.SessionStore = (*RedisSessionStore)(nil)
