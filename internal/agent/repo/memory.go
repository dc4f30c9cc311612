package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/sous-chef/server/internal/agent/model"
)

// MemoryConversationRepository is the single-process stand-in used when no
// Redis URL is configured. Entries idle for longer than ttl are dropped.
type MemoryConversationRepository struct {
	mu          sync.Mutex
	ttl         time.Duration
	maxMessages int
	now         func() time.Time
	convs       map[string]*memoryConversation
}

type memoryConversation struct {
	messages []*schema.Message
	touched  time.Time
}

func NewMemoryConversationRepository(ttl time.Duration, maxMessages int) *MemoryConversationRepository {
	return &MemoryConversationRepository{
		ttl:         ttl,
		maxMessages: maxMessages,
		now:         time.Now,
		convs:       make(map[string]*memoryConversation),
	}
}

// live returns the conversation unless it expired. Callers hold mu.
func (r *MemoryConversationRepository) live(conversationID string) *memoryConversation {
	c, ok := r.convs[conversationID]
	if !ok {
		return nil
	}
	if r.ttl > 0 && r.now().Sub(c.touched) > r.ttl {
		delete(r.convs, conversationID)
		return nil
	}
	return c
}

func (r *MemoryConversationRepository) AddMessage(_ context.Context, conversationID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("add message: nil message")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.live(conversationID)
	if c == nil {
		c = &memoryConversation{}
		r.convs[conversationID] = c
	}
	m := *message
	c.messages = append(c.messages, &m)
	if r.maxMessages > 0 && len(c.messages) > r.maxMessages {
		c.messages = append([]*schema.Message(nil), c.messages[len(c.messages)-r.maxMessages:]...)
	}
	c.touched = r.now()
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(_ context.Context, conversationID string) (*model.ConversationHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := []*schema.Message{}
	if c := r.live(conversationID); c != nil {
		for _, m := range c.messages {
			cp := *m
			msgs = append(msgs, &cp)
		}
	}
	return &model.ConversationHistory{ConversationID: conversationID, Messages: msgs}, nil
}

func (r *MemoryConversationRepository) ClearHistory(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convs, conversationID)
	return nil
}

func (r *MemoryConversationRepository) MessageCount(_ context.Context, conversationID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.live(conversationID); c != nil {
		return len(c.messages), nil
	}
	return 0, nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)

// MemorySessionStore keeps sessions as JSON so callers never share state.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]storedSession
}

type storedSession struct {
	data  []byte
	saved time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, now: time.Now, sessions: make(map[string]storedSession)}
}

func (s *MemorySessionStore) Load(_ context.Context, conversationID string) (*model.Session, error) {
	s.mu.Lock()
	stored, ok := s.sessions[conversationID]
	if ok && s.ttl > 0 && s.now().Sub(stored.saved) > s.ttl {
		delete(s.sessions, conversationID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return model.NewSession(conversationID), nil
	}

	var sess model.Session
	if err := json.Unmarshal(stored.data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *MemorySessionStore) Save(_ context.Context, sess *model.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ConversationID] = storedSession{data: b, saved: s.now()}
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, conversationID)
	return nil
}

var _ model.SessionStore = (*MemorySessionStore)(nil)
