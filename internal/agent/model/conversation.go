package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationRepository stores the transcript of each conversation. Stores
// cap the number of messages they keep and expire idle conversations.
type ConversationRepository interface {
	AddMessage(ctx context.Context, conversationID string, message *schema.Message) error
	// LoadHistory returns an empty history for an unknown conversation.
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)
	ClearHistory(ctx context.Context, conversationID string) error
	MessageCount(ctx context.Context, conversationID string) (int, error)
}

type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
}

// Tail returns a copy of the last n messages, or all of them when n <= 0.
func (h *ConversationHistory) Tail(n int) []*schema.Message {
	src := h.Messages
	if n > 0 && len(src) > n {
		src = src[len(src)-n:]
	}
	out := make([]*schema.Message, len(src))
	copy(out, src)
	return out
}
