// Package conversations reads and writes the chat transcript that the
// tool-calling agent replays to the model.
package conversations

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/sous-chef/server/internal/agent/model"
)

const defaultMaxTurns = 10

type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	maxTurns := config.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         maxTurns,
	}
}

// SaveUserMessage records the user's side of a turn. Blank input is not stored.
func (cm *MessagesManager) SaveUserMessage(ctx context.Context, conversationID string, query string) error {
	query = strings.TrimSpace(query)
	if conversationID == "" {
		return fmt.Errorf("save user message: empty conversation id")
	}
	if query == "" {
		return nil
	}
	return cm.conversationRepo.AddMessage(ctx, conversationID, schema.UserMessage(query))
}

// BuildResponseContext returns the system prompt followed by the last
// maxTurns messages of the transcript.
func (cm *MessagesManager) BuildResponseContext(ctx context.Context, conversationID string, systemPrompt string) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
	}
	for _, m := range history.Tail(cm.maxTurns) {
		if m == nil || strings.TrimSpace(m.Content) == "" {
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (cm *MessagesManager) SaveResponse(ctx context.Context, conversationID string, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return cm.conversationRepo.AddMessage(ctx, conversationID, schema.AssistantMessage(content, nil))
}
