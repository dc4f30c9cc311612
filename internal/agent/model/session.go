package model

import (
	"context"
	"time"
)

// Actions recorded on a session besides the intents themselves.
const (
	ActionRequestIngredients = "request_ingredients"
	ActionError              = "error"
	ActionToolAgent          = "tool_agent"
	ActionReact              = "react"
)

type SessionStats struct {
	Interactions      int `json:"interactions"`
	RecipesCreated    int `json:"recipes_created"`
	SearchesPerformed int `json:"searches_performed"`
	AnalyticsQueries  int `json:"analytics_queries"`
}

// Session is the per-conversation working memory kept between turns.
type Session struct {
	ConversationID  string `json:"conversation_id"`
	CurrentRecipeID string `json:"current_recipe_id,omitempty"`
	LastAction      string `json:"last_action,omitempty"`
	LastInput       string `json:"last_input,omitempty"`
	// Awaiting is set when the assistant asked a question, e.g. "ingredients".
	Awaiting string `json:"awaiting,omitempty"`
	// ListIDs is the last numbered list shown (recent or search results).
	ListIDs   []string     `json:"list_ids,omitempty"`
	Stats     SessionStats `json:"stats"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func NewSession(conversationID string) *Session {
	return &Session{ConversationID: conversationID}
}

// Record counts a finished interaction by the action it took.
func (s *Session) Record(action string) {
	s.Stats.Interactions++
	switch Intent(action) {
	case IntentCreateRecipe:
		s.Stats.RecipesCreated++
	case IntentSearchRecipes, IntentGetRecent:
		s.Stats.SearchesPerformed++
	case IntentAnalyticsFrequent, IntentAnalyticsCount:
		s.Stats.AnalyticsQueries++
	}
	s.LastAction = action
	s.UpdatedAt = time.Now()
}

type SessionStore interface {
	// Load returns the stored session or a fresh one.
	Load(ctx context.Context, conversationID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, conversationID string) error
}

// AgentResponse is what every mode returns for one turn.
type AgentResponse struct {
	ConversationID string         `json:"conversation_id"`
	Content        string         `json:"content"`
	UpdatedContext map[string]any `json:"updated_context,omitempty"`
	Success        bool           `json:"success"`
	ActionTaken    string         `json:"action_taken"`
	Intent         *IntentResult  `json:"intent,omitempty"`
	CostUSD        float64        `json:"cost_usd,omitempty"`
}
