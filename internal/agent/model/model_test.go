package model

import (
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		in   string
		want Intent
		ok   bool
	}{
		{"create_recipe", IntentCreateRecipe, true},
		{" HELP ", IntentHelp, true},
		{"show_recent", IntentGetRecent, true},
		{"scale", IntentScaleRecipe, true},
		{"get_recipe_by_number", IntentNumberedReference, true},
		{"search", IntentSearchRecipes, true},
		{"order_pizza", Intent("order_pizza"), false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseIntent(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntentResultAccessors(t *testing.T) {
	r := NewIntentResult(IntentCreateRecipe, 0.9, "", SourceRules).
		With(ParamIngredients, []any{"chicken", "rice"}).
		With(ParamServings, "6").
		With(ParamLimit, float64(3)).
		With(ParamNutrition, true)

	assert.Equal(t, "chicken, rice", r.String(ParamIngredients))
	n, ok := r.Int(ParamServings)
	require.True(t, ok)
	assert.Equal(t, 6, n)
	n, ok = r.Int(ParamLimit)
	require.True(t, ok)
	assert.Equal(t, 3, n)
	_, ok = r.Int(ParamNumber)
	assert.False(t, ok)
	assert.True(t, r.Bool(ParamNutrition))
	assert.Empty(t, r.String(ParamQuery))
}

func TestSessionRecord(t *testing.T) {
	s := NewSession("c1")
	for _, a := range []string{"create_recipe", "get_recent", "search_recipes", "analytics_count", "help"} {
		s.Record(a)
	}
	assert.Equal(t, SessionStats{Interactions: 5, RecipesCreated: 1, SearchesPerformed: 2, AnalyticsQueries: 1}, s.Stats)
	assert.Equal(t, "help", s.LastAction)
}

func TestAgentModeDecode(t *testing.T) {
	var m AgentMode
	require.NoError(t, m.Decode("ReAct"))
	assert.Equal(t, ModeReact, m)
	require.NoError(t, m.Decode(""))
	assert.Equal(t, ModeHybrid, m)
	assert.Error(t, m.Decode("magic"))
}

func TestConversationTTL(t *testing.T) {
	assert.Equal(t, 15*time.Minute, ConversationConfig{TTL: "15m"}.TTLDuration())
	assert.Equal(t, 30*time.Minute, ConversationConfig{TTL: "soon"}.TTLDuration())
}

func TestUsageCost(t *testing.T) {
	msg := &schema.Message{ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{
		PromptTokens: 1_000_000, CompletionTokens: 1_000_000, TotalTokens: 2_000_000,
	}}}
	summary, total, ok := UsageCost("openai/gpt-4o-mini", msg)
	require.True(t, ok)
	assert.InDelta(t, 0.75, total, 1e-9)
	assert.Equal(t, "USD", summary["currency"])

	_, total, ok = UsageCost("llama3.2", msg)
	assert.True(t, ok)
	assert.Zero(t, total)

	_, _, ok = UsageCost("llama3.2", &schema.Message{})
	assert.False(t, ok)
}

func TestConversationHistoryTail(t *testing.T) {
	h := &ConversationHistory{Messages: []*schema.Message{
		schema.UserMessage("a"),
		schema.AssistantMessage("b", nil),
		schema.UserMessage("c"),
	}}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"all", 0, []string{"a", "b", "c"}},
		{"last two", 2, []string{"b", "c"}},
		{"more than stored", 5, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.Tail(tt.n)
			var contents []string
			for _, m := range got {
				contents = append(contents, m.Content)
			}
			assert.Equal(t, tt.want, contents)
		})
	}

	tail := h.Tail(1)
	tail[0] = nil
	assert.NotNil(t, h.Messages[2])
}
