package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sous-chef/server/internal/agent/assistant"
	"github.com/sous-chef/server/internal/agent/chef"
	"github.com/sous-chef/server/internal/agent/classifier"
	"github.com/sous-chef/server/internal/agent/graph/tools"
	"github.com/sous-chef/server/internal/agent/model"
	"github.com/sous-chef/server/internal/agent/react"
	"github.com/sous-chef/server/internal/agent/repo"
	"github.com/sous-chef/server/internal/agent/router"
	"github.com/sous-chef/server/internal/llm/llmtest"
	"github.com/sous-chef/server/internal/recipe"
	"github.com/sous-chef/server/internal/store"
	"github.com/sous-chef/server/internal/store/storetest"
)

type fixture struct {
	recipes store.Repository
	stores  repo.Stores
	samples []*recipe.Recipe
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	samples := storetest.Samples()
	return &fixture{
		recipes: storetest.JSON(t, samples...),
		stores:  repo.New(nil, time.Hour, 50),
		samples: samples,
	}
}

func (f *fixture) base(mode model.AgentMode) Config {
	return Config{
		Mode:             mode,
		Conversation:     model.ConversationConfig{MaxTurns: 10},
		ConversationRepo: f.stores.Conversations,
		Sessions:         f.stores.Sessions,
		Recipes:          f.recipes,
	}
}

// classification builds a rules, llm or hybrid runner. recipeModel may be nil.
func (f *fixture) classification(t *testing.T, mode model.AgentMode, classifierModel, recipeModel *llmtest.Scripted) Runner {
	t.Helper()
	cfg := f.base(mode)
	cfg.Router = router.New(f.recipes)
	var c *chef.Chef
	if recipeModel != nil {
		c = chef.New(recipeModel, f.recipes)
	}
	cfg.Assistant = assistant.New(f.recipes, c)
	if classifierModel != nil {
		cls, err := classifier.New(classifierModel)
		require.NoError(t, err)
		cfg.Classifier = cls
		cfg.ClassifierModel = classifierModel
		cfg.ClassifierModelName = "llama3.2"
	}
	r, err := BuildRunner(context.Background(), cfg)
	require.NoError(t, err)
	return r
}

func (f *fixture) session(t *testing.T, id string) *model.Session {
	t.Helper()
	sess, err := f.stores.Sessions.Load(context.Background(), id)
	require.NoError(t, err)
	return sess
}

func TestRulesModeRoutesAndPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.classification(t, model.ModeRules, nil, nil)

	resp, err := r.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: "show me my recent recipes"})
	require.NoError(t, err)
	assert.Equal(t, "c1", resp.ConversationID)
	assert.Equal(t, string(model.IntentGetRecent), resp.ActionTaken)
	assert.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Content, "Here are your 4 most recent recipes:"), resp.Content)
	require.NotNil(t, resp.Intent)
	assert.Equal(t, model.SourceRules, resp.Intent.Source)

	sess := f.session(t, "c1")
	assert.Len(t, sess.ListIDs, 4)
	assert.Equal(t, 1, sess.Stats.SearchesPerformed)
	assert.Equal(t, "show me my recent recipes", sess.LastInput)

	n, err := f.stores.Conversations.MessageCount(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	t.Run("numbered reference uses the stored list", func(t *testing.T) {
		resp, err := r.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: "2"})
		require.NoError(t, err)
		assert.Equal(t, string(model.IntentNumberedReference), resp.ActionTaken)
		assert.Contains(t, resp.Content, "Garlic Chicken")
		assert.Equal(t, 2, f.session(t, "c1").Stats.Interactions)
	})
}

func TestEmptyConversationIDStartsConversation(t *testing.T) {
	f := newFixture(t)
	r := f.classification(t, model.ModeRules, nil, nil)

	resp, err := r.Invoke(context.Background(), model.QueryInput{Query: "help"})
	require.NoError(t, err)
	_, err = uuid.Parse(resp.ConversationID)
	assert.NoError(t, err)
	assert.Equal(t, string(model.IntentHelp), resp.ActionTaken)
}

func TestHybridMode(t *testing.T) {
	ctx := context.Background()

	t.Run("rule match skips the classifier", func(t *testing.T) {
		f := newFixture(t)
		m := llmtest.Texts(`{"intent": "help"}`)
		r := f.classification(t, model.ModeHybrid, m, nil)

		resp, err := r.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: "show me my recent recipes"})
		require.NoError(t, err)
		assert.Equal(t, string(model.IntentGetRecent), resp.ActionTaken)
		assert.Zero(t, m.Calls())
	})

	t.Run("unmatched input goes to the classifier", func(t *testing.T) {
		f := newFixture(t)
		m := llmtest.Texts("```json\n{\"intent\": \"get_recent\", \"entities\": {\"limit\": 2}, \"confidence\": 0.9, \"reasoning\": \"wants a list\"}\n```")
		r := f.classification(t, model.ModeHybrid, m, nil)

		resp, err := r.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: "what is good tonight"})
		require.NoError(t, err)
		assert.Equal(t, 1, m.Calls())
		assert.Contains(t, m.LastPrompt(), "what is good tonight")
		assert.Equal(t, string(model.IntentGetRecent), resp.ActionTaken)
		assert.True(t, strings.HasPrefix(resp.Content, "Here are your 2 most recent recipes:"), resp.Content)
		require.NotNil(t, resp.Intent)
		assert.Equal(t, model.SourceLLM, resp.Intent.Source)
		assert.InDelta(t, 0.9, resp.Intent.Confidence, 1e-9)
	})
}

func TestLLMMode(t *testing.T) {
	ctx := context.Background()

	t.Run("classifier failure degrades to help", func(t *testing.T) {
		f := newFixture(t)
		m := llmtest.Texts().FailAt(0, errors.New("connection refused"))
		r := f.classification(t, model.ModeLLM, m, nil)

		resp, err := r.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: "show me my recent recipes"})
		require.NoError(t, err)
		assert.Equal(t, string(model.IntentHelp), resp.ActionTaken)
		require.NotNil(t, resp.Intent)
		assert.InDelta(t, 0.5, resp.Intent.Confidence, 1e-9)
		assert.Contains(t, resp.Intent.Reasoning, "connection refused")
	})

	t.Run("answer to the ingredient question creates a recipe", func(t *testing.T) {
		f := newFixture(t)
		sess := model.NewSession("c1")
		sess.Awaiting = assistant.AwaitingIngredients
		require.NoError(t, f.stores.Sessions.Save(ctx, sess))

		classifierModel := llmtest.Texts(`{"intent": "help"}`)
		recipeModel := llmtest.Texts("**Shrimp Tacos**\n\n**Ingredients:**\n- 1 lb shrimp\n\n**Instructions:**\n1. Cook the shrimp.")
		r := f.classification(t, model.ModeLLM, classifierModel, recipeModel)

		resp, err := r.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: "shrimp and lime"})
		require.NoError(t, err)
		assert.Zero(t, classifierModel.Calls())
		assert.Equal(t, string(model.IntentCreateRecipe), resp.ActionTaken)
		assert.Contains(t, resp.Content, "**Shrimp Tacos**")

		saved := f.session(t, "c1")
		assert.Empty(t, saved.Awaiting)
		assert.NotEmpty(t, saved.CurrentRecipeID)
		assert.Equal(t, 1, saved.Stats.RecipesCreated)
	})
}

func TestReactMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stew := f.samples[3]
	sess := model.NewSession("c1")
	sess.CurrentRecipeID = stew.ID
	require.NoError(t, f.stores.Sessions.Save(ctx, sess))

	m := llmtest.Texts("THOUGHT: nothing to look up.\nFINAL ANSWER: Serve the stew hot.")
	agent, err := react.New(m, tools.New(tools.Deps{Recipes: f.recipes}), react.WithRecipes(f.recipes))
	require.NoError(t, err)

	cfg := f.base(model.ModeReact)
	cfg.React = agent
	r, err := BuildRunner(ctx, cfg)
	require.NoError(t, err)

	resp, err := r.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: "how should I serve it?"})
	require.NoError(t, err)
	assert.Equal(t, "Serve the stew hot.", resp.Content)
	assert.Equal(t, model.ActionReact, resp.ActionTaken)
	assert.Equal(t, 0, resp.UpdatedContext["tool_calls"])
	assert.Contains(t, m.LastPrompt(), "- Title: Beef Stew")

	saved := f.session(t, "c1")
	assert.Equal(t, stew.ID, saved.CurrentRecipeID)
	assert.Equal(t, model.ActionReact, saved.LastAction)
	assert.Equal(t, 1, saved.Stats.Interactions)
}

func toolCall(name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

func (f *fixture) toolRunner(t *testing.T, m *llmtest.Scripted, maxCalls int) Runner {
	t.Helper()
	cfg := f.base(model.ModeTools)
	cfg.Conversation.Tools.MaxCalls = maxCalls
	cfg.Tools = tools.New(tools.Deps{Recipes: f.recipes})
	cfg.ResponseModel = m
	cfg.ResponseModelName = "gpt-4o-mini"
	r, err := BuildRunner(context.Background(), cfg)
	require.NoError(t, err)
	return r
}

func TestToolsMode(t *testing.T) {
	ctx := context.Background()

	t.Run("tool result is fed back to the model", func(t *testing.T) {
		f := newFixture(t)
		m := llmtest.Messages(
			toolCall(tools.ToolRecentRecipes, `{"limit":"2"}`),
			schema.AssistantMessage("Beef Stew is your newest recipe.", nil),
		)
		r := f.toolRunner(t, m, 5)

		resp, err := r.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: "what did I cook lately?"})
		require.NoError(t, err)
		assert.Equal(t, "Beef Stew is your newest recipe.", resp.Content)
		assert.Equal(t, model.ActionToolAgent, resp.ActionTaken)
		assert.True(t, resp.Success)
		assert.Equal(t, 1, resp.UpdatedContext["tool_calls"])
		assert.Len(t, m.BoundTools(), 11)

		reqs := m.Requests()
		require.Len(t, reqs, 2)
		assert.Equal(t, schema.System, reqs[0][0].Role)
		assert.Contains(t, reqs[0][0].Content, tools.ToolRecentRecipes)
		last := reqs[1][len(reqs[1])-1]
		assert.Equal(t, schema.Tool, last.Role)
		assert.Equal(t, "call_1", last.ToolCallID)
		assert.True(t, strings.HasPrefix(last.Content, "Here are your 2 most recent recipes:"), last.Content)

		h, err := f.stores.Conversations.LoadHistory(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, h.Messages, 2)
		assert.Equal(t, "Beef Stew is your newest recipe.", h.Messages[1].Content)
		assert.Equal(t, 1, f.session(t, "c1").Stats.Interactions)
	})

	t.Run("tool limit adds the wrap-up notice", func(t *testing.T) {
		f := newFixture(t)
		m := llmtest.Messages(
			toolCall(tools.ToolRecentRecipes, `{"limit":"1"}`),
			schema.AssistantMessage("Here is what I found so far.", nil),
		)
		r := f.toolRunner(t, m, 1)

		resp, err := r.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: "list everything"})
		require.NoError(t, err)
		assert.Equal(t, "Here is what I found so far.", resp.Content)
		assert.Equal(t, 2, m.Calls())
		assert.Contains(t, m.LastPrompt(), "SYSTEM NOTICE: You have reached the maximum tool call limit (1).")
	})

	t.Run("details tool moves the current recipe", func(t *testing.T) {
		f := newFixture(t)
		m := llmtest.Messages(
			toolCall(tools.ToolRecipeDetails, `{"recipe_title":"pasta"}`),
			schema.AssistantMessage("Here it is.", nil),
		)
		r := f.toolRunner(t, m, 5)

		resp, err := r.Invoke(ctx, model.QueryInput{ConversationID: "c1", Query: "show the pasta"})
		require.NoError(t, err)
		pasta := f.samples[1]
		assert.Equal(t, pasta.ID, resp.UpdatedContext["current_recipe_id"])
		assert.Equal(t, pasta.ID, f.session(t, "c1").CurrentRecipeID)
	})
}

func TestBuildRunnerValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "rules without router", cfg: f.base(model.ModeRules)},
		{name: "llm without classifier", cfg: f.base(model.ModeLLM)},
		{name: "react without agent", cfg: f.base(model.ModeReact)},
		{name: "tools without model", cfg: f.base(model.ModeTools)},
		{name: "unknown mode", cfg: f.base("chaos")},
		{name: "no stores", cfg: Config{Mode: model.ModeRules}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRunner(ctx, tt.cfg)
			assert.Error(t, err)
		})
	}
}
