package prompts

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderClassifier(t *testing.T) {
	msgs, err := RenderClassifier(context.Background(), map[string]any{
		VarInput:   "scale it to 6",
		VarContext: "\nCurrent recipe: 'Beef Stew' (serves 4)",
		VarIntents: "\n**scale_recipe**:\n",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, `USER INPUT: "scale it to 6"`)
	assert.Contains(t, msgs[0].Content, "CONTEXT:\nCurrent recipe: 'Beef Stew' (serves 4)")
	assert.Contains(t, msgs[0].Content, `"intent": "intent_name"`)
}

func TestRenderRecipe(t *testing.T) {
	msgs, err := RenderRecipe(context.Background(), "chicken, rice", "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "Ingredients: chicken, rice")
	assert.Contains(t, msgs[1].Content, "Dietary needs: none")
}

func TestRenderReact(t *testing.T) {
	out, err := RenderReact(context.Background(), AgentVars{
		Tools: []string{"search_recipe_database(query): Search recipes"},
		Input: "find soup",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "- search_recipe_database(query): Search recipes")
	assert.Contains(t, out, "User Query: find soup")
	assert.NotContains(t, out, "Current Recipe Context")
}

func TestRenderToolAgentSystem(t *testing.T) {
	out, err := RenderToolAgentSystem(context.Background(), AgentVars{CurrentRecipe: "Title: Beef Stew"})
	require.NoError(t, err)
	assert.Contains(t, out, "The recipe currently being discussed:\nTitle: Beef Stew")
}
