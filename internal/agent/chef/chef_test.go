package chef

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/sous-chef/server/internal/core/error"
	"github.com/sous-chef/server/internal/llm/llmtest"
	"github.com/sous-chef/server/internal/recipe"
	"github.com/sous-chef/server/internal/store"
)

const stewReply = `**Hearty Beef Stew**

**Ingredients:**
- 2 lbs beef chuck (cubed)
- 3 carrots

**Instructions:**
1. Brown the beef in a heavy pot.
2. Add carrots and simmer for two hours.`

func openStore(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.OpenJSON(filepath.Join(t.TempDir(), "recipes.json"))
	require.NoError(t, err)
	return repo
}

func TestCreateRecipe(t *testing.T) {
	ctx := context.Background()
	repo := openStore(t)
	m := llmtest.Texts(stewReply)

	r, err := New(m, repo).CreateRecipe(ctx, "beef, carrots", "gluten-free")
	require.NoError(t, err)
	assert.Equal(t, "Hearty Beef Stew", r.Title)
	assert.Equal(t, []string{"gluten-free"}, r.DietaryTags)
	assert.Contains(t, m.LastPrompt(), "Ingredients: beef, carrots")

	stored, err := repo.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Title, stored.Title)
	assert.Len(t, stored.Instructions, 2)
}

func TestCreateRecipeModelFailure(t *testing.T) {
	m := llmtest.Texts().FailAt(0, errors.New("quota"))
	_, err := New(m, openStore(t)).CreateRecipe(context.Background(), "beef", "")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))

	_, err = New(llmtest.Texts("   "), openStore(t)).CreateRecipe(context.Background(), "beef", "")
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestEnsureNutrition(t *testing.T) {
	ctx := context.Background()
	repo := openStore(t)
	r := recipe.New("Beef Stew", []string{"beef"})
	id, err := repo.Add(ctx, r)
	require.NoError(t, err)
	r.ID = id

	m := llmtest.Texts("Calories: 450\nProtein: 30g\nRich in iron")
	c := New(m, repo)

	got, err := c.EnsureNutrition(ctx, r)
	require.NoError(t, err)
	require.True(t, got.Nutrition.HasCalories())
	assert.Equal(t, 450, *got.Nutrition.Calories)
	assert.Nil(t, r.Nutrition, "input recipe is not mutated")

	stored, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.Nutrition.HasCalories())

	again, err := c.EnsureNutrition(ctx, stored)
	require.NoError(t, err)
	assert.Same(t, stored, again)
	assert.Equal(t, 1, m.Calls())
}

func TestExtractIngredients(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{`"chicken, pasta"`, "chicken, pasta"},
		{`""`, ""},
		{"beef, vegetables\nThese are the ingredients.", "beef, vegetables"},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			got := New(llmtest.Texts(tt.reply), nil).ExtractIngredients(context.Background(), "make a chicken pasta recipe")
			assert.Equal(t, tt.want, got)
		})
	}

	got := New(llmtest.Texts().FailAt(0, errors.New("down")), nil).ExtractIngredients(context.Background(), "x")
	assert.Equal(t, "", got)
}
