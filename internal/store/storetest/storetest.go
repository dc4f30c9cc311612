// Package storetest builds seeded recipe stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sous-chef/server/internal/recipe"
	"github.com/sous-chef/server/internal/store"
)

// Base is the creation time of the newest sample recipe.
var Base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Recipe builds a recipe created age before Base.
func Recipe(title string, main []string, age time.Duration) *recipe.Recipe {
	r := recipe.New(title, main)
	r.CreatedAt = Base.Add(-age)
	r.ID = recipe.NewID(title, r.CreatedAt)
	r.AllIngredients = make([]recipe.Ingredient, 0, len(main))
	for _, m := range main {
		r.AllIngredients = append(r.AllIngredients, recipe.Ingredient{Name: m, Amount: "2", Unit: "cups"})
	}
	r.Instructions = []string{"Prepare the " + main[0] + ".", "Cook until done."}
	return r
}

// Samples returns four recipes, newest last: Garlic Chicken twice,
// Veggie Pasta and Beef Stew.
func Samples() []*recipe.Recipe {
	return []*recipe.Recipe{
		Recipe("Garlic Chicken", []string{"chicken", "garlic"}, 3*time.Hour),
		Recipe("Veggie Pasta", []string{"pasta", "tomato"}, 2*time.Hour),
		Recipe("Garlic Chicken", []string{"chicken"}, time.Hour),
		Recipe("Beef Stew", []string{"beef", "carrot"}, 0),
	}
}

// JSON opens an empty JSON store in a temp dir and adds recipes.
func JSON(t testing.TB, recipes ...*recipe.Recipe) store.Repository {
	t.Helper()
	repo, err := store.OpenJSON(filepath.Join(t.TempDir(), "recipes.json"))
	require.NoError(t, err)
	for _, r := range recipes {
		_, err := repo.Add(context.Background(), r)
		require.NoError(t, err)
	}
	return repo
}
