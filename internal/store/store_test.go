package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sous-chef/server/internal/recipe"
)

func sampleRecipes() []*recipe.Recipe {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mk := func(title string, main []string, tags []string, age time.Duration) *recipe.Recipe {
		r := recipe.New(title, main)
		r.DietaryTags = tags
		r.CreatedAt = base.Add(-age)
		r.ID = recipe.NewID(title, r.CreatedAt)
		return r
	}
	return []*recipe.Recipe{
		mk("Garlic Chicken", []string{"chicken", "garlic"}, nil, 3*time.Hour),
		mk("Veggie Pasta", []string{"pasta", "tomato"}, []string{"vegetarian"}, 2*time.Hour),
		mk("Garlic Chicken", []string{"chicken"}, nil, time.Hour),
		mk("Beef Stew", []string{"beef", "carrot"}, []string{"Gluten-Free"}, 0),
	}
}

type repoFactory func(t *testing.T) Repository

func repositories() map[string]repoFactory {
	return map[string]repoFactory{
		"json": func(t *testing.T) Repository {
			s, err := OpenJSON(filepath.Join(t.TempDir(), "recipes.json"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Repository {
			s, err := OpenSQLite(context.Background(), ":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestRepository(t *testing.T) {
	ctx := context.Background()

	for name, open := range repositories() {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			for _, r := range sampleRecipes() {
				_, err := repo.Add(ctx, r)
				require.NoError(t, err)
			}

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			recent, err := repo.Recent(ctx, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "Beef Stew", recent[0].Title)
			assert.Equal(t, "Garlic Chicken", recent[1].Title)

			tagged, err := repo.ByDietaryTag(ctx, "gluten-free")
			require.NoError(t, err)
			require.Len(t, tagged, 1)
			assert.Equal(t, "Beef Stew", tagged[0].Title)

			withChicken, err := repo.ByMainIngredient(ctx, "CHICK")
			require.NoError(t, err)
			assert.Len(t, withChicken, 2)

			found, err := repo.FindByTitle(ctx, "pasta")
			require.NoError(t, err)
			assert.Equal(t, "Veggie Pasta", found.Title)
			assert.Equal(t, []string{"pasta", "tomato"}, found.MainIngredients)

			_, err = repo.FindByTitle(ctx, "sushi")
			assert.ErrorIs(t, err, ErrNotFound)

			got, err := repo.Get(ctx, found.ID)
			require.NoError(t, err)
			calories := 320
			got.Nutrition = &recipe.NutritionInfo{Calories: &calories}
			require.NoError(t, repo.Update(ctx, got))

			again, err := repo.Get(ctx, found.ID)
			require.NoError(t, err)
			assert.True(t, again.Nutrition.HasCalories())

			_, err = repo.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			missing := recipe.New("Ghost", nil)
			missing.ID = "ghost_1"
			assert.ErrorIs(t, repo.Update(ctx, missing), ErrNotFound)
		})
	}
}

func TestRepository_AddGeneratesID(t *testing.T) {
	ctx := context.Background()
	for name, open := range repositories() {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			r := recipe.New("Lemon Tart", []string{"lemon"})
			id, err := repo.Add(ctx, r)
			require.NoError(t, err)
			assert.Contains(t, id, "lemon_tart_")
			assert.Equal(t, id, r.ID)
		})
	}
}

func TestJSONStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "recipes.json")

	s, err := OpenJSON(path)
	require.NoError(t, err)
	_, err = s.Add(ctx, sampleRecipes()[1])
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reopened, err := OpenJSON(path)
	require.NoError(t, err)
	all, err := reopened.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Veggie Pasta", all[0].Title)
	assert.Equal(t, recipe.DefaultServings, all[0].Servings)
}

func TestJSONStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s, err := OpenJSON(filepath.Join(t.TempDir(), "recipes.json"))
	require.NoError(t, err)

	id, err := s.Add(ctx, sampleRecipes()[0])
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	got.Title = "changed"

	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Garlic Chicken", again.Title)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mongo"})
	assert.Error(t, err)
}

func TestGormStore_VectorUnsupportedOnSQLite(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.ErrorIs(t, s.SetEmbedding(context.Background(), "x", []float32{1}), ErrVectorUnsupported)
	_, err = s.NearestByEmbedding(context.Background(), []float32{1}, 3, "")
	assert.ErrorIs(t, err, ErrVectorUnsupported)
}
