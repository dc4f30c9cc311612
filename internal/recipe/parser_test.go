package recipe

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecipe = `**Garlic Butter Chicken**

**Ingredients:**
- 2 lbs chicken thighs (boneless)
- 4 cloves garlic
- 3 tbsp butter
- salt

**Instructions:**
1. Melt the butter in a large pan.
2. Add garlic and cook until fragrant.
3. Sear the chicken for 6 minutes per side.

**Tips:**
- Rest the meat before slicing.`

func TestParseLLMRecipe(t *testing.T) {
	r := ParseLLMRecipe(sampleRecipe, "chicken, garlic")

	assert.Equal(t, "Garlic Butter Chicken", r.Title)
	assert.Equal(t, []string{"chicken", "garlic"}, r.MainIngredients)
	assert.Equal(t, DefaultServings, r.Servings)
	assert.Equal(t, sampleRecipe, r.RawText)
	assert.True(t, strings.HasPrefix(r.ID, "garlic_butter_chicken_"))

	want := []Ingredient{
		{Name: "chicken thighs", Amount: "2", Unit: "lbs", Notes: "boneless"},
		{Name: "garlic", Amount: "4", Unit: "cloves"},
		{Name: "butter", Amount: "3", Unit: "tbsp"},
		{Name: "salt"},
	}
	if diff := cmp.Diff(want, r.AllIngredients); diff != "" {
		t.Errorf("ingredients mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, r.Instructions, 3)
	assert.Equal(t, "Melt the butter in a large pan.", r.Instructions[0])
	assert.Equal(t, []string{"Rest the meat before slicing."}, r.Tips)
}

func TestParseLLMRecipe_SectionHeadersAreNotContent(t *testing.T) {
	r := ParseLLMRecipe(sampleRecipe, "chicken")
	for _, ing := range r.AllIngredients {
		assert.NotContains(t, ing.Name, ":**")
	}
	for _, step := range r.Instructions {
		assert.NotContains(t, step, "Instructions")
	}
}

func TestParseLLMRecipe_Fallbacks(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		main      string
		wantTitle string
	}{
		{"chicken", "just cook it.", "chicken breast", "Savory Chicken Breast Dish"},
		{"beef", "just cook it.", "beef", "Hearty Beef Recipe"},
		{"salmon", "just cook it.", "salmon, lemon", "Delicious Salmon Dish"},
		{"pasta", "just cook it.", "pasta", "Pasta Delight"},
		{"other", "just cook it.", "tofu", "Homemade Tofu Recipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseLLMRecipe(tt.text, tt.main)
			assert.Equal(t, tt.wantTitle, r.Title)
			assert.Equal(t, []string{"Prepare " + tt.main + " according to your preference"}, r.Instructions)
			assert.Len(t, r.AllIngredients, len(SplitIngredients(tt.main)))
		})
	}
}

func TestParseLLMRecipe_TitlePatterns(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Recipe: \"Lemon Pasta\"\nmore", "Lemon Pasta"},
		{"# Tomato Soup\nbody", "Tomato Soup"},
		{"Title: Spicy Noodles\nbody", "Spicy Noodles"},
		{"Sunday Roast\nbody", "Sunday Roast"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLLMRecipe(tt.text, "pasta").Title)
		})
	}
}

func TestParseIngredientLine(t *testing.T) {
	tests := []struct {
		line string
		want Ingredient
	}{
		{"2 cups flour (sifted)", Ingredient{Name: "flour", Amount: "2", Unit: "cups", Notes: "sifted"}},
		{"1/2 tsp salt", Ingredient{Name: "salt", Amount: "1/2", Unit: "tsp"}},
		{"olive oil", Ingredient{Name: "olive oil"}},
		{"3 eggs", Ingredient{Name: "eggs", Amount: "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIngredientLine(tt.line))
		})
	}
}

func TestParseNutrition(t *testing.T) {
	n := ParseNutrition("Calories: 450 kcal\nProtein: 32.5g\nCarbohydrates: 20 g\nFat: 12g\nTrans fat: 0g\n- Rich in vitamin C")

	require.NotNil(t, n.Calories)
	assert.Equal(t, 450, *n.Calories)
	require.NotNil(t, n.ProteinG)
	assert.InDelta(t, 32.5, *n.ProteinG, 0.001)
	require.NotNil(t, n.CarbsG)
	assert.InDelta(t, 20, *n.CarbsG, 0.001)
	require.NotNil(t, n.FatG)
	assert.InDelta(t, 12, *n.FatG, 0.001)
	assert.Equal(t, []string{"rich in vitamin c"}, n.HealthNotes)
	assert.True(t, n.HasCalories())
}

func TestDietaryTags(t *testing.T) {
	assert.Equal(t, []string{"vegetarian", "gluten-free"}, DietaryTags("Vegetarian and gluten free"))
	assert.Equal(t, []string{"dairy-free", "low-carb"}, DietaryTags("dairy free, keto"))
	assert.Nil(t, DietaryTags("none"))

	r := FromLLMResponse(sampleRecipe, "chicken", "paleo")
	assert.Equal(t, []string{"paleo"}, r.DietaryTags)
}

func TestNewID(t *testing.T) {
	at := time.Unix(1700000000, 0)
	assert.Equal(t, "lemon_pasta_1700000000", NewID("Lemon  Pasta!", at))
	assert.Equal(t, "recipe_1700000000", NewID("", at))
	assert.Equal(t, "mac_cheese_1700000000", NewID("Mac & Cheese", at))
}
