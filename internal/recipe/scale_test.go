package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleIngredients(t *testing.T) {
	ings := []Ingredient{
		{Name: "flour", Amount: "2", Unit: "cups"},
		{Name: "butter", Amount: "1.5", Unit: "tbsp", Notes: "soft"},
		{Name: "salt", Amount: "a pinch"},
		{Name: "pepper"},
		{Name: "Ingredients:**"},
	}

	tests := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"double", 4, 8, []string{
			"• 4 cups flour",
			"• 3 tbsp butter (soft)",
			"• salt (adjust to taste)",
			"• pepper",
		}},
		{"third", 3, 1, []string{
			"• 0.67 cups flour",
			"• 0.5 tbsp butter (soft)",
			"• salt (adjust to taste)",
			"• pepper",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScaleIngredients(ings, tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScaleIngredients_InvalidServings(t *testing.T) {
	_, err := ScaleIngredients(nil, 0, 4)
	assert.ErrorIs(t, err, ErrInvalidServings)

	_, err = ScaleIngredients(nil, 4, -1)
	assert.ErrorIs(t, err, ErrInvalidServings)
}

func TestScaleSummary(t *testing.T) {
	r := New("Pancakes", []string{"flour"})
	r.AllIngredients = []Ingredient{{Name: "flour", Amount: "1", Unit: "cup"}}
	r.Instructions = []string{"Mix everything."}

	out, err := ScaleSummary(r, 8)
	require.NoError(t, err)
	assert.Contains(t, out, "Scaled 'Pancakes' from 4 to 8 servings:")
	assert.Contains(t, out, "• 2 cup flour")
	assert.Contains(t, out, "1. Mix everything.")
	assert.Contains(t, out, "**Note:** Cooking times may need slight adjustments")
}

func TestDisplayString(t *testing.T) {
	r := New("Pancakes", []string{"flour", "eggs"})
	prep := 10
	r.PrepTimeMinutes = &prep
	r.Instructions = []string{"Mix.", "Fry."}
	r.DietaryTags = []string{"vegetarian"}

	out := r.DisplayString()
	assert.Contains(t, out, "**Pancakes**")
	assert.Contains(t, out, "⏱️ Prep: 10 min | Servings: 4")
	assert.Contains(t, out, "• flour\n• eggs")
	assert.Contains(t, out, "2. Fry.")
	assert.Contains(t, out, "**Dietary Info:** vegetarian")
}

func TestNutritionString(t *testing.T) {
	r := New("Soup", nil)
	assert.Equal(t, "Nutritional information not available.", r.NutritionString())

	AttachNutrition(r, "calories 300\nprotein 12.5 g")
	out := r.NutritionString()
	assert.Contains(t, out, "• Calories: 300")
	assert.Contains(t, out, "• Protein: 12.5g")
}

func TestClone(t *testing.T) {
	r := New("Soup", []string{"leek"})
	c := r.Clone()
	c.MainIngredients[0] = "potato"
	assert.Equal(t, "leek", r.MainIngredients[0])
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{3, "3"},
		{0.666, "0.67"},
		{1.5, "1.5"},
		{-2, "-2"},
		{1e20, "100000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(tt.in))
		})
	}
}
