// Package recipe holds the structured recipe model and the helpers that turn
// free-form model output into it.
package recipe

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultServings   = 4
	DefaultDifficulty = "medium"
)

// Ingredient is one structured ingredient line.
type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount,omitempty"`
	Unit   string `json:"unit,omitempty"`
	Notes  string `json:"notes,omitempty"` // e.g. "diced", "room temperature"
}

func (i Ingredient) String() string {
	parts := make([]string, 0, 4)
	if i.Amount != "" {
		parts = append(parts, i.Amount)
	}
	if i.Unit != "" {
		parts = append(parts, i.Unit)
	}
	parts = append(parts, i.Name)
	if i.Notes != "" {
		parts = append(parts, "("+i.Notes+")")
	}
	return strings.Join(parts, " ")
}

// NutritionInfo is per-serving nutrition. Nil scalars are unknown.
type NutritionInfo struct {
	Calories    *int              `json:"calories,omitempty"`
	ProteinG    *float64          `json:"protein_g,omitempty"`
	CarbsG      *float64          `json:"carbs_g,omitempty"`
	FatG        *float64          `json:"fat_g,omitempty"`
	FiberG      *float64          `json:"fiber_g,omitempty"`
	SugarG      *float64          `json:"sugar_g,omitempty"`
	SodiumMG    *float64          `json:"sodium_mg,omitempty"`
	Vitamins    map[string]string `json:"vitamins,omitempty"`
	Minerals    map[string]string `json:"minerals,omitempty"`
	HealthNotes []string          `json:"health_notes,omitempty"`
}

// HasCalories reports whether a non-zero calorie count is known.
func (n *NutritionInfo) HasCalories() bool {
	return n != nil && n.Calories != nil && *n.Calories > 0
}

type Recipe struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	MainIngredients  []string       `json:"main_ingredients"`
	AllIngredients   []Ingredient   `json:"all_ingredients"`
	Instructions     []string       `json:"instructions"`
	PrepTimeMinutes  *int           `json:"prep_time_minutes,omitempty"`
	CookTimeMinutes  *int           `json:"cook_time_minutes,omitempty"`
	TotalTimeMinutes *int           `json:"total_time_minutes,omitempty"`
	Servings         int            `json:"servings"`
	Difficulty       string         `json:"difficulty,omitempty"`
	CuisineType      string         `json:"cuisine_type,omitempty"`
	MealType         []string       `json:"meal_type,omitempty"`
	DietaryTags      []string       `json:"dietary_tags,omitempty"`
	Nutrition        *NutritionInfo `json:"nutrition,omitempty"`
	Tips             []string       `json:"tips,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	RawText          string         `json:"raw_text,omitempty"`
}

// New returns a recipe with the model defaults applied.
func New(title string, mainIngredients []string) *Recipe {
	return &Recipe{
		Title:           title,
		MainIngredients: mainIngredients,
		Servings:        DefaultServings,
		Difficulty:      DefaultDifficulty,
		CreatedAt:       time.Now(),
	}
}

// Normalize fills zero-valued defaults, e.g. after decoding older records.
func (r *Recipe) Normalize() {
	if r.Servings <= 0 {
		r.Servings = DefaultServings
	}
	if r.Difficulty == "" {
		r.Difficulty = DefaultDifficulty
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.ID == "" {
		r.ID = NewID(r.Title, r.CreatedAt)
	}
}

// Clone returns a deep copy so stores never hand out shared slices.
func (r *Recipe) Clone() *Recipe {
	if r == nil {
		return nil
	}
	c := *r
	c.MainIngredients = append([]string(nil), r.MainIngredients...)
	c.AllIngredients = append([]Ingredient(nil), r.AllIngredients...)
	c.Instructions = append([]string(nil), r.Instructions...)
	c.MealType = append([]string(nil), r.MealType...)
	c.DietaryTags = append([]string(nil), r.DietaryTags...)
	c.Tips = append([]string(nil), r.Tips...)
	if r.Nutrition != nil {
		n := *r.Nutrition
		n.HealthNotes = append([]string(nil), r.Nutrition.HealthNotes...)
		c.Nutrition = &n
	}
	return &c
}

// SearchText is the text a recipe is matched against.
func (r *Recipe) SearchText() string {
	parts := []string{
		r.Title,
		r.Description,
		strings.Join(r.MainIngredients, " "),
		strings.Join(r.DietaryTags, " "),
		r.CuisineType,
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// HasMainIngredient reports a case-insensitive substring match on any main ingredient.
func (r *Recipe) HasMainIngredient(ingredient string) bool {
	needle := strings.ToLower(ingredient)
	for _, ing := range r.MainIngredients {
		if strings.Contains(strings.ToLower(ing), needle) {
			return true
		}
	}
	return false
}

// DisplayString renders the recipe as markdown-ish text for chat replies.
func (r *Recipe) DisplayString() string {
	var out []string
	out = append(out, fmt.Sprintf("**%s**", r.Title))

	if r.Description != "" {
		out = append(out, "\n"+r.Description)
	}

	var timeInfo []string
	if r.PrepTimeMinutes != nil && *r.PrepTimeMinutes > 0 {
		timeInfo = append(timeInfo, fmt.Sprintf("Prep: %d min", *r.PrepTimeMinutes))
	}
	if r.CookTimeMinutes != nil && *r.CookTimeMinutes > 0 {
		timeInfo = append(timeInfo, fmt.Sprintf("Cook: %d min", *r.CookTimeMinutes))
	}
	if len(timeInfo) > 0 {
		out = append(out, fmt.Sprintf("\n⏱️ %s | Servings: %d", strings.Join(timeInfo, " | "), r.Servings))
	}

	out = append(out, "\n**Ingredients:**")
	if len(r.AllIngredients) > 0 {
		for _, ing := range r.AllIngredients {
			out = append(out, "• "+ing.String())
		}
	} else {
		for _, ing := range r.MainIngredients {
			out = append(out, "• "+ing)
		}
	}

	out = append(out, "\n**Instructions:**")
	for i, step := range r.Instructions {
		out = append(out, fmt.Sprintf("%d. %s", i+1, step))
	}

	if len(r.Tips) > 0 {
		out = append(out, "\n**Tips:**")
		for _, tip := range r.Tips {
			out = append(out, "• "+tip)
		}
	}

	if len(r.DietaryTags) > 0 {
		out = append(out, "\n**Dietary Info:** "+strings.Join(r.DietaryTags, ", "))
	}

	return strings.Join(out, "\n")
}

// NutritionString renders the nutrition block, or a not-available notice.
func (r *Recipe) NutritionString() string {
	n := r.Nutrition
	if n == nil {
		return "Nutritional information not available."
	}

	out := []string{"**Nutritional Information (per serving):**\n"}
	if n.Calories != nil && *n.Calories != 0 {
		out = append(out, fmt.Sprintf("• Calories: %d", *n.Calories))
	}
	addGrams := func(label string, v *float64, unit string) {
		if v != nil && *v != 0 {
			out = append(out, fmt.Sprintf("• %s: %s%s", label, formatNumber(*v), unit))
		}
	}
	addGrams("Protein", n.ProteinG, "g")
	addGrams("Carbohydrates", n.CarbsG, "g")
	addGrams("Fat", n.FatG, "g")
	addGrams("Fiber", n.FiberG, "g")
	addGrams("Sodium", n.SodiumMG, "mg")

	if len(n.HealthNotes) > 0 {
		out = append(out, "\n**Health Benefits:**")
		for _, note := range n.HealthNotes {
			out = append(out, "• "+note)
		}
	}
	return strings.Join(out, "\n")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
