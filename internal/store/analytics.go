package store

import (
	"strings"

	"github.com/sous-chef/server/internal/recipe"
)

// Frequency is the most repeated title in a collection.
type Frequency struct {
	Title  string
	Count  int
	Recipe *recipe.Recipe
}

// MostFrequent tallies titles. recipes are expected newest first, so the
// returned Recipe is the newest one carrying the winning title. Ties go to the
// title seen first. It returns false for an empty collection.
func MostFrequent(recipes []*recipe.Recipe) (Frequency, bool) {
	if len(recipes) == 0 {
		return Frequency{}, false
	}

	counts := make(map[string]int, len(recipes))
	first := make(map[string]*recipe.Recipe, len(recipes))
	var order []string
	for _, r := range recipes {
		if _, seen := counts[r.Title]; !seen {
			order = append(order, r.Title)
			first[r.Title] = r
		}
		counts[r.Title]++
	}

	best := order[0]
	for _, title := range order[1:] {
		if counts[title] > counts[best] {
			best = title
		}
	}
	return Frequency{Title: best, Count: counts[best], Recipe: first[best]}, true
}

// CountWithIngredient returns the recipes whose title or any main ingredient
// contains ingredient, ignoring case.
func CountWithIngredient(recipes []*recipe.Recipe, ingredient string) []*recipe.Recipe {
	needle := strings.ToLower(strings.TrimSpace(ingredient))
	if needle == "" {
		return nil
	}
	var out []*recipe.Recipe
	for _, r := range recipes {
		if strings.Contains(strings.ToLower(r.Title), needle) || r.HasMainIngredient(needle) {
			out = append(out, r)
		}
	}
	return out
}
