package recipe

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidServings = errors.New("servings must be positive")

// ScaleIngredients renders every ingredient as a bullet line with its amount
// multiplied by to/from.
func ScaleIngredients(ings []Ingredient, from, to int) ([]string, error) {
	if from <= 0 || to <= 0 {
		return nil, ErrInvalidServings
	}
	factor := float64(to) / float64(from)

	out := make([]string, 0, len(ings))
	for _, ing := range ings {
		// header lines saved by older parsers
		if strings.HasSuffix(ing.Name, ":**") {
			continue
		}
		out = append(out, scaleLine(ing, factor))
	}
	return out, nil
}

func scaleLine(ing Ingredient, factor float64) string {
	if ing.Amount == "" {
		return "• " + ing.Name
	}

	m := decimalPattern.FindString(ing.Amount)
	if m == "" {
		return "• " + ing.Name + " (adjust to taste)"
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return "• " + ing.Name + " (adjust to taste)"
	}

	var b strings.Builder
	b.WriteString("• ")
	b.WriteString(FormatAmount(v * factor))
	if ing.Unit != "" {
		b.WriteString(" " + ing.Unit)
	}
	b.WriteString(" " + ing.Name)
	if ing.Notes != "" {
		b.WriteString(" (" + ing.Notes + ")")
	}
	return b.String()
}

// FormatAmount prints whole numbers without decimals, others rounded to two places.
func FormatAmount(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// ScaleSummary is the chat reply for a scaling request.
func ScaleSummary(r *Recipe, to int) (string, error) {
	lines, err := ScaleIngredients(r.AllIngredients, r.Servings, to)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Scaled '%s' from %d to %d servings:\n\n", r.Title, r.Servings, to)
	b.WriteString("**Scaled Ingredients:**\n")
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	b.WriteString("\n**Instructions remain the same:**\n")
	for i, step := range r.Instructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n**Note:** Cooking times may need slight adjustments for larger quantities.")
	return b.String(), nil
}
