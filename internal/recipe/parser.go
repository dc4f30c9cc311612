package recipe

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`Recipe:\s*"([^"]+)"`),
		regexp.MustCompile(`Recipe:\s*([^\n]+)`),
		regexp.MustCompile(`\*\*([^*]+)\*\*`),
		regexp.MustCompile(`^#\s+(.+)$`),
		regexp.MustCompile(`Title:\s*([^\n]+)`),
		regexp.MustCompile(`^([A-Z][^.!?]+)$`),
	}
	titleSectionWords = []string{
		"ingredient", "instruction", "step", "tip", "note",
		"serving", "recipe:", "directions", "method",
	}
	doubledTitleWord = regexp.MustCompile(`\b(Recipe|recipe|Dish|dish)\s+(Recipe|recipe|Dish|dish)\b`)

	bulletPrefix      = regexp.MustCompile(`^[\s•*\-–]+`)
	instructionPrefix = regexp.MustCompile(`^[\d.)\s•*\-–]+`)
	intPattern        = regexp.MustCompile(`\d+`)
	decimalPattern    = regexp.MustCompile(`\d+\.?\d*`)

	titleCaser = cases.Title(language.English)
)

type section int

const (
	sectionNone section = iota
	sectionIngredients
	sectionInstructions
	sectionTips
)

// markers are checked in order; a later match on the same header wins.
var sectionMarkers = []struct {
	section section
	words   []string
}{
	{sectionIngredients, []string{"ingredient", "you will need", "you'll need"}},
	{sectionInstructions, []string{"instruction", "step", "method", "direction", "procedure"}},
	{sectionTips, []string{"tip", "note", "variation", "suggestion"}},
}

var units = map[string]struct{}{
	"cup": {}, "cups": {}, "tbsp": {}, "tablespoon": {}, "tablespoons": {},
	"tsp": {}, "teaspoon": {}, "teaspoons": {}, "oz": {}, "ounce": {}, "ounces": {},
	"lb": {}, "lbs": {}, "pound": {}, "pounds": {}, "g": {}, "gram": {}, "grams": {},
	"kg": {}, "kilogram": {}, "ml": {}, "liter": {}, "l": {},
	"clove": {}, "cloves": {}, "slice": {}, "slices": {}, "piece": {}, "pieces": {},
}

// ParseLLMRecipe turns model-written recipe text into a Recipe.
// mainIngredients is the comma separated list the recipe was requested with.
func ParseLLMRecipe(text, mainIngredients string) *Recipe {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	var (
		title        string
		ingredients  []Ingredient
		instructions []string
		tips         []string
		current      = sectionNone
	)

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if title == "" && i < 5 {
			title = matchTitle(line)
		}

		if next, ok := sectionHeader(trimmed); ok {
			current = next
			continue
		}

		switch current {
		case sectionIngredients:
			clean := strings.TrimSpace(bulletPrefix.ReplaceAllString(trimmed, ""))
			if len(clean) > 2 {
				ing := ParseIngredientLine(clean)
				if ing.Name != "" && ing.Name != mainIngredients {
					ingredients = append(ingredients, ing)
				}
			}
		case sectionInstructions:
			clean := strings.TrimSpace(instructionPrefix.ReplaceAllString(trimmed, ""))
			if len(clean) > 5 {
				instructions = append(instructions, clean)
			}
		case sectionTips:
			clean := strings.TrimSpace(bulletPrefix.ReplaceAllString(trimmed, ""))
			if clean != "" {
				tips = append(tips, clean)
			}
		}
	}

	mainList := SplitIngredients(mainIngredients)

	if title == "" || strings.EqualFold(title, "untitled recipe") {
		title = synthesizeTitle(mainList)
	}
	if title != "" {
		title = strings.Trim(strings.TrimSpace(title), `"'`)
		title = doubledTitleWord.ReplaceAllString(title, "Recipe")
	}
	if title == "" {
		title = titleCaser.String(mainIngredients) + " Recipe"
	}

	if len(ingredients) == 0 {
		for _, ing := range mainList {
			ingredients = append(ingredients, Ingredient{Name: ing})
		}
	}
	if len(instructions) == 0 {
		instructions = []string{"Prepare " + mainIngredients + " according to your preference"}
	}

	r := New(title, mainList)
	r.AllIngredients = ingredients
	r.Instructions = instructions
	r.Tips = tips
	r.RawText = text
	r.ID = NewID(title, r.CreatedAt)
	return r
}

// FromLLMResponse parses the recipe and tags it with the requested dietary needs.
func FromLLMResponse(text, ingredients, dietaryNeeds string) *Recipe {
	r := ParseLLMRecipe(text, ingredients)
	if dietaryNeeds != "" {
		r.DietaryTags = DietaryTags(dietaryNeeds)
	}
	return r
}

// SplitIngredients splits a comma separated list, trimming each entry.
func SplitIngredients(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func matchTitle(line string) string {
	for _, p := range titlePatterns {
		m := p.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		lower := strings.ToLower(candidate)
		if containsAny(lower, titleSectionWords) {
			continue
		}
		candidate = strings.ReplaceAll(candidate, "Recipe", "")
		candidate = strings.TrimSpace(strings.ReplaceAll(candidate, "recipe", ""))
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// sectionHeader reports whether the line is a markdown header naming a section.
func sectionHeader(line string) (section, bool) {
	if !strings.HasPrefix(line, "**") && !strings.HasPrefix(line, "#") {
		return sectionNone, false
	}
	lower := strings.ToLower(line)
	found := sectionNone
	for _, m := range sectionMarkers {
		if containsAny(lower, m.words) {
			found = m.section
		}
	}
	return found, found != sectionNone
}

func synthesizeTitle(mainList []string) string {
	if len(mainList) == 0 {
		return ""
	}
	main := titleCaser.String(mainList[0])
	lower := strings.ToLower(main)
	switch {
	case strings.Contains(lower, "chicken"):
		return "Savory " + main + " Dish"
	case strings.Contains(lower, "beef"):
		return "Hearty " + main + " Recipe"
	case strings.Contains(lower, "fish"), strings.Contains(lower, "salmon"):
		return "Delicious " + main + " Dish"
	case strings.Contains(lower, "pasta"):
		return main + " Delight"
	default:
		return "Homemade " + main + " Recipe"
	}
}

// ParseIngredientLine splits "2 cups flour (sifted)" into amount, unit, name and notes.
func ParseIngredientLine(line string) Ingredient {
	var ing Ingredient

	if start := strings.Index(line, "("); start >= 0 {
		if end := strings.Index(line, ")"); end > start {
			ing.Notes = line[start+1 : end]
			line = line[:start] + line[end+1:]
		}
	}

	var name []string
	for i, part := range strings.Fields(line) {
		_, isUnit := units[strings.ToLower(part)]
		switch {
		case i == 0 && strings.IndexFunc(part, unicode.IsDigit) >= 0:
			ing.Amount = part
		case i <= 1 && isUnit:
			ing.Unit = part
		default:
			name = append(name, part)
		}
	}

	if len(name) > 0 {
		ing.Name = strings.Join(name, " ")
	} else {
		ing.Name = strings.TrimSpace(line)
	}
	return ing
}

// ParseNutrition extracts per-serving values from a model's nutrition breakdown.
func ParseNutrition(text string) *NutritionInfo {
	n := &NutritionInfo{}
	for _, line := range strings.Split(strings.ToLower(text), "\n") {
		if strings.Contains(line, "calorie") {
			if m := intPattern.FindString(line); m != "" {
				if v, err := strconv.Atoi(m); err == nil {
					n.Calories = &v
				}
			}
		}
		if strings.Contains(line, "protein") {
			n.ProteinG = firstDecimal(line, n.ProteinG)
		}
		if strings.Contains(line, "carb") {
			n.CarbsG = firstDecimal(line, n.CarbsG)
		}
		if strings.Contains(line, "fat") && !strings.Contains(line, "trans") {
			n.FatG = firstDecimal(line, n.FatG)
		}
		if strings.Contains(line, "benefit") || strings.Contains(line, "rich in") || strings.Contains(line, "good source") {
			if note := strings.TrimSpace(strings.Trim(line, "•*- ")); note != "" {
				n.HealthNotes = append(n.HealthNotes, note)
			}
		}
	}
	return n
}

func firstDecimal(line string, prev *float64) *float64 {
	m := decimalPattern.FindString(line)
	if m == "" {
		return prev
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return prev
	}
	return &v
}

// AttachNutrition parses text into the recipe's nutrition block.
func AttachNutrition(r *Recipe, text string) *Recipe {
	r.Nutrition = ParseNutrition(text)
	return r
}

// DietaryTags maps free-form dietary needs onto the known tag set.
func DietaryTags(needs string) []string {
	lower := strings.ToLower(needs)
	var tags []string
	if strings.Contains(lower, "vegetarian") {
		tags = append(tags, "vegetarian")
	}
	if strings.Contains(lower, "vegan") {
		tags = append(tags, "vegan")
	}
	if strings.Contains(lower, "gluten") {
		tags = append(tags, "gluten-free")
	}
	if strings.Contains(lower, "dairy") {
		tags = append(tags, "dairy-free")
	}
	if strings.Contains(lower, "keto") || strings.Contains(lower, "low-carb") {
		tags = append(tags, "low-carb")
	}
	if strings.Contains(lower, "paleo") {
		tags = append(tags, "paleo")
	}
	return tags
}

var (
	idUnsafe     = regexp.MustCompile(`[^a-z0-9_]`)
	idUnderscore = regexp.MustCompile(`_+`)
)

// NewID builds the slug_timestamp identity used by every store.
func NewID(title string, at time.Time) string {
	slug := "recipe"
	if title != "" {
		slug = idUnsafe.ReplaceAllString(strings.ToLower(title), "_")
		slug = strings.Trim(idUnderscore.ReplaceAllString(slug, "_"), "_")
	}
	return slug + "_" + strconv.FormatInt(at.Unix(), 10)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
