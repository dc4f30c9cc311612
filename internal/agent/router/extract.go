package router

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/sous-chef/server/internal/recipe"
	logx "github.com/sous-chef/server/pkg/logger"
)

var (
	ingredientPatterns = compileAll(
		`with\s+(.+?)(?:\s+recipe|$)`,
		`using\s+(.+?)(?:\s+recipe|$)`,
		`from\s+(.+?)(?:\s+recipe|$)`,
		`recipe\s+for\s+(.+?)(?:\s|$)`,
		`for\s+(.+?)(?:\s+recipe|$)`,
	)
	conjunctions      = regexp.MustCompile(`\b(and|or|also|plus)\b`)
	createIngredients = []string{
		"chicken", "beef", "pork", "fish", "salmon", "shrimp", "pasta",
		"rice", "tomato", "tomatoes", "onion", "garlic", "cheese", "eggs",
	}

	countIngredientPatterns = compileAll(
		`count.*?recipes with (\w+)`,
		`how many.*?recipes.*?with (\w+)`,
		`how many.*?(\w+) recipes`,
		`count.*?(\w+) recipes`,
		`recipes.*?containing (\w+)`,
		`recipes.*?that have (\w+)`,
		`how often.*?(?:use|cook|make).*?(\w+)`,
		`how much.*?(\w+).*?(?:recipes|cooking)`,
		`frequency.*?of.*?(\w+)`,
	)
	countSkipWords   = []string{"recipes", "cooking", "often", "much", "many"}
	countIngredients = compileWords(
		"chicken", "beef", "pork", "fish", "salmon", "shrimp", "pasta",
		"rice", "tomato", "tomatoes", "onion", "garlic", "cheese", "eggs",
		"lamb", "turkey", "duck", "vegetables", "carrots", "potatoes",
		"mushrooms", "peppers", "spinach", "broccoli", "beans", "lentils",
	)

	historicalRefs = []string{"previous", "last", "recent", "earlier", "past", "before", "the one before"}
	refPatterns    = func() []*regexp.Regexp {
		out := make([]*regexp.Regexp, len(historicalRefs))
		for i, ref := range historicalRefs {
			out[i] = regexp.MustCompile(regexp.QuoteMeta(ref) + `\s+(\w+)\s+recipe`)
		}
		return out
	}()
	showRefPattern = regexp.MustCompile(`show.*?(?:the\s+)?(previous|last|recent|earlier|past)\s+(\w+)\s+recipe`)
	forPattern     = regexp.MustCompile(`for\s+(.+?)(?:\s|$)`)

	searchNoise = []string{"show me", "find", "search", "look for", "recipes", "recipe"}
)

const defaultSearchQuery = "chicken"

// ExtractIngredients pulls the ingredient phrase out of a create request.
// Conjunctions inside the phrase become commas.
func ExtractIngredients(text string) string {
	for _, p := range ingredientPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return conjunctions.ReplaceAllString(strings.TrimSpace(m[1]), ",")
		}
	}
	var found []string
	for _, ing := range createIngredients {
		if strings.Contains(text, ing) {
			found = append(found, ing)
		}
	}
	return strings.Join(found, ", ")
}

// ExtractNumber returns the first standalone integer in text, or def.
func ExtractNumber(text string, def int) int {
	m := numberPattern.FindStringSubmatch(text)
	if m == nil {
		return def
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return def
	}
	return n
}

// ExtractCountIngredient finds the ingredient a count question is about.
func ExtractCountIngredient(text string) string {
	text = strings.ToLower(text)
	for _, p := range countIngredientPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if !containsWord(countSkipWords, m[1]) {
			return m[1]
		}
	}
	for _, p := range countIngredients {
		if p.re.MatchString(text) {
			return p.word
		}
	}
	return ""
}

// ExtractSearchQuery strips command words from a search request.
func ExtractSearchQuery(text string) string {
	q := text
	for _, w := range searchNoise {
		q = strings.TrimSpace(strings.ReplaceAll(q, w, ""))
	}
	if q == "" {
		return defaultSearchQuery
	}
	return q
}

// ExtractRecipeName resolves which stored recipe a detail request points at,
// scanning the ten most recent recipes.
func (r *Router) ExtractRecipeName(ctx context.Context, text string) string {
	text = strings.ToLower(text)
	recent := r.recent(ctx)

	for _, p := range refPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if title, ok := titleWithIngredient(recent, m[1]); ok {
				return title
			}
		}
	}
	if m := showRefPattern.FindStringSubmatch(text); m != nil {
		if title, ok := titleWithIngredient(recent, m[2]); ok {
			return title
		}
	}

	for _, rec := range recent {
		if strings.Contains(text, strings.ToLower(rec.Title)) {
			return rec.Title
		}
	}

	if containsAny(text, historicalRefs) {
		if len(recent) > 0 {
			return recent[0].Title
		}
		return ""
	}

	if m := forPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if len(recent) > 0 {
		return recent[0].Title
	}
	return ""
}

func (r *Router) recent(ctx context.Context) []*recipe.Recipe {
	if r.recipes == nil {
		return nil
	}
	recent, err := r.recipes.Recent(ctx, recentRecipesScan)
	if err != nil {
		logx.Warn().Err(err).Msg("router could not load recent recipes")
		return nil
	}
	return recent
}

func titleWithIngredient(recipes []*recipe.Recipe, ingredient string) (string, bool) {
	ingredient = strings.ToLower(ingredient)
	for _, rec := range recipes {
		if strings.Contains(strings.ToLower(rec.Title), ingredient) {
			return rec.Title, true
		}
		for _, main := range rec.MainIngredients {
			if strings.ToLower(main) == ingredient {
				return rec.Title, true
			}
		}
	}
	return "", false
}

type wordPattern struct {
	word string
	re   *regexp.Regexp
}

func compileWords(words ...string) []wordPattern {
	out := make([]wordPattern, len(words))
	for i, w := range words {
		out[i] = wordPattern{word: w, re: regexp.MustCompile(`\b` + w + `\b`)}
	}
	return out
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}
