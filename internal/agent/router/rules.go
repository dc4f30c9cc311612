// Package router maps an utterance to an intent with ordered keyword and
// pattern rules. The first rule that fires wins.
package router

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/sous-chef/server/internal/agent/model"
	"github.com/sous-chef/server/internal/recipe"
	logx "github.com/sous-chef/server/pkg/logger"
)

const (
	ruleConfidence     = 1.0
	fallbackConfidence = 0.8
	defaultConfidence  = 0.5

	recentRecipesScan = 10
	defaultLimit      = 5
	defaultServings   = 4
)

// RecentLister is the slice of the recipe store the router needs to resolve
// recipe names.
type RecentLister interface {
	Recent(ctx context.Context, limit int) ([]*recipe.Recipe, error)
}

// Fallback classifies input that no rule matched. ok is false when it has no
// confident answer.
type Fallback interface {
	Classify(ctx context.Context, text string) (result model.IntentResult, ok bool)
}

type Router struct {
	recipes  RecentLister
	fallback Fallback
}

type Option func(*Router)

func WithFallback(f Fallback) Option {
	return func(r *Router) { r.fallback = f }
}

// New builds a router; recipes may be nil, in which case recipe names are
// resolved from the text alone.
func New(recipes RecentLister, opts ...Option) *Router {
	r := &Router{recipes: recipes}
	for _, o := range opts {
		o(r)
	}
	return r
}

var (
	frequentKeywords = []string{"most frequent", "most common", "most popular", "frequently used", "most used"}
	alwaysPatterns   = compileAll(
		`recipe.*?(?:i|we).*?always.*?(?:have|make|use|cook)`,
		`(?:i|we).*?always.*?(?:have|make|use|cook).*?recipe`,
		`recipe.*?(?:i|we).*?always`,
		`go[- ]?to recipe`,
		`favorite recipe`,
		`usual recipe`,
		`regular recipe`,
		`staple recipe`,
		`signature recipe`,
		`what.*?(?:i|we).*?usually.*?(?:cook|make)`,
		`what.*?recipe.*?(?:i|we).*?always`,
		`(?:recipe|dish).*?(?:i|we).*?always.*?(?:make|have|use)`,
	)
	alwaysVerb = regexp.MustCompile(`making|cooking|using`)

	countKeywords      = []string{"count", "how many"}
	ingredientKeywords = []string{"recipes with", "recipes containing", "recipes that have", "with"}
	countPatterns      = compileAll(
		`how many (\w+) recipes`,
		`count.*?(\w+).*?recipes`,
		`how often.*?(?:use|cook|make).*?(\w+)`,
		`how much.*?(\w+).*?(?:recipes|cooking)`,
		`frequency.*?of.*?(\w+)`,
	)

	createKeywords  = []string{"create", "make", "new recipe", "generate", "cook up", "come up with"}
	provideKeywords = []string{"give me a recipe", "give me recipe", "provide a recipe", "suggest a recipe", "recommend a recipe", "suggest a"}
	historyPattern  = regexp.MustCompile(`give me (?:a |an |the )?(?:previous|last|recent|earlier|past|before)\b`)
	giveMePattern   = regexp.MustCompile(`give me (?:a |an )?(\w+) recipe`)

	recentKeywords = []string{"recent", "latest", "last", "newest"}
	showKeywords   = []string{"show", "list", "display", "see"}

	scaleKeywords  = []string{"scale", "adjust", "resize", "bigger", "smaller", "servings"}
	peopleKeywords = []string{"people", "person", "persons"}
	peoplePattern  = regexp.MustCompile(`(\d+)\s*(?:people|person|persons|servings)`)
	numberPattern  = regexp.MustCompile(`\b(\d+)\b`)

	detailKeywords  = []string{"steps", "instructions", "how to cook", "cooking directions", "directions"}
	historyKeywords = []string{"previous", "before", "past", "earlier", "used to have", "had before", "made before", "cooked before"}

	searchKeywords    = []string{"find", "search", "look for"}
	showMeAnalyticsKw = []string{"most", "frequent", "often", "always", "usually"}

	ambiguous = map[string]struct{}{
		"yes": {}, "ok": {}, "okay": {}, "help": {}, "what can you do": {}, "": {},
	}
)

// Match runs the keyword rules only. ok is false when none fired.
func (r *Router) Match(ctx context.Context, input string) (model.IntentResult, bool) {
	text := strings.ToLower(strings.TrimSpace(input))

	if containsAny(text, frequentKeywords) || matchesAlways(text) {
		return ruleResult(model.IntentAnalyticsFrequent, "frequency phrase"), true
	}

	if containsAny(text, countKeywords) && (containsAny(text, ingredientKeywords) || matchesAny(text, countPatterns)) {
		return ruleResult(model.IntentAnalyticsCount, "count phrase").
			With(model.ParamIngredient, ExtractCountIngredient(text)), true
	}

	historyRef := historyPattern.MatchString(text)
	if !historyRef {
		giveMe := giveMePattern.FindStringSubmatch(text)
		if containsAny(text, createKeywords) || containsAny(text, provideKeywords) || giveMe != nil {
			ingredients := ExtractIngredients(text)
			if ingredients == "" && giveMe != nil {
				ingredients = giveMe[1]
			}
			return ruleResult(model.IntentCreateRecipe, "create phrase").
				With(model.ParamIngredients, ingredients), true
		}
	}

	showLastSingular := strings.Contains(text, "show me last recipe") || strings.Contains(text, "show last recipe")
	if containsAny(text, recentKeywords) && containsAny(text, showKeywords) && !historyRef && !showLastSingular {
		return ruleResult(model.IntentGetRecent, "recent listing").
			With(model.ParamLimit, ExtractNumber(text, defaultLimit)), true
	}

	if containsAny(text, scaleKeywords) || containsAny(text, peopleKeywords) {
		servings := ExtractNumber(text, defaultServings)
		if m := peoplePattern.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				servings = n
			}
		}
		return ruleResult(model.IntentScaleRecipe, "scaling phrase").
			With(model.ParamServings, servings), true
	}

	if n, ok := listNumber(text); ok {
		return ruleResult(model.IntentNumberedReference, "list number").
			With(model.ParamNumber, n), true
	}

	if containsAny(text, detailKeywords) || containsAny(text, historyKeywords) || historyRef || showLastSingular {
		return ruleResult(model.IntentGetDetails, "detail or history reference").
			With(model.ParamRecipeName, r.ExtractRecipeName(ctx, text)), true
	}

	showMeAnalytics := strings.Contains(text, "show me") && containsAny(text, showMeAnalyticsKw)
	if containsAny(text, searchKeywords) && !showMeAnalytics {
		return ruleResult(model.IntentSearchRecipes, "search phrase").
			With(model.ParamQuery, ExtractSearchQuery(text)), true
	}

	if _, ok := ambiguous[text]; ok {
		return ruleResult(model.IntentHelp, "ambiguous input"), true
	}

	return model.IntentResult{}, false
}

// Route applies the rules, then the fallback, then defaults to a search for
// the whole text.
func (r *Router) Route(ctx context.Context, input string) model.IntentResult {
	if res, ok := r.Match(ctx, input); ok {
		return res
	}
	text := strings.ToLower(strings.TrimSpace(input))
	if r.fallback != nil {
		if res, ok := r.fallback.Classify(ctx, text); ok {
			logx.Debug().Str("intent", string(res.Intent)).Msg("router fallback classified input")
			return res
		}
	}
	return model.NewIntentResult(model.IntentSearchRecipes, defaultConfidence, "no rule matched", model.SourceDefault).
		With(model.ParamQuery, text)
}

func ruleResult(intent model.Intent, reason string) model.IntentResult {
	return model.NewIntentResult(intent, ruleConfidence, reason, model.SourceRules)
}

// matchesAlways covers the "always" patterns, including the one that must not
// be followed by "new" or "with" after its verb. Every "always" is tried.
func matchesAlways(text string) bool {
	if matchesAny(text, alwaysPatterns) {
		return true
	}
	for i := strings.Index(text, "always"); i >= 0; {
		rest := text[i+len("always"):]
		if alwaysVerbFollows(rest) {
			return true
		}
		next := strings.Index(rest, "always")
		if next < 0 {
			break
		}
		i += len("always") + next
	}
	return false
}

func alwaysVerbFollows(rest string) bool {
	for _, loc := range alwaysVerb.FindAllStringIndex(rest, -1) {
		// "." stops at a newline, so the verb must share the line with "always"
		if strings.Contains(rest[:loc[0]], "\n") {
			break
		}
		tail := rest[loc[1]:]
		if nl := strings.Index(tail, "\n"); nl >= 0 {
			tail = tail[:nl]
		}
		if !strings.Contains(tail, "new") && !strings.Contains(tail, "with") {
			return true
		}
	}
	return false
}

func listNumber(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	for _, c := range text {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > 10 {
		return 0, false
	}
	return n, true
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
