package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Intent is the closed set of actions the assistant can take.
type Intent string

const (
	IntentCreateRecipe      Intent = "create_recipe"
	IntentSearchRecipes     Intent = "search_recipes"
	IntentGetRecent         Intent = "get_recent"
	IntentGetDetails        Intent = "get_details"
	IntentAnalyticsFrequent Intent = "analytics_frequent"
	IntentAnalyticsCount    Intent = "analytics_count"
	IntentScaleRecipe       Intent = "scale_recipe"
	IntentNumberedReference Intent = "numbered_reference"
	IntentHelp              Intent = "help"
)

// Intents lists every intent in prompt order.
var Intents = []Intent{
	IntentCreateRecipe,
	IntentSearchRecipes,
	IntentGetRecent,
	IntentGetDetails,
	IntentAnalyticsFrequent,
	IntentAnalyticsCount,
	IntentScaleRecipe,
	IntentNumberedReference,
	IntentHelp,
}

// ruleAliases maps the labels used by the keyword router onto the enum.
var ruleAliases = map[string]Intent{
	"show_recent":          IntentGetRecent,
	"scale":                IntentScaleRecipe,
	"get_recipe_by_number": IntentNumberedReference,
	"search":               IntentSearchRecipes,
}

func (i Intent) Valid() bool {
	for _, v := range Intents {
		if i == v {
			return true
		}
	}
	return false
}

// ParseIntent accepts enum names and router aliases, case-insensitively.
func ParseIntent(s string) (Intent, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if alias, ok := ruleAliases[s]; ok {
		return alias, true
	}
	i := Intent(s)
	return i, i.Valid()
}

// Source records which stage produced an IntentResult.
type Source string

const (
	SourceRules       Source = "rules"
	SourceLLM         Source = "llm"
	SourceLLMFallback Source = "llm_fallback"
	SourceDefault     Source = "default"
)

// Parameter keys shared by the router, classifier and handlers.
const (
	ParamIngredients  = "ingredients"
	ParamDietary      = "dietary_needs"
	ParamCuisine      = "cuisine"
	ParamReference    = "recipe_reference"
	ParamQuery        = "query"
	ParamLimit        = "limit"
	ParamRecipeName   = "recipe_name"
	ParamServings     = "target_servings"
	ParamNumber       = "number"
	ParamIngredient   = "ingredient"
	ParamNutrition    = "get_nutrition"
	ParamOriginalText = "original_text"
)

// IntentResult is the classification of one utterance.
type IntentResult struct {
	Intent     Intent         `json:"intent"`
	Parameters map[string]any `json:"parameters"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning,omitempty"`
	Source     Source         `json:"source,omitempty"`
}

func NewIntentResult(intent Intent, confidence float64, reasoning string, source Source) IntentResult {
	return IntentResult{
		Intent:     intent,
		Parameters: map[string]any{},
		Confidence: confidence,
		Reasoning:  reasoning,
		Source:     source,
	}
}

// With sets a parameter and returns the result for chaining.
func (r IntentResult) With(key string, value any) IntentResult {
	if r.Parameters == nil {
		r.Parameters = map[string]any{}
	}
	r.Parameters[key] = value
	return r
}

// String returns the parameter as text. Lists are joined with ", ".
func (r IntentResult) String(key string) string {
	v, ok := r.Parameters[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, fmt.Sprint(e))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// Int returns the parameter as an int, accepting JSON numbers and numeric strings.
func (r IntentResult) Int(key string) (int, bool) {
	v, ok := r.Parameters[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case float32:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	}
	return 0, false
}

// Bool reports a truthy parameter.
func (r IntentResult) Bool(key string) bool {
	switch t := r.Parameters[key].(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}
