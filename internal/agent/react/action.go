package react

import (
	"regexp"
	"slices"
	"strings"

	"github.com/sous-chef/server/internal/agent/graph/tools"
)

// Action is one tool invocation requested by the model.
type Action struct {
	Tool string
	Args map[string]string
}

var actionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ACTION:\s*(\w+)\((.*?)\)`),
	regexp.MustCompile(`(?i)ACTION:\s*(\w+)\s*\((.*?)\)`),
	regexp.MustCompile(`(?i)I will use (\w+)\((.*?)\)`),
	regexp.MustCompile(`(?i)Let me (\w+)\((.*?)\)`),
}

var (
	createWords       = []string{"create", "make", "new recipe", "new", "generate", "cook"}
	instructionWords  = []string{"steps", "instructions", "how to cook", "recipe information", "cooking"}
	searchWords       = []string{"search", "find", "show me", "list"}
	knownIngredients  = []string{"pasta", "chicken", "beef", "tomato", "tomatoes", "rice", "fish"}
	defaultIngredient = "pasta"
)

// ParseAction finds an explicit "ACTION: tool(args)" in a model turn.
func ParseAction(text string) (Action, bool) {
	for _, re := range actionPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return Action{Tool: m[1], Args: parseArgs(m[2])}, true
	}
	return Action{}, false
}

// parseArgs reads "k=v, k2=v2". Text without "=" is a single query.
func parseArgs(s string) map[string]string {
	args := make(map[string]string)
	s = strings.TrimSpace(s)
	if s == "" {
		return args
	}
	if !strings.Contains(s, "=") {
		args["query"] = unquote(s)
		return args
	}
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		args[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return args
}

func unquote(s string) string {
	return strings.Trim(strings.Trim(s, `"`), "'")
}

// InferAction guesses a tool from keywords when the model forgot the ACTION
// syntax. Creation wins over instructions, instructions over search. A
// get_recipe_details guess carries no title; the caller fills one in.
func InferAction(text string) (Action, bool) {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, createWords):
		return Action{Tool: tools.ToolCreateRecipe, Args: map[string]string{
			"ingredients":   inferIngredients(lower),
			"dietary_needs": "",
		}}, true
	case containsAny(lower, instructionWords):
		return Action{Tool: tools.ToolRecipeDetails, Args: map[string]string{"recipe_title": ""}}, true
	case containsAny(lower, searchWords):
		if strings.Contains(lower, "chicken") {
			return Action{Tool: tools.ToolSearchRecipes, Args: map[string]string{"query": "chicken"}}, true
		}
		if strings.Contains(lower, "recent") {
			return Action{Tool: tools.ToolRecentRecipes, Args: map[string]string{"limit": "5"}}, true
		}
	}
	return Action{}, false
}

func inferIngredients(lower string) string {
	if parts := strings.Split(lower, "with"); len(parts) > 1 {
		return strings.TrimSpace(parts[1])
	}
	if strings.Contains(lower, "pasta") && strings.Contains(lower, "tomato") {
		return "pasta, tomatoes"
	}
	var found []string
	for _, w := range strings.Fields(lower) {
		if slices.Contains(knownIngredients, w) {
			found = append(found, w)
		}
	}
	if len(found) == 0 {
		return defaultIngredient
	}
	return strings.Join(found, ", ")
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
