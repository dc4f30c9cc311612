// Package tools exposes the recipe assistant's capabilities as Eino tools.
// They answer in chat-ready text, which both the ReAct loop and the native
// tool-calling agent hand back to the model as observations.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/sous-chef/server/internal/agent/chef"
	"github.com/sous-chef/server/internal/mealdb"
	"github.com/sous-chef/server/internal/store"
)

const (
	ToolSearchRecipes    = "search_recipe_database"
	ToolRecipeDetails    = "get_recipe_details"
	ToolRecentRecipes    = "get_recent_recipes"
	ToolCreateRecipe     = "create_new_recipe"
	ToolNutrition        = "get_nutrition_info"
	ToolSimilarRecipes   = "find_similar_recipes"
	ToolScaleCurrent     = "scale_current_recipe"
	ToolCalculateScaling = "calculate_recipe_scaling"
	ToolSubstitutes      = "find_ingredient_substitutes"
	ToolSearchOnline     = "search_online_recipes"
	ToolCookingTime      = "estimate_cooking_time"
)

// Deps are the services the tools call. Searcher and MealDB may be nil.
type Deps struct {
	Recipes  store.Repository
	Searcher *store.Searcher
	Chef     *chef.Chef
	MealDB   *mealdb.Client
}

type entry struct {
	tool tool.InvokableTool
	// signature is the "name(params)" form used in text prompts.
	signature string
	// primary receives a bare ReAct argument.
	primary string
	desc    string
}

// Set is the full tool belt, in prompt order.
type Set struct {
	entries []entry
	byName  map[string]entry
}

func New(deps Deps) *Set {
	s := &Set{byName: make(map[string]entry)}
	for _, e := range []entry{
		searchRecipesTool(deps),
		recipeDetailsTool(deps),
		recentRecipesTool(deps),
		createRecipeTool(deps),
		nutritionTool(deps),
		similarRecipesTool(deps),
		scaleCurrentTool(),
		calculateScalingTool(),
		substitutesTool(),
		searchOnlineTool(deps),
		cookingTimeTool(),
	} {
		s.entries = append(s.entries, e)
		s.byName[e.name()] = e
	}
	return s
}

func (e entry) name() string {
	name, _, _ := strings.Cut(e.signature, "(")
	return name
}

// BaseTools returns the tools for compose.ToolsNodeConfig.
func (s *Set) BaseTools() []tool.BaseTool {
	out := make([]tool.BaseTool, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.tool
	}
	return out
}

// Infos returns the schemas to bind to a tool-calling model.
func (s *Set) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	out := make([]*schema.ToolInfo, 0, len(s.entries))
	for _, e := range s.entries {
		info, err := e.tool.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info %s: %w", e.name(), err)
		}
		out = append(out, info)
	}
	return out, nil
}

// Describe lists "name(params): description" lines for text prompts.
func (s *Set) Describe() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.signature + ": " + e.desc
	}
	return out
}

func (s *Set) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Run executes a tool with string arguments as parsed from model text. A lone
// "query" argument is handed to the tool's main parameter.
func (s *Set) Run(ctx context.Context, name string, args map[string]string) (string, error) {
	e, ok := s.byName[name]
	if !ok {
		return fmt.Sprintf("Unknown tool: %s", name), nil
	}
	if q, only := args["query"]; only && len(args) == 1 && e.primary != "" && e.primary != "query" {
		args = map[string]string{e.primary: q}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode %s arguments: %w", name, err)
	}
	return e.tool.InvokableRun(ctx, string(raw))
}

// textTool is an InvokableTool that decodes its JSON arguments into In and
// answers with plain text.
type textTool[In any] struct {
	info *schema.ToolInfo
	run  func(ctx context.Context, in In) (string, error)
}

var _ tool.InvokableTool = (*textTool[struct{}])(nil)

func newTextTool[In any](info *schema.ToolInfo, run func(context.Context, In) (string, error)) *textTool[In] {
	return &textTool[In]{info: info, run: run}
}

func (t *textTool[In]) Info(context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

func (t *textTool[In]) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var in In
	if strings.TrimSpace(argumentsInJSON) != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &in); err != nil {
			return "", fmt.Errorf("%s: decode arguments: %w", t.info.Name, err)
		}
	}
	return t.run(ctx, in)
}

// flexInt accepts 4, 4.0 and "4". Anything unreadable decodes as zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}

// flexString accepts strings, numbers and lists (joined with ", ").
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = ""
	case string:
		*f = flexString(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		*f = flexString(strings.Join(parts, ", "))
	default:
		*f = flexString(fmt.Sprint(t))
	}
	return nil
}

func (f flexString) trimmed() string {
	return strings.TrimSpace(string(f))
}
