package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/sous-chef/server/internal/recipe"
	"github.com/sous-chef/server/internal/store"
	logx "github.com/sous-chef/server/pkg/logger"
)

const (
	defaultRecentLimit = 5
	listedIngredients  = 3
)

type SearchRecipesInput struct {
	Query flexString `json:"query"`
}

func searchRecipesTool(deps Deps) entry {
	info := &schema.ToolInfo{
		Name: ToolSearchRecipes,
		Desc: "Search the user's saved recipes by ingredients, name, cuisine or description. Returns up to five matches with a match score.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Search terms, e.g. 'chicken', 'spicy soup', 'vegetarian pasta'",
				Required: true,
			},
		}),
	}
	run := func(ctx context.Context, in SearchRecipesInput) (string, error) {
		q := in.Query.trimmed()
		if len(q) < 2 {
			return "To search recipes, I need specific search terms. What are you looking for? (ingredients, dish name, cuisine type, etc.)", nil
		}
		results, err := searcher(deps).Search(ctx, q, store.DefaultTopK)
		if err != nil {
			return "", fmt.Errorf("search recipes: %w", err)
		}
		if len(results) == 0 {
			return fmt.Sprintf("No recipes found matching '%s'", q), nil
		}
		lines := []string{fmt.Sprintf("Found %d matching recipes:\n", len(results))}
		for i, res := range results {
			lines = append(lines,
				fmt.Sprintf("%d. %s (match: %s)", i+1, res.Recipe.Title, Percent(res.Score)),
				fmt.Sprintf("   Serves: %d | Ingredients: %s", res.Recipe.Servings, firstIngredients(res.Recipe)),
			)
		}
		return strings.Join(lines, "\n"), nil
	}
	return entry{tool: newTextTool(info, run), signature: ToolSearchRecipes + "(query)", primary: "query",
		desc: "Search recipes by ingredients, name, or description"}
}

type RecipeTitleInput struct {
	RecipeTitle flexString `json:"recipe_title"`
}

func recipeTitleParams(desc string) *schema.ParamsOneOf {
	return schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"recipe_title": {Type: schema.String, Desc: desc, Required: true},
	})
}

func recipeDetailsTool(deps Deps) entry {
	info := &schema.ToolInfo{
		Name:        ToolRecipeDetails,
		Desc:        "Get the full recipe (ingredients, steps, tips) of a saved recipe by its title. Partial titles match.",
		ParamsOneOf: recipeTitleParams("Title or part of the title of the saved recipe"),
	}
	run := func(ctx context.Context, in RecipeTitleInput) (string, error) {
		title := in.RecipeTitle.trimmed()
		if title == "" {
			return "To show recipe details, I need the recipe name. Which recipe would you like to see the full instructions for?", nil
		}
		r, err := deps.Recipes.FindByTitle(ctx, title)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Recipe '%s' not found in database", title), nil
		}
		if err != nil {
			return "", fmt.Errorf("find recipe: %w", err)
		}
		CurrentFrom(ctx).Set(r)
		return r.DisplayString(), nil
	}
	return entry{tool: newTextTool(info, run), signature: ToolRecipeDetails + "(recipe_title)", primary: "recipe_title",
		desc: "Get full recipe details"}
}

type RecentRecipesInput struct {
	Limit flexInt `json:"limit,omitempty"`
}

func recentRecipesTool(deps Deps) entry {
	info := &schema.ToolInfo{
		Name: ToolRecentRecipes,
		Desc: "List the most recently created recipes with creation date and servings.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"limit": {Type: schema.Integer, Desc: "How many recipes to list (default 5)"},
		}),
	}
	run := func(ctx context.Context, in RecentRecipesInput) (string, error) {
		limit := int(in.Limit)
		if limit <= 0 {
			limit = defaultRecentLimit
		}
		recent, err := deps.Recipes.Recent(ctx, limit)
		if err != nil {
			return "", fmt.Errorf("recent recipes: %w", err)
		}
		if len(recent) == 0 {
			return "No recipes in database yet", nil
		}
		lines := []string{fmt.Sprintf("Here are your %d most recent recipes:\n", len(recent))}
		for i, r := range recent {
			lines = append(lines,
				fmt.Sprintf("%d. %s", i+1, r.Title),
				fmt.Sprintf("   Created: %s | Serves: %d", r.CreatedAt.Format("2006-01-02"), r.Servings),
			)
		}
		return strings.Join(lines, "\n"), nil
	}
	return entry{tool: newTextTool(info, run), signature: ToolRecentRecipes + "(limit)", primary: "limit",
		desc: "Show recent recipes"}
}

type CreateRecipeInput struct {
	Ingredients  flexString `json:"ingredients"`
	DietaryNeeds flexString `json:"dietary_needs,omitempty"`
}

func createRecipeTool(deps Deps) entry {
	info := &schema.ToolInfo{
		Name: ToolCreateRecipe,
		Desc: "Generate a brand new recipe from ingredients, save it, and return the full recipe. Use immediately for create/make/generate requests.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"ingredients": {
				Type:     schema.String,
				Desc:     "Comma separated main ingredients, e.g. 'chicken, tomatoes'",
				Required: true,
			},
			"dietary_needs": {
				Type: schema.String,
				Desc: "Dietary restrictions or preferences, e.g. 'vegetarian', 'gluten-free'",
			},
		}),
	}
	run := func(ctx context.Context, in CreateRecipeInput) (string, error) {
		ingredients := in.Ingredients.trimmed()
		if ingredients == "" {
			return "To create a recipe, I need ingredients. What ingredients would you like to use? For example: 'chicken, tomatoes, pasta' or 'beef, onions, potatoes'", nil
		}
		if deps.Chef == nil {
			return "Error creating recipe: no recipe model configured", nil
		}
		r, err := deps.Chef.CreateRecipe(ctx, ingredients, in.DietaryNeeds.trimmed())
		if err != nil {
			logx.Warn().Err(err).Str("tool_name", ToolCreateRecipe).Msg("recipe generation failed")
			return fmt.Sprintf("Error creating recipe: %v", err), nil
		}
		CurrentFrom(ctx).Set(r)
		return fmt.Sprintf("✅ Created and saved new recipe!\n\n%s\n\n📝 Recipe saved to database with ID: %s", r.DisplayString(), r.ID), nil
	}
	return entry{tool: newTextTool(info, run), signature: ToolCreateRecipe + "(ingredients, dietary_needs)", primary: "ingredients",
		desc: "Create new recipe from ingredients and show full details"}
}

func nutritionTool(deps Deps) entry {
	info := &schema.ToolInfo{
		Name:        ToolNutrition,
		Desc:        "Get per-serving nutrition (calories, protein, carbs, fat) of a saved recipe. Estimates and saves it when missing.",
		ParamsOneOf: recipeTitleParams("Title or part of the title of the saved recipe"),
	}
	run := func(ctx context.Context, in RecipeTitleInput) (string, error) {
		title := in.RecipeTitle.trimmed()
		if title == "" {
			return "To get nutrition information, I need a specific recipe name. Which recipe's nutrition would you like to see?", nil
		}
		r, err := deps.Recipes.FindByTitle(ctx, title)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Recipe '%s' not found", title), nil
		}
		if err != nil {
			return "", fmt.Errorf("find recipe: %w", err)
		}
		if deps.Chef != nil {
			if r, err = deps.Chef.EnsureNutrition(ctx, r); err != nil {
				return fmt.Sprintf("Error getting nutrition for '%s': %v", title, err), nil
			}
		}
		return r.NutritionString(), nil
	}
	return entry{tool: newTextTool(info, run), signature: ToolNutrition + "(recipe_title)", primary: "recipe_title",
		desc: "Get nutritional analysis"}
}

func similarRecipesTool(deps Deps) entry {
	info := &schema.ToolInfo{
		Name:        ToolSimilarRecipes,
		Desc:        "Find saved recipes similar to a given saved recipe.",
		ParamsOneOf: recipeTitleParams("Title of the reference recipe"),
	}
	run := func(ctx context.Context, in RecipeTitleInput) (string, error) {
		title := in.RecipeTitle.trimmed()
		if title == "" {
			return "To find similar recipes, I need a reference recipe name. Which recipe should I use as a reference?", nil
		}
		target, err := deps.Recipes.FindByTitle(ctx, title)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Recipe '%s' not found", title), nil
		}
		if err != nil {
			return "", fmt.Errorf("find recipe: %w", err)
		}
		similar, err := searcher(deps).FindSimilar(ctx, target, store.DefaultSimilarTopK)
		if err != nil {
			return "", fmt.Errorf("similar recipes: %w", err)
		}
		if len(similar) == 0 {
			return fmt.Sprintf("No similar recipes found for '%s'", title), nil
		}
		lines := []string{fmt.Sprintf("Recipes similar to '%s':\n", target.Title)}
		for i, res := range similar {
			lines = append(lines,
				fmt.Sprintf("%d. %s (similarity: %s)", i+1, res.Recipe.Title, Percent(res.Score)),
				fmt.Sprintf("   Serves: %d | Main ingredients: %s", res.Recipe.Servings, firstIngredients(res.Recipe)),
			)
		}
		return strings.Join(lines, "\n"), nil
	}
	return entry{tool: newTextTool(info, run), signature: ToolSimilarRecipes + "(recipe_title)", primary: "recipe_title",
		desc: "Find similar recipes"}
}

func searcher(deps Deps) *store.Searcher {
	if deps.Searcher != nil {
		return deps.Searcher
	}
	return store.NewSearcher(deps.Recipes, nil)
}

func firstIngredients(r *recipe.Recipe) string {
	return strings.Join(r.MainIngredients[:min(listedIngredients, len(r.MainIngredients))], ", ")
}

// Percent renders a 0..1 score as a whole percentage.
func Percent(score float64) string {
	return fmt.Sprintf("%.0f%%", score*100)
}
