package prompts

import (
	"context"
	_ "embed"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

var (
	//go:embed template/recipe_system.txt
	recipeSystemPrompt string
	//go:embed template/recipe_prompt.txt
	recipePrompt string
	//go:embed template/nutrition_prompt.txt
	nutritionPrompt string
	//go:embed template/ingredients_prompt.txt
	ingredientsPrompt string
)

// RenderRecipe builds the system and user messages that ask for a new recipe.
func RenderRecipe(ctx context.Context, ingredients, dietaryNeeds string) ([]*schema.Message, error) {
	if strings.TrimSpace(dietaryNeeds) == "" {
		dietaryNeeds = "none"
	}
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(strings.TrimSpace(recipeSystemPrompt)),
		schema.UserMessage(recipePrompt),
	)
	return render(ctx, "recipe", tpl, map[string]any{
		"Ingredients":  ingredients,
		"DietaryNeeds": dietaryNeeds,
	})
}

// RenderNutrition asks for a short nutritional breakdown of recipeText.
func RenderNutrition(ctx context.Context, recipeText string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(nutritionPrompt))
	return render(ctx, "nutrition", tpl, map[string]any{"Recipe": recipeText})
}

// RenderIngredientExtraction asks the model to list the ingredients in a request.
func RenderIngredientExtraction(ctx context.Context, input string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(ingredientsPrompt))
	return render(ctx, "ingredients", tpl, map[string]any{"Input": input})
}
