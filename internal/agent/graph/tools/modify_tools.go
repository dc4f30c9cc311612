package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/sous-chef/server/internal/recipe"
)

type ScaleCurrentInput struct {
	DesiredServings flexInt `json:"desired_servings"`
}

func scaleCurrentTool() entry {
	info := &schema.ToolInfo{
		Name: ToolScaleCurrent,
		Desc: "Scale the recipe currently being discussed to a different number of servings.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"desired_servings": {Type: schema.Integer, Desc: "Number of servings wanted", Required: true},
		}),
	}
	run := func(ctx context.Context, in ScaleCurrentInput) (string, error) {
		r := CurrentFrom(ctx).Get()
		if r == nil {
			return "No current recipe available to scale. Please select a recipe first.", nil
		}
		if in.DesiredServings <= 0 {
			return "Please provide a valid number of servings (greater than 0).", nil
		}
		out, err := recipe.ScaleSummary(r, int(in.DesiredServings))
		if err != nil {
			return fmt.Sprintf("Error scaling current recipe: %v", err), nil
		}
		return out, nil
	}
	return entry{tool: newTextTool(info, run), signature: ToolScaleCurrent + "(desired_servings)", primary: "desired_servings",
		desc: "Scale current recipe for different servings"}
}

type CalculateScalingInput struct {
	OriginalServings flexInt    `json:"original_servings"`
	DesiredServings  flexInt    `json:"desired_servings"`
	Ingredients      flexString `json:"ingredients"`
}

func calculateScalingTool() entry {
	info := &schema.ToolInfo{
		Name: ToolCalculateScaling,
		Desc: "Scale an explicit ingredient list from one serving count to another.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"original_servings": {Type: schema.Integer, Desc: "Servings the amounts are for", Required: true},
			"desired_servings":  {Type: schema.Integer, Desc: "Servings wanted", Required: true},
			"ingredients": {
				Type:     schema.String,
				Desc:     `JSON list of ingredients, e.g. [{"name":"rice","amount":"2","unit":"cups"}]`,
				Required: true,
			},
		}),
	}
	run := func(_ context.Context, in CalculateScalingInput) (string, error) {
		var ings []recipe.Ingredient
		if err := json.Unmarshal([]byte(in.Ingredients.trimmed()), &ings); err != nil {
			return fmt.Sprintf("Error scaling recipe: %v", err), nil
		}
		lines, err := recipe.ScaleIngredients(ings, int(in.OriginalServings), int(in.DesiredServings))
		if err != nil {
			return fmt.Sprintf("Error scaling recipe: %v", err), nil
		}
		return fmt.Sprintf("Scaled recipe from %d to %d servings:\n", in.OriginalServings, in.DesiredServings) +
			strings.Join(lines, "\n"), nil
	}
	return entry{tool: newTextTool(info, run), signature: ToolCalculateScaling + "(original_servings, desired_servings, ingredients)",
		desc: "Scale an ingredient list between serving sizes"}
}

// substitutes is matched in order against the requested ingredient.
var substitutes = []struct {
	ingredient string
	byNeed     map[string][]string
}{
	{"butter", map[string][]string{
		"vegan":   {"coconut oil", "olive oil", "vegan butter", "avocado"},
		"healthy": {"greek yogurt", "applesauce", "mashed banana"},
		"general": {"margarine", "oil", "shortening"},
	}},
	{"eggs", map[string][]string{
		"vegan":   {"flax eggs (1 tbsp ground flax + 3 tbsp water per egg)", "chia eggs", "mashed banana", "applesauce"},
		"general": {"egg substitute", "silken tofu"},
	}},
	{"milk", map[string][]string{
		"vegan":        {"almond milk", "soy milk", "oat milk", "coconut milk"},
		"lactose-free": {"lactose-free milk", "almond milk", "soy milk"},
		"general":      {"water + butter", "evaporated milk", "cream"},
	}},
	{"flour", map[string][]string{
		"gluten-free": {"almond flour", "rice flour", "oat flour", "coconut flour"},
		"general":     {"whole wheat flour", "bread flour", "cake flour"},
	}},
	{"sugar", map[string][]string{
		"healthy": {"honey", "maple syrup", "stevia", "dates"},
		"general": {"brown sugar", "powdered sugar", "molasses"},
	}},
}

type SubstitutesInput struct {
	Ingredient         flexString `json:"ingredient"`
	DietaryRestriction flexString `json:"dietary_restriction,omitempty"`
}

func substitutesTool() entry {
	info := &schema.ToolInfo{
		Name: ToolSubstitutes,
		Desc: "Suggest substitutes for an ingredient, optionally for a dietary restriction (vegan, gluten-free, lactose-free, healthy).",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"ingredient":          {Type: schema.String, Desc: "Ingredient to replace", Required: true},
			"dietary_restriction": {Type: schema.String, Desc: "Optional restriction, e.g. vegan"},
		}),
	}
	run := func(_ context.Context, in SubstitutesInput) (string, error) {
		ingredient := in.Ingredient.trimmed()
		if ingredient == "" {
			return "To find substitutes, I need to know which ingredient you want to substitute. What ingredient are you looking to replace?", nil
		}
		return Substitutes(ingredient, in.DietaryRestriction.trimmed()), nil
	}
	return entry{tool: newTextTool(info, run), signature: ToolSubstitutes + "(ingredient, dietary_restriction)", primary: "ingredient",
		desc: "Find ingredient substitutes"}
}

// Substitutes looks ingredient up in the substitution table. An unknown
// restriction falls back to the general options.
func Substitutes(ingredient, restriction string) string {
	lower := strings.ToLower(ingredient)
	restriction = strings.ToLower(restriction)
	for _, s := range substitutes {
		if !strings.Contains(lower, s.ingredient) {
			continue
		}
		options, ok := s.byNeed[restriction]
		if restriction == "" || !ok {
			options = s.byNeed["general"]
		}
		if len(options) == 0 {
			continue
		}
		lines := make([]string, len(options))
		for i, o := range options {
			lines[i] = "• " + o
		}
		return fmt.Sprintf("Substitutes for %s:\n", ingredient) + strings.Join(lines, "\n")
	}
	return fmt.Sprintf("No specific substitutes found for %s. Consider using similar ingredients or omitting if optional.", ingredient)
}
