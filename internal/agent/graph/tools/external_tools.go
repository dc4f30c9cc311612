package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

type SearchOnlineInput struct {
	Query flexString `json:"query"`
}

func searchOnlineTool(deps Deps) entry {
	info := &schema.ToolInfo{
		Name: ToolSearchOnline,
		Desc: "Search TheMealDB for a published recipe by dish name. Returns the first match with a short preview.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "Dish name, e.g. 'lasagne'", Required: true},
		}),
	}
	run := func(ctx context.Context, in SearchOnlineInput) (string, error) {
		q := in.Query.trimmed()
		if len(q) < 2 {
			return "To search online recipes, I need specific search terms. What type of recipe are you looking for?", nil
		}
		if deps.MealDB == nil {
			return "Unable to search online recipes at this time.", nil
		}
		return deps.MealDB.Lookup(ctx, q), nil
	}
	return entry{tool: newTextTool(info, run), signature: ToolSearchOnline + "(query)", primary: "query",
		desc: "Search web for recipes"}
}

type cookingTimes struct {
	prep, cook int
}

var dishTimes = map[string]cookingTimes{
	"stir-fry":    {prep: 15, cook: 10},
	"roast":       {prep: 20, cook: 60},
	"soup":        {prep: 20, cook: 30},
	"salad":       {prep: 15, cook: 0},
	"pasta":       {prep: 10, cook: 20},
	"grill":       {prep: 15, cook: 15},
	"bake":        {prep: 20, cook: 35},
	"slow-cooker": {prep: 15, cook: 240},
}

var defaultTimes = cookingTimes{prep: 20, cook: 30}

// proteinAdjustments are minutes added to cooking, first match wins.
var proteinAdjustments = []struct {
	protein string
	minutes int
}{
	{"chicken", 0},
	{"beef", 5},
	{"pork", 5},
	{"fish", -5},
	{"tofu", -10},
	{"beans", 10},
}

type CookingTimeInput struct {
	DishType      flexString `json:"dish_type"`
	CookingMethod flexString `json:"cooking_method,omitempty"`
	MainProtein   flexString `json:"main_protein,omitempty"`
}

func cookingTimeTool() entry {
	info := &schema.ToolInfo{
		Name: ToolCookingTime,
		Desc: "Estimate prep, cooking and total time for a dish type, adjusted for the main protein.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"dish_type":      {Type: schema.String, Desc: "stir-fry, roast, soup, salad, pasta, grill, bake or slow-cooker", Required: true},
			"cooking_method": {Type: schema.String, Desc: "oven, stovetop, slow-cooker, ..."},
			"main_protein":   {Type: schema.String, Desc: "Optional main protein, e.g. beef"},
		}),
	}
	run := func(_ context.Context, in CookingTimeInput) (string, error) {
		dish := in.DishType.trimmed()
		if dish == "" {
			return "To estimate cooking time, I need to know what dish you're making. What type of dish is it?", nil
		}
		return EstimateCookingTime(dish, in.MainProtein.trimmed()), nil
	}
	return entry{tool: newTextTool(info, run), signature: ToolCookingTime + "(dish_type, cooking_method)", primary: "dish_type",
		desc: "Estimate cooking times"}
}

// EstimateCookingTime looks the dish up in the timing table.
func EstimateCookingTime(dish, protein string) string {
	t, ok := dishTimes[strings.ToLower(dish)]
	if !ok {
		t = defaultTimes
	}
	if protein != "" {
		lower := strings.ToLower(protein)
		for _, adj := range proteinAdjustments {
			if strings.Contains(lower, adj.protein) {
				t.cook += adj.minutes
				break
			}
		}
	}
	return fmt.Sprintf("Estimated times for %s:\n• Prep time: %d minutes\n• Cooking time: %d minutes\n• Total time: %d minutes",
		dish, t.prep, t.cook, t.prep+t.cook)
}
