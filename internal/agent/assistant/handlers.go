package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sous-chef/server/internal/agent/model"
	"github.com/sous-chef/server/internal/agent/router"
	errx "github.com/sous-chef/server/internal/core/error"
	"github.com/sous-chef/server/internal/recipe"
	"github.com/sous-chef/server/internal/store"
	logx "github.com/sous-chef/server/pkg/logger"
)

const (
	defaultRecentLimit = 5
	numberedListLimit  = 10
	shownSearchResults = 3
	listedCountMatches = 10
	listedMainIngreds  = 3
	dateLayout         = "2006-01-02"
	helpText           = `🍳 **AI Recipe Assistant - What I Can Do**

**Create Recipes:**
- "Create a chicken pasta recipe"
- "Make something with beef and vegetables"
- "Give me a salmon recipe for 4 people"

**Find Recipes:**
- "Show me recent recipes"
- "Find pasta recipes"
- "Search for chicken dishes"

**Recipe Analytics:**
- "What's my most frequent recipe?"
- "How many chicken recipes do I have?"
- "What do I cook most often?"

**Recipe Details:**
- "Show me the salmon recipe"
- "Show me the nutrition of the salmon recipe"
- "Scale this to 8 people"
- Just say a number (1, 2, 3) to select from lists

**Just talk naturally!** I understand many ways of asking for things. What would you like to do?`
)

var (
	digits    = regexp.MustCompile(`\d+`)
	titleCase = cases.Title(language.English)
)

func (a *Assistant) createRecipe(ctx context.Context, t turn) (*model.AgentResponse, error) {
	ingredients := t.intent.String(model.ParamIngredients)
	dietary := t.intent.String(model.ParamDietary)
	if ingredients == "" && a.chef != nil {
		ingredients = a.chef.ExtractIngredients(ctx, t.input)
	}
	if ingredients == "" {
		t.session.Awaiting = AwaitingIngredients
		return reply(model.ActionRequestIngredients,
			"I'd love to create a recipe for you! What ingredients would you like me to work with?",
			true, map[string]any{"awaiting": AwaitingIngredients}), nil
	}

	if a.chef == nil {
		return reply("create_recipe_failed",
			"I had trouble creating that recipe. Could you try with different ingredients or be more specific?",
			false, map[string]any{"error": "no recipe model configured"}), nil
	}
	r, err := a.chef.CreateRecipe(ctx, ingredients, dietary)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", t.session.ConversationID).Msg("create recipe failed")
		return reply("create_recipe_failed",
			"I had trouble creating that recipe. Could you try with different ingredients or be more specific?",
			false, map[string]any{"error": err.Error()}), nil
	}

	ctxMap := map[string]any{"recipe_id": r.ID}
	setCurrent(t.session, r, ctxMap)
	content := fmt.Sprintf("✅ I've created a delicious recipe for you!\n\n%s\n\n📝 Recipe saved to your collection.", r.DisplayString())
	return reply(string(model.IntentCreateRecipe), content, true, ctxMap), nil
}

func (a *Assistant) searchRecipes(ctx context.Context, t turn) (*model.AgentResponse, error) {
	query := t.intent.String(model.ParamQuery)
	if query == "" {
		query = t.input
	}

	n, err := a.recipes.Count(ctx)
	if err != nil {
		return nil, errx.WrapStore(err, store.ErrNotFound)
	}
	if n == 0 {
		return reply("no_recipes_found",
			"You don't have any recipes saved yet. Would you like me to create your first recipe?",
			true, map[string]any{"suggestion": "create_first_recipe"}), nil
	}

	results, err := a.searcher.Search(ctx, query, store.DefaultTopK)
	if err != nil {
		return nil, fmt.Errorf("search recipes: %w", err)
	}
	if len(results) == 0 {
		return reply("no_search_results",
			fmt.Sprintf("I couldn't find any recipes matching '%s'. Would you like me to create a new recipe with those ingredients instead?", query),
			true, map[string]any{"suggestion": "create_instead", "query": query}), nil
	}

	lines := []string{fmt.Sprintf("I found %d recipes matching '%s':\n", len(results), query)}
	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.Recipe.ID
		if i >= shownSearchResults {
			continue
		}
		lines = append(lines,
			fmt.Sprintf("%d. **%s** (match: %.0f%%)", i+1, res.Recipe.Title, res.Score*100),
			fmt.Sprintf("   Serves %d | Main ingredients: %s", res.Recipe.Servings, mainIngredients(res.Recipe, listedMainIngreds)),
		)
	}
	lines = append(lines, "\nWhich recipe would you like to see? Just tell me the number or name!")
	t.session.ListIDs = ids
	return reply(string(model.IntentSearchRecipes), strings.Join(lines, "\n"), true,
		map[string]any{"search_results": ids, "query": query}), nil
}

func (a *Assistant) getRecent(ctx context.Context, t turn) (*model.AgentResponse, error) {
	limit, ok := t.intent.Int(model.ParamLimit)
	if !ok || limit <= 0 {
		limit = defaultRecentLimit
	}
	recent, err := a.recipes.Recent(ctx, limit)
	if err != nil {
		return nil, errx.WrapStore(err, store.ErrNotFound)
	}
	if len(recent) == 0 {
		return reply("no_recent_recipes",
			"You haven't created any recipes yet. Let's make your first one! What ingredients do you have?",
			true, map[string]any{"suggestion": "create_first_recipe"}), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are your %d most recent recipes:\n\n", len(recent))
	ids := make([]string, len(recent))
	for i, r := range recent {
		ids[i] = r.ID
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&b, "   Created: %s | Serves: %d\n", r.CreatedAt.Format(dateLayout), r.Servings)
		fmt.Fprintf(&b, "   Main ingredients: %s\n\n", strings.Join(r.MainIngredients, ", "))
	}
	b.WriteString("Would you like to see the full details for any of these recipes? Just ask!")
	t.session.ListIDs = ids
	return reply(string(model.IntentGetRecent), b.String(), true, map[string]any{"recent_recipes": ids}), nil
}

func (a *Assistant) getDetails(ctx context.Context, t turn) (*model.AgentResponse, error) {
	notFound := reply("recipe_not_found",
		"I couldn't find that specific recipe. Could you be more specific about which recipe you'd like to see?",
		false, map[string]any{"need_clarification": true})

	var r *recipe.Recipe
	if name := t.intent.String(model.ParamRecipeName); name != "" {
		found, err := a.recipes.FindByTitle(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return notFound, nil
		}
		if err != nil {
			return nil, errx.WrapStore(err, store.ErrNotFound)
		}
		r = found
	} else {
		found, err := a.currentOrNewest(ctx, t.session)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return notFound, nil
		}
		r = found
	}

	content := "Here's your recipe:\n\n" + r.DisplayString()
	if t.intent.Bool(model.ParamNutrition) {
		if a.chef != nil {
			withNutrition, err := a.chef.EnsureNutrition(ctx, r)
			if err != nil {
				logx.Warn().Err(err).Str("recipe_id", r.ID).Msg("nutrition estimate failed")
			} else {
				r = withNutrition
			}
		}
		content += "\n\n" + r.NutritionString()
	}

	ctxMap := map[string]any{}
	setCurrent(t.session, r, ctxMap)
	return reply(string(model.IntentGetDetails), content, true, ctxMap), nil
}

func (a *Assistant) analyticsFrequent(ctx context.Context, t turn) (*model.AgentResponse, error) {
	all, err := a.recipes.All(ctx)
	if err != nil {
		return nil, errx.WrapStore(err, store.ErrNotFound)
	}
	freq, ok := store.MostFrequent(all)
	if !ok {
		return reply("no_recipes_for_analytics",
			"You don't have any recipes yet to analyze. Let's create some recipes first!",
			true, map[string]any{"suggestion": "create_recipes"}), nil
	}

	r := freq.Recipe
	var content string
	if freq.Count == 1 {
		content = fmt.Sprintf("All recipes appear only once. Here's a recent one:\n\n**%s**\nServes: %d | Main ingredients: %s",
			freq.Title, r.Servings, strings.Join(r.MainIngredients, ", "))
	} else {
		content = fmt.Sprintf("📊 **Most Frequent Recipe Analysis**\n\n"+
			"**Most frequent recipe:** %s\n"+
			"**Appears:** %d times in your database\n"+
			"**Serves:** %d\n"+
			"**Main ingredients:** %s\n\n"+
			"This recipe appears more often than others, suggesting it's one of your favorites!",
			freq.Title, freq.Count, r.Servings, strings.Join(r.MainIngredients, ", "))
	}

	ctxMap := map[string]any{"frequency_count": freq.Count}
	setCurrent(t.session, r, ctxMap)
	return reply(string(model.IntentAnalyticsFrequent), content, true, ctxMap), nil
}

func (a *Assistant) analyticsCount(ctx context.Context, t turn) (*model.AgentResponse, error) {
	ingredient := t.intent.String(model.ParamIngredient)
	if ingredient == "" {
		ingredient = router.ExtractCountIngredient(t.input)
	}
	if ingredient == "" {
		return reply("request_ingredient",
			"Please specify an ingredient to count. For example: 'How many recipes with chicken?'",
			true, map[string]any{"awaiting": "ingredient_for_counting"}), nil
	}

	all, err := a.recipes.All(ctx)
	if err != nil {
		return nil, errx.WrapStore(err, store.ErrNotFound)
	}
	if len(all) == 0 {
		return reply(string(model.IntentAnalyticsCount), "No recipes found in your database.", true,
			map[string]any{"analyzed_ingredient": ingredient, "count": 0}), nil
	}

	matches := store.CountWithIngredient(all, ingredient)
	ctxMap := map[string]any{"analyzed_ingredient": ingredient, "count": len(matches)}
	if len(matches) == 0 {
		return reply(string(model.IntentAnalyticsCount),
			fmt.Sprintf("No recipes found containing '%s'. Try searching for a different ingredient.", ingredient),
			true, ctxMap), nil
	}
	return reply(string(model.IntentAnalyticsCount), CountReport(ingredient, matches, len(all)), true, ctxMap), nil
}

// CountReport describes how many of total recipes contain ingredient.
func CountReport(ingredient string, matches []*recipe.Recipe, total int) string {
	count := len(matches)
	pct := float64(count) / float64(total) * 100

	var b strings.Builder
	fmt.Fprintf(&b, "📊 **Recipe Count for '%s'**\n\n", titleCase.String(ingredient))
	if count == 1 {
		r := matches[0]
		fmt.Fprintf(&b, "Found **1 recipe** containing '%s':\n\n", ingredient)
		fmt.Fprintf(&b, "• %s\n  Serves: %d | Created: %s", r.Title, r.Servings, r.CreatedAt.Format(dateLayout))
	} else {
		fmt.Fprintf(&b, "Found **%d recipes** containing '%s':\n\n", count, ingredient)
		for i, r := range matches[:min(count, listedCountMatches)] {
			fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
			fmt.Fprintf(&b, "   Serves: %d | Created: %s\n\n", r.Servings, r.CreatedAt.Format(dateLayout))
		}
		if count > listedCountMatches {
			fmt.Fprintf(&b, "... and %d more recipes.\n\n", count-listedCountMatches)
		}
		fmt.Fprintf(&b, "That's %d/%d recipes (%.1f%%) of your collection!", count, total, pct)
	}
	fmt.Fprintf(&b, "\n\nThis ingredient appears in %s of your recipes.", FrequencyDescription(pct))
	return b.String()
}

// FrequencyDescription words a share of the collection.
func FrequencyDescription(pct float64) string {
	switch {
	case pct >= 50:
		return "most"
	case pct >= 25:
		return "many"
	case pct >= 10:
		return "some"
	default:
		return "a few"
	}
}

func (a *Assistant) scaleRecipe(ctx context.Context, t turn) (*model.AgentResponse, error) {
	servings, ok := t.intent.Int(model.ParamServings)
	if !ok || servings <= 0 {
		servings = ServingsFromText(t.input)
	}
	if servings <= 0 {
		return reply("scale_clarification_needed",
			"I need to know which recipe to scale and for how many people. Could you be more specific?",
			false, map[string]any{"need_clarification": true}), nil
	}

	r, err := a.currentOrNewest(ctx, t.session)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return reply("scale_clarification_needed",
			"No recent recipe available to scale. Please create or select a recipe first.",
			false, map[string]any{"need_clarification": true}), nil
	}

	content, err := recipe.ScaleSummary(r, servings)
	if err != nil {
		return reply("scale_failed",
			"I had trouble scaling that recipe. Could you try again with a specific number of people?",
			false, map[string]any{"error": err.Error()}), nil
	}
	ctxMap := map[string]any{"scaled_servings": servings}
	setCurrent(t.session, r, ctxMap)
	return reply(string(model.IntentScaleRecipe), content, true, ctxMap), nil
}

// ServingsFromText reads the first number, or double/triple as 2/3. Zero
// means none was found.
func ServingsFromText(text string) int {
	if m := digits.FindString(text); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			return 0
		}
		return n
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "double"):
		return 2
	case strings.Contains(lower, "triple"):
		return 3
	}
	return 0
}

func (a *Assistant) numberedReference(ctx context.Context, t turn) (*model.AgentResponse, error) {
	n, _ := t.intent.Int(model.ParamNumber)

	list, err := a.numberedList(ctx, t.session)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return reply("no_numbered_list", "No recent recipes found.", false,
			map[string]any{"need_clarification": true}), nil
	}
	if n < 1 || n > len(list) {
		return reply("invalid_number",
			fmt.Sprintf("Recipe number %d not found. I only have %d recent recipes.", n, len(list)),
			false, map[string]any{"need_valid_number": true}), nil
	}

	r := list[n-1]
	ctxMap := map[string]any{}
	setCurrent(t.session, r, ctxMap)
	return reply(string(model.IntentNumberedReference), "Here's your selected recipe:\n\n"+r.DisplayString(), true, ctxMap), nil
}

// numberedList resolves the last list shown in the session, else the ten
// newest recipes. Ids that no longer resolve are skipped.
func (a *Assistant) numberedList(ctx context.Context, sess *model.Session) ([]*recipe.Recipe, error) {
	var out []*recipe.Recipe
	for _, id := range sess.ListIDs {
		r, err := a.recipes.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, errx.WrapStore(err, store.ErrNotFound)
		}
		out = append(out, r)
	}
	if len(out) > 0 {
		return out, nil
	}
	recent, err := a.recipes.Recent(ctx, numberedListLimit)
	if err != nil {
		return nil, errx.WrapStore(err, store.ErrNotFound)
	}
	return recent, nil
}

func (a *Assistant) help(context.Context, turn) (*model.AgentResponse, error) {
	return reply(string(model.IntentHelp), helpText, true, map[string]any{"showed_help": true}), nil
}

func mainIngredients(r *recipe.Recipe, n int) string {
	return strings.Join(r.MainIngredients[:min(n, len(r.MainIngredients))], ", ")
}
