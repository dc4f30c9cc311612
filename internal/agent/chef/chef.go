// Package chef talks to the recipe-writing model: new recipes, nutrition
// estimates and ingredient extraction.
package chef

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/sous-chef/server/internal/agent/graph/prompts"
	errx "github.com/sous-chef/server/internal/core/error"
	"github.com/sous-chef/server/internal/recipe"
	"github.com/sous-chef/server/internal/store"
	logx "github.com/sous-chef/server/pkg/logger"
)

var ErrEmptyReply = errors.New("model returned an empty reply")

type Chef struct {
	model    einomodel.BaseChatModel
	recipes  store.Repository
	searcher *store.Searcher
}

type Option func(*Chef)

// WithSearcher indexes every new recipe for semantic search.
func WithSearcher(s *store.Searcher) Option {
	return func(c *Chef) { c.searcher = s }
}

func New(m einomodel.BaseChatModel, recipes store.Repository, opts ...Option) *Chef {
	c := &Chef{model: m, recipes: recipes}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate asks the model for a recipe and returns its raw text.
func (c *Chef) Generate(ctx context.Context, ingredients, dietaryNeeds string) (string, error) {
	msgs, err := prompts.RenderRecipe(ctx, ingredients, dietaryNeeds)
	if err != nil {
		return "", err
	}
	return c.complete(ctx, msgs)
}

// CreateRecipe generates, parses and stores a new recipe.
func (c *Chef) CreateRecipe(ctx context.Context, ingredients, dietaryNeeds string) (*recipe.Recipe, error) {
	text, err := c.Generate(ctx, ingredients, dietaryNeeds)
	if err != nil {
		return nil, err
	}
	r := recipe.FromLLMResponse(text, ingredients, dietaryNeeds)
	id, err := c.recipes.Add(ctx, r)
	if err != nil {
		return nil, errx.WrapStore(err, store.ErrNotFound)
	}
	r.ID = id
	if c.searcher != nil {
		if err := c.searcher.Index(ctx, r); err != nil {
			logx.Warn().Err(err).Str("recipe_id", id).Msg("could not index new recipe")
		}
	}
	logx.Info().Str("recipe_id", id).Str("title", r.Title).Msg("recipe created")
	return r, nil
}

// EnsureNutrition returns r with nutrition attached, asking the model and
// saving the result when r has no calorie figure yet.
func (c *Chef) EnsureNutrition(ctx context.Context, r *recipe.Recipe) (*recipe.Recipe, error) {
	if r.Nutrition.HasCalories() {
		return r, nil
	}
	source := r.RawText
	if source == "" {
		source = r.DisplayString()
	}
	msgs, err := prompts.RenderNutrition(ctx, source)
	if err != nil {
		return nil, err
	}
	text, err := c.complete(ctx, msgs)
	if err != nil {
		return nil, err
	}
	updated := recipe.AttachNutrition(r.Clone(), text)
	if err := c.recipes.Update(ctx, updated); err != nil {
		return nil, errx.WrapStore(err, store.ErrNotFound)
	}
	return updated, nil
}

// ExtractIngredients asks the model which ingredients a request mentions.
// Any failure yields "".
func (c *Chef) ExtractIngredients(ctx context.Context, input string) string {
	msgs, err := prompts.RenderIngredientExtraction(ctx, input)
	if err != nil {
		logx.Warn().Err(err).Msg("ingredient prompt")
		return ""
	}
	text, err := c.complete(ctx, msgs)
	if err != nil {
		logx.Warn().Err(err).Msg("ingredient extraction failed")
		return ""
	}
	return cleanIngredients(text)
}

func cleanIngredients(s string) string {
	s = strings.TrimSpace(s)
	if first, _, ok := strings.Cut(s, "\n"); ok {
		s = strings.TrimSpace(first)
	}
	return strings.TrimSpace(strings.Trim(s, `"'`))
}

func (c *Chef) complete(ctx context.Context, msgs []*schema.Message) (string, error) {
	if c.model == nil {
		return "", errx.WrapLLM(fmt.Errorf("no recipe model configured"))
	}
	out, err := c.model.Generate(ctx, msgs)
	if err != nil {
		return "", errx.WrapLLM(err)
	}
	text := strings.TrimSpace(out.Content)
	if text == "" {
		return "", errx.WrapLLM(ErrEmptyReply)
	}
	return text, nil
}
