// Package assistant answers classified intents against the recipe store.
package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/sous-chef/server/internal/agent/chef"
	"github.com/sous-chef/server/internal/agent/model"
	errx "github.com/sous-chef/server/internal/core/error"
	"github.com/sous-chef/server/internal/recipe"
	"github.com/sous-chef/server/internal/store"
	logx "github.com/sous-chef/server/pkg/logger"
)

// AwaitingIngredients marks a session whose next message answers "which ingredients?".
const AwaitingIngredients = "ingredients"

// Assistant dispatches an IntentResult to its handler. Handlers read and
// update the session they are given; saving it is up to the caller.
type Assistant struct {
	recipes  store.Repository
	searcher *store.Searcher
	chef     *chef.Chef
}

type Option func(*Assistant)

func WithSearcher(s *store.Searcher) Option {
	return func(a *Assistant) { a.searcher = s }
}

// New builds an assistant. c may be nil, in which case recipe creation and
// nutrition estimates are unavailable.
func New(recipes store.Repository, c *chef.Chef, opts ...Option) *Assistant {
	a := &Assistant{recipes: recipes, chef: c}
	for _, opt := range opts {
		opt(a)
	}
	if a.searcher == nil {
		a.searcher = store.NewSearcher(recipes, nil)
	}
	return a
}

type turn struct {
	session *model.Session
	intent  model.IntentResult
	input   string
}

type handler func(ctx context.Context, t turn) (*model.AgentResponse, error)

func (a *Assistant) handlers() map[model.Intent]handler {
	return map[model.Intent]handler{
		model.IntentCreateRecipe:      a.createRecipe,
		model.IntentSearchRecipes:     a.searchRecipes,
		model.IntentGetRecent:         a.getRecent,
		model.IntentGetDetails:        a.getDetails,
		model.IntentAnalyticsFrequent: a.analyticsFrequent,
		model.IntentAnalyticsCount:    a.analyticsCount,
		model.IntentScaleRecipe:       a.scaleRecipe,
		model.IntentNumberedReference: a.numberedReference,
		model.IntentHelp:              a.help,
	}
}

// Handle runs one turn. It never fails: handler errors become an error reply.
func (a *Assistant) Handle(ctx context.Context, sess *model.Session, ir model.IntentResult, input string) *model.AgentResponse {
	if sess == nil {
		sess = model.NewSession("")
	}
	// A plain answer to "what ingredients?" is taken as the ingredients.
	if sess.Awaiting == AwaitingIngredients && ir.Source == model.SourceDefault {
		ir = model.NewIntentResult(model.IntentCreateRecipe, ir.Confidence, "answer to ingredient question", ir.Source).
			With(model.ParamIngredients, input)
	}

	h, ok := a.handlers()[ir.Intent]
	if !ok {
		h = a.help
	}
	resp, err := h(ctx, turn{session: sess, intent: ir, input: input})
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", sess.ConversationID).Str("intent", string(ir.Intent)).Msg("intent handler failed")
		resp = &model.AgentResponse{
			Content:        fmt.Sprintf("I encountered an error while processing your request: %s", errx.MessageOf(err)),
			UpdatedContext: map[string]any{"error": err.Error()},
			ActionTaken:    model.ActionError,
		}
	}

	resp.ConversationID = sess.ConversationID
	resp.Intent = &ir
	sess.LastInput = input
	if resp.ActionTaken != model.ActionRequestIngredients {
		sess.Awaiting = ""
	}
	sess.Record(resp.ActionTaken)
	return resp
}

// current loads the session's recipe. A dangling id is cleared.
func (a *Assistant) current(ctx context.Context, sess *model.Session) *recipe.Recipe {
	if sess.CurrentRecipeID == "" {
		return nil
	}
	r, err := a.recipes.Get(ctx, sess.CurrentRecipeID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logx.Warn().Err(err).Str("recipe_id", sess.CurrentRecipeID).Msg("load current recipe")
		}
		sess.CurrentRecipeID = ""
		return nil
	}
	return r
}

// currentOrNewest falls back to the newest saved recipe.
func (a *Assistant) currentOrNewest(ctx context.Context, sess *model.Session) (*recipe.Recipe, error) {
	if r := a.current(ctx, sess); r != nil {
		return r, nil
	}
	recent, err := a.recipes.Recent(ctx, 1)
	if err != nil {
		return nil, errx.WrapStore(err, store.ErrNotFound)
	}
	if len(recent) == 0 {
		return nil, nil
	}
	return recent[0], nil
}

func setCurrent(sess *model.Session, r *recipe.Recipe, ctxMap map[string]any) {
	sess.CurrentRecipeID = r.ID
	ctxMap["current_recipe_id"] = r.ID
}

func reply(action, content string, success bool, ctxMap map[string]any) *model.AgentResponse {
	return &model.AgentResponse{
		Content:        content,
		UpdatedContext: ctxMap,
		Success:        success,
		ActionTaken:    action,
	}
}
