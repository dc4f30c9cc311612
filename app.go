package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sous-chef/server/internal/agent/assistant"
	"github.com/sous-chef/server/internal/agent/chef"
	"github.com/sous-chef/server/internal/agent/classifier"
	"github.com/sous-chef/server/internal/agent/graph"
	"github.com/sous-chef/server/internal/agent/graph/nodes"
	"github.com/sous-chef/server/internal/agent/graph/tools"
	"github.com/sous-chef/server/internal/agent/model"
	"github.com/sous-chef/server/internal/agent/react"
	"github.com/sous-chef/server/internal/agent/repo"
	"github.com/sous-chef/server/internal/agent/router"
	"github.com/sous-chef/server/internal/embedding"
	"github.com/sous-chef/server/internal/mealdb"
	"github.com/sous-chef/server/internal/server"
	"github.com/sous-chef/server/internal/store"
	logx "github.com/sous-chef/server/pkg/logger"
)

// app holds every service a command may need.
type app struct {
	cfg *AppConfig

	rdb        *redis.Client
	recipes    store.Repository
	searcher   *store.Searcher
	models     *nodes.ChatModels
	router     *router.Router
	classifier *classifier.Classifier
	stores     repo.Stores
	runner     graph.Runner
}

func newApp(ctx context.Context, cfg *AppConfig) (*app, error) {
	a := &app{cfg: cfg}

	recipes, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open recipe store: %w", err)
	}
	a.recipes = recipes

	var embedder store.Embedder
	if cfg.Embedding.Enabled() {
		e, err := embedding.NewOpenAIEmbedder(cfg.Embedding)
		if err != nil {
			a.close()
			return nil, err
		}
		embedder = e
	}
	a.searcher = store.NewSearcher(recipes, embedder)

	a.models, err = nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		LLM:        cfg.LLM,
		Classifier: cfg.Classifier,
		Response:   cfg.Response,
		Recipe:     cfg.Recipe,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.router = router.New(recipes, router.WithFallback(router.NewLLMFallback(a.models.Classifier)))
	a.classifier, err = classifier.New(a.models.Classifier)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.Redis.Enabled() {
		a.rdb, err = cfg.Redis.New(ctx)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.stores = repo.New(a.rdb, cfg.Conversation.TTLDuration(), cfg.Conversation.MaxTurns*2)
	} else {
		logx.Warn().Msg("REDIS_URL not set, conversations are kept in memory")
		a.stores = repo.New(nil, cfg.Conversation.TTLDuration(), cfg.Conversation.MaxTurns*2)
	}
	return a, nil
}

// buildRunner compiles the graph for mode.
func (a *app) buildRunner(ctx context.Context, mode model.AgentMode) error {
	cook := chef.New(a.models.Recipe, a.recipes, chef.WithSearcher(a.searcher))
	set := tools.New(tools.Deps{
		Recipes:  a.recipes,
		Searcher: a.searcher,
		Chef:     cook,
		MealDB:   mealdb.NewClient(a.cfg.MealDB),
	})

	cfg := graph.Config{
		Mode:             mode,
		Conversation:     a.cfg.Conversation,
		ConversationRepo: a.stores.Conversations,
		Sessions:         a.stores.Sessions,
		Recipes:          a.recipes,

		Router:              a.router,
		Classifier:          a.classifier,
		ClassifierModel:     a.models.Classifier,
		ClassifierModelName: a.models.ClassifierModelName,
		Assistant:           assistant.New(a.recipes, cook, assistant.WithSearcher(a.searcher)),

		Tools:             set,
		ResponseModel:     a.models.Response,
		ResponseModelName: a.models.ResponseModelName,
	}
	if mode == model.ModeReact {
		agent, err := react.New(a.models.Response, set,
			react.WithMaxIterations(a.cfg.Agent.MaxIterations),
			react.WithRecipes(a.recipes))
		if err != nil {
			return err
		}
		cfg.React = agent
	}

	runner, err := graph.BuildRunner(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build %s graph: %w", mode, err)
	}
	a.runner = runner
	return nil
}

func (a *app) server() *server.Server {
	return server.New(server.Deps{
		Environment:   a.cfg.Environment,
		Runner:        a.runner,
		Recipes:       a.recipes,
		Searcher:      a.searcher,
		Router:        a.router,
		Classifier:    a.classifier,
		Conversations: a.stores.Conversations,
	})
}

func (a *app) close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			logx.Warn().Err(err).Msg("close redis")
		}
	}
	if a.recipes != nil {
		if err := a.recipes.Close(); err != nil {
			logx.Warn().Err(err).Msg("close recipe store")
		}
	}
}
