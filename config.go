package main

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/sous-chef/server/internal/agent/model"
	"github.com/sous-chef/server/internal/core"
	"github.com/sous-chef/server/internal/embedding"
	"github.com/sous-chef/server/internal/mealdb"
	"github.com/sous-chef/server/internal/store"
	logx "github.com/sous-chef/server/pkg/logger"
	pkgredis "github.com/sous-chef/server/pkg/redis"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`
	HTTPAddr    string           `envconfig:"HTTP_ADDR" default:":8080"`

	// Infrastructure
	Redis     pkgredis.Config
	Store     store.Config
	MealDB    mealdb.Config
	Embedding embedding.Config

	// LLM provider
	LLM model.LLMConfig

	// Agent configs
	Agent        model.AgentConfig
	Classifier   model.ClassifierModelConfig
	Response     model.ResponseModelConfig
	Recipe       model.RecipeModelConfig
	Conversation model.ConversationConfig
}

func loadConfig() (*AppConfig, error) {
	if err := godotenv.Load(".env"); err != nil {
		logx.Debug().Err(err).Msg("no .env file loaded")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	// Embeddings share the chat endpoint unless told otherwise.
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.OpenAIAPIKey
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.LLM.OpenAIBaseURL
	}
	return &cfg, nil
}
