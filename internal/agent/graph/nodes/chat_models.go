package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/sous-chef/server/internal/agent/model"
	"github.com/sous-chef/server/internal/llm"
	logx "github.com/sous-chef/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	LLM        model.LLMConfig
	Classifier model.ClassifierModelConfig
	Response   model.ResponseModelConfig
	Recipe     model.RecipeModelConfig
}

// ChatModels holds the three chat models the assistant talks to: the intent
// classifier, the tool-calling responder and the recipe writer.
type ChatModels struct {
	Classifier einomodel.ToolCallingChatModel
	Response   einomodel.ToolCallingChatModel
	Recipe     einomodel.ToolCallingChatModel

	ClassifierModelName string
	ResponseModelName   string
	RecipeModelName     string
}

type modelSpec struct {
	name        string
	temperature float32
	maxTokens   int
}

func (c ChatModelConfig) specs() (classifier, response, recipe modelSpec) {
	return modelSpec{c.Classifier.Model, c.Classifier.Temperature, c.Classifier.MaxTokens},
		modelSpec{c.Response.Model, c.Response.Temperature, c.Response.MaxTokens},
		modelSpec{c.Recipe.Model, c.Recipe.Temperature, c.Recipe.MaxTokens}
}

// NewChatModels creates the chat models for the configured provider.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	var build func(modelSpec) (einomodel.ToolCallingChatModel, error)

	switch config.LLM.Provider {
	case model.ProviderGemini:
		clientCfg := &genai.ClientConfig{
			APIKey:  config.LLM.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if config.LLM.GeminiBaseURL != "" {
			clientCfg.HTTPOptions.BaseURL = config.LLM.GeminiBaseURL
		}
		client, err := genai.NewClient(ctx, clientCfg)
		if err != nil {
			logx.Error().Err(err).Msg("Error creating Gemini client")
			return nil, fmt.Errorf("error creating Gemini client: %w", err)
		}
		build = func(s modelSpec) (einomodel.ToolCallingChatModel, error) {
			return gemini.NewChatModel(ctx, &gemini.Config{
				Client:      client,
				Model:       s.name,
				Temperature: &s.temperature,
				MaxTokens:   &s.maxTokens,
				ThinkingConfig: &genai.ThinkingConfig{
					IncludeThoughts: false,
					ThinkingBudget:  genai.Ptr(int32(1024)),
				},
			})
		}
	case model.ProviderOpenAI, "":
		timeout := time.Duration(config.LLM.TimeoutSec) * time.Second
		build = func(s modelSpec) (einomodel.ToolCallingChatModel, error) {
			return llm.NewChatModel(llm.Config{
				APIKey:      config.LLM.OpenAIAPIKey,
				BaseURL:     config.LLM.OpenAIBaseURL,
				Model:       s.name,
				Temperature: &s.temperature,
				MaxTokens:   &s.maxTokens,
				Timeout:     timeout,
			})
		}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.LLM.Provider)
	}

	classifierSpec, responseSpec, recipeSpec := config.specs()
	classifier, err := build(classifierSpec)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}
	response, err := build(responseSpec)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}
	recipe, err := build(recipeSpec)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating recipe model")
		return nil, fmt.Errorf("error creating recipe model: %w", err)
	}

	logx.Debug().
		Str("provider", string(config.LLM.Provider)).
		Str("classifier", classifierSpec.name).
		Str("response", responseSpec.name).
		Str("recipe", recipeSpec.name).
		Msg("Chat models ready")

	return &ChatModels{
		Classifier:          classifier,
		Response:            response,
		Recipe:              recipe,
		ClassifierModelName: classifierSpec.name,
		ResponseModelName:   responseSpec.name,
		RecipeModelName:     recipeSpec.name,
	}, nil
}
