package model

import (
	"fmt"
	"strings"
	"time"
)

// ================ Config ================

// AgentMode selects how an utterance becomes an action.
type AgentMode string

const (
	ModeRules  AgentMode = "rules"
	ModeLLM    AgentMode = "llm"
	ModeHybrid AgentMode = "hybrid"
	ModeReact  AgentMode = "react"
	ModeTools  AgentMode = "tools"
)

var agentModes = []AgentMode{ModeRules, ModeLLM, ModeHybrid, ModeReact, ModeTools}

func (m AgentMode) Valid() bool {
	for _, v := range agentModes {
		if m == v {
			return true
		}
	}
	return false
}

// Decode implements envconfig.Decoder.
func (m *AgentMode) Decode(value string) error {
	mode := AgentMode(strings.ToLower(strings.TrimSpace(value)))
	if mode == "" {
		mode = ModeHybrid
	}
	if !mode.Valid() {
		return fmt.Errorf("unknown agent mode %q (want one of %v)", value, agentModes)
	}
	*m = mode
	return nil
}

type AgentConfig struct {
	Mode AgentMode `envconfig:"AGENT_MODE" default:"hybrid"`
	// MaxIterations bounds the text ReAct loop.
	MaxIterations int `envconfig:"REACT_MAX_ITERATIONS" default:"5"`
}

type ConversationConfig struct {
	TTL      string `envconfig:"CONVERSATION_TTL" default:"30m"`
	MaxTurns int    `envconfig:"CONVERSATION_MAX_TURNS" default:"10"`
	Tools    struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"10"`
	}
}

// TTLDuration parses TTL, falling back to 30 minutes when it is unset or invalid.
func (c ConversationConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// Provider names the chat backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

type LLMConfig struct {
	Provider      Provider `envconfig:"LLM_PROVIDER" default:"openai"`
	GeminiAPIKey  string   `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string   `envconfig:"GEMINI_BASE_URL"`
	// OpenAIBaseURL also serves Ollama's OpenAI-compatible API.
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" default:"ollama"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"http://localhost:11434/v1"`
	TimeoutSec    int    `envconfig:"LLM_TIMEOUT_SECONDS" default:"120"`
}

type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"llama3.2"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"500"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0.1"`
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"llama3.2"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

// RecipeModelConfig drives recipe, nutrition and ingredient-extraction prompts.
type RecipeModelConfig struct {
	Model       string  `envconfig:"RECIPE_MODEL" default:"llama3.2"`
	MaxTokens   int     `envconfig:"RECIPE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RECIPE_TEMPERATURE" default:"0.7"`
}
