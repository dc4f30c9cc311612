// Package llm adapts OpenAI-compatible chat endpoints (OpenAI, Ollama /v1)
// to eino's chat model interfaces.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32
	MaxTokens   *int
	Timeout     time.Duration
}

// ChatModel implements model.ToolCallingChatModel over go-openai.
type ChatModel struct {
	client *openai.Client
	cfg    Config
	tools  []openai.Tool
}

func NewChatModel(cfg Config) (*ChatModel, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm: model is required")
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	conf.HTTPClient = &http.Client{Timeout: timeout}
	return &ChatModel{client: openai.NewClientWithConfig(conf), cfg: cfg}, nil
}

func (m *ChatModel) GetType() string { return "OpenAICompatible" }

// WithTools returns a copy of the model bound to tools.
func (m *ChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	converted, err := toOpenAITools(tools)
	if err != nil {
		return nil, err
	}
	c := *m
	c.tools = converted
	return &c, nil
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	req, err := m.buildRequest(input, opts...)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: no choices returned")
	}
	return fromOpenAIMessage(resp.Choices[0], resp.Usage), nil
}

// Stream answers with a single chunk; callers here only need the final message.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ChatModel) buildRequest(input []*schema.Message, opts ...model.Option) (openai.ChatCompletionRequest, error) {
	o := model.GetCommonOptions(&model.Options{
		Model:       &m.cfg.Model,
		Temperature: m.cfg.Temperature,
		MaxTokens:   m.cfg.MaxTokens,
	}, opts...)

	req := openai.ChatCompletionRequest{
		Messages: make([]openai.ChatCompletionMessage, 0, len(input)),
		Tools:    m.tools,
	}
	if o.Model != nil {
		req.Model = *o.Model
	}
	if o.Temperature != nil {
		req.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		req.MaxTokens = *o.MaxTokens
	}
	if o.TopP != nil {
		req.TopP = *o.TopP
	}
	if len(o.Stop) > 0 {
		req.Stop = o.Stop
	}
	if len(o.Tools) > 0 {
		tools, err := toOpenAITools(o.Tools)
		if err != nil {
			return req, err
		}
		req.Tools = tools
	}

	for _, msg := range input {
		if msg == nil {
			continue
		}
		req.Messages = append(req.Messages, toOpenAIMessage(msg))
	}
	return req, nil
}

func toOpenAITools(tools []*schema.ToolInfo) ([]openai.Tool, error) {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		def := &openai.FunctionDefinition{Name: t.Name, Description: t.Desc}
		if t.ParamsOneOf != nil {
			params, err := t.ParamsOneOf.ToJSONSchema()
			if err != nil {
				return nil, fmt.Errorf("tool %s schema: %w", t.Name, err)
			}
			def.Parameters = params
		} else {
			def.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{Type: openai.ToolTypeFunction, Function: def})
	}
	return out, nil
}

func toOpenAIMessage(msg *schema.Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       roleOf(msg.Role),
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
		Name:       msg.Name,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

func roleOf(r schema.RoleType) string {
	switch r {
	case schema.System:
		return openai.ChatMessageRoleSystem
	case schema.Assistant:
		return openai.ChatMessageRoleAssistant
	case schema.Tool:
		return openai.ChatMessageRoleTool
	default:
		return openai.ChatMessageRoleUser
	}
}

func fromOpenAIMessage(choice openai.ChatCompletionChoice, usage openai.Usage) *schema.Message {
	out := &schema.Message{
		Role:    schema.Assistant,
		Content: choice.Message.Content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: string(choice.FinishReason),
			Usage: &schema.TokenUsage{
				PromptTokens:     usage.PromptTokens,
				CompletionTokens: usage.CompletionTokens,
				TotalTokens:      usage.TotalTokens,
			},
		},
	}
	for i, tc := range choice.Message.ToolCalls {
		idx := i
		out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
			Index: &idx,
			ID:    tc.ID,
			Type:  string(tc.Type),
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

var _ model.ToolCallingChatModel = (*ChatModel)(nil)
