package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"tool_call_id"`
	} `json:"messages"`
	Tools []struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
}

func chatServer(t *testing.T, reply map[string]any, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   got.Model,
			"choices": []any{map[string]any{"index": 0, "message": reply, "finish_reason": "stop"}},
			"usage":   map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatModel_Generate(t *testing.T) {
	var got capturedRequest
	srv := chatServer(t, map[string]any{"role": "assistant", "content": "hello"}, &got)

	m, err := NewChatModel(Config{BaseURL: srv.URL, Model: "llama3.2"})
	require.NoError(t, err)

	out, err := m.Generate(t.Context(), []*schema.Message{
		schema.SystemMessage("be brief"),
		schema.UserMessage("hi"),
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", out.Content)
	assert.Equal(t, schema.Assistant, out.Role)
	require.NotNil(t, out.ResponseMeta)
	assert.Equal(t, 15, out.ResponseMeta.Usage.TotalTokens)

	assert.Equal(t, "llama3.2", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestChatModel_WithToolsAndToolCalls(t *testing.T) {
	var got capturedRequest
	srv := chatServer(t, map[string]any{
		"role":    "assistant",
		"content": "",
		"tool_calls": []any{map[string]any{
			"id":       "call_1",
			"type":     "function",
			"function": map[string]any{"name": "get_recent_recipes", "arguments": `{"limit":3}`},
		}},
	}, &got)

	base, err := NewChatModel(Config{BaseURL: srv.URL, Model: "llama3.2"})
	require.NoError(t, err)

	bound, err := base.WithTools([]*schema.ToolInfo{{
		Name: "get_recent_recipes",
		Desc: "Recent recipes",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"limit": {Type: schema.Integer, Desc: "how many"},
		}),
	}})
	require.NoError(t, err)

	out, err := bound.Generate(t.Context(), []*schema.Message{
		schema.UserMessage("recent"),
		schema.ToolMessage("[]", "call_0"),
	})
	require.NoError(t, err)

	require.Len(t, got.Tools, 1)
	assert.Equal(t, "get_recent_recipes", got.Tools[0].Function.Name)
	assert.Equal(t, "call_0", got.Messages[1].ToolCallID)

	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "call_1", out.ToolCalls[0].ID)
	assert.Equal(t, `{"limit":3}`, out.ToolCalls[0].Function.Arguments)

	assert.Empty(t, base.tools, "binding must not mutate the base model")
}

func TestNewChatModel_RequiresModel(t *testing.T) {
	_, err := NewChatModel(Config{})
	assert.Error(t, err)
}
