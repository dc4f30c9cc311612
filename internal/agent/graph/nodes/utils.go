package nodes

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/sous-chef/server/internal/agent/graph/conversations"
	"github.com/sous-chef/server/internal/agent/graph/tools"
	"github.com/sous-chef/server/internal/agent/model"
	logx "github.com/sous-chef/server/pkg/logger"
)

// Node keys.
const (
	NodeInputConverter    = "InputConverter"
	NodeRouter            = "Router"
	NodeClassifierInput   = "ClassifierInput"
	NodeClassifierPrompt  = "ClassifierPrompt"
	NodeClassifierModel   = "ClassifierChatModel"
	NodeIntentParser      = "IntentParser"
	NodeDispatcher        = "Dispatcher"
	NodeReactAgent        = "ReactAgent"
	NodeResponseAssembler = "ResponseAssembler"
	NodeResponseChatModel = "ResponseChatModel"
	NodeToolExecutor      = "ToolExecutor"
)

const DefaultMaxToolCalls = 10

// normalizeMaxToolCalls returns a sane default when the provided value is invalid.
func normalizeMaxToolCalls(n int) int {
	if n <= 0 {
		return DefaultMaxToolCalls
	}
	return n
}

// checkAndMarkToolLimit marks the state once the count has reached the
// limit. Returns true only on the call that marks it.
func checkAndMarkToolLimit(state *model.AppState, max int) bool {
	max = normalizeMaxToolCalls(max)
	if !state.ToolCallLimitReached && state.ToolCallCount >= max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// incrementToolCallAndCheck counts one tool round and reports whether it went
// over the limit.
func incrementToolCallAndCheck(state *model.AppState, max int) bool {
	max = normalizeMaxToolCalls(max)
	state.ToolCallCount++
	if state.ToolCallCount > max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// applyUsage prices out's token usage and adds it to the running total.
func applyUsage(out *schema.Message, state *model.AppState, node, modelName string) {
	summary, total, ok := model.UsageCost(modelName, out)
	if !ok {
		return
	}
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["usage_cost"] = summary
	state.TotalCostUSD += total

	u := out.ResponseMeta.Usage
	logx.Debug().
		Str("conversation_id", state.ConversationID).
		Str("node", node).
		Str("model", modelName).
		Int("prompt_tokens", u.PromptTokens).
		Int("completion_tokens", u.CompletionTokens).
		Float64("total_cost_usd", total).
		Msg("LLM usage")
}

// ResponseMessage packs an AgentResponse into the graph's output message.
func ResponseMessage(resp *model.AgentResponse) *schema.Message {
	msg := schema.AssistantMessage(resp.Content, nil)
	msg.Extra = map[string]any{
		model.ExtraActionTaken: resp.ActionTaken,
		model.ExtraSuccess:     resp.Success,
	}
	if resp.UpdatedContext != nil {
		msg.Extra[model.ExtraContext] = resp.UpdatedContext
	}
	if resp.Intent != nil {
		msg.Extra[model.ExtraIntent] = resp.Intent
	}
	return msg
}

// ResponseFromMessage is the inverse of ResponseMessage. A bare message, as
// produced by a chat model, reads as a successful tool-agent answer.
func ResponseFromMessage(msg *schema.Message) *model.AgentResponse {
	resp := &model.AgentResponse{ActionTaken: model.ActionToolAgent, Success: true}
	if msg == nil {
		return resp
	}
	resp.Content = strings.TrimSpace(msg.Content)
	if v, ok := msg.Extra[model.ExtraActionTaken].(string); ok && v != "" {
		resp.ActionTaken = v
	}
	if v, ok := msg.Extra[model.ExtraSuccess].(bool); ok {
		resp.Success = v
	}
	if v, ok := msg.Extra[model.ExtraContext].(map[string]any); ok {
		resp.UpdatedContext = v
	}
	if v, ok := msg.Extra[model.ExtraIntent].(*model.IntentResult); ok {
		resp.Intent = v
	}
	if v, ok := msg.Extra[model.ExtraCost].(float64); ok {
		resp.CostUSD = v
	}
	return resp
}

// recordAgentTurn updates the session after a ReAct or tool-calling turn.
// Those agents change the current recipe through the holder in ctx.
func recordAgentTurn(ctx context.Context, state *model.AppState, action string) {
	sess := state.Session
	if sess == nil {
		return
	}
	if r := tools.CurrentFrom(ctx).Get(); r != nil && r.ID != "" {
		sess.CurrentRecipeID = r.ID
	}
	sess.LastInput = state.Input
	sess.Awaiting = ""
	sess.Record(action)
}

// finishTurn persists the session and the assistant's reply. Failures are
// logged; the user still gets the answer.
func finishTurn(ctx context.Context, mm *conversations.MessagesManager, sessions model.SessionStore, state *model.AppState, out *schema.Message) {
	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra[model.ExtraCost] = state.TotalCostUSD

	if state.Session != nil {
		if err := sessions.Save(ctx, state.Session); err != nil {
			logx.Error().Err(err).Str("conversation_id", state.ConversationID).Msg("Error saving session")
		}
	}
	if err := mm.SaveResponse(ctx, state.ConversationID, out.Content); err != nil {
		logx.Error().Err(err).Str("conversation_id", state.ConversationID).Msg("Error saving assistant response")
		return
	}
	logx.Debug().Str("conversation_id", state.ConversationID).Msg("Turn saved")
}

// stateInput reads the trimmed user input and session from graph state.
func stateInput(ctx context.Context) (input string, sess *model.Session, err error) {
	err = compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
		input, sess = s.Input, s.Session
		return nil
	})
	return input, sess, err
}
