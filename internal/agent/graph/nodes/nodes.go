package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/sous-chef/server/internal/agent/assistant"
	"github.com/sous-chef/server/internal/agent/classifier"
	"github.com/sous-chef/server/internal/agent/graph/conversations"
	"github.com/sous-chef/server/internal/agent/graph/prompts"
	"github.com/sous-chef/server/internal/agent/graph/tools"
	"github.com/sous-chef/server/internal/agent/model"
	"github.com/sous-chef/server/internal/agent/react"
	"github.com/sous-chef/server/internal/agent/router"
	"github.com/sous-chef/server/internal/store"
	logx "github.com/sous-chef/server/pkg/logger"
)

// ================ Input ================

// NewInputConverterPreHandler resets the per-query state.
func NewInputConverterPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.ConversationID = in.ConversationID
		s.Input = strings.TrimSpace(in.Query)
		s.Session = nil
		s.Intent = nil
		s.History = nil
		s.ToolCallCount = 0
		s.ToolCallLimitReached = false
		s.ToolCallIDSeq = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode loads the session, records the user turn and puts the
// session's recipe into the current-recipe holder. It emits the trimmed input.
func NewInputConverterNode(
	mm *conversations.MessagesManager,
	sessions model.SessionStore,
	recipes store.Repository,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (string, error) {
		sess, err := sessions.Load(ctx, in.ConversationID)
		if err != nil {
			return "", fmt.Errorf("load session: %w", err)
		}
		if err := mm.SaveUserMessage(ctx, in.ConversationID, in.Query); err != nil {
			return "", fmt.Errorf("save user message: %w", err)
		}

		if sess.CurrentRecipeID != "" && recipes != nil {
			r, err := recipes.Get(ctx, sess.CurrentRecipeID)
			switch {
			case err == nil:
				tools.CurrentFrom(ctx).Set(r)
			case errors.Is(err, store.ErrNotFound):
				sess.CurrentRecipeID = ""
			default:
				logx.Warn().Err(err).Str("recipe_id", sess.CurrentRecipeID).Msg("load current recipe")
			}
		}

		err = compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			s.Session = sess
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}
		return strings.TrimSpace(in.Query), nil
	})
}

// ================ Classification ================

// NewRouterNode applies the keyword rules. An empty intent in the output
// means the classifier decides.
func NewRouterNode(mode model.AgentMode, r *router.Router) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input string) (model.IntentResult, error) {
		if mode == model.ModeRules {
			return r.Route(ctx, input), nil
		}
		if mode == model.ModeHybrid {
			if res, ok := r.Match(ctx, input); ok {
				return res, nil
			}
		}

		_, sess, err := stateInput(ctx)
		if err != nil {
			return model.IntentResult{}, fmt.Errorf("failed to access state: %w", err)
		}
		if sess != nil && sess.Awaiting == assistant.AwaitingIngredients {
			return model.NewIntentResult(model.IntentCreateRecipe, 0.5, "awaiting ingredients", model.SourceDefault), nil
		}
		return model.IntentResult{}, nil
	})
}

// NewClassifierCondition sends routed turns to the dispatcher and the rest to
// the classifier chain.
func NewClassifierCondition() func(context.Context, model.IntentResult) (string, error) {
	return func(ctx context.Context, in model.IntentResult) (string, error) {
		if in.Intent != "" {
			logx.Debug().Str("intent", string(in.Intent)).Str("source", string(in.Source)).Msg("Routed by rules")
			return NodeDispatcher, nil
		}
		logx.Debug().Msg("No rule matched - routing to classifier")
		return NodeClassifierInput, nil
	}
}

// NewClassifierInputNode builds the classifier prompt variables from the
// conversation state.
func NewClassifierInputNode(c *classifier.Classifier) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.IntentResult) (map[string]any, error) {
		input, sess, err := stateInput(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		var cc classifier.Context
		if sess != nil {
			cc.LastAction = sess.LastAction
			cc.RecentCount = len(sess.ListIDs)
		}
		if r := tools.CurrentFrom(ctx).Get(); r != nil {
			cc.CurrentTitle = r.Title
			cc.CurrentServings = r.Servings
		}
		return c.Vars(input, cc), nil
	})
}

// NewUsagePostHandler prices a chat model reply.
func NewUsagePostHandler(node, modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		applyUsage(out, state, node, modelName)
		return out, nil
	}
}

// NewIntentParserNode reads the classifier reply through the repair cascade.
func NewIntentParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (model.IntentResult, error) {
		input, _, err := stateInput(ctx)
		if err != nil {
			return model.IntentResult{}, fmt.Errorf("failed to access state: %w", err)
		}
		if reason, failed := modelFailure(resp); failed {
			return classifier.Failed(errors.New(reason)), nil
		}
		res := classifier.Parse(resp.Content, input)
		logx.Debug().
			Str("intent", string(res.Intent)).
			Float64("confidence", res.Confidence).
			Msg("LLM classification")
		return res, nil
	})
}

// NewDispatcherNode runs the assistant handler for the chosen intent.
func NewDispatcherNode(a *assistant.Assistant) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, ir model.IntentResult) (*schema.Message, error) {
		var (
			input string
			sess  *model.Session
		)
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			input, sess = s.Input, s.Session
			s.Intent = &ir
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		resp := a.Handle(ctx, sess, ir, input)
		logx.Debug().
			Str("intent", string(ir.Intent)).
			Str("action", resp.ActionTaken).
			Bool("success", resp.Success).
			Msg("Intent handled")
		return ResponseMessage(resp), nil
	})
}

// NewTurnPostHandler persists a finished classification turn.
func NewTurnPostHandler(mm *conversations.MessagesManager, sessions model.SessionStore) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		finishTurn(ctx, mm, sessions, state, out)
		return out, nil
	}
}

// ================ ReAct ================

// NewReactNode runs the text ReAct loop over the input.
func NewReactNode(agent *react.Agent) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input string) (*schema.Message, error) {
		res, err := agent.Run(ctx, input)
		if err != nil {
			return nil, err
		}
		return ResponseMessage(&model.AgentResponse{
			Content: res.Answer,
			Success: true,
			UpdatedContext: map[string]any{
				"tool_calls": res.ToolCalls(),
				"iterations": len(res.Steps),
				"forced":     res.Forced,
			},
			ActionTaken: model.ActionReact,
		}), nil
	})
}

// NewAgentTurnPostHandler records and persists a ReAct turn.
func NewAgentTurnPostHandler(mm *conversations.MessagesManager, sessions model.SessionStore, action string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		recordAgentTurn(ctx, state, action)
		finishTurn(ctx, mm, sessions, state, out)
		return out, nil
	}
}

// ================ Tool calling ================

// NewResponseAssemblerNode builds the system prompt and replays the recent transcript.
func NewResponseAssemblerNode(mm *conversations.MessagesManager, set *tools.Set) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ string) ([]*schema.Message, error) {
		var conversationID string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AppState) error {
			conversationID = s.ConversationID
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		system, err := prompts.RenderToolAgentSystem(ctx, prompts.AgentVars{
			Tools:         set.Describe(),
			CurrentRecipe: tools.Summarize(tools.CurrentFrom(ctx).Get()),
		})
		if err != nil {
			return nil, fmt.Errorf("generate response prompt: %w", err)
		}

		messages, err := mm.BuildResponseContext(ctx, conversationID, system)
		if err != nil {
			return nil, fmt.Errorf("build response context: %w", err)
		}
		return messages, nil
	})
}

// NewResponseChatModelPreHandler keeps the running message history and adds
// the wrap-up notice once the tool budget is spent.
func NewResponseChatModelPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		// Some OpenAI-compatible providers drop tool_call_id on tool results.
		if len(in) > 0 {
			last := in[len(in)-1]
			if last != nil && last.Role == schema.Tool && strings.TrimSpace(last.ToolCallID) == "" {
				for i := len(state.History) - 1; i >= 0; i-- {
					msg := state.History[i]
					if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
						continue
					}
					if id := msg.ToolCalls[0].ID; strings.TrimSpace(id) != "" {
						last.ToolCallID = id
					}
					break
				}
			}
		}

		state.History = append(state.History, in...)

		if checkAndMarkToolLimit(state, maxToolCalls) {
			wrapUp := &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"SYSTEM NOTICE: You have reached the maximum tool call limit (%d). "+
						"Please synthesize a helpful response using the information you've already gathered. "+
						"Acknowledge any limitations in your response if you couldn't complete all necessary tool calls.",
					normalizeMaxToolCalls(maxToolCalls),
				),
			}
			state.History = append(state.History, wrapUp)
		}

		return state.History, nil
	}
}

// NewResponseChatModelPostHandler prices the reply, fills missing tool call
// ids and, on the final reply, records and persists the turn.
func NewResponseChatModelPostHandler(
	mm *conversations.MessagesManager,
	sessions model.SessionStore,
	modelName string,
) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("response model returned no message")
		}
		applyUsage(out, state, NodeResponseChatModel, modelName)

		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		state.History = append(state.History, out)

		if len(out.ToolCalls) > 0 && !state.ToolCallLimitReached {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
			return out, nil
		}

		if out.Extra == nil {
			out.Extra = map[string]any{}
		}
		out.Extra[model.ExtraActionTaken] = model.ActionToolAgent
		out.Extra[model.ExtraSuccess] = strings.TrimSpace(out.Content) != ""
		updated := map[string]any{"tool_calls": state.ToolCallCount}
		if r := tools.CurrentFrom(ctx).Get(); r != nil {
			updated["current_recipe_id"] = r.ID
		}
		out.Extra[model.ExtraContext] = updated

		recordAgentTurn(ctx, state, model.ActionToolAgent)
		finishTurn(ctx, mm, sessions, state, out)
		return out, nil
	}
}

// NewToolExecutorCondition routes tool calls to the executor until the limit is hit.
func NewToolExecutorCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var limitReached bool
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			limitReached = state.ToolCallLimitReached
			return nil
		})
		if err != nil {
			return "", err
		}

		if limitReached {
			logx.Debug().Msg("Tool limit reached previously - routing to end")
			return compose.END, nil
		}
		if len(input.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(input.ToolCalls)).Msg("Routing to ToolExecutor")
			return NodeToolExecutor, nil
		}
		return compose.END, nil
	}
}

// NewToolExecutorPreHandler counts tool rounds.
func NewToolExecutorPreHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		if incrementToolCallAndCheck(state, maxToolCalls) {
			logx.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", normalizeMaxToolCalls(maxToolCalls)).
				Str("conversation_id", state.ConversationID).
				Msg("Tool call limit exceeded - flagging and continuing")
		}
		return in, nil
	}
}

// UnknownTool answers a hallucinated tool call so the model can carry on.
func UnknownTool(ctx context.Context, name, input string) (string, error) {
	logx.Warn().
		Str("tool_name", name).
		Str("arguments", input).
		Msg("Unknown or invalid tool call; returning fallback result")
	return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), nil
}

// SanitizeToolArguments trims string arguments and drops null ones. Non-JSON
// input passes through.
func SanitizeToolArguments(ctx context.Context, name, arguments string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return arguments, nil
	}
	for k, v := range m {
		switch vv := v.(type) {
		case string:
			m[k] = strings.TrimSpace(vv)
		case nil:
			delete(m, k)
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return arguments, nil
	}
	return string(b), nil
}
