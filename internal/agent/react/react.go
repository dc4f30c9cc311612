// Package react runs the text ReAct loop: the model thinks in plain text,
// names tools with "ACTION: tool(args)" and reads their OBSERVATION back.
package react

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/sous-chef/server/internal/agent/graph/prompts"
	"github.com/sous-chef/server/internal/agent/graph/tools"
	errx "github.com/sous-chef/server/internal/core/error"
	"github.com/sous-chef/server/internal/recipe"
	logx "github.com/sous-chef/server/pkg/logger"
)

const (
	DefaultMaxIterations = 5

	finalMarker = "FINAL ANSWER:"
	forceFinal  = "\n\nPlease provide your FINAL ANSWER now based on all the above reasoning:\n\nFINAL ANSWER: "
)

// RecentLister supplies the newest recipe when a details request names none.
type RecentLister interface {
	Recent(ctx context.Context, limit int) ([]*recipe.Recipe, error)
}

// Step records one model turn and the tool it triggered, if any.
type Step struct {
	Thought     string
	Action      *Action
	Observation string
}

type Result struct {
	Answer string
	Steps  []Step
	// Forced is set when the loop ran out and a final answer was demanded.
	Forced bool
}

// ToolCalls counts the steps that ran a tool.
func (r *Result) ToolCalls() int {
	n := 0
	for _, s := range r.Steps {
		if s.Action != nil {
			n++
		}
	}
	return n
}

type Agent struct {
	model         einomodel.BaseChatModel
	tools         *tools.Set
	recipes       RecentLister
	maxIterations int
}

type Option func(*Agent)

func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

func WithRecipes(r RecentLister) Option {
	return func(a *Agent) { a.recipes = r }
}

func New(m einomodel.BaseChatModel, set *tools.Set, opts ...Option) (*Agent, error) {
	if m == nil {
		return nil, errors.New("react: nil chat model")
	}
	if set == nil {
		return nil, errors.New("react: nil tool set")
	}
	a := &Agent{model: m, tools: set, maxIterations: DefaultMaxIterations}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run answers input. The current recipe is read from (and updated in) the
// holder carried by ctx.
func (a *Agent) Run(ctx context.Context, input string) (*Result, error) {
	scratchpad, err := prompts.RenderReact(ctx, prompts.AgentVars{
		Tools:         a.tools.Describe(),
		CurrentRecipe: tools.Summarize(tools.CurrentFrom(ctx).Get()),
		Input:         input,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i := range a.maxIterations {
		reply, err := a.complete(ctx, scratchpad)
		if err != nil {
			return nil, err
		}
		logx.Debug().Int("step", i+1).Str("thought", preview(reply)).Msg("react step")

		if _, answer, ok := lastCut(reply, finalMarker); ok {
			res.Steps = append(res.Steps, Step{Thought: reply})
			res.Answer = strings.TrimSpace(answer)
			return res, nil
		}

		step := Step{Thought: reply}
		if action, ok := a.nextAction(ctx, reply); ok {
			obs, err := a.tools.Run(ctx, action.Tool, action.Args)
			if err != nil {
				logx.Warn().Err(err).Str("tool_name", action.Tool).Msg("react tool failed")
				obs = fmt.Sprintf("Error executing %s: %v", action.Tool, err)
			}
			logx.Debug().Str("tool_name", action.Tool).Str("observation", preview(obs)).Msg("react observation")
			step.Action = &action
			step.Observation = obs
			scratchpad += reply + fmt.Sprintf("\n\nOBSERVATION: %s\n\nTHOUGHT: ", obs)
		} else {
			scratchpad += reply + "\n\nTHOUGHT: "
		}
		res.Steps = append(res.Steps, step)

		lower := strings.ToLower(reply)
		if strings.Contains(lower, "no more tools needed") || strings.Contains(lower, "final answer") {
			break
		}
	}

	final, err := a.complete(ctx, scratchpad+forceFinal)
	if err != nil {
		return nil, err
	}
	if _, answer, ok := lastCut(final, finalMarker); ok {
		final = answer
	}
	res.Answer = strings.TrimSpace(final)
	res.Forced = true
	return res, nil
}

func (a *Agent) nextAction(ctx context.Context, reply string) (Action, bool) {
	if action, ok := ParseAction(reply); ok {
		return action, true
	}
	action, ok := InferAction(reply)
	if !ok {
		return Action{}, false
	}
	if action.Tool == tools.ToolRecipeDetails && action.Args["recipe_title"] == "" {
		title := a.defaultTitle(ctx)
		if title == "" {
			return Action{}, false
		}
		action.Args["recipe_title"] = title
	}
	return action, true
}

// defaultTitle is the current recipe, else the newest saved one.
func (a *Agent) defaultTitle(ctx context.Context) string {
	if r := tools.CurrentFrom(ctx).Get(); r != nil {
		return r.Title
	}
	if a.recipes == nil {
		return ""
	}
	recent, err := a.recipes.Recent(ctx, 1)
	if err != nil || len(recent) == 0 {
		return ""
	}
	return recent[0].Title
}

func (a *Agent) complete(ctx context.Context, text string) (string, error) {
	msg, err := a.model.Generate(ctx, []*schema.Message{schema.UserMessage(text)})
	if err != nil {
		return "", errx.WrapLLM(err)
	}
	return msg.Content, nil
}

// lastCut splits s at the last occurrence of sep.
func lastCut(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 150 {
		return string(r[:150]) + "..."
	}
	return s
}
