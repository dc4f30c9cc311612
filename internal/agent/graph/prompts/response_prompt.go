package prompts

import (
	"context"
	_ "embed"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

var (
	//go:embed template/response_prompt.txt
	toolAgentSystemPrompt string
	//go:embed template/react_prompt.txt
	reactPrompt string
)

// AgentVars feeds the tool-calling and ReAct prompts.
type AgentVars struct {
	// Tools are "name(params): description" lines.
	Tools []string
	// CurrentRecipe summarizes the recipe under discussion; empty when none.
	CurrentRecipe string
	Input         string
}

func (v AgentVars) toMap() map[string]any {
	return map[string]any{
		"Tools":         v.Tools,
		"CurrentRecipe": v.CurrentRecipe,
		"Input":         v.Input,
	}
}

// RenderToolAgentSystem renders the system prompt of the native tool-calling agent.
func RenderToolAgentSystem(ctx context.Context, vars AgentVars) (string, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(toolAgentSystemPrompt))
	msgs, err := render(ctx, "tool agent", tpl, vars.toMap())
	if err != nil {
		return "", err
	}
	return msgs[0].Content, nil
}

// RenderReact renders the opening scratchpad of the text ReAct loop. The loop
// keeps appending thoughts and observations to it.
func RenderReact(ctx context.Context, vars AgentVars) (string, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(reactPrompt))
	msgs, err := render(ctx, "react", tpl, vars.toMap())
	if err != nil {
		return "", err
	}
	return msgs[0].Content, nil
}
