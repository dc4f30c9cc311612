package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/classifier_prompt.txt
var classifierPrompt string

// Variables understood by ClassifierTemplate.
const (
	VarInput   = "Input"
	VarContext = "Context"
	VarIntents = "Intents"
)

// ClassifierTemplate is the Go-template chat prompt for intent classification.
// The graph mounts it as a ChatTemplate node; Classifier renders it directly.
func ClassifierTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.GoTemplate,
		schema.UserMessage(classifierPrompt),
	)
}

// RenderClassifier formats the classification prompt and triggers prompt callbacks.
func RenderClassifier(ctx context.Context, vars map[string]any) ([]*schema.Message, error) {
	return render(ctx, "classifier", ClassifierTemplate(), vars)
}

func render(ctx context.Context, name string, tpl prompt.ChatTemplate, vars map[string]any) ([]*schema.Message, error) {
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs, nil
}
