// Package classifier maps an utterance to an intent with a language model.
package classifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/sous-chef/server/internal/agent/graph/parsers"
	"github.com/sous-chef/server/internal/agent/graph/prompts"
	"github.com/sous-chef/server/internal/agent/model"
	logx "github.com/sous-chef/server/pkg/logger"
)

const (
	defaultConfidence = 0.8
	defaultReasoning  = "LLM classification"
	errorConfidence   = 0.5
)

// Context is what the classifier knows about the conversation so far.
type Context struct {
	CurrentTitle    string
	CurrentServings int
	LastAction      string
	RecentCount     int
}

// String renders the context block of the prompt; empty when nothing is known.
func (c Context) String() string {
	var b strings.Builder
	if c.CurrentTitle != "" {
		fmt.Fprintf(&b, "\nCurrent recipe: '%s' (serves %d)", c.CurrentTitle, c.CurrentServings)
	}
	if c.LastAction != "" {
		fmt.Fprintf(&b, "\nLast action: %s", c.LastAction)
	}
	if c.RecentCount > 0 {
		fmt.Fprintf(&b, "\nRecent recipes available: %d recipes", c.RecentCount)
	}
	return b.String()
}

type Classifier struct {
	model   einomodel.BaseChatModel
	defs    []Definition
	intents string
}

type Option func(*Classifier)

// WithDefinitions replaces the embedded intent catalogue.
func WithDefinitions(defs []Definition) Option {
	return func(c *Classifier) { c.defs = defs }
}

func New(m einomodel.BaseChatModel, opts ...Option) (*Classifier, error) {
	if m == nil {
		return nil, fmt.Errorf("classifier model is nil")
	}
	c := &Classifier{model: m}
	for _, opt := range opts {
		opt(c)
	}
	if c.defs == nil {
		defs, err := DefaultDefinitions()
		if err != nil {
			return nil, err
		}
		c.defs = defs
	}
	c.intents = RenderDefinitions(c.defs)
	return c, nil
}

func (c *Classifier) Definitions() []Definition { return c.defs }

// Vars are the template variables of prompts.ClassifierTemplate.
func (c *Classifier) Vars(input string, cc Context) map[string]any {
	return map[string]any{
		prompts.VarInput:   input,
		prompts.VarContext: cc.String(),
		prompts.VarIntents: c.intents,
	}
}

// Classify never fails: model and parsing errors degrade to the help intent.
func (c *Classifier) Classify(ctx context.Context, input string, cc Context) model.IntentResult {
	msgs, err := prompts.RenderClassifier(ctx, c.Vars(input, cc))
	if err != nil {
		return Failed(err)
	}
	reply, err := c.model.Generate(ctx, msgs)
	if err != nil {
		logx.Warn().Err(err).Str("input", input).Msg("LLM classification error")
		return Failed(err)
	}
	res := Parse(reply.Content, input)
	logx.Debug().
		Str("intent", string(res.Intent)).
		Float64("confidence", res.Confidence).
		Msg("LLM classification")
	return res
}

// Failed is the result of a classification that could not run.
func Failed(err error) model.IntentResult {
	return model.NewIntentResult(model.IntentHelp, errorConfidence,
		fmt.Sprintf("Error in classification: %v", err), model.SourceLLM)
}

// Parse turns a model reply into an IntentResult. Replies the repair cascade
// cannot read at all fall back to keyword parsing of reply and input.
func Parse(reply, input string) model.IntentResult {
	repaired := parsers.Repair(strings.TrimSpace(reply))
	if repaired.Stage == parsers.StageDefault {
		return FallbackParse(reply, input)
	}
	data := repaired.Data

	raw := "help"
	if s, ok := data["intent"].(string); ok && s != "" {
		raw = s
	}
	reasoning := defaultReasoning
	if s, ok := data["reasoning"].(string); ok && s != "" {
		reasoning = s
	}
	intent, ok := model.ParseIntent(raw)
	if !ok {
		intent = model.IntentHelp
		reasoning = fmt.Sprintf("Invalid intent '%s' returned by LLM", raw)
	}

	res := model.NewIntentResult(intent, confidenceOf(data["confidence"]), reasoning, model.SourceLLM)
	if entities, ok := data["entities"].(map[string]any); ok {
		for k, v := range entities {
			res.Parameters[k] = v
		}
	}
	return res
}

func confidenceOf(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return defaultConfidence
		}
		f = parsed
	default:
		return defaultConfidence
	}
	return max(0, min(1, f))
}

// FallbackParse guesses an intent from an intent name mentioned in the reply,
// then from keywords in the user's input.
func FallbackParse(reply, input string) model.IntentResult {
	lower := strings.ToLower(reply)
	for _, intent := range model.Intents {
		if strings.Contains(lower, string(intent)) {
			return model.NewIntentResult(intent, 0.7, "Fallback text parsing", model.SourceLLM)
		}
	}

	user := strings.ToLower(strings.TrimSpace(input))
	if n, err := strconv.Atoi(user); err == nil && isDigits(user) {
		return model.NewIntentResult(model.IntentNumberedReference, 0.9, "Simple number detection", model.SourceLLM).
			With(model.ParamNumber, n)
	}
	switch {
	case containsAny(user, "create", "make", "new", "generate"):
		return model.NewIntentResult(model.IntentCreateRecipe, 0.8, "Create keyword detection", model.SourceLLM)
	case containsAny(user, "recent", "latest", "history"):
		return model.NewIntentResult(model.IntentGetRecent, 0.8, "Recent keyword detection", model.SourceLLM)
	}
	return model.NewIntentResult(model.IntentHelp, 0.6, "Unable to determine intent", model.SourceLLM)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
