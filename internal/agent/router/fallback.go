package router

import (
	"context"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/sous-chef/server/internal/agent/model"
	logx "github.com/sous-chef/server/pkg/logger"
)

const fallbackPrompt = `You are an intent classifier for a recipe assistant. Analyze this user query and determine the most likely intent.

User query: "{query}"

Available intents:
1. analytics_frequent - User wants to see their most frequent/common/favorite recipe
   Examples: "recipe I have the most", "what do I cook most often", "my most made dish"

2. analytics_count - User wants to count recipes by ingredient
   Examples: "how often do I use chicken", "frequency of beef recipes"

3. create_recipe - User wants to create a new recipe
   Examples: "make a new dish", "create something with chicken"

4. get_details - User wants details of a specific recipe
   Examples: "show me instructions for pasta dish"

5. show_recent - User wants to see recent recipes
   Examples: "my latest recipes", "recent dishes I made"

IMPORTANT: Only respond if you're confident (>80%) that the query matches analytics_frequent or analytics_count. For other intents or unclear queries, respond with "UNKNOWN".

For analytics_frequent patterns, look for concepts like:
- Most frequent/common/popular recipe
- Recipe they have/make/cook the most
- Favorite/go-to/signature recipe
- What they usually/typically cook

For analytics_count patterns, look for:
- Counting/frequency questions about ingredients
- "How often/much do I use X"
- "How many times do I cook with X"

Respond with EXACTLY one of:
- analytics_frequent
- analytics_count:[ingredient]
- UNKNOWN

Response:`

// LLMFallback asks a chat model about the two analytics intents only.
type LLMFallback struct {
	model einomodel.BaseChatModel
}

func NewLLMFallback(m einomodel.BaseChatModel) *LLMFallback {
	return &LLMFallback{model: m}
}

func (f *LLMFallback) Classify(ctx context.Context, text string) (model.IntentResult, bool) {
	prompt := strings.ReplaceAll(fallbackPrompt, "{query}", text)
	msg, err := f.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		logx.Warn().Err(err).Msg("router fallback model call failed")
		return model.IntentResult{}, false
	}
	return ParseFallbackReply(msg.Content)
}

// ParseFallbackReply reads "analytics_frequent" or "analytics_count:<ingredient>"
// out of a model reply. Anything else is no decision.
func ParseFallbackReply(reply string) (model.IntentResult, bool) {
	reply = strings.ToLower(strings.TrimSpace(reply))
	if strings.Contains(reply, string(model.IntentAnalyticsFrequent)) {
		return model.NewIntentResult(model.IntentAnalyticsFrequent, fallbackConfidence, "llm fallback", model.SourceLLMFallback), true
	}
	const countTag = "analytics_count:"
	for _, line := range strings.Split(reply, "\n") {
		_, after, found := strings.Cut(line, countTag)
		if !found {
			continue
		}
		ingredient := ""
		if fields := strings.Fields(after); len(fields) > 0 {
			ingredient = fields[0]
		}
		return model.NewIntentResult(model.IntentAnalyticsCount, fallbackConfidence, "llm fallback", model.SourceLLMFallback).
			With(model.ParamIngredient, ingredient), true
	}
	return model.IntentResult{}, false
}
