package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - Registered as Graph Local State via compose.WithGenLocalState.
//   - Read and written only inside WithStatePreHandler, WithStatePostHandler
//     or compose.ProcessState, which Eino serializes.
//   - Persistence goes through SessionStore and MessagesManager, never
//     through this struct.
type AppState struct {
	ConversationID string
	Input          string
	Session        *Session      // loaded by the input converter, saved at the end
	Intent         *IntentResult // set by the router or the intent parser

	History              []*schema.Message // tool-calling mode only
	ToolCallCount        int
	ToolCallLimitReached bool
	ToolCallIDSeq        int // synthesizes tool_call_id when a provider omits it

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// QueryInput represents the input for processing user queries.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// Keys placed in the final message's Extra map.
const (
	ExtraActionTaken = "action_taken"
	ExtraSuccess     = "success"
	ExtraIntent      = "intent"
	ExtraContext     = "updated_context"
	ExtraCost        = "usage_cost_total_usd"
)
