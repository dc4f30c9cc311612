// Package llmtest provides chat models that answer from a script.
package llmtest

import (
	"context"
	"errors"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrScriptExhausted is returned once every scripted reply has been used.
var ErrScriptExhausted = errors.New("llmtest: no scripted reply left")

// Scripted replays messages in order and records every request. It is safe
// for concurrent use.
type Scripted struct {
	mu       sync.Mutex
	replies  []*schema.Message
	errs     map[int]error
	requests [][]*schema.Message
	tools    []*schema.ToolInfo
}

var _ einomodel.ToolCallingChatModel = (*Scripted)(nil)

// Texts scripts plain assistant replies.
func Texts(replies ...string) *Scripted {
	s := &Scripted{}
	for _, r := range replies {
		s.replies = append(s.replies, schema.AssistantMessage(r, nil))
	}
	return s
}

// Messages scripts full replies, tool calls included.
func Messages(replies ...*schema.Message) *Scripted {
	return &Scripted{replies: replies}
}

// FailAt makes the n-th call (0-based) fail with err instead of replying.
func (s *Scripted) FailAt(n int, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs == nil {
		s.errs = map[int]error{}
	}
	s.errs[n] = err
	return s
}

func (s *Scripted) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := len(s.requests)
	s.requests = append(s.requests, in)
	if err, ok := s.errs[call]; ok {
		return nil, err
	}
	idx := call - s.failuresBefore(call)
	if idx >= len(s.replies) {
		return nil, ErrScriptExhausted
	}
	out := *s.replies[idx]
	return &out, nil
}

func (s *Scripted) failuresBefore(call int) int {
	n := 0
	for i := range s.errs {
		if i < call {
			n++
		}
	}
	return n
}

func (s *Scripted) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := s.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools records the bound tools and returns the same script.
func (s *Scripted) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = tools
	return s, nil
}

// Requests returns every request received so far.
func (s *Scripted) Requests() [][]*schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]*schema.Message(nil), s.requests...)
}

// LastPrompt concatenates the contents of the latest request.
func (s *Scripted) LastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ""
	}
	var out string
	for _, m := range s.requests[len(s.requests)-1] {
		out += m.Content
	}
	return out
}

func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *Scripted) BoundTools() []*schema.ToolInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tools
}
