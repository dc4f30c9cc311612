package nodes

import (
	"context"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	logx "github.com/sous-chef/server/pkg/logger"
)

const extraModelError = "model_error"

// tolerantModel turns a failed classification call into an empty reply that
// carries the error, so the parser can degrade to help instead of aborting
// the run.
type tolerantModel struct {
	inner einomodel.BaseChatModel
}

func NewTolerantModel(m einomodel.BaseChatModel) einomodel.BaseChatModel {
	return &tolerantModel{inner: m}
}

func (t *tolerantModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	out, err := t.inner.Generate(ctx, input, opts...)
	if err != nil {
		logx.Warn().Err(err).Msg("LLM classification error")
		msg := schema.AssistantMessage("", nil)
		msg.Extra = map[string]any{extraModelError: err.Error()}
		return msg, nil
	}
	return out, nil
}

func (t *tolerantModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := t.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func modelFailure(msg *schema.Message) (string, bool) {
	if msg == nil {
		return "empty model reply", true
	}
	reason, ok := msg.Extra[extraModelError].(string)
	return reason, ok
}
