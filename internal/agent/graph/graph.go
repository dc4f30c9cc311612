// Package graph wires the assistant's agent modes into one Eino graph per
// configured mode and runs a turn through it.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/sous-chef/server/internal/agent/assistant"
	"github.com/sous-chef/server/internal/agent/classifier"
	"github.com/sous-chef/server/internal/agent/graph/conversations"
	"github.com/sous-chef/server/internal/agent/graph/nodes"
	"github.com/sous-chef/server/internal/agent/graph/observers"
	"github.com/sous-chef/server/internal/agent/graph/prompts"
	"github.com/sous-chef/server/internal/agent/graph/tools"
	"github.com/sous-chef/server/internal/agent/model"
	"github.com/sous-chef/server/internal/agent/react"
	"github.com/sous-chef/server/internal/agent/router"
	errx "github.com/sous-chef/server/internal/core/error"
	"github.com/sous-chef/server/internal/store"
	logx "github.com/sous-chef/server/pkg/logger"
)

// Runner executes one conversational turn.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.AgentResponse, error)
}

// Config holds everything the graph of one mode needs. Which fields are
// required depends on Mode:
//   - rules: Router, Assistant
//   - llm: Classifier, ClassifierModel, Assistant
//   - hybrid: all of the above
//   - react: React
//   - tools: Tools, ResponseModel
type Config struct {
	Mode         model.AgentMode
	Conversation model.ConversationConfig

	ConversationRepo model.ConversationRepository
	Sessions         model.SessionStore
	Recipes          store.Repository

	Router              *router.Router
	Classifier          *classifier.Classifier
	ClassifierModel     einomodel.BaseChatModel
	ClassifierModelName string
	Assistant           *assistant.Assistant

	React *react.Agent

	Tools             *tools.Set
	ResponseModel     einomodel.ToolCallingChatModel
	ResponseModelName string
}

func (c *Config) validate() error {
	if c.ConversationRepo == nil || c.Sessions == nil {
		return fmt.Errorf("conversation repo or session store is nil")
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("unknown agent mode %q", c.Mode)
	}
	needRouter := c.Mode == model.ModeRules || c.Mode == model.ModeHybrid
	needClassifier := c.Mode == model.ModeLLM || c.Mode == model.ModeHybrid
	switch {
	case needRouter && c.Router == nil:
		return fmt.Errorf("%s mode needs a router", c.Mode)
	case needClassifier && (c.Classifier == nil || c.ClassifierModel == nil):
		return fmt.Errorf("%s mode needs a classifier and its model", c.Mode)
	case (needRouter || needClassifier) && c.Assistant == nil:
		return fmt.Errorf("%s mode needs an assistant", c.Mode)
	case c.Mode == model.ModeReact && c.React == nil:
		return fmt.Errorf("react mode needs a react agent")
	case c.Mode == model.ModeTools && (c.Tools == nil || c.ResponseModel == nil):
		return fmt.Errorf("tools mode needs tools and a response model")
	}
	return nil
}

// GraphBuilder handles the construction of the agent conversation graph
type GraphBuilder struct {
	config *Config
	mm     *conversations.MessagesManager
	graph  *compose.Graph[model.QueryInput, *schema.Message]
}

type graphRunner struct {
	mode     model.AgentMode
	runnable compose.Runnable[model.QueryInput, *schema.Message]
}

// Invoke runs a turn. An empty conversation id starts a new conversation.
func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (*model.AgentResponse, error) {
	if strings.TrimSpace(in.ConversationID) == "" {
		in.ConversationID = uuid.NewString()
	}
	ctx = tools.WithCurrent(ctx, tools.NewCurrent(nil))

	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", in.ConversationID).Str("mode", string(r.mode)).Msg("Graph run failed")
		var appErr *errx.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("run %s graph: %w", r.mode, err)
	}

	resp := nodes.ResponseFromMessage(out)
	resp.ConversationID = in.ConversationID
	logx.Info().
		Str("conversation_id", in.ConversationID).
		Str("mode", string(r.mode)).
		Str("action", resp.ActionTaken).
		Bool("success", resp.Success).
		Float64("cost_usd", resp.CostUSD).
		Msg("Turn complete")
	return resp, nil
}

// BuildRunner builds and compiles the graph for cfg.Mode.
func BuildRunner(ctx context.Context, cfg Config) (Runner, error) {
	runnable, err := BuildGraph(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	logx.Debug().Str("mode", string(cfg.Mode)).Msg("Agent graph built successfully")
	return &graphRunner{mode: cfg.Mode, runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled agent graph
func BuildGraph(ctx context.Context, config *Config) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	builder := &GraphBuilder{
		config: config,
		mm:     conversations.NewMessagesManager(config.ConversationRepo, config.Conversation),
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.addInput(); err != nil {
		return nil, err
	}

	var err error
	switch config.Mode {
	case model.ModeReact:
		err = builder.addReact()
	case model.ModeTools:
		err = builder.addToolCalling(ctx)
	default:
		err = builder.addClassification()
	}
	if err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

func (b *GraphBuilder) addInput() error {
	if err := b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(b.mm, b.config.Sessions, b.config.Recipes),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	); err != nil {
		return fmt.Errorf("add input converter: %w", err)
	}
	return b.graph.AddEdge(compose.START, nodes.NodeInputConverter)
}

// addClassification wires rules, llm and hybrid:
// input → router → {dispatcher | classifier input → prompt → model → parser → dispatcher}.
func (b *GraphBuilder) addClassification() error {
	cfg := b.config
	mustAdd := []func() error{
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeRouter, nodes.NewRouterNode(cfg.Mode, cfg.Router))
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeDispatcher,
				nodes.NewDispatcherNode(cfg.Assistant),
				compose.WithStatePostHandler(nodes.NewTurnPostHandler(b.mm, cfg.Sessions)),
			)
		},
	}
	edges := [][2]string{
		{nodes.NodeInputConverter, nodes.NodeRouter},
		{nodes.NodeDispatcher, compose.END},
	}

	if cfg.Mode == model.ModeRules {
		edges = append(edges, [2]string{nodes.NodeRouter, nodes.NodeDispatcher})
	} else {
		mustAdd = append(mustAdd,
			func() error {
				return b.graph.AddLambdaNode(nodes.NodeClassifierInput, nodes.NewClassifierInputNode(cfg.Classifier))
			},
			func() error {
				return b.graph.AddChatTemplateNode(nodes.NodeClassifierPrompt, prompts.ClassifierTemplate())
			},
			func() error {
				return b.graph.AddChatModelNode(nodes.NodeClassifierModel,
					nodes.NewTolerantModel(cfg.ClassifierModel),
					compose.WithStatePostHandler(nodes.NewUsagePostHandler(nodes.NodeClassifierModel, cfg.ClassifierModelName)),
				)
			},
			func() error {
				return b.graph.AddLambdaNode(nodes.NodeIntentParser, nodes.NewIntentParserNode())
			},
		)
		edges = append(edges,
			[2]string{nodes.NodeClassifierInput, nodes.NodeClassifierPrompt},
			[2]string{nodes.NodeClassifierPrompt, nodes.NodeClassifierModel},
			[2]string{nodes.NodeClassifierModel, nodes.NodeIntentParser},
			[2]string{nodes.NodeIntentParser, nodes.NodeDispatcher},
		)
	}

	for _, add := range mustAdd {
		if err := add(); err != nil {
			logx.Error().Err(err).Msg("Error adding node")
			return fmt.Errorf("error adding node: %w", err)
		}
	}
	if err := b.addEdges(edges); err != nil {
		return err
	}

	if cfg.Mode == model.ModeRules {
		return nil
	}
	classifierBranch := compose.NewGraphBranch(
		nodes.NewClassifierCondition(),
		map[string]bool{
			nodes.NodeDispatcher:      true,
			nodes.NodeClassifierInput: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeRouter, classifierBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding classifier branch")
		return fmt.Errorf("error adding classifier branch: %w", err)
	}
	return nil
}

// addReact wires input → react agent → END.
func (b *GraphBuilder) addReact() error {
	if err := b.graph.AddLambdaNode(nodes.NodeReactAgent,
		nodes.NewReactNode(b.config.React),
		compose.WithStatePostHandler(nodes.NewAgentTurnPostHandler(b.mm, b.config.Sessions, model.ActionReact)),
	); err != nil {
		return fmt.Errorf("add react node: %w", err)
	}
	return b.addEdges([][2]string{
		{nodes.NodeInputConverter, nodes.NodeReactAgent},
		{nodes.NodeReactAgent, compose.END},
	})
}

// addToolCalling wires the native tool-calling loop:
// input → assembler → response model ⇄ tool executor → END.
func (b *GraphBuilder) addToolCalling(ctx context.Context) error {
	cfg := b.config
	maxCalls := cfg.Conversation.Tools.MaxCalls

	infos, err := cfg.Tools.Infos(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return fmt.Errorf("failed to get tool infos: %w", err)
	}
	responseModel, err := cfg.ResponseModel.WithTools(infos)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to response model")
		return fmt.Errorf("failed to bind tools to response model: %w", err)
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:                cfg.Tools.BaseTools(),
		ExecuteSequentially:  true,
		UnknownToolsHandler:  nodes.UnknownTool,
		ToolArgumentsHandler: nodes.SanitizeToolArguments,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	if err := b.graph.AddLambdaNode(nodes.NodeResponseAssembler,
		nodes.NewResponseAssemblerNode(b.mm, cfg.Tools),
	); err != nil {
		return fmt.Errorf("add response assembler: %w", err)
	}
	if err := b.graph.AddChatModelNode(nodes.NodeResponseChatModel, responseModel,
		compose.WithStatePreHandler(nodes.NewResponseChatModelPreHandler(maxCalls)),
		compose.WithStatePostHandler(nodes.NewResponseChatModelPostHandler(b.mm, cfg.Sessions, cfg.ResponseModelName)),
	); err != nil {
		return fmt.Errorf("add response model: %w", err)
	}
	if err := b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler(maxCalls)),
	); err != nil {
		return fmt.Errorf("add tools node: %w", err)
	}

	if err := b.addEdges([][2]string{
		{nodes.NodeInputConverter, nodes.NodeResponseAssembler},
		{nodes.NodeResponseAssembler, nodes.NodeResponseChatModel},
		{nodes.NodeToolExecutor, nodes.NodeResponseChatModel},
	}); err != nil {
		return err
	}

	decisionBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			compose.END:            true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeResponseChatModel, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}
	return nil
}

func (b *GraphBuilder) addEdges(edges [][2]string) error {
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	// Bound run steps so a model that keeps calling tools cannot loop forever.
	maxSteps := max(20, 10+nodes.DefaultMaxToolCalls*2)
	if n := b.config.Conversation.Tools.MaxCalls; n > 0 {
		maxSteps = max(20, 10+n*2)
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
