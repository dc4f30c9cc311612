package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sous-chef/server/internal/agent/classifier"
	"github.com/sous-chef/server/internal/agent/model"
	"github.com/sous-chef/server/internal/store"
	logx "github.com/sous-chef/server/pkg/logger"
)

type appKey struct{}

func newRootCmd() *cobra.Command {
	var mode string

	root := &cobra.Command{
		Use:           "sous-chef",
		Short:         "Conversational recipe assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel})
			if mode != "" {
				if err := cfg.Agent.Mode.Decode(mode); err != nil {
					return err
				}
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a := appFrom(cmd); a != nil {
				a.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&mode, "mode", "", "agent mode: rules, llm, hybrid, react or tools (default AGENT_MODE)")

	root.AddCommand(newAskCmd(), newClassifyCmd(), newRecipesCmd(), newServeCmd())
	return root
}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

func newAskCmd() *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message, or chat interactively when no message is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if err := a.buildRunner(cmd.Context(), a.cfg.Agent.Mode); err != nil {
				return err
			}
			if len(args) > 0 {
				_, err := ask(cmd, a, conversationID, strings.Join(args, " "))
				return err
			}
			return chat(cmd, a, conversationID)
		},
	}
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "conversation id to continue")
	return cmd
}

func ask(cmd *cobra.Command, a *app, conversationID, message string) (string, error) {
	resp, err := a.runner.Invoke(cmd.Context(), model.QueryInput{
		ConversationID: conversationID,
		Query:          message,
	})
	if err != nil {
		return conversationID, err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Content)
	return resp.ConversationID, nil
}

// chat reads one message per line until EOF or "quit".
func chat(cmd *cobra.Command, a *app, conversationID string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sous chef ready (%s mode). Type 'quit' to exit.\n", a.cfg.Agent.Mode)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		id, err := ask(cmd, a, conversationID, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		conversationID = id
	}
}

func newClassifyCmd() *cobra.Command {
	var coverage bool
	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Show how the rules and the classifier read a text",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ctx := cmd.Context()
			if coverage {
				cov, err := a.classifier.ValidateCoverage(ctx, classifier.ExampleQueries(a.classifier.Definitions()))
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), cov)
			}
			if len(args) == 0 {
				return errors.New("classify needs a text or --coverage")
			}

			text := strings.Join(args, " ")
			out := map[string]any{
				"classifier": a.classifier.Classify(ctx, text, classifier.Context{}),
			}
			if res, ok := a.router.Match(ctx, text); ok {
				out["rules"] = res
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&coverage, "coverage", false, "classify every catalogue example and report the distribution")
	return cmd
}

func newRecipesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "Browse the recipe collection",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the newest recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recipes, err := appFrom(cmd).recipes.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, r := range recipes {
				fmt.Fprintf(out, "%d. %s  [%s]  %s\n", i+1, r.Title, r.ID, r.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 10, "number of recipes")

	show := &cobra.Command{
		Use:   "show <id or title>",
		Short: "Print one recipe",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			key := strings.Join(args, " ")
			r, err := a.recipes.Get(cmd.Context(), key)
			if errors.Is(err, store.ErrNotFound) {
				r, err = a.recipes.FindByTitle(cmd.Context(), key)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.DisplayString())
			return nil
		},
	}

	var topK int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search recipes by meaning, or by keywords without embeddings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := appFrom(cmd).searcher.Search(cmd.Context(), strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No matching recipes.")
			}
			for i, res := range results {
				fmt.Fprintf(out, "%d. %s (%.0f%%)  [%s]\n", i+1, res.Recipe.Title, res.Score*100, res.Recipe.ID)
			}
			return nil
		},
	}
	search.Flags().IntVarP(&topK, "top", "k", store.DefaultTopK, "number of results")

	cmd.AddCommand(list, show, search)
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string
	var warmup bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := appFrom(cmd)
			if err := a.buildRunner(ctx, a.cfg.Agent.Mode); err != nil {
				return err
			}
			if warmup && a.searcher.Semantic() {
				go func() {
					if err := a.searcher.Warmup(ctx, 4); err != nil {
						logx.Warn().Err(err).Msg("embedding warmup failed")
					}
				}()
			}
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			return a.server().Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR)")
	cmd.Flags().BoolVar(&warmup, "warmup", true, "embed the collection in the background at startup")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
