package serve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"parley/internal/agent"
	"parley/internal/config"
	"parley/internal/elicit"
	"parley/internal/gateway"
	"parley/internal/journal"
	"parley/internal/llm"
	"parley/internal/tools"
	"parley/internal/trace"
)

var addr string

var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if addr != "" {
			cfg.Gateway.Addr = addr
		}

		ctx := cmd.Context()
		if cfg.Trace.Endpoint != "" {
			shutdown, err := trace.Init(ctx, trace.Config{
				Endpoint: cfg.Trace.Endpoint,
				URLPath:  cfg.Trace.URLPath,
				APIKey:   cfg.Trace.APIKey,
			})
			if err != nil {
				return fmt.Errorf("initialising tracing: %w", err)
			}
			defer shutdown(context.Background())
		}

		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer j.Close()
		if err := j.Migrate(); err != nil {
			return fmt.Errorf("migrating journal: %w", err)
		}

		elicits := elicit.NewRegistry(elicit.WithRecorder(j))

		llmCfg := cfg.LLMs[cfg.DefaultLLM]
		if llmCfg == nil {
			return fmt.Errorf("default_llm %q is not configured", cfg.DefaultLLM)
		}
		provider := llm.NewOpenAI(llmCfg.BaseURL, llmCfg.APIKey, llmCfg.Model)

		registry := agent.NewToolRegistry()
		registry.Register(tools.NewScheduler())
		registry.Register(tools.NewParticipants())
		if cfg.Tools.BraveAPIKey != "" {
			registry.Register(tools.NewWeb(cfg.Tools.BraveAPIKey))
		}

		orch := agent.NewOrchestrator(provider, registry, elicits,
			agent.WithAskTimeout(time.Duration(cfg.Elicit.TimeoutSeconds)*time.Second),
		)

		srv := gateway.NewServer(orch, elicits, j, registry,
			gateway.WithStreamBuffer(cfg.Gateway.StreamBuffer),
		)

		slog.Info("starting gateway", "addr", cfg.Gateway.Addr, "tools", len(registry.All()))
		return srv.ListenAndServe(cfg.Gateway.Addr)
	},
}

func init() {
	Cmd.Flags().StringVarP(&addr, "addr", "a", "", "override gateway listen address")
}
