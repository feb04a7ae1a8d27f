package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/minibot-ai/minibot/internal/agent"
	"github.com/minibot-ai/minibot/internal/bus"
	"github.com/minibot-ai/minibot/internal/config"
	"github.com/minibot-ai/minibot/internal/providers"
	"github.com/minibot-ai/minibot/internal/sessions"
)

func agentCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run a single agent turn from the command line",
		Run: func(cmd *cobra.Command, args []string) {
			runAgentOnce(message)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "message to send to the agent")
	cmd.MarkFlagRequired("message")
	return cmd
}

func runAgentOnce(message string) {
	setupLogging()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if !hasAnyProvider(cfg) {
		fmt.Println("No AI provider API key configured. Run:  minibot onboard")
		os.Exit(1)
	}

	workspace := cfg.WorkspacePath()
	if !filepath.IsAbs(workspace) {
		workspace, _ = filepath.Abs(workspace)
	}
	os.MkdirAll(workspace, 0755)

	provider, err := providers.FromConfig(cfg, cfg.Agents.Defaults.Model)
	if err != nil {
		slog.Error("failed to resolve provider", "error", err)
		os.Exit(1)
	}

	store, err := sessions.Open(cfg.Sessions.Backend, filepath.Join(config.DataDir(), "sessions"))
	if err != nil {
		slog.Error("failed to open sessions store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	loop := agent.New(agent.Config{
		Bus:                 bus.New(),
		Provider:            provider,
		Sessions:            sessions.NewManager(store),
		Workspace:           workspace,
		Model:               cfg.Agents.Defaults.Model,
		MaxTokens:           cfg.Agents.Defaults.MaxTokens,
		Temperature:         cfg.Agents.Defaults.Temperature,
		MaxIterations:       cfg.Agents.Defaults.MaxToolIterations,
		BraveAPIKey:         cfg.Tools.Web.Search.APIKey,
		SearchMaxResults:    cfg.Tools.Web.Search.MaxResults,
		ExecTimeoutSeconds:  cfg.Tools.Exec.Timeout,
		RestrictToWorkspace: cfg.Tools.RestrictToWorkspace,
	})
	defer loop.Shutdown()

	reply, err := loop.ProcessDirect(context.Background(), message, "cli", "direct")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	fmt.Println(reply)
}
