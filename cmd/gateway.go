package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/minibot-ai/minibot/internal/agent"
	"github.com/minibot-ai/minibot/internal/bootstrap"
	"github.com/minibot-ai/minibot/internal/bus"
	"github.com/minibot-ai/minibot/internal/channels"
	"github.com/minibot-ai/minibot/internal/channels/discord"
	"github.com/minibot-ai/minibot/internal/channels/telegram"
	"github.com/minibot-ai/minibot/internal/channels/whatsapp"
	"github.com/minibot-ai/minibot/internal/config"
	"github.com/minibot-ai/minibot/internal/cron"
	"github.com/minibot-ai/minibot/internal/heartbeat"
	"github.com/minibot-ai/minibot/internal/providers"
	"github.com/minibot-ai/minibot/internal/sessions"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the agent gateway (also the default command)",
		Run: func(cmd *cobra.Command, args []string) {
			runGateway()
		},
	}
}

func runGateway() {
	setupLogging()

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if !hasAnyProvider(cfg) {
		fmt.Println("No AI provider API key configured.")
		fmt.Println()
		fmt.Println("Run the setup wizard:  minibot onboard")
		fmt.Println("Or export a key:       MINIBOT_OPENROUTER_API_KEY=sk-... minibot")
		os.Exit(1)
	}

	// Workspace must be absolute for system prompt paths and file tool
	// path resolution.
	workspace := cfg.WorkspacePath()
	if !filepath.IsAbs(workspace) {
		workspace, _ = filepath.Abs(workspace)
	}
	os.MkdirAll(workspace, 0755)

	if seeded, seedErr := bootstrap.EnsureWorkspaceFiles(workspace); seedErr != nil {
		slog.Warn("workspace template seeding failed", "error", seedErr)
	} else if len(seeded) > 0 {
		slog.Info("seeded workspace templates", "files", seeded)
	}

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
	sess := sessions.NewManager(store)

	msgBus := bus.New()
	cronSvc := cron.NewService(filepath.Join(config.DataDir(), "cron", "jobs.json"), msgBus)

	loop := agent.New(agent.Config{
		Bus:                 msgBus,
		Provider:            provider,
		Sessions:            sess,
		Workspace:           workspace,
		Model:               cfg.Agents.Defaults.Model,
		MaxTokens:           cfg.Agents.Defaults.MaxTokens,
		Temperature:         cfg.Agents.Defaults.Temperature,
		MaxIterations:       cfg.Agents.Defaults.MaxToolIterations,
		BraveAPIKey:         cfg.Tools.Web.Search.APIKey,
		SearchMaxResults:    cfg.Tools.Web.Search.MaxResults,
		ExecTimeoutSeconds:  cfg.Tools.Exec.Timeout,
		RestrictToWorkspace: cfg.Tools.RestrictToWorkspace,
		CronService:         cronSvc,
	})

	hb := heartbeat.NewService(workspace,
		time.Duration(cfg.Heartbeat.IntervalMinutes)*time.Minute,
		cfg.Heartbeat.Enabled,
		func(ctx context.Context, prompt string) (string, error) {
			return loop.ProcessDirect(ctx, prompt, "cli", "heartbeat")
		})

	channelMgr := channels.NewManager(msgBus)
	registerChannels(channelMgr, cfg, msgBus)

	// Replies addressed to the internal cli channel (cron output without a
	// delivery target, heartbeat followups) land on stdout.
	msgBus.SubscribeOutbound("cli", func(msg bus.OutboundMessage) error {
		fmt.Printf("[%s] %s\n", msg.ChatID, msg.Content)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Skills directory watcher picks up new/edited skills at runtime.
	if err := loop.Skills().Watch(); err != nil {
		slog.Warn("skills watcher unavailable", "error", err)
	}
	defer loop.Skills().Close()

	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
	}
	if err := cronSvc.Start(ctx); err != nil {
		slog.Warn("cron service failed to start", "error", err)
	}
	hb.Start(ctx)

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loop.Run(runCtx)
		return nil
	})

	slog.Info("minibot gateway started",
		"version", Version,
		"model", cfg.Agents.Defaults.Model,
		"workspace", workspace,
		"channels", channelMgr.EnabledChannels(),
		"tools", loop.Registry().Len(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("graceful shutdown initiated", "signal", sig)

	channelMgr.StopAll(context.Background())
	hb.Stop()
	cronSvc.Stop()
	cancel()
	g.Wait()
	loop.Shutdown()
}

// registerChannels builds the adapters that are enabled and credentialed.
func registerChannels(mgr *channels.Manager, cfg *config.Config, msgBus *bus.MessageBus) {
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		tg, err := telegram.New(cfg.Channels.Telegram, msgBus)
		if err != nil {
			slog.Error("failed to initialize telegram channel", "error", err)
		} else {
			mgr.RegisterChannel(tg)
			slog.Info("telegram channel enabled")
		}
	}

	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token != "" {
		dc, err := discord.New(cfg.Channels.Discord, msgBus)
		if err != nil {
			slog.Error("failed to initialize discord channel", "error", err)
		} else {
			mgr.RegisterChannel(dc)
			slog.Info("discord channel enabled")
		}
	}

	if cfg.Channels.WhatsApp.Enabled && cfg.Channels.WhatsApp.BridgeURL != "" {
		wa, err := whatsapp.New(cfg.Channels.WhatsApp, msgBus)
		if err != nil {
			slog.Error("failed to initialize whatsapp channel", "error", err)
		} else {
			mgr.RegisterChannel(wa)
			slog.Info("whatsapp channel enabled")
		}
	}
}

func hasAnyProvider(cfg *config.Config) bool {
	for _, key := range []string{
		cfg.Providers.OpenRouter.APIKey,
		cfg.Providers.OpenAI.APIKey,
		cfg.Providers.Anthropic.APIKey,
		cfg.Providers.DeepSeek.APIKey,
		cfg.Providers.Groq.APIKey,
	} {
		if key != "" {
			return true
		}
	}
	return false
}
