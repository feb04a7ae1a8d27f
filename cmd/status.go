package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/minibot-ai/minibot/internal/config"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration status",
		Run: func(cmd *cobra.Command, args []string) {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %s\n", err)
				os.Exit(1)
			}

			fmt.Printf("minibot %s\n\n", Version)
			fmt.Printf("Config:    %s\n", cfgPath)
			fmt.Printf("Workspace: %s\n", cfg.WorkspacePath())
			fmt.Printf("Model:     %s\n", cfg.Agents.Defaults.Model)
			fmt.Printf("Sessions:  %s\n", sessionBackendName(cfg.Sessions.Backend))

			fmt.Println("\nProviders:")
			for name, key := range map[string]string{
				"openrouter": cfg.Providers.OpenRouter.APIKey,
				"openai":     cfg.Providers.OpenAI.APIKey,
				"anthropic":  cfg.Providers.Anthropic.APIKey,
				"deepseek":   cfg.Providers.DeepSeek.APIKey,
				"groq":       cfg.Providers.Groq.APIKey,
			} {
				if key != "" {
					fmt.Printf("  %-10s configured\n", name)
				}
			}
			if !hasAnyProvider(cfg) {
				fmt.Println("  none configured")
			}

			fmt.Println("\nChannels:")
			printChannel("telegram", cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "")
			printChannel("discord", cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token != "")
			printChannel("whatsapp", cfg.Channels.WhatsApp.Enabled && cfg.Channels.WhatsApp.BridgeURL != "")

			fmt.Println("\nHeartbeat:")
			if cfg.Heartbeat.Enabled {
				fmt.Printf("  enabled, every %d minutes\n", cfg.Heartbeat.IntervalMinutes)
			} else {
				fmt.Println("  disabled")
			}

			jobs := openCronService().ListJobs()
			fmt.Printf("\nScheduled jobs: %d\n", len(jobs))
		},
	}
}

func sessionBackendName(backend string) string {
	if backend == "" {
		return "file"
	}
	return backend
}

func printChannel(name string, enabled bool) {
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("  %-10s %s\n", name, state)
}
