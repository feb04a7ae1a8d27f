package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/minibot-ai/minibot/internal/bootstrap"
	"github.com/minibot-ai/minibot/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive setup wizard",
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

func runOnboard() {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Default()
	}

	var (
		providerName  = "openrouter"
		apiKey        string
		model         = cfg.Agents.Defaults.Model
		telegramToken = cfg.Channels.Telegram.Token
		discordToken  = cfg.Channels.Discord.Token
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("LLM provider").
				Options(
					huh.NewOption("OpenRouter (many models, one key)", "openrouter"),
					huh.NewOption("Anthropic", "anthropic"),
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("DeepSeek", "deepseek"),
					huh.NewOption("Groq", "groq"),
				).
				Value(&providerName),
			huh.NewInput().
				Title("API key").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewInput().
				Title("Model").
				Description("Leave as-is to use the default.").
				Value(&model),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				Description("Optional. Leave empty to skip Telegram.").
				Value(&telegramToken),
			huh.NewInput().
				Title("Discord bot token").
				Description("Optional. Leave empty to skip Discord.").
				Value(&discordToken),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "setup aborted: %s\n", err)
		os.Exit(1)
	}

	if apiKey != "" {
		switch providerName {
		case "openrouter":
			cfg.Providers.OpenRouter.APIKey = apiKey
		case "anthropic":
			cfg.Providers.Anthropic.APIKey = apiKey
		case "openai":
			cfg.Providers.OpenAI.APIKey = apiKey
		case "deepseek":
			cfg.Providers.DeepSeek.APIKey = apiKey
		case "groq":
			cfg.Providers.Groq.APIKey = apiKey
		}
	}
	if model != "" {
		cfg.Agents.Defaults.Model = model
	}
	if telegramToken != "" {
		cfg.Channels.Telegram.Enabled = true
		cfg.Channels.Telegram.Token = telegramToken
	}
	if discordToken != "" {
		cfg.Channels.Discord.Enabled = true
		cfg.Channels.Discord.Token = discordToken
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write config: %s\n", err)
		os.Exit(1)
	}

	workspace := cfg.WorkspacePath()
	if _, err := bootstrap.EnsureWorkspaceFiles(workspace); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed workspace: %s\n", err)
	}

	fmt.Println()
	fmt.Printf("Config written to %s\n", cfgPath)
	fmt.Printf("Workspace at %s\n", workspace)
	fmt.Println()
	fmt.Println("Start the gateway:  minibot")
	fmt.Println("Or try one turn:    minibot agent -m \"hello\"")
}
