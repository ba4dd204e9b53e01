package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/comigor/ollamachat/internal/cli"
	"github.com/comigor/ollamachat/internal/config"
	"github.com/comigor/ollamachat/internal/history"
	"github.com/comigor/ollamachat/internal/llm"
	"github.com/comigor/ollamachat/internal/logger"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ollamachat",
		Short:         "Chat with local Ollama models from the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "Path to the config file (default ./config.yaml or $CONFIG_PATH)")
	flags.StringP("model", "m", "", "Model to chat with (e.g., llama3:8b)")
	flags.String("base-url", "", "Server base URL")
	flags.String("provider", "", "Server API: ollama or openai")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Bool("no-markdown", false, "Print replies as plain text")

	_ = v.BindPFlag("llm.model", flags.Lookup("model"))
	_ = v.BindPFlag("llm.base_url", flags.Lookup("base-url"))
	_ = v.BindPFlag("llm.provider", flags.Lookup("provider"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))

	return cmd
}

// loadConfig resolves the config file from the flag or CONFIG_PATH, then
// applies flag overrides on top of file and environment values.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if noMarkdown, _ := cmd.Flags().GetBool("no-markdown"); noMarkdown {
		v.Set("chat.markdown", false)
	}
	return config.LoadFrom(v, path)
}

func run(ctx context.Context, cfg *config.Config) error {
	logger.SetLevel(cfg.Log.Level)

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}

	var store *history.Store
	if cfg.History.Enabled {
		store = history.NewStore(cfg.History.Path)
		defer store.Close()
	}

	c := cli.New(client, store, cli.Options{
		BaseURL:      cfg.LLM.BaseURL,
		Model:        cfg.LLM.Model,
		SystemPrompt: cfg.Chat.SystemPrompt,
		Markdown:     cfg.Chat.Markdown,
		InputHistory: cfg.Chat.InputHistory,
	})
	c.Start(ctx)
	return c.Run(ctx)
}
