// Package cli is the kbctl command tree: a terminal view over the same
// chat and knowledge base orchestrators the gateway serves.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knowledge-capture/console/internal/app"
	"github.com/knowledge-capture/console/internal/render"
	"github.com/knowledge-capture/console/pkg/config"
	"github.com/knowledge-capture/console/pkg/logger"
)

var version = "dev"

type options struct {
	configPath string
	email      string
	baseURL    string
	width      int
}

// NewRootCommand builds kbctl with all subcommands attached.
func NewRootCommand() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "kbctl",
		Short: "Chat with your documents and manage the knowledge base",
		Long: `kbctl talks to the knowledge capture backend: ask questions with a
chosen retrieval strategy, and upload, list or delete the documents
answers are drawn from.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "config file path (default is ./config.yaml or $HOME/.kbconsole/config.yaml)")
	root.PersistentFlags().StringVar(&o.email, "email", "", "identity sent to the backend")
	root.PersistentFlags().StringVar(&o.baseURL, "base-url", "", "backend base URL")
	root.PersistentFlags().IntVar(&o.width, "width", 80, "wrap width for rendered answers")

	root.AddCommand(
		newAskCommand(o),
		newChatCommand(o),
		newFilesCommand(o),
		newStrategiesCommand(o),
	)

	return root
}

// build loads configuration, applies flag overrides and wires the console.
func (o *options) build() (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.email != "" {
		cfg.Identity.Email = o.email
	}
	if o.baseURL != "" {
		cfg.Backend.BaseURL = o.baseURL
	}

	if err := logger.InitWithOptions(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath, logger.Options{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return app.New(cfg, nil)
}

func (o *options) renderer() *render.Renderer {
	return render.New(o.width)
}
