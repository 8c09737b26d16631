// Package commands defines the cobra commands of the rag-chatbot binary.
package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/logging"
)

const defaultConfigPath = "./configs/config.yaml"

// configPath holds the --config flag value
var configPath string

// cfg is loaded once by the root command before any subcommand runs
var cfg *config.Config

// NewRootCmd builds the root command. Run without a subcommand it serves the
// web page, like serve.
func NewRootCmd() *cobra.Command {
	serve := NewServeCmd()

	root := &cobra.Command{
		Use:   "rag-chatbot",
		Short: "Ask questions about a PDF with retrieval augmented generation",
		Long: `rag-chatbot indexes one document at a time into a local vector store
and answers questions about it with an LLM.

Settings are read from a YAML file (default ./configs/config.yaml).
OPENAI_API_KEY and OPENAI_BASE_URL may be set in the environment or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			log.Debug().Str("config", configPath).Msg("Loaded config")
			return nil
		},
		RunE: serve.RunE,
	}

	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to YAML config file")

	root.AddCommand(
		serve,
		NewIngestCmd(),
		NewAskCmd(),
		NewExportCmd(),
	)

	return root
}
