package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rag-chatbot/internal/server"
)

// NewServeCmd constructs the `serve` command, which starts the web page
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat web page",
		Long: `Start the HTTP server with the upload and question page.

Examples:
  rag-chatbot serve
  rag-chatbot serve --port 9090
  rag-chatbot --config ./configs/ollama.yaml serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipeline, closePipeline, err := buildPipeline(ctx, cfg)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closePipeline()

			hist, err := openHistory(cfg.History.DBPath)
			switch {
			case err != nil:
				log.Warn().Err(err).Msg("Error opening history, continuing without it")
			case hist != nil:
				defer func() { _ = hist.Close() }()
				log.Info().Str("path", cfg.History.DBPath).Msg("History store opened")
			default:
				log.Info().Msg("History disabled")
			}

			srvCfg := &server.Config{
				Host:           cfg.Server.Host,
				Port:           cfg.Server.Port,
				UploadPath:     cfg.Server.UploadPath,
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				HistorySize:    cfg.History.Size,
			}
			if host != "" {
				srvCfg.Host = host
			}
			if port != 0 {
				srvCfg.Port = port
			}

			var srv *server.Server
			if hist != nil {
				srv, err = server.New(pipeline, hist, srvCfg)
			} else {
				srv, err = server.New(pipeline, nil, srvCfg)
			}
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default from config)")

	return cmd
}
