package commands

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/rag"
)

// NewIngestCmd constructs the `ingest` command, which replaces the index with
// the contents of one document
func NewIngestCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Replace the index with a document",
		Long: `Load, split and embed a document into the vector store, replacing
whatever was indexed before.

With --dry-run the chunks are printed and nothing is embedded or stored.

Examples:
  rag-chatbot ingest ./docs/handbook.pdf
  rag-chatbot ingest --dry-run ./notes.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath := args[0]
			name := filepath.Base(filePath)

			if dryRun {
				splitter, err := buildSplitter(cfg)
				if err != nil {
					return err
				}
				chunks, err := rag.NewRAG(nil, nil, splitter, cfg.RAG.TopK).Prepare(filePath, name)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				log.Info().Int("chunks", len(chunks)).Msg("Parsed content")
				return helper.PrettyPrint(cmd.OutOrStdout(), chunks)
			}

			pipeline, closePipeline, err := buildPipeline(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closePipeline()

			n, err := pipeline.Ingest(cmd.Context(), filePath, name)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			fmt.Printf("Added %d chunks from %s\n", n, name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the chunks without saving them")

	return cmd
}
