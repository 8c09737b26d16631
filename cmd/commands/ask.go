package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewAskCmd constructs the `ask` command, which answers one question from the
// documents already in the index
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed document",
		Long: `Retrieve the most similar chunks from the vector store and ask the
inference model to answer from them.

Examples:
  rag-chatbot ask "What color is the sky?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			pipeline, closePipeline, err := buildPipeline(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closePipeline()

			response, err := pipeline.Query(cmd.Context(), question)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			log.Info().Int("chunks", len(response.Results)).Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
			fmt.Printf("%s\n\n", question)

			log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
			fmt.Printf("%s\n", response)
			return nil
		},
	}

	return cmd
}
