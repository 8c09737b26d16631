package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"rag-chatbot/internal/config"
)

// NewExportCmd constructs the `export` command, which writes an encrypted
// snapshot of the chromem index
func NewExportCmd() *cobra.Command {
	var out string
	var key string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the chromem index to an encrypted file",
		Long: `Write the indexed collection to a gzip compressed (when
vector_store.compress is set), AES-GCM encrypted file.

The key must be 32 bytes long. It defaults to vector_store.encryption_key.

Examples:
  rag-chatbot export --out ./backup/documents.gob.enc --key "$RAG_EXPORT_KEY"`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if cfg.VectorStore.Type != config.StoreChromem {
				return errors.New("export: only the chromem vector store can be exported")
			}
			// exporting never embeds, so no embedder is needed
			if err := newChromem(cfg, nil).Export(out, key); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Printf("Exported %s to %s\n", cfg.VectorStore.Collection, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "File to write the snapshot to")
	cmd.Flags().StringVar(&key, "key", "", "32 byte encryption key (default from config)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
