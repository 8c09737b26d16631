package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/chromemdb"
	"rag-chatbot/internal/config"
	"rag-chatbot/internal/db"
	"rag-chatbot/internal/embedding"
	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/history"
	"rag-chatbot/internal/llmservice"
	"rag-chatbot/internal/parser"
	"rag-chatbot/internal/rag"
)

// buildPipeline wires the configured embedder, vector store, model and
// splitter into a RAG. The returned func releases the store.
func buildPipeline(ctx context.Context, cfg *config.Config) (*rag.RAG, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	embed, err := buildEmbedFunc(cfg)
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := buildStore(ctx, cfg, embed)
	if err != nil {
		return nil, nil, err
	}

	completer, err := llmservice.New(&cfg.InferenceLLM)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("failed to initialize inference client: %w", err)
	}

	splitter, err := buildSplitter(cfg)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	return rag.NewRAG(store, completer, splitter, cfg.RAG.TopK), closeStore, nil
}

func buildEmbedFunc(cfg *config.Config) (embedding.Func, error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return embedding.NewFunc(embedder), nil
}

func buildSplitter(cfg *config.Config) (*parser.Splitter, error) {
	splitter, err := parser.NewSplitter(cfg.RAG.Splitter, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("failed to create splitter: %w", err)
	}
	return splitter, nil
}

func buildStore(ctx context.Context, cfg *config.Config, embed embedding.Func) (rag.VectorStore, func(), error) {
	switch cfg.VectorStore.Type {
	case config.StorePGVector:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store := db.NewStore(db.NewDB(sqldb, cfg.Database.Debug), embed)
		if err := store.InitDB(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		log.Info().Str("store", config.StorePGVector).Msg("Vector store ready")
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing database")
			}
		}, nil
	default:
		log.Info().Str("store", config.StoreChromem).Str("path", cfg.VectorStore.Path).Msg("Vector store ready")
		return newChromem(cfg, embed), func() {}, nil
	}
}

func newChromem(cfg *config.Config, embed embedding.Func) *chromemdb.VectorDBManager {
	return chromemdb.NewVectorDBManager(chromemdb.Options{
		DBPath:         cfg.VectorStore.Path,
		CollectionName: cfg.VectorStore.Collection,
		InMemory:       cfg.VectorStore.InMemory,
		Compress:       cfg.VectorStore.Compress,
		EncryptionKey:  cfg.VectorStore.EncryptionKey,
	}, embed)
}

// openHistory returns nil with no error when the history is disabled
func openHistory(path string) (*history.SQLiteStore, error) {
	if path == config.HistoryDisabled || path == "" {
		return nil, nil
	}
	if err := helper.CreateParentFolder(path); err != nil {
		return nil, err
	}
	hist, err := history.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	return hist, nil
}
