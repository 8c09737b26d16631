package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"

	"rag-chatbot/internal/models"
	"rag-chatbot/internal/parser"
)

// ErrEmptyQuestion is returned by Query for a blank question
var ErrEmptyQuestion = errors.New("please enter a query")

type VectorStore interface {
	Add(ctx context.Context, chunks []models.Chunk) error
	Query(ctx context.Context, text string, k int) ([]models.QueryResult, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Splitter interface {
	Split(pages []models.Chunk) ([]models.Chunk, error)
}

// Loader extracts page records from a file
type Loader func(filePath, source string) ([]models.Chunk, error)

// RAG holds the single active document index and answers questions about it.
// Ingest takes the write lock, Query the read lock.
type RAG struct {
	mu           sync.RWMutex
	store        VectorStore
	completer    Completer
	splitter     Splitter
	load         Loader
	prompt       prompts.PromptTemplate
	topK         int
	documentName string
}

func NewRAG(store VectorStore, completer Completer, splitter Splitter, topK int) *RAG {
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	return &RAG{
		store:     store,
		completer: completer,
		splitter:  splitter,
		load:      parser.Load,
		prompt:    prompts.NewPromptTemplate(models.PromptTemplate, []string{"context", "question"}),
		topK:      topK,
	}
}

// DocumentName is the display name of the document in the index. It is empty
// before the first ingest and after an ingest that failed to add its chunks.
func (r *RAG) DocumentName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.documentName
}

// Count returns the number of chunks in the index
func (r *RAG) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Count(ctx)
}

// Prepare loads and splits a document without touching the index
func (r *RAG) Prepare(filePath, documentName string) ([]models.Chunk, error) {
	pages, err := r.load(filePath, documentName)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	log.Debug().Str("document", documentName).Int("pages", len(pages)).Msg("Loaded document")

	chunks, err := r.splitter.Split(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to split document: %w", err)
	}
	return chunks, nil
}

// Ingest replaces the index with the chunks of filePath and returns how many
// were stored. A failure to clear the old index is logged and ignored.
func (r *RAG) Ingest(ctx context.Context, filePath, documentName string) (int, error) {
	chunks, err := r.Prepare(filePath, documentName)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Clear(ctx); err != nil {
		log.Warn().Err(err).Msg("Error removing vector database")
	}
	// the previous document is gone from here on
	r.documentName = ""
	if err := r.store.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to add document to vector database: %w", err)
	}
	r.documentName = documentName

	log.Info().Str("document", documentName).Int("chunks", len(chunks)).Msg("Document added to vector database")
	return len(chunks), nil
}

// Query retrieves the top chunks for question and asks the model to answer
// from them. Sources hold one entry per retrieved chunk.
func (r *RAG) Query(ctx context.Context, question string) (*models.PromptResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	r.mu.RLock()
	results, err := r.store.Query(ctx, question, r.topK)
	documentName := r.documentName
	r.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	contexts := make([]string, 0, len(results))
	sources := make([]string, 0, len(results))
	for _, res := range results {
		contexts = append(contexts, res.Chunk.Content)
		source := res.Chunk.Source
		if source == "" {
			source = documentName
		}
		sources = append(sources, source)
	}

	prompt, err := r.prompt.Format(map[string]any{
		"context":  strings.Join(contexts, models.ContextSeparator),
		"question": question,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format prompt: %w", err)
	}
	log.Debug().Int("results", len(results)).Str("question", question).Msg("Sending prompt")

	answer, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &models.PromptResponse{
		Query:    question,
		Content:  answer,
		Sources:  sources,
		Document: documentName,
		Results:  results,
	}, nil
}
