package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/embedding"
	"rag-chatbot/internal/models"
)

const defaultTopK = models.DefaultTopK

// Options configure where and how the index is stored
type Options struct {
	DBPath         string
	CollectionName string
	InMemory       bool
	Compress       bool
	EncryptionKey  string
}

// VectorDBManager encapsulates the chromem-go database operations.
// The database handle is opened on first use and dropped by Clear.
type VectorDBManager struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	embed      chromem.EmbeddingFunc
	opts       Options
}

// NewVectorDBManager initializes a new vector database manager without
// touching the disk
func NewVectorDBManager(opts Options, embed embedding.Func) *VectorDBManager {
	return &VectorDBManager{
		embed: chromem.EmbeddingFunc(embed),
		opts:  opts,
	}
}

// open returns the collection, creating the database and collection if needed.
// Callers must hold m.mu.
func (m *VectorDBManager) open() (*chromem.Collection, error) {
	if m.collection != nil {
		return m.collection, nil
	}

	if m.db == nil {
		if m.opts.InMemory {
			m.db = chromem.NewDB()
		} else {
			db, err := chromem.NewPersistentDB(m.opts.DBPath, m.opts.Compress)
			if err != nil {
				return nil, fmt.Errorf("failed to create database: %w", err)
			}
			m.db = db
		}
	}

	c, err := m.db.GetOrCreateCollection(m.opts.CollectionName, nil, m.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// Add embeds and stores chunks
func (m *VectorDBManager) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.open()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, chunk := range chunks {
		docs = append(docs, chromem.Document{
			ID:       chunk.ID,
			Content:  chunk.Content,
			Metadata: metadata(chunk),
		})
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Int("documents", len(docs)).Int("total", c.Count()).Msg("Added documents to vector database")
	return nil
}

// Query returns up to k chunks most similar to text, best first.
// An empty index yields no results.
func (m *VectorDBManager) Query(ctx context.Context, text string, k int) ([]models.QueryResult, error) {
	if text == "" {
		return nil, errors.New("query text is required")
	}
	if k <= 0 {
		k = defaultTopK
	}

	// the collection is safe for concurrent reads, only the handle needs the lock
	m.mu.Lock()
	c, err := m.open()
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection
	k = min(k, c.Count())
	if k == 0 {
		return nil, nil
	}

	results, err := c.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.QueryResult, 0, len(results))
	for _, r := range results {
		out = append(out, models.QueryResult{
			Chunk: chunkFromResult(r),
			Score: r.Similarity,
		})
	}
	return out, nil
}

// Count returns the number of stored chunks
func (m *VectorDBManager) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.open()
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// Clear drops the handle and deletes the whole persisted index directory.
// The next Add or Query starts from an empty index.
func (m *VectorDBManager) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.collection = nil
	m.db = nil

	if m.opts.InMemory {
		return nil
	}
	if err := os.RemoveAll(m.opts.DBPath); err != nil {
		return fmt.Errorf("failed to remove vector database %s: %w", m.opts.DBPath, err)
	}
	return nil
}

// Export writes an encrypted snapshot of the collection to filePath.
// The key must be 32 bytes long.
func (m *VectorDBManager) Export(filePath, encryptionKey string) error {
	if encryptionKey == "" {
		encryptionKey = m.opts.EncryptionKey
	}
	if encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if filePath == "" {
		return fmt.Errorf("export file path is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.open()
	if err != nil {
		return err
	}

	log.Debug().Str("collection", c.Name).Str("file", filePath).Bool("compress", m.opts.Compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(filePath, m.opts.Compress, encryptionKey, c.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// meta data will have source filename, page number, chunk id
func metadata(chunk models.Chunk) map[string]string {
	return map[string]string{
		models.MetadataSource:  chunk.Source,
		models.MetadataPage:    strconv.Itoa(chunk.PageNumber),
		models.MetadataChunkID: strconv.Itoa(chunk.ChunkID),
	}
}

func chunkFromResult(r chromem.Result) models.Chunk {
	page, _ := strconv.Atoi(r.Metadata[models.MetadataPage])
	chunkID, _ := strconv.Atoi(r.Metadata[models.MetadataChunkID])
	return models.Chunk{
		ID:         r.ID,
		Content:    r.Content,
		Source:     r.Metadata[models.MetadataSource],
		PageNumber: page,
		ChunkID:    chunkID,
	}
}
