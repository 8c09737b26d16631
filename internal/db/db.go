package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/embedding"
	"rag-chatbot/internal/models"
)

const defaultTopK = models.DefaultTopK

// Vector is stored in the pgvector text format, e.g. [0.1,0.2]
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	return v.String(), nil
}

func (v Vector) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64   `bun:"id,pk,autoincrement"`
	ChunkUID      string  `bun:"chunk_uid,notnull"`
	Content       string  `bun:"content,notnull"`
	Source        string  `bun:"source,notnull"`
	PageNumber    int     `bun:"page_number"`
	ChunkID       int     `bun:"chunk_id"`
	Embedding     Vector  `bun:"embedding,notnull,type:vector"`
	Score         float32 `bun:"score,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens Postgres with bun's pgdriver, or lib/pq when driver is "postgres"
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "postgres", "pq":
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return sqldb, nil
	case "pgdriver", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Store keeps chunks in a pgvector table. Clear drops and recreates the table.
type Store struct {
	db    *bun.DB
	embed embedding.Func
}

func NewStore(db *bun.DB, embed embedding.Func) *Store {
	return &Store{db: db, embed: embed}
}

// InitDB creates the vector extension and the documents table
func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]Document, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := s.embed(ctx, chunk.Content)
		if err != nil {
			return err
		}
		docs = append(docs, Document{
			ChunkUID:   chunk.ID,
			Content:    chunk.Content,
			Source:     chunk.Source,
			PageNumber: chunk.PageNumber,
			ChunkID:    chunk.ChunkID,
			Embedding:  vector,
		})
	}
	if _, err := s.db.NewInsert().Model(&docs).Exec(ctx); err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	return nil
}

// Query ranks by cosine distance; score is the cosine similarity
func (s *Store) Query(ctx context.Context, text string, k int) ([]models.QueryResult, error) {
	if k <= 0 {
		k = defaultTopK
	}
	vector, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	q := Vector(vector).String()

	var docs []Document
	err = s.db.NewSelect().
		Model(&docs).
		Column("chunk_uid", "content", "source", "page_number", "chunk_id").
		ColumnExpr("1 - (embedding <=> ?::vector) AS score", q).
		OrderExpr("embedding <=> ?::vector", q).
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	results := make([]models.QueryResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, models.QueryResult{
			Chunk: models.Chunk{
				ID:         d.ChunkUID,
				Content:    d.Content,
				Source:     d.Source,
				PageNumber: d.PageNumber,
				ChunkID:    d.ChunkID,
			},
			Score: d.Score,
		})
	}
	return results, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Clear drops table documents and creates it again empty
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop documents: %w", err)
	}
	log.Debug().Msg("Dropped documents table")
	return s.InitDB(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
