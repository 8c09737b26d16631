package server

import (
	"context"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/yuin/goldmark"

	"rag-chatbot/internal/history"
	"rag-chatbot/internal/models"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string
	Port int
	// UploadPath is the fixed file every upload overwrites. Its extension
	// follows the uploaded file's extension.
	UploadPath     string
	MaxUploadBytes int64
	// HistorySize is how many past exchanges the page lists. Zero hides them.
	HistorySize     int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// MetricsRegistry and MetricsGatherer default to the prometheus globals.
	MetricsRegistry prometheus.Registerer
	MetricsGatherer prometheus.Gatherer
}

// pipeline is implemented by *rag.RAG; tests inject a fake.
type pipeline interface {
	Ingest(ctx context.Context, filePath, documentName string) (int, error)
	Query(ctx context.Context, question string) (*models.PromptResponse, error)
	DocumentName() string
	Count(ctx context.Context) (int, error)
}

// historyStore is implemented by *history.SQLiteStore. It may be nil.
type historyStore interface {
	Append(ctx context.Context, document, question, answer string) error
	Recent(ctx context.Context, document string, n int) ([]history.Exchange, error)
}

type Server struct {
	rag        pipeline
	history    historyStore
	cfg        *Config
	metrics    *serverMetrics
	page       *template.Template
	markdown   goldmark.Markdown
	handler    http.Handler
	httpServer *http.Server
	// uploads share one file path
	uploadMu sync.Mutex
}

// pageData feeds templates/index.html
type pageData struct {
	Document string
	Accept   string
	Info     []string
	Warning  string
	Error    string
	Question string
	Answer   template.HTML
	Sources  string
	History  []exchangeView
}

type exchangeView struct {
	Question string
	Answer   template.HTML
	Asked    string
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	Document string   `json:"document"`
}
