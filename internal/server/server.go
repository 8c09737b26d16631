// Package server serves the single-page chat UI, a small JSON API and
// Prometheus metrics on top of the RAG pipeline.
package server

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"rag-chatbot/internal/parser"
)

//go:embed templates/index.html
var indexHTML string

// New constructs a Server. hist may be nil to disable the Q&A history.
func New(p pipeline, hist historyStore, cfg *Config) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8501
	}
	if cfg.UploadPath == "" {
		cfg.UploadPath = "uploaded_file.pdf"
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// embedding a large upload and generating an answer are both slow
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	page, err := template.New("index").Parse(indexHTML)
	if err != nil {
		return nil, fmt.Errorf("server: parse page template: %w", err)
	}

	s := &Server{
		rag:     p,
		history: hist,
		cfg:     cfg,
		metrics: newServerMetrics(cfg.MetricsRegistry),
		page:    page,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", s.metrics.instrument("index", s.handleIndex))
	mux.Handle("POST /upload", s.metrics.instrument("upload", s.handleUpload))
	mux.Handle("POST /ask", s.metrics.instrument("ask", s.handleAsk))
	mux.Handle("POST /api/query", s.metrics.instrument("api_query", s.handleAPIQuery))
	mux.Handle("GET /api/health", s.metrics.instrument("health", s.handleHealth))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.handler = requestLogger(log.Logger, mux)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		log.Info().Str("addr", "http://"+s.httpServer.Addr).Msg("Server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		log.Info().Msg("Server stopped")
		return nil
	}
}

// renderMarkdown converts a model answer to HTML. Raw HTML in the answer is
// dropped by goldmark's default renderer.
func (s *Server) renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

// render writes the page with status, filling in the fields every view shares
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	data.Document = s.rag.DocumentName()
	data.Accept = strings.Join(parser.SupportedExtensions(), ",")
	data.History = s.recentHistory(r.Context(), data.Document)

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("Error rendering page")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) recentHistory(ctx context.Context, document string) []exchangeView {
	if s.history == nil || s.cfg.HistorySize <= 0 || document == "" {
		return nil
	}
	exchanges, err := s.history.Recent(ctx, document, s.cfg.HistorySize)
	if err != nil {
		log.Warn().Err(err).Msg("Error reading history")
		return nil
	}
	views := make([]exchangeView, 0, len(exchanges))
	for _, e := range exchanges {
		views = append(views, exchangeView{
			Question: e.Question,
			Answer:   s.renderMarkdown(e.Answer),
			Asked:    e.CreatedAt.Format(time.RFC3339),
		})
	}
	return views
}
