package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"rag-chatbot/internal/embedding"
	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/llmservice"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/parser"
	"rag-chatbot/internal/rag"
)

const (
	msgUploaded   = "%s uploaded successfully!"
	msgIngested   = "Document successfully added to the database!"
	msgEmptyQuery = "Please enter a query."

	// multipart parts above this size are spooled to temp files
	multipartMemory = 10 << 20
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageData{})
}

// handleUpload stores the file at the fixed upload path and replaces the
// index with its contents
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.render(w, r, http.StatusBadRequest, pageData{Error: fmt.Sprintf("Invalid upload: %v", err)})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.render(w, r, http.StatusBadRequest, pageData{Error: "Please choose a file to upload."})
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(parser.SupportedExtensions(), ext) {
		s.render(w, r, http.StatusUnprocessableEntity, pageData{Error: fmt.Sprintf("Unsupported file type %q.", ext)})
		return
	}

	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	dest := uploadPath(s.cfg.UploadPath, ext)
	if err := saveUpload(dest, file); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error saving upload")
		s.render(w, r, http.StatusInternalServerError, pageData{Error: err.Error()})
		return
	}

	kind := "File"
	if ext == ".pdf" {
		kind = "PDF"
	}
	info := []string{fmt.Sprintf(msgUploaded, kind)}

	n, err := s.rag.Ingest(r.Context(), dest, name)
	s.metrics.ingestTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("document", name).Msg("Error ingesting document")
		s.render(w, r, statusFor(err), pageData{Info: info, Error: err.Error()})
		return
	}
	s.metrics.indexedChunks.Set(float64(n))

	s.render(w, r, http.StatusOK, pageData{Info: append(info, msgIngested)})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.FormValue("question"))
	if question == "" {
		s.render(w, r, http.StatusOK, pageData{Warning: msgEmptyQuery})
		return
	}

	start := time.Now()
	resp, err := s.rag.Query(r.Context(), question)
	s.observeQuery(start, err)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error answering question")
		s.render(w, r, statusFor(err), pageData{Question: question, Error: err.Error()})
		return
	}
	s.recordExchange(r, resp)

	s.render(w, r, http.StatusOK, pageData{
		Question: question,
		Answer:   s.renderMarkdown(resp.Content),
		Sources:  strings.Join(resp.Sources, ", "),
	})
}

func (s *Server) handleAPIQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	resp, err := s.rag.Query(r.Context(), req.Question)
	if !errors.Is(err, rag.ErrEmptyQuestion) {
		s.observeQuery(start, err)
	}
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	s.recordExchange(r, resp)

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:   resp.Content,
		Sources:  resp.Sources,
		Document: resp.Document,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.rag.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"document": s.rag.DocumentName(),
		"chunks":   count,
	})
}

func (s *Server) observeQuery(start time.Time, err error) {
	s.metrics.queryTotal.WithLabelValues(outcome(err)).Inc()
	s.metrics.queryDurationSeconds.Observe(time.Since(start).Seconds())
}

// recordExchange files the answer under the document it was retrieved from.
// It is best effort, a history failure never fails the answer.
func (s *Server) recordExchange(r *http.Request, resp *models.PromptResponse) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(r.Context(), resp.Document, resp.Query, resp.Content); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Error saving history")
	}
}

// uploadPath swaps the extension of the configured path for ext
func uploadPath(base, ext string) string {
	return strings.TrimSuffix(base, filepath.Ext(base)) + ext
}

func saveUpload(dest string, src io.Reader) error {
	if err := helper.CreateParentFolder(dest); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, parser.ErrFileFormat), errors.Is(err, parser.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, embedding.ErrRemoteService), errors.Is(err, llmservice.ErrRemoteService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
