package models

import (
	"fmt"
	"strings"
)

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Source     string `json:"source"`
	PageNumber int    `json:"page_number"`
	ChunkID    int    `json:"chunk_id"`
}

// QueryResult is a chunk returned by a similarity search with its score
type QueryResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

type PromptResponse struct {
	Query   string   `json:"query"`
	Content string   `json:"answer"`
	Sources []string `json:"sources"`
	// Document is the active document when the chunks were retrieved
	Document string        `json:"document"`
	Results  []QueryResult `json:"-"`
}

// String renders the answer block with one source per retrieved chunk
func (r PromptResponse) String() string {
	return fmt.Sprintf("Response:\n%s\n\nSources: %s", r.Content, strings.Join(r.Sources, ", "))
}

// Metadata keys stored alongside each chunk in the vector store
const (
	MetadataSource  = "source"
	MetadataPage    = "page"
	MetadataChunkID = "chunk_id"
)
