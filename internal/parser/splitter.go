package parser

import (
	"fmt"
	"strings"

	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/models"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	StrategyRecursive = "recursive"
	StrategyFixed     = "fixed"

	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 50   // characters
)

// Splitter turns page records into overlapping chunks, keeping their metadata
type Splitter struct {
	splitter textsplitter.TextSplitter
}

// NewSplitter builds a splitter for the given strategy. Zero size or a
// negative overlap fall back to 1000/50.
func NewSplitter(strategy string, chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = defaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", chunkOverlap, chunkSize)
	}

	switch strategy {
	case StrategyRecursive, "":
		return &Splitter{splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		)}, nil
	case StrategyFixed:
		return &Splitter{splitter: fixedWindow{size: chunkSize, overlap: chunkOverlap}}, nil
	default:
		return nil, fmt.Errorf("unknown splitter strategy %q", strategy)
	}
}

// Split chunks every page. ChunkID restarts at 1 on each page.
func (s *Splitter) Split(pages []models.Chunk) ([]models.Chunk, error) {
	docs := make([]schema.Document, 0, len(pages))
	for _, p := range pages {
		docs = append(docs, schema.Document{
			PageContent: p.Content,
			Metadata: map[string]any{
				models.MetadataSource: p.Source,
				models.MetadataPage:   p.PageNumber,
			},
		})
	}

	split, err := textsplitter.SplitDocuments(s.splitter, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to split documents: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(split))
	lastPage, chunkID := -1, 0
	for _, d := range split {
		source, _ := d.Metadata[models.MetadataSource].(string)
		page, _ := d.Metadata[models.MetadataPage].(int)
		if page != lastPage {
			lastPage, chunkID = page, 0
		}
		chunkID++

		id, err := helper.NewChunkID()
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, models.Chunk{
			ID:         id,
			Content:    d.PageContent,
			Source:     source,
			PageNumber: page,
			ChunkID:    chunkID,
		})
	}
	return chunks, nil
}

// fixedWindow cuts text into windows of at most size characters, moving the
// cut back to a nearby space, newline or full stop when one is close.
type fixedWindow struct {
	size    int
	overlap int
}

func (w fixedWindow) SplitText(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}
	runes := []rune(content)
	if len(runes) <= w.size {
		return []string{content}, nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(start+w.size, len(runes))

		// look for a break within the last 10% of the window
		if end < len(runes) {
			lookBack := min(w.size/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(runes) {
			break
		}

		// the next window starts overlap characters before this cut
		next := end - w.overlap
		if next <= start {
			next = start + w.size - w.overlap
		}
		start = next
	}
	return chunks, nil
}
