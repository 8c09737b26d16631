package rag

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"rag-chatbot/internal/chromemdb"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/parser"
	"rag-chatbot/internal/testutil"
)

type fakeCompleter struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

// fakeStore keeps chunks in memory and counts calls
type fakeStore struct {
	chunks   []models.Chunk
	clearErr error
	addErr   error
	clears   int
}

func (f *fakeStore) Add(_ context.Context, chunks []models.Chunk) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeStore) Query(_ context.Context, _ string, k int) ([]models.QueryResult, error) {
	var out []models.QueryResult
	for i, c := range f.chunks {
		if i == k {
			break
		}
		out = append(out, models.QueryResult{Chunk: c, Score: 1 / float32(i+1)})
	}
	return out, nil
}

func (f *fakeStore) Clear(context.Context) error {
	f.clears++
	if f.clearErr != nil {
		return f.clearErr
	}
	f.chunks = nil
	return nil
}

func (f *fakeStore) Count(context.Context) (int, error) { return len(f.chunks), nil }

func newSplitter(t *testing.T) *parser.Splitter {
	t.Helper()
	s, err := parser.NewSplitter(parser.StrategyRecursive, 1000, 50)
	if err != nil {
		t.Fatalf("NewSplitter: %v", err)
	}
	return s
}

func pagesLoader(pages ...string) Loader {
	return func(_ string, source string) ([]models.Chunk, error) {
		out := make([]models.Chunk, len(pages))
		for i, p := range pages {
			out[i] = models.Chunk{Content: p, Source: source, PageNumber: i + 1}
		}
		return out, nil
	}
}

func TestEndToEndSkyIsBlue(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "uploaded_file.pdf")
	if err := testutil.WritePDF(pdfPath, []string{"The sky is blue."}); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	store := chromemdb.NewVectorDBManager(chromemdb.Options{
		DBPath:         filepath.Join(dir, "chroma"),
		CollectionName: "documents",
	}, testutil.Embed)
	completer := &fakeCompleter{answer: "# Sky\n\nThe sky is blue."}
	r := NewRAG(store, completer, newSplitter(t), 5)
	ctx := context.Background()

	n, err := r.Ingest(ctx, pdfPath, "sky.pdf")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 chunk, got %d", n)
	}
	if r.DocumentName() != "sky.pdf" {
		t.Fatalf("DocumentName = %q", r.DocumentName())
	}

	resp, err := r.Query(ctx, "What color is the sky?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(resp.Results) != 1 || !strings.Contains(resp.Results[0].Chunk.Content, "The sky is blue.") {
		t.Fatalf("retrieved = %+v", resp.Results)
	}

	rendered := resp.String()
	if !strings.Contains(rendered, "Sources: sky.pdf") {
		t.Fatalf("rendered response does not cite the upload: %q", rendered)
	}
	if !strings.HasPrefix(rendered, "Response:\n# Sky") {
		t.Fatalf("rendered = %q", rendered)
	}

	prompt := completer.prompts[0]
	for _, want := range []string{
		"You are a helpful assistant.",
		"Context:\nThe sky is blue.",
		"Answer the following question: What color is the sky?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestIngestReplacesPreviousDocument(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := chromemdb.NewVectorDBManager(chromemdb.Options{
		DBPath:         filepath.Join(dir, "chroma"),
		CollectionName: "documents",
	}, testutil.Embed)
	r := NewRAG(store, &fakeCompleter{answer: "ok"}, newSplitter(t), 5)
	ctx := context.Background()

	r.load = pagesLoader("Apples are red.", "Apples grow on trees.")
	if _, err := r.Ingest(ctx, "a.pdf", "a.pdf"); err != nil {
		t.Fatalf("Ingest a: %v", err)
	}
	r.load = pagesLoader("Bananas are yellow.")
	if _, err := r.Ingest(ctx, "b.pdf", "b.pdf"); err != nil {
		t.Fatalf("Ingest b: %v", err)
	}

	resp, err := r.Query(ctx, "Apples are red.")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Chunk.Source != "b.pdf" {
		t.Fatalf("want only b.pdf chunks, got %+v", resp.Results)
	}
	if got := strings.Join(resp.Sources, ","); got != "b.pdf" {
		t.Fatalf("sources = %q", got)
	}
}

func TestQueryJoinsContextAndCitesEachResult(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	completer := &fakeCompleter{answer: "answer"}
	r := NewRAG(store, completer, newSplitter(t), 5)
	r.load = pagesLoader("one", "two", "three", "four", "five", "six", "seven")

	if _, err := r.Ingest(context.Background(), "doc.pdf", "doc.pdf"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	resp, err := r.Query(context.Background(), "count")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if len(resp.Sources) != 5 {
		t.Fatalf("want 5 sources, got %v", resp.Sources)
	}
	if resp.String() != "Response:\nanswer\n\nSources: doc.pdf, doc.pdf, doc.pdf, doc.pdf, doc.pdf" {
		t.Fatalf("rendered = %q", resp.String())
	}
	if !strings.Contains(completer.prompts[0], "one\n\n---\n\ntwo\n\n---\n\nthree") {
		t.Fatalf("context not joined with separator:\n%s", completer.prompts[0])
	}
}

func TestQueryFallsBackToDocumentNameForSource(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	r := NewRAG(store, &fakeCompleter{answer: "a"}, newSplitter(t), 5)
	r.load = pagesLoader("text")
	if _, err := r.Ingest(context.Background(), "x.pdf", "named.pdf"); err != nil {
		t.Fatal(err)
	}
	store.chunks[0].Source = ""

	resp, err := r.Query(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Sources[0] != "named.pdf" {
		t.Fatalf("source = %q", resp.Sources[0])
	}
}

func TestQueryEmptyStoreStillAnswers(t *testing.T) {
	t.Parallel()
	completer := &fakeCompleter{answer: "I don't know."}
	r := NewRAG(&fakeStore{}, completer, newSplitter(t), 5)

	resp, err := r.Query(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(resp.Results) != 0 || len(resp.Sources) != 0 {
		t.Fatalf("expected no results, got %+v", resp)
	}
	if len(completer.prompts) != 1 {
		t.Fatalf("completion not called")
	}
}

func TestQueryRejectsEmptyQuestion(t *testing.T) {
	t.Parallel()
	completer := &fakeCompleter{}
	r := NewRAG(&fakeStore{}, completer, newSplitter(t), 5)

	if _, err := r.Query(context.Background(), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("want ErrEmptyQuestion, got %v", err)
	}
	if len(completer.prompts) != 0 {
		t.Fatal("completion called for empty question")
	}
}

func TestIngestContinuesWhenClearFails(t *testing.T) {
	t.Parallel()
	store := &fakeStore{clearErr: errors.New("permission denied")}
	r := NewRAG(store, &fakeCompleter{}, newSplitter(t), 5)
	r.load = pagesLoader("content")

	n, err := r.Ingest(context.Background(), "doc.pdf", "doc.pdf")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 1 || store.clears != 1 || len(store.chunks) != 1 {
		t.Fatalf("n=%d clears=%d chunks=%d", n, store.clears, len(store.chunks))
	}
}

func TestIngestLoadFailureLeavesStoreAlone(t *testing.T) {
	t.Parallel()
	store := &fakeStore{chunks: []models.Chunk{{Content: "old", Source: "old.pdf"}}}
	r := NewRAG(store, &fakeCompleter{}, newSplitter(t), 5)
	r.documentName = "old.pdf"
	r.load = func(string, string) ([]models.Chunk, error) { return nil, parser.ErrFileFormat }

	if _, err := r.Ingest(context.Background(), "bad.pdf", "bad.pdf"); !errors.Is(err, parser.ErrFileFormat) {
		t.Fatalf("want ErrFileFormat, got %v", err)
	}
	if store.clears != 0 || len(store.chunks) != 1 || r.DocumentName() != "old.pdf" {
		t.Fatalf("store or session touched: clears=%d chunks=%d name=%q", store.clears, len(store.chunks), r.DocumentName())
	}
}

func TestIngestAddFailure(t *testing.T) {
	t.Parallel()
	store := &fakeStore{addErr: errors.New("disk full")}
	r := NewRAG(store, &fakeCompleter{}, newSplitter(t), 5)
	r.load = pagesLoader("content")

	if _, err := r.Ingest(context.Background(), "doc.pdf", "doc.pdf"); err == nil {
		t.Fatal("expected error")
	}
	if r.DocumentName() != "" {
		t.Fatalf("document name set after failed ingest: %q", r.DocumentName())
	}
}

func TestFailedReplacementForgetsPreviousDocument(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	r := NewRAG(store, &fakeCompleter{answer: "ok"}, newSplitter(t), 5)
	r.load = pagesLoader("content")

	if _, err := r.Ingest(context.Background(), "a.pdf", "a.pdf"); err != nil {
		t.Fatalf("Ingest a.pdf: %v", err)
	}
	store.addErr = errors.New("quota exceeded")
	if _, err := r.Ingest(context.Background(), "b.pdf", "b.pdf"); err == nil {
		t.Fatal("expected error")
	}

	if got := r.DocumentName(); got == "a.pdf" {
		t.Fatalf("cleared document still reported as current: %q", got)
	}
	resp, err := r.Query(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Document == "a.pdf" || len(resp.Sources) != 0 {
		t.Fatalf("response still refers to a.pdf: document=%q sources=%v", resp.Document, resp.Sources)
	}
}

func TestQueryReportsDocumentSeenAtRetrieval(t *testing.T) {
	t.Parallel()
	r := NewRAG(&fakeStore{}, &fakeCompleter{answer: "ok"}, newSplitter(t), 5)
	r.load = pagesLoader("The sky is blue.")

	if _, err := r.Ingest(context.Background(), "sky.pdf", "sky.pdf"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	resp, err := r.Query(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Document != "sky.pdf" {
		t.Fatalf("document = %q", resp.Document)
	}
}

func TestConcurrentQueriesDuringIngest(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := chromemdb.NewVectorDBManager(chromemdb.Options{
		DBPath:         filepath.Join(dir, "chroma"),
		CollectionName: "documents",
	}, testutil.Embed)
	r := NewRAG(store, &fakeCompleter{answer: "ok"}, newSplitter(t), 5)
	r.load = pagesLoader("The sky is blue.", "Grass is green.")
	ctx := context.Background()

	if _, err := r.Ingest(ctx, "a.pdf", "a.pdf"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := r.Query(ctx, "sky"); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := r.Ingest(ctx, "a.pdf", "a.pdf"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent call failed: %v", err)
	}

	if n, _ := r.Count(ctx); n != 2 {
		t.Fatalf("index holds %d chunks, want 2", n)
	}
}
