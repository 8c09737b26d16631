package embedding

import (
	"context"
	"errors"
	"testing"

	"rag-chatbot/internal/config"

	"github.com/tmc/langchaingo/embeddings"
)

// fakeClient satisfies embeddings.EmbedderClient without network access
type fakeClient struct {
	calls [][]string
	err   error
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func TestNewFunc(t *testing.T) {
	client := &fakeClient{}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	vector, err := NewFunc(embedder)(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vector) != 2 || vector[0] != 22 {
		t.Fatalf("vector = %v", vector)
	}
	if len(client.calls) != 1 {
		t.Fatalf("want one provider call, got %d", len(client.calls))
	}
}

func TestNewFuncWrapsRemoteErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("quota exceeded")}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}

	_, err = NewFunc(embedder)(context.Background(), "hello")
	if !errors.Is(err, ErrRemoteService) {
		t.Fatalf("want ErrRemoteService, got %v", err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("want exactly one attempt, got %d", len(client.calls))
	}
}

func TestNewEmbedderProviders(t *testing.T) {
	cases := []config.LLMConfig{
		{Provider: config.ProviderOpenAI, Key: "sk-test", Model: "text-embedding-ada-002"},
		{Provider: config.ProviderOllama, BaseURL: "http://localhost:11434", Model: "nomic-embed-text"},
	}
	for _, c := range cases {
		if _, err := NewEmbedder(&c); err != nil {
			t.Errorf("%s: %v", c.Provider, err)
		}
	}

	if _, err := NewEmbedder(&config.LLMConfig{Provider: "cohere"}); err == nil {
		t.Error("unsupported provider accepted")
	}
}
