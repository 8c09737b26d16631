package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rag-chatbot/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrRemoteService wraps failures reported by the completion provider
var ErrRemoteService = errors.New("completion service error")

// Client sends one prompt per call with fixed sampling settings
type Client struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
}

// New builds a client for the configured inference provider
func New(llmConfig *config.LLMConfig) (*Client, error) {
	log.Debug().Interface("config", map[string]any{
		"provider":    llmConfig.Provider,
		"base_url":    llmConfig.BaseURL,
		"model":       llmConfig.Model,
		"temperature": llmConfig.SamplingTemperature(),
		"max_tokens":  llmConfig.MaxTokens,
	}).Msg("Loaded inference config")

	var llm llms.Model
	switch llmConfig.Provider {
	case config.ProviderOpenAI, "":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		llm = client
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		llm = client
	default:
		return nil, fmt.Errorf("unsupported inference provider %q", llmConfig.Provider)
	}

	return NewWithModel(llm, llmConfig.SamplingTemperature(), llmConfig.MaxTokens), nil
}

func NewWithModel(llm llms.Model, temperature float64, maxTokens int) *Client {
	return &Client{llm: llm, temperature: temperature, maxTokens: maxTokens}
}

// Complete returns the generated text verbatim
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	res, err := c.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteService, err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrRemoteService)
	}
	return res.Choices[0].Content, nil
}
