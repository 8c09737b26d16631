package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	StoreChromem  = "chromem"
	StorePGVector = "pgvector"

	SplitterRecursive = "recursive"
	SplitterFixed     = "fixed"

	// HistoryDisabled turns the Q&A history store off when used as history.db_path
	HistoryDisabled = "disabled"

	DefaultTemperature = 0.5

	envAPIKey  = "OPENAI_API_KEY"
	envBaseURL = "OPENAI_BASE_URL"
)

// LLMConfig configures one hosted model, either for inference or for embeddings
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
	// Temperature is a pointer so an explicit 0 survives defaulting
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Splitter     string `yaml:"splitter"`
	TopK         int    `yaml:"top_k"`
}

type VectorStoreConfig struct {
	Type          string `yaml:"type"`
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	InMemory      bool   `yaml:"in_memory"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

// DatabaseConfig is only used by the pgvector store
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	UploadPath     string `yaml:"upload_path"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type HistoryConfig struct {
	DBPath string `yaml:"db_path"`
	Size   int    `yaml:"size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	InferenceLLM LLMConfig         `yaml:"inference_llm"`
	EmbedLLM     LLMConfig         `yaml:"embed_llm"`
	RAG          RAGConfig         `yaml:"rag"`
	VectorStore  VectorStoreConfig `yaml:"vector_store"`
	Database     DatabaseConfig    `yaml:"database"`
	Server       ServerConfig      `yaml:"server"`
	History      HistoryConfig     `yaml:"history"`
	Logging      LoggingConfig     `yaml:"logging"`
}

// LoadConfig reads the yaml file at path, overlays credentials from the
// environment (and a local .env file) and fills defaults.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// .env is optional and never overrides the process environment
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv(envAPIKey); key != "" {
		cfg.InferenceLLM.Key = key
		cfg.EmbedLLM.Key = key
	}
	if base := os.Getenv(envBaseURL); base != "" {
		cfg.InferenceLLM.BaseURL = base
		cfg.EmbedLLM.BaseURL = base
	}
}

func applyDefaults(cfg *Config) {
	if cfg.InferenceLLM.Provider == "" {
		cfg.InferenceLLM.Provider = ProviderOpenAI
	}
	if cfg.InferenceLLM.Model == "" {
		cfg.InferenceLLM.Model = defaultModel(cfg.InferenceLLM.Provider, "gpt-4o-mini", "llama3.2")
	}
	if cfg.InferenceLLM.Temperature == nil {
		t := DefaultTemperature
		cfg.InferenceLLM.Temperature = &t
	}
	if cfg.InferenceLLM.MaxTokens == 0 {
		cfg.InferenceLLM.MaxTokens = 2048
	}

	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = cfg.InferenceLLM.Provider
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = defaultModel(cfg.EmbedLLM.Provider, "text-embedding-ada-002", "nomic-embed-text")
	}
	if cfg.EmbedLLM.BaseURL == "" && cfg.EmbedLLM.Provider == cfg.InferenceLLM.Provider {
		cfg.EmbedLLM.BaseURL = cfg.InferenceLLM.BaseURL
	}

	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 50
	}
	if cfg.RAG.Splitter == "" {
		cfg.RAG.Splitter = SplitterRecursive
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = StoreChromem
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = "./chroma"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "documents"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "pgdriver"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8501
	}
	if cfg.Server.UploadPath == "" {
		cfg.Server.UploadPath = "uploaded_file.pdf"
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}

	if cfg.History.DBPath == "" {
		cfg.History.DBPath = "./history.db"
	}
	if cfg.History.Size == 0 {
		cfg.History.Size = 5
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// SamplingTemperature returns the configured temperature, or the default when
// none was set
func (l *LLMConfig) SamplingTemperature() float64 {
	if l.Temperature == nil {
		return DefaultTemperature
	}
	return *l.Temperature
}

func defaultModel(provider, openaiModel, ollamaModel string) string {
	if provider == ProviderOllama {
		return ollamaModel
	}
	return openaiModel
}

// Validate reports settings that cannot work together. Credentials are
// required only for the openai provider.
func (c *Config) Validate() error {
	var errs []error
	for name, llm := range map[string]LLMConfig{"inference_llm": c.InferenceLLM, "embed_llm": c.EmbedLLM} {
		switch llm.Provider {
		case ProviderOpenAI:
			if strings.TrimSpace(llm.Key) == "" {
				errs = append(errs, fmt.Errorf("%s: %s is required for provider %q", name, envAPIKey, llm.Provider))
			}
		case ProviderOllama:
		default:
			errs = append(errs, fmt.Errorf("%s: unsupported provider %q", name, llm.Provider))
		}
	}
	if c.RAG.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag: chunk_size must be positive, got %d", c.RAG.ChunkSize))
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("rag: chunk_overlap must be in [0, chunk_size), got %d", c.RAG.ChunkOverlap))
	}
	if c.RAG.Splitter != SplitterRecursive && c.RAG.Splitter != SplitterFixed {
		errs = append(errs, fmt.Errorf("rag: unsupported splitter %q", c.RAG.Splitter))
	}
	switch c.VectorStore.Type {
	case StoreChromem:
	case StorePGVector:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database: dsn is required for the pgvector store"))
		}
	default:
		errs = append(errs, fmt.Errorf("vector_store: unsupported type %q", c.VectorStore.Type))
	}
	return errors.Join(errs...)
}
