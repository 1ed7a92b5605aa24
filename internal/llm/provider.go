package llm

import (
	"context"
	"fmt"
	"io"
	"time"

	"mauassist/internal/logging"
)

// Provider drafts text from chat messages
type Provider interface {
	// Stream generates a chat completion and streams it to the writer
	Stream(ctx context.Context, messages []Message, w io.Writer) (string, error)

	// Name returns the provider name (e.g., "ollama", "openai")
	Name() string

	// IsLocal returns true if the provider runs locally
	IsLocal() bool
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Config holds provider configuration
type Config struct {
	Type     string // "ollama", "openai"
	Endpoint string // base URL, provider default when empty
	APIKey   string
	Model    string
	Timeout  time.Duration
}

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1"
	defaultOllamaEndpoint = "http://localhost:11434"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultOllamaModel    = "llama3.2"
)

// NewProvider creates the configured provider. An empty type means drafting
// is disabled and (nil, nil) is returned.
func NewProvider(cfg Config, logger *logging.Logger) (Provider, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	switch cfg.Type {
	case "":
		return nil, nil
	case "ollama":
		if cfg.Endpoint == "" {
			cfg.Endpoint = defaultOllamaEndpoint
		}
		if cfg.Model == "" {
			cfg.Model = defaultOllamaModel
		}
		return NewOllamaProvider(cfg.Endpoint, cfg.Model, cfg.Timeout, logger), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai API key is required")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = defaultOpenAIEndpoint
		}
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
		return NewOpenAIProvider(cfg.Endpoint, cfg.APIKey, cfg.Model, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
