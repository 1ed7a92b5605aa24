package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mauassist/internal/logging"
)

// OllamaProvider talks to a local Ollama server
type OllamaProvider struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *logging.Logger
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(endpoint, model string, timeout time.Duration, logger *logging.Logger) *OllamaProvider {
	return &OllamaProvider{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Stream generates a chat completion and streams it to the writer
func (p *OllamaProvider) Stream(ctx context.Context, messages []Message, w io.Writer) (string, error) {
	start := time.Now()
	body, err := json.Marshal(map[string]interface{}{
		"model":    p.model,
		"messages": messages,
		"stream":   true,
	})
	if err != nil {
		return "", fmt.Errorf("ollama: failed to marshal stream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: failed to create stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama: stream returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	// Ollama streams one JSON object per line
	var fullResponse strings.Builder
	decoder := json.NewDecoder(resp.Body)

	for {
		var chunk struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Done bool `json:"done"`
		}

		if err := decoder.Decode(&chunk); err != nil {
			if err == io.EOF {
				break
			}
			return fullResponse.String(), fmt.Errorf("ollama: failed to decode stream chunk: %w", err)
		}

		if chunk.Message.Content != "" {
			fullResponse.WriteString(chunk.Message.Content)
			if _, err := io.WriteString(w, chunk.Message.Content); err != nil {
				return fullResponse.String(), fmt.Errorf("ollama: failed to write stream content: %w", err)
			}
		}

		if chunk.Done {
			break
		}
	}

	p.logger.Debug("ollama stream completed in %dms", time.Since(start).Milliseconds())
	return fullResponse.String(), nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsLocal returns true since Ollama runs locally
func (p *OllamaProvider) IsLocal() bool {
	return true
}
