package llm

import (
	"bufio"
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

// OpenAIProvider talks to an OpenAI-compatible chat completions API
type OpenAIProvider struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	logger   *logging.Logger
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(endpoint, apiKey, model string, timeout time.Duration, logger *logging.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Stream generates a chat completion and streams it to the writer
func (p *OpenAIProvider) Stream(ctx context.Context, messages []Message, w io.Writer) (string, error) {
	logger := p.logger.WithFields(map[string]interface{}{
		"provider":      "openai",
		"model":         p.model,
		"message_count": len(messages),
	})
	logger.Debug("starting chat stream request")

	start := time.Now()
	body, err := json.Marshal(map[string]interface{}{
		"model":    p.model,
		"messages": messages,
		"stream":   true,
	})
	if err != nil {
		return "", fmt.Errorf("openai: failed to marshal stream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: failed to create stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		logger.WithContext("latency_ms", time.Since(start).Milliseconds()).Error("stream request failed: %v", err)
		return "", fmt.Errorf("openai: stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		logger.WithContext("status", resp.StatusCode).Error("stream returned non-OK status")
		return "", fmt.Errorf("openai: stream returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var fullResponse strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	tokenCount := 0

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			content := chunk.Choices[0].Delta.Content
			fullResponse.WriteString(content)
			tokenCount++
			if _, err := io.WriteString(w, content); err != nil {
				return fullResponse.String(), fmt.Errorf("openai: failed to write stream content: %w", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fullResponse.String(), fmt.Errorf("openai: failed to read stream: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"latency_ms": time.Since(start).Milliseconds(),
		"tokens":     tokenCount,
	}).Debug("chat stream completed")

	return fullResponse.String(), nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsLocal returns false since OpenAI is a cloud service
func (p *OpenAIProvider) IsLocal() bool {
	return false
}
