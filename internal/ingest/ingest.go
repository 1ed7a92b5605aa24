// Package ingest imports custom knowledge entries from files and web pages.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"gopkg.in/yaml.v3"

	"mauassist/internal/logging"
)

// KnowledgeAdder stores a custom knowledge entry
type KnowledgeAdder interface {
	Add(ctx context.Context, question, answer, category string, keywords []string, authorID string) bool
}

// Entry is one question/answer pair in an import file
type Entry struct {
	Question string   `yaml:"question" json:"question"`
	Answer   string   `yaml:"answer" json:"answer"`
	Category string   `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Result summarises a file import
type Result struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// Importer adds entries to the custom knowledge base
type Importer struct {
	kb         KnowledgeAdder
	guardrails *Guardrails
	client     *http.Client
	logger     *logging.Logger
}

// NewImporter creates an importer. guardrails may be nil for defaults.
func NewImporter(kb KnowledgeAdder, guardrails *Guardrails, logger *logging.Logger) *Importer {
	if guardrails == nil {
		guardrails = NewGuardrails()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Importer{
		kb:         kb,
		guardrails: guardrails,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Guardrails returns the limits in use
func (im *Importer) Guardrails() *Guardrails {
	return im.guardrails
}

// ImportFile reads a YAML or JSON file of entries and adds each valid one
func (im *Importer) ImportFile(ctx context.Context, path, adminID string) (Result, error) {
	logger := im.logger.WithContext("file_path", path)
	logger.Debug("starting file import")

	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if err := im.guardrails.Check(path, info.Size()); err != nil {
		logger.Warn("guardrails check failed: %v", err)
		return Result{}, fmt.Errorf("guardrails check failed: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read file: %w", err)
	}

	return im.ImportData(ctx, filepath.Base(path), data, adminID)
}

// ImportData adds the entries encoded in data. name selects the format by
// its extension.
func (im *Importer) ImportData(ctx context.Context, name string, data []byte, adminID string) (Result, error) {
	if err := im.guardrails.Check(name, int64(len(data))); err != nil {
		return Result{}, fmt.Errorf("guardrails check failed: %w", err)
	}

	entries, err := ParseEntries(filepath.Ext(name), data)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for i, e := range entries {
		if err := im.validate(e); err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("entry %d: %v", i+1, err))
			continue
		}
		if !im.kb.Add(ctx, e.Question, e.Answer, e.Category, e.Keywords, adminID) {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("entry %d: could not be saved", i+1))
			continue
		}
		res.Added++
	}

	im.logger.Info("imported %d entries from %s (%d skipped)", res.Added, name, res.Skipped)
	return res, nil
}

func (im *Importer) validate(e Entry) error {
	switch {
	case strings.TrimSpace(e.Question) == "":
		return errors.New("question is required")
	case strings.TrimSpace(e.Answer) == "":
		return errors.New("answer is required")
	case im.guardrails.MaxAnswerChars > 0 && len([]rune(e.Answer)) > im.guardrails.MaxAnswerChars:
		return fmt.Errorf("answer longer than %d characters", im.guardrails.MaxAnswerChars)
	}
	return nil
}

// ParseEntries decodes a list of entries, either bare or under an "entries" key
func ParseEntries(ext string, data []byte) ([]Entry, error) {
	var wrapped struct {
		Entries []Entry `yaml:"entries" json:"entries"`
	}
	var list []Entry

	switch strings.ToLower(ext) {
	case ".json":
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &list); err != nil {
				return nil, fmt.Errorf("failed to parse JSON: %w", err)
			}
			return list, nil
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		return wrapped.Entries, nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		if err := yaml.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		return wrapped.Entries, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

// ImportURL fetches a web page, extracts its readable text and stores it as
// the answer to question. It returns the stored answer.
func (im *Importer) ImportURL(ctx context.Context, rawURL, question, category string, keywords []string, adminID string) (string, error) {
	logger := im.logger.WithContext("url", rawURL)
	logger.Debug("starting URL import")

	if strings.TrimSpace(question) == "" {
		return "", errors.New("question is required")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := im.client.Do(req)
	if err != nil {
		logger.Warn("failed to fetch URL: %v", err)
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching URL returned status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, im.guardrails.MaxFileSize)
	article, err := readability.FromReader(body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	answer := im.guardrails.TruncateAnswer(strings.Join(strings.Fields(article.TextContent), " "))
	if answer == "" {
		return "", errors.New("page has no readable text")
	}

	if !im.kb.Add(ctx, question, answer, category, keywords, adminID) {
		return "", errors.New("failed to save knowledge entry")
	}

	logger.WithContext("text_size", len(answer)).Info("imported answer from URL")
	return answer, nil
}
