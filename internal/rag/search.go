package rag

import (
	"context"
	"sort"

	"mauassist/internal/knowledge"
	"mauassist/internal/logging"
)

// Chunk sources
const (
	SourceCustom = "custom"
	SourceStatic = "static"
)

// Chunk is a knowledge entry related to a question
type Chunk struct {
	Source   string
	Question string
	Text     string
	Score    float64
}

// StaticSource provides the built-in entries in table order
type StaticSource interface {
	Entries() []knowledge.Entry
}

// CustomSource provides admin-authored entries, newest first
type CustomSource interface {
	Entries(ctx context.Context) []knowledge.Entry
}

// Searcher finds entries related to a question for draft prompts
type Searcher struct {
	static StaticSource
	custom CustomSource
	logger *logging.Logger
}

// NewSearcher creates a Searcher. custom may be nil.
func NewSearcher(static StaticSource, custom CustomSource, logger *logging.Logger) *Searcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Searcher{
		static: static,
		custom: custom,
		logger: logger,
	}
}

// Search returns up to topK entries scored by keyword hits. Custom entries
// come before static ones with the same score.
func (s *Searcher) Search(ctx context.Context, question string, topK int) []Chunk {
	var chunks []Chunk
	add := func(entries []knowledge.Entry, source string) {
		for _, r := range knowledge.RankRelated(entries, question, topK) {
			chunks = append(chunks, Chunk{
				Source:   source,
				Question: r.Entry.Question,
				Text:     r.Entry.Answer,
				Score:    float64(r.Score),
			})
		}
	}

	if s.custom != nil {
		add(s.custom.Entries(ctx), SourceCustom)
	}
	if s.static != nil {
		add(s.static.Entries(), SourceStatic)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if topK > 0 && len(chunks) > topK {
		chunks = chunks[:topK]
	}

	s.logger.WithFields(map[string]interface{}{
		"limit":        topK,
		"result_count": len(chunks),
	}).Debug("related entry search completed")
	return chunks
}
