// Package customkb holds the admin-authored knowledge that overrides the
// static table. Entries are read from persistence on every search.
package customkb

import (
	"context"
	"strings"
	"time"

	"mauassist/internal/knowledge"
	"mauassist/internal/logging"
)

// Entry is a persisted custom knowledge entry
type Entry struct {
	ID string `json:"id"`
	knowledge.Entry
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists custom entries. List returns newest first.
type Store interface {
	ListEntries(ctx context.Context) ([]Entry, error)
	AddEntry(ctx context.Context, e Entry) (string, error)
}

// Base answers questions from custom entries
type Base struct {
	store  Store
	logger *logging.Logger
}

// New creates a custom knowledge base over store
func New(store Store, logger *logging.Logger) *Base {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Base{store: store, logger: logger}
}

// Search returns the answer of the newest entry matching query.
// Persistence errors are logged and reported as not found.
func (b *Base) Search(ctx context.Context, query string) (string, bool) {
	e, ok := b.Match(ctx, query)
	if !ok {
		return "", false
	}
	return e.Answer, true
}

// Match is Search returning the whole entry
func (b *Base) Match(ctx context.Context, query string) (Entry, bool) {
	entries, err := b.store.ListEntries(ctx)
	if err != nil {
		b.logger.Warn("custom knowledge unavailable: %v", err)
		return Entry{}, false
	}

	q := knowledge.Normalize(query)
	for _, e := range entries {
		if knowledge.Matches(e.Entry, q) {
			return e, true
		}
	}
	return Entry{}, false
}

// Add stores a new entry. It reports false when the entry is unusable or
// could not be persisted.
func (b *Base) Add(ctx context.Context, question, answer, category string, keywords []string, authorID string) bool {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		b.logger.Debug("rejecting custom entry with empty question or answer")
		return false
	}
	if category = strings.TrimSpace(category); category == "" {
		category = "general"
	}

	ts := time.Now().UTC()
	id, err := b.store.AddEntry(ctx, Entry{
		Entry: knowledge.Entry{
			Question: question,
			Answer:   answer,
			Category: category,
			Keywords: NormalizeKeywords(keywords),
		},
		CreatedBy: authorID,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		b.logger.Warn("failed to add custom entry: %v", err)
		return false
	}

	b.logger.Info("custom entry %s added by %s", id, authorID)
	return true
}

// List returns all custom entries, newest first. Empty on failure.
func (b *Base) List(ctx context.Context) []Entry {
	entries, err := b.store.ListEntries(ctx)
	if err != nil {
		b.logger.Warn("failed to list custom entries: %v", err)
		return []Entry{}
	}
	if entries == nil {
		return []Entry{}
	}
	return entries
}

// Entries returns the entries as plain knowledge entries, newest first
func (b *Base) Entries(ctx context.Context) []knowledge.Entry {
	list := b.List(ctx)
	out := make([]knowledge.Entry, len(list))
	for i, e := range list {
		out[i] = e.Entry
	}
	return out
}

// NormalizeKeywords trims and lowercases keywords, splitting on commas and
// dropping blanks and duplicates.
func NormalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range keywords {
		for _, kw := range strings.Split(raw, ",") {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			out = append(out, kw)
		}
	}
	return out
}
