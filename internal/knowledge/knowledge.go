// Package knowledge holds the static university knowledge table and the
// lookup that turns a free-text question into a canned answer.
package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/mau.yaml
var builtinTable []byte

// Entry is one question/answer pair
type Entry struct {
	Question string   `yaml:"question" json:"question"`
	Answer   string   `yaml:"answer" json:"answer"`
	Category string   `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Topic is a broad fallback answer for queries no entry matched
type Topic struct {
	Name     string   `yaml:"name"`
	Triggers []string `yaml:"triggers"`
	Also     []string `yaml:"also"`
	Text     string   `yaml:"text"`
}

// QuickInfoItem is a canned quick-reply pair
type QuickInfoItem struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// QuickInfoCategory groups quick replies for display
type QuickInfoCategory struct {
	ID    string          `yaml:"id" json:"id"`
	Title string          `yaml:"title" json:"title"`
	Items []QuickInfoItem `yaml:"items" json:"items"`
}

type table struct {
	Entries   []Entry             `yaml:"entries"`
	Topics    []Topic             `yaml:"topics"`
	Fallback  string              `yaml:"fallback"`
	QuickInfo []QuickInfoCategory `yaml:"quick_info"`
}

// Source tells which tier of the lookup produced an answer
type Source string

const (
	SourceEntry    Source = "entry"
	SourceTopic    Source = "topic"
	SourceFallback Source = "fallback"
)

// Result is the outcome of a lookup
type Result struct {
	Answer string
	Source Source
	Entry  Entry  // set when Source is SourceEntry
	Topic  string // set when Source is SourceTopic
}

// Base is the loaded static knowledge. It is never modified after Parse.
type Base struct {
	entries   []Entry
	topics    []Topic
	fallback  string
	quickInfo []QuickInfoCategory
}

// Default loads the built-in MAU table
func Default() (*Base, error) {
	return Parse(builtinTable)
}

// Load reads a table from path, or the built-in table when path is empty
func Load(path string) (*Base, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML knowledge table
func Parse(data []byte) (*Base, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge table: %w", err)
	}

	for i, e := range t.Entries {
		if strings.TrimSpace(e.Question) == "" || strings.TrimSpace(e.Answer) == "" {
			return nil, fmt.Errorf("entry %d: question and answer are required", i)
		}
		kws := make([]string, 0, len(e.Keywords))
		for _, kw := range e.Keywords {
			if kw = Normalize(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		if len(kws) == 0 {
			return nil, fmt.Errorf("entry %d (%q): at least one keyword is required", i, e.Question)
		}
		t.Entries[i].Keywords = kws
	}
	for i, tp := range t.Topics {
		if len(tp.Triggers) == 0 || strings.TrimSpace(tp.Text) == "" {
			return nil, fmt.Errorf("topic %d (%s): triggers and text are required", i, tp.Name)
		}
	}
	if strings.TrimSpace(t.Fallback) == "" {
		return nil, fmt.Errorf("fallback text is required")
	}

	return &Base{
		entries:   t.Entries,
		topics:    t.Topics,
		fallback:  t.Fallback,
		quickInfo: t.QuickInfo,
	}, nil
}

// Search returns the answer text for query. It never fails: when nothing
// matches, the fallback menu text is returned.
func (b *Base) Search(query string) string {
	return b.Lookup(query).Answer
}

// Lookup runs the entry table, then the topic checks, then the fallback.
func (b *Base) Lookup(query string) Result {
	if e, ok := FirstMatch(b.entries, query); ok {
		return Result{Answer: e.Answer, Source: SourceEntry, Entry: e}
	}

	q := Normalize(query)
	for _, tp := range b.topics {
		if containsAny(q, tp.Triggers) && (len(tp.Also) == 0 || containsAny(q, tp.Also)) {
			return Result{Answer: tp.Text, Source: SourceTopic, Topic: tp.Name}
		}
	}

	return Result{Answer: b.fallback, Source: SourceFallback}
}

// Fallback returns the menu text used when nothing matches
func (b *Base) Fallback() string {
	return b.fallback
}

// Entries returns a copy of the entry table in match order
func (b *Base) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// QuickInfo returns the quick-reply categories
func (b *Base) QuickInfo() []QuickInfoCategory {
	out := make([]QuickInfoCategory, len(b.quickInfo))
	copy(out, b.quickInfo)
	return out
}

// Ranked is an entry with its keyword score against a query
type Ranked struct {
	Entry Entry
	Score int
}

// RankRelated scores entries against query and returns up to limit matches,
// best first. Ties keep input order. Used for drafting, not for answering.
func RankRelated(entries []Entry, query string, limit int) []Ranked {
	q := Normalize(query)
	var hits []Ranked
	for _, e := range entries {
		if s := Score(e, q); s > 0 {
			hits = append(hits, Ranked{Entry: e, Score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub = Normalize(sub); sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
