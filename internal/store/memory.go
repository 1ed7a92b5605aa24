package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps custom knowledge and unanswered questions in process
// memory. It backs the offline CLI and tests; nothing survives a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	knowledge  []KnowledgeEntry
	unanswered []UnansweredQuestion
	clock      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clock: now}
}

// ListKnowledgeEntries returns custom entries, newest first
func (m *MemoryStore) ListKnowledgeEntries(ctx context.Context) ([]KnowledgeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]KnowledgeEntry, 0, len(m.knowledge))
	for i := len(m.knowledge) - 1; i >= 0; i-- {
		e := m.knowledge[i]
		e.Keywords = append([]string(nil), e.Keywords...)
		out = append(out, e)
	}
	return out, nil
}

// AddKnowledgeEntry stores a custom entry and returns its ID
func (m *MemoryStore) AddKnowledgeEntry(ctx context.Context, e KnowledgeEntry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.clock()
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	e.Keywords = append([]string(nil), e.Keywords...)
	m.knowledge = append(m.knowledge, e)
	return e.ID, nil
}

// ListUnanswered returns unanswered questions in the order they were first asked
func (m *MemoryStore) ListUnanswered(ctx context.Context) ([]UnansweredQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]UnansweredQuestion(nil), m.unanswered...), nil
}

// InsertUnanswered stores a new unanswered question and returns its ID
func (m *MemoryStore) InsertUnanswered(ctx context.Context, q UnansweredQuestion) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.AskedAt.IsZero() {
		q.AskedAt = m.clock()
	}
	if q.Frequency <= 0 {
		q.Frequency = 1
	}
	if q.Status == "" {
		q.Status = StatusPending
	}
	m.unanswered = append(m.unanswered, q)
	return q.ID, nil
}

// IncrementUnansweredFrequency adds one to a question's frequency
func (m *MemoryStore) IncrementUnansweredFrequency(ctx context.Context, id string) error {
	return m.update(id, func(q *UnansweredQuestion) { q.Frequency++ })
}

// UpdateUnansweredStatus sets a question's status
func (m *MemoryStore) UpdateUnansweredStatus(ctx context.Context, id, status string) error {
	switch status {
	case StatusPending, StatusAnswered, StatusIgnored:
	default:
		return fmt.Errorf("invalid status %q", status)
	}
	return m.update(id, func(q *UnansweredQuestion) { q.Status = status })
}

func (m *MemoryStore) update(id string, fn func(*UnansweredQuestion)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.unanswered {
		if m.unanswered[i].ID == id {
			fn(&m.unanswered[i])
			return nil
		}
	}
	return fmt.Errorf("unanswered question %s: %w", id, ErrNotFound)
}
