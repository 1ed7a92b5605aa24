// Package feedback tracks questions the assistant could not answer well so
// admins can review them and turn them into custom knowledge.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mauassist/internal/knowledge"
	"mauassist/internal/logging"
)

// Question statuses. Only pending questions may change status.
const (
	StatusPending  = "pending"
	StatusAnswered = "answered"
	StatusIgnored  = "ignored"
)

// DedupPrefixLen is how many leading runes of a new question are compared
// against stored questions to detect a repeat.
const DedupPrefixLen = 20

var (
	ErrNotFound          = errors.New("question not found")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("question is no longer pending")
)

// Question is a tracked unanswered question
type Question struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Category    string    `json:"category"`
	AskedAt     time.Time `json:"asked_at"`
	Frequency   int       `json:"frequency"`
	Status      string    `json:"status"`
}

// Store persists tracked questions. List returns them in the order first asked.
type Store interface {
	List(ctx context.Context) ([]Question, error)
	Insert(ctx context.Context, q Question) (string, error)
	IncrementFrequency(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id, status string) error
}

// KnowledgeAdder receives the answer when an admin resolves a question
type KnowledgeAdder interface {
	Add(ctx context.Context, question, answer, category string, keywords []string, authorID string) bool
}

// Event types published on state changes
const (
	EventRecorded = "unanswered_recorded"
	EventRepeated = "unanswered_repeated"
	EventAnswered = "unanswered_answered"
	EventIgnored  = "unanswered_ignored"
)

// Event describes a change to a tracked question
type Event struct {
	Type     string   `json:"type"`
	Question Question `json:"question"`
}

// Publisher receives tracker events. Publish must not block.
type Publisher interface {
	Publish(e Event)
}

// Tracker records and manages unanswered questions
type Tracker struct {
	store     Store
	kb        KnowledgeAdder
	publisher Publisher
	logger    *logging.Logger

	// recordMu serialises Record so concurrent repeats merge into one row
	recordMu sync.Mutex
}

// NewTracker creates a tracker. kb and publisher may be nil.
func NewTracker(store Store, kb KnowledgeAdder, publisher Publisher, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Tracker{
		store:     store,
		kb:        kb,
		publisher: publisher,
		logger:    logger,
	}
}

// Record logs a question. A question whose opening matches a stored one,
// whatever its status, bumps that question's frequency instead of adding a
// new row. A blank question has an empty opening, so it bumps the first
// stored question or is inserted when none exist. Persistence errors are
// logged and swallowed.
func (t *Tracker) Record(ctx context.Context, question, studentID, studentName, category string) {
	question = strings.TrimSpace(question)

	t.recordMu.Lock()
	defer t.recordMu.Unlock()

	existing, err := t.store.List(ctx)
	if err != nil {
		t.logger.Warn("cannot load unanswered questions: %v", err)
		return
	}

	if q, ok := findRepeat(existing, question); ok {
		if err := t.store.IncrementFrequency(ctx, q.ID); err != nil {
			t.logger.Warn("failed to increment frequency of %s: %v", q.ID, err)
			return
		}
		q.Frequency++
		t.logger.Debug("repeat of unanswered question %s (frequency %d)", q.ID, q.Frequency)
		t.publish(EventRepeated, q)
		return
	}

	q := Question{
		Question:    question,
		StudentID:   studentID,
		StudentName: studentName,
		Category:    category,
		AskedAt:     time.Now().UTC(),
		Frequency:   1,
		Status:      StatusPending,
	}
	id, err := t.store.Insert(ctx, q)
	if err != nil {
		t.logger.Warn("failed to record unanswered question: %v", err)
		return
	}
	q.ID = id
	t.logger.Info("recorded unanswered question %s from %s", id, studentID)
	t.publish(EventRecorded, q)
}

// findRepeat returns the first stored question containing the opening of question
func findRepeat(existing []Question, question string) (Question, bool) {
	prefix := knowledge.Prefix(knowledge.Normalize(question), DedupPrefixLen)
	for _, q := range existing {
		if strings.Contains(knowledge.Normalize(q.Question), prefix) {
			return q, true
		}
	}
	return Question{}, false
}

// List returns all tracked questions, most frequent first and newest first
// among equals. Empty on failure.
func (t *Tracker) List(ctx context.Context) []Question {
	list, err := t.store.List(ctx)
	if err != nil {
		t.logger.Warn("failed to list unanswered questions: %v", err)
		return []Question{}
	}
	if list == nil {
		return []Question{}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Frequency != list[j].Frequency {
			return list[i].Frequency > list[j].Frequency
		}
		return list[i].AskedAt.After(list[j].AskedAt)
	})
	return list
}

// Get returns one tracked question
func (t *Tracker) Get(ctx context.Context, id string) (Question, error) {
	list, err := t.store.List(ctx)
	if err != nil {
		return Question{}, fmt.Errorf("failed to load unanswered questions: %w", err)
	}
	for _, q := range list {
		if q.ID == id {
			return q, nil
		}
	}
	return Question{}, fmt.Errorf("%s: %w", id, ErrNotFound)
}

// SetStatus moves a pending question to answered or ignored. Validation
// failures are returned; persistence failures are logged and swallowed.
func (t *Tracker) SetStatus(ctx context.Context, id, status string) error {
	if status != StatusAnswered && status != StatusIgnored {
		if status == StatusPending {
			return fmt.Errorf("%w: cannot move back to pending", ErrInvalidTransition)
		}
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	q, err := t.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		t.logger.Warn("cannot update status of %s: %v", id, err)
		return nil
	}
	if q.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, q.Status)
	}

	if err := t.store.UpdateStatus(ctx, id, status); err != nil {
		t.logger.Warn("failed to update status of %s: %v", id, err)
		return nil
	}

	q.Status = status
	if status == StatusAnswered {
		t.publish(EventAnswered, q)
	} else {
		t.publish(EventIgnored, q)
	}
	t.logger.Info("unanswered question %s marked %s", id, status)
	return nil
}

// Answer stores answer as custom knowledge for the question and marks it
// answered. The question stays pending if the knowledge entry is not saved.
func (t *Tracker) Answer(ctx context.Context, id, answer, category string, keywords []string, adminID string) error {
	if strings.TrimSpace(answer) == "" {
		return errors.New("answer is required")
	}
	if t.kb == nil {
		return errors.New("no knowledge base configured")
	}

	q, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	if q.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, q.Status)
	}
	if category == "" {
		category = q.Category
	}

	if !t.kb.Add(ctx, q.Question, answer, category, keywords, adminID) {
		return errors.New("failed to save knowledge entry")
	}

	return t.SetStatus(ctx, id, StatusAnswered)
}

// Ignore dismisses a pending question
func (t *Tracker) Ignore(ctx context.Context, id string) error {
	return t.SetStatus(ctx, id, StatusIgnored)
}

func (t *Tracker) publish(eventType string, q Question) {
	if t.publisher != nil {
		t.publisher.Publish(Event{Type: eventType, Question: q})
	}
}
