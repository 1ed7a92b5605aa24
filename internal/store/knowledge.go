package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ListKnowledgeEntries returns custom entries, newest first
func (s *Store) ListKnowledgeEntries(ctx context.Context) ([]KnowledgeEntry, error) {
	rows, err := s.query(ctx, `
		SELECT id, question, answer, category, keywords, created_by, created_at, updated_at
		FROM knowledge_entries
		ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []KnowledgeEntry
	for rows.Next() {
		var e KnowledgeEntry
		var keywords string
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &e.Category, &keywords, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		e.Keywords = splitKeywords(keywords)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge entries: %w", err)
	}

	return entries, nil
}

// AddKnowledgeEntry inserts a custom entry and returns its ID
func (s *Store) AddKnowledgeEntry(ctx context.Context, e KnowledgeEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}

	_, err := s.exec(ctx, `
		INSERT INTO knowledge_entries (id, question, answer, category, keywords, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Question, e.Answer, e.Category, joinKeywords(e.Keywords), e.CreatedBy, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to add knowledge entry: %w", err)
	}
	return e.ID, nil
}

// ListUnanswered returns unanswered questions in the order they were first asked
func (s *Store) ListUnanswered(ctx context.Context) ([]UnansweredQuestion, error) {
	rows, err := s.query(ctx, `
		SELECT id, question, student_id, student_name, category, asked_at, frequency, status
		FROM unanswered_questions
		ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unanswered questions: %w", err)
	}
	defer rows.Close()

	var out []UnansweredQuestion
	for rows.Next() {
		var q UnansweredQuestion
		if err := rows.Scan(&q.ID, &q.Question, &q.StudentID, &q.StudentName, &q.Category, &q.AskedAt, &q.Frequency, &q.Status); err != nil {
			return nil, fmt.Errorf("failed to scan unanswered question: %w", err)
		}
		out = append(out, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unanswered questions: %w", err)
	}

	return out, nil
}

// InsertUnanswered stores a new unanswered question and returns its ID
func (s *Store) InsertUnanswered(ctx context.Context, q UnansweredQuestion) (string, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.AskedAt.IsZero() {
		q.AskedAt = now()
	}
	if q.Frequency <= 0 {
		q.Frequency = 1
	}
	if q.Status == "" {
		q.Status = StatusPending
	}

	_, err := s.exec(ctx, `
		INSERT INTO unanswered_questions (id, question, student_id, student_name, category, asked_at, frequency, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Question, q.StudentID, q.StudentName, q.Category, q.AskedAt.UTC(), q.Frequency, q.Status)
	if err != nil {
		return "", fmt.Errorf("failed to insert unanswered question: %w", err)
	}
	return q.ID, nil
}

// IncrementUnansweredFrequency adds one to a question's frequency
func (s *Store) IncrementUnansweredFrequency(ctx context.Context, id string) error {
	result, err := s.exec(ctx, `UPDATE unanswered_questions SET frequency = frequency + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment frequency: %w", err)
	}
	return requireAffected(result, "unanswered question "+id)
}

// UpdateUnansweredStatus sets a question's status
func (s *Store) UpdateUnansweredStatus(ctx context.Context, id, status string) error {
	result, err := s.exec(ctx, `UPDATE unanswered_questions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return requireAffected(result, "unanswered question "+id)
}

func requireAffected(result interface{ RowsAffected() (int64, error) }, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
