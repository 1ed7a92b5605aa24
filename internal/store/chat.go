package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// CreateChatSession starts a new conversation for a user and returns its ID
func (s *Store) CreateChatSession(ctx context.Context, userID int64, title string) (string, error) {
	id := uuid.NewString()
	ts := now()
	_, err := s.exec(ctx, `INSERT INTO chat_sessions (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, title, ts, ts)
	if err != nil {
		return "", fmt.Errorf("failed to create chat session: %w", err)
	}
	return id, nil
}

// GetSessionOwner returns the user who owns a chat session
func (s *Store) GetSessionOwner(ctx context.Context, sessionID string) (int64, error) {
	var userID int64
	err := s.queryRow(ctx, `SELECT user_id FROM chat_sessions WHERE id = ?`, sessionID).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get session owner: %w", err)
	}
	return userID, nil
}

// SaveChatMessage appends a message to a session and bumps its updated_at
func (s *Store) SaveChatMessage(ctx context.Context, sessionID, content string, isUser bool, intent string, confidence float64) error {
	ts := now()
	_, err := s.exec(ctx, `INSERT INTO chat_messages (session_id, content, is_user, intent, confidence, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, content, isUser, intent, confidence, ts)
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}

	if _, err := s.exec(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, ts, sessionID); err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	return nil
}

// GetUserSessions lists a user's sessions, most recently active first
func (s *Store) GetUserSessions(ctx context.Context, userID int64) ([]ChatSession, error) {
	rows, err := s.query(ctx, `
		SELECT cs.id, cs.user_id, cs.title, cs.created_at, cs.updated_at, COUNT(cm.id)
		FROM chat_sessions cs
		LEFT JOIN chat_messages cm ON cm.session_id = cs.id
		WHERE cs.user_id = ?
		GROUP BY cs.id, cs.user_id, cs.title, cs.created_at, cs.updated_at
		ORDER BY cs.updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []ChatSession
	for rows.Next() {
		var cs ChatSession
		if err := rows.Scan(&cs.ID, &cs.UserID, &cs.Title, &cs.CreatedAt, &cs.UpdatedAt, &cs.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, cs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// GetSessionMessages returns a session's messages in order, after checking
// the session belongs to userID.
func (s *Store) GetSessionMessages(ctx context.Context, userID int64, sessionID string) ([]ChatMessage, error) {
	owner, err := s.GetSessionOwner(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if owner != userID {
		return nil, fmt.Errorf("session %s of user %d: %w", sessionID, userID, ErrAccessDenied)
	}

	rows, err := s.query(ctx, `
		SELECT id, session_id, content, is_user, intent, confidence, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Content, &m.IsUser, &m.Intent, &m.Confidence, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}
