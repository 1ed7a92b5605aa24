package main

import (
	"context"
	"errors"
	"time"

	"mauassist/internal/api"
	"mauassist/internal/auth"
	"mauassist/internal/customkb"
	"mauassist/internal/feedback"
	"mauassist/internal/knowledge"
	"mauassist/internal/store"
)

// knowledgePersistence is implemented by both the database and the in-memory store
type knowledgePersistence interface {
	ListKnowledgeEntries(ctx context.Context) ([]store.KnowledgeEntry, error)
	AddKnowledgeEntry(ctx context.Context, e store.KnowledgeEntry) (string, error)
	ListUnanswered(ctx context.Context) ([]store.UnansweredQuestion, error)
	InsertUnanswered(ctx context.Context, q store.UnansweredQuestion) (string, error)
	IncrementUnansweredFrequency(ctx context.Context, id string) error
	UpdateUnansweredStatus(ctx context.Context, id, status string) error
}

// customkbStoreAdapter adapts store knowledge entries to customkb.Store
type customkbStoreAdapter struct {
	store knowledgePersistence
}

func (a *customkbStoreAdapter) ListEntries(ctx context.Context) ([]customkb.Entry, error) {
	rows, err := a.store.ListKnowledgeEntries(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]customkb.Entry, len(rows))
	for i, r := range rows {
		entries[i] = customkb.Entry{
			ID: r.ID,
			Entry: knowledge.Entry{
				Question: r.Question,
				Answer:   r.Answer,
				Category: r.Category,
				Keywords: r.Keywords,
			},
			CreatedBy: r.CreatedBy,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return entries, nil
}

func (a *customkbStoreAdapter) AddEntry(ctx context.Context, e customkb.Entry) (string, error) {
	return a.store.AddKnowledgeEntry(ctx, store.KnowledgeEntry{
		ID:        e.ID,
		Question:  e.Question,
		Answer:    e.Answer,
		Category:  e.Category,
		Keywords:  e.Keywords,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	})
}

// feedbackStoreAdapter adapts store unanswered rows to feedback.Store
type feedbackStoreAdapter struct {
	store knowledgePersistence
}

func (a *feedbackStoreAdapter) List(ctx context.Context) ([]feedback.Question, error) {
	rows, err := a.store.ListUnanswered(ctx)
	if err != nil {
		return nil, err
	}
	questions := make([]feedback.Question, len(rows))
	for i, r := range rows {
		questions[i] = feedback.Question{
			ID:          r.ID,
			Question:    r.Question,
			StudentID:   r.StudentID,
			StudentName: r.StudentName,
			Category:    r.Category,
			AskedAt:     r.AskedAt,
			Frequency:   r.Frequency,
			Status:      r.Status,
		}
	}
	return questions, nil
}

func (a *feedbackStoreAdapter) Insert(ctx context.Context, q feedback.Question) (string, error) {
	return a.store.InsertUnanswered(ctx, store.UnansweredQuestion{
		ID:          q.ID,
		Question:    q.Question,
		StudentID:   q.StudentID,
		StudentName: q.StudentName,
		Category:    q.Category,
		AskedAt:     q.AskedAt,
		Frequency:   q.Frequency,
		Status:      q.Status,
	})
}

func (a *feedbackStoreAdapter) IncrementFrequency(ctx context.Context, id string) error {
	return mapNotFound(a.store.IncrementUnansweredFrequency(ctx, id), feedback.ErrNotFound)
}

func (a *feedbackStoreAdapter) UpdateStatus(ctx context.Context, id, status string) error {
	return mapNotFound(a.store.UpdateUnansweredStatus(ctx, id, status), feedback.ErrNotFound)
}

// authStoreAdapter adapts store.DataStore to auth.Store
type authStoreAdapter struct {
	store store.DataStore
}

func toAuthUser(u *store.User) *auth.User {
	return &auth.User{
		ID:                 u.ID,
		Username:           u.Username,
		PasswordHash:       u.PasswordHash,
		Role:               u.Role,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Email:              u.Email.String,
		Faculty:            u.Faculty,
		Department:         u.Department,
		Level:              u.Level,
		MustChangePassword: u.MustChangePassword,
	}
}

func (a *authStoreAdapter) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	u, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return toAuthUser(u), nil
}

func (a *authStoreAdapter) GetUserByID(ctx context.Context, userID int64) (*auth.User, error) {
	u, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toAuthUser(u), nil
}

func (a *authStoreAdapter) CreateUser(ctx context.Context, r auth.Registration) (int64, error) {
	return a.store.CreateUser(ctx, store.NewUser{
		Username:   r.StudentID,
		Password:   r.Password,
		Role:       store.RoleStudent,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Email:      r.Email,
		Faculty:    r.Faculty,
		Department: r.Department,
		Level:      r.Level,
	})
}

func (a *authStoreAdapter) UpdateLastLogin(ctx context.Context, userID int64) error {
	return a.store.UpdateLastLogin(ctx, userID)
}

func (a *authStoreAdapter) CreateSessionToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	return a.store.CreateSessionToken(ctx, token, userID, expiresAt)
}

func (a *authStoreAdapter) GetSessionToken(ctx context.Context, token string) (*auth.SessionToken, error) {
	st, err := a.store.GetSessionToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &auth.SessionToken{Token: st.Token, UserID: st.UserID, ExpiresAt: st.ExpiresAt}, nil
}

func (a *authStoreAdapter) DeleteSessionToken(ctx context.Context, token string) error {
	return a.store.DeleteSessionToken(ctx, token)
}

func (a *authStoreAdapter) IsAccountLocked(ctx context.Context, username string) (bool, time.Time) {
	return a.store.IsAccountLocked(ctx, username)
}

func (a *authStoreAdapter) RecordFailedLogin(ctx context.Context, username string) error {
	return a.store.RecordFailedLogin(ctx, username)
}

func (a *authStoreAdapter) ClearFailedLogins(ctx context.Context, username string) error {
	return a.store.ClearFailedLogins(ctx, username)
}

// apiStoreAdapter adapts store.DataStore to api.Store
type apiStoreAdapter struct {
	*authStoreAdapter
}

func (a *apiStoreAdapter) ListUsers(ctx context.Context) ([]auth.User, error) {
	rows, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]auth.User, len(rows))
	for i := range rows {
		users[i] = *toAuthUser(&rows[i])
	}
	return users, nil
}

// ChangePassword checks the current password before replacing it
func (a *apiStoreAdapter) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	u, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := a.store.ValidateCredentials(ctx, u.Username, current); err != nil {
		return api.ErrWrongPassword
	}
	return a.store.UpdatePassword(ctx, userID, next)
}

func (a *apiStoreAdapter) CreateChatSession(ctx context.Context, userID int64, title string) (string, error) {
	return a.store.CreateChatSession(ctx, userID, title)
}

func (a *apiStoreAdapter) GetSessionOwner(ctx context.Context, sessionID string) (int64, error) {
	owner, err := a.store.GetSessionOwner(ctx, sessionID)
	return owner, mapChatError(err)
}

func (a *apiStoreAdapter) SaveChatMessage(ctx context.Context, sessionID, content string, isUser bool, intent string, confidence float64) error {
	return a.store.SaveChatMessage(ctx, sessionID, content, isUser, intent, confidence)
}

func (a *apiStoreAdapter) GetUserSessions(ctx context.Context, userID int64) ([]api.Session, error) {
	rows, err := a.store.GetUserSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	sessions := make([]api.Session, len(rows))
	for i, r := range rows {
		sessions[i] = api.Session{
			ID:           r.ID,
			Title:        r.Title,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
			MessageCount: r.MessageCount,
		}
	}
	return sessions, nil
}

func (a *apiStoreAdapter) GetSessionMessages(ctx context.Context, userID int64, sessionID string) ([]api.ChatMessage, error) {
	rows, err := a.store.GetSessionMessages(ctx, userID, sessionID)
	if err != nil {
		return nil, mapChatError(err)
	}
	messages := make([]api.ChatMessage, len(rows))
	for i, r := range rows {
		messages[i] = api.ChatMessage{
			ID:         r.ID,
			SessionID:  r.SessionID,
			Content:    r.Content,
			IsUser:     r.IsUser,
			Intent:     r.Intent,
			Confidence: r.Confidence,
			CreatedAt:  r.CreatedAt,
		}
	}
	return messages, nil
}

func (a *apiStoreAdapter) LogAudit(ctx context.Context, userID int64, username, operation, details string) error {
	return a.store.LogAudit(ctx, userID, username, operation, details)
}

func (a *apiStoreAdapter) GetAuditLog(ctx context.Context, limit int) ([]api.AuditEntry, error) {
	rows, err := a.store.GetAuditLog(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]api.AuditEntry, len(rows))
	for i, r := range rows {
		entries[i] = api.AuditEntry{
			ID:            r.ID,
			Timestamp:     r.Timestamp,
			UserID:        r.UserID,
			Username:      r.Username,
			OperationType: r.OperationType,
			Details:       r.Details,
		}
	}
	return entries, nil
}

// mapNotFound replaces store.ErrNotFound with target, keeping the message
func mapNotFound(err, target error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errors.Join(target, err)
	}
	return err
}

func mapChatError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errors.Join(api.ErrSessionNotFound, err)
	case errors.Is(err, store.ErrAccessDenied):
		return errors.Join(api.ErrAccessDenied, err)
	}
	return err
}
