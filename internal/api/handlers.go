package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mauassist/internal/assistant"
	"mauassist/internal/auth"
)

// maxTitleRunes bounds the session title taken from the first message
const maxTitleRunes = 50

type loginRequest struct {
	StudentID string `json:"student_id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

func (req loginRequest) username() string {
	if req.StudentID != "" {
		return strings.TrimSpace(req.StudentID)
	}
	return strings.TrimSpace(req.Username)
}

// handleLogin authenticates a student or admin and sets the session cookie
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.login(w, r, false)
}

// handleAdminLogin only accepts admin accounts
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	s.login(w, r, true)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, adminOnly bool) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	username := req.username()
	if username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "student ID and password are required")
		return
	}

	session, err := s.auth.Login(ctx, username, req.Password)
	switch {
	case errors.Is(err, auth.ErrAccountLocked):
		writeError(w, http.StatusTooManyRequests, "account temporarily locked, try again later")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid student ID or password")
		return
	case err != nil:
		s.logger.WithContext("error", err.Error()).Error("login failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	if adminOnly && !session.User.IsAdmin() {
		if err := s.auth.Logout(ctx, session.Token); err != nil {
			s.logger.WithContext("error", err.Error()).Warn("failed to revoke non-admin session")
		}
		writeError(w, http.StatusForbidden, auth.ErrNotAdmin.Error())
		return
	}

	s.audit(ctx, session.User, "login", "")
	s.setSessionCookie(w, session.Token, session.ExpiresAt)
	writeJSON(w, http.StatusOK, session)
}

// handleLogout revokes the caller's token and clears the cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractToken(r)
	if err := s.auth.Logout(r.Context(), token); err != nil {
		s.logger.WithContext("error", err.Error()).Warn("logout failed")
	}
	s.setSessionCookie(w, "", time.Unix(0, 0))
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleRefresh swaps the caller's token for a fresh one
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	session, err := s.auth.RefreshToken(r.Context(), auth.ExtractToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}
	s.setSessionCookie(w, session.Token, session.ExpiresAt)
	writeJSON(w, http.StatusOK, session)
}

// handleRegister creates a student account and logs it in
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.config.AllowRegistration {
		writeError(w, http.StatusForbidden, auth.ErrRegistrationClosed.Error())
		return
	}

	var req auth.Registration
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	password := req.Password

	user, err := s.auth.Register(ctx, req)
	switch {
	case errors.Is(err, auth.ErrUsernameTaken):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, auth.ErrInvalidRegistration):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.WithContext("error", err.Error()).Error("registration failed")
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	s.audit(ctx, user, "register", user.Faculty)

	session, err := s.auth.Login(ctx, user.Username, password)
	if err != nil {
		// account exists; the student can still log in manually
		writeJSON(w, http.StatusCreated, map[string]interface{}{"user": user})
		return
	}
	s.setSessionCookie(w, session.Token, session.ExpiresAt)
	writeJSON(w, http.StatusCreated, session)
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handleChangePassword replaces the caller's password, clearing must_change_password
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}

	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if len(req.NewPassword) < auth.MinPasswordLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("new password must be at least %d characters", auth.MinPasswordLength))
		return
	}

	err = s.store.ChangePassword(ctx, user.ID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, ErrWrongPassword):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		s.logger.WithContext("error", err.Error()).Error("password change failed")
		writeError(w, http.StatusInternalServerError, "password change failed")
		return
	}

	s.audit(ctx, user, "change_password", "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

// handleMe returns the authenticated user
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	assistant.Reply
	SessionID string `json:"session_id"`
}

// handleChat answers a student message and stores both sides of the exchange
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID, err = s.store.CreateChatSession(ctx, user.ID, sessionTitle(message))
		if err != nil {
			s.logger.WithContext("error", err.Error()).Error("failed to create chat session")
			writeError(w, http.StatusInternalServerError, "failed to create chat session")
			return
		}
	} else {
		owner, err := s.store.GetSessionOwner(ctx, sessionID)
		switch {
		case errors.Is(err, ErrSessionNotFound):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			s.logger.WithContext("error", err.Error()).Error("failed to load chat session")
			writeError(w, http.StatusInternalServerError, "failed to load chat session")
			return
		case owner != user.ID:
			writeError(w, http.StatusForbidden, ErrAccessDenied.Error())
			return
		}
	}

	if err := s.store.SaveChatMessage(ctx, sessionID, message, true, "", 0); err != nil {
		s.logger.WithContext("error", err.Error()).Warn("failed to save user message")
	}

	reply := s.assistant.Respond(ctx, message, assistant.Caller{
		StudentID:   user.Username,
		DisplayName: user.DisplayName(),
		Faculty:     user.Faculty,
		Level:       user.Level,
	})

	if err := s.store.SaveChatMessage(ctx, sessionID, reply.Text, false, reply.Intent, reply.Confidence); err != nil {
		s.logger.WithContext("error", err.Error()).Warn("failed to save assistant message")
	}

	s.hub.Broadcast(EventChatMessage, ChatActivity{
		SessionID:  sessionID,
		StudentID:  user.Username,
		Message:    message,
		Reply:      reply.Text,
		Intent:     reply.Intent,
		Confidence: reply.Confidence,
	})

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply, SessionID: sessionID})
}

// sessionTitle shortens the first message into a session title
func sessionTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= maxTitleRunes {
		return message
	}
	return strings.TrimSpace(string(runes[:maxTitleRunes])) + "..."
}

// handleSessions returns the caller's chat sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	sessions, err := s.store.GetUserSessions(r.Context(), userID)
	if err != nil {
		s.logger.WithContext("error", err.Error()).Error("failed to list sessions")
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleSessionHistory retrieves messages for one of the caller's sessions
func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	messages, err := s.store.GetSessionMessages(r.Context(), userID, r.PathValue("id"))
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, ErrAccessDenied):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		s.logger.WithContext("error", err.Error()).Error("failed to get session history")
		writeError(w, http.StatusInternalServerError, "failed to get session history")
		return
	}
	if messages == nil {
		messages = []ChatMessage{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// handleQuickInfo returns the quick-reply categories
func (s *Server) handleQuickInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.assistant.QuickInfo())
}
