package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"mauassist/internal/assistant"
	"mauassist/internal/auth"
	"mauassist/internal/customkb"
	"mauassist/internal/feedback"
	"mauassist/internal/ingest"
	"mauassist/internal/knowledge"
	"mauassist/internal/logging"
)

// Errors the Store adapter maps persistence failures to
var (
	ErrSessionNotFound = errors.New("chat session not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrWrongPassword   = errors.New("current password is incorrect")
)

// Server holds dependencies and provides HTTP handlers
type Server struct {
	assistant Assistant
	auth      Authenticator
	sessions  auth.Store
	store     Store
	tracker   Tracker
	knowledge Knowledge
	importer  Importer
	drafter   Drafter
	hub       *Hub
	config    ServerConfig
	logger    *logging.Logger
}

// Assistant answers student messages
type Assistant interface {
	Respond(ctx context.Context, message string, caller assistant.Caller) assistant.Reply
	QuickInfo() []knowledge.QuickInfoCategory
}

// Authenticator issues and revokes sessions
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	Logout(ctx context.Context, token string) error
	RefreshToken(ctx context.Context, token string) (*auth.Session, error)
	Register(ctx context.Context, r auth.Registration) (*auth.User, error)
}

// Store interface for chat history and auditing
type Store interface {
	GetUserByID(ctx context.Context, userID int64) (*auth.User, error)
	ListUsers(ctx context.Context) ([]auth.User, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
	CreateChatSession(ctx context.Context, userID int64, title string) (string, error)
	GetSessionOwner(ctx context.Context, sessionID string) (int64, error)
	SaveChatMessage(ctx context.Context, sessionID, content string, isUser bool, intent string, confidence float64) error
	GetUserSessions(ctx context.Context, userID int64) ([]Session, error)
	GetSessionMessages(ctx context.Context, userID int64, sessionID string) ([]ChatMessage, error)
	LogAudit(ctx context.Context, userID int64, username, operation, details string) error
	GetAuditLog(ctx context.Context, limit int) ([]AuditEntry, error)
}

// Tracker manages unanswered questions
type Tracker interface {
	List(ctx context.Context) []feedback.Question
	Get(ctx context.Context, id string) (feedback.Question, error)
	Answer(ctx context.Context, id, answer, category string, keywords []string, adminID string) error
	Ignore(ctx context.Context, id string) error
}

// Knowledge manages custom entries
type Knowledge interface {
	List(ctx context.Context) []customkb.Entry
	Add(ctx context.Context, question, answer, category string, keywords []string, authorID string) bool
}

// Importer builds custom entries from uploads and web pages
type Importer interface {
	ImportData(ctx context.Context, name string, data []byte, adminID string) (ingest.Result, error)
	ImportURL(ctx context.Context, rawURL, question, category string, keywords []string, adminID string) (string, error)
}

// Drafter suggests answers for unanswered questions
type Drafter interface {
	Draft(ctx context.Context, question string, w io.Writer) (string, error)
	Status() string
}

// Session summarises a chat session
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ChatMessage represents one stored message
type ChatMessage struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Content    string    `json:"content"`
	IsUser     bool      `json:"is_user"`
	Intent     string    `json:"intent,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditEntry represents an audit log entry
type AuditEntry struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username"`
	OperationType string    `json:"operation_type"`
	Details       string    `json:"details"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	AllowRegistration bool
	SecureCookies     bool
	MaxUploadBytes    int64
}

// Dependencies groups everything a Server needs. Drafter may be nil when no
// LLM provider is configured.
type Dependencies struct {
	Assistant Assistant
	Auth      Authenticator
	Sessions  auth.Store
	Store     Store
	Tracker   Tracker
	Knowledge Knowledge
	Importer  Importer
	Drafter   Drafter
	Hub       *Hub
	Config    ServerConfig
	Logger    *logging.Logger
}

// NewServer creates a server with dependencies
func NewServer(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(logger)
	}
	cfg := deps.Config
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 2 * 1024 * 1024
	}

	return &Server{
		assistant: deps.Assistant,
		auth:      deps.Auth,
		sessions:  deps.Sessions,
		store:     deps.Store,
		tracker:   deps.Tracker,
		knowledge: deps.Knowledge,
		importer:  deps.Importer,
		drafter:   deps.Drafter,
		hub:       hub,
		config:    cfg,
		logger:    logger,
	}
}

// Handler returns the routed handler with authentication applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(auth.AuthMiddleware(s.sessions)(mux))
}

// RegisterRoutes sets up all HTTP routes
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	admin := func(h http.HandlerFunc) http.Handler {
		return auth.RequireAdmin(s.sessions)(h)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Auth
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/admin/login", s.handleAdminLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("GET /api/me", s.handleMe)
	mux.HandleFunc("POST /api/password", s.handleChangePassword)

	// Student chat
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionHistory)
	mux.HandleFunc("GET /api/quick-info", s.handleQuickInfo)

	// Admin
	mux.Handle("GET /api/admin/unanswered", admin(s.handleListUnanswered))
	mux.Handle("POST /api/admin/unanswered/{id}/answer", admin(s.handleAnswerUnanswered))
	mux.Handle("POST /api/admin/unanswered/{id}/ignore", admin(s.handleIgnoreUnanswered))
	mux.Handle("POST /api/admin/unanswered/{id}/draft", admin(s.handleDraftAnswer))
	mux.Handle("GET /api/admin/draft-status", admin(s.handleDraftStatus))
	mux.Handle("GET /api/admin/knowledge", admin(s.handleListKnowledge))
	mux.Handle("POST /api/admin/knowledge", admin(s.handleAddKnowledge))
	mux.Handle("POST /api/admin/knowledge/import", admin(s.handleImportFile))
	mux.Handle("POST /api/admin/knowledge/import-url", admin(s.handleImportURL))
	mux.Handle("GET /api/admin/audit", admin(s.handleAudit))
	mux.Handle("GET /api/admin/users", admin(s.handleListUsers))

	// WebSocket
	mux.Handle("GET /ws", admin(s.handleWebSocket))
}

// logRequests logs each request at debug level
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request handled")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// currentUser loads the authenticated user from the request context
func (s *Server) currentUser(r *http.Request) (*auth.User, error) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		return nil, err
	}
	return s.store.GetUserByID(r.Context(), userID)
}

// audit records an admin or account operation. Failures are logged only.
func (s *Server) audit(ctx context.Context, user *auth.User, operation, details string) {
	if err := s.store.LogAudit(ctx, user.ID, user.Username, operation, details); err != nil {
		s.logger.WithContext("error", err.Error()).Warn("failed to write audit entry")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}
