package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DataStore defines the interface for all database operations
type DataStore interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error

	// User Management
	CreateUser(ctx context.Context, u NewUser) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, userID int64) (*User, error)
	ValidateCredentials(ctx context.Context, username, password string) (*User, error)
	UpdatePassword(ctx context.Context, userID int64, newPassword string) error
	UpdateLastLogin(ctx context.Context, userID int64) error
	ListUsers(ctx context.Context) ([]User, error)

	// Session Token Management
	CreateSessionToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	GetSessionToken(ctx context.Context, token string) (*SessionToken, error)
	DeleteSessionToken(ctx context.Context, token string) error
	CleanupExpiredTokens(ctx context.Context) (int64, error)

	// Account Lockout
	RecordFailedLogin(ctx context.Context, username string) error
	ClearFailedLogins(ctx context.Context, username string) error
	IsAccountLocked(ctx context.Context, username string) (bool, time.Time)
	PurgeFailedLogins(ctx context.Context, olderThan time.Time) (int64, error)

	// Chat History
	CreateChatSession(ctx context.Context, userID int64, title string) (string, error)
	GetSessionOwner(ctx context.Context, sessionID string) (int64, error)
	SaveChatMessage(ctx context.Context, sessionID, content string, isUser bool, intent string, confidence float64) error
	GetUserSessions(ctx context.Context, userID int64) ([]ChatSession, error)
	GetSessionMessages(ctx context.Context, userID int64, sessionID string) ([]ChatMessage, error)

	// Custom Knowledge Base
	ListKnowledgeEntries(ctx context.Context) ([]KnowledgeEntry, error)
	AddKnowledgeEntry(ctx context.Context, e KnowledgeEntry) (string, error)

	// Unanswered Questions
	ListUnanswered(ctx context.Context) ([]UnansweredQuestion, error)
	InsertUnanswered(ctx context.Context, q UnansweredQuestion) (string, error)
	IncrementUnansweredFrequency(ctx context.Context, id string) error
	UpdateUnansweredStatus(ctx context.Context, id, status string) error

	// Audit Log
	LogAudit(ctx context.Context, userID int64, username, operation, details string) error
	GetAuditLog(ctx context.Context, limit int) ([]AuditEntry, error)
}

// Options configures a DataStore
type Options struct {
	Driver           string // "sqlite" (default) or "postgres"
	DSN              string // sqlite file path or postgres connection string
	LockoutThreshold int
	LockoutDuration  time.Duration
	SeedDemoStudents bool
	// Announce receives the one-time default admin credentials. Defaults to stdout.
	Announce io.Writer
}

// NewDataStore opens the configured database and runs migrations
func NewDataStore(opts Options) (DataStore, error) {
	switch opts.Driver {
	case "sqlite", "":
		return openStore(sqliteDialect, "sqlite", opts.DSN+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", opts)
	case "postgres":
		return openStore(postgresDialect, "postgres", opts.DSN, opts)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", opts.Driver)
	}
}

func openStore(d dialect, driverName, dsn string, opts Options) (DataStore, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent multi-user access
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if opts.LockoutThreshold <= 0 {
		opts.LockoutThreshold = 5
	}
	if opts.LockoutDuration <= 0 {
		opts.LockoutDuration = 15 * time.Minute
	}
	if opts.Announce == nil {
		opts.Announce = os.Stdout
	}

	s := &Store{
		db:               db,
		dialect:          d,
		lockoutThreshold: opts.LockoutThreshold,
		lockoutDuration:  opts.LockoutDuration,
	}

	if err := s.runMigrations(context.Background(), opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}
