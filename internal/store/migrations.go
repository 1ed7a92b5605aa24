package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"io"
	"math/big"
)

// runMigrations executes all database migrations in a transaction
func (s *Store) runMigrations(ctx context.Context, opts Options) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	tables := []struct {
		name string
		ddl  string
	}{
		{"users", usersTable},
		{"session_tokens", sessionTokensTable},
		{"failed_logins", failedLoginsTable},
		{"chat_sessions", chatSessionsTable},
		{"chat_messages", chatMessagesTable},
		{"knowledge_entries", knowledgeEntriesTable},
		{"unanswered_questions", unansweredQuestionsTable},
		{"audit_log", auditLogTable},
	}
	for _, t := range tables {
		if _, err = tx.ExecContext(ctx, s.dialect.ddl(t.ddl)); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}

	if err = createIndexes(ctx, tx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	if err = s.createDefaultAdmin(ctx, tx, opts.Announce); err != nil {
		return fmt.Errorf("failed to create default admin: %w", err)
	}

	if opts.SeedDemoStudents {
		if err = s.seedDemoStudents(ctx, tx); err != nil {
			return fmt.Errorf("failed to seed demo students: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	return nil
}

const usersTable = `
	CREATE TABLE IF NOT EXISTS users (
		id {{pk}},
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT UNIQUE,
		faculty TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		level TEXT NOT NULL DEFAULT '',
		must_change_password BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		last_login TIMESTAMP
	)`

const sessionTokensTable = `
	CREATE TABLE IF NOT EXISTS session_tokens (
		token TEXT PRIMARY KEY,
		user_id {{fk_int}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL
	)`

const failedLoginsTable = `
	CREATE TABLE IF NOT EXISTS failed_logins (
		id {{pk}},
		username TEXT NOT NULL,
		attempted_at TIMESTAMP NOT NULL
	)`

const chatSessionsTable = `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		user_id {{fk_int}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`

const chatMessagesTable = `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id {{pk}},
		session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		is_user BOOLEAN NOT NULL,
		intent TEXT NOT NULL DEFAULT '',
		confidence {{real}} NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`

// seq orders rows of equal timestamp by insertion; id is the public key.
const knowledgeEntriesTable = `
	CREATE TABLE IF NOT EXISTS knowledge_entries (
		seq {{pk}},
		id TEXT NOT NULL UNIQUE,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'general',
		keywords TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`

const unansweredQuestionsTable = `
	CREATE TABLE IF NOT EXISTS unanswered_questions (
		seq {{pk}},
		id TEXT NOT NULL UNIQUE,
		question TEXT NOT NULL,
		student_id TEXT NOT NULL DEFAULT '',
		student_name TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		asked_at TIMESTAMP NOT NULL,
		frequency INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'answered', 'ignored'))
	)`

const auditLogTable = `
	CREATE TABLE IF NOT EXISTS audit_log (
		id {{pk}},
		timestamp TIMESTAMP NOT NULL,
		user_id {{fk_int}},
		username TEXT NOT NULL DEFAULT '',
		operation_type TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT ''
	)`

func createIndexes(ctx context.Context, tx *sql.Tx) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_session_tokens_user ON session_tokens(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_session_tokens_expires ON session_tokens(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_failed_logins_username ON failed_logins(username)`,
		`CREATE INDEX IF NOT EXISTS idx_failed_logins_attempted ON failed_logins(attempted_at)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_created ON knowledge_entries(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_unanswered_status ON unanswered_questions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_log(user_id)`,
	}

	for _, indexQuery := range indexes {
		if _, err := tx.ExecContext(ctx, indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// createDefaultAdmin creates the "admin" account on first start and prints its
// temporary password once.
func (s *Store) createDefaultAdmin(ctx context.Context, tx *sql.Tx, announce io.Writer) error {
	var count int
	if err := tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT COUNT(*) FROM users WHERE role = ?`), RoleAdmin).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	adminPassword, err := generateSecurePassword(16)
	if err != nil {
		return fmt.Errorf("failed to generate admin password: %w", err)
	}

	if _, err := s.insertUser(ctx, tx, NewUser{
		Username:           "admin",
		Password:           adminPassword,
		Role:               RoleAdmin,
		FirstName:          "Portal",
		LastName:           "Administrator",
		MustChangePassword: true,
	}); err != nil {
		return err
	}

	fmt.Fprintf(announce, "\n")
	fmt.Fprintf(announce, "===========================================\n")
	fmt.Fprintf(announce, "DEFAULT ADMIN ACCOUNT CREATED\n")
	fmt.Fprintf(announce, "===========================================\n")
	fmt.Fprintf(announce, "Username: admin\n")
	fmt.Fprintf(announce, "Temporary Password: %s\n", adminPassword)
	fmt.Fprintf(announce, "===========================================\n")
	fmt.Fprintf(announce, "You MUST change this password on first login\n")
	fmt.Fprintf(announce, "===========================================\n")
	fmt.Fprintf(announce, "\n")

	return nil
}

// DemoStudents are development accounts. Their password is "password".
var DemoStudents = []NewUser{
	{
		Username:   "CSC/20U/1234",
		Password:   "password",
		Role:       RoleStudent,
		FirstName:  "John",
		LastName:   "Doe",
		Email:      "student@mau.edu.ng",
		Faculty:    "Faculty of Computing",
		Department: "Computer Science",
		Level:      "300 Level",
	},
	{
		Username:   "ENG/21U/5678",
		Password:   "password",
		Role:       RoleStudent,
		FirstName:  "Jane",
		LastName:   "Smith",
		Email:      "jane@mau.edu.ng",
		Faculty:    "Faculty of Engineering",
		Department: "Civil Engineering",
		Level:      "200 Level",
	},
}

func (s *Store) seedDemoStudents(ctx context.Context, tx *sql.Tx) error {
	for _, u := range DemoStudents {
		var count int
		if err := tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT COUNT(*) FROM users WHERE username = ?`), u.Username).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if _, err := s.insertUser(ctx, tx, u); err != nil {
			return err
		}
	}
	return nil
}

// generateSecurePassword generates a cryptographically secure random password
func generateSecurePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
	password := make([]byte, length)

	for i := range password {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		password[i] = charset[num.Int64()]
	}

	return string(password), nil
}
