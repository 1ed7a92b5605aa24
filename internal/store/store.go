package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied is returned when a row belongs to another user
	ErrAccessDenied = errors.New("access denied")
)

// Store provides database operations for the assistant
type Store struct {
	db               *sql.DB
	dialect          dialect
	lockoutThreshold int
	lockoutDuration  time.Duration
}

// rowQueryer is satisfied by *sql.DB and *sql.Tx
type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func now() time.Time {
	return time.Now().UTC()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates an account with a bcrypt-hashed password
func (s *Store) CreateUser(ctx context.Context, u NewUser) (int64, error) {
	return s.insertUser(ctx, s.db, u)
}

func (s *Store) insertUser(ctx context.Context, q rowQueryer, u NewUser) (int64, error) {
	if u.Role == "" {
		u.Role = RoleStudent
	}
	passwordHash, err := hashPassword(u.Password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	var email sql.NullString
	if u.Email != "" {
		email = sql.NullString{String: u.Email, Valid: true}
	}

	query := `
		INSERT INTO users (username, password_hash, role, first_name, last_name, email, faculty, department, level, must_change_password, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	var userID int64
	err = q.QueryRowContext(ctx, s.dialect.rebind(query),
		u.Username, passwordHash, u.Role, u.FirstName, u.LastName, email,
		u.Faculty, u.Department, u.Level, u.MustChangePassword, now(),
	).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	return userID, nil
}

const userColumns = `id, username, password_hash, role, first_name, last_name, email, faculty, department, level, must_change_password, created_at, last_login`

func scanUser(scan func(dest ...any) error) (*User, error) {
	var user User
	var lastLogin sql.NullTime
	err := scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Faculty,
		&user.Department,
		&user.Level,
		&user.MustChangePassword,
		&user.CreatedAt,
		&lastLogin,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLogin = lastLogin.Time
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username (student ID for students)
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	user, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, userID int64) (*User, error) {
	user, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ValidateCredentials verifies username and password, returns user if valid
func (s *Store) ValidateCredentials(ctx context.Context, username, password string) (*User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	if !checkPasswordHash(password, user.PasswordHash) {
		return nil, fmt.Errorf("invalid credentials")
	}

	return user, nil
}

// UpdatePassword updates a user's password and resets must_change_password
func (s *Store) UpdatePassword(ctx context.Context, userID int64, newPassword string) error {
	passwordHash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = s.exec(ctx, `UPDATE users SET password_hash = ?, must_change_password = ? WHERE id = ?`, passwordHash, false, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

// UpdateLastLogin updates the last_login timestamp for a user
func (s *Store) UpdateLastLogin(ctx context.Context, userID int64) error {
	_, err := s.exec(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// ListUsers returns all users, newest first
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// hashPassword hashes a password using bcrypt
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// checkPasswordHash verifies a password against a bcrypt hash
func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateSessionToken stores a new session token
func (s *Store) CreateSessionToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := s.exec(ctx, `INSERT INTO session_tokens (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		token, userID, now(), expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create session token: %w", err)
	}
	return nil
}

// GetSessionToken retrieves a session token.
// Returns nil if the token doesn't exist or has expired.
func (s *Store) GetSessionToken(ctx context.Context, token string) (*SessionToken, error) {
	var st SessionToken
	err := s.queryRow(ctx, `SELECT token, user_id, created_at, expires_at FROM session_tokens WHERE token = ?`, token).Scan(
		&st.Token,
		&st.UserID,
		&st.CreatedAt,
		&st.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session token: %w", err)
	}

	if time.Now().After(st.ExpiresAt) {
		return nil, nil
	}

	return &st, nil
}

// DeleteSessionToken removes a session token (logout)
func (s *Store) DeleteSessionToken(ctx context.Context, token string) error {
	if _, err := s.exec(ctx, `DELETE FROM session_tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	return nil
}

// CleanupExpiredTokens removes expired session tokens and reports how many
func (s *Store) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result, err := s.exec(ctx, `DELETE FROM session_tokens WHERE expires_at < ?`, now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}
	return result.RowsAffected()
}

// RecordFailedLogin records a failed login attempt for lockout tracking
func (s *Store) RecordFailedLogin(ctx context.Context, username string) error {
	if _, err := s.exec(ctx, `INSERT INTO failed_logins (username, attempted_at) VALUES (?, ?)`, username, now()); err != nil {
		return fmt.Errorf("failed to record failed login: %w", err)
	}
	return nil
}

// ClearFailedLogins removes failed attempts after a successful login
func (s *Store) ClearFailedLogins(ctx context.Context, username string) error {
	if _, err := s.exec(ctx, `DELETE FROM failed_logins WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to clear failed logins: %w", err)
	}
	return nil
}

// IsAccountLocked reports whether the threshold of failed attempts was reached
// within the lockout window, and when the lockout ends.
func (s *Store) IsAccountLocked(ctx context.Context, username string) (bool, time.Time) {
	threshold := now().Add(-s.lockoutDuration)

	var count int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM failed_logins WHERE username = ? AND attempted_at > ?`, username, threshold).Scan(&count)
	if err != nil {
		// Fail open for availability
		return false, time.Time{}
	}

	if count < s.lockoutThreshold {
		return false, time.Time{}
	}

	// The lockout runs from the attempt that reached the threshold
	var lockingAttempt time.Time
	err = s.queryRow(ctx, `SELECT attempted_at FROM failed_logins
		WHERE username = ? AND attempted_at > ?
		ORDER BY attempted_at DESC
		LIMIT 1 OFFSET ?`, username, threshold, s.lockoutThreshold-1).Scan(&lockingAttempt)
	if err != nil {
		return true, threshold.Add(s.lockoutDuration)
	}

	return true, lockingAttempt.Add(s.lockoutDuration)
}

// PurgeFailedLogins deletes attempts older than the given time
func (s *Store) PurgeFailedLogins(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.exec(ctx, `DELETE FROM failed_logins WHERE attempted_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge failed logins: %w", err)
	}
	return result.RowsAffected()
}

// LogAudit records an operation in the audit log
func (s *Store) LogAudit(ctx context.Context, userID int64, username, operation, details string) error {
	_, err := s.exec(ctx, `INSERT INTO audit_log (timestamp, user_id, username, operation_type, details) VALUES (?, ?, ?, ?, ?)`,
		now(), userID, username, operation, details)
	if err != nil {
		return fmt.Errorf("failed to log audit entry: %w", err)
	}
	return nil
}

// GetAuditLog returns the most recent audit entries
func (s *Store) GetAuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(ctx, `
		SELECT id, timestamp, COALESCE(user_id, 0), username, operation_type, details
		FROM audit_log
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.UserID, &entry.Username, &entry.OperationType, &entry.Details); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

func joinKeywords(keywords []string) string {
	return strings.Join(keywords, ",")
}

func splitKeywords(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
