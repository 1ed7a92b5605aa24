package store

import (
	"database/sql"
	"time"
)

// Roles stored on users
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Unanswered question statuses
const (
	StatusPending  = "pending"
	StatusAnswered = "answered"
	StatusIgnored  = "ignored"
)

// User represents a student or admin account. Students log in with their
// student ID as username.
type User struct {
	ID                 int64
	Username           string
	PasswordHash       string
	Role               string
	FirstName          string
	LastName           string
	Email              sql.NullString
	Faculty            string
	Department         string
	Level              string
	MustChangePassword bool
	CreatedAt          time.Time
	LastLogin          time.Time
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName returns "First Last", falling back to the username
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

// NewUser holds the fields needed to create an account
type NewUser struct {
	Username           string
	Password           string
	Role               string
	FirstName          string
	LastName           string
	Email              string
	Faculty            string
	Department         string
	Level              string
	MustChangePassword bool
}

// SessionToken represents an authentication session token
type SessionToken struct {
	Token     string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ChatSession is a titled conversation owned by one user
type ChatSession struct {
	ID           string
	UserID       int64
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// ChatMessage represents one side of an exchange
type ChatMessage struct {
	ID         int64
	SessionID  string
	Content    string
	IsUser     bool
	Intent     string
	Confidence float64
	CreatedAt  time.Time
}

// KnowledgeEntry is an admin-authored question/answer pair
type KnowledgeEntry struct {
	ID        string
	Question  string
	Answer    string
	Category  string
	Keywords  []string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UnansweredQuestion is a student question the assistant could not answer well
type UnansweredQuestion struct {
	ID          string
	Question    string
	StudentID   string
	StudentName string
	Category    string
	AskedAt     time.Time
	Frequency   int
	Status      string
}

// AuditEntry represents an audit log entry
type AuditEntry struct {
	ID            int64
	Timestamp     time.Time
	UserID        int64
	Username      string
	OperationType string
	Details       string
}
