package auth

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrUserIDNotFound      = errors.New("user_id not found in context")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account locked")
	ErrInvalidToken        = errors.New("invalid or expired session")
	ErrUsernameTaken       = errors.New("student ID already registered")
	ErrRegistrationClosed  = errors.New("registration is disabled")
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrNotAdmin            = errors.New("admin access required")
)

// Provider defines the authentication interface
type Provider interface {
	// Login authenticates credentials and returns a new session
	Login(ctx context.Context, username, password string) (*Session, error)

	// Logout invalidates a session token
	Logout(ctx context.Context, token string) error

	// ValidateToken verifies a token and returns the user_id
	ValidateToken(ctx context.Context, token string) (userID int64, err error)

	// RefreshToken replaces a session token with a fresh one
	RefreshToken(ctx context.Context, token string) (*Session, error)
}

// Store defines the database operations needed by auth
type Store interface {
	// User operations
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, userID int64) (*User, error)
	CreateUser(ctx context.Context, r Registration) (int64, error)
	UpdateLastLogin(ctx context.Context, userID int64) error

	// Session token operations
	CreateSessionToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	GetSessionToken(ctx context.Context, token string) (*SessionToken, error)
	DeleteSessionToken(ctx context.Context, token string) error

	// Account lockout operations
	IsAccountLocked(ctx context.Context, username string) (bool, time.Time)
	RecordFailedLogin(ctx context.Context, username string) error
	ClearFailedLogins(ctx context.Context, username string) error
}

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User represents a student or admin account
type User struct {
	ID                 int64  `json:"id"`
	Username           string `json:"student_id"`
	PasswordHash       string `json:"-"`
	Role               string `json:"role"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	Email              string `json:"email,omitempty"`
	Faculty            string `json:"faculty,omitempty"`
	Department         string `json:"department,omitempty"`
	Level              string `json:"level,omitempty"`
	MustChangePassword bool   `json:"must_change_password"`
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName returns "First Last", falling back to the username
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}

// SessionToken represents a stored session token
type SessionToken struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

// Session is the result of a successful login
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}
