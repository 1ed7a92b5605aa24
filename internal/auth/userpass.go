package auth

import (
	"context"
	"fmt"
	"time"

	"mauassist/internal/logging"
)

// UserpassAuth implements student-ID/password authentication
type UserpassAuth struct {
	store         Store
	sessionExpiry time.Duration
	logger        *logging.Logger
}

// NewUserpassAuth creates a new username/password auth provider
func NewUserpassAuth(store Store, sessionExpiryDays int, logger *logging.Logger) *UserpassAuth {
	if sessionExpiryDays <= 0 {
		sessionExpiryDays = 7
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &UserpassAuth{
		store:         store,
		sessionExpiry: time.Duration(sessionExpiryDays) * 24 * time.Hour,
		logger:        logger,
	}
}

// Login authenticates credentials and returns a session
func (u *UserpassAuth) Login(ctx context.Context, username, password string) (*Session, error) {
	if locked, until := u.store.IsAccountLocked(ctx, username); locked {
		u.logger.Warn("login attempt for locked account %s", username)
		return nil, fmt.Errorf("%w until %s", ErrAccountLocked, until.Format(time.RFC3339))
	}

	user, err := u.store.GetUserByUsername(ctx, username)
	if err != nil {
		u.recordFailure(ctx, username)
		return nil, ErrInvalidCredentials
	}

	if !checkPasswordHash(password, user.PasswordHash) {
		u.recordFailure(ctx, username)
		return nil, ErrInvalidCredentials
	}

	session, err := u.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := u.store.UpdateLastLogin(ctx, user.ID); err != nil {
		u.logger.Warn("failed to update last login for %s: %v", username, err)
	}
	if err := u.store.ClearFailedLogins(ctx, username); err != nil {
		u.logger.Warn("failed to clear failed logins for %s: %v", username, err)
	}

	u.logger.Info("user %s logged in", username)
	return session, nil
}

func (u *UserpassAuth) recordFailure(ctx context.Context, username string) {
	if err := u.store.RecordFailedLogin(ctx, username); err != nil {
		u.logger.Warn("failed to record failed login for %s: %v", username, err)
	}
}

// issue creates and stores a session token for user
func (u *UserpassAuth) issue(ctx context.Context, user *User) (*Session, error) {
	// 32 bytes = 256 bits of entropy
	token, err := generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	expiresAt := time.Now().Add(u.sessionExpiry)
	if err := u.store.CreateSessionToken(ctx, token, user.ID, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout invalidates a session token
func (u *UserpassAuth) Logout(ctx context.Context, token string) error {
	return u.store.DeleteSessionToken(ctx, token)
}

// ValidateToken verifies a token and returns the user_id
func (u *UserpassAuth) ValidateToken(ctx context.Context, token string) (int64, error) {
	sessionToken, err := u.store.GetSessionToken(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("failed to look up token: %w", err)
	}
	if sessionToken == nil {
		return 0, ErrInvalidToken
	}

	if time.Now().After(sessionToken.ExpiresAt) {
		u.store.DeleteSessionToken(ctx, token)
		return 0, ErrInvalidToken
	}

	return sessionToken.UserID, nil
}

// RefreshToken issues a new token for the same user and revokes the old one
func (u *UserpassAuth) RefreshToken(ctx context.Context, token string) (*Session, error) {
	userID, err := u.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := u.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	session, err := u.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := u.store.DeleteSessionToken(ctx, token); err != nil {
		u.logger.Warn("failed to revoke refreshed token: %v", err)
	}
	return session, nil
}
