package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// MinPasswordLength is the shortest password accepted at sign-up
const MinPasswordLength = 6

// Registration is a student sign-up request
type Registration struct {
	StudentID  string `json:"student_id"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Faculty    string `json:"faculty"`
	Department string `json:"department"`
	Level      string `json:"level"`
}

// Validate checks required fields and normalises whitespace
func (r *Registration) Validate() error {
	r.StudentID = strings.ToUpper(strings.TrimSpace(r.StudentID))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)

	switch {
	case r.StudentID == "":
		return errors.New("student ID is required")
	case strings.EqualFold(r.StudentID, "admin"):
		return errors.New("student ID is reserved")
	case len(r.Password) < MinPasswordLength:
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	case r.FirstName == "" || r.LastName == "":
		return errors.New("first and last name are required")
	}

	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return fmt.Errorf("invalid email address: %w", err)
		}
	}
	return nil
}

// Register creates a student account
func (u *UserpassAuth) Register(ctx context.Context, r Registration) (*User, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}

	if _, err := u.store.GetUserByUsername(ctx, r.StudentID); err == nil {
		return nil, ErrUsernameTaken
	}

	id, err := u.store.CreateUser(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	u.logger.Info("registered student %s", r.StudentID)
	return u.store.GetUserByID(ctx, id)
}
