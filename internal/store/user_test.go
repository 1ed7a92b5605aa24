package store

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"
)

func TestCreateAndGetUser(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	userID, err := ds.CreateUser(ctx, NewUser{
		Username:  "MED/22U/0001",
		Password:  "secret123",
		FirstName: "Aisha",
		LastName:  "Bello",
		Email:     "aisha@mau.edu.ng",
		Faculty:   "Faculty of Medicine",
		Level:     "100 Level",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	user, err := ds.GetUserByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user.Username != "MED/22U/0001" {
		t.Errorf("Expected username MED/22U/0001, got %s", user.Username)
	}
	if user.Role != RoleStudent {
		t.Errorf("Expected default role student, got %s", user.Role)
	}
	if user.PasswordHash == "secret123" {
		t.Error("Password stored in plain text")
	}
	if !user.Email.Valid || user.Email.String != "aisha@mau.edu.ng" {
		t.Errorf("Unexpected email %+v", user.Email)
	}
	if !user.LastLogin.IsZero() {
		t.Error("Expected zero last login for new user")
	}

	byName, err := ds.GetUserByUsername(ctx, "MED/22U/0001")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if byName.ID != userID {
		t.Errorf("Expected ID %d, got %d", userID, byName.ID)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	if _, err := ds.CreateUser(ctx, NewUser{Username: "dup", Password: "pw"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if _, err := ds.CreateUser(ctx, NewUser{Username: "dup", Password: "pw"}); err == nil {
		t.Error("Expected error for duplicate username")
	}
}

func TestUsersWithoutEmail(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	// Empty emails are stored as NULL so the UNIQUE constraint allows many
	for _, name := range []string{"a", "b"} {
		if _, err := ds.CreateUser(ctx, NewUser{Username: name, Password: "pw"}); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", name, err)
		}
	}
}

func TestValidateCredentials(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	if _, err := ds.CreateUser(ctx, NewUser{Username: "student", Password: "correct"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"valid", "student", "correct", false},
		{"wrong password", "student", "wrong", true},
		{"unknown user", "nobody", "correct", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := ds.ValidateCredentials(ctx, tt.username, tt.password)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if user.Username != tt.username {
				t.Errorf("Expected %s, got %s", tt.username, user.Username)
			}
		})
	}
}

func TestUpdatePasswordClearsMustChange(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	admin, err := ds.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("Failed to get admin: %v", err)
	}

	if err := ds.UpdatePassword(ctx, admin.ID, "new-password"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}

	updated, err := ds.ValidateCredentials(ctx, "admin", "new-password")
	if err != nil {
		t.Fatalf("Login with new password failed: %v", err)
	}
	if updated.MustChangePassword {
		t.Error("Expected must_change_password to be cleared")
	}
}

func TestUpdateLastLogin(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	userID, err := ds.CreateUser(ctx, NewUser{Username: "u", Password: "pw"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := ds.UpdateLastLogin(ctx, userID); err != nil {
		t.Fatalf("UpdateLastLogin failed: %v", err)
	}

	user, err := ds.GetUserByID(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user.LastLogin.IsZero() {
		t.Error("Expected last login to be set")
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		user User
		want string
	}{
		{User{Username: "x", FirstName: "John", LastName: "Doe"}, "John Doe"},
		{User{Username: "x", FirstName: "John"}, "John"},
		{User{Username: "x", LastName: "Doe"}, "Doe"},
		{User{Username: "CSC/20U/1234"}, "CSC/20U/1234"},
	}
	for _, tt := range tests {
		if got := tt.user.DisplayName(); got != tt.want {
			t.Errorf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}

func TestSessionTokens(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	userID, err := ds.CreateUser(ctx, NewUser{Username: "tokenuser", Password: "pw"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	t.Run("Valid", func(t *testing.T) {
		if err := ds.CreateSessionToken(ctx, "valid-token", userID, time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("CreateSessionToken failed: %v", err)
		}
		st, err := ds.GetSessionToken(ctx, "valid-token")
		if err != nil {
			t.Fatalf("GetSessionToken failed: %v", err)
		}
		if st == nil || st.UserID != userID {
			t.Fatalf("Expected token for user %d, got %+v", userID, st)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		if err := ds.CreateSessionToken(ctx, "expired-token", userID, time.Now().Add(-time.Hour)); err != nil {
			t.Fatalf("CreateSessionToken failed: %v", err)
		}
		st, err := ds.GetSessionToken(ctx, "expired-token")
		if err != nil {
			t.Fatalf("GetSessionToken failed: %v", err)
		}
		if st != nil {
			t.Error("Expected nil for expired token")
		}
	})

	t.Run("Missing", func(t *testing.T) {
		st, err := ds.GetSessionToken(ctx, "no-such-token")
		if err != nil || st != nil {
			t.Errorf("Expected nil, nil; got %+v, %v", st, err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := ds.DeleteSessionToken(ctx, "valid-token"); err != nil {
			t.Fatalf("DeleteSessionToken failed: %v", err)
		}
		st, _ := ds.GetSessionToken(ctx, "valid-token")
		if st != nil {
			t.Error("Expected token to be gone after delete")
		}
	})

	t.Run("CleanupExpired", func(t *testing.T) {
		n, err := ds.CleanupExpiredTokens(ctx)
		if err != nil {
			t.Fatalf("CleanupExpiredTokens failed: %v", err)
		}
		if n != 1 {
			t.Errorf("Expected 1 expired token removed, got %d", n)
		}
	})
}

func TestAccountLockout(t *testing.T) {
	ds, err := NewDataStore(Options{
		DSN:              filepath.Join(t.TempDir(), "lockout.db"),
		LockoutThreshold: 3,
		LockoutDuration:  10 * time.Minute,
		Announce:         io.Discard,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer ds.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := ds.RecordFailedLogin(ctx, "victim"); err != nil {
			t.Fatalf("RecordFailedLogin failed: %v", err)
		}
	}
	if locked, _ := ds.IsAccountLocked(ctx, "victim"); locked {
		t.Error("Account locked below threshold")
	}

	if err := ds.RecordFailedLogin(ctx, "victim"); err != nil {
		t.Fatalf("RecordFailedLogin failed: %v", err)
	}
	locked, until := ds.IsAccountLocked(ctx, "victim")
	if !locked {
		t.Fatal("Expected account to be locked at threshold")
	}
	if until.Before(time.Now().Add(9 * time.Minute)) {
		t.Errorf("Lockout ends too early: %v", until)
	}

	if locked, _ := ds.IsAccountLocked(ctx, "bystander"); locked {
		t.Error("Lockout leaked to another username")
	}

	if err := ds.ClearFailedLogins(ctx, "victim"); err != nil {
		t.Fatalf("ClearFailedLogins failed: %v", err)
	}
	if locked, _ := ds.IsAccountLocked(ctx, "victim"); locked {
		t.Error("Expected lockout cleared")
	}
}
