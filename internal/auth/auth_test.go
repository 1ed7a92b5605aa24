package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockStore implements the Store interface for testing
type MockStore struct {
	mu           sync.Mutex
	users        map[string]*User
	tokens       map[string]*SessionToken
	failedLogins map[string]int
	lockedUntil  map[string]time.Time
	nextID       int64
}

func NewMockStore() *MockStore {
	return &MockStore{
		users:        make(map[string]*User),
		tokens:       make(map[string]*SessionToken),
		failedLogins: make(map[string]int),
		lockedUntil:  make(map[string]time.Time),
		nextID:       100,
	}
}

func (m *MockStore) addUser(t *testing.T, id int64, username, password, role string) {
	t.Helper()
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	m.users[username] = &User{ID: id, Username: username, PasswordHash: hash, Role: role}
}

func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[username]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (m *MockStore) GetUserByID(ctx context.Context, userID int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, errors.New("user not found")
}

func (m *MockStore) CreateUser(ctx context.Context, r Registration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash, err := hashPassword(r.Password)
	if err != nil {
		return 0, err
	}
	m.nextID++
	m.users[r.StudentID] = &User{
		ID:           m.nextID,
		Username:     r.StudentID,
		PasswordHash: hash,
		Role:         RoleStudent,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		Faculty:      r.Faculty,
		Department:   r.Department,
		Level:        r.Level,
	}
	return m.nextID, nil
}

func (m *MockStore) UpdateLastLogin(ctx context.Context, userID int64) error {
	return nil
}

func (m *MockStore) CreateSessionToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = &SessionToken{Token: token, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (m *MockStore) GetSessionToken(ctx context.Context, token string) (*SessionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.tokens[token]
	if !ok || time.Now().After(st.ExpiresAt) {
		return nil, nil
	}
	return st, nil
}

func (m *MockStore) DeleteSessionToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

func (m *MockStore) IsAccountLocked(ctx context.Context, username string) (bool, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.lockedUntil[username]
	if !ok || time.Now().After(until) {
		return false, time.Time{}
	}
	return true, until
}

func (m *MockStore) RecordFailedLogin(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedLogins[username]++
	if m.failedLogins[username] >= 5 {
		m.lockedUntil[username] = time.Now().Add(15 * time.Minute)
	}
	return nil
}

func (m *MockStore) ClearFailedLogins(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failedLogins, username)
	delete(m.lockedUntil, username)
	return nil
}

func TestLogin(t *testing.T) {
	store := NewMockStore()
	store.addUser(t, 1, "CSC/20U/1234", "password", RoleStudent)
	auth := NewUserpassAuth(store, 7, nil)
	ctx := context.Background()

	t.Run("ValidCredentials", func(t *testing.T) {
		session, err := auth.Login(ctx, "CSC/20U/1234", "password")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if session.Token == "" {
			t.Fatal("Expected non-empty token")
		}
		// 32 bytes base64 encoded
		if len(session.Token) != 44 {
			t.Errorf("Expected token length 44, got %d", len(session.Token))
		}
		if session.User.ID != 1 {
			t.Errorf("Expected user 1, got %d", session.User.ID)
		}
		if session.ExpiresAt.Before(time.Now().Add(6 * 24 * time.Hour)) {
			t.Errorf("Expiry too early: %v", session.ExpiresAt)
		}
		if _, ok := store.tokens[session.Token]; !ok {
			t.Error("Token not stored")
		}
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := auth.Login(ctx, "CSC/20U/1234", "wrong")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
		if store.failedLogins["CSC/20U/1234"] != 1 {
			t.Errorf("Expected 1 failed login, got %d", store.failedLogins["CSC/20U/1234"])
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, err := auth.Login(ctx, "nobody", "password")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("SuccessClearsFailures", func(t *testing.T) {
		if _, err := auth.Login(ctx, "CSC/20U/1234", "password"); err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if store.failedLogins["CSC/20U/1234"] != 0 {
			t.Error("Expected failed logins cleared")
		}
	})
}

func TestLoginLockout(t *testing.T) {
	store := NewMockStore()
	store.addUser(t, 1, "victim", "password", RoleStudent)
	auth := NewUserpassAuth(store, 7, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		auth.Login(ctx, "victim", "wrong")
	}

	_, err := auth.Login(ctx, "victim", "password")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("Expected ErrAccountLocked, got %v", err)
	}
	if !strings.Contains(err.Error(), "until") {
		t.Errorf("Expected lockout end in message, got %q", err.Error())
	}
}

func TestLogoutAndValidate(t *testing.T) {
	store := NewMockStore()
	store.addUser(t, 7, "user", "password", RoleStudent)
	auth := NewUserpassAuth(store, 1, nil)
	ctx := context.Background()

	session, err := auth.Login(ctx, "user", "password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	userID, err := auth.ValidateToken(ctx, session.Token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if userID != 7 {
		t.Errorf("Expected user 7, got %d", userID)
	}

	if err := auth.Logout(ctx, session.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := auth.ValidateToken(ctx, session.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken after logout, got %v", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	store := NewMockStore()
	auth := NewUserpassAuth(store, 7, nil)
	store.tokens["old"] = &SessionToken{Token: "old", UserID: 1, ExpiresAt: time.Now().Add(-time.Minute)}

	if _, err := auth.ValidateToken(context.Background(), "old"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshToken(t *testing.T) {
	store := NewMockStore()
	store.addUser(t, 3, "user", "password", RoleStudent)
	auth := NewUserpassAuth(store, 7, nil)
	ctx := context.Background()

	session, err := auth.Login(ctx, "user", "password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	refreshed, err := auth.RefreshToken(ctx, session.Token)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if refreshed.Token == session.Token {
		t.Error("Expected a new token")
	}
	if _, err := auth.ValidateToken(ctx, session.Token); err == nil {
		t.Error("Old token should be revoked")
	}
	if id, err := auth.ValidateToken(ctx, refreshed.Token); err != nil || id != 3 {
		t.Errorf("New token invalid: id=%d err=%v", id, err)
	}
}

func TestRegister(t *testing.T) {
	store := NewMockStore()
	auth := NewUserpassAuth(store, 7, nil)
	ctx := context.Background()

	user, err := auth.Register(ctx, Registration{
		StudentID:  " csc/23u/0042 ",
		Password:   "secret1",
		FirstName:  "Musa",
		LastName:   "Ibrahim",
		Email:      "musa@mau.edu.ng",
		Faculty:    "Faculty of Computing",
		Department: "Computer Science",
		Level:      "100 Level",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Username != "CSC/23U/0042" {
		t.Errorf("Expected normalised student ID, got %q", user.Username)
	}
	if user.IsAdmin() {
		t.Error("Registered user must not be admin")
	}
	if user.DisplayName() != "Musa Ibrahim" {
		t.Errorf("Unexpected display name %q", user.DisplayName())
	}

	if _, err := auth.Login(ctx, "CSC/23U/0042", "secret1"); err != nil {
		t.Errorf("Login after register failed: %v", err)
	}

	_, err = auth.Register(ctx, Registration{StudentID: "CSC/23U/0042", Password: "another", FirstName: "A", LastName: "B"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("Expected ErrUsernameTaken, got %v", err)
	}

	_, err = auth.Register(ctx, Registration{StudentID: "CSC/23U/0043", Password: "123", FirstName: "A", LastName: "B"})
	if !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("Expected ErrInvalidRegistration, got %v", err)
	}
}

func TestRegistrationValidate(t *testing.T) {
	tests := []struct {
		name    string
		reg     Registration
		wantErr bool
	}{
		{"valid", Registration{StudentID: "ENG/21U/5678", Password: "secret1", FirstName: "Jane", LastName: "Smith"}, false},
		{"missing id", Registration{Password: "secret1", FirstName: "Jane", LastName: "Smith"}, true},
		{"reserved id", Registration{StudentID: "Admin", Password: "secret1", FirstName: "Jane", LastName: "Smith"}, true},
		{"short password", Registration{StudentID: "X", Password: "123", FirstName: "Jane", LastName: "Smith"}, true},
		{"missing name", Registration{StudentID: "X", Password: "secret1", FirstName: "Jane"}, true},
		{"bad email", Registration{StudentID: "X", Password: "secret1", FirstName: "Jane", LastName: "Smith", Email: "not-an-email"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateSecureTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := generateSecureToken(32)
		if err != nil {
			t.Fatalf("generateSecureToken failed: %v", err)
		}
		if seen[token] {
			t.Fatal("Duplicate token generated")
		}
		seen[token] = true
	}
}
