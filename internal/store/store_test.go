package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// newTestStore opens a fresh sqlite database in a temp dir
func newTestStore(t *testing.T) DataStore {
	t.Helper()
	ds, err := NewDataStore(Options{
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		Announce: io.Discard,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { ds.Close() })
	return ds
}

func TestNewDataStore(t *testing.T) {
	ds := newTestStore(t)

	if err := ds.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestNewDataStoreUnsupportedDriver(t *testing.T) {
	_, err := NewDataStore(Options{Driver: "oracle", DSN: "x"})
	if err == nil {
		t.Fatal("Expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported database type") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestDefaultAdminCreatedOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin.db")

	var out bytes.Buffer
	ds, err := NewDataStore(Options{DSN: path, Announce: &out})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if !strings.Contains(out.String(), "DEFAULT ADMIN ACCOUNT CREATED") {
		t.Errorf("Expected admin banner, got %q", out.String())
	}

	admin, err := ds.GetUserByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("Failed to get admin: %v", err)
	}
	if !admin.IsAdmin() {
		t.Error("Expected admin role")
	}
	if !admin.MustChangePassword {
		t.Error("Expected default admin to require a password change")
	}
	ds.Close()

	// Reopening the same database must not create a second admin
	out.Reset()
	ds, err = NewDataStore(Options{DSN: path, Announce: &out})
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer ds.Close()
	if out.Len() != 0 {
		t.Errorf("Expected no banner on reopen, got %q", out.String())
	}

	users, err := ds.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("Expected 1 user, got %d", len(users))
	}
}

func TestSeedDemoStudents(t *testing.T) {
	ds, err := NewDataStore(Options{
		DSN:              filepath.Join(t.TempDir(), "demo.db"),
		SeedDemoStudents: true,
		Announce:         io.Discard,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer ds.Close()

	ctx := context.Background()
	user, err := ds.ValidateCredentials(ctx, "CSC/20U/1234", "password")
	if err != nil {
		t.Fatalf("Demo student login failed: %v", err)
	}
	if user.DisplayName() != "John Doe" {
		t.Errorf("Expected John Doe, got %q", user.DisplayName())
	}
	if user.Faculty != "Faculty of Computing" {
		t.Errorf("Unexpected faculty %q", user.Faculty)
	}
}

func TestAuditLog(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	admin, err := ds.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("Failed to get admin: %v", err)
	}

	ops := []string{"login", "answer_question", "add_knowledge"}
	for _, op := range ops {
		if err := ds.LogAudit(ctx, admin.ID, admin.Username, op, "details for "+op); err != nil {
			t.Fatalf("LogAudit failed: %v", err)
		}
	}

	entries, err := ds.GetAuditLog(ctx, 2)
	if err != nil {
		t.Fatalf("GetAuditLog failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].OperationType != "add_knowledge" {
		t.Errorf("Expected newest entry first, got %s", entries[0].OperationType)
	}
	if entries[0].Username != "admin" {
		t.Errorf("Expected username admin, got %s", entries[0].Username)
	}
}

func TestKeywordHelpers(t *testing.T) {
	got := splitKeywords(joinKeywords([]string{"hostel", "accommodation"}))
	if len(got) != 2 || got[0] != "hostel" || got[1] != "accommodation" {
		t.Errorf("Unexpected keywords: %v", got)
	}
	if splitKeywords("") != nil {
		t.Error("Expected nil for empty keywords")
	}
	if got := splitKeywords(" a, ,b "); len(got) != 2 {
		t.Errorf("Expected blanks dropped, got %v", got)
	}
}

func TestPostgresRebind(t *testing.T) {
	got := postgresDialect.rebind("SELECT * FROM t WHERE a = ? AND b = ?")
	want := "SELECT * FROM t WHERE a = $1 AND b = $2"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
	if sqliteDialect.rebind("a = ?") != "a = ?" {
		t.Error("sqlite rebind should be a no-op")
	}
}

func TestErrNotFoundWrapped(t *testing.T) {
	ds := newTestStore(t)
	_, err := ds.GetUserByID(context.Background(), 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPurgeFailedLogins(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := ds.RecordFailedLogin(ctx, "someone"); err != nil {
			t.Fatalf("RecordFailedLogin failed: %v", err)
		}
	}

	n, err := ds.PurgeFailedLogins(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("PurgeFailedLogins failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 purged, got %d", n)
	}
}
