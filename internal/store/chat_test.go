package store

import (
	"context"
	"errors"
	"testing"
)

func TestChatSessions(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	alice, err := ds.CreateUser(ctx, NewUser{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	bob, err := ds.CreateUser(ctx, NewUser{Username: "bob", Password: "pw"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	sessionID, err := ds.CreateChatSession(ctx, alice, "School fees")
	if err != nil {
		t.Fatalf("CreateChatSession failed: %v", err)
	}
	if sessionID == "" {
		t.Fatal("Expected session ID")
	}

	owner, err := ds.GetSessionOwner(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetSessionOwner failed: %v", err)
	}
	if owner != alice {
		t.Errorf("Expected owner %d, got %d", alice, owner)
	}

	if err := ds.SaveChatMessage(ctx, sessionID, "How much are school fees?", true, "", 0); err != nil {
		t.Fatalf("SaveChatMessage failed: %v", err)
	}
	if err := ds.SaveChatMessage(ctx, sessionID, "Fees vary by faculty.", false, "fees", 0.9); err != nil {
		t.Fatalf("SaveChatMessage failed: %v", err)
	}

	messages, err := ds.GetSessionMessages(ctx, alice, sessionID)
	if err != nil {
		t.Fatalf("GetSessionMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if !messages[0].IsUser || messages[1].IsUser {
		t.Error("Messages out of order")
	}
	if messages[1].Intent != "fees" || messages[1].Confidence != 0.9 {
		t.Errorf("Unexpected assistant metadata: %+v", messages[1])
	}

	sessions, err := ds.GetUserSessions(ctx, alice)
	if err != nil {
		t.Fatalf("GetUserSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].MessageCount != 2 {
		t.Fatalf("Unexpected sessions: %+v", sessions)
	}

	if _, err := ds.GetSessionMessages(ctx, bob, sessionID); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied for another user, got %v", err)
	}

	bobSessions, err := ds.GetUserSessions(ctx, bob)
	if err != nil {
		t.Fatalf("GetUserSessions failed: %v", err)
	}
	if len(bobSessions) != 0 {
		t.Errorf("Expected no sessions for bob, got %d", len(bobSessions))
	}
}

func TestGetSessionOwnerMissing(t *testing.T) {
	ds := newTestStore(t)

	_, err := ds.GetSessionOwner(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
