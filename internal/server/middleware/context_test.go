package middleware

import (
	"context"
	"testing"
)

func TestWithIdentity_SetsAllValues(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "session-1")

	userID, ok := GetUserID(ctx)
	if !ok {
		t.Fatal("GetUserID should return true")
	}
	if userID != "user-1" {
		t.Errorf("user_id = %q, want %q", userID, "user-1")
	}

	sessionID, ok := GetSessionID(ctx)
	if !ok {
		t.Fatal("GetSessionID should return true")
	}
	if sessionID != "session-1" {
		t.Errorf("session_id = %q, want %q", sessionID, "session-1")
	}
}

func TestGetUserID_ReturnsFalseWhenNotSet(t *testing.T) {
	userID, ok := GetUserID(context.Background())
	if ok {
		t.Error("GetUserID should return false when not set")
	}
	if userID != "" {
		t.Errorf("user_id = %q, want empty string", userID)
	}
}

func TestGetSessionID_ReturnsFalseWhenNotSet(t *testing.T) {
	if _, ok := GetSessionID(context.Background()); ok {
		t.Error("GetSessionID should return false when not set")
	}
}

func TestGetClientIP(t *testing.T) {
	if got := GetClientIP(context.Background()); got != "unknown" {
		t.Errorf("GetClientIP(empty) = %q, want unknown", got)
	}
	ctx := WithClientIP(context.Background(), "10.0.0.7")
	if got := GetClientIP(ctx); got != "10.0.0.7" {
		t.Errorf("GetClientIP = %q, want 10.0.0.7", got)
	}
}
