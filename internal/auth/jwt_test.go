package auth

import (
	"testing"
	"time"

	"crm-softphone/internal/config"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "crm-softphone",
		JWTAudience:     "crm-api",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 720 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManager_RequiresSecret(t *testing.T) {
	if _, err := NewManager(config.AuthConfig{}); err == nil {
		t.Fatalf("expected error for missing secret")
	}
}

func TestIssueAndVerify(t *testing.T) {
	m := testManager(t)
	now := time.Now()

	pair, err := m.IssuePair(now, "user-1", "ws-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.UserID != "user-1" || claims.WorkspaceID != "ws-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := m.Verify(pair.RefreshToken, TokenTypeRefresh, now); err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
}

func TestVerify_TokenTypeMismatch(t *testing.T) {
	m := testManager(t)
	now := time.Now()

	pair, err := m.IssuePair(now, "user-1", "ws-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(pair.RefreshToken, TokenTypeAccess, now); err == nil {
		t.Fatalf("refresh token must not pass as access token")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	m := testManager(t)
	now := time.Now()

	pair, err := m.IssuePair(now, "user-1", "ws-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other, err := NewManager(config.AuthConfig{
		JWTSecret:      "different-secret",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := other.Verify(pair.AccessToken, TokenTypeAccess, now); err == nil {
		t.Fatalf("token signed with another secret must fail")
	}
}

func TestVerify_Expired(t *testing.T) {
	m := testManager(t)
	issued := time.Now().Add(-2 * time.Hour)

	pair, err := m.IssuePair(issued, "user-1", "ws-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, time.Now()); err == nil {
		t.Fatalf("expired access token must fail")
	}
}

func TestVerify_MissingWorkspace(t *testing.T) {
	m := testManager(t)
	now := time.Now()

	pair, err := m.IssuePair(now, "user-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now); err == nil {
		t.Fatalf("token without workspace must fail")
	}
}
