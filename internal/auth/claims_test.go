package auth

import (
	"errors"
	"testing"
	"time"
)

func testSigner() *Signer {
	return newSigner([]byte("test-secret-key-for-jwt-signing"), "session-1", time.Hour)
}

func TestIssueAndParseToken(t *testing.T) {
	s := testSigner()

	token, err := s.IssueToken("shell", RoleShell)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("IssueToken() returned empty token")
	}

	claims, err := s.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if claims.Subject != "shell" {
		t.Errorf("Subject = %q, want shell", claims.Subject)
	}
	if claims.Role != RoleShell {
		t.Errorf("Role = %q, want %q", claims.Role, RoleShell)
	}
	if claims.SessionID != "session-1" {
		t.Errorf("SessionID = %q, want session-1", claims.SessionID)
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
}

func TestIssueToken_UniqueIDs(t *testing.T) {
	s := testSigner()

	a, _ := s.IssueToken("shell", RoleShell) //nolint:errcheck // checked via parse below
	b, _ := s.IssueToken("shell", RoleShell) //nolint:errcheck // checked via parse below

	ca, err := s.ParseToken(a)
	if err != nil {
		t.Fatalf("ParseToken(a) error = %v", err)
	}
	cb, err := s.ParseToken(b)
	if err != nil {
		t.Fatalf("ParseToken(b) error = %v", err)
	}
	if ca.ID == cb.ID {
		t.Error("two tokens share a JTI")
	}
}

func TestIssueToken_InvalidRole(t *testing.T) {
	_, err := testSigner().IssueToken("x", Role("owner"))
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("IssueToken() error = %v, want ErrInvalidRole", err)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	s := testSigner()
	valid, err := s.IssueToken("shell", RoleShell)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	otherSecret := newSigner([]byte("another-secret"), "session-1", time.Hour)
	otherSession := newSigner([]byte("test-secret-key-for-jwt-signing"), "session-2", time.Hour)

	expired := testSigner()
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.IssueToken("shell", RoleShell)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name   string
		signer *Signer
		token  string
	}{
		{"empty", s, ""},
		{"garbage", s, "not-a-valid-jwt"},
		{"malformed", s, "abc.def"},
		{"wrong secret", otherSecret, valid},
		{"other session", otherSession, valid},
		{"expired", s, expiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.signer.ParseToken(tt.token)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestNewSigner_RandomSecret(t *testing.T) {
	a, err := NewSigner("s", 0)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	b, err := NewSigner("s", 0)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	token, err := a.IssueToken("shell", RoleShell)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := b.ParseToken(token); err == nil {
		t.Error("token from one signer validated with another")
	}

	claims, err := a.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	want := time.Now().Add(DefaultTokenTTL)
	if d := claims.ExpiresAt.Time.Sub(want); d < -time.Minute || d > time.Minute {
		t.Errorf("default TTL off by %v", d)
	}
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleShell, PermBackendRead, true},
		{RoleShell, PermLaunchesRead, true},
		{RoleShell, PermMetricsRead, true},
		{RoleMonitor, PermMetricsRead, true},
		{RoleMonitor, PermEventsStream, true},
		{RoleMonitor, PermBackendRead, false},
		{RoleMonitor, PermLaunchesRead, false},
		{Role("unknown"), PermMetricsRead, false},
	}

	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}
