package security

import (
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := NewAccessToken("acct-1", "agent", "approved", testSecret, time.Hour, now)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "acct-1" {
		t.Fatalf("expected subject acct-1, got %q", claims.Subject)
	}
	if claims.Role != "agent" || claims.AgentStatus != "approved" {
		t.Fatalf("unexpected claims: role=%q agent_status=%q", claims.Role, claims.AgentStatus)
	}
	if claims.IssuedAt == nil {
		t.Fatal("expected issued-at claim")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewAccessToken("acct-1", "regular", "", testSecret, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := ParseToken(token, []byte("other-secret")); err == nil {
		t.Fatal("expected rejection with wrong secret")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := NewAccessToken("acct-1", "regular", "", testSecret, time.Hour, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := ParseToken(token, testSecret); err == nil {
		t.Fatal("expected rejection of expired token")
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc.def.ghi", "abc.def.ghi"},
		{"Basic dXNlcjpwYXNz", ""},
		{"abc.def.ghi", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractBearer(tt.header); got != tt.want {
			t.Fatalf("ExtractBearer(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
