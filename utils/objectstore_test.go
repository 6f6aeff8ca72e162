package utils

import "testing"

func TestPublicURL(t *testing.T) {
	tests := []struct {
		base string
		key  string
		want string
	}{
		{"https://cdn.example.com", "verification/p1/doc", "https://cdn.example.com/verification/p1/doc"},
		{"https://cdn.example.com/", "verification/p1/doc", "https://cdn.example.com/verification/p1/doc"},
		{"https://cdn.example.com", "/verification/p1/doc", "https://cdn.example.com/verification/p1/doc"},
	}
	for _, tt := range tests {
		cdnBaseURL = tt.base
		if got := publicURL(tt.key); got != tt.want {
			t.Fatalf("publicURL(%q) with base %q = %q, want %q", tt.key, tt.base, got, tt.want)
		}
	}
}
