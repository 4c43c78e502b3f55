package apikey

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/schach/pkg/auth"
)

func newAuthenticator() *Authenticator {
	return New([]Entry{
		{Key: "sk-alice", Identity: auth.Identity{Subject: "alice", TenantID: "org-1", ServiceTier: "premium"}},
		{Key: "sk-bob", Identity: auth.Identity{Subject: "bob"}},
		{Key: "", Identity: auth.Identity{Subject: "nobody"}},
	})
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		want        auth.Decision
		wantSubject string
	}{
		{"valid alice", "Bearer sk-alice", auth.Yes, "alice"},
		{"valid bob", "Bearer sk-bob", auth.Yes, "bob"},
		{"lowercase scheme", "bearer sk-bob", auth.Yes, "bob"},
		{"unknown key", "Bearer sk-mallory", auth.No, ""},
		{"empty token", "Bearer ", auth.No, ""},
		{"no header", "", auth.Abstain, ""},
		{"basic scheme", "Basic YWxpY2U6c2VjcmV0", auth.Abstain, ""},
	}

	a := newAuthenticator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/v1/moves", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			res := a.Authenticate(context.Background(), r)
			if res.Decision != tt.want {
				t.Fatalf("Decision = %v, want %v", res.Decision, tt.want)
			}
			if tt.want == auth.Yes && res.Identity.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", res.Identity.Subject, tt.wantSubject)
			}
			if tt.want == auth.No && res.Err == nil {
				t.Error("No vote without error")
			}
		})
	}
}

func TestEmptyKeyNeverMatches(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/moves", nil)
	r.Header.Set("Authorization", "Bearer  ")
	if res := newAuthenticator().Authenticate(context.Background(), r); res.Decision == auth.Yes {
		t.Errorf("blank token authenticated as %q", res.Identity.Subject)
	}
}

func TestIdentityIsCopied(t *testing.T) {
	a := newAuthenticator()
	r := httptest.NewRequest("POST", "/v1/moves", nil)
	r.Header.Set("Authorization", "Bearer sk-alice")

	first := a.Authenticate(context.Background(), r)
	first.Identity.Subject = "tampered"

	second := a.Authenticate(context.Background(), r)
	if second.Identity.Subject != "alice" {
		t.Errorf("stored identity was mutated: %q", second.Identity.Subject)
	}
	if second.Identity.TenantID != "org-1" || second.Identity.ServiceTier != "premium" {
		t.Errorf("identity = %+v", second.Identity)
	}
}
