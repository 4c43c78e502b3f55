package api

import (
	"testing"
)

func TestNewResolutionID(t *testing.T) {
	id := NewResolutionID()
	if !ValidateResolutionID(id) {
		t.Errorf("NewResolutionID() = %q, want valid resolution ID", id)
	}
}

func TestNewAttemptID(t *testing.T) {
	id := NewAttemptID()
	if !ValidateAttemptID(id) {
		t.Errorf("NewAttemptID() = %q, want valid attempt ID", id)
	}
}

func TestValidateResolutionID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "res_abcdefghijklmnopqrstuvwx", true},
		{"valid mixed case", "res_AbCdEfGhIjKlMnOpQrStUvWx", true},
		{"valid digits", "res_123456789012345678901234", true},
		{"wrong prefix", "att_abcdefghijklmnopqrstuvwx", false},
		{"too short", "res_abc", false},
		{"too long", "res_abcdefghijklmnopqrstuvwxy", false},
		{"special chars", "res_abcdefghijklmnopqrstuv!@", false},
		{"empty", "", false},
		{"prefix only", "res_", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateResolutionID(tt.id); got != tt.want {
				t.Errorf("ValidateResolutionID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		id := NewAttemptID()
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}
