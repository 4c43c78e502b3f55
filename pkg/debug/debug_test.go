package debug

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func withCategories(t *testing.T, s string) {
	t.Helper()
	orig := categories.Load()
	setCategories(s)
	t.Cleanup(func() { categories.Store(orig) })
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "transport", map[string]bool{"transport": true}},
		{"multiple", "transport,retry", map[string]bool{"transport": true, "retry": true}},
		{"with spaces", " extract , engine ", map[string]bool{"extract": true, "engine": true}},
		{"uppercase normalized", "TRANSPORT,Retry", map[string]bool{"transport": true, "retry": true}},
		{"empty segments", "transport,,retry", map[string]bool{"transport": true, "retry": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseCategories(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	withCategories(t, "transport,retry")

	if !Enabled("transport") {
		t.Error("transport should be enabled")
	}
	if Enabled("extract") {
		t.Error("extract should not be enabled")
	}
}

func TestEnabledAll(t *testing.T) {
	withCategories(t, "all")

	for _, c := range []string{"providers", "game", "anything"} {
		if !Enabled(c) {
			t.Errorf("%s should be enabled via 'all'", c)
		}
	}
}

func TestCategoriesSorted(t *testing.T) {
	withCategories(t, "retry,engine,extract")

	want := []string{"engine", "extract", "retry"}
	if got := Categories(); !reflect.DeepEqual(got, want) {
		t.Errorf("Categories() = %v, want %v", got, want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q", got)
	}
	if got := Truncate("this is a long string", 10); got != "this is a ..." {
		t.Errorf("Truncate long = %q", got)
	}
	if got := Truncate("♞♞♞♞", 2); got != "♞♞..." {
		t.Errorf("Truncate runes = %q", got)
	}
}

func TestInitWritesJSON(t *testing.T) {
	t.Setenv("SCHACH_DEBUG", "")
	t.Setenv("SCHACH_LOG_LEVEL", "")
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })
	withCategories(t, "")

	var buf bytes.Buffer
	Init(Options{Categories: "engine", Level: "debug", Format: "json", Output: &buf})

	Log("engine", "attempt", "n", 1)
	Log("transport", "hidden")

	out := buf.String()
	if !strings.Contains(out, `"debug":"engine"`) {
		t.Errorf("expected engine record in output, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("disabled category leaked into output: %q", out)
	}
}
