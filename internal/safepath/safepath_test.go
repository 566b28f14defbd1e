package safepath

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/vaultvec/internal/apperr"
)

func TestSanitize_Normalizes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"notes/a.md", "notes/a.md"},
		{"/notes/a.md", "notes/a.md"},
		{"./notes/a.md", "notes/a.md"},
		{"notes//deep///a.md", "notes/deep/a.md"},
		{"notes/dir/", "notes/dir"},
		{"../../etc/passwd", "etc/passwd"},
		{"notes/../secret.md", "notes/secret.md"},
		{"~/notes/a.md", "notes/a.md"},
		{"~~/.hidden/a.md", "hidden/a.md"},
		{"a\x00b.md", "ab.md"},
		{".obsidian/app.md", "obsidian/app.md"},
		{"Ünïcode/ノート.md", "Ünïcode/ノート.md"},
	}
	for _, tt := range tests {
		got, err := Sanitize(tt.in)
		if err != nil {
			t.Errorf("Sanitize(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitize_Rejects(t *testing.T) {
	tests := []string{
		"",
		"..",
		"/",
		"~",
		"~/",
		"notes/a<b>.md",
		"notes/a:b.md",
		`notes\a.md`,
		"notes/a|b.md",
		"notes/a?.md",
		"notes/*.md",
		`notes/"quoted".md`,
		"notes/tab\there.md",
		"notes/bell\x07.md",
		strings.Repeat("a", MaxLength+1),
	}
	for _, in := range tests {
		_, err := Sanitize(in)
		if err == nil {
			t.Errorf("Sanitize(%q) expected error", in)
			continue
		}
		if !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("Sanitize(%q) error = %v, want ErrInvalidPath", in, err)
		}
	}
}

func TestSanitize_MaxLengthAccepted(t *testing.T) {
	in := strings.Repeat("a", MaxLength)
	got, err := Sanitize(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != in {
		t.Errorf("got %q", got)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"notes/a.md",
		"../../a/../b.md",
		"....//x/./y.md",
		"~/~/.a/b/",
		"a/.../b",
		"///a//b//",
		".~./x",
		"x/~/y",
		"a\x00/../b",
	}
	for _, in := range inputs {
		once, err := Sanitize(in)
		if err != nil {
			continue
		}
		twice, err := Sanitize(once)
		if err != nil {
			t.Errorf("Sanitize(%q) second pass error: %v", once, err)
			continue
		}
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSanitize_NoTraversalSurvives(t *testing.T) {
	inputs := []string{
		"../a.md",
		"a/../../b.md",
		"..../a.md",
		"a/..%2f/b.md",
		".../.../a.md",
	}
	for _, in := range inputs {
		got, err := Sanitize(in)
		if err != nil {
			continue
		}
		if strings.Contains(got, "..") {
			t.Errorf("Sanitize(%q) = %q still contains ..", in, got)
		}
		if strings.HasPrefix(got, "/") || strings.HasPrefix(got, "~") || strings.HasPrefix(got, ".") {
			t.Errorf("Sanitize(%q) = %q starts with a blocked prefix", in, got)
		}
	}
}
