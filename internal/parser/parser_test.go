package parser

import (
	"errors"
	"reflect"
	"testing"

	"github.com/starford/vaultvec/internal/apperr"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags: [go, \"rag\"]\n---\n# Heading\nBody text.\n")
	r := Parse(input, "notes/hello.md")
	if r.Diagnostic != nil {
		t.Fatalf("unexpected diagnostic: %v", r.Diagnostic)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if !reflect.DeepEqual(r.Tags, []string{"go", "rag"}) {
		t.Errorf("tags = %v, want [go rag]", r.Tags)
	}
	if r.Body != "# Heading\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoTypeCoercion(t *testing.T) {
	input := []byte("---\ncount: 42\ndraft: true\nquoted: 'single'\nrating: \"4.5\"\n---\nbody")
	r := Parse(input, "a.md")
	want := map[string]any{
		"count":  "42",
		"draft":  "true",
		"quoted": "single",
		"rating": "4.5",
	}
	if !reflect.DeepEqual(r.Frontmatter, want) {
		t.Errorf("frontmatter = %#v", r.Frontmatter)
	}
}

func TestParse_DashList(t *testing.T) {
	input := []byte("---\ntitle: Lists\ntags:\n  - one\n  - \"two\"\naliases:\n---\nbody")
	r := Parse(input, "a.md")
	if r.Diagnostic != nil {
		t.Fatalf("unexpected diagnostic: %v", r.Diagnostic)
	}
	if !reflect.DeepEqual(r.Frontmatter["tags"], []string{"one", "two"}) {
		t.Errorf("tags = %#v", r.Frontmatter["tags"])
	}
	if r.Frontmatter["aliases"] != "" {
		t.Errorf("aliases = %#v, want empty string", r.Frontmatter["aliases"])
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r := Parse(input, "folder/My Note.md")
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Diagnostic != nil {
		t.Errorf("unexpected diagnostic: %v", r.Diagnostic)
	}
	if r.Title != "My Note" {
		t.Errorf("title = %q, want filename stem", r.Title)
	}
	if r.Body != string(input) {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_MalformedFallback(t *testing.T) {
	input := []byte("---\ntitle: Broken\nthis line has no colon\n---\nBody #kept\n")
	r := Parse(input, "broken.md")
	if !errors.Is(r.Diagnostic, apperr.ErrParseWarning) {
		t.Fatalf("diagnostic = %v, want ErrParseWarning", r.Diagnostic)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on malformed block")
	}
	if r.Body != string(input) {
		t.Errorf("body should be the original text, got %q", r.Body)
	}
	if r.Title != "broken" {
		t.Errorf("title = %q, want stem fallback", r.Title)
	}
	if !reflect.DeepEqual(r.Tags, []string{"kept"}) {
		t.Errorf("tags = %v", r.Tags)
	}
}

func TestParse_Unterminated(t *testing.T) {
	input := []byte("---\ntitle: Never closed\n")
	r := Parse(input, "x.md")
	if !errors.Is(r.Diagnostic, apperr.ErrParseWarning) {
		t.Fatalf("diagnostic = %v", r.Diagnostic)
	}
	if r.Body != string(input) {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_CRLF(t *testing.T) {
	input := []byte("---\r\ntitle: Windows\r\n---\r\nbody\r\n")
	r := Parse(input, "w.md")
	if r.Title != "Windows" {
		t.Errorf("title = %q", r.Title)
	}
	if r.Body != "body\r\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_UntitledFallback(t *testing.T) {
	r := Parse([]byte("text"), "")
	if r.Title != "Untitled" {
		t.Errorf("title = %q, want Untitled", r.Title)
	}
}

func TestExtractTags_ScalarAndInline(t *testing.T) {
	fm := map[string]any{"tags": "project"}
	body := "Working on #project and #go-lang.\nIssue #123 counts too. Also #Go and #go-lang again."
	got := extractTags(body, fm)
	want := []string{"project", "go-lang", "123", "Go"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestExtractTags_AnyHashWord(t *testing.T) {
	got := extractTags("word#glued and #2024 and (#paren) and #ok, #área/sub", nil)
	want := []string{"glued", "2024", "paren", "ok", "área"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestExtractTags_HeadingIsNotTag(t *testing.T) {
	got := extractTags("# Heading\n## Sub\ntext", nil)
	if len(got) != 0 {
		t.Errorf("tags = %v, want none", got)
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		fm   map[string]any
		path string
		want string
	}{
		{map[string]any{"title": "  From FM "}, "a/b.md", "From FM"},
		{map[string]any{"title": ""}, "a/b.md", "b"},
		{map[string]any{"title": []string{"x"}}, "deep/dir/note.txt", "note"},
		{nil, "", "Untitled"},
		{nil, ".md", "Untitled"},
	}
	for _, tt := range tests {
		if got := deriveTitle(tt.fm, tt.path); got != tt.want {
			t.Errorf("deriveTitle(%v, %q) = %q, want %q", tt.fm, tt.path, got, tt.want)
		}
	}
}
