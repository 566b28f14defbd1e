package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/starford/vaultvec/internal/apperr"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func writeFile(t *testing.T, s *FS, rel, content string) {
	t.Helper()
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadDocument(t *testing.T) {
	s := tempVault(t)
	writeFile(t, s, "note.md", "# Hello\nWorld\n")

	doc, err := s.ReadDocument(context.Background(), "note.md")
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if string(doc.Data) != "# Hello\nWorld\n" {
		t.Errorf("content mismatch: got %q", doc.Data)
	}
	if doc.ModifiedAt.IsZero() || doc.CreatedAt.IsZero() {
		t.Errorf("timestamps not set: %+v", doc)
	}
	if time.Since(doc.ModifiedAt) > time.Minute {
		t.Errorf("modifiedAt too old: %v", doc.ModifiedAt)
	}
}

func TestReadDocumentMissing(t *testing.T) {
	s := tempVault(t)
	_, err := s.ReadDocument(context.Background(), "nope.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListDocuments(t *testing.T) {
	s := tempVault(t)
	writeFile(t, s, "b.md", "b")
	writeFile(t, s, "a.md", "a")
	writeFile(t, s, "sub/c.MD", "c")
	writeFile(t, s, "readme.txt", "not md")
	writeFile(t, s, ".obsidian/workspace.md", "hidden")
	writeFile(t, s, "node_modules/pkg/x.md", "vendored")
	writeFile(t, s, "sub/.trash/old.md", "trash")

	items, err := s.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	want := []string{"a.md", "b.md", "sub/c.MD"}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("items = %v, want %v", items, want)
	}
}

func TestListDocumentsCancelled(t *testing.T) {
	s := tempVault(t)
	writeFile(t, s, "a.md", "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ListDocuments(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.ReadDocument(context.Background(), p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
	}
}

func TestRel(t *testing.T) {
	s := tempVault(t)
	rel, err := s.Rel(filepath.Join(s.root, "a", "b.md"))
	if err != nil {
		t.Fatal(err)
	}
	if rel != "a/b.md" {
		t.Errorf("rel = %q", rel)
	}
	if _, err := s.Rel(filepath.Dir(s.root)); err == nil {
		t.Error("expected error for parent of root")
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/vaultvec-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "vaultvec-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
