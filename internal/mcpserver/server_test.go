package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/vaultvec/internal/contentstore"
	"github.com/starford/vaultvec/internal/index"
	"github.com/starford/vaultvec/internal/models"
	"github.com/starford/vaultvec/internal/noteservice"
	"github.com/starford/vaultvec/internal/reconcile"
	"github.com/starford/vaultvec/internal/search"
	"github.com/starford/vaultvec/internal/stats"
	"github.com/starford/vaultvec/internal/testutil"
	"github.com/starford/vaultvec/internal/vectorstore"
)

const dims = 32

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	vault, source := testutil.TestVault(t)
	logger := testutil.Logger()
	emb := testutil.NewEmbedder(dims)
	vectors := vectorstore.NewMemory(dims)
	content := contentstore.NewMemory(0)

	svc := noteservice.NewService(noteservice.Deps{
		Pipeline:   index.NewPipeline(emb, vectors, content, source, index.Config{}, logger),
		Search:     search.New(emb, vectors, content, search.Options{MinScore: 0.1}, logger),
		Reconciler: reconcile.New(vectors, content, logger),
		Stats:      stats.New(content, vectors, dims, logger),
		Content:    content,
		Source:     source,
	}, noteservice.Options{VaultName: "Work Notes", OpenMinScore: 0.1})

	_, err := svc.Index(context.Background(), []models.Document{
		{Path: "go/concurrency.md", Title: "Concurrency", Body: "goroutines and channels in go", Tags: []string{"go"},
			CreatedAt: "2024-01-01T00:00:00.000Z", ModifiedAt: "2024-06-01T00:00:00.000Z"},
		{Path: "go/errors.md", Title: "Errors", Body: "wrapping errors in go", Tags: []string{"go", "errors"}},
		{Path: "cooking/bread.md", Title: "Bread", Body: "flour water salt yeast", Tags: []string{"food"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return New(svc, logger), vault
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "get_note":
		result, err = srv.getNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "analyze_connections":
		result, err = srv.analyzeConnections(ctx, req)
	case "index_stats":
		result, err = srv.indexStats(ctx, req)
	case "sync_vault":
		result, err = srv.syncVault(ctx, req)
	case "search":
		result, err = srv.openSearch(ctx, req)
	case "fetch":
		result, err = srv.fetch(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "search_notes", map[string]interface{}{
		"query":    "goroutines channels",
		"minScore": 0.1,
		"tags":     []interface{}{"go"},
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(res))
	}
	text := resultText(res)
	if !strings.Contains(text, "1. **Concurrency**") || !strings.Contains(text, "Path: go/concurrency.md") {
		t.Errorf("unexpected output:\n%s", text)
	}
	if strings.Contains(text, "cooking/bread.md") {
		t.Error("tag filter should exclude bread")
	}
	if s := srv.Session(); s.SearchCount != 1 || s.LastSearchQuery != "goroutines channels" {
		t.Errorf("session = %+v", s)
	}
}

func TestSearchNotes_NoResults(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "search_notes", map[string]interface{}{"query": "zebra", "minScore": 0.99})
	if !strings.Contains(resultText(res), "No notes found") {
		t.Errorf("unexpected output: %s", resultText(res))
	}
}

func TestSearchNotes_MissingQuery(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "search_notes", map[string]interface{}{})
	if !res.IsError {
		t.Error("expected error for missing query")
	}
}

func TestGetNote(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "get_note", map[string]interface{}{"path": "go/errors.md"})
	text := resultText(res)
	if !strings.HasPrefix(text, "# Errors") || !strings.Contains(text, "**Tags:** go, errors") ||
		!strings.HasSuffix(text, "wrapping errors in go") {
		t.Errorf("unexpected output:\n%s", text)
	}

	res = callTool(t, srv, "get_note", map[string]interface{}{"searchTerm": "flour yeast"})
	if !strings.Contains(resultText(res), "**Path:** cooking/bread.md") {
		t.Errorf("search term lookup:\n%s", resultText(res))
	}
}

func TestGetNote_Errors(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "get_note", map[string]interface{}{"path": "missing.md"})
	if !res.IsError || !strings.Contains(resultText(res), "not found") {
		t.Errorf("missing path: %s", resultText(res))
	}

	res = callTool(t, srv, "get_note", map[string]interface{}{})
	if !res.IsError {
		t.Error("expected error without path or searchTerm")
	}
}

func TestListNotes(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "list_notes", map[string]interface{}{"folder": "go/", "limit": 1})
	text := resultText(res)
	if !strings.HasPrefix(text, "Found 2 notes (showing 1)") || !strings.Contains(text, "**Concurrency**") {
		t.Errorf("unexpected output:\n%s", text)
	}

	res = callTool(t, srv, "list_notes", map[string]interface{}{"tags": []interface{}{"nothing"}})
	if !strings.Contains(resultText(res), "No notes found") {
		t.Errorf("unexpected output: %s", resultText(res))
	}
}

func TestAnalyzeConnections(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "analyze_connections", map[string]interface{}{"note": "Concurrency", "minScore": 0})
	text := resultText(res)
	if !strings.HasPrefix(text, `Found`) || strings.Contains(text, "Path: go/concurrency.md") {
		t.Errorf("unexpected output:\n%s", text)
	}
}

func TestIndexStatsAndSync(t *testing.T) {
	srv, vault := testServer(t)
	testutil.WriteNote(t, vault, "new.md", "# New\nfresh note")

	res := callTool(t, srv, "sync_vault", nil)
	if res.IsError {
		t.Fatalf("sync failed: %s", resultText(res))
	}

	text := resultText(callTool(t, srv, "index_stats", nil))
	if !strings.Contains(text, "Notes stored: 4") || !strings.Contains(text, "Notes indexed: 1") {
		t.Errorf("unexpected output:\n%s", text)
	}
}

func TestOpenSearchAndFetch(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "search", map[string]interface{}{"query": "goroutines channels"})
	var found openSearchResponse
	if err := json.Unmarshal([]byte(resultText(res)), &found); err != nil {
		t.Fatalf("search output is not JSON: %v", err)
	}
	if len(found.Results) == 0 || found.Results[0].ID != "go/concurrency.md" {
		t.Fatalf("results = %+v", found.Results)
	}
	if found.Results[0].URL != "obsidian://open?vault=Work%20Notes&file=go%2Fconcurrency.md" {
		t.Errorf("url = %s", found.Results[0].URL)
	}

	res = callTool(t, srv, "fetch", map[string]interface{}{"id": found.Results[0].ID})
	var doc noteservice.Document
	if err := json.Unmarshal([]byte(resultText(res)), &doc); err != nil {
		t.Fatalf("fetch output is not JSON: %v", err)
	}
	if doc.Text != "goroutines and channels in go" || doc.Metadata == nil || doc.Metadata.Path != "go/concurrency.md" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestFetch_MissingReportsInBody(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "fetch", map[string]interface{}{"id": "gone.md"})
	var doc noteservice.Document
	if err := json.Unmarshal([]byte(resultText(res)), &doc); err != nil {
		t.Fatalf("fetch output is not JSON: %v", err)
	}
	if doc.Title != "Error" || !strings.HasPrefix(doc.Text, "Failed to retrieve document") {
		t.Errorf("doc = %+v", doc)
	}
}

func TestGuideResource(t *testing.T) {
	srv, _ := testServer(t)

	contents, err := srv.readGuideResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != GuideURI || !strings.Contains(tc.Text, "--QDF") {
		t.Errorf("unexpected resource: %+v", contents[0])
	}
}
