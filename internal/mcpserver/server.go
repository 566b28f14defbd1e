// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the vault search tools for LLM integration.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vaultvec/internal/apperr"
	"github.com/starford/vaultvec/internal/models"
	"github.com/starford/vaultvec/internal/noteservice"
	"github.com/starford/vaultvec/internal/search"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Server wraps the MCP server with the vault tools. It owns the session
// record shared by all calls on this server.
type Server struct {
	mcp    *server.MCPServer
	svc    *noteservice.Service
	logger *slog.Logger

	mu      sync.Mutex
	session models.SessionState
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, logger *slog.Logger) *Server {
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"vaultvec",
		Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions(Instructions),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Semantic search through notes. Append --QDF=3..5 to the query to favour recently modified notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language query")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (1-50, default 10)")),
		mcp.WithNumber("minScore", mcp.Description("Minimum similarity between 0 and 1")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Keep notes carrying any of these tags")),
		mcp.WithString("sortBy", mcp.Enum(string(search.SortRelevance), string(search.SortCreatedAt), string(search.SortModifiedAt)),
			mcp.Description("Result order")),
		mcp.WithBoolean("includeContent", mcp.Description("Include the full note body in each result")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("get_note",
		mcp.WithDescription("Read the full content of a note by path, or the best match for a search term."),
		mcp.WithString("path", mcp.Description("Note path (e.g. folder/note.md)")),
		mcp.WithString("searchTerm", mcp.Description("Used when path is empty")),
	), s.getNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List indexed notes filtered by folder, tags or date."),
		mcp.WithNumber("limit", mcp.Description("Maximum results (1-100, default 20)")),
		mcp.WithString("folder", mcp.Description("Path prefix (empty for all)")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Keep notes carrying any of these tags")),
		mcp.WithString("sortBy", mcp.Enum(string(noteservice.ListByTitle), string(noteservice.ListByCreatedAt), string(noteservice.ListByModifiedAt)),
			mcp.Description("Result order")),
		mcp.WithString("dateFrom", mcp.Description("Earliest date (YYYY-MM-DD or RFC 3339)")),
		mcp.WithString("dateTo", mcp.Description("Latest date (YYYY-MM-DD or RFC 3339)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("analyze_connections",
		mcp.WithDescription("Find notes semantically related to a note, excluding the note itself."),
		mcp.WithString("note", mcp.Required(), mcp.Description("Title or path of the reference note")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (1-20, default 10)")),
		mcp.WithNumber("minScore", mcp.Description("Minimum similarity between 0 and 1 (default 0.6)")),
	), s.analyzeConnections)

	s.mcp.AddTool(mcp.NewTool("index_stats",
		mcp.WithDescription("Report note and vector counts, storage size and this session's activity."),
	), s.indexStats)

	s.mcp.AddTool(mcp.NewTool("sync_vault",
		mcp.WithDescription("Index every note in the configured vault. Unchanged notes are skipped."),
	), s.syncVault)

	s.mcp.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Search notes and return JSON results with id, title, text and url."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
	), s.openSearch)

	s.mcp.AddTool(mcp.NewTool("fetch",
		mcp.WithDescription("Retrieve complete document content by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id (note path)")),
	), s.fetch)

	s.mcp.AddResource(
		mcp.NewResource(GuideURI, "Vault Guide",
			mcp.WithResourceDescription("How notes are indexed and how queries are interpreted."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// HTTPHandler serves the same tools over the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Session returns a copy of the session record.
func (s *Server) Session() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Server) update(fn func(models.SessionState) models.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = fn(s.session)
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	resp, err := s.svc.Search(ctx, search.Request{
		Query:          query,
		Limit:          search.ParseLimit(args["limit"], search.DefaultLimit, search.MaxLimit),
		MinScore:       optionalScore(args["minScore"], search.DefaultMinScore),
		Tags:           req.GetStringSlice("tags", nil),
		SortBy:         search.ParseSortBy(req.GetString("sortBy", "")),
		IncludeContent: req.GetBool("includeContent", false),
	})
	if err != nil {
		return s.toolError("searching notes", err), nil
	}
	s.update(func(st models.SessionState) models.SessionState { return st.WithSearch(query) })
	return mcp.NewToolResultText(formatSearch(resp)), nil
}

func (s *Server) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	term := req.GetString("searchTerm", "")
	doc, err := s.svc.GetNote(ctx, path, term)
	switch {
	case errors.Is(err, apperr.ErrNotFound) && path != "":
		return mcp.NewToolResultError(fmt.Sprintf("Note with path %q not found in storage.", path)), nil
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("No note matches %q.", term)), nil
	case err != nil:
		return s.toolError("retrieving note", err), nil
	}
	return mcp.NewToolResultText(formatNote(doc)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.svc.ListNotes(ctx, noteservice.ListFilter{
		Limit:      search.ParseLimit(req.GetArguments()["limit"], noteservice.DefaultListLimit, noteservice.MaxListLimit),
		Tags:       req.GetStringSlice("tags", nil),
		PathPrefix: req.GetString("folder", ""),
		SortBy:     noteservice.ListSort(req.GetString("sortBy", "")),
		DateFrom:   req.GetString("dateFrom", ""),
		DateTo:     req.GetString("dateTo", ""),
	})
	if err != nil {
		return s.toolError("listing notes", err), nil
	}
	return mcp.NewToolResultText(formatList(list)), nil
}

func (s *Server) analyzeConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	note, err := req.RequireString("note")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	limit := search.ParseLimit(args["limit"], search.DefaultConnectionsLimit, search.MaxConnectionsLimit)
	resp, err := s.svc.Connections(ctx, note, limit, optionalScore(args["minScore"], search.DefaultConnectionsMinScore))
	if err != nil {
		return s.toolError("analyzing connections", err), nil
	}
	return mcp.NewToolResultText(formatConnections(resp)), nil
}

func (s *Server) indexStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return s.toolError("reading stats", err), nil
	}
	return mcp.NewToolResultText(formatStats(st, s.Session())), nil
}

func (s *Server) syncVault(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Sync(ctx)
	if err != nil {
		return s.toolError("syncing vault", err), nil
	}
	s.update(func(st models.SessionState) models.SessionState { return st.WithIndexed(res.Indexed) })
	return mcp.NewToolResultText(res.Message()), nil
}

type openSearchResponse struct {
	Results []noteservice.Document `json:"results"`
	Error   string                 `json:"error,omitempty"`
}

// openSearch reports failures inside the JSON body; connector clients
// expect a results array either way.
func (s *Server) openSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.OpenSearch(ctx, query)
	if err != nil {
		s.logger.Error("mcp: search failed", slog.String("query", query), slog.String("error", err.Error()))
		return jsonResult(openSearchResponse{Results: []noteservice.Document{}, Error: "Search failed: " + err.Error()}), nil
	}
	s.update(func(st models.SessionState) models.SessionState { return st.WithSearch(query) })
	return jsonResult(openSearchResponse{Results: results}), nil
}

func (s *Server) fetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Fetch(ctx, id)
	if err != nil {
		s.logger.Warn("mcp: fetch failed", slog.String("id", id), slog.String("error", err.Error()))
		return jsonResult(noteservice.Document{
			ID:    id,
			Title: "Error",
			Text:  "Failed to retrieve document: " + err.Error(),
		}), nil
	}
	return jsonResult(doc), nil
}

func (s *Server) readGuideResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      GuideURI,
			MIMEType: "text/markdown",
			Text:     Guide,
		},
	}, nil
}

func (s *Server) toolError(op string, err error) *mcp.CallToolResult {
	s.logger.Error("mcp: "+op+" failed", slog.String("error", err.Error()))
	return mcp.NewToolResultError(fmt.Sprintf("Error %s: %s", op, err.Error()))
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func optionalScore(v any, def float64) *float64 {
	if v == nil {
		return nil
	}
	score := search.ParseMinScore(v, def)
	return &score
}
