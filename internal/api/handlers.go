package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultvec/internal/noteservice"
	"github.com/starford/vaultvec/internal/search"
	"github.com/starford/vaultvec/internal/sse"
)

// Publisher receives notifications the handlers raise themselves.
// *sse.Broker satisfies it.
type Publisher interface {
	Publish(event sse.Event)
	PublishNoteEvent(kind, path string)
}

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
	pub Publisher
}

// NewHandler creates a new Handler. pub may be nil.
func NewHandler(svc *noteservice.Service, pub Publisher) *Handler {
	return &Handler{svc: svc, pub: pub}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Index handles POST /api/index.
//
//	@Summary		Index pre-parsed notes
//	@Tags			index
//	@Accept			json
//	@Produce		json
//	@Param			body	body		IndexRequest	true	"Notes to index"
//	@Success		200		{object}	IndexResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index [post]
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Notes == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("notes array required"))
		return
	}
	res, err := h.svc.Index(r.Context(), req.Notes)
	if err != nil {
		writeError(w, "index", err)
		return
	}
	writeJSON(w, http.StatusOK, IndexResponse{Success: true, Message: res.Message(), Result: res})
}

// Sync handles POST /api/sync.
//
//	@Summary		Index every note in the configured vault
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	IndexResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Sync(r.Context())
	if err != nil {
		writeError(w, "sync", err)
		return
	}
	if h.pub != nil {
		h.pub.Publish(sse.Event{Type: sse.TypeSyncCompleted, Data: res})
	}
	writeJSON(w, http.StatusOK, IndexResponse{Success: true, Message: res.Message(), Result: res})
}

// Search handles POST /api/search.
//
//	@Summary		Semantic search across notes
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SearchRequest	true	"Query"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [post]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query is required"))
		return
	}
	resp, err := h.svc.Search(r.Context(), search.Request{
		Query:          req.Query,
		Limit:          search.ParseLimit(req.Limit, search.DefaultLimit, search.MaxLimit),
		MinScore:       optionalScore(req.MinScore, search.DefaultMinScore),
		Tags:           req.Tags,
		SortBy:         search.ParseSortBy(req.SortBy),
		IncludeContent: req.ReturnContent,
	})
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse(resp))
}

// Connections handles POST /api/connections.
//
//	@Summary		Find notes related to a note
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ConnectionsRequest	true	"Reference note title or path"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/connections [post]
func (h *Handler) Connections(w http.ResponseWriter, r *http.Request) {
	var req ConnectionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Note) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note is required"))
		return
	}
	limit := search.ParseLimit(req.Limit, search.DefaultConnectionsLimit, search.MaxConnectionsLimit)
	resp, err := h.svc.Connections(r.Context(), req.Note, limit,
		optionalScore(req.MinScore, search.DefaultConnectionsMinScore))
	if err != nil {
		writeError(w, "connections", err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse(resp))
}

// Stats handles GET /api/stats.
//
//	@Summary		Store statistics
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Success: true, Message: st.Message(), Stats: st})
}

// ListIndexed handles GET /api/list-indexed.
//
//	@Summary		List every indexed note path
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	FilesResponse
//	@Security		BearerAuth
//	@Router			/list-indexed [get]
func (h *Handler) ListIndexed(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.ListIndexed(r.Context())
	if err != nil {
		writeError(w, "list indexed", err)
		return
	}
	writeJSON(w, http.StatusOK, FilesResponse{Success: true, Files: files, Count: len(files)})
}

// Orphans handles GET /api/orphans.
//
//	@Summary		List indexed notes whose vault file is gone
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	FilesResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/orphans [get]
func (h *Handler) Orphans(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.Orphans(r.Context())
	if err != nil {
		writeError(w, "orphans", err)
		return
	}
	msg := "No orphaned notes"
	if len(files) > 0 {
		msg = "Found orphaned notes; POST /api/cleanup with {\"confirm\": true} to delete them"
	}
	writeJSON(w, http.StatusOK, FilesResponse{Success: true, Message: msg, Files: files, Count: len(files)})
}

// Cleanup handles POST /api/cleanup.
//
//	@Summary		Purge notes from both stores
//	@Tags			maintenance
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CleanupRequest	true	"Confirmation and optional paths"
//	@Success		200		{object}	CleanupResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/cleanup [post]
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Confirm {
		writeJSON(w, http.StatusBadRequest, errorBody("cleanup requires \"confirm\": true"))
		return
	}
	res, err := h.svc.Cleanup(r.Context(), req.Files)
	if err != nil {
		writeError(w, "cleanup", err)
		return
	}
	if h.pub != nil {
		for _, p := range res.DeletedPaths {
			h.pub.PublishNoteEvent("purged", p)
		}
	}
	writeJSON(w, http.StatusOK, CleanupResponse{
		Success:      true,
		Message:      res.Message(),
		DeletedCount: res.Deleted,
		Result:       res,
	})
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List indexed notes with filtering
//	@Tags			notes
//	@Produce		json
//	@Param			limit		query		int		false	"Max results (1-100)"
//	@Param			tags		query		string	false	"Comma-separated tags, any match"
//	@Param			path		query		string	false	"Path prefix"
//	@Param			sortBy		query		string	false	"Sort field"	Enums(title, createdAt, modifiedAt)
//	@Param			dateFrom	query		string	false	"Lower date bound"
//	@Param			dateTo		query		string	false	"Upper date bound"
//	@Success		200			{object}	NoteListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var tags []string
	for _, raw := range q["tags"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	list, err := h.svc.ListNotes(r.Context(), noteservice.ListFilter{
		Limit:      search.ParseLimit(q.Get("limit"), noteservice.DefaultListLimit, noteservice.MaxListLimit),
		Tags:       tags,
		PathPrefix: q.Get("path"),
		SortBy:     noteservice.ListSort(q.Get("sortBy")),
		DateFrom:   q.Get("dateFrom"),
		DateTo:     q.Get("dateTo"),
	})
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{
		Success: true,
		Message: list.Message(),
		Notes:   list.Notes,
		Total:   list.Total,
	})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	models.Document
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path, "")
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func optionalScore(v any, def float64) *float64 {
	if v == nil {
		return nil
	}
	s := search.ParseMinScore(v, def)
	return &s
}

func searchResponse(resp *search.Response) SearchResponse {
	return SearchResponse{
		Success:   true,
		Message:   resp.Message(),
		Query:     resp.Query,
		Freshness: resp.Freshness,
		Results:   resp.Results,
		Count:     len(resp.Results),
	}
}
