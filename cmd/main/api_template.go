package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jpulse-net/jpulse/pkg/handlebars"
	"github.com/jpulse-net/jpulse/pkg/pathres"
	"github.com/jpulse-net/jpulse/pkg/view"
)

// TemplateAPI holds the dependencies for the template API handlers.
type TemplateAPI struct {
	engine   *handlebars.Engine
	views    *view.Server
	resolver *pathres.Resolver
	cm       *ConfigManager
	logger   *slog.Logger
}

// NewTemplateAPI creates a new instance of the TemplateAPI.
func NewTemplateAPI(engine *handlebars.Engine, views *view.Server, resolver *pathres.Resolver, cm *ConfigManager, logger *slog.Logger) *TemplateAPI {
	return &TemplateAPI{
		engine:   engine,
		views:    views,
		resolver: resolver,
		cm:       cm,
		logger:   logger,
	}
}

// RegisterRoutes sets up the routing for all template-related endpoints.
func (t *TemplateAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/templates/preview", t.handlePreview)
	mux.HandleFunc("/api/templates/cache", t.handleCacheStats)
	mux.HandleFunc("/api/templates/cache/flush", t.handleCacheFlush)
	mux.HandleFunc("/api/templates", t.handleList)
	mux.HandleFunc("/api/helpers", t.handleHelpers)
}

// PreviewRequest is the expected JSON body for a template preview: a raw
// template source, the expansion context to run it against, and the auth
// state the context filter should assume.
type PreviewRequest struct {
	Source        string         `json:"source"`
	Context       map[string]any `json:"context"`
	Lang          string         `json:"lang"`
	Authenticated bool           `json:"authenticated"`
}

// handlePreview expands a posted template without touching any file on
// disk. The filter runs exactly as it would for a real request, so an
// operator can verify what an anonymous visitor would see.
func (t *TemplateAPI) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "templates:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:read' scope")
		return
	}

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if req.Lang == "" {
		req.Lang = t.cm.Get().Server.DefaultLang
	}
	if req.Context == nil {
		req.Context = t.cm.ContextMap()
	}

	viewReq := &view.Request{
		Path:          "/api/templates/preview",
		Authenticated: req.Authenticated,
		Lang:          req.Lang,
	}
	out, err := t.views.ExpandHandlebars(r.Context(), viewReq, req.Source, req.Context)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Template expansion failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// TemplateListEntry is one resolvable template in a listing.
type TemplateListEntry struct {
	Path   string `json:"path"`
	Origin string `json:"origin"`
	Plugin string `json:"plugin,omitempty"`
}

// handleList returns the templates resolvable under a directory. The dir and
// pattern query parameters narrow the listing; origin shows which layer wins
// for each name.
func (t *TemplateAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "templates:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:read' scope")
		return
	}

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*.shtml"
	}

	entries, err := t.resolver.ListDir(r.URL.Query().Get("dir"), pattern)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Listing failed: "+err.Error())
		return
	}

	list := make([]TemplateListEntry, 0, len(entries))
	for _, e := range entries {
		list = append(list, TemplateListEntry{
			Path:   e.RelPath,
			Origin: string(e.Origin),
			Plugin: e.Plugin,
		})
	}
	respondWithJSON(w, http.StatusOK, list)
}

// handleCacheStats reports hit/miss counters and entry count for the
// include cache.
func (t *TemplateAPI) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "templates:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:read' scope")
		return
	}
	respondWithJSON(w, http.StatusOK, t.engine.Includes().Stats())
}

// handleCacheFlush drops every cached include so the next render re-reads
// from disk.
func (t *TemplateAPI) handleCacheFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "templates:write") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:write' scope")
		return
	}
	t.engine.Includes().Flush()
	t.logger.Info("Include cache flushed via API")
	w.WriteHeader(http.StatusNoContent)
}

// HelperInfo is one registered helper in a listing.
type HelperInfo struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Source string `json:"source"`
}

// handleHelpers lists every registered helper with its kind and origin
// (core, site, or plugin name).
func (t *TemplateAPI) handleHelpers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "templates:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:read' scope")
		return
	}

	entries := t.engine.Registry().Entries()
	list := make([]HelperInfo, 0, len(entries))
	for _, e := range entries {
		list = append(list, HelperInfo{Name: e.Name, Kind: string(e.Kind), Source: e.Source})
	}
	respondWithJSON(w, http.StatusOK, list)
}
