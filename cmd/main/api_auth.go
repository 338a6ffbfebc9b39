package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// The admin API is guarded by sqlite-backed keys. A key carries a space
// separated scope list; the handlers in this binary check templates:read,
// templates:write, server:config, server:control, and auth:manage. The
// "*" scope passes every check.

const authSchema = `
CREATE TABLE IF NOT EXISTS api_keys (
    id       INTEGER PRIMARY KEY,
    key_hash TEXT    NOT NULL UNIQUE,
    scopes   TEXT    NOT NULL,
    label    TEXT    NOT NULL DEFAULT '',
    created  TEXT    NOT NULL DEFAULT (datetime('now'))
);
`

func setupAuthSchema(db *sql.DB) error {
	_, err := db.Exec(authSchema)
	return err
}

type contextKey string

const scopesContextKey = contextKey("scopes")

// scopeSet is the parsed scope list of an authenticated key.
type scopeSet map[string]struct{}

func parseScopes(s string) scopeSet {
	set := make(scopeSet)
	for _, scope := range strings.Fields(s) {
		set[scope] = struct{}{}
	}
	return set
}

func (s scopeSet) allows(scope string) bool {
	if _, master := s["*"]; master {
		return true
	}
	_, ok := s[scope]
	return ok
}

func (s scopeSet) list() []string {
	out := make([]string, 0, len(s))
	for scope := range s {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

// hasScope reports whether the request's key carries the scope. Requests
// that never passed through Authenticate carry no scopes at all.
func hasScope(r *http.Request, scope string) bool {
	scopes, ok := r.Context().Value(scopesContextKey).(scopeSet)
	return ok && scopes.allows(scope)
}

// AuthAPI owns the API-key store and the admin-mux middleware.
type AuthAPI struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAuthAPI(db *sql.DB, logger *slog.Logger) *AuthAPI {
	return &AuthAPI{db: db, logger: logger}
}

// RegisterRoutes sets up the routing for the key-management endpoints.
func (a *AuthAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/me", a.handleCheckMe)
	mux.HandleFunc("/api/auth/keys", a.handleKeys)
	mux.HandleFunc("/api/auth/keys/", a.handleKeyByID)
}

// Authenticate wraps the admin mux with key verification. The key arrives
// in the jp-auth header and is matched by sha256 hash. Until the first key
// is created the API runs open with the master scope, so a fresh install
// can mint its own credentials.
func (a *AuthAPI) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scopes, status := a.verifyRequest(r)
		if status != http.StatusOK {
			http.Error(w, http.StatusText(status), status)
			return
		}
		ctx := context.WithValue(r.Context(), scopesContextKey, scopes)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *AuthAPI) verifyRequest(r *http.Request) (scopeSet, int) {
	var keyCount int
	if err := a.db.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM api_keys`).Scan(&keyCount); err != nil {
		a.logger.Error("Key count query failed during authentication", "error", err)
		return nil, http.StatusInternalServerError
	}
	if keyCount == 0 {
		return scopeSet{"*": {}}, http.StatusOK
	}

	raw := r.Header.Get("jp-auth")
	if raw == "" {
		return nil, http.StatusUnauthorized
	}
	var stored string
	err := a.db.QueryRowContext(r.Context(),
		`SELECT scopes FROM api_keys WHERE key_hash = ?`, hashAPIKey(raw)).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, http.StatusUnauthorized
	case err != nil:
		a.logger.Error("Key lookup failed during authentication", "error", err)
		return nil, http.StatusInternalServerError
	}
	return parseScopes(stored), http.StatusOK
}

// APIKeyInfo is one stored key in a listing. The hash itself never leaves
// the database.
type APIKeyInfo struct {
	ID      int      `json:"id"`
	Label   string   `json:"label"`
	Scopes  []string `json:"scopes"`
	Created string   `json:"created"`
}

// CreateKeyRequest is the expected JSON body for creating a new key.
type CreateKeyRequest struct {
	Label  string   `json:"label"`
	Scopes []string `json:"scopes"`
}

// CreateKeyResponse carries the raw key exactly once, at creation time.
type CreateKeyResponse struct {
	ID     int      `json:"id"`
	Key    string   `json:"key"`
	Scopes []string `json:"scopes"`
}

func (a *AuthAPI) handleKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listKeys(w, r)
	case http.MethodPost:
		a.createKey(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (a *AuthAPI) handleKeyByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", "DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	idStr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/auth/keys/"), "/")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid key ID in URL")
		return
	}
	a.deleteKey(w, r, id)
}

// handleCheckMe reports the scopes of the presented key, so an operator
// can verify a credential without trying a privileged call.
func (a *AuthAPI) handleCheckMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	scopes, ok := r.Context().Value(scopesContextKey).(scopeSet)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid or missing key")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"scopes": scopes.list()})
}

func (a *AuthAPI) listKeys(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "auth:manage") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'auth:manage' scope")
		return
	}

	rows, err := a.db.QueryContext(r.Context(),
		`SELECT id, label, scopes, created FROM api_keys ORDER BY id`)
	if err != nil {
		a.logger.Error("Key listing query failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database query failed")
		return
	}
	defer rows.Close()

	keys := make([]APIKeyInfo, 0)
	for rows.Next() {
		var key APIKeyInfo
		var scopesStr string
		if err = rows.Scan(&key.ID, &key.Label, &scopesStr, &key.Created); err != nil {
			a.logger.Error("Key row scan failed", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to read key rows")
			return
		}
		key.Scopes = parseScopes(scopesStr).list()
		keys = append(keys, key)
	}
	if err = rows.Err(); err != nil {
		a.logger.Error("Key listing iteration failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to read key rows")
		return
	}
	respondWithJSON(w, http.StatusOK, keys)
}

func (a *AuthAPI) createKey(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "auth:manage") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'auth:manage' scope")
		return
	}

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	rawKey, err := generateAPIKey()
	if err != nil {
		a.logger.Error("Key generation failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Key generation failed")
		return
	}

	// The first key always gets the master scope, whatever was requested.
	// Otherwise a fresh install could mint a limited key and lock itself
	// out of key management for good.
	var keyCount int
	_ = a.db.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM api_keys`).Scan(&keyCount)
	scopesStr := strings.Join(req.Scopes, " ")
	if keyCount == 0 {
		scopesStr = "*"
	}

	var newID int
	err = a.db.QueryRowContext(r.Context(),
		`INSERT INTO api_keys (key_hash, label, scopes) VALUES (?, ?, ?) RETURNING id`,
		hashAPIKey(rawKey), req.Label, scopesStr).Scan(&newID)
	if err != nil {
		a.logger.Error("Key insert failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save new key")
		return
	}
	a.logger.Info("API key created", "id", newID, "label", req.Label, "scopes", scopesStr)

	respondWithJSON(w, http.StatusCreated, CreateKeyResponse{
		ID:     newID,
		Key:    rawKey,
		Scopes: parseScopes(scopesStr).list(),
	})
}

func (a *AuthAPI) deleteKey(w http.ResponseWriter, r *http.Request, id int) {
	if !hasScope(r, "auth:manage") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'auth:manage' scope")
		return
	}
	if id == 1 {
		respondWithError(w, http.StatusBadRequest, "Cannot delete the primary master key (ID 1)")
		return
	}

	res, err := a.db.ExecContext(r.Context(), `DELETE FROM api_keys WHERE id = ?`, id)
	if err != nil {
		a.logger.Error("Key delete failed", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to delete key")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondWithError(w, http.StatusNotFound, "Key not found")
		return
	}
	a.logger.Info("API key deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func generateAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return "jp_" + hex.EncodeToString(raw), nil
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}
