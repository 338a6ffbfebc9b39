package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func setupAuthTest(t *testing.T) http.Handler {
	t.Helper()
	db, err := initDB(filepath.Join(t.TempDir(), "auth_test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = setupAuthSchema(db); err != nil {
		t.Fatalf("failed to set up auth schema: %v", err)
	}

	api := NewAuthAPI(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	return api.Authenticate(mux)
}

func mintKey(t *testing.T, handler http.Handler, authHeader, label string, scopes []string) CreateKeyResponse {
	t.Helper()
	body, _ := json.Marshal(CreateKeyRequest{Label: label, Scopes: scopes})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/keys", strings.NewReader(string(body)))
	if authHeader != "" {
		req.Header.Set("jp-auth", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("key creation returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp CreateKeyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	return resp
}

func TestScopeSet_Allows(t *testing.T) {
	scopes := parseScopes("templates:read server:config")
	if !scopes.allows("templates:read") || !scopes.allows("server:config") {
		t.Error("granted scopes should pass the check")
	}
	if scopes.allows("auth:manage") {
		t.Error("ungranted scope should fail the check")
	}
	if !parseScopes("*").allows("auth:manage") {
		t.Error("master scope should pass every check")
	}
	if parseScopes("").allows("templates:read") {
		t.Error("empty scope list should fail every check")
	}
}

func TestAuthenticate_OpenOnFreshInstall(t *testing.T) {
	handler := setupAuthTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("fresh install should serve unauthenticated requests, got %d", rec.Code)
	}
	var resp struct {
		Scopes []string `json:"scopes"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode /me response: %v", err)
	}
	if len(resp.Scopes) != 1 || resp.Scopes[0] != "*" {
		t.Errorf("fresh install should report the master scope, got %v", resp.Scopes)
	}
}

func TestAuthenticate_ClosedOnceKeyExists(t *testing.T) {
	handler := setupAuthTest(t)
	minted := mintKey(t, handler, "", "root", []string{"auth:manage"})

	if len(minted.Scopes) != 1 || minted.Scopes[0] != "*" {
		t.Errorf("first key should be forced to the master scope, got %v", minted.Scopes)
	}
	if !strings.HasPrefix(minted.Key, "jp_") {
		t.Errorf("raw key should carry the jp_ prefix, got %q", minted.Key)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/keys", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key should be rejected once a key exists, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/keys", nil)
	req.Header.Set("jp-auth", "jp_"+strings.Repeat("00", 32))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown key should be rejected, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/keys", nil)
	req.Header.Set("jp-auth", minted.Key)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid key should be accepted, got %d: %s", rec.Code, rec.Body.String())
	}
	var keys []APIKeyInfo
	if err := json.NewDecoder(rec.Body).Decode(&keys); err != nil {
		t.Fatalf("failed to decode key listing: %v", err)
	}
	if len(keys) != 1 || keys[0].Label != "root" {
		t.Errorf("listing should show the minted key, got %+v", keys)
	}
}

func TestCreateKey_ScopedKeysStayScoped(t *testing.T) {
	handler := setupAuthTest(t)
	master := mintKey(t, handler, "", "root", nil)
	limited := mintKey(t, handler, master.Key, "ci", []string{"templates:read"})

	if len(limited.Scopes) != 1 || limited.Scopes[0] != "templates:read" {
		t.Errorf("second key should keep its requested scopes, got %v", limited.Scopes)
	}

	// The limited key cannot manage keys.
	req := httptest.NewRequest(http.MethodGet, "/api/auth/keys", nil)
	req.Header.Set("jp-auth", limited.Key)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("key without auth:manage should get 403 on listing, got %d", rec.Code)
	}

	body, _ := json.Marshal(CreateKeyRequest{Label: "sneaky", Scopes: []string{"*"}})
	req = httptest.NewRequest(http.MethodPost, "/api/auth/keys", strings.NewReader(string(body)))
	req.Header.Set("jp-auth", limited.Key)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("key without auth:manage should get 403 on creation, got %d", rec.Code)
	}
}

func TestDeleteKey_PrimaryKeyProtected(t *testing.T) {
	handler := setupAuthTest(t)
	master := mintKey(t, handler, "", "root", nil)
	limited := mintKey(t, handler, master.Key, "ci", []string{"templates:read"})

	req := httptest.NewRequest(http.MethodDelete, "/api/auth/keys/1", nil)
	req.Header.Set("jp-auth", master.Key)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("deleting key 1 should be refused, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/auth/keys/2", nil)
	req.Header.Set("jp-auth", master.Key)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("deleting key 2 should succeed, got %d", rec.Code)
	}

	// The deleted key no longer authenticates.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("jp-auth", limited.Key)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("deleted key should be rejected, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/auth/keys/99", nil)
	req.Header.Set("jp-auth", master.Key)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleting a missing key should 404, got %d", rec.Code)
	}
}
