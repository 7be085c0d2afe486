package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TimurManjosov/sprida/internal/snapshot"
	"github.com/TimurManjosov/sprida/internal/split"
	"github.com/TimurManjosov/sprida/internal/store"
)

const testAdminKey = "admin-key"

func newTestServer(t *testing.T, opts ...Option) (*Server, *store.MemoryStore, http.Handler) {
	t.Helper()
	st := store.NewMemoryStore()
	srv := NewServer(st, "prod", testAdminKey, opts...)
	if err := srv.RebuildSnapshot(context.Background()); err != nil {
		t.Fatalf("RebuildSnapshot failed: %v", err)
	}
	return srv, st, srv.Router()
}

func seedSplit(t *testing.T, srv *Server, st *store.MemoryStore, params store.UpsertParams) {
	t.Helper()
	if params.Env == "" {
		params.Env = "prod"
	}
	if _, err := st.UpsertSplit(context.Background(), params); err != nil {
		t.Fatalf("UpsertSplit failed: %v", err)
	}
	if err := srv.RebuildSnapshot(context.Background()); err != nil {
		t.Fatalf("RebuildSnapshot failed: %v", err)
	}
}

func halves() []split.Group {
	return []split.Group{{Name: "control", Weight: 1}, {Name: "treatment", Weight: 1}}
}

func doRequest(handler http.Handler, method, path, body string, admin bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+testAdminKey)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp
}

func TestHandleHealth(t *testing.T) {
	_, _, handler := newTestServer(t)

	rr := doRequest(handler, http.MethodGet, "/healthz", "", false)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got %s", rr.Body.String())
	}
}

func TestListSplits_Empty(t *testing.T) {
	_, _, handler := newTestServer(t)

	rr := doRequest(handler, http.MethodGet, "/v1/splits", "", false)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var snap snapshot.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(snap.Splits) != 0 {
		t.Errorf("Expected 0 splits, got %d", len(snap.Splits))
	}
	if rr.Header().Get("ETag") == "" {
		t.Error("Expected ETag header to be set")
	}
	if rr.Header().Get("Cache-Control") != "no-cache, no-store, must-revalidate" {
		t.Errorf("unexpected Cache-Control %q", rr.Header().Get("Cache-Control"))
	}
}

func TestListSplits_ETag(t *testing.T) {
	srv, st, handler := newTestServer(t)
	seedSplit(t, srv, st, store.UpsertParams{Key: "checkout", Groups: halves()})

	rr1 := doRequest(handler, http.MethodGet, "/v1/splits", "", false)
	etag := rr1.Header().Get("ETag")
	if etag == "" {
		t.Fatal("ETag not set in response")
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/splits", nil)
	req.Header.Set("If-None-Match", etag)
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req)

	if rr2.Code != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", rr2.Code)
	}
	if rr2.Body.Len() != 0 {
		t.Error("Expected empty body for 304 response")
	}

	seedSplit(t, srv, st, store.UpsertParams{Key: "pricing", Groups: halves()})

	req3 := httptest.NewRequest(http.MethodGet, "/v1/splits", nil)
	req3.Header.Set("If-None-Match", etag)
	rr3 := httptest.NewRecorder()
	handler.ServeHTTP(rr3, req3)

	if rr3.Code != http.StatusOK {
		t.Errorf("Expected status 200 after modification, got %d", rr3.Code)
	}
	if rr3.Header().Get("ETag") == etag {
		t.Error("Expected different ETag after modification")
	}
}

func TestGetSplit(t *testing.T) {
	srv, st, handler := newTestServer(t)
	seedSplit(t, srv, st, store.UpsertParams{Key: "checkout", Description: "cart", Groups: halves()})

	rr := doRequest(handler, http.MethodGet, "/v1/splits/checkout", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var got store.Split
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode split: %v", err)
	}
	if got.Key != "checkout" || got.Description != "cart" || len(got.Groups) != 2 {
		t.Errorf("unexpected split: %+v", got)
	}

	rr = doRequest(handler, http.MethodGet, "/v1/splits/missing", "", false)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestUpsertSplit_Success(t *testing.T) {
	_, st, handler := newTestServer(t)

	body := `{
		"description": "checkout experiment",
		"groups": [{"name": "control", "weight": 9}, {"name": "treatment", "weight": 1}]
	}`
	rr := doRequest(handler, http.MethodPut, "/v1/splits/checkout", body, true)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp upsertResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.OK || resp.ETag == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.ETag != snapshot.Load().ETag {
		t.Error("Expected response ETag to match the new snapshot")
	}

	saved, err := st.GetSplit(context.Background(), "prod", "checkout")
	if err != nil {
		t.Fatalf("Expected split to be stored: %v", err)
	}
	if saved.Groups[0].Weight != 9 {
		t.Errorf("Expected weight 9, got %v", saved.Groups[0].Weight)
	}
	if _, ok := snapshot.Load().Compiled("checkout"); !ok {
		t.Error("Expected compiled split in snapshot")
	}
}

func TestUpsertSplit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		admin      bool
		wantStatus int
		wantCode   ErrorCode
	}{
		{
			name:       "missing token",
			path:       "/v1/splits/checkout",
			body:       `{"groups":[{"name":"a","weight":1}]}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   ErrCodeUnauthorized,
		},
		{
			name:       "invalid json",
			path:       "/v1/splits/checkout",
			body:       `{not json`,
			admin:      true,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeInvalidJSON,
		},
		{
			name:       "no groups",
			path:       "/v1/splits/checkout",
			body:       `{"groups":[]}`,
			admin:      true,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "zero weight",
			path:       "/v1/splits/checkout",
			body:       `{"groups":[{"name":"a","weight":0}]}`,
			admin:      true,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "bad key",
			path:       "/v1/splits/bad.key",
			body:       `{"groups":[{"name":"a","weight":1}]}`,
			admin:      true,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "salt with alphabet",
			path:       "/v1/splits/checkout",
			body:       `{"alphabet":"01","salt":"s","groups":[{"name":"a","weight":1}]}`,
			admin:      true,
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, handler := newTestServer(t)
			rr := doRequest(handler, http.MethodPut, tt.path, tt.body, tt.admin)

			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if resp := decodeError(t, rr); resp.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestUpsertSplit_InvalidToken(t *testing.T) {
	_, _, handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/v1/splits/checkout",
		bytes.NewBufferString(`{"groups":[{"name":"a","weight":1}]}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", rr.Code)
	}
}

func TestUpsertSplit_RequestTooLarge(t *testing.T) {
	_, _, handler := newTestServer(t)

	body := fmt.Sprintf(`{"description":"%s","groups":[{"name":"a","weight":1}]}`, strings.Repeat("x", 1<<20))
	rr := doRequest(handler, http.MethodPut, "/v1/splits/big", body, true)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDeleteSplit(t *testing.T) {
	srv, st, handler := newTestServer(t)
	seedSplit(t, srv, st, store.UpsertParams{Key: "checkout", Groups: halves()})

	rr := doRequest(handler, http.MethodDelete, "/v1/splits/checkout", "", false)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %d", rr.Code)
	}

	rr = doRequest(handler, http.MethodDelete, "/v1/splits/checkout", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if _, ok := snapshot.Load().Splits["checkout"]; ok {
		t.Error("Expected split to be gone from the snapshot")
	}

	rr = doRequest(handler, http.MethodDelete, "/v1/splits/checkout", "", true)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 on repeated delete, got %d", rr.Code)
	}
}

func TestDeleteSplit_Missing(t *testing.T) {
	_, _, handler := newTestServer(t)
	before := snapshot.Load().ETag

	rr := doRequest(handler, http.MethodDelete, "/v1/splits/nope", "", true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Code != ErrCodeNotFound || resp.Message != "Split not found: nope" {
		t.Errorf("unexpected error response: %+v", resp)
	}
	if snapshot.Load().ETag != before {
		t.Error("Expected snapshot to be left alone")
	}
}

func TestSnapshot_OnlyServedEnv(t *testing.T) {
	srv, st, handler := newTestServer(t)
	seedSplit(t, srv, st, store.UpsertParams{Key: "prod_split", Groups: halves()})
	seedSplit(t, srv, st, store.UpsertParams{Key: "dev_split", Env: "dev", Groups: halves()})

	rr := doRequest(handler, http.MethodGet, "/v1/splits", "", false)
	var snap snapshot.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if _, ok := snap.Splits["prod_split"]; !ok {
		t.Error("Expected prod_split in snapshot")
	}
	if _, ok := snap.Splits["dev_split"]; ok {
		t.Error("Expected dev_split to be filtered out")
	}
}

func TestRateLimit(t *testing.T) {
	_, _, handler := newTestServer(t, WithRateLimit(2))

	for i := 0; i < 2; i++ {
		if rr := doRequest(handler, http.MethodGet, "/healthz", "", false); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}

	rr := doRequest(handler, http.MethodGet, "/healthz", "", false)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrCodeRateLimited {
		t.Errorf("Expected code %s, got %s", ErrCodeRateLimited, resp.Code)
	}
}
