package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TimurManjosov/sprida/internal/api"
	"github.com/TimurManjosov/sprida/internal/split"
	"github.com/TimurManjosov/sprida/internal/store"
)

// NewTestServer creates a test server with in-memory store for testing.
// The snapshot is built before returning, so read endpoints work right away.
func NewTestServer(t *testing.T, env, adminKey string) (*api.Server, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	server := api.NewServer(memStore, env, adminKey)
	if err := server.RebuildSnapshot(context.Background()); err != nil {
		t.Fatalf("RebuildSnapshot failed: %v", err)
	}
	return server, memStore
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// HalfSplit returns params for a two-group 50/50 split named control/treatment.
func HalfSplit(key, env string) store.UpsertParams {
	return store.UpsertParams{
		Key: key,
		Env: env,
		Groups: []split.Group{
			{Name: "control", Weight: 1},
			{Name: "treatment", Weight: 1},
		},
	}
}

// SeedSplits populates the store with test splits. Callers serving the store
// through an api.Server must rebuild its snapshot afterwards.
func SeedSplits(ctx context.Context, st store.Store, splits []store.UpsertParams) error {
	for _, s := range splits {
		if _, err := st.UpsertSplit(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
