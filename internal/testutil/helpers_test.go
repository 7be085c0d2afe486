package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/TimurManjosov/sprida/internal/store"
)

func TestNewTestServer(t *testing.T) {
	server, memStore := NewTestServer(t, "test", "test-key")

	if server == nil {
		t.Fatal("Expected non-nil server")
	}
	if memStore == nil {
		t.Fatal("Expected non-nil store")
	}

	// Verify the store is functional
	if _, err := memStore.UpsertSplit(context.Background(), HalfSplit("test", "test")); err != nil {
		t.Fatalf("Store should be functional: %v", err)
	}
}

func TestHTTPRequest_Do(t *testing.T) {
	server, _ := NewTestServer(t, "test", "test-key")

	rr := (&HTTPRequest{Method: "GET", Path: "/healthz"}).Do(t, server.Router())

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestHTTPRequest_DoWithBody(t *testing.T) {
	server, _ := NewTestServer(t, "test", "test-key")

	req := &HTTPRequest{
		Method: "PUT",
		Path:   "/v1/splits/checkout",
		Body:   `{"groups":[{"name":"a","weight":1}]}`,
		Headers: map[string]string{
			"Authorization": "Bearer test-key",
		},
	}

	rr := req.Do(t, server.Router())
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHTTPRequest_DoWithHeaders(t *testing.T) {
	server, _ := NewTestServer(t, "test", "test-key")
	handler := server.Router()

	first := (&HTTPRequest{Method: "GET", Path: "/v1/splits"}).Do(t, handler)
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("Expected ETag header")
	}

	req := &HTTPRequest{
		Method:  "GET",
		Path:    "/v1/splits",
		Headers: map[string]string{"If-None-Match": etag},
	}
	if rr := req.Do(t, handler); rr.Code != http.StatusNotModified {
		t.Errorf("Expected status 304, got %d", rr.Code)
	}
}

func TestSeedSplits(t *testing.T) {
	server, memStore := NewTestServer(t, "test", "test-key")
	ctx := context.Background()

	splits := []store.UpsertParams{
		HalfSplit("split1", "test"),
		HalfSplit("split2", "test"),
		HalfSplit("split3", "other"),
	}
	if err := SeedSplits(ctx, memStore, splits); err != nil {
		t.Fatalf("SeedSplits failed: %v", err)
	}

	got, err := memStore.ListSplits(ctx, "test")
	if err != nil {
		t.Fatalf("ListSplits failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 splits, got %d", len(got))
	}

	if err := server.RebuildSnapshot(ctx); err != nil {
		t.Fatalf("RebuildSnapshot failed: %v", err)
	}
	rr := (&HTTPRequest{Method: "GET", Path: "/v1/splits"}).Do(t, server.Router())
	var body struct {
		Splits map[string]store.Split `json:"splits"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if len(body.Splits) != 2 {
		t.Errorf("Expected 2 served splits, got %d", len(body.Splits))
	}
}

func TestSeedSplits_EmptyList(t *testing.T) {
	_, memStore := NewTestServer(t, "test", "test-key")
	ctx := context.Background()

	if err := SeedSplits(ctx, memStore, nil); err != nil {
		t.Fatalf("SeedSplits with empty list should not fail: %v", err)
	}

	got, err := memStore.ListSplits(ctx, "test")
	if err != nil {
		t.Fatalf("ListSplits failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected 0 splits, got %d", len(got))
	}
}
