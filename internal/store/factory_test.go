package store

import (
	"context"
	"strings"
	"testing"

	"github.com/TimurManjosov/sprida/internal/split"
)

func TestNewStore_Memory(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, "memory", "", 0)
	if err != nil {
		t.Fatalf("NewStore('memory') failed: %v", err)
	}
	defer store.Close()

	_, err = store.UpsertSplit(ctx, UpsertParams{
		Key:    "test",
		Groups: []split.Group{{Name: "all", Weight: 1}},
		Env:    "test",
	})
	if err != nil {
		t.Fatalf("UpsertSplit failed: %v", err)
	}

	splits, err := store.ListSplits(ctx, "test")
	if err != nil {
		t.Fatalf("ListSplits failed: %v", err)
	}
	if len(splits) != 1 {
		t.Errorf("Expected 1 split, got %d", len(splits))
	}
}

func TestNewStore_UnsupportedType(t *testing.T) {
	ctx := context.Background()
	_, err := NewStore(ctx, "invalid-type", "", 0)
	if err == nil {
		t.Fatal("Expected error for unsupported store type")
	}
	expectedMsg := "unsupported store type: invalid-type"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
}

func TestNewStore_PostgresWithInvalidDSN(t *testing.T) {
	ctx := context.Background()
	_, err := NewStore(ctx, "postgres", "invalid-dsn", 0)
	if err == nil {
		t.Fatal("Expected error for invalid DSN")
	}
	if !strings.Contains(err.Error(), "failed to create postgres pool") {
		t.Errorf("Expected pool creation error, got %v", err)
	}
}

func TestNewStore_CaseSensitivity(t *testing.T) {
	ctx := context.Background()

	if _, err := NewStore(ctx, "Memory", "", 0); err == nil {
		t.Error("Expected error for 'Memory' (capital M)")
	}
	if _, err := NewStore(ctx, "MEMORY", "", 0); err == nil {
		t.Error("Expected error for 'MEMORY' (all caps)")
	}
}
