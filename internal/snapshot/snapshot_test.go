package snapshot

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/TimurManjosov/sprida/internal/grouping"
	"github.com/TimurManjosov/sprida/internal/split"
	"github.com/TimurManjosov/sprida/internal/store"
)

func testSplits() []store.Split {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []store.Split{
		{
			Key:       "checkout",
			Groups:    []split.Group{{Name: "control", Weight: 1}, {Name: "treatment", Weight: 1}},
			Env:       "prod",
			UpdatedAt: now,
		},
		{
			Key:       "binary",
			Alphabet:  "01",
			Groups:    []split.Group{{Name: "big", Weight: 6}, {Name: "small", Weight: 2}},
			Env:       "prod",
			UpdatedAt: now,
		},
	}
}

func TestBuild_Empty(t *testing.T) {
	snap, err := Build(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Splits) != 0 {
		t.Errorf("Expected 0 splits, got %d", len(snap.Splits))
	}
	if snap.ETag == "" {
		t.Error("Expected non-empty ETag")
	}
}

func TestBuild_CompilesSplits(t *testing.T) {
	snap, err := Build(testSplits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if keys := snap.Keys(); len(keys) != 2 || keys[0] != "binary" || keys[1] != "checkout" {
		t.Errorf("Expected sorted keys [binary checkout], got %v", keys)
	}

	c, ok := snap.Compiled("binary")
	if !ok {
		t.Fatal("binary split not compiled")
	}
	a, err := c.Assign("111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Group != "small" {
		t.Errorf("Expected group small, got %s", a.Group)
	}
	if len(snap.All()) != 2 {
		t.Errorf("Expected 2 compiled splits, got %d", len(snap.All()))
	}
}

func TestBuild_SkipsInvalidSplits(t *testing.T) {
	splits := append(testSplits(), store.Split{Key: "broken", Env: "prod"})

	snap, err := Build(splits)
	if !errors.Is(err, grouping.ErrNoGroups) {
		t.Errorf("Expected ErrNoGroups in build error, got %v", err)
	}
	if _, ok := snap.Compiled("broken"); ok {
		t.Error("Expected broken split to be skipped")
	}
	if len(snap.Splits) != 2 {
		t.Errorf("Expected 2 valid splits, got %d", len(snap.Splits))
	}
}

func TestBuild_ETagsDeterministic(t *testing.T) {
	snap1, _ := Build(testSplits())
	snap2, _ := Build(testSplits())
	if snap1.ETag != snap2.ETag {
		t.Errorf("Expected deterministic ETags, got %s and %s", snap1.ETag, snap2.ETag)
	}

	changed := testSplits()
	changed[0].Groups[0].Weight = 3
	snap3, _ := Build(changed)
	if snap3.ETag == snap1.ETag {
		t.Error("Expected ETag to change when weights change")
	}
}

func TestUpdateAndLoad(t *testing.T) {
	snap, _ := Build(testSplits())
	updates, unsub := Subscribe()
	defer unsub()

	Update(snap)

	if Load().ETag != snap.ETag {
		t.Errorf("Expected loaded ETag %s, got %s", snap.ETag, Load().ETag)
	}
	select {
	case etag := <-updates:
		if etag != snap.ETag {
			t.Errorf("Expected published ETag %s, got %s", snap.ETag, etag)
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for update notification")
	}
}

func TestLoad_ConcurrentWithUpdate(t *testing.T) {
	snap, _ := Build(testSplits())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Update(snap)
		}()
		go func() {
			defer wg.Done()
			s := Load()
			if s.Splits == nil {
				t.Error("Load returned snapshot with nil splits")
			}
		}()
	}
	wg.Wait()
}
