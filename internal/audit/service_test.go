package audit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/TimurManjosov/sprida/internal/split"
	"github.com/TimurManjosov/sprida/internal/store"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixedID struct{ id string }

func (g fixedID) Generate() string { return g.id }

type failingSink struct{}

func (failingSink) Write(context.Context, Event) error { return errors.New("disk full") }

// blockingSink holds every write until release is closed.
type blockingSink struct {
	release chan struct{}
	MemorySink
}

func (s *blockingSink) Write(ctx context.Context, e Event) error {
	<-s.release
	return s.MemorySink.Write(ctx, e)
}

func TestComputeChanges(t *testing.T) {
	tests := []struct {
		name   string
		before map[string]any
		after  map[string]any
		want   int // number of changes, -1 for nil
	}{
		{name: "no changes", before: map[string]any{"key": "value"}, after: map[string]any{"key": "value"}, want: -1},
		{name: "value changed", before: map[string]any{"key": "old"}, after: map[string]any{"key": "new"}, want: 1},
		{name: "key added", before: map[string]any{"a": 1}, after: map[string]any{"a": 1, "b": 2}, want: 1},
		{name: "key removed", before: map[string]any{"a": 1, "b": 2}, after: map[string]any{"a": 1}, want: 1},
		{name: "both nil", want: -1},
		{name: "created", after: map[string]any{"a": 1, "b": 2}, want: 2},
		{
			name:   "multiple changes",
			before: map[string]any{"a": 1, "b": 2, "c": 3},
			after:  map[string]any{"a": 10, "b": 2, "d": 4},
			want:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := ComputeChanges(tt.before, tt.after)
			if tt.want == -1 {
				if changes != nil {
					t.Errorf("expected nil, got %v", changes)
				}
				return
			}
			if len(changes) != tt.want {
				t.Errorf("expected %d changes, got %d: %v", tt.want, len(changes), changes)
			}
		})
	}
}

func TestRedactor(t *testing.T) {
	r := NewDefaultRedactor()

	out := r.Redact(map[string]any{
		"salt":   "pricing-2026",
		"key":    "checkout",
		"nested": map[string]any{"token": "abc", "url": "http://example.com"},
	})
	if out["salt"] != "[REDACTED]" {
		t.Errorf("salt not redacted: %v", out["salt"])
	}
	if out["key"] != "checkout" {
		t.Errorf("key should not be redacted: %v", out["key"])
	}
	nested := out["nested"].(map[string]any)
	if nested["token"] != "[REDACTED]" || nested["url"] != "http://example.com" {
		t.Errorf("unexpected nested redaction: %v", nested)
	}

	if got := r.Redact(map[string]any{"salt": ""})["salt"]; got != "" {
		t.Errorf("empty salt should stay empty, got %v", got)
	}
	if r.Redact(nil) != nil {
		t.Error("expected nil for nil input")
	}
}

func TestService_Log(t *testing.T) {
	sink := NewMemorySink()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(sink, 10, WithClock(fixedClock{now}), WithIDGenerator(fixedID{"evt-1"}))

	svc.Log(Event{
		Action:     ActionCreated,
		Split:      "checkout",
		Status:     StatusSuccess,
		AfterState: map[string]any{"salt": "s", "description": "d"},
	})
	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Action != "split.created" {
		t.Errorf("unexpected action name %q", e.Action)
	}
	if e.ID != "evt-1" || !e.OccurredAt.Equal(now) {
		t.Errorf("unexpected id/time: %s %v", e.ID, e.OccurredAt)
	}
	if e.AfterState["salt"] != "[REDACTED]" || e.AfterState["description"] != "d" {
		t.Errorf("unexpected after state: %v", e.AfterState)
	}
}

func TestService_CloseDrainsQueue(t *testing.T) {
	sink := NewMemorySink()
	svc := NewService(sink, 100)
	for i := 0; i < 50; i++ {
		svc.Log(Event{Action: ActionUpdated, Split: "s"})
	}
	_ = svc.Close()

	if got := len(sink.Events()); got != 50 {
		t.Errorf("expected 50 events after Close, got %d", got)
	}
	// Logging after Close is ignored and a second Close is a no-op.
	svc.Log(Event{Action: ActionUpdated})
	if err := svc.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

func TestService_DropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	svc := NewService(sink, 1)

	// One event is held by the worker, one fills the queue, the rest drop.
	for i := 0; i < 10; i++ {
		svc.Log(Event{Action: ActionUpdated})
	}
	if svc.Dropped() < 8 {
		t.Errorf("expected at least 8 dropped events, got %d", svc.Dropped())
	}
	close(sink.release)
	_ = svc.Close()
}

func TestService_SinkErrorsDoNotStopWorker(t *testing.T) {
	svc := NewService(failingSink{}, 10)
	svc.Log(Event{Action: ActionDeleted})
	svc.Log(Event{Action: ActionDeleted})
	if err := svc.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
}

func TestEventBuilder(t *testing.T) {
	req := httptest.NewRequest("PUT", "/v1/splits/checkout", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	req.Header.Set("User-Agent", "sprida-cli")
	req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-9"))

	before := &store.Split{
		Key:    "checkout",
		Env:    "prod",
		Groups: []split.Group{{Name: "a", Weight: 1}, {Name: "b", Weight: 1}},
	}
	after := &store.Split{
		Key:       "checkout",
		Env:       "prod",
		Groups:    []split.Group{{Name: "a", Weight: 9}, {Name: "b", Weight: 1}},
		UpdatedAt: time.Now(),
	}

	e := NewEventBuilder(req).
		ForSplit("prod", "checkout").
		WithActor(ActorKindAdmin, "admin").
		WithAction(ActionUpdated).
		WithStates(before, after).
		Build()

	if e.RequestID != "req-9" || e.Source.IPAddress != "10.0.0.7" || e.Source.UserAgent != "sprida-cli" {
		t.Errorf("unexpected request metadata: %+v %s", e.Source, e.RequestID)
	}
	if e.Actor.Kind != ActorKindAdmin || e.Status != StatusSuccess {
		t.Errorf("unexpected actor/status: %+v %s", e.Actor, e.Status)
	}
	if len(e.Changes) != 1 || e.Changes["groups"] == nil {
		t.Errorf("expected only groups to change, got %v", e.Changes)
	}

	failed := NewEventBuilder(req).WithAction(ActionAuthFailed).Failure("invalid token").Build()
	if failed.Status != StatusFailure || failed.ErrorMessage != "invalid token" || failed.Actor.Kind != ActorKindAnonymous {
		t.Errorf("unexpected failure event: %+v", failed)
	}
}
