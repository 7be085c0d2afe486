package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TimurManjosov/sprida/internal/snapshot"
	"github.com/TimurManjosov/sprida/internal/store"
)

type sseEvent struct {
	Event string
	Data  map[string]string
}

// readEvents parses server-sent events from body until it closes.
func readEvents(t *testing.T, body *bufio.Scanner) <-chan sseEvent {
	t.Helper()
	events := make(chan sseEvent, 10)

	go func() {
		defer close(events)
		var name, data string
		for body.Scan() {
			line := body.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "" && name != "":
				var payload map[string]string
				_ = json.Unmarshal([]byte(data), &payload)
				events <- sseEvent{Event: name, Data: payload}
				name, data = "", ""
			}
		}
	}()

	return events
}

func nextEvent(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("stream closed before event")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return sseEvent{}
}

func openStream(t *testing.T, url string) (*http.Response, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/v1/splits/stream", nil)
	if err != nil {
		cancel()
		t.Fatalf("NewRequest failed: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("stream request failed: %v", err)
	}
	return resp, cancel
}

func TestStream_Headers(t *testing.T) {
	_, _, handler := newTestServer(t)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, cancel := openStream(t, ts.URL)
	defer cancel()
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected Content-Type 'text/event-stream', got %s", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Expected Cache-Control 'no-cache', got %s", cc)
	}
}

func TestStream_InitAndUpdate(t *testing.T) {
	srv, st, handler := newTestServer(t)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, cancel := openStream(t, ts.URL)
	defer cancel()
	defer resp.Body.Close()

	events := readEvents(t, bufio.NewScanner(resp.Body))

	init := nextEvent(t, events)
	if init.Event != "init" {
		t.Fatalf("Expected first event to be 'init', got '%s'", init.Event)
	}
	if init.Data["etag"] != snapshot.Load().ETag {
		t.Errorf("Expected init etag %s, got %s", snapshot.Load().ETag, init.Data["etag"])
	}

	seedSplit(t, srv, st, store.UpsertParams{Key: "streamed", Groups: halves()})

	update := nextEvent(t, events)
	if update.Event != "update" {
		t.Fatalf("Expected 'update' event, got '%s'", update.Event)
	}
	if update.Data["etag"] != snapshot.Load().ETag {
		t.Errorf("Expected update etag %s, got %s", snapshot.Load().ETag, update.Data["etag"])
	}
}

func TestStream_UnsubscribesOnDisconnect(t *testing.T) {
	_, _, handler := newTestServer(t)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	before := snapshot.Subscribers()

	resp, cancel := openStream(t, ts.URL)
	events := readEvents(t, bufio.NewScanner(resp.Body))
	nextEvent(t, events)

	if got := snapshot.Subscribers(); got != before+1 {
		t.Errorf("Expected %d subscribers while connected, got %d", before+1, got)
	}

	cancel()
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for snapshot.Subscribers() != before {
		if time.Now().After(deadline) {
			t.Fatalf("Expected subscriber to be removed, still %d", snapshot.Subscribers())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
