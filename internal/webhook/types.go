package webhook

import (
	"slices"
	"time"
)

// Event types that can trigger webhooks
const (
	EventSplitCreated = "split.created"
	EventSplitUpdated = "split.updated"
	EventSplitDeleted = "split.deleted"
)

// Event is the JSON body posted to webhook endpoints.
type Event struct {
	Type        string    `json:"event"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
	Split       string    `json:"split"`
	ETag        string    `json:"etag,omitempty"`
	Data        EventData `json:"data"`
	Metadata    Metadata  `json:"metadata"`
}

// EventData contains the before/after state and changes
type EventData struct {
	Before  map[string]any `json:"before,omitempty"`
	After   map[string]any `json:"after,omitempty"`
	Changes map[string]any `json:"changes,omitempty"`
}

// Metadata contains additional context about the event
type Metadata struct {
	IPAddress string `json:"ipAddress,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Endpoint is one subscribed receiver.
type Endpoint struct {
	URL    string
	Secret string
	// Events the endpoint receives; empty means all.
	Events []string
	// Environments the endpoint receives; empty means all.
	Environments []string
	MaxRetries   int
	Timeout      time.Duration
}

// Matches reports whether the endpoint subscribes to event.
func (e Endpoint) Matches(event Event) bool {
	if len(e.Events) > 0 && !slices.Contains(e.Events, event.Type) {
		return false
	}
	if len(e.Environments) > 0 && !slices.Contains(e.Environments, event.Environment) {
		return false
	}
	return true
}
