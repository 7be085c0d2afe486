package webhook

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// EventBuilder provides a fluent API for constructing webhook events.
// The event type follows from the states passed to WithStates.
//
//	event := webhook.NewEventBuilder(r).
//		ForSplit(env, key).
//		WithStates(before, after).
//		Build()
//	dispatcher.Dispatch(event)
type EventBuilder struct {
	event Event
}

// NewEventBuilder creates a builder carrying the request ID and client IP of r.
func NewEventBuilder(r *http.Request) *EventBuilder {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return &EventBuilder{
		event: Event{
			Timestamp: time.Now().UTC(),
			Metadata: Metadata{
				RequestID: middleware.GetReqID(r.Context()),
				IPAddress: ip,
			},
		},
	}
}

// ForSplit sets the split the event is about.
func (b *EventBuilder) ForSplit(env, key string) *EventBuilder {
	b.event.Environment = env
	b.event.Split = key
	return b
}

// WithStates sets the before and after states and derives the event type:
//   - before == nil, after != nil: created
//   - before != nil, after == nil: deleted
//   - both set: updated
func (b *EventBuilder) WithStates(before, after map[string]any) *EventBuilder {
	b.event.Data.Before = before
	b.event.Data.After = after

	switch {
	case before == nil && after != nil:
		b.event.Type = EventSplitCreated
	case before != nil && after == nil:
		b.event.Type = EventSplitDeleted
	case before != nil && after != nil:
		b.event.Type = EventSplitUpdated
	}
	return b
}

// WithChanges sets the changed fields.
func (b *EventBuilder) WithChanges(changes map[string]any) *EventBuilder {
	b.event.Data.Changes = changes
	return b
}

// WithETag sets the snapshot ETag the change produced.
func (b *EventBuilder) WithETag(etag string) *EventBuilder {
	b.event.ETag = etag
	return b
}

// Build returns the constructed Event.
func (b *EventBuilder) Build() Event {
	return b.event
}
