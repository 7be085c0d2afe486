package audit

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/TimurManjosov/sprida/internal/store"
)

// EventBuilder provides a fluent API for constructing audit events.
//
//	event := audit.NewEventBuilder(r).
//		ForSplit(env, key).
//		WithAction(audit.ActionUpdated).
//		WithStates(before, after).
//		Build()
//	service.Log(event)
type EventBuilder struct {
	event Event
}

// NewEventBuilder creates a builder carrying the request ID and source of r.
// The actor defaults to anonymous.
func NewEventBuilder(r *http.Request) *EventBuilder {
	return &EventBuilder{
		event: Event{
			RequestID: middleware.GetReqID(r.Context()),
			Actor:     Actor{Kind: ActorKindAnonymous, Display: "anonymous"},
			Source: Source{
				IPAddress: clientIP(r),
				UserAgent: r.UserAgent(),
			},
			Status: StatusSuccess,
		},
	}
}

// ForSplit sets the split the event is about.
func (b *EventBuilder) ForSplit(env, key string) *EventBuilder {
	b.event.Environment = env
	b.event.Split = key
	return b
}

// WithActor sets who performed the action.
func (b *EventBuilder) WithActor(kind, display string) *EventBuilder {
	b.event.Actor = Actor{Kind: kind, Display: display}
	return b
}

// WithAction sets the action for the event (created, updated, deleted, etc.).
func (b *EventBuilder) WithAction(action string) *EventBuilder {
	b.event.Action = action
	return b
}

// WithStates records the split before and after the change and the fields
// that differ. Either side may be nil.
func (b *EventBuilder) WithStates(before, after *store.Split) *EventBuilder {
	b.event.BeforeState = SplitState(before)
	b.event.AfterState = SplitState(after)
	b.event.Changes = ComputeChanges(b.event.BeforeState, b.event.AfterState)
	return b
}

// Failure marks the event as failed and sets an error message.
func (b *EventBuilder) Failure(errorMsg string) *EventBuilder {
	b.event.Status = StatusFailure
	b.event.ErrorMessage = errorMsg
	return b
}

// Build returns the constructed Event.
func (b *EventBuilder) Build() Event {
	return b.event
}

// SplitState flattens a split into the generic map stored with events.
// UpdatedAt is left out so that timestamps alone never count as a change.
func SplitState(s *store.Split) map[string]any {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var state map[string]any
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil
	}
	delete(state, "updatedAt")
	return state
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
