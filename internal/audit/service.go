// Package audit records who changed which split, and how, off the request path.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Action constants for audit logging
const (
	ActionCreated    = "split.created"
	ActionUpdated    = "split.updated"
	ActionDeleted    = "split.deleted"
	ActionAuthFailed = "auth.failed"
)

// Status constants for audit logging
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ActorKind constants for audit logging
const (
	ActorKindAdmin     = "admin_key"
	ActorKindAPIKey    = "api_key"
	ActorKindAnonymous = "anonymous"
)

const writeTimeout = 5 * time.Second

// Clock interface for testable time operations
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator interface for testable ID generation
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator implements IDGenerator using random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() string { return uuid.NewString() }

// Redactor removes sensitive values from recorded split states.
type Redactor interface {
	Redact(data map[string]any) map[string]any
}

// DefaultRedactor replaces the listed top-level and nested keys with a marker.
type DefaultRedactor struct {
	sensitiveKeys map[string]bool
}

// NewDefaultRedactor redacts salts and credentials. A leaked salt lets anyone
// predict assignments of a hashed split.
func NewDefaultRedactor() *DefaultRedactor {
	return &DefaultRedactor{
		sensitiveKeys: map[string]bool{
			"salt": true, "secret": true, "token": true,
			"authorization": true, "api_key": true,
		},
	}
}

func (r *DefaultRedactor) Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	redacted := make(map[string]any, len(data))
	for k, v := range data {
		switch {
		case r.sensitiveKeys[k]:
			if s, ok := v.(string); ok && s == "" {
				redacted[k] = ""
			} else {
				redacted[k] = "[REDACTED]"
			}
		default:
			if nested, ok := v.(map[string]any); ok {
				redacted[k] = r.Redact(nested)
			} else {
				redacted[k] = v
			}
		}
	}
	return redacted
}

// Actor represents who performed the action
type Actor struct {
	Kind    string `json:"kind"`
	Display string `json:"display"`
}

// Source represents request metadata
type Source struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Event is one recorded change to a split.
type Event struct {
	ID           string         `json:"id"`
	OccurredAt   time.Time      `json:"occurred_at"`
	RequestID    string         `json:"request_id"`
	Actor        Actor          `json:"actor"`
	Source       Source         `json:"source"`
	Action       string         `json:"action"`
	Split        string         `json:"split"`
	Environment  string         `json:"environment"`
	BeforeState  map[string]any `json:"before_state,omitempty"`
	AfterState   map[string]any `json:"after_state,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Service queues events and writes them to a Sink from a background worker,
// so a slow sink never delays an API response.
type Service struct {
	sink     Sink
	clock    Clock
	idgen    IDGenerator
	redactor Redactor
	logger   zerolog.Logger

	mu      sync.RWMutex
	queue   chan Event
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the event timestamp source.
func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

// WithIDGenerator overrides how event IDs are generated.
func WithIDGenerator(g IDGenerator) Option { return func(s *Service) { s.idgen = g } }

// WithRedactor overrides the redaction of split states.
func WithRedactor(r Redactor) Option { return func(s *Service) { s.redactor = r } }

// WithLogger sets the logger sink failures are reported to.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService creates a new audit service and starts its worker.
func NewService(sink Sink, queueSize int, opts ...Option) *Service {
	if queueSize <= 0 {
		queueSize = 1
	}
	s := &Service{
		sink:     sink,
		clock:    SystemClock{},
		idgen:    UUIDGenerator{},
		redactor: NewDefaultRedactor(),
		logger:   zerolog.Nop(),
		queue:    make(chan Event, queueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.worker()
	return s
}

func (s *Service) worker() {
	defer close(s.done)
	for event := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.sink.Write(ctx, event); err != nil {
			s.logger.Error().Err(err).
				Str("split", event.Split).
				Str("action", event.Action).
				Msg("audit: failed to write event")
		}
		cancel()
	}
}

// Log queues an event. It never blocks: when the queue is full the event is
// dropped and counted.
func (s *Service) Log(event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}
	if event.ID == "" {
		event.ID = s.idgen.Generate()
	}
	if event.BeforeState != nil {
		event.BeforeState = s.redactor.Redact(event.BeforeState)
	}
	if event.AfterState != nil {
		event.AfterState = s.redactor.Redact(event.AfterState)
	}
	if event.Changes != nil {
		event.Changes = s.redactor.Redact(event.Changes)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return
	}

	select {
	case s.queue <- event:
	default:
		s.dropped.Add(1)
		s.logger.Warn().
			Str("split", event.Split).
			Str("action", event.Action).
			Msg("audit: queue full, dropping event")
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (s *Service) Dropped() int64 { return s.dropped.Load() }

// Close stops accepting events and waits until every queued event has been
// written. Calling Close more than once is a no-op.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed.Swap(true) {
		s.mu.Unlock()
		return nil
	}
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return nil
}

// ComputeChanges returns the fields that differ between before and after, as
// {"field": {"before": x, "after": y}}, or nil when nothing changed.
func ComputeChanges(before, after map[string]any) map[string]any {
	if before == nil && after == nil {
		return nil
	}
	if before == nil {
		before = make(map[string]any)
	}
	if after == nil {
		after = make(map[string]any)
	}

	changes := make(map[string]any)
	for key, afterVal := range after {
		beforeVal, existedBefore := before[key]
		beforeJSON, _ := json.Marshal(beforeVal)
		afterJSON, _ := json.Marshal(afterVal)
		if !existedBefore || string(beforeJSON) != string(afterJSON) {
			changes[key] = map[string]any{"before": beforeVal, "after": afterVal}
		}
	}
	for key, beforeVal := range before {
		if _, existsAfter := after[key]; !existsAfter {
			changes[key] = map[string]any{"before": beforeVal, "after": nil}
		}
	}

	if len(changes) == 0 {
		return nil
	}
	return changes
}
