package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// LogSink writes events as structured log lines.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(_ context.Context, event Event) error {
	e := s.logger.Info()
	if event.Status == StatusFailure {
		e = s.logger.Warn()
	}
	e.Str("audit_id", event.ID).
		Str("request_id", event.RequestID).
		Str("actor", event.Actor.Display).
		Str("ip", event.Source.IPAddress).
		Str("action", event.Action).
		Str("split", event.Split).
		Str("env", event.Environment).
		Str("status", event.Status).
		Interface("changes", event.Changes).
		Msg("audit")
	return nil
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the recorded events in write order.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS split_audit_log (
	id            UUID        PRIMARY KEY,
	occurred_at   TIMESTAMPTZ NOT NULL,
	request_id    TEXT        NOT NULL DEFAULT '',
	actor         JSONB       NOT NULL,
	ip_address    TEXT        NOT NULL DEFAULT '',
	user_agent    TEXT        NOT NULL DEFAULT '',
	action        TEXT        NOT NULL,
	env           TEXT        NOT NULL,
	split_key     TEXT        NOT NULL,
	before_state  JSONB,
	after_state   JSONB,
	changes       JSONB,
	status        TEXT        NOT NULL,
	error_message TEXT        NOT NULL DEFAULT ''
)`

const insertAuditSQL = `
INSERT INTO split_audit_log (
	id, occurred_at, request_id, actor, ip_address, user_agent,
	action, env, split_key, before_state, after_state, changes, status, error_message
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// PostgresSink stores events in the split_audit_log table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink creates a sink using pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// EnsureSchema creates the audit table if it does not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, auditSchema); err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	return nil
}

func (s *PostgresSink) Write(ctx context.Context, event Event) error {
	actor, err := json.Marshal(event.Actor)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, insertAuditSQL,
		event.ID,
		event.OccurredAt,
		event.RequestID,
		actor,
		event.Source.IPAddress,
		event.Source.UserAgent,
		event.Action,
		event.Environment,
		event.Split,
		jsonOrNil(event.BeforeState),
		jsonOrNil(event.AfterState),
		jsonOrNil(event.Changes),
		event.Status,
		event.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert audit event %s: %w", event.ID, err)
	}
	return nil
}

func jsonOrNil(m map[string]any) []byte {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}
