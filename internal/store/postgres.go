package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS splits (
	env              TEXT        NOT NULL,
	key              TEXT        NOT NULL,
	description      TEXT        NOT NULL DEFAULT '',
	alphabet         TEXT        NOT NULL DEFAULT '',
	case_insensitive BOOLEAN     NOT NULL DEFAULT FALSE,
	salt             TEXT        NOT NULL DEFAULT '',
	groups           JSONB       NOT NULL DEFAULT '[]'::jsonb,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (env, key)
)`

const (
	selectColumns = `key, description, alphabet, case_insensitive, salt, groups, env, updated_at`

	listSplitsSQL = `SELECT ` + selectColumns + ` FROM splits WHERE env = $1 ORDER BY key`

	getSplitSQL = `SELECT ` + selectColumns + ` FROM splits WHERE env = $1 AND key = $2`

	upsertSplitSQL = `
INSERT INTO splits (env, key, description, alphabet, case_insensitive, salt, groups, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (env, key) DO UPDATE SET
	description      = EXCLUDED.description,
	alphabet         = EXCLUDED.alphabet,
	case_insensitive = EXCLUDED.case_insensitive,
	salt             = EXCLUDED.salt,
	groups           = EXCLUDED.groups,
	updated_at       = now()
RETURNING ` + selectColumns

	deleteSplitSQL = `DELETE FROM splits WHERE env = $1 AND key = $2`
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the splits table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create splits table: %w", err)
	}
	return nil
}

// ListSplits retrieves all splits for the given environment from the database.
func (p *PostgresStore) ListSplits(ctx context.Context, env string) ([]Split, error) {
	rows, err := p.pool.Query(ctx, listSplitsSQL, env)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	splits := make([]Split, 0)
	for rows.Next() {
		s, err := scanSplit(rows)
		if err != nil {
			return nil, err
		}
		splits = append(splits, s)
	}
	return splits, rows.Err()
}

// GetSplit retrieves a single split from the database.
func (p *PostgresStore) GetSplit(ctx context.Context, env, key string) (*Split, error) {
	s, err := scanSplit(p.pool.QueryRow(ctx, getSplitSQL, env, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// UpsertSplit creates or updates a split in the database.
func (p *PostgresStore) UpsertSplit(ctx context.Context, params UpsertParams) (*Split, error) {
	groups, err := marshalGroups(params)
	if err != nil {
		return nil, err
	}

	s, err := scanSplit(p.pool.QueryRow(ctx, upsertSplitSQL,
		params.Env,
		params.Key,
		params.Description,
		params.Alphabet,
		params.CaseInsensitive,
		params.Salt,
		groups,
	))
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSplit removes a split from the database.
func (p *PostgresStore) DeleteSplit(ctx context.Context, env, key string) error {
	_, err := p.pool.Exec(ctx, deleteSplitSQL, env, key)
	return err
}

// Pool exposes the connection pool so other tables (audit log) can share it.
func (p *PostgresStore) Pool() *pgxpool.Pool { return p.pool }

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func marshalGroups(params UpsertParams) ([]byte, error) {
	if params.Groups == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal(params.Groups)
	if err != nil {
		return nil, fmt.Errorf("encode groups of %s: %w", params.Key, err)
	}
	return b, nil
}

// scanSplit reads one row in selectColumns order.
func scanSplit(row pgx.Row) (Split, error) {
	var (
		s      Split
		groups []byte
	)
	if err := row.Scan(
		&s.Key,
		&s.Description,
		&s.Alphabet,
		&s.CaseInsensitive,
		&s.Salt,
		&groups,
		&s.Env,
		&s.UpdatedAt,
	); err != nil {
		return Split{}, err
	}
	if err := unmarshalGroups(groups, &s); err != nil {
		return Split{}, err
	}
	return s, nil
}

func unmarshalGroups(raw []byte, s *Split) error {
	if len(raw) == 0 || string(raw) == "null" {
		s.Groups = nil
		return nil
	}
	if err := json.Unmarshal(raw, &s.Groups); err != nil {
		return fmt.Errorf("decode groups of %s: %w", s.Key, err)
	}
	return nil
}
