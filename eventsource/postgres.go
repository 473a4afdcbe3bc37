package eventsource

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
)

// PostgresStore persists event streams in PostgreSQL. Same contract as
// SQLiteStore; intended for hosts that already run Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to Postgres with the given DSN and ensures
// the schema exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		seq        BIGSERIAL PRIMARY KEY,
		id         TEXT NOT NULL,
		stream_id  TEXT NOT NULL,
		type       TEXT NOT NULL,
		version    INTEGER NOT NULL,
		data       JSONB,
		timestamp  TIMESTAMPTZ NOT NULL,
		UNIQUE (stream_id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, streamID string, expectedVersion int, events []*Event) (int, error) {
	if len(events) == 0 {
		return s.StreamVersion(ctx, streamID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return -1, err
	}
	defer tx.Rollback()

	var version sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE stream_id = $1`, streamID).Scan(&version)
	if err != nil {
		return -1, err
	}
	current := -1
	if version.Valid {
		current = int(version.Int64)
	}
	if expectedVersion != current {
		return current, ErrConcurrencyConflict
	}

	next := current
	for _, e := range events {
		next++
		var data any
		if len(e.Data) > 0 {
			data = string(e.Data)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, stream_id, type, version, data, timestamp)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, streamID, e.Type, next, data, e.Timestamp)
		if err != nil {
			return -1, fmt.Errorf("insert event: %w", err)
		}
		e.StreamID = streamID
		e.Version = next
	}

	if err := tx.Commit(); err != nil {
		return -1, err
	}
	return next, nil
}

// Read implements Store.
func (s *PostgresStore) Read(ctx context.Context, streamID string, fromVersion int) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stream_id, type, version, data, timestamp
		 FROM events WHERE stream_id = $1 AND version >= $2
		 ORDER BY version`,
		streamID, fromVersion)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ReadAll implements Store.
func (s *PostgresStore) ReadAll(ctx context.Context, filter EventFilter) ([]*Event, error) {
	query := `SELECT id, stream_id, type, version, data, timestamp FROM events`
	var (
		conds []string
		args  []any
	)
	if filter.StreamID != "" {
		args = append(args, filter.StreamID)
		conds = append(conds, "stream_id = $"+strconv.Itoa(len(args)))
	}
	if len(filter.Types) > 0 {
		placeholders := ""
		for i, t := range filter.Types {
			args = append(args, t)
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "$" + strconv.Itoa(len(args))
		}
		conds = append(conds, "type IN ("+placeholders+")")
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY seq"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// StreamVersion implements Store.
func (s *PostgresStore) StreamVersion(ctx context.Context, streamID string) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE stream_id = $1`, streamID).Scan(&version)
	if err != nil {
		return -1, err
	}
	if !version.Valid {
		return -1, nil
	}
	return int(version.Int64), nil
}

// DeleteStream implements Store.
func (s *PostgresStore) DeleteStream(ctx context.Context, streamID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE stream_id = $1`, streamID)
	return err
}

// Close implements Store.
func (s *PostgresStore) Close() error { return s.db.Close() }

var _ Store = (*PostgresStore)(nil)
