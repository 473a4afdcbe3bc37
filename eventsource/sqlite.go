package eventsource

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists event streams in a SQLite database. The schema
// keeps a unique (stream, version) index for optimistic concurrency and a
// type index so notification records can be queried by kind.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed store at path.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc.org/sqlite serializes through a single connection; pooling
	// additional ones only invites SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	PRAGMA journal_mode = WAL;

	CREATE TABLE IF NOT EXISTS events (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL,
		stream_id  TEXT NOT NULL,
		type       TEXT NOT NULL,
		version    INTEGER NOT NULL,
		data       TEXT,
		timestamp  DATETIME NOT NULL,
		UNIQUE (stream_id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, streamID string, expectedVersion int, events []*Event) (int, error) {
	if len(events) == 0 {
		return s.StreamVersion(ctx, streamID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return -1, err
	}
	defer tx.Rollback()

	current, err := streamVersionTx(ctx, tx, streamID)
	if err != nil {
		return -1, err
	}
	if expectedVersion != current {
		return current, ErrConcurrencyConflict
	}

	version := current
	for _, e := range events {
		version++
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, stream_id, type, version, data, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, streamID, e.Type, version, string(e.Data), e.Timestamp)
		if err != nil {
			return -1, fmt.Errorf("insert event: %w", err)
		}
		e.StreamID = streamID
		e.Version = version
	}

	if err := tx.Commit(); err != nil {
		return -1, err
	}
	return version, nil
}

// Read implements Store.
func (s *SQLiteStore) Read(ctx context.Context, streamID string, fromVersion int) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stream_id, type, version, data, timestamp
		 FROM events WHERE stream_id = ? AND version >= ?
		 ORDER BY version`,
		streamID, fromVersion)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ReadAll implements Store.
func (s *SQLiteStore) ReadAll(ctx context.Context, filter EventFilter) ([]*Event, error) {
	query := `SELECT id, stream_id, type, version, data, timestamp FROM events`
	var (
		conds []string
		args  []any
	)
	if filter.StreamID != "" {
		conds = append(conds, "stream_id = ?")
		args = append(args, filter.StreamID)
	}
	if len(filter.Types) > 0 {
		placeholders := ""
		for i, t := range filter.Types {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, t)
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
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// StreamVersion implements Store.
func (s *SQLiteStore) StreamVersion(ctx context.Context, streamID string) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE stream_id = ?`, streamID).Scan(&version)
	if err != nil {
		return -1, err
	}
	if !version.Valid {
		return -1, nil
	}
	return int(version.Int64), nil
}

// DeleteStream implements Store.
func (s *SQLiteStore) DeleteStream(ctx context.Context, streamID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE stream_id = ?`, streamID)
	return err
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func streamVersionTx(ctx context.Context, tx *sql.Tx, streamID string) (int, error) {
	var version sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE stream_id = ?`, streamID).Scan(&version)
	if err != nil {
		return -1, err
	}
	if !version.Valid {
		return -1, nil
	}
	return int(version.Int64), nil
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		var (
			e    Event
			data sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.StreamID, &e.Type, &e.Version, &data, &e.Timestamp); err != nil {
			return nil, err
		}
		if data.Valid && data.String != "" {
			e.Data = []byte(data.String)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
