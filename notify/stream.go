package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pflow-xyz/go-ledger/eventsource"
	"github.com/pflow-xyz/go-ledger/token"
)

// Stream appends notification records to a durable event stream, keyed by
// record type so hosts can query indexed fields (Mint by recipient,
// Transfer by either side, and so on) straight from the store.
//
// State has already committed when Emit runs, so append failures are
// logged and retained for Err rather than propagated.
type Stream struct {
	store    eventsource.Store
	streamID string
	logger   *slog.Logger

	mu      sync.Mutex
	version int
	lastErr error
}

// NewStream creates a stream sink. It resolves the stream's current head
// so an existing notification log is extended, not forked.
func NewStream(ctx context.Context, store eventsource.Store, streamID string, logger *slog.Logger) (*Stream, error) {
	if logger == nil {
		logger = slog.Default()
	}
	version, err := store.StreamVersion(ctx, streamID)
	if err != nil {
		return nil, err
	}
	return &Stream{
		store:    store,
		streamID: streamID,
		logger:   logger,
		version:  version,
	}, nil
}

// Emit implements token.Sink.
func (s *Stream) Emit(e token.Event) {
	record := Flatten(e)

	event, err := eventsource.NewEvent(s.streamID, record.Type, record)
	if err != nil {
		s.fail(err, record.Type)
		return
	}

	s.mu.Lock()
	version, err := s.store.Append(context.Background(), s.streamID, s.version, []*eventsource.Event{event})
	if err == nil {
		s.version = version
	}
	s.mu.Unlock()

	if err != nil {
		s.fail(err, record.Type)
	}
}

// Err returns the most recent delivery failure, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Records reads the notification log back, optionally filtered by types.
func (s *Stream) Records(ctx context.Context, types ...string) ([]Record, error) {
	events, err := s.store.ReadAll(ctx, eventsource.EventFilter{
		StreamID: s.streamID,
		Types:    types,
	})
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(events))
	for _, e := range events {
		var r Record
		if err := e.Decode(&r); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *Stream) fail(err error, recordType string) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.logger.Error("notification delivery failed",
		slog.String("stream", s.streamID),
		slog.String("type", recordType),
		slog.String("error", err.Error()))
}

var _ token.Sink = (*Stream)(nil)
