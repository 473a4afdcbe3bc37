package eventsource

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrConcurrencyConflict is returned by Append when the stream head does
// not match the expected version.
var ErrConcurrencyConflict = errors.New("eventsource: stream version conflict")

// EventFilter narrows ReadAll results. Zero values match everything.
type EventFilter struct {
	// StreamID limits results to a single stream.
	StreamID string

	// Types limits results to the given event types.
	Types []string

	// Limit caps the number of returned events; 0 means no cap.
	Limit int
}

// Store is an append-only event store with optimistic concurrency.
// Append with expectedVersion -1 creates the stream; any other value must
// match the current head or ErrConcurrencyConflict is returned.
type Store interface {
	// Append atomically adds events to a stream and returns the new head
	// version. Versions are assigned contiguously starting at 0.
	Append(ctx context.Context, streamID string, expectedVersion int, events []*Event) (int, error)

	// Read returns a stream's events from the given version onward, in
	// version order.
	Read(ctx context.Context, streamID string, fromVersion int) ([]*Event, error)

	// ReadAll returns events across streams matching the filter, in
	// global append order.
	ReadAll(ctx context.Context, filter EventFilter) ([]*Event, error)

	// StreamVersion returns a stream's head version, or -1 if the stream
	// does not exist.
	StreamVersion(ctx context.Context, streamID string) (int, error)

	// DeleteStream removes a stream and all its events.
	DeleteStream(ctx context.Context, streamID string) error

	// Close releases backend resources.
	Close() error
}

func matchesFilter(e *Event, filter EventFilter) bool {
	if filter.StreamID != "" && e.StreamID != filter.StreamID {
		return false
	}
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MemoryStore is an in-memory Store for tests and ephemeral hosts.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]*Event
	order   []*Event // global append order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string][]*Event),
	}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, streamID string, expectedVersion int, events []*Event) (int, error) {
	if len(events) == 0 {
		return s.StreamVersion(ctx, streamID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := len(s.streams[streamID]) - 1
	if expectedVersion != current {
		return current, ErrConcurrencyConflict
	}

	version := current
	for _, e := range events {
		version++
		stored := *e
		stored.StreamID = streamID
		stored.Version = version
		s.streams[streamID] = append(s.streams[streamID], &stored)
		s.order = append(s.order, &stored)
		e.Version = version
	}
	return version, nil
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context, streamID string, fromVersion int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[streamID]
	var events []*Event
	for _, e := range stream {
		if e.Version >= fromVersion {
			copied := *e
			events = append(events, &copied)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Version < events[j].Version })
	return events, nil
}

// ReadAll implements Store.
func (s *MemoryStore) ReadAll(ctx context.Context, filter EventFilter) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*Event
	for _, e := range s.order {
		if !matchesFilter(e, filter) {
			continue
		}
		copied := *e
		events = append(events, &copied)
		if filter.Limit > 0 && len(events) >= filter.Limit {
			break
		}
	}
	return events, nil
}

// StreamVersion implements Store.
func (s *MemoryStore) StreamVersion(ctx context.Context, streamID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams[streamID]) - 1, nil
}

// DeleteStream implements Store.
func (s *MemoryStore) DeleteStream(ctx context.Context, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.streams, streamID)
	filtered := s.order[:0]
	for _, e := range s.order {
		if e.StreamID != streamID {
			filtered = append(filtered, e)
		}
	}
	s.order = filtered
	return nil
}

// Close implements Store. It is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
