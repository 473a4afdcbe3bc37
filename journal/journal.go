// Package journal makes a ledger durable by recording every accepted
// operation as an event in an append-only stream. Replaying the stream
// re-executes the operations in order and reproduces the exact ledger
// state, including compliance flags and allowance decrements that the
// public notification records alone do not capture.
package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/pflow-xyz/go-ledger/eventsource"
	"github.com/pflow-xyz/go-ledger/token"
)

// ErrNotFound is returned by Replay when the stream does not exist.
var ErrNotFound = errors.New("journal: stream not found")

// ErrCorrupt is returned when a stream cannot be replayed: a missing or
// malformed created record, an undecodable payload, or an operation the
// ledger rejects on re-execution.
var ErrCorrupt = errors.New("journal: corrupt stream")

// Operation event types recorded in the stream. The first event of every
// stream is TypeCreated.
const (
	TypeCreated      = "created"
	TypeMint         = "mint"
	TypeBurn         = "burn"
	TypeTransfer     = "transfer"
	TypeApprove      = "approve"
	TypeTransferFrom = "transfer_from"
	TypeBatch        = "batch_transfer"
	TypePause        = "pause"
	TypeUnpause      = "unpause"
	TypeBlacklist    = "blacklist"
	TypeUnblacklist  = "unblacklist"
)

type createdPayload struct {
	Owner            string `json:"owner"`
	LegacyBatchDebit bool   `json:"legacy_batch_debit,omitempty"`
}

type opPayload struct {
	Caller     string   `json:"caller"`
	To         string   `json:"to,omitempty"`
	From       string   `json:"from,omitempty"`
	Spender    string   `json:"spender,omitempty"`
	Account    string   `json:"account,omitempty"`
	Amount     string   `json:"amount,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
	Amounts    []string `json:"amounts,omitempty"`
}

// Ledger wraps a token.Ledger with a durable operation journal. Every
// mutating call is first validated against a throwaway clone, then
// appended to the stream, and only then applied to the live ledger, so a
// failed append never leaves the ledger ahead of its journal.
type Ledger struct {
	inner    *token.Ledger
	store    eventsource.Store
	streamID string
	version  int
}

// Create starts a new journaled ledger: it writes the created record and
// returns the wrapper. Fails if the stream already exists.
func Create(ctx context.Context, store eventsource.Store, streamID string, creator token.Address, opts ...token.Option) (*Ledger, error) {
	inner := token.New(creator, opts...)

	event, err := eventsource.NewEvent(streamID, TypeCreated, createdPayload{
		Owner:            string(creator),
		LegacyBatchDebit: inner.LegacyBatchDebit(),
	})
	if err != nil {
		return nil, err
	}
	version, err := store.Append(ctx, streamID, -1, []*eventsource.Event{event})
	if err != nil {
		return nil, fmt.Errorf("journal: create stream: %w", err)
	}

	return &Ledger{inner: inner, store: store, streamID: streamID, version: version}, nil
}

// Open replays an existing stream, or creates it when absent. Options are
// applied to the restored ledger after replay completes, so sinks see none
// of the replayed history, only new operations. The batch debit mode is
// fixed by the created record; asking for legacy debit on a stream created
// without it fails, since later replays could not reproduce the live state.
func Open(ctx context.Context, store eventsource.Store, streamID string, creator token.Address, opts ...token.Option) (*Ledger, error) {
	l, err := Replay(ctx, store, streamID)
	if errors.Is(err, ErrNotFound) {
		return Create(ctx, store, streamID, creator, opts...)
	}
	if err != nil {
		return nil, err
	}
	if requested := token.New(creator, opts...); requested.LegacyBatchDebit() && !l.inner.LegacyBatchDebit() {
		return nil, fmt.Errorf("journal: stream %s was created without legacy batch debit", streamID)
	}
	for _, opt := range opts {
		opt(l.inner)
	}
	return l, nil
}

// Replay rebuilds a journaled ledger from its stream.
func Replay(ctx context.Context, store eventsource.Store, streamID string) (*Ledger, error) {
	events, err := store.Read(ctx, streamID, 0)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}

	if events[0].Type != TypeCreated {
		return nil, fmt.Errorf("%w: first event is %q, want %q", ErrCorrupt, events[0].Type, TypeCreated)
	}
	var created createdPayload
	if err := events[0].Decode(&created); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var opts []token.Option
	if created.LegacyBatchDebit {
		opts = append(opts, token.WithLegacyBatchDebit())
	}
	inner := token.New(token.Address(created.Owner), opts...)

	for _, event := range events[1:] {
		if err := apply(inner, event); err != nil {
			return nil, fmt.Errorf("%w: event %d (%s): %v", ErrCorrupt, event.Version, event.Type, err)
		}
	}

	return &Ledger{
		inner:    inner,
		store:    store,
		streamID: streamID,
		version:  events[len(events)-1].Version,
	}, nil
}

// Token returns the live ledger for queries and sink wiring. Mutations
// must go through the journal or they will not be recorded.
func (l *Ledger) Token() *token.Ledger { return l.inner }

// StreamID returns the journal's stream identifier.
func (l *Ledger) StreamID() string { return l.streamID }

// Version returns the journal's head version.
func (l *Ledger) Version() int { return l.version }

// record validates op against a clone, appends the event, then applies op
// to the live ledger.
func (l *Ledger) record(ctx context.Context, eventType string, payload opPayload, op func(*token.Ledger) error) error {
	if err := op(l.inner.Clone()); err != nil {
		return err
	}

	event, err := eventsource.NewEvent(l.streamID, eventType, payload)
	if err != nil {
		return err
	}
	version, err := l.store.Append(ctx, l.streamID, l.version, []*eventsource.Event{event})
	if err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	l.version = version

	// The clone accepted the identical operation; the live ledger cannot
	// refuse it.
	return op(l.inner)
}

func (l *Ledger) Mint(ctx context.Context, caller, to token.Address, amount *uint256.Int) error {
	return l.record(ctx, TypeMint,
		opPayload{Caller: string(caller), To: string(to), Amount: dec(amount)},
		func(t *token.Ledger) error { return t.Mint(caller, to, amount) })
}

func (l *Ledger) Burn(ctx context.Context, caller token.Address, amount *uint256.Int) error {
	return l.record(ctx, TypeBurn,
		opPayload{Caller: string(caller), Amount: dec(amount)},
		func(t *token.Ledger) error { return t.Burn(caller, amount) })
}

func (l *Ledger) Transfer(ctx context.Context, caller, to token.Address, amount *uint256.Int) error {
	return l.record(ctx, TypeTransfer,
		opPayload{Caller: string(caller), To: string(to), Amount: dec(amount)},
		func(t *token.Ledger) error { return t.Transfer(caller, to, amount) })
}

func (l *Ledger) Approve(ctx context.Context, caller, spender token.Address, amount *uint256.Int) error {
	return l.record(ctx, TypeApprove,
		opPayload{Caller: string(caller), Spender: string(spender), Amount: dec(amount)},
		func(t *token.Ledger) error { return t.Approve(caller, spender, amount) })
}

func (l *Ledger) TransferFrom(ctx context.Context, caller, from, to token.Address, amount *uint256.Int) error {
	return l.record(ctx, TypeTransferFrom,
		opPayload{Caller: string(caller), From: string(from), To: string(to), Amount: dec(amount)},
		func(t *token.Ledger) error { return t.TransferFrom(caller, from, to, amount) })
}

func (l *Ledger) BatchTransfer(ctx context.Context, caller token.Address, recipients []token.Address, amounts []*uint256.Int) error {
	payload := opPayload{Caller: string(caller)}
	for _, r := range recipients {
		payload.Recipients = append(payload.Recipients, string(r))
	}
	for _, a := range amounts {
		payload.Amounts = append(payload.Amounts, dec(a))
	}
	return l.record(ctx, TypeBatch, payload,
		func(t *token.Ledger) error { return t.BatchTransfer(caller, recipients, amounts) })
}

func (l *Ledger) Pause(ctx context.Context, caller token.Address) error {
	return l.record(ctx, TypePause,
		opPayload{Caller: string(caller)},
		func(t *token.Ledger) error { return t.Pause(caller) })
}

func (l *Ledger) Unpause(ctx context.Context, caller token.Address) error {
	return l.record(ctx, TypeUnpause,
		opPayload{Caller: string(caller)},
		func(t *token.Ledger) error { return t.Unpause(caller) })
}

func (l *Ledger) Blacklist(ctx context.Context, caller, account token.Address) error {
	return l.record(ctx, TypeBlacklist,
		opPayload{Caller: string(caller), Account: string(account)},
		func(t *token.Ledger) error { return t.Blacklist(caller, account) })
}

func (l *Ledger) Unblacklist(ctx context.Context, caller, account token.Address) error {
	return l.record(ctx, TypeUnblacklist,
		opPayload{Caller: string(caller), Account: string(account)},
		func(t *token.Ledger) error { return t.Unblacklist(caller, account) })
}

// apply re-executes a recorded operation against l during replay.
func apply(l *token.Ledger, event *eventsource.Event) error {
	var p opPayload
	if err := event.Decode(&p); err != nil {
		return err
	}

	switch event.Type {
	case TypeMint:
		amount, err := parseDec(p.Amount)
		if err != nil {
			return err
		}
		return l.Mint(token.Address(p.Caller), token.Address(p.To), amount)
	case TypeBurn:
		amount, err := parseDec(p.Amount)
		if err != nil {
			return err
		}
		return l.Burn(token.Address(p.Caller), amount)
	case TypeTransfer:
		amount, err := parseDec(p.Amount)
		if err != nil {
			return err
		}
		return l.Transfer(token.Address(p.Caller), token.Address(p.To), amount)
	case TypeApprove:
		amount, err := parseDec(p.Amount)
		if err != nil {
			return err
		}
		return l.Approve(token.Address(p.Caller), token.Address(p.Spender), amount)
	case TypeTransferFrom:
		amount, err := parseDec(p.Amount)
		if err != nil {
			return err
		}
		return l.TransferFrom(token.Address(p.Caller), token.Address(p.From), token.Address(p.To), amount)
	case TypeBatch:
		if len(p.Recipients) != len(p.Amounts) {
			return token.ErrBatchLengthMismatch
		}
		recipients := make([]token.Address, len(p.Recipients))
		amounts := make([]*uint256.Int, len(p.Amounts))
		for i := range p.Recipients {
			recipients[i] = token.Address(p.Recipients[i])
			amount, err := parseDec(p.Amounts[i])
			if err != nil {
				return err
			}
			amounts[i] = amount
		}
		return l.BatchTransfer(token.Address(p.Caller), recipients, amounts)
	case TypePause:
		return l.Pause(token.Address(p.Caller))
	case TypeUnpause:
		return l.Unpause(token.Address(p.Caller))
	case TypeBlacklist:
		return l.Blacklist(token.Address(p.Caller), token.Address(p.Account))
	case TypeUnblacklist:
		return l.Unblacklist(token.Address(p.Caller), token.Address(p.Account))
	default:
		return fmt.Errorf("unknown operation type %q", event.Type)
	}
}

// dec renders an amount as a decimal string for the journal payload.
func dec(a *uint256.Int) string {
	if a == nil {
		return "0"
	}
	return a.Dec()
}

func parseDec(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	a, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", s, err)
	}
	return a, nil
}
