package token

import "github.com/holiman/uint256"

// Event is a notification record produced by a successful ledger operation.
// The concrete types below mirror the ledger's observable effects; hosts
// deliver them to a queryable log. Fields tagged in JSON are stable and
// safe to index on.
type Event interface {
	// EventType returns the record's type name, used as the event type in
	// durable streams and as the routing key for external sinks.
	EventType() string
}

// Sink receives notification records after state has committed.
// A sink must not assume it can veto an operation: by the time Emit is
// called the mutation is already durable, and an emit failure is the
// sink's problem to surface, never a reason to roll back.
type Sink interface {
	Emit(Event)
}

// MintEvent records creation of new units credited to To.
type MintEvent struct {
	To     Address      `json:"to"`
	Amount *uint256.Int `json:"amount"`
}

func (MintEvent) EventType() string { return "Mint" }

// TransferEvent records movement of units between two accounts. It is
// emitted by direct, delegated and batch transfers alike.
type TransferEvent struct {
	From   Address      `json:"from"`
	To     Address      `json:"to"`
	Amount *uint256.Int `json:"amount"`
}

func (TransferEvent) EventType() string { return "Transfer" }

// BurnEvent records destruction of units held by From.
type BurnEvent struct {
	From   Address      `json:"from"`
	Amount *uint256.Int `json:"amount"`
}

func (BurnEvent) EventType() string { return "Burn" }

// ApprovalEvent records an allowance being set. The amount is the new
// absolute allowance, not a delta.
type ApprovalEvent struct {
	Owner   Address      `json:"owner"`
	Spender Address      `json:"spender"`
	Amount  *uint256.Int `json:"amount"`
}

func (ApprovalEvent) EventType() string { return "Approval" }

// PausedEvent records a change of the ledger-wide halt flag.
type PausedEvent struct {
	IsPaused bool `json:"is_paused"`
}

func (PausedEvent) EventType() string { return "Paused" }

// BlacklistUpdatedEvent records a change of an account's restricted flag.
type BlacklistUpdatedEvent struct {
	Account       Address `json:"account"`
	IsBlacklisted bool    `json:"is_blacklisted"`
}

func (BlacklistUpdatedEvent) EventType() string { return "BlacklistUpdated" }

// emit forwards an event to the configured sink, if any.
func (l *Ledger) emit(e Event) {
	if l.sink != nil {
		l.sink.Emit(e)
	}
}
