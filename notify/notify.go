// Package notify delivers ledger notification records to external
// consumers: structured logs, durable queryable streams, and message
// brokers. Sinks run after state has committed; a failing sink never
// affects ledger state.
package notify

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/pflow-xyz/go-ledger/token"
)

// Record is the flat wire form of a notification record. Amounts are
// decimal strings; absent fields are omitted. The same form is used for
// broker payloads, durable streams and audit exports.
type Record struct {
	Type          string `json:"type"`
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	Owner         string `json:"owner,omitempty"`
	Spender       string `json:"spender,omitempty"`
	Account       string `json:"account,omitempty"`
	Amount        string `json:"amount,omitempty"`
	IsPaused      *bool  `json:"is_paused,omitempty"`
	IsBlacklisted *bool  `json:"is_blacklisted,omitempty"`
}

// Flatten converts a typed notification event into its wire record.
func Flatten(e token.Event) Record {
	switch ev := e.(type) {
	case token.MintEvent:
		return Record{Type: ev.EventType(), To: string(ev.To), Amount: decimal(ev.Amount)}
	case token.TransferEvent:
		return Record{Type: ev.EventType(), From: string(ev.From), To: string(ev.To), Amount: decimal(ev.Amount)}
	case token.BurnEvent:
		return Record{Type: ev.EventType(), From: string(ev.From), Amount: decimal(ev.Amount)}
	case token.ApprovalEvent:
		return Record{Type: ev.EventType(), Owner: string(ev.Owner), Spender: string(ev.Spender), Amount: decimal(ev.Amount)}
	case token.PausedEvent:
		flag := ev.IsPaused
		return Record{Type: ev.EventType(), IsPaused: &flag}
	case token.BlacklistUpdatedEvent:
		flag := ev.IsBlacklisted
		return Record{Type: ev.EventType(), Account: string(ev.Account), IsBlacklisted: &flag}
	default:
		return Record{Type: e.EventType()}
	}
}

// Event converts a wire record back into its typed notification event.
func (r Record) Event() (token.Event, error) {
	switch r.Type {
	case "Mint":
		amount, err := parseDecimal(r.Amount)
		if err != nil {
			return nil, err
		}
		return token.MintEvent{To: token.Address(r.To), Amount: amount}, nil
	case "Transfer":
		amount, err := parseDecimal(r.Amount)
		if err != nil {
			return nil, err
		}
		return token.TransferEvent{From: token.Address(r.From), To: token.Address(r.To), Amount: amount}, nil
	case "Burn":
		amount, err := parseDecimal(r.Amount)
		if err != nil {
			return nil, err
		}
		return token.BurnEvent{From: token.Address(r.From), Amount: amount}, nil
	case "Approval":
		amount, err := parseDecimal(r.Amount)
		if err != nil {
			return nil, err
		}
		return token.ApprovalEvent{Owner: token.Address(r.Owner), Spender: token.Address(r.Spender), Amount: amount}, nil
	case "Paused":
		flag := r.IsPaused != nil && *r.IsPaused
		return token.PausedEvent{IsPaused: flag}, nil
	case "BlacklistUpdated":
		flag := r.IsBlacklisted != nil && *r.IsBlacklisted
		return token.BlacklistUpdatedEvent{Account: token.Address(r.Account), IsBlacklisted: flag}, nil
	default:
		return nil, fmt.Errorf("notify: unknown record type %q", r.Type)
	}
}

// Key returns the account identifier consumers partition on: the primary
// indexed field of each record type.
func (r Record) Key() string {
	switch r.Type {
	case "Mint":
		return r.To
	case "Transfer", "Burn":
		return r.From
	case "Approval":
		return r.Owner
	case "BlacklistUpdated":
		return r.Account
	default:
		return ""
	}
}

// Multi fans a notification out to several sinks in order.
type Multi []token.Sink

// Emit implements token.Sink.
func (m Multi) Emit(e token.Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

func decimal(a *uint256.Int) string {
	if a == nil {
		return "0"
	}
	return a.Dec()
}

func parseDecimal(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	a, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("notify: bad amount %q: %w", s, err)
	}
	return a, nil
}
