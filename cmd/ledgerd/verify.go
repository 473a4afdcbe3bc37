package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/pflow-xyz/go-ledger/journal"
	"github.com/pflow-xyz/go-ledger/statehash"
)

func verify(args []string) error {
	loadDotenv()

	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	backend := fs.String("backend", envOr("LEDGER_BACKEND", "memory"), "Event store backend (memory, sqlite, postgres)")
	dsn := fs.String("dsn", envOr("LEDGER_DSN", ""), "Store DSN")
	stream := fs.String("stream", envOr("LEDGER_STREAM", "ledger"), "Journal stream ID")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ledgerd verify [options]

Replay the journal from the store and report the rebuilt state,
including whether value conservation holds.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ledgerd verify --backend sqlite --dsn ledger.db
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()

	store, err := openStore(*backend, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	ledger, err := journal.Replay(ctx, store, *stream)
	if err != nil {
		return fmt.Errorf("replay %s: %w", *stream, err)
	}

	state := ledger.Token()
	digest := statehash.Commit(state)

	fmt.Printf("=== Journal %s ===\n\n", ledger.StreamID())
	fmt.Printf("version:       %d\n", ledger.Version())
	fmt.Printf("owner:         %s\n", state.Owner())
	fmt.Printf("paused:        %v\n", state.IsPaused())
	fmt.Printf("total supply:  %s\n", state.TotalSupply().Dec())
	fmt.Printf("accounts:      %d\n", len(state.Accounts()))
	fmt.Printf("blacklisted:   %d\n", len(state.Blacklisted()))
	fmt.Printf("commitment:    %s\n", hex.EncodeToString(digest[:]))

	if state.CheckConservation() {
		fmt.Printf("conservation:  ok\n")
		return nil
	}
	fmt.Printf("conservation:  VIOLATED\n")
	return fmt.Errorf("sum of balances does not match total supply")
}
