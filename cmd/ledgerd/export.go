package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pflow-xyz/go-ledger/export"
	"github.com/pflow-xyz/go-ledger/notify"
)

func exportCmd(args []string) error {
	loadDotenv()

	fs := flag.NewFlagSet("export", flag.ExitOnError)
	backend := fs.String("backend", envOr("LEDGER_BACKEND", "memory"), "Event store backend (memory, sqlite, postgres)")
	dsn := fs.String("dsn", envOr("LEDGER_DSN", ""), "Store DSN")
	stream := fs.String("stream", envOr("LEDGER_STREAM", "ledger"), "Journal stream ID")
	format := fs.String("format", "jsonl", "Output format (jsonl or csv)")
	output := fs.String("output", "", "Output file (default stdout)")
	typeFilter := fs.String("type", "", "Filter by record type (Mint, Transfer, Burn, Approval, Paused, BlacklistUpdated)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ledgerd export [options]

Export the ledger's notification log for audit tooling.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # All records as JSONL on stdout
  ledgerd export --backend sqlite --dsn ledger.db

  # Transfers only, as CSV
  ledgerd export --backend sqlite --dsn ledger.db --type Transfer \
    --format csv --output transfers.csv
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

	notices, err := notify.NewStream(ctx, store, noticesStreamID(*stream), nil)
	if err != nil {
		return fmt.Errorf("open notification log: %w", err)
	}

	var types []string
	if *typeFilter != "" {
		types = append(types, *typeFilter)
	}
	records, err := notices.Records(ctx, types...)
	if err != nil {
		return fmt.Errorf("read notifications: %w", err)
	}

	switch *format {
	case "jsonl":
		if *output == "" {
			return export.WriteJSONL(os.Stdout, records)
		}
		return export.WriteJSONLFile(*output, records)
	case "csv":
		if *output == "" {
			return export.WriteCSV(os.Stdout, records)
		}
		return export.WriteCSVFile(*output, records)
	default:
		return fmt.Errorf("unknown format %q (want jsonl or csv)", *format)
	}
}
