package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "serve":
		if err := serve(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "export":
		if err := exportCmd(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "verify":
		if err := verify(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Println("ledgerd version 1.0.0")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ledgerd - journaled token ledger daemon

Usage:
  ledgerd <command> [options]

Commands:
  serve      Serve the ledger HTTP API
  export     Export the notification log to JSONL or CSV
  verify     Replay a ledger stream and check conservation
  help       Show this help message
  version    Show version information

Examples:
  # Serve an in-memory ledger owned by alice
  ledgerd serve --owner alice

  # Serve from a SQLite journal
  ledgerd serve --backend sqlite --dsn ledger.db --owner alice

  # Export notifications as CSV
  ledgerd export --backend sqlite --dsn ledger.db --format csv --output audit.csv

  # Replay and verify a journal
  ledgerd verify --backend sqlite --dsn ledger.db

Configuration may also come from a .env file; flags win over
environment values.

For command-specific help, run:
  ledgerd <command> --help`)
}
