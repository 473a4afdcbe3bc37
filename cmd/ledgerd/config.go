package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/pflow-xyz/go-ledger/eventsource"
)

// loadDotenv loads .env when present. A missing file is not an error;
// explicit environment always wins over the file.
func loadDotenv() {
	if _, err := os.Stat(".env"); err == nil {
		godotenv.Load()
	}
}

// envOr returns the environment value for key, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// openStore opens the configured event store backend.
func openStore(backend, dsn string) (eventsource.Store, error) {
	switch backend {
	case "memory":
		return eventsource.NewMemoryStore(), nil
	case "sqlite":
		if dsn == "" {
			return nil, fmt.Errorf("sqlite backend requires --dsn")
		}
		return eventsource.NewSQLiteStore(dsn)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("postgres backend requires --dsn")
		}
		return eventsource.NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unknown backend %q (want memory, sqlite or postgres)", backend)
	}
}

// noticesStreamID derives the notification log stream from the ledger
// stream so both live in the same store.
func noticesStreamID(streamID string) string {
	return streamID + "-notices"
}
