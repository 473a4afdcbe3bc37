package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pflow-xyz/go-ledger/journal"
	"github.com/pflow-xyz/go-ledger/notify"
	"github.com/pflow-xyz/go-ledger/notify/kafka"
	"github.com/pflow-xyz/go-ledger/service"
	"github.com/pflow-xyz/go-ledger/token"
)

func serve(args []string) error {
	loadDotenv()

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listen := fs.String("listen", envOr("LEDGER_LISTEN", ":8080"), "Listen address")
	backend := fs.String("backend", envOr("LEDGER_BACKEND", "memory"), "Event store backend (memory, sqlite, postgres)")
	dsn := fs.String("dsn", envOr("LEDGER_DSN", ""), "Store DSN (file path for sqlite, connection string for postgres)")
	stream := fs.String("stream", envOr("LEDGER_STREAM", "ledger"), "Journal stream ID")
	owner := fs.String("owner", envOr("LEDGER_OWNER", ""), "Ledger owner, used when the stream does not exist yet")
	brokers := fs.String("kafka-brokers", envOr("LEDGER_KAFKA_BROKERS", ""), "Comma-separated Kafka broker list (empty disables publishing)")
	topic := fs.String("kafka-topic", envOr("LEDGER_KAFKA_TOPIC", "ledger-notifications"), "Kafka topic for notification records")
	legacyBatch := fs.Bool("legacy-batch-debit", envOr("LEDGER_LEGACY_BATCH_DEBIT", "") != "", "Debit the full batch total even when entries are skipped")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ledgerd serve [options]

Serve the ledger HTTP API over the configured journal.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # In-memory ledger owned by alice
  ledgerd serve --owner alice

  # Durable journal with Kafka publishing
  ledgerd serve --backend sqlite --dsn ledger.db --owner alice \
    --kafka-brokers localhost:9092
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *owner == "" {
		fs.Usage()
		return fmt.Errorf("--owner required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(*backend, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	notices, err := notify.NewStream(ctx, store, noticesStreamID(*stream), logger)
	if err != nil {
		return fmt.Errorf("open notification log: %w", err)
	}

	sinks := notify.Multi{notices, notify.NewSlog(logger)}
	if *brokers != "" {
		publisher := kafka.NewPublisher(strings.Split(*brokers, ","), *topic, logger)
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	opts := []token.Option{token.WithSink(sinks)}
	if *legacyBatch {
		opts = append(opts, token.WithLegacyBatchDebit())
	}

	ledger, err := journal.Open(ctx, store, *stream, token.Address(*owner), opts...)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	logger.Info("ledger ready",
		"stream", ledger.StreamID(),
		"version", ledger.Version(),
		"owner", ledger.Token().Owner(),
		"backend", *backend)

	srv := &http.Server{
		Addr:    *listen,
		Handler: service.NewService(ledger, notices, logger).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", *listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
