package notify

import (
	"log/slog"

	"github.com/pflow-xyz/go-ledger/token"
)

// Slog logs each notification record through a structured logger.
type Slog struct {
	logger *slog.Logger
}

// NewSlog creates a logging sink. A nil logger uses slog.Default.
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

// Emit implements token.Sink.
func (s *Slog) Emit(e token.Event) {
	r := Flatten(e)
	attrs := []any{slog.String("type", r.Type)}
	if r.From != "" {
		attrs = append(attrs, slog.String("from", r.From))
	}
	if r.To != "" {
		attrs = append(attrs, slog.String("to", r.To))
	}
	if r.Owner != "" {
		attrs = append(attrs, slog.String("owner", r.Owner))
	}
	if r.Spender != "" {
		attrs = append(attrs, slog.String("spender", r.Spender))
	}
	if r.Account != "" {
		attrs = append(attrs, slog.String("account", r.Account))
	}
	if r.Amount != "" {
		attrs = append(attrs, slog.String("amount", r.Amount))
	}
	if r.IsPaused != nil {
		attrs = append(attrs, slog.Bool("is_paused", *r.IsPaused))
	}
	if r.IsBlacklisted != nil {
		attrs = append(attrs, slog.Bool("is_blacklisted", *r.IsBlacklisted))
	}
	s.logger.Info("ledger event", attrs...)
}

var _ token.Sink = (*Slog)(nil)
