// Package service exposes a journaled ledger over HTTP. The host is
// expected to terminate authentication in front of this service and pass
// the verified caller identity through the X-Caller header; the service
// itself only enforces the ledger rules for that identity.
package service

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/pflow-xyz/go-ledger/eventsource"
	"github.com/pflow-xyz/go-ledger/journal"
	"github.com/pflow-xyz/go-ledger/notify"
	"github.com/pflow-xyz/go-ledger/statehash"
	"github.com/pflow-xyz/go-ledger/token"
)

// CallerHeader carries the host-authenticated caller identity.
const CallerHeader = "X-Caller"

// Service is the HTTP service for a single ledger stream.
type Service struct {
	mu      sync.Mutex
	ledger  *journal.Ledger
	notices *notify.Stream
	logger  *slog.Logger
	started time.Time
}

// NewService wraps a journaled ledger. notices may be nil when the host
// does not retain a notification log; the notifications endpoint then
// reports 404. A nil logger falls back to slog.Default.
func NewService(ledger *journal.Ledger, notices *notify.Stream, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		ledger:  ledger,
		notices: notices,
		logger:  logger,
		started: time.Now(),
	}
}

// Ledger returns the underlying journaled ledger for use by other hosts.
func (s *Service) Ledger() *journal.Ledger {
	return s.ledger
}

// Handler returns the HTTP handler for the service.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /mint", s.handleMint)
	mux.HandleFunc("POST /burn", s.handleBurn)
	mux.HandleFunc("POST /transfer", s.handleTransfer)
	mux.HandleFunc("POST /approve", s.handleApprove)
	mux.HandleFunc("POST /transfer-from", s.handleTransferFrom)
	mux.HandleFunc("POST /batch-transfer", s.handleBatchTransfer)
	mux.HandleFunc("POST /pause", s.handlePause)
	mux.HandleFunc("POST /unpause", s.handleUnpause)
	mux.HandleFunc("POST /blacklist", s.handleBlacklist)
	mux.HandleFunc("POST /unblacklist", s.handleUnblacklist)

	mux.HandleFunc("GET /balance/{account}", s.handleBalance)
	mux.HandleFunc("GET /allowance/{owner}/{spender}", s.handleAllowance)
	mux.HandleFunc("GET /supply", s.handleSupply)
	mux.HandleFunc("GET /owner", s.handleOwner)
	mux.HandleFunc("GET /paused", s.handlePaused)
	mux.HandleFunc("GET /blacklisted/{account}", s.handleBlacklisted)
	mux.HandleFunc("GET /commitment", s.handleCommitment)
	mux.HandleFunc("GET /notifications", s.handleNotifications)

	return mux
}

// ErrorResponse is the body returned for rejected operations.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps ledger rejections onto HTTP status codes. Authorization
// and compliance rejections are forbidden, the pause and journal
// conflicts are state conflicts, everything else in the taxonomy is a
// bad request.
func statusFor(err error) int {
	switch {
	case errors.Is(err, token.ErrUnauthorized),
		errors.Is(err, token.ErrBlacklisted):
		return http.StatusForbidden
	case errors.Is(err, token.ErrContractPaused),
		errors.Is(err, eventsource.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrSelfTransfer),
		errors.Is(err, token.ErrBatchLengthMismatch),
		errors.Is(err, token.ErrOverflow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("ledger operation failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// caller extracts the authenticated identity, rejecting requests the
// host forwarded without one.
func caller(r *http.Request) (token.Address, error) {
	id := r.Header.Get(CallerHeader)
	if id == "" {
		return "", errors.New("missing " + CallerHeader + " header")
	}
	return token.Address(id), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, errors.New("missing amount")
	}
	a, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, err
	}
	if a.BitLen() > token.AmountBits {
		return nil, token.ErrOverflow
	}
	return a, nil
}

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	StreamID     string `json:"stream_id"`
	Version      int    `json:"version"`
	TotalSupply  string `json:"total_supply"`
	Conservation bool   `json:"conservation"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := HealthResponse{
		Status:       "ok",
		Uptime:       time.Since(s.started).String(),
		StreamID:     s.ledger.StreamID(),
		Version:      s.ledger.Version(),
		TotalSupply:  s.ledger.Token().TotalSupply().Dec(),
		Conservation: s.ledger.Token().CheckConservation(),
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// OpResponse confirms an accepted operation.
type OpResponse struct {
	Status  string `json:"status"`
	Version int    `json:"version"`
}

// runOp decodes the request into req, then executes op under the
// service lock and reports the resulting journal version.
func (s *Service) runOp(w http.ResponseWriter, r *http.Request, req any, op func(from token.Address) error) {
	from, err := caller(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}
	if req != nil {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
			return
		}
	}

	s.mu.Lock()
	err = op(from)
	version := s.ledger.Version()
	s.mu.Unlock()

	if err != nil {
		s.logger.Info("operation rejected",
			"path", r.URL.Path, "caller", from, "err", err)
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("operation accepted",
		"path", r.URL.Path, "caller", from, "version", version)
	writeJSON(w, http.StatusOK, OpResponse{Status: "ok", Version: version})
}

// MintRequest is the body for mint.
type MintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Service) handleMint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	s.runOp(w, r, &req, func(from token.Address) error {
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return err
		}
		return s.ledger.Mint(r.Context(), from, token.Address(req.To), amount)
	})
}

// BurnRequest is the body for burn.
type BurnRequest struct {
	Amount string `json:"amount"`
}

func (s *Service) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req BurnRequest
	s.runOp(w, r, &req, func(from token.Address) error {
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return err
		}
		return s.ledger.Burn(r.Context(), from, amount)
	})
}

// TransferRequest is the body for transfer.
type TransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Service) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	s.runOp(w, r, &req, func(from token.Address) error {
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return err
		}
		return s.ledger.Transfer(r.Context(), from, token.Address(req.To), amount)
	})
}

// ApproveRequest is the body for approve.
type ApproveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (s *Service) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	s.runOp(w, r, &req, func(from token.Address) error {
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return err
		}
		return s.ledger.Approve(r.Context(), from, token.Address(req.Spender), amount)
	})
}

// TransferFromRequest is the body for transfer-from. From is the account
// being debited; the caller spends their allowance.
type TransferFromRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Service) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	var req TransferFromRequest
	s.runOp(w, r, &req, func(spender token.Address) error {
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return err
		}
		return s.ledger.TransferFrom(r.Context(), spender,
			token.Address(req.From), token.Address(req.To), amount)
	})
}

// BatchTransferRequest is the body for batch-transfer. Recipients and
// Amounts are parallel lists.
type BatchTransferRequest struct {
	Recipients []string `json:"recipients"`
	Amounts    []string `json:"amounts"`
}

func (s *Service) handleBatchTransfer(w http.ResponseWriter, r *http.Request) {
	var req BatchTransferRequest
	s.runOp(w, r, &req, func(from token.Address) error {
		if len(req.Recipients) != len(req.Amounts) {
			return token.ErrBatchLengthMismatch
		}
		recipients := make([]token.Address, len(req.Recipients))
		amounts := make([]*uint256.Int, len(req.Amounts))
		for i := range req.Recipients {
			recipients[i] = token.Address(req.Recipients[i])
			amount, err := parseAmount(req.Amounts[i])
			if err != nil {
				return err
			}
			amounts[i] = amount
		}
		return s.ledger.BatchTransfer(r.Context(), from, recipients, amounts)
	})
}

func (s *Service) handlePause(w http.ResponseWriter, r *http.Request) {
	s.runOp(w, r, nil, func(from token.Address) error {
		return s.ledger.Pause(r.Context(), from)
	})
}

func (s *Service) handleUnpause(w http.ResponseWriter, r *http.Request) {
	s.runOp(w, r, nil, func(from token.Address) error {
		return s.ledger.Unpause(r.Context(), from)
	})
}

// AccountRequest names an account for compliance operations.
type AccountRequest struct {
	Account string `json:"account"`
}

func (s *Service) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	s.runOp(w, r, &req, func(from token.Address) error {
		return s.ledger.Blacklist(r.Context(), from, token.Address(req.Account))
	})
}

func (s *Service) handleUnblacklist(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	s.runOp(w, r, &req, func(from token.Address) error {
		return s.ledger.Unblacklist(r.Context(), from, token.Address(req.Account))
	})
}

// BalanceResponse reports one account's balance.
type BalanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

func (s *Service) handleBalance(w http.ResponseWriter, r *http.Request) {
	account := token.Address(r.PathValue("account"))

	s.mu.Lock()
	balance := s.ledger.Token().BalanceOf(account)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, BalanceResponse{
		Account: string(account),
		Balance: balance.Dec(),
	})
}

// AllowanceResponse reports one (owner, spender) allowance.
type AllowanceResponse struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

func (s *Service) handleAllowance(w http.ResponseWriter, r *http.Request) {
	owner := token.Address(r.PathValue("owner"))
	spender := token.Address(r.PathValue("spender"))

	s.mu.Lock()
	allowance := s.ledger.Token().Allowance(owner, spender)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, AllowanceResponse{
		Owner:     string(owner),
		Spender:   string(spender),
		Allowance: allowance.Dec(),
	})
}

// SupplyResponse reports the total supply.
type SupplyResponse struct {
	TotalSupply string `json:"total_supply"`
}

func (s *Service) handleSupply(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	supply := s.ledger.Token().TotalSupply()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, SupplyResponse{TotalSupply: supply.Dec()})
}

// OwnerResponse reports the ledger administrator.
type OwnerResponse struct {
	Owner string `json:"owner"`
}

func (s *Service) handleOwner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OwnerResponse{Owner: string(s.ledger.Token().Owner())})
}

// PausedResponse reports the pause flag.
type PausedResponse struct {
	Paused bool `json:"paused"`
}

func (s *Service) handlePaused(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	paused := s.ledger.Token().IsPaused()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, PausedResponse{Paused: paused})
}

// BlacklistedResponse reports one account's restricted flag.
type BlacklistedResponse struct {
	Account     string `json:"account"`
	Blacklisted bool   `json:"blacklisted"`
}

func (s *Service) handleBlacklisted(w http.ResponseWriter, r *http.Request) {
	account := token.Address(r.PathValue("account"))

	s.mu.Lock()
	flagged := s.ledger.Token().IsBlacklisted(account)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, BlacklistedResponse{
		Account:     string(account),
		Blacklisted: flagged,
	})
}

// CommitmentResponse carries the state commitment at a journal version.
type CommitmentResponse struct {
	Commitment string `json:"commitment"`
	Version    int    `json:"version"`
}

func (s *Service) handleCommitment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	digest := statehash.Commit(s.ledger.Token())
	version := s.ledger.Version()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, CommitmentResponse{
		Commitment: hex.EncodeToString(digest[:]),
		Version:    version,
	})
}

// NotificationsResponse lists retained notification records.
type NotificationsResponse struct {
	Records []notify.Record `json:"records"`
}

func (s *Service) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.notices == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no notification log configured"})
		return
	}

	var types []string
	if t := r.URL.Query().Get("type"); t != "" {
		types = append(types, t)
	}
	records, err := s.notices.Records(r.Context(), types...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []notify.Record{}
	}
	writeJSON(w, http.StatusOK, NotificationsResponse{Records: records})
}
