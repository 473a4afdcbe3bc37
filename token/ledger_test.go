package token_test

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/pflow-xyz/go-ledger/token"
)

type recordingSink struct {
	events []token.Event
}

func (s *recordingSink) Emit(e token.Event) {
	s.events = append(s.events, e)
}

func (s *recordingSink) last(t *testing.T) token.Event {
	t.Helper()
	if len(s.events) == 0 {
		t.Fatal("expected at least one event")
	}
	return s.events[len(s.events)-1]
}

func amt(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func TestNewLedger(t *testing.T) {
	l := token.New("alice")

	if l.Owner() != "alice" {
		t.Errorf("expected owner alice, got %s", l.Owner())
	}
	if !l.TotalSupply().IsZero() {
		t.Errorf("expected zero supply, got %s", l.TotalSupply())
	}
	if !l.BalanceOf("alice").IsZero() {
		t.Errorf("expected zero balance for creator, got %s", l.BalanceOf("alice"))
	}
	if l.IsPaused() {
		t.Error("new ledger should not be paused")
	}
	if l.IsBlacklisted("alice") {
		t.Error("new ledger should have an empty blacklist")
	}
}

func TestMint(t *testing.T) {
	sink := &recordingSink{}
	l := token.New("alice", token.WithSink(sink))

	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(100)) {
		t.Errorf("expected balance 100, got %s", got)
	}
	if got := l.TotalSupply(); !got.Eq(amt(100)) {
		t.Errorf("expected supply 100, got %s", got)
	}

	ev, ok := sink.last(t).(token.MintEvent)
	if !ok {
		t.Fatalf("expected MintEvent, got %T", sink.last(t))
	}
	if ev.To != "bob" || !ev.Amount.Eq(amt(100)) {
		t.Errorf("unexpected mint event: %+v", ev)
	}
}

func TestMintUnauthorized(t *testing.T) {
	l := token.New("alice")
	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	err := l.Mint("carol", "bob", amt(1))
	if !errors.Is(err, token.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(100)) {
		t.Errorf("balance changed on failed mint: %s", got)
	}
	if got := l.TotalSupply(); !got.Eq(amt(100)) {
		t.Errorf("supply changed on failed mint: %s", got)
	}
}

func TestMintSupplyOverflowRollsBackBalance(t *testing.T) {
	l := token.New("alice")

	if err := l.Mint("alice", "bob", token.MaxAmount()); err != nil {
		t.Fatalf("mint to max failed: %v", err)
	}

	// A second mint overflows the supply; the recipient balance must not
	// move either.
	err := l.Mint("alice", "carol", amt(1))
	if !errors.Is(err, token.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if !l.BalanceOf("carol").IsZero() {
		t.Error("failed mint credited the recipient")
	}
	if !l.TotalSupply().Eq(token.MaxAmount()) {
		t.Error("failed mint changed the supply")
	}
	if !l.CheckConservation() {
		t.Error("conservation broken after failed mint")
	}
}

func TestMintNotGatedByPauseOrBlacklist(t *testing.T) {
	l := token.New("alice")
	if err := l.Pause("alice"); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if err := l.Blacklist("alice", "bob"); err != nil {
		t.Fatalf("blacklist failed: %v", err)
	}

	// Mint ignores both compliance gates.
	if err := l.Mint("alice", "bob", amt(5)); err != nil {
		t.Fatalf("mint while paused to blacklisted account failed: %v", err)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(5)) {
		t.Errorf("expected balance 5, got %s", got)
	}
}

func TestBurn(t *testing.T) {
	sink := &recordingSink{}
	l := token.New("alice", token.WithSink(sink))
	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if err := l.Burn("bob", amt(40)); err != nil {
		t.Fatalf("burn failed: %v", err)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(60)) {
		t.Errorf("expected balance 60, got %s", got)
	}
	if got := l.TotalSupply(); !got.Eq(amt(60)) {
		t.Errorf("expected supply 60, got %s", got)
	}

	ev, ok := sink.last(t).(token.BurnEvent)
	if !ok {
		t.Fatalf("expected BurnEvent, got %T", sink.last(t))
	}
	if ev.From != "bob" || !ev.Amount.Eq(amt(40)) {
		t.Errorf("unexpected burn event: %+v", ev)
	}

	err := l.Burn("bob", amt(1000))
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(60)) {
		t.Errorf("balance changed on failed burn: %s", got)
	}
}

func TestTransfer(t *testing.T) {
	sink := &recordingSink{}
	l := token.New("alice", token.WithSink(sink))
	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if err := l.Transfer("bob", "dave", amt(30)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(70)) {
		t.Errorf("expected sender balance 70, got %s", got)
	}
	if got := l.BalanceOf("dave"); !got.Eq(amt(30)) {
		t.Errorf("expected recipient balance 30, got %s", got)
	}

	ev, ok := sink.last(t).(token.TransferEvent)
	if !ok {
		t.Fatalf("expected TransferEvent, got %T", sink.last(t))
	}
	if ev.From != "bob" || ev.To != "dave" || !ev.Amount.Eq(amt(30)) {
		t.Errorf("unexpected transfer event: %+v", ev)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := token.New("alice")
	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	err := l.Transfer("bob", "dave", amt(1000))
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(100)) {
		t.Errorf("sender balance changed on failed transfer: %s", got)
	}
	if !l.BalanceOf("dave").IsZero() {
		t.Error("recipient credited on failed transfer")
	}
}

func TestTransferSelf(t *testing.T) {
	l := token.New("alice")
	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	// Self-transfer fails regardless of amount or balance.
	for _, amount := range []*uint256.Int{amt(0), amt(1), amt(100), amt(1000)} {
		err := l.Transfer("bob", "bob", amount)
		if !errors.Is(err, token.ErrSelfTransfer) {
			t.Fatalf("amount %s: expected ErrSelfTransfer, got %v", amount, err)
		}
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(100)) {
		t.Errorf("balance changed on self-transfer: %s", got)
	}
}

func TestTransferZeroAmount(t *testing.T) {
	sink := &recordingSink{}
	l := token.New("alice", token.WithSink(sink))

	// Zero transfers succeed trivially and still emit a record.
	if err := l.Transfer("bob", "dave", amt(0)); err != nil {
		t.Fatalf("zero transfer failed: %v", err)
	}
	ev, ok := sink.last(t).(token.TransferEvent)
	if !ok || !ev.Amount.IsZero() {
		t.Errorf("expected zero-amount TransferEvent, got %+v", sink.last(t))
	}
}

func TestTransferGuardOrder(t *testing.T) {
	// With every guard violated at once, the pause check wins; after
	// unpausing, blacklist wins over self-transfer.
	l := token.New("alice")
	if err := l.Blacklist("alice", "bob"); err != nil {
		t.Fatalf("blacklist failed: %v", err)
	}
	if err := l.Pause("alice"); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	if err := l.Transfer("bob", "bob", amt(1)); !errors.Is(err, token.ErrContractPaused) {
		t.Fatalf("expected ErrContractPaused first, got %v", err)
	}

	if err := l.Unpause("alice"); err != nil {
		t.Fatalf("unpause failed: %v", err)
	}
	if err := l.Transfer("bob", "bob", amt(1)); !errors.Is(err, token.ErrBlacklisted) {
		t.Fatalf("expected ErrBlacklisted before ErrSelfTransfer, got %v", err)
	}
}

func TestApproveAndTransferFrom(t *testing.T) {
	sink := &recordingSink{}
	l := token.New("alice", token.WithSink(sink))
	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if err := l.Approve("bob", "eve", amt(50)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if got := l.Allowance("bob", "eve"); !got.Eq(amt(50)) {
		t.Errorf("expected allowance 50, got %s", got)
	}
	ev, ok := sink.last(t).(token.ApprovalEvent)
	if !ok {
		t.Fatalf("expected ApprovalEvent, got %T", sink.last(t))
	}
	if ev.Owner != "bob" || ev.Spender != "eve" || !ev.Amount.Eq(amt(50)) {
		t.Errorf("unexpected approval event: %+v", ev)
	}

	if err := l.TransferFrom("eve", "bob", "frank", amt(20)); err != nil {
		t.Fatalf("transfer_from failed: %v", err)
	}
	if got := l.Allowance("bob", "eve"); !got.Eq(amt(30)) {
		t.Errorf("expected allowance 30, got %s", got)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(80)) {
		t.Errorf("expected owner balance 80, got %s", got)
	}
	if got := l.BalanceOf("frank"); !got.Eq(amt(20)) {
		t.Errorf("expected recipient balance 20, got %s", got)
	}

	// The allowance change is not separately notified.
	tev, ok := sink.last(t).(token.TransferEvent)
	if !ok {
		t.Fatalf("expected TransferEvent, got %T", sink.last(t))
	}
	if tev.From != "bob" || tev.To != "frank" || !tev.Amount.Eq(amt(20)) {
		t.Errorf("unexpected transfer event: %+v", tev)
	}
}

func TestApproveReplaces(t *testing.T) {
	l := token.New("alice")

	if err := l.Approve("bob", "eve", amt(50)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := l.Approve("bob", "eve", amt(7)); err != nil {
		t.Fatalf("second approve failed: %v", err)
	}
	if got := l.Allowance("bob", "eve"); !got.Eq(amt(7)) {
		t.Errorf("expected replacing semantics, got allowance %s", got)
	}
}

func TestTransferFromInsufficientAllowance(t *testing.T) {
	l := token.New("alice")
	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := l.Approve("bob", "eve", amt(10)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	err := l.TransferFrom("eve", "bob", "frank", amt(20))
	if !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(100)) {
		t.Errorf("balance changed on failed transfer_from: %s", got)
	}
	if got := l.Allowance("bob", "eve"); !got.Eq(amt(10)) {
		t.Errorf("allowance changed on failed transfer_from: %s", got)
	}
}

func TestTransferFromAllowanceCheckedBeforeBalance(t *testing.T) {
	l := token.New("alice")
	if err := l.Mint("alice", "bob", amt(5)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := l.Approve("bob", "eve", amt(3)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// Amount exceeds both allowance and balance; allowance wins.
	err := l.TransferFrom("eve", "bob", "frank", amt(10))
	if !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestPauseGatesTransfers(t *testing.T) {
	sink := &recordingSink{}
	l := token.New("alice", token.WithSink(sink))
	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := l.Approve("bob", "eve", amt(50)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if err := l.Pause("alice"); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	ev, ok := sink.last(t).(token.PausedEvent)
	if !ok || !ev.IsPaused {
		t.Errorf("expected PausedEvent{true}, got %+v", sink.last(t))
	}

	if err := l.Transfer("bob", "dave", amt(1)); !errors.Is(err, token.ErrContractPaused) {
		t.Fatalf("expected ErrContractPaused on transfer, got %v", err)
	}
	if err := l.TransferFrom("eve", "bob", "frank", amt(1)); !errors.Is(err, token.ErrContractPaused) {
		t.Fatalf("expected ErrContractPaused on transfer_from, got %v", err)
	}
	if err := l.BatchTransfer("bob", []token.Address{"dave"}, []*uint256.Int{amt(1)}); !errors.Is(err, token.ErrContractPaused) {
		t.Fatalf("expected ErrContractPaused on batch_transfer, got %v", err)
	}

	// Mint is not gated by pause. This asymmetry is intentional.
	if err := l.Mint("alice", "bob", amt(1)); err != nil {
		t.Fatalf("mint while paused failed: %v", err)
	}

	if err := l.Unpause("alice"); err != nil {
		t.Fatalf("unpause failed: %v", err)
	}
	ev, ok = sink.last(t).(token.PausedEvent)
	if !ok || ev.IsPaused {
		t.Errorf("expected PausedEvent{false}, got %+v", sink.last(t))
	}
	if err := l.Transfer("bob", "dave", amt(1)); err != nil {
		t.Fatalf("transfer after unpause failed: %v", err)
	}
}

func TestPauseUnauthorized(t *testing.T) {
	l := token.New("alice")
	if err := l.Pause("bob"); !errors.Is(err, token.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if l.IsPaused() {
		t.Error("unauthorized pause took effect")
	}
	if err := l.Pause("alice"); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if err := l.Unpause("bob"); !errors.Is(err, token.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if !l.IsPaused() {
		t.Error("unauthorized unpause took effect")
	}
}

func TestBlacklist(t *testing.T) {
	sink := &recordingSink{}
	l := token.New("alice", token.WithSink(sink))
	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := l.Mint("alice", "dave", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := l.Approve("bob", "dave", amt(50)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if err := l.Blacklist("bob", "dave"); !errors.Is(err, token.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if err := l.Blacklist("alice", "bob"); err != nil {
		t.Fatalf("blacklist failed: %v", err)
	}
	ev, ok := sink.last(t).(token.BlacklistUpdatedEvent)
	if !ok || ev.Account != "bob" || !ev.IsBlacklisted {
		t.Errorf("expected BlacklistUpdatedEvent{bob,true}, got %+v", sink.last(t))
	}
	if !l.IsBlacklisted("bob") {
		t.Error("bob should be blacklisted")
	}

	// Restricted as sender.
	if err := l.Transfer("bob", "dave", amt(1)); !errors.Is(err, token.ErrBlacklisted) {
		t.Fatalf("expected ErrBlacklisted sending, got %v", err)
	}
	// Restricted as receiver.
	if err := l.Transfer("dave", "bob", amt(1)); !errors.Is(err, token.ErrBlacklisted) {
		t.Fatalf("expected ErrBlacklisted receiving, got %v", err)
	}
	// Restricted as delegated source.
	if err := l.TransferFrom("dave", "bob", "frank", amt(1)); !errors.Is(err, token.ErrBlacklisted) {
		t.Fatalf("expected ErrBlacklisted on transfer_from, got %v", err)
	}

	if err := l.Unblacklist("alice", "bob"); err != nil {
		t.Fatalf("unblacklist failed: %v", err)
	}
	ev, ok = sink.last(t).(token.BlacklistUpdatedEvent)
	if !ok || ev.Account != "bob" || ev.IsBlacklisted {
		t.Errorf("expected BlacklistUpdatedEvent{bob,false}, got %+v", sink.last(t))
	}
	if err := l.Transfer("bob", "dave", amt(1)); err != nil {
		t.Fatalf("transfer after unblacklist failed: %v", err)
	}
}

func TestBatchTransfer(t *testing.T) {
	sink := &recordingSink{}
	l := token.New("alice", token.WithSink(sink))
	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	sink.events = nil

	recipients := []token.Address{"dave", "frank", "gina"}
	amounts := []*uint256.Int{amt(10), amt(20), amt(30)}
	if err := l.BatchTransfer("bob", recipients, amounts); err != nil {
		t.Fatalf("batch transfer failed: %v", err)
	}

	if got := l.BalanceOf("bob"); !got.Eq(amt(40)) {
		t.Errorf("expected sender balance 40, got %s", got)
	}
	for i, r := range recipients {
		if got := l.BalanceOf(r); !got.Eq(amounts[i]) {
			t.Errorf("expected %s balance %s, got %s", r, amounts[i], got)
		}
	}
	if len(sink.events) != 3 {
		t.Fatalf("expected 3 transfer events, got %d", len(sink.events))
	}
	for i, e := range sink.events {
		ev, ok := e.(token.TransferEvent)
		if !ok {
			t.Fatalf("expected TransferEvent, got %T", e)
		}
		if ev.To != recipients[i] || !ev.Amount.Eq(amounts[i]) {
			t.Errorf("event %d out of order: %+v", i, ev)
		}
	}
	if !l.CheckConservation() {
		t.Error("conservation broken by batch transfer")
	}
}

func TestBatchTransferLengthMismatch(t *testing.T) {
	l := token.New("alice")
	err := l.BatchTransfer("bob", []token.Address{"dave"}, nil)
	if !errors.Is(err, token.ErrBatchLengthMismatch) {
		t.Fatalf("expected ErrBatchLengthMismatch, got %v", err)
	}
}

func TestBatchTransferEmpty(t *testing.T) {
	l := token.New("alice")
	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := l.BatchTransfer("bob", nil, nil); err != nil {
		t.Fatalf("empty batch failed: %v", err)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(100)) {
		t.Errorf("empty batch changed balance: %s", got)
	}
}

func TestBatchTransferSkipsRestrictedAndSelf(t *testing.T) {
	sink := &recordingSink{}
	l := token.New("alice", token.WithSink(sink))
	if err := l.Mint("alice", "bob", amt(35)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := l.Blacklist("alice", "carol"); err != nil {
		t.Fatalf("blacklist failed: %v", err)
	}
	sink.events = nil

	// The balance check covers the full total of 35, skips included.
	recipients := []token.Address{"dave", "carol", "bob", "frank"}
	amounts := []*uint256.Int{amt(10), amt(10), amt(5), amt(10)}
	if err := l.BatchTransfer("bob", recipients, amounts); err != nil {
		t.Fatalf("batch transfer failed: %v", err)
	}

	// carol (blacklisted) and bob (self) are skipped: no credit, no
	// record, and by default no debit either.
	if got := l.BalanceOf("dave"); !got.Eq(amt(10)) {
		t.Errorf("expected dave balance 10, got %s", got)
	}
	if !l.BalanceOf("carol").IsZero() {
		t.Error("blacklisted recipient was credited")
	}
	if got := l.BalanceOf("frank"); !got.Eq(amt(10)) {
		t.Errorf("expected frank balance 10, got %s", got)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(15)) {
		t.Errorf("expected sender debited only for credited entries, got %s", got)
	}
	if len(sink.events) != 2 {
		t.Fatalf("expected 2 transfer events, got %d", len(sink.events))
	}
	if !l.CheckConservation() {
		t.Error("conservation broken by skipped batch entries")
	}
}

func TestBatchTransferTotalCheckedBeforeSkips(t *testing.T) {
	l := token.New("alice")
	if err := l.Mint("alice", "bob", amt(30)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := l.Blacklist("alice", "carol"); err != nil {
		t.Fatalf("blacklist failed: %v", err)
	}

	// The full total (35) exceeds bob's balance even though the entries
	// that would actually be credited sum to only 20. The balance guard
	// runs before the skip pass, so the batch is rejected whole.
	recipients := []token.Address{"dave", "carol", "bob", "frank"}
	amounts := []*uint256.Int{amt(10), amt(10), amt(5), amt(10)}
	err := l.BatchTransfer("bob", recipients, amounts)
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if got := l.BalanceOf("bob"); !got.Eq(amt(30)) {
		t.Errorf("rejected batch changed sender balance: %s", got)
	}
	if !l.BalanceOf("dave").IsZero() || !l.BalanceOf("frank").IsZero() {
		t.Error("rejected batch credited a recipient")
	}
}

func TestBatchTransferLegacyDebit(t *testing.T) {
	l := token.New("alice", token.WithLegacyBatchDebit())
	if err := l.Mint("alice", "bob", amt(30)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := l.Blacklist("alice", "carol"); err != nil {
		t.Fatalf("blacklist failed: %v", err)
	}

	recipients := []token.Address{"dave", "carol", "frank"}
	amounts := []*uint256.Int{amt(10), amt(10), amt(10)}
	if err := l.BatchTransfer("bob", recipients, amounts); err != nil {
		t.Fatalf("batch transfer failed: %v", err)
	}

	// Historical behavior: the full 30 is debited although only 20 was
	// credited. The skipped 10 is destroyed without a matching supply
	// decrease, so conservation no longer holds.
	if !l.BalanceOf("bob").IsZero() {
		t.Errorf("expected full-total debit, got %s", l.BalanceOf("bob"))
	}
	if got := l.BalanceOf("dave"); !got.Eq(amt(10)) {
		t.Errorf("expected dave balance 10, got %s", got)
	}
	if !l.BalanceOf("carol").IsZero() {
		t.Error("blacklisted recipient was credited")
	}
	if got := l.TotalSupply(); !got.Eq(amt(30)) {
		t.Errorf("supply should be untouched, got %s", got)
	}
	if l.CheckConservation() {
		t.Error("legacy batch debit should break conservation here")
	}
}

func TestBatchTransferSenderBlacklisted(t *testing.T) {
	l := token.New("alice")
	if err := l.Mint("alice", "bob", amt(30)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := l.Blacklist("alice", "bob"); err != nil {
		t.Fatalf("blacklist failed: %v", err)
	}

	err := l.BatchTransfer("bob", []token.Address{"dave"}, []*uint256.Int{amt(1)})
	if !errors.Is(err, token.ErrBlacklisted) {
		t.Fatalf("expected ErrBlacklisted, got %v", err)
	}
}

func TestBatchTransferSumOverflow(t *testing.T) {
	l := token.New("alice")
	if err := l.Mint("alice", "bob", amt(10)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	recipients := []token.Address{"dave", "frank"}
	amounts := []*uint256.Int{token.MaxAmount(), amt(1)}
	err := l.BatchTransfer("bob", recipients, amounts)
	if !errors.Is(err, token.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(10)) {
		t.Errorf("failed batch changed sender balance: %s", got)
	}
	if !l.BalanceOf("dave").IsZero() {
		t.Error("failed batch credited a recipient")
	}
}

func TestBatchTransferDuplicateRecipients(t *testing.T) {
	l := token.New("alice")
	if err := l.Mint("alice", "bob", amt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	// Duplicate recipients accumulate.
	recipients := []token.Address{"dave", "dave", "dave"}
	amounts := []*uint256.Int{amt(10), amt(20), amt(30)}
	if err := l.BatchTransfer("bob", recipients, amounts); err != nil {
		t.Fatalf("batch transfer failed: %v", err)
	}
	if got := l.BalanceOf("dave"); !got.Eq(amt(60)) {
		t.Errorf("expected accumulated balance 60, got %s", got)
	}
	if got := l.BalanceOf("bob"); !got.Eq(amt(40)) {
		t.Errorf("expected sender balance 40, got %s", got)
	}
	if !l.CheckConservation() {
		t.Error("conservation broken by duplicate recipients")
	}
}

func TestOverflowBoundary(t *testing.T) {
	l := token.New("alice")

	// Max representable value on an empty balance is fine.
	if err := l.Mint("alice", "bob", token.MaxAmount()); err != nil {
		t.Fatalf("mint of max amount failed: %v", err)
	}
	// One more unit overflows.
	if err := l.Mint("alice", "bob", amt(1)); !errors.Is(err, token.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}

	// Amounts wider than 128 bits are rejected at the boundary.
	tooWide := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	if err := l.Approve("bob", "eve", tooWide); !errors.Is(err, token.ErrOverflow) {
		t.Fatalf("expected ErrOverflow for wide amount, got %v", err)
	}
}

func TestConservationAcrossOperations(t *testing.T) {
	l := token.New("alice")

	ops := []func() error{
		func() error { return l.Mint("alice", "bob", amt(1000)) },
		func() error { return l.Transfer("bob", "dave", amt(300)) },
		func() error { return l.Approve("bob", "eve", amt(200)) },
		func() error { return l.TransferFrom("eve", "bob", "frank", amt(150)) },
		func() error { return l.Burn("dave", amt(100)) },
		func() error {
			return l.BatchTransfer("bob", []token.Address{"gina", "hank"}, []*uint256.Int{amt(50), amt(60)})
		},
		func() error { return l.Mint("alice", "bob", amt(0)) },
		func() error { return l.Burn("frank", amt(0)) },
	}
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("op %d failed: %v", i, err)
		}
		if !l.CheckConservation() {
			t.Fatalf("conservation broken after op %d", i)
		}
	}

	// No single balance may exceed the total supply.
	supply := l.TotalSupply()
	for _, account := range l.Accounts() {
		if l.BalanceOf(account).Gt(supply) {
			t.Errorf("balance of %s exceeds total supply", account)
		}
	}
}

func TestErrorsLeaveStateUnchanged(t *testing.T) {
	build := func() *token.Ledger {
		l := token.New("alice")
		l.Mint("alice", "bob", amt(100))
		l.Mint("alice", "dave", amt(50))
		l.Approve("bob", "eve", amt(10))
		l.Blacklist("alice", "mallory")
		return l
	}

	snapshot := func(l *token.Ledger) map[string]string {
		s := map[string]string{
			"supply": l.TotalSupply().String(),
			"paused": "",
		}
		if l.IsPaused() {
			s["paused"] = "yes"
		}
		for _, a := range []token.Address{"alice", "bob", "dave", "eve", "mallory"} {
			s["bal:"+string(a)] = l.BalanceOf(a).String()
		}
		s["allow:bob:eve"] = l.Allowance("bob", "eve").String()
		return s
	}

	failures := []struct {
		name string
		op   func(l *token.Ledger) error
	}{
		{"unauthorized mint", func(l *token.Ledger) error { return l.Mint("bob", "bob", amt(1)) }},
		{"burn too much", func(l *token.Ledger) error { return l.Burn("bob", amt(1000)) }},
		{"transfer too much", func(l *token.Ledger) error { return l.Transfer("bob", "dave", amt(1000)) }},
		{"self transfer", func(l *token.Ledger) error { return l.Transfer("bob", "bob", amt(1)) }},
		{"blacklisted recipient", func(l *token.Ledger) error { return l.Transfer("bob", "mallory", amt(1)) }},
		{"allowance exceeded", func(l *token.Ledger) error { return l.TransferFrom("eve", "bob", "dave", amt(11)) }},
		{"batch mismatch", func(l *token.Ledger) error { return l.BatchTransfer("bob", []token.Address{"dave"}, nil) }},
		{"batch too much", func(l *token.Ledger) error {
			return l.BatchTransfer("bob", []token.Address{"dave"}, []*uint256.Int{amt(1000)})
		}},
		{"unauthorized pause", func(l *token.Ledger) error { return l.Pause("bob") }},
		{"unauthorized blacklist", func(l *token.Ledger) error { return l.Blacklist("bob", "dave") }},
	}

	for _, tc := range failures {
		l := build()
		before := snapshot(l)
		if err := tc.op(l); err == nil {
			t.Fatalf("%s: expected an error", tc.name)
		}
		after := snapshot(l)
		for k, v := range before {
			if after[k] != v {
				t.Errorf("%s: %s changed from %q to %q", tc.name, k, v, after[k])
			}
		}
	}
}

func TestQueriesOnEmptyLedger(t *testing.T) {
	l := token.New("alice")

	if !l.BalanceOf("nobody").IsZero() {
		t.Error("absent balance should be zero")
	}
	if !l.Allowance("nobody", "noone").IsZero() {
		t.Error("absent allowance should be zero")
	}
	if l.IsBlacklisted("nobody") {
		t.Error("absent blacklist entry should be false")
	}
	if len(l.Accounts()) != 0 {
		t.Error("expected no accounts")
	}
	if len(l.Allowances()) != 0 {
		t.Error("expected no allowance pairs")
	}
	if len(l.Blacklisted()) != 0 {
		t.Error("expected no blacklisted accounts")
	}
}
