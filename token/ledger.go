// Package token implements a value-conservation ledger: fungible unit
// balances per account, delegated-spend allowances, and compliance controls
// (pause, blacklist) behind a single operation surface.
//
// The ledger is a plain aggregate with no ambient state. The host resolves
// the caller identity for each call and passes it explicitly; durability
// and event delivery are injected collaborators. Every operation validates
// all preconditions and computes all resulting values before committing any
// mutation, so an error return always leaves the ledger untouched.
package token

import (
	"github.com/holiman/uint256"
)

// Address is an opaque account identifier supplied by the host.
type Address string

// allowanceKey identifies an (owner, spender) allowance pair.
type allowanceKey struct {
	owner   Address
	spender Address
}

// Ledger is the aggregate owning all ledger state: balances, allowances,
// the blacklist, the halt flag and the total supply. Absent map entries
// mean zero/false. The host must serialize mutating calls; the ledger
// itself performs no locking.
type Ledger struct {
	owner       Address
	paused      bool
	totalSupply uint256.Int
	balances    map[Address]*uint256.Int
	allowances  map[allowanceKey]*uint256.Int
	blacklist   map[Address]bool

	sink Sink

	// legacyBatchDebit reproduces the historical batch-transfer behavior
	// of debiting the sender for skipped entries. See BatchTransfer.
	legacyBatchDebit bool
}

// Option configures a Ledger at construction.
type Option func(*Ledger)

// WithSink attaches a notification sink. Events are emitted after the
// corresponding state change has committed.
func WithSink(s Sink) Option {
	return func(l *Ledger) { l.sink = s }
}

// WithLegacyBatchDebit makes BatchTransfer debit the sender by the full
// batch total even for skipped entries, matching the historical behavior.
// The skipped portion is destroyed without a matching credit, so total
// supply no longer equals the sum of balances afterwards. Off by default.
func WithLegacyBatchDebit() Option {
	return func(l *Ledger) { l.legacyBatchDebit = true }
}

// New creates an empty ledger owned by creator: zero supply, no balances,
// unpaused, empty blacklist. The owner is fixed for the ledger's lifetime.
func New(creator Address, opts ...Option) *Ledger {
	l := &Ledger{
		owner:      creator,
		balances:   make(map[Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
		blacklist:  make(map[Address]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetSink replaces the notification sink. Intended for hosts that restore
// a ledger before wiring delivery.
func (l *Ledger) SetSink(s Sink) { l.sink = s }

// LegacyBatchDebit reports whether BatchTransfer debits the full batch
// total including skipped entries.
func (l *Ledger) LegacyBatchDebit() bool { return l.legacyBatchDebit }

// Clone creates a deep copy of the ledger state. The sink is not carried
// over; operations on the clone emit nothing.
func (l *Ledger) Clone() *Ledger {
	clone := &Ledger{
		owner:            l.owner,
		paused:           l.paused,
		balances:         make(map[Address]*uint256.Int, len(l.balances)),
		allowances:       make(map[allowanceKey]*uint256.Int, len(l.allowances)),
		blacklist:        make(map[Address]bool, len(l.blacklist)),
		legacyBatchDebit: l.legacyBatchDebit,
	}
	clone.totalSupply.Set(&l.totalSupply)
	for k, v := range l.balances {
		clone.balances[k] = new(uint256.Int).Set(v)
	}
	for k, v := range l.allowances {
		clone.allowances[k] = new(uint256.Int).Set(v)
	}
	for k, v := range l.blacklist {
		clone.blacklist[k] = v
	}
	return clone
}

// balance returns the stored balance for account, or zero without
// allocating into the map.
func (l *Ledger) balance(account Address) *uint256.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return new(uint256.Int)
}

// allowance returns the stored allowance for (owner, spender), or zero.
func (l *Ledger) allowance(owner, spender Address) *uint256.Int {
	if a, ok := l.allowances[allowanceKey{owner, spender}]; ok {
		return a
	}
	return new(uint256.Int)
}

// Mint creates amount new units credited to to. Only the ledger owner may
// mint. The balance credit and the supply increase are validated together
// before either commits, so a supply overflow can never leave a half
// applied mint behind. Mint is deliberately not gated by pause or
// blacklist state.
func (l *Ledger) Mint(caller, to Address, amount *uint256.Int) error {
	if caller != l.owner {
		return ErrUnauthorized
	}
	if !validAmount(amount) {
		return ErrOverflow
	}
	amount = amountOrZero(amount)

	newBalance, err := checkedAdd(l.balance(to), amount)
	if err != nil {
		return err
	}
	newSupply, err := checkedAdd(&l.totalSupply, amount)
	if err != nil {
		return err
	}

	l.balances[to] = newBalance
	l.totalSupply.Set(newSupply)

	l.emit(MintEvent{To: to, Amount: amount})
	return nil
}

// Burn destroys amount units held by the caller.
func (l *Ledger) Burn(caller Address, amount *uint256.Int) error {
	if !validAmount(amount) {
		return ErrOverflow
	}
	amount = amountOrZero(amount)

	balance := l.balance(caller)
	if balance.Lt(amount) {
		return ErrInsufficientBalance
	}

	newBalance, err := checkedSub(balance, amount)
	if err != nil {
		return err
	}
	newSupply, err := checkedSub(&l.totalSupply, amount)
	if err != nil {
		return err
	}

	l.balances[caller] = newBalance
	l.totalSupply.Set(newSupply)

	l.emit(BurnEvent{From: caller, Amount: amount})
	return nil
}

// Transfer moves amount units from the caller to to. Guard order is fixed:
// pause, then blacklist on either side, then self-transfer, then balance.
// A caller hitting several violations at once sees the first in that order.
func (l *Ledger) Transfer(caller, to Address, amount *uint256.Int) error {
	if l.paused {
		return ErrContractPaused
	}
	if l.blacklist[caller] || l.blacklist[to] {
		return ErrBlacklisted
	}
	if caller == to {
		return ErrSelfTransfer
	}
	if !validAmount(amount) {
		return ErrOverflow
	}
	amount = amountOrZero(amount)

	fromBalance := l.balance(caller)
	if fromBalance.Lt(amount) {
		return ErrInsufficientBalance
	}

	newFrom, err := checkedSub(fromBalance, amount)
	if err != nil {
		return err
	}
	newTo, err := checkedAdd(l.balance(to), amount)
	if err != nil {
		return err
	}

	l.balances[caller] = newFrom
	l.balances[to] = newTo

	l.emit(TransferEvent{From: caller, To: to, Amount: amount})
	return nil
}

// Approve sets the caller's allowance for spender to amount. The new value
// replaces any previous allowance; approvals are not additive. Approve is
// not gated by pause or blacklist state.
func (l *Ledger) Approve(caller, spender Address, amount *uint256.Int) error {
	if !validAmount(amount) {
		return ErrOverflow
	}
	amount = amountOrZero(amount)

	l.allowances[allowanceKey{caller, spender}] = amount

	l.emit(ApprovalEvent{Owner: caller, Spender: spender, Amount: amount})
	return nil
}

// TransferFrom moves amount units from from to to on the caller's
// allowance. Gating matches Transfer (pause, blacklist on from or to,
// self-transfer), then the allowance is checked before the balance. On
// success the allowance is decremented by amount; only a Transfer record
// is emitted, the allowance change is implicit.
func (l *Ledger) TransferFrom(caller, from, to Address, amount *uint256.Int) error {
	if l.paused {
		return ErrContractPaused
	}
	if l.blacklist[from] || l.blacklist[to] {
		return ErrBlacklisted
	}
	if from == to {
		return ErrSelfTransfer
	}
	if !validAmount(amount) {
		return ErrOverflow
	}
	amount = amountOrZero(amount)

	allowance := l.allowance(from, caller)
	if allowance.Lt(amount) {
		return ErrInsufficientAllowance
	}

	fromBalance := l.balance(from)
	if fromBalance.Lt(amount) {
		return ErrInsufficientBalance
	}

	newFrom, err := checkedSub(fromBalance, amount)
	if err != nil {
		return err
	}
	newTo, err := checkedAdd(l.balance(to), amount)
	if err != nil {
		return err
	}
	newAllowance, err := checkedSub(allowance, amount)
	if err != nil {
		return err
	}

	l.balances[from] = newFrom
	l.balances[to] = newTo
	l.allowances[allowanceKey{from, caller}] = newAllowance

	l.emit(TransferEvent{From: from, To: to, Amount: amount})
	return nil
}

// BatchTransfer moves units from the caller to each recipient in input
// order. Entries whose recipient is blacklisted or is the caller are
// skipped: no credit, no record. Every credited entry emits its own
// Transfer record.
//
// All credits and the final debit are validated before anything commits,
// including duplicate recipients accumulating toward the width limit, so
// a failing batch leaves the ledger untouched.
//
// By default the caller is debited only for the entries actually credited,
// keeping total supply equal to the sum of balances. Under
// WithLegacyBatchDebit the caller is debited the full batch total, skipped
// entries included.
func (l *Ledger) BatchTransfer(caller Address, recipients []Address, amounts []*uint256.Int) error {
	if len(recipients) != len(amounts) {
		return ErrBatchLengthMismatch
	}
	if l.paused {
		return ErrContractPaused
	}
	if l.blacklist[caller] {
		return ErrBlacklisted
	}

	total := new(uint256.Int)
	for _, amount := range amounts {
		if !validAmount(amount) {
			return ErrOverflow
		}
		sum, err := checkedAdd(total, amountOrZero(amount))
		if err != nil {
			return err
		}
		total = sum
	}

	fromBalance := l.balance(caller)
	if fromBalance.Lt(total) {
		return ErrInsufficientBalance
	}

	// Phase one: compute every new balance without touching the ledger.
	credited := new(uint256.Int)
	pending := make(map[Address]*uint256.Int)
	type record struct {
		to     Address
		amount *uint256.Int
	}
	var records []record

	for i, recipient := range recipients {
		if l.blacklist[recipient] || recipient == caller {
			continue
		}
		amount := amountOrZero(amounts[i])

		current, ok := pending[recipient]
		if !ok {
			current = l.balance(recipient)
		}
		next, err := checkedAdd(current, amount)
		if err != nil {
			return err
		}
		pending[recipient] = next
		credited.Add(credited, amount)
		records = append(records, record{to: recipient, amount: amount})
	}

	debit := credited
	if l.legacyBatchDebit {
		debit = total
	}
	newFrom, err := checkedSub(fromBalance, debit)
	if err != nil {
		return err
	}

	// Phase two: commit.
	for recipient, balance := range pending {
		l.balances[recipient] = balance
	}
	l.balances[caller] = newFrom

	for _, r := range records {
		l.emit(TransferEvent{From: caller, To: r.to, Amount: r.amount})
	}
	return nil
}

// Pause halts transfers ledger-wide. Owner only. Mint, Burn and Approve
// remain available while paused.
func (l *Ledger) Pause(caller Address) error {
	if caller != l.owner {
		return ErrUnauthorized
	}
	l.paused = true
	l.emit(PausedEvent{IsPaused: true})
	return nil
}

// Unpause clears the halt flag. Owner only.
func (l *Ledger) Unpause(caller Address) error {
	if caller != l.owner {
		return ErrUnauthorized
	}
	l.paused = false
	l.emit(PausedEvent{IsPaused: false})
	return nil
}

// Blacklist flags account as restricted, blocking it from sending or
// receiving in Transfer, TransferFrom and BatchTransfer. Owner only.
func (l *Ledger) Blacklist(caller, account Address) error {
	if caller != l.owner {
		return ErrUnauthorized
	}
	l.blacklist[account] = true
	l.emit(BlacklistUpdatedEvent{Account: account, IsBlacklisted: true})
	return nil
}

// Unblacklist clears account's restricted flag. Owner only.
func (l *Ledger) Unblacklist(caller, account Address) error {
	if caller != l.owner {
		return ErrUnauthorized
	}
	l.blacklist[account] = false
	l.emit(BlacklistUpdatedEvent{Account: account, IsBlacklisted: false})
	return nil
}

// BalanceOf returns account's balance. Absent accounts hold zero.
func (l *Ledger) BalanceOf(account Address) *uint256.Int {
	return new(uint256.Int).Set(l.balance(account))
}

// Allowance returns the remaining amount spender may move out of owner's
// balance via TransferFrom.
func (l *Ledger) Allowance(owner, spender Address) *uint256.Int {
	return new(uint256.Int).Set(l.allowance(owner, spender))
}

// TotalSupply returns the current total supply.
func (l *Ledger) TotalSupply() *uint256.Int {
	return new(uint256.Int).Set(&l.totalSupply)
}

// Owner returns the ledger administrator, fixed at creation.
func (l *Ledger) Owner() Address { return l.owner }

// IsPaused reports whether transfers are halted.
func (l *Ledger) IsPaused() bool { return l.paused }

// IsBlacklisted reports whether account is restricted.
func (l *Ledger) IsBlacklisted(account Address) bool { return l.blacklist[account] }

// CheckConservation recomputes the sum of all balances and reports whether
// it equals the total supply. Always true for ledgers without legacy batch
// debits.
func (l *Ledger) CheckConservation() bool {
	sum := new(uint256.Int)
	for _, b := range l.balances {
		sum.Add(sum, b)
	}
	return sum.Eq(&l.totalSupply)
}

// Accounts returns every account with a stored balance entry, including
// entries that have gone back to zero. Order is unspecified.
func (l *Ledger) Accounts() []Address {
	accounts := make([]Address, 0, len(l.balances))
	for a := range l.balances {
		accounts = append(accounts, a)
	}
	return accounts
}

// AllowancePair identifies a stored allowance entry.
type AllowancePair struct {
	Owner   Address
	Spender Address
}

// Allowances returns every stored (owner, spender) pair. Order is
// unspecified.
func (l *Ledger) Allowances() []AllowancePair {
	pairs := make([]AllowancePair, 0, len(l.allowances))
	for k := range l.allowances {
		pairs = append(pairs, AllowancePair{k.owner, k.spender})
	}
	return pairs
}

// Blacklisted returns every account currently flagged as restricted.
// Order is unspecified.
func (l *Ledger) Blacklisted() []Address {
	accounts := make([]Address, 0, len(l.blacklist))
	for a, flagged := range l.blacklist {
		if flagged {
			accounts = append(accounts, a)
		}
	}
	return accounts
}
