// Package statehash computes commitments over ledger state. The digest
// covers every store (balances, allowances, blacklist) plus the control
// scalars, in a canonical order, so two ledgers agree on the commitment
// exactly when their observable state is identical. MiMC keeps the digest
// cheap to verify inside arithmetic circuits should a host ever need to.
package statehash

import (
	"crypto/sha256"
	"io"
	"sort"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/holiman/uint256"

	"github.com/pflow-xyz/go-ledger/token"
)

// Size is the commitment length in bytes.
const Size = 32

// Commit returns the commitment for the ledger's current state.
func Commit(l *token.Ledger) [Size]byte {
	h := mimc.NewMiMC()

	writeString(h, string(l.Owner()))
	writeBool(h, l.IsPaused())
	writeAmount(h, l.TotalSupply())
	writeBool(h, l.LegacyBatchDebit())

	// Balances, sorted by account. Zero-valued entries hash identically
	// to absent ones so cleared state matches fresh state.
	accounts := l.Accounts()
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })
	for _, account := range accounts {
		balance := l.BalanceOf(account)
		if balance.IsZero() {
			continue
		}
		writeString(h, string(account))
		writeAmount(h, balance)
	}

	pairs := l.Allowances()
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Owner != pairs[j].Owner {
			return pairs[i].Owner < pairs[j].Owner
		}
		return pairs[i].Spender < pairs[j].Spender
	})
	for _, pair := range pairs {
		allowance := l.Allowance(pair.Owner, pair.Spender)
		if allowance.IsZero() {
			continue
		}
		writeString(h, string(pair.Owner))
		writeString(h, string(pair.Spender))
		writeAmount(h, allowance)
	}

	restricted := l.Blacklisted()
	sort.Slice(restricted, func(i, j int) bool { return restricted[i] < restricted[j] })
	for _, account := range restricted {
		writeString(h, string(account))
		writeBool(h, true)
	}

	var digest [Size]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// writeString absorbs an account identifier as a field element. The
// identifier is first compressed to 256 bits and then reduced into the
// field, since MiMC only accepts canonical element bytes.
func writeString(h io.Writer, s string) {
	digest := sha256.Sum256([]byte(s))
	var e fr.Element
	e.SetBytes(digest[:])
	b := e.Bytes()
	h.Write(b[:])
}

// writeAmount absorbs a 128-bit amount, which always fits the field.
func writeAmount(h io.Writer, a *uint256.Int) {
	b := a.Bytes32()
	h.Write(b[:])
}

func writeBool(h io.Writer, v bool) {
	var e fr.Element
	if v {
		e.SetOne()
	}
	b := e.Bytes()
	h.Write(b[:])
}
