package token

import "github.com/holiman/uint256"

// AmountBits is the width of ledger amounts. Balances, allowances and the
// total supply are unsigned 128-bit quantities; arithmetic that would leave
// this range fails with ErrOverflow instead of wrapping.
const AmountBits = 128

// MaxAmount returns the largest representable amount (2^128 - 1).
func MaxAmount() *uint256.Int {
	max := new(uint256.Int).Lsh(uint256.NewInt(1), AmountBits)
	return max.SubUint64(max, 1)
}

// validAmount reports whether a fits in the amount width.
// A nil amount is treated as zero.
func validAmount(a *uint256.Int) bool {
	return a == nil || a.BitLen() <= AmountBits
}

// checkedAdd returns a+b, or ErrOverflow if the sum exceeds the amount
// width. Both operands are already width-checked, so the 256-bit addition
// itself cannot wrap.
func checkedAdd(a, b *uint256.Int) (*uint256.Int, error) {
	sum := new(uint256.Int).Add(a, b)
	if sum.BitLen() > AmountBits {
		return nil, ErrOverflow
	}
	return sum, nil
}

// checkedSub returns a-b, or ErrOverflow on underflow.
func checkedSub(a, b *uint256.Int) (*uint256.Int, error) {
	if a.Lt(b) {
		return nil, ErrOverflow
	}
	return new(uint256.Int).Sub(a, b), nil
}

// amountOrZero normalizes a nil amount to zero and copies the input so the
// ledger never aliases caller-owned values.
func amountOrZero(a *uint256.Int) *uint256.Int {
	if a == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(a)
}
