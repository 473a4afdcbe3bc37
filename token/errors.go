package token

import "errors"

var (
	// Authorization errors
	ErrUnauthorized = errors.New("token: caller is not the ledger owner")

	// Transfer errors
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrSelfTransfer          = errors.New("token: transfer to self")
	ErrBatchLengthMismatch   = errors.New("token: recipients and amounts length mismatch")

	// Compliance errors
	ErrContractPaused = errors.New("token: ledger is paused")
	ErrBlacklisted    = errors.New("token: account is blacklisted")

	// Arithmetic errors
	ErrOverflow = errors.New("token: amount overflows 128 bits")
)
