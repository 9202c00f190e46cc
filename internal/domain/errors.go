package domain

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletInactive      = errors.New("wallet is not active")
	ErrDuplicateWallet     = errors.New("wallet already exists for owner and currency")
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrCommandNotFound     = errors.New("transfer command not found")
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")
)
