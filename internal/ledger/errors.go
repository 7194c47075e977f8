package ledger

import "errors"

// Rejection reasons returned by Account and Engine operations.
// None of them is fatal; Engine.Run counts and logs them and carries on.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrUnknownTransaction   = errors.New("transaction not open for dispute")
	ErrNotDisputed          = errors.New("transaction not under dispute")
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
	ErrMissingAmount        = errors.New("missing amount")
	ErrAccountLocked        = errors.New("account locked")
	ErrUnknownKind          = errors.New("unknown event kind")
)
