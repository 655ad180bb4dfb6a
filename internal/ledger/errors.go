package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientCollateral is returned when an open requests more
	// collateral than the account has available. The account is untouched.
	ErrInsufficientCollateral = errors.New("ledger: insufficient available collateral")

	// ErrPositionNotFound is returned when a close references an unknown
	// or already-closed position id. A second close of the same position
	// gets this error, never a silent second success.
	ErrPositionNotFound = errors.New("ledger: position not found")
)

// ValidationError rejects malformed input before any external call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError is the one case where external and internal state can
// diverge: settlement succeeded but the ledger write failed. Collateral
// accounting is wrong until the transaction named here is reconciled, so
// this is escalated (logged critical, counted) rather than swallowed.
type PersistenceError struct {
	Op      string // "open" or "close"
	Address string
	TxHash  string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger: %s settled as %s but persisting account %s failed: %v",
		e.Op, e.TxHash, e.Address, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
