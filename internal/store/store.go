// Package store defines the persistence interface for account records.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/lorem111/claerdex/internal/model"
)

var (
	// ErrNotFound is returned when no account exists for an address.
	ErrNotFound = errors.New("store: account not found")

	// ErrConflict is returned when SaveAccount loses an optimistic
	// concurrency race: the stored version no longer matches the one the
	// caller loaded. The caller must reload and retry.
	ErrConflict = errors.New("store: account version conflict")
)

// Store is the persistence interface for accounts. PostgreSQL is the
// source of truth; Redis provides a read-through cache layer.
//
// SaveAccount is atomic per address: it compares the account's Version
// against the stored record and fails with ErrConflict on mismatch, so a
// load-mutate-save cycle can never silently overwrite a concurrent write.
// On success the account's Version is advanced in place.
type Store interface {
	// LoadAccount retrieves the account for an address. Returns a copy the
	// caller owns. ErrNotFound when the address has never been saved.
	LoadAccount(ctx context.Context, address string) (*model.Account, error)

	// SaveAccount persists the account, using Version for compare-and-swap.
	// Version zero inserts a new record.
	SaveAccount(ctx context.Context, acct *model.Account) error
}
