// Package ledger is the append/update record of which stored content is
// current for each session, keyed by session id and owner. Consensus and
// durability of the backing chain are out of scope here; this package only
// defines the contract and reference implementations.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports a lookup for a session with no ledger record.
var ErrNotFound = errors.New("ledger record not found")

// LedgerError wraps any ledger failure.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string { return fmt.Sprintf("ledger %s: %v", e.Op, e.Err) }
func (e *LedgerError) Unwrap() error { return e.Err }

// Record is the ledger's view of one session's document.
type Record struct {
	ContentID string    `json:"contentId"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Result is the outcome of a create or update.
type Result struct {
	Success bool   `json:"success"`
	TxRef   string `json:"txRef,omitempty"`
}

// Entry pairs a session id with its record, for owner listings.
type Entry struct {
	SessionID string `json:"sessionId"`
	Record    Record `json:"record"`
}

// Ledger is the client-facing contract. The owner of writes is implied by
// the caller's credential; Get returns nil (no error) when the session has
// no record yet.
type Ledger interface {
	Create(ctx context.Context, sessionID, contentID string) (Result, error)
	Update(ctx context.Context, sessionID, contentID string) (Result, error)
	Get(ctx context.Context, sessionID string) (*Record, error)
	ListByOwner(ctx context.Context, owner string) ([]Entry, error)
}
