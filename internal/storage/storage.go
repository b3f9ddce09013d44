// Package storage is the content-addressed blob store documents are saved
// to. Content goes in as an opaque string and comes back under an id; the
// ledger keeps track of which id is current for a session.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound reports a fetch for an id the store has never seen.
var ErrNotFound = errors.New("content not found")

// StorageError wraps any store failure: transport, database, not-found.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// StoreResult identifies stored content.
type StoreResult struct {
	ID   string `json:"id"`
	Size int    `json:"size"`
}

// Store is the client-facing content store contract.
type Store interface {
	Store(ctx context.Context, content string) (StoreResult, error)
	Fetch(ctx context.Context, id string) (string, error)
}
