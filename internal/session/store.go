// Package session holds the live orchestration state for in-progress
// interviews and the key-value stores that back it. Durable interview records
// live elsewhere; everything here is expendable after the retention window.
package session

import (
	"context"
	"errors"
	"time"
)

const (
	// keyPrefix namespaces session records in shared key-value backends.
	keyPrefix = "interview_state:"

	// TTL is the retention window for a session record. Every write resets
	// it, so an active interview never expires mid-session while abandoned
	// ones self-clean.
	TTL = 24 * time.Hour
)

// ErrNotFound signals that no session exists for the requested interview. It
// is authoritative: callers must treat the session as gone rather than
// fabricate a fresh one, even if durable storage still shows the interview as
// in progress.
var ErrNotFound = errors.New("session not found")

// Store persists live session state keyed by interview ID. Each write
// replaces the full record and resets its expiry to TTL.
type Store interface {
	Create(ctx context.Context, state *State) error
	Get(ctx context.Context, interviewID string) (*State, error)
	Set(ctx context.Context, state *State) error
	Delete(ctx context.Context, interviewID string) error
}

// Key returns the backend key for the given interview ID.
func Key(interviewID string) string {
	return keyPrefix + interviewID
}
