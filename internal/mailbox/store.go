package mailbox

import (
	"context"
	"time"

	"github.com/solatis/amcheck/internal/types"
)

// TextMode selects how the terms of a TextCondition combine.
type TextMode int

const (
	// MatchAny is satisfied when the body contains at least one term.
	MatchAny TextMode = iota
	// MatchAll is satisfied when the body contains every term.
	MatchAll
)

func (m TextMode) String() string {
	if m == MatchAll {
		return "all"
	}
	return "any"
}

// TextCondition is a substring condition answered store-side.
type TextCondition struct {
	Mode  TextMode
	Terms []string
}

// ContentOracle answers body questions without loading every body.
type ContentOracle interface {
	// SearchBodies returns the subset of ids whose body satisfies cond.
	SearchBodies(ctx context.Context, ids []types.UID, cond TextCondition) ([]types.UID, error)

	// FetchBodies returns raw body text for ids. Implementations may return
	// fewer entries than requested; callers treat that as fatal.
	FetchBodies(ctx context.Context, ids []types.UID) (map[types.UID][]byte, error)
}

// Deleter removes messages from the selected mailbox.
type Deleter interface {
	// Delete flags every id as deleted and expunges them as one batch.
	Delete(ctx context.Context, ids []types.UID) error
}

// Query selects messages in the current mailbox. A zero Since selects all.
type Query struct {
	Since time.Time
}

// Store is one exclusively owned session against a message store.
// Implementations are not safe for concurrent use.
type Store interface {
	ContentOracle
	Deleter

	// Select makes name the current mailbox for every later call.
	Select(ctx context.Context, name string) error

	// Search returns the UIDs in the current mailbox matching q.
	Search(ctx context.Context, q Query) ([]types.UID, error)

	// FetchEnvelopes returns envelope metadata for ids.
	FetchEnvelopes(ctx context.Context, ids []types.UID) ([]Envelope, error)

	// EnsureMailbox creates name unless it already exists.
	EnsureMailbox(ctx context.Context, name string) error

	// Move moves ids from the current mailbox into dest.
	Move(ctx context.Context, ids []types.UID, dest string) error

	// Close ends the session.
	Close() error
}
