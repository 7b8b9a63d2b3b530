// Package registry keeps the live numbered result set per chat.
//
// A chat has at most one live set: storing a new one atomically replaces
// the old. Entries are addressed by display rank 1..N and expire after a
// TTL, after which they resolve as absent.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/recallhq/recall/internal/memory"
)

// DefaultTTL is how long a stored result set stays selectable.
const DefaultTTL = 10 * time.Minute

// ErrNoSuchRank indicates the requested rank cannot be resolved: the chat
// has no live result set, the set expired, or the rank is out of bounds.
var ErrNoSuchRank = errors.New("no result at that rank")

// Registry stores and resolves per-chat result sets.
//
// Implementations must replace atomically: a reader sees either the full
// old set or the full new set, never a mix.
type Registry interface {
	// Store replaces the chat's live result set. Ranks are assigned by
	// position: hits[0] is rank 1. An empty hits slice clears the set.
	Store(ctx context.Context, chatID string, hits []memory.SearchHit) error

	// Resolve returns the hit at the 1-based rank, or ErrNoSuchRank.
	Resolve(ctx context.Context, chatID string, rank int) (memory.SearchHit, error)

	// Count returns the number of entries in the chat's live set (0 when
	// absent or expired).
	Count(ctx context.Context, chatID string) (int, error)

	// Clear drops the chat's live result set.
	Clear(ctx context.Context, chatID string) error
}
