package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/recallhq/recall/internal/memory"
)

// resultSet is one chat's live numbered results.
type resultSet struct {
	hits      []memory.SearchHit
	expiresAt time.Time
}

// InMemory is the process-local Registry. Suited to single-instance
// deployments; use Redis when multiple instances share chats.
//
// InMemory is safe for concurrent use by multiple goroutines.
type InMemory struct {
	mu   sync.Mutex
	sets map[string]resultSet
	ttl  time.Duration
	now  func() time.Time
}

// NewInMemory creates an in-memory registry. ttl <= 0 uses DefaultTTL.
func NewInMemory(ttl time.Duration) *InMemory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemory{
		sets: make(map[string]resultSet),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Store replaces the chat's live set under a single lock acquisition, so
// the replacement is all-or-nothing. The hits are copied: later mutations
// of the caller's slice cannot reach into the registry.
func (r *InMemory) Store(_ context.Context, chatID string, hits []memory.SearchHit) error {
	cp := make([]memory.SearchHit, len(hits))
	copy(cp, hits)

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(cp) == 0 {
		delete(r.sets, chatID)
		return nil
	}
	r.sets[chatID] = resultSet{
		hits:      cp,
		expiresAt: r.now().Add(r.ttl),
	}
	return nil
}

// Resolve returns the hit at the 1-based rank, or ErrNoSuchRank.
func (r *InMemory) Resolve(_ context.Context, chatID string, rank int) (memory.SearchHit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.liveSetLocked(chatID)
	if !ok || rank < 1 || rank > len(set.hits) {
		return memory.SearchHit{}, ErrNoSuchRank
	}
	return set.hits[rank-1], nil
}

// Count returns the live set size (0 when absent or expired).
func (r *InMemory) Count(_ context.Context, chatID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.liveSetLocked(chatID)
	if !ok {
		return 0, nil
	}
	return len(set.hits), nil
}

// Clear drops the chat's live set.
func (r *InMemory) Clear(_ context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, chatID)
	return nil
}

// liveSetLocked returns the chat's set if present and not expired.
// Expired sets are evicted on access; the sweeper handles idle chats.
func (r *InMemory) liveSetLocked(chatID string) (resultSet, bool) {
	set, ok := r.sets[chatID]
	if !ok {
		return resultSet{}, false
	}
	if r.now().After(set.expiresAt) {
		delete(r.sets, chatID)
		return resultSet{}, false
	}
	return set, true
}

// sweep evicts all expired sets. Returns the number evicted.
func (r *InMemory) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	evicted := 0
	for chatID, set := range r.sets {
		if now.After(set.expiresAt) {
			delete(r.sets, chatID)
			evicted++
		}
	}
	return evicted
}

// SweepInterval is how often the Sweeper scans for expired sets.
const SweepInterval = time.Minute

// Sweeper periodically evicts expired result sets from an InMemory registry.
// Access-time eviction already keeps answers correct; the sweeper only
// bounds memory held by chats that went quiet.
type Sweeper struct {
	registry *InMemory
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper with the default interval.
func NewSweeper(registry *InMemory, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		registry: registry,
		interval: SweepInterval,
		logger:   logger,
	}
}

// Run blocks until ctx is canceled, evicting expired sets on each tick.
// Callers must track the goroutine with a WaitGroup.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.registry.sweep(); n > 0 {
				s.logger.Debug("expired result sets evicted", "count", n)
			}
		}
	}
}
