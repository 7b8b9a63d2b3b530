// Package pipeline wires the assistant together: classify an inbound
// message, then save, search or select, and reply through the transport.
//
// Messages within one chat are handled strictly in order; a per-chat lock
// keeps concurrent transports from interleaving a save and the query that
// depends on it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/format"
	"github.com/recallhq/recall/internal/intent"
	"github.com/recallhq/recall/internal/memory"
	"github.com/recallhq/recall/internal/normalize"
	"github.com/recallhq/recall/internal/registry"
	"github.com/recallhq/recall/internal/transport"
)

// Store persists and searches memory items. Satisfied by *memory.Store.
type Store interface {
	Save(ctx context.Context, item memory.Item) error
	Search(ctx context.Context, chatID, query string, topK int) ([]memory.SearchHit, error)
}

// Classifier labels a message. Satisfied by *intent.Classifier.
type Classifier interface {
	Classify(ctx context.Context, text string, activeCount int) intent.Result
}

// Reranker reorders search hits. Satisfied by *rerank.Reranker.
type Reranker interface {
	Rerank(ctx context.Context, query string, hits []memory.SearchHit) []memory.SearchHit
}

// Normalizer reduces content to canonical text. Satisfied by *normalize.Normalizer.
type Normalizer interface {
	Normalize(ctx context.Context, c normalize.Content) (string, error)
}

// Pipeline handles inbound messages end to end.
type Pipeline struct {
	store      Store
	classifier Classifier
	reranker   Reranker
	normalizer Normalizer
	registry   registry.Registry
	transport  transport.Transport
	topK       int
	minScore   float64
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*chatLock
}

// chatLock serializes one chat's messages. refs counts waiters plus the
// holder so the entry can be evicted once the chat goes idle.
type chatLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Pipeline. All collaborators are required; topK <= 0 uses
// the store's default. minScore is the similarity floor: hits scoring at or
// below it are dropped before presentation.
func New(store Store, classifier Classifier, reranker Reranker, normalizer Normalizer,
	reg registry.Registry, tr transport.Transport, topK int, minScore float64,
	logger *slog.Logger) (*Pipeline, error) {

	switch {
	case store == nil:
		return nil, fmt.Errorf("store is nil")
	case classifier == nil:
		return nil, fmt.Errorf("classifier is nil")
	case reranker == nil:
		return nil, fmt.Errorf("reranker is nil")
	case normalizer == nil:
		return nil, fmt.Errorf("normalizer is nil")
	case reg == nil:
		return nil, fmt.Errorf("registry is nil")
	case tr == nil:
		return nil, fmt.Errorf("transport is nil")
	case logger == nil:
		return nil, fmt.Errorf("logger is nil")
	}
	return &Pipeline{
		store:      store,
		classifier: classifier,
		reranker:   reranker,
		normalizer: normalizer,
		registry:   reg,
		transport:  tr,
		topK:       topK,
		minScore:   minScore,
		logger:     logger,
		locks:      make(map[string]*chatLock),
	}, nil
}

// Run receives and handles messages until the transport closes or the
// context is canceled. A failed message never stops the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		msg, err := p.transport.Receive(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("receiving message: %w", err)
		}
		if err := p.Handle(ctx, msg); err != nil {
			p.logger.Error("message handling failed",
				"chat_id", msg.ChatID, "message_id", msg.MessageID, "error", err)
		}
	}
}

// Handle processes one message and sends the reply. The returned error
// covers transport failures; domain failures are already answered with a
// user-facing message.
func (p *Pipeline) Handle(ctx context.Context, msg transport.Message) error {
	lock := p.acquireChat(msg.ChatID)
	defer p.releaseChat(msg.ChatID, lock)

	// Non-text content carries nothing to classify: it is always a save.
	if msg.Content.Kind != memory.KindText {
		return p.handleSave(ctx, msg)
	}

	activeCount, err := p.registry.Count(ctx, msg.ChatID)
	if err != nil {
		p.logger.Warn("result registry unavailable, assuming no live set",
			"chat_id", msg.ChatID, "error", err)
		activeCount = 0
	}

	res := p.classifier.Classify(ctx, msg.Content.Text, activeCount)
	p.logger.Debug("message classified",
		"chat_id", msg.ChatID, "intent", string(res.Intent), "ordinal", res.Ordinal)

	switch res.Intent {
	case intent.Save:
		return p.handleSave(ctx, msg)
	case intent.Query:
		return p.handleQuery(ctx, msg)
	case intent.Select:
		return p.handleSelect(ctx, msg, res.Ordinal)
	default:
		return p.transport.Reply(ctx, msg.ChatID, format.NothingAtRank(res.Ordinal))
	}
}

func (p *Pipeline) handleSave(ctx context.Context, msg transport.Message) error {
	canonical, err := p.normalizer.Normalize(ctx, msg.Content)
	if err != nil {
		if errors.Is(err, normalize.ErrUnsupportedContent) {
			return p.transport.Reply(ctx, msg.ChatID, format.Unsupported())
		}
		p.logger.Error("normalization failed",
			"chat_id", msg.ChatID, "kind", string(msg.Content.Kind), "error", err)
		return p.transport.Reply(ctx, msg.ChatID, format.SaveFailed())
	}

	item := memory.Item{
		ID:            uuid.New(),
		ChatID:        msg.ChatID,
		Kind:          msg.Content.Kind,
		CanonicalText: canonical,
		Source:        msg.Ref(),
		CreatedAt:     time.Now().UTC(),
	}
	if err := p.store.Save(ctx, item); err != nil {
		p.logger.Error("save failed", "chat_id", msg.ChatID, "item_id", item.ID, "error", err)
		return p.transport.Reply(ctx, msg.ChatID, format.SaveFailed())
	}

	return p.transport.Reply(ctx, msg.ChatID, format.Saved(item.Kind))
}

func (p *Pipeline) handleQuery(ctx context.Context, msg transport.Message) error {
	hits, err := p.store.Search(ctx, msg.ChatID, msg.Content.Text, p.topK)
	if err != nil {
		// A broken search must never read as "nothing saved". The live
		// result set, if any, stays as it was.
		p.logger.Error("search failed", "chat_id", msg.ChatID, "error", err)
		return p.transport.Reply(ctx, msg.ChatID, format.SearchFailed())
	}

	// Weakly similar hits read as noise; below the floor they are treated
	// as not found at all.
	hits = aboveFloor(hits, p.minScore)
	if len(hits) == 0 {
		return p.transport.Reply(ctx, msg.ChatID, format.NoResults())
	}

	hits = p.reranker.Rerank(ctx, msg.Content.Text, hits)

	if err := p.registry.Store(ctx, msg.ChatID, hits); err != nil {
		// Results are still worth showing; only selection will be
		// unavailable until the registry recovers.
		p.logger.Error("storing result set failed", "chat_id", msg.ChatID, "error", err)
	}

	return p.transport.Reply(ctx, msg.ChatID, format.Results(hits))
}

func (p *Pipeline) handleSelect(ctx context.Context, msg transport.Message, ordinal int) error {
	hit, err := p.registry.Resolve(ctx, msg.ChatID, ordinal)
	if err != nil {
		if errors.Is(err, registry.ErrNoSuchRank) {
			return p.transport.Reply(ctx, msg.ChatID, format.NothingAtRank(ordinal))
		}
		p.logger.Error("resolving selection failed",
			"chat_id", msg.ChatID, "ordinal", ordinal, "error", err)
		return p.transport.Reply(ctx, msg.ChatID, format.SearchFailed())
	}

	if err := p.transport.Forward(ctx, msg.ChatID, hit.Source); err != nil {
		// The context line below still carries the excerpt.
		p.logger.Warn("forwarding original failed",
			"chat_id", msg.ChatID, "source_chat_id", hit.Source.ChatID,
			"source_message_id", hit.Source.MessageID, "error", err)
	}

	return p.transport.Reply(ctx, msg.ChatID, format.Selected(ordinal, hit))
}

// aboveFloor drops hits whose similarity score is at or below minScore.
func aboveFloor(hits []memory.SearchHit, minScore float64) []memory.SearchHit {
	if minScore <= 0 {
		return hits
	}
	kept := hits[:0:0]
	for _, h := range hits {
		if h.Score > minScore {
			kept = append(kept, h)
		}
	}
	return kept
}

// acquireChat takes the chat's lock, creating it on first use.
func (p *Pipeline) acquireChat(chatID string) *chatLock {
	p.mu.Lock()
	lock, ok := p.locks[chatID]
	if !ok {
		lock = &chatLock{}
		p.locks[chatID] = lock
	}
	lock.refs++
	p.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// releaseChat unlocks and evicts the entry once no goroutine holds or
// waits on it, so the map does not grow with every chat ever seen.
func (p *Pipeline) releaseChat(chatID string, lock *chatLock) {
	lock.mu.Unlock()

	p.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(p.locks, chatID)
	}
	p.mu.Unlock()
}
