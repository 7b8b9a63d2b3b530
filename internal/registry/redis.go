package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/recallhq/recall/internal/memory"
)

// keyPrefix namespaces result-set keys in a shared redis instance.
const keyPrefix = "recall:results:"

// storedHit is the JSON wire form of one result entry.
type storedHit struct {
	ItemID          uuid.UUID `json:"item_id"`
	ChatID          string    `json:"chat_id"`
	Kind            string    `json:"kind"`
	CanonicalText   string    `json:"canonical_text"`
	SourceChatID    string    `json:"source_chat_id"`
	SourceMessageID int64     `json:"source_message_id"`
	Score           float64   `json:"score"`
	RerankScore     float64   `json:"rerank_score,omitempty"`
}

// Redis is the shared-store Registry for horizontally scaled deployments.
// One key per chat holds the whole set as a JSON array; a single SET with
// TTL gives atomic replace, redis expiry gives the TTL semantics.
type Redis struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedis creates a redis-backed registry. ttl <= 0 uses DefaultTTL.
func NewRedis(client *goredis.Client, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// Store replaces the chat's live set with a single SET (atomic in redis).
func (r *Redis) Store(ctx context.Context, chatID string, hits []memory.SearchHit) error {
	if len(hits) == 0 {
		return r.Clear(ctx, chatID)
	}

	records := make([]storedHit, len(hits))
	for i, h := range hits {
		records[i] = storedHit{
			ItemID:          h.ItemID,
			ChatID:          h.ChatID,
			Kind:            string(h.Kind),
			CanonicalText:   h.CanonicalText,
			SourceChatID:    h.Source.ChatID,
			SourceMessageID: h.Source.MessageID,
			Score:           h.Score,
			RerankScore:     h.RerankScore,
		}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding result set: %w", err)
	}

	if err := r.client.Set(ctx, keyPrefix+chatID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("storing result set: %w", err)
	}
	return nil
}

// Resolve returns the hit at the 1-based rank, or ErrNoSuchRank.
func (r *Redis) Resolve(ctx context.Context, chatID string, rank int) (memory.SearchHit, error) {
	records, err := r.load(ctx, chatID)
	if err != nil {
		return memory.SearchHit{}, err
	}
	if rank < 1 || rank > len(records) {
		return memory.SearchHit{}, ErrNoSuchRank
	}

	rec := records[rank-1]
	return memory.SearchHit{
		ItemID:        rec.ItemID,
		ChatID:        rec.ChatID,
		Kind:          memory.Kind(rec.Kind),
		CanonicalText: rec.CanonicalText,
		Source:        memory.MessageRef{ChatID: rec.SourceChatID, MessageID: rec.SourceMessageID},
		Score:         rec.Score,
		RerankScore:   rec.RerankScore,
	}, nil
}

// Count returns the live set size (0 when absent or expired).
func (r *Redis) Count(ctx context.Context, chatID string) (int, error) {
	records, err := r.load(ctx, chatID)
	if errors.Is(err, ErrNoSuchRank) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Clear drops the chat's live set.
func (r *Redis) Clear(ctx context.Context, chatID string) error {
	if err := r.client.Del(ctx, keyPrefix+chatID).Err(); err != nil {
		return fmt.Errorf("clearing result set: %w", err)
	}
	return nil
}

// load fetches and decodes the chat's set. Absent keys map to ErrNoSuchRank.
func (r *Redis) load(ctx context.Context, chatID string) ([]storedHit, error) {
	data, err := r.client.Get(ctx, keyPrefix+chatID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNoSuchRank
	}
	if err != nil {
		return nil, fmt.Errorf("loading result set: %w", err)
	}

	var records []storedHit
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding result set: %w", err)
	}
	return records, nil
}
