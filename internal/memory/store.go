package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// Querier is the persistence interface the Store depends on.
// *PGQuerier is the production implementation; tests provide fakes.
type Querier interface {
	UpsertItem(ctx context.Context, p UpsertItemParams) error
	SearchItems(ctx context.Context, p SearchItemsParams) ([]SearchItemsRow, error)
}

// Store embeds canonical text and persists items through a Querier.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	q        Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates an item Store.
func NewStore(q Querier, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{q: q, embedder: embedder, logger: logger}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Save embeds the item's canonical text and upserts it.
// The upsert keys on item.ID, so redelivering the same message is idempotent.
func (s *Store) Save(ctx context.Context, item Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	// Embed with timeout (no DB connection held while waiting on the API).
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, item.CanonicalText)
	if err != nil {
		return fmt.Errorf("embedding item: %w", err)
	}

	if err := s.q.UpsertItem(ctx, UpsertItemParams{
		ID:              item.ID,
		ChatID:          item.ChatID,
		Kind:            string(item.Kind),
		CanonicalText:   item.CanonicalText,
		Embedding:       vec,
		SourceChatID:    item.Source.ChatID,
		SourceMessageID: item.Source.MessageID,
	}); err != nil {
		return fmt.Errorf("storing item: %w", err)
	}

	s.logger.Debug("item saved", "item_id", item.ID, "chat_id", item.ChatID, "kind", item.Kind)
	return nil
}

// Search embeds the query and returns up to topK hits for chatID ordered by
// cosine similarity descending. Only items belonging to chatID are visible.
//
// Any embedding or database failure is reported as ErrRetrievalUnavailable so
// callers can distinguish "search broke" from "nothing matched".
func (s *Store) Search(ctx context.Context, chatID, query string, topK int) ([]SearchHit, error) {
	if chatID == "" {
		return nil, fmt.Errorf("%w: chat ID is required", ErrInvalidItem)
	}
	if query == "" {
		return []SearchHit{}, nil
	}
	if topK <= 0 {
		topK = 10
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	query = clampQuery(query, MaxSearchQueryLen)
	if strings.ContainsRune(query, 0) {
		return []SearchHit{}, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrRetrievalUnavailable, err)
	}

	rows, err := s.q.SearchItems(ctx, SearchItemsParams{
		ChatID:    chatID,
		Embedding: vec,
		Limit:     topK,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: searching items: %w", ErrRetrievalUnavailable, err)
	}

	hits := make([]SearchHit, len(rows))
	for i, r := range rows {
		hits[i] = SearchHit{
			ItemID:        r.ID,
			ChatID:        r.ChatID,
			Kind:          Kind(r.Kind),
			CanonicalText: r.CanonicalText,
			Source:        MessageRef{ChatID: r.SourceChatID, MessageID: r.SourceMessageID},
			Score:         r.Similarity,
		}
	}
	return hits, nil
}

// clampQuery truncates query to at most max bytes without splitting a
// multi-byte rune at the cut.
func clampQuery(query string, max int) string {
	if len(query) <= max {
		return query
	}
	cut := query[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

// validateItem checks required fields before storage.
func validateItem(item Item) error {
	if item.ID == uuid.Nil {
		return fmt.Errorf("%w: item ID is required", ErrInvalidItem)
	}
	if item.ChatID == "" {
		return fmt.Errorf("%w: chat ID is required", ErrInvalidItem)
	}
	if !item.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, item.Kind)
	}
	if item.CanonicalText == "" {
		return fmt.Errorf("%w: canonical text is required", ErrInvalidItem)
	}
	if len(item.CanonicalText) > MaxContentLength {
		return fmt.Errorf("%w: canonical text length %d exceeds maximum %d",
			ErrInvalidItem, len(item.CanonicalText), MaxContentLength)
	}
	if item.Source.ChatID == "" || item.Source.MessageID == 0 {
		return fmt.Errorf("%w: source message ref is required", ErrInvalidItem)
	}
	return nil
}
