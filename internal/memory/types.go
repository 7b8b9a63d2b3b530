// Package memory stores saved items in PostgreSQL + pgvector and retrieves
// them by embedding similarity, strictly scoped to one chat.
package memory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// VectorDimension is the embedding dimension used by the items schema.
	// gemini-embedding-001 supports truncation to 768 via OutputDimensionality.
	VectorDimension int32 = 768

	// EmbedTimeout bounds a single embedding API call.
	EmbedTimeout = 10 * time.Second

	// MaxTopK is the absolute cap on search results per query.
	MaxTopK = 50

	// MaxContentLength is the maximum canonical text length stored per item.
	MaxContentLength = 8000

	// MaxSearchQueryLen truncates oversized search queries before embedding.
	MaxSearchQueryLen = 2000
)

var (
	// ErrRetrievalUnavailable indicates the search path failed (embedding or
	// database error). Distinct from a legitimate empty result: callers must
	// surface it to the user instead of showing "no matches".
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrInvalidItem indicates an item failed validation before storage.
	ErrInvalidItem = errors.New("invalid item")
)

// Kind labels the original content type of a saved item.
type Kind string

const (
	KindText     Kind = "text"
	KindVoice    Kind = "voice"
	KindPhoto    Kind = "photo"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	KindLocation Kind = "location"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindVoice, KindPhoto, KindVideo, KindDocument, KindLocation:
		return true
	}
	return false
}

// MessageRef identifies the original chat message an item came from.
// It is kept verbatim so a selection reply can forward the source message.
type MessageRef struct {
	ChatID    string
	MessageID int64
}

// Item is one saved piece of content. Immutable after Save; the upsert on
// id makes redelivered messages idempotent.
type Item struct {
	ID            uuid.UUID
	ChatID        string
	Kind          Kind
	CanonicalText string
	Source        MessageRef
	CreatedAt     time.Time
}

// SearchHit is an ephemeral search result. Score is cosine similarity from
// the index; RerankScore is set by the reranker (0 when reranking was
// skipped or failed).
type SearchHit struct {
	ItemID        uuid.UUID
	ChatID        string
	Kind          Kind
	CanonicalText string
	Source        MessageRef
	Score         float64
	RerankScore   float64
}
