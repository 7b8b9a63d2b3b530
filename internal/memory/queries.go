package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// pgxConn is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UpsertItemParams carries one item row for insertion.
type UpsertItemParams struct {
	ID              uuid.UUID
	ChatID          string
	Kind            string
	CanonicalText   string
	Embedding       pgvector.Vector
	SourceChatID    string
	SourceMessageID int64
}

// SearchItemsParams scopes a similarity search to one chat.
type SearchItemsParams struct {
	ChatID    string
	Embedding pgvector.Vector
	Limit     int
}

// SearchItemsRow is one row of a similarity search result.
type SearchItemsRow struct {
	ID              uuid.UUID
	ChatID          string
	Kind            string
	CanonicalText   string
	SourceChatID    string
	SourceMessageID int64
	CreatedAt       time.Time
	Similarity      float64
}

// upsertItemSQL keys on id: redelivered messages produce the same item ID,
// so a second delivery refreshes the row instead of duplicating it.
const upsertItemSQL = `INSERT INTO items (id, chat_id, kind, canonical_text, embedding, source_chat_id, source_message_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE
	SET canonical_text = EXCLUDED.canonical_text,
	    embedding = EXCLUDED.embedding`

// PGQuerier implements Querier on PostgreSQL via pgx.
type PGQuerier struct {
	db pgxConn
}

// NewPGQuerier creates a Querier backed by the given connection pool.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{db: pool}
}

// UpsertItem inserts or refreshes one item row.
func (q *PGQuerier) UpsertItem(ctx context.Context, p UpsertItemParams) error {
	_, err := q.db.Exec(ctx, upsertItemSQL,
		p.ID, p.ChatID, p.Kind, p.CanonicalText, p.Embedding, p.SourceChatID, p.SourceMessageID,
	)
	if err != nil {
		return fmt.Errorf("upserting item: %w", err)
	}
	return nil
}

// SearchItems returns the nearest items for one chat by cosine distance.
// The chat_id predicate is the tenant boundary; it is never optional.
func (q *PGQuerier) SearchItems(ctx context.Context, p SearchItemsParams) ([]SearchItemsRow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, chat_id, kind, canonical_text, source_chat_id, source_message_id, created_at,
		        1 - (embedding <=> $2) AS similarity
		 FROM items
		 WHERE chat_id = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		p.ChatID, p.Embedding, p.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var out []SearchItemsRow
	for rows.Next() {
		var r SearchItemsRow
		if err := rows.Scan(
			&r.ID, &r.ChatID, &r.Kind, &r.CanonicalText,
			&r.SourceChatID, &r.SourceMessageID, &r.CreatedAt, &r.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return out, nil
}
