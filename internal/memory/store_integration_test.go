package memory_test

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/memory"
	"github.com/recallhq/recall/internal/testutil"
)

// setupIntegrationStore boots a pgvector container and returns a Store backed by it.
func setupIntegrationStore(t *testing.T) (*memory.Store, *testutil.MockEmbedder) {
	t.Helper()

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	g := genkit.Init(context.Background())
	mock := testutil.NewMockEmbedder(int(memory.VectorDimension))
	embedder := mock.Register(g)

	store, err := memory.NewStore(memory.NewPGQuerier(db.Pool), embedder, testutil.QuietLogger())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	return store, mock
}

func TestIntegration_SaveAndSearch(t *testing.T) {
	store, _ := setupIntegrationStore(t)
	ctx := context.Background()

	item := memory.Item{
		ID:            uuid.New(),
		ChatID:        "chat-a",
		Kind:          memory.KindText,
		CanonicalText: "wifi password is in the kitchen drawer",
		Source:        memory.MessageRef{ChatID: "chat-a", MessageID: 1},
	}
	if err := store.Save(ctx, item); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// Exact content embeds to the same vector, so it must come back first.
	hits, err := store.Search(ctx, "chat-a", "wifi password is in the kitchen drawer", 5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ItemID != item.ID {
		t.Errorf("hit ID = %v, want %v", hits[0].ItemID, item.ID)
	}
	if hits[0].Score < 0.99 {
		t.Errorf("identical content should score ~1.0, got %v", hits[0].Score)
	}
}

func TestIntegration_TenantIsolation(t *testing.T) {
	store, _ := setupIntegrationStore(t)
	ctx := context.Background()

	save := func(chatID, text string, msgID int64) {
		t.Helper()
		err := store.Save(ctx, memory.Item{
			ID:            uuid.New(),
			ChatID:        chatID,
			Kind:          memory.KindText,
			CanonicalText: text,
			Source:        memory.MessageRef{ChatID: chatID, MessageID: msgID},
		})
		if err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}

	save("chat-a", "passport renewal deadline in march", 1)
	save("chat-b", "passport renewal deadline in march", 2)
	save("chat-b", "flight booking reference ABC123", 3)

	hits, err := store.Search(ctx, "chat-a", "passport renewal deadline in march", 10)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	for _, h := range hits {
		if h.ChatID != "chat-a" {
			t.Errorf("search for chat-a returned item from %q", h.ChatID)
		}
	}
	if len(hits) != 1 {
		t.Errorf("expected exactly the chat-a item, got %d hits", len(hits))
	}
}

func TestIntegration_UpsertIdempotent(t *testing.T) {
	store, _ := setupIntegrationStore(t)
	ctx := context.Background()

	item := memory.Item{
		ID:            uuid.New(),
		ChatID:        "chat-a",
		Kind:          memory.KindText,
		CanonicalText: "car parked on level 3",
		Source:        memory.MessageRef{ChatID: "chat-a", MessageID: 9},
	}

	// Redelivered message: same ID saved twice must not duplicate.
	if err := store.Save(ctx, item); err != nil {
		t.Fatalf("first Save() error: %v", err)
	}
	if err := store.Save(ctx, item); err != nil {
		t.Fatalf("second Save() error: %v", err)
	}

	hits, err := store.Search(ctx, "chat-a", "car parked on level 3", 10)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("expected 1 hit after redelivery, got %d", len(hits))
	}
}
