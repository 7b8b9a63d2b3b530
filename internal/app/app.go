// Package app provides application initialization and dependency wiring.
//
// App is the container holding every long-lived component: Genkit, the
// database pool, the memory store, the classifier, the reranker, the
// normalizer and the result registry. Setup builds it; Close releases it.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/gofrs/flock"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/intent"
	"github.com/recallhq/recall/internal/llm"
	"github.com/recallhq/recall/internal/memory"
	"github.com/recallhq/recall/internal/normalize"
	"github.com/recallhq/recall/internal/registry"
	"github.com/recallhq/recall/internal/rerank"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool
	LLM      *llm.Client

	// Domain components
	Store      *memory.Store
	Classifier *intent.Classifier
	Reranker   *rerank.Reranker
	Normalizer *normalize.Normalizer
	Registry   registry.Registry

	// Sweeper evicts expired result sets. Nil for the redis backend,
	// where the TTL is native.
	Sweeper *registry.Sweeper

	redis    *goredis.Client
	instance *flock.Flock
}

// Close gracefully releases all resources.
func (a *App) Close() error {
	a.logger().Info("shutting down")

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger().Warn("closing redis client", "error", err)
		}
	}
	if a.DBPool != nil {
		a.DBPool.Close()
		a.logger().Info("database pool closed")
	}
	if a.instance != nil {
		if err := a.instance.Unlock(); err != nil {
			a.logger().Warn("releasing instance lock", "error", err)
		}
	}
	return nil
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
