package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/gofrs/flock"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/recallhq/recall/db"
	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/geo"
	"github.com/recallhq/recall/internal/intent"
	"github.com/recallhq/recall/internal/llm"
	"github.com/recallhq/recall/internal/media"
	"github.com/recallhq/recall/internal/memory"
	"github.com/recallhq/recall/internal/normalize"
	"github.com/recallhq/recall/internal/registry"
	"github.com/recallhq/recall/internal/rerank"
)

// ErrAlreadyRunning indicates another instance holds the lock file.
var ErrAlreadyRunning = errors.New("another instance is already running")

// lockFileName lives under ~/.recall next to the config file.
const lockFileName = "recall.lock"

// Setup creates and initializes the application.
// Returns an App with embedded cleanup - call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	lock, err := acquireInstanceLock()
	if err != nil {
		return nil, err
	}
	a.instance = lock

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	a.LLM, err = llm.New(g, cfg.FullModelName(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	a.Store, err = memory.NewStore(memory.NewPGQuerier(pool), embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating memory store: %w", err)
	}

	a.Classifier, err = intent.NewClassifier(a.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("creating classifier: %w", err)
	}

	a.Reranker, err = rerank.New(a.LLM, cfg.RerankCandidates, logger)
	if err != nil {
		return nil, fmt.Errorf("creating reranker: %w", err)
	}

	a.Normalizer, err = provideNormalizer(cfg, a.LLM, logger)
	if err != nil {
		return nil, err
	}

	if err := provideRegistry(a, cfg, logger); err != nil {
		return nil, err
	}

	return a, nil
}

// acquireInstanceLock takes the single-instance lock under ~/.recall.
// Two instances sharing one chat would double-save and race the registry.
func acquireInstanceLock() (*flock.Flock, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".recall")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring instance lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the Gemini provider.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	return g, nil
}

// provideEmbedder looks up the embedder registered by the Gemini plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}

// provideNormalizer assembles the content normalizer and its media helpers.
func provideNormalizer(cfg *config.Config, gen media.Generator, logger *slog.Logger) (*normalize.Normalizer, error) {
	fallback := cfg.FullFallbackModelName()

	transcriber, err := media.NewTranscriber(gen, fallback, logger)
	if err != nil {
		return nil, fmt.Errorf("creating transcriber: %w", err)
	}
	describer, err := media.NewDescriber(gen, fallback, logger)
	if err != nil {
		return nil, fmt.Errorf("creating describer: %w", err)
	}
	geocoder, err := geo.New(cfg.GeocoderBaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("creating geocoder: %w", err)
	}
	links, err := media.NewLinkExtractor(logger)
	if err != nil {
		return nil, fmt.Errorf("creating link extractor: %w", err)
	}

	n, err := normalize.New(transcriber, describer, media.NewQRDecoder(), geocoder, links, logger)
	if err != nil {
		return nil, fmt.Errorf("creating normalizer: %w", err)
	}
	return n, nil
}

// provideRegistry wires the configured result registry backend.
func provideRegistry(a *App, cfg *config.Config, logger *slog.Logger) error {
	switch cfg.RegistryBackend {
	case config.RegistryRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		reg, err := registry.NewRedis(client, cfg.ResultTTL)
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("creating redis registry: %w", err)
		}
		a.redis = client
		a.Registry = reg
	default:
		mem := registry.NewInMemory(cfg.ResultTTL)
		a.Registry = mem
		a.Sweeper = registry.NewSweeper(mem, logger)
	}
	return nil
}
