package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/contractiq/backend/internal/api"
	"github.com/contractiq/backend/internal/audit"
	"github.com/contractiq/backend/internal/auth"
	"github.com/contractiq/backend/internal/cache"
	"github.com/contractiq/backend/internal/config"
	"github.com/contractiq/backend/internal/contracts"
	"github.com/contractiq/backend/internal/database"
	"github.com/contractiq/backend/internal/embedding"
	"github.com/contractiq/backend/internal/query"
	"github.com/contractiq/backend/internal/queue"
	"github.com/contractiq/backend/internal/storage"
	"github.com/contractiq/backend/internal/store"
	"github.com/contractiq/backend/internal/vectorindex"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Without DATABASE_URL everything runs in process memory.
	var db *pgxpool.Pool
	if cfg.Database.URL != "" {
		db, err = database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Redis connection (optional)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisUp := rdb.Ping(ctx).Err() == nil
	if !redisUp {
		slog.Warn("redis unavailable, running without cache or queue")
	}
	defer rdb.Close()

	auditLog := audit.NewLogger(db)

	var (
		tenants store.TenantStore
		docs    store.DocumentStore
		chunks  store.ChunkStore
	)
	if db != nil {
		pg := store.NewPostgres(db, cfg.Embedding.Dim, auditLog)
		tenants, docs, chunks = pg, pg, pg
	} else {
		mem := store.NewMemory(cfg.Embedding.Dim, auditLog)
		tenants, docs, chunks = mem, mem, mem
	}

	index := buildIndex(cfg, db)

	var embedder embedding.Embedder = embedding.NewOpenAI(cfg.Embedding.OpenAIKey, cfg.Embedding.Model, cfg.Embedding.Dim)
	if redisUp {
		embedder = embedding.NewCached(embedder, cache.NewCache(rdb), cfg.Embedding.Model)
	}

	files, err := storage.NewLocal(cfg.Storage.Dir)
	if err != nil {
		slog.Error("failed to init file storage", "error", err)
		os.Exit(1)
	}

	var enqueuer contracts.IngestEnqueuer
	if redisUp {
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		enqueuer = qc
	}

	contractSvc := contracts.NewService(docs, chunks, index, files, enqueuer, auditLog)
	authSvc := auth.NewService(tenants, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, auditLog)
	engine := query.NewEngine(embedder, index, chunks, docs)

	handler := api.NewRouter(api.Deps{
		DB:          db,
		Redis:       rdb,
		Tenants:     tenants,
		AuthService: authSvc,
		Contracts:   contractSvc,
		Engine:      engine,
		AskTimeout:  cfg.Embedding.Timeout,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "index", cfg.Index.Kind)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// buildIndex picks the similarity index backend: pgvector when a database is
// attached, otherwise one of the in-memory indexes per INDEX_KIND.
func buildIndex(cfg *config.Config, db *pgxpool.Pool) vectorindex.Index {
	if db != nil {
		return vectorindex.NewPgVector(db, cfg.Embedding.Dim)
	}
	if cfg.Index.Kind == "ivf" {
		return vectorindex.NewIVF(cfg.Embedding.Dim, vectorindex.IVFOptions{NProbe: cfg.Index.NProbe})
	}
	return vectorindex.NewBruteForce(cfg.Embedding.Dim)
}
