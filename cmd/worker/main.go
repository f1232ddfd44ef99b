package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/contractiq/backend/internal/audit"
	"github.com/contractiq/backend/internal/cache"
	"github.com/contractiq/backend/internal/config"
	"github.com/contractiq/backend/internal/contracts"
	"github.com/contractiq/backend/internal/database"
	"github.com/contractiq/backend/internal/embedding"
	"github.com/contractiq/backend/internal/ingest"
	"github.com/contractiq/backend/internal/queue"
	"github.com/contractiq/backend/internal/queue/workers"
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
	if cfg.Database.URL == "" {
		slog.Error("DATABASE_URL is required for the worker")
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	auditLog := audit.NewLogger(db)
	pg := store.NewPostgres(db, cfg.Embedding.Dim, auditLog)
	index := vectorindex.NewPgVector(db, cfg.Embedding.Dim)

	var embedder embedding.Embedder = embedding.NewOpenAI(cfg.Embedding.OpenAIKey, cfg.Embedding.Model, cfg.Embedding.Dim)
	if rdb.Ping(ctx).Err() == nil {
		embedder = embedding.NewCached(embedder, cache.NewCache(rdb), cfg.Embedding.Model)
	}

	files, err := storage.NewLocal(cfg.Storage.Dir)
	if err != nil {
		slog.Error("failed to init file storage", "error", err)
		os.Exit(1)
	}

	contractSvc := contracts.NewService(pg, pg, index, files, nil, auditLog)
	pipeline := ingest.NewPipeline(contractSvc, files, embedder)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	})

	mux := asynq.NewServeMux()
	mux.Handle(queue.TypeContractIngest, asynq.HandlerFunc(workers.NewIngestWorker(pipeline).ProcessTask))
	mux.Handle(queue.TypeContractRefresh, asynq.HandlerFunc(workers.NewRefreshWorker(contractSvc).ProcessTask))

	// Daily status refresh keeps Expired/RenewalDue current.
	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register("@daily", asynq.NewTask(queue.TypeContractRefresh, nil)); err != nil {
		slog.Error("failed to register refresh schedule", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			slog.Error("scheduler error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
