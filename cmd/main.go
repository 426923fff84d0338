package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/Nasaee/go-todo-crud/internal/database"
	"github.com/Nasaee/go-todo-crud/internal/env"
	"github.com/Nasaee/go-todo-crud/internal/todo"
	"github.com/redis/go-redis/v9"
)

func main() {
	env.Init()

	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Logger
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, nil)
	if cfg.isProd() {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))

	var repo todo.TodoRepository
	switch cfg.backend {
	case backendMemory:
		repo = todo.NewMemoryRepo(
			todo.WithIDPolicy(cfg.memoryIDs),
			todo.WithSeed(todo.DefaultSeed()...),
		)
		slog.Info("using in-memory store")
	default:
		pool, err := database.Connect(ctx, cfg.db.dsn)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		slog.Info("database pool connected")

		if cfg.db.migrate {
			if err := database.Migrate(ctx, pool); err != nil {
				slog.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}

		repo = todo.NewRepository(pool)
	}

	// redis cache is optional
	if cfg.cache.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.cache.redisAddr})
		defer rdb.Close()

		repo = todo.NewCachedRepo(repo, rdb, cfg.cache.ttl)
		slog.Info("redis cache enabled", "addr", cfg.cache.redisAddr, "ttl", cfg.cache.ttl)
	}

	api := application{
		config:      cfg,
		todoService: todo.NewService(repo),
	}

	if err := api.run(ctx, api.mount()); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
