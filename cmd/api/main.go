package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/promptvault/promptvault/internal/api"
	"github.com/promptvault/promptvault/internal/audit"
	"github.com/promptvault/promptvault/internal/auth"
	"github.com/promptvault/promptvault/internal/cache"
	"github.com/promptvault/promptvault/internal/config"
	"github.com/promptvault/promptvault/internal/database"
	"github.com/promptvault/promptvault/internal/prompt"
	"github.com/promptvault/promptvault/internal/queue"
	"github.com/promptvault/promptvault/internal/store"
	"github.com/promptvault/promptvault/internal/user"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The API tolerates a missing database (in-memory fallback below),
	// but never an empty signing secret.
	if cfg.Auth.JWTSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()

	// Database connection. Without one, the process falls back to
	// in-memory stores: useful for local development, never durable.
	var (
		promptStore store.PromptStore
		ledger      store.VersionLedger
		userStore   user.Store
		auditSvc    *audit.Service
	)

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Warn("database unavailable, using in-memory stores", "error", err)
		promptStore = store.NewMemoryPromptStore()
		ledger = store.NewMemoryVersionLedger()
		userStore = user.NewMemoryStore()
	} else {
		defer db.Close()

		if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
			slog.Warn("migrations failed", "error", err)
		}

		promptStore = store.NewPostgresPromptStore(db)
		ledger = store.NewPostgresVersionLedger(db)
		userStore = user.NewPostgresStore(db)
		auditSvc = audit.NewService(db)
	}

	// Redis connection (optional — cache and event queue degrade to
	// no-ops without it).
	var (
		promptCache *cache.Cache
		events      *queue.Client
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without cache and events", "error", err)
		rdb.Close()
		rdb = nil
	} else {
		defer rdb.Close()
		promptCache = cache.New(rdb)
		events = queue.NewClient(cfg.Redis)
		defer events.Close()
	}

	users := user.NewService(userStore)
	prompts := prompt.NewService(promptStore, ledger, promptCache, events)
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	router := api.NewRouter(api.Deps{
		DB:      db,
		Redis:   rdb,
		Cfg:     cfg,
		Users:   users,
		Prompts: prompts,
		Audit:   auditSvc,
		Issuer:  issuer,
	})
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
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
