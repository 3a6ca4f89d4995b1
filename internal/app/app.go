// Package app wires configuration into the long-lived services shared by the
// HTTP server and the sync worker.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/emirg23/multi-BotChat/internal/ai"
	"github.com/emirg23/multi-BotChat/internal/chat"
	"github.com/emirg23/multi-BotChat/internal/config"
	"github.com/emirg23/multi-BotChat/internal/docstore"
	"github.com/emirg23/multi-BotChat/internal/mirror"
	"github.com/emirg23/multi-BotChat/internal/models"
	"github.com/emirg23/multi-BotChat/internal/session"
)

type App struct {
	Cfg      config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Docs     docstore.Store
	Repo     *chat.Repo
	Jobs     *session.JobRepo
	Sessions *session.Manager
	Logger   *slog.Logger
}

// NewRegistry registers every provider the config can reach and applies the
// bot family routes.
func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	reg.Register("anthropic", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.AnthropicModel
		}
		return ai.NewAnthropicProvider(cfg.AnthropicBaseURL, cfg.AnthropicAPIKey, m), nil
	})
	for family, route := range cfg.BotRoutes {
		reg.Route(family, route)
	}
	return reg
}

// New migrates the schema, opens the configured document store and builds the
// session manager.
func New(cfg config.Config, gdb *gorm.DB, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Cfg: cfg, DB: gdb, Logger: logger}

	a.Repo = chat.NewRepo(gdb)
	if err := a.Repo.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate snapshots: %w", err)
	}
	a.Jobs = session.NewJobRepo(gdb)
	if err := a.Jobs.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate sync jobs: %w", err)
	}
	if err := gdb.AutoMigrate(&models.User{}); err != nil {
		return nil, fmt.Errorf("migrate users: %w", err)
	}

	kind := strings.ToLower(strings.TrimSpace(cfg.DocStore))
	if kind == "" || kind == docstore.KindRedis {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			_ = a.Redis.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
	}
	var rdb redis.UniversalClient
	if a.Redis != nil {
		rdb = a.Redis
	}
	docs, err := docstore.Open(kind, rdb, cfg.RedisPrefix, gdb)
	if err != nil {
		return nil, err
	}
	a.Docs = docs

	opts := []mirror.Option{
		mirror.WithLogger(logger.With(slog.String("component", "mirror"))),
		mirror.WithConcurrency(cfg.SyncConcurrency),
	}
	a.Sessions = session.NewManager(a.Repo,
		mirror.NewReconciler(docs, opts...),
		mirror.NewFetcher(docs, opts...),
		chat.NewService(NewRegistry(cfg), cfg.ChatContextWindowSize),
		logger.With(slog.String("component", "session")))
	return a, nil
}

func (a *App) Close() error {
	if a.Redis != nil {
		return a.Redis.Close()
	}
	return nil
}
