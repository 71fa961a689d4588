package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/paperscout/backend/internal/cache"
	"github.com/paperscout/backend/internal/cache/memory"
	"github.com/paperscout/backend/internal/cache/redis"
	"github.com/paperscout/backend/internal/config"
	delivery "github.com/paperscout/backend/internal/delivery/http"
	"github.com/paperscout/backend/internal/domain"
	"github.com/paperscout/backend/internal/logger"
	"github.com/paperscout/backend/internal/middleware"
	"github.com/paperscout/backend/internal/repository/oacache"
	"github.com/paperscout/backend/internal/repository/postgres"
	"github.com/paperscout/backend/internal/repository/sourcecache"
	"github.com/paperscout/backend/internal/usecase"
	"github.com/paperscout/backend/pkg/arxiv"
	"github.com/paperscout/backend/pkg/openalex"
	"github.com/paperscout/backend/pkg/pubmed"
	"github.com/paperscout/backend/pkg/semanticscholar"
	"github.com/paperscout/backend/pkg/unpaywall"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("paperscout backend starting", zap.String("port", cfg.Server.Port))

	// Connect to PostgreSQL with retry
	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				cancel()
				log.Info("connected to postgres")
				break
			} else {
				pool.Close()
				err = pingErr
			}
		}
		cancel()
		log.Warn("database connection failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == 5 {
			log.Fatal("could not connect to database after 5 attempts")
		}
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	defer pool.Close()

	// Cache store: Redis when configured, in-process otherwise. A Redis
	// that is down at boot degrades to memory instead of blocking startup.
	var store cache.Store = memory.New()
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rs, err := redis.NewStore(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cancel()
		if err != nil {
			log.Warn("redis unavailable, falling back to in-process cache", zap.Error(err))
		} else {
			defer rs.Close()
			store = rs
			log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// Repositories
	topicRepo := postgres.NewTopicRepository(pool)
	resultRepo := postgres.NewResultRepository(pool)

	// Source clients, each behind the response cache. Registration order is
	// the merge order of search results.
	sources := []domain.SourceClient{
		sourcecache.Wrap(arxiv.NewClient(), store, cfg.Search.SourceCacheTTL, log),
		sourcecache.Wrap(openalex.NewClient(cfg.Sources.OpenAlexMailto), store, cfg.Search.SourceCacheTTL, log),
		sourcecache.Wrap(semanticscholar.NewClient(cfg.Sources.SemanticScholarKey), store, cfg.Search.SourceCacheTTL, log),
		sourcecache.Wrap(pubmed.NewClient(), store, cfg.Search.SourceCacheTTL, log),
	}

	// Open access enrichment. Unpaywall requires a contact email; without
	// one the stage is skipped and papers keep whatever the sources said.
	var resolver domain.OpenAccessResolver
	if cfg.Sources.UnpaywallEmail != "" {
		resolver = oacache.Wrap(unpaywall.NewClient(cfg.Sources.UnpaywallEmail), store, cfg.Search.OACacheTTL, log)
	} else {
		log.Warn("UNPAYWALL_EMAIL not set, open access enrichment disabled")
	}

	// Usecases
	searchUsecase := usecase.NewSearchUsecase(sources, resolver, topicRepo, resultRepo, usecase.SearchConfig{
		EnrichBatchSize:  cfg.Search.EnrichBatchSize,
		EnrichBatchDelay: cfg.Search.EnrichBatchDelay,
	}, log)
	topicUsecase := usecase.NewTopicUsecase(topicRepo, resultRepo)

	// HTTP handler, middleware, router
	handler := delivery.NewHandler(searchUsecase, topicUsecase)
	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.Secret)
	router := delivery.NewRouter(handler, authMiddleware, cfg.CORS.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped gracefully")
}
