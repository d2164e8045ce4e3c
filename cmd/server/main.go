package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"askme/contracts/registry"
	"askme/internal/platform/config"
	"askme/internal/platform/httpserver"
	"askme/internal/platform/logger"
	"askme/internal/platform/metrics"
	platformredis "askme/internal/platform/redis"
	"askme/internal/reveal"
	"askme/internal/workflow"
	"askme/internal/workflow/handler"
	audit "askme/pkg/platform/audit"
	auditkafka "askme/pkg/platform/audit/kafka"
	auditmemory "askme/pkg/platform/audit/store/memory"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the workflow package.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	m := metrics.New()

	store, cleanupStore, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanupStore()

	cache, cleanupCache, err := buildCache(cfg)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	defer cleanupCache()

	auditor, cleanupAudit, err := buildAuditor(ctx, cfg)
	if err != nil {
		log.Error("audit init failed", "error", err)
		os.Exit(1)
	}
	defer cleanupAudit()

	reg := registry.NewStatic()
	if cfg.RegistrySeedPath != "" {
		if err := loadRegistrySeed(reg, cfg.RegistrySeedPath); err != nil {
			log.Error("registry seed failed", "path", cfg.RegistrySeedPath, "error", err)
			os.Exit(1)
		}
	}

	service := workflow.NewService(
		store,
		cache,
		reveal.NewInMemoryLogStore(),
		workflow.NewRegistryResolver(reg),
		auditor,
		m,
		log,
		workflow.WithPendingTTL(cfg.PendingTTL),
	)

	router := chi.NewRouter()
	handler.New(service, log, m).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go workflow.NewSweeper(service, cfg.SweepInterval, log).Run(sweepCtx)

	log.Info("starting askme server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func buildStore(ctx context.Context, cfg config.Server) (workflow.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		return workflow.NewInMemoryStore(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	store := workflow.NewPostgresStore(pool)
	if err := store.Init(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func buildCache(cfg config.Server) (workflow.DisclosureCache, func(), error) {
	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return workflow.NewInMemoryCache(), func() {}, nil
	}
	return workflow.NewRedisCache(client), func() { _ = client.Close() }, nil
}

func buildAuditor(ctx context.Context, cfg config.Server) (*audit.Publisher, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		pub := audit.NewPublisher(auditmemory.NewInMemoryStore(), audit.WithAsyncBuffer(256))
		return pub, pub.Close, nil
	}
	sink, err := auditkafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	pub := audit.NewPublisher(sink, audit.WithAsyncBuffer(256))
	return pub, func() {
		pub.Close()
		sink.Close()
	}, nil
}

func loadRegistrySeed(reg *registry.Static, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return reg.LoadSeed(f)
}
