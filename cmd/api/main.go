package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/cache"
	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/db"
	httpx "github.com/geocoder89/userhub/internal/http"
	"github.com/geocoder89/userhub/internal/http/handlers"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/redisclient"
	"github.com/geocoder89/userhub/internal/repo/memory"
	"github.com/geocoder89/userhub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const profileCacheTTL = 30 * time.Second

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	// tracing is opt-in via OTEL_EXPORTER_OTLP_ENDPOINT
	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(context.Background(), "userhub", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		defer func() {
			ctx, cancel := config.WithTimeout(3 * time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	// metrics

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	prom := observability.NewProm(registry)

	// credential store: postgres when configured, memory otherwise

	var (
		store handlers.UserStore
		ping  func() error
	)

	if cfg.DBURL != "" {
		if err := db.RunMigrations(cfg.DBURL, cfg.MigrationsDir); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}

		pool, err := db.NewPool(cfg.DBURL)

		if err != nil {
			log.Error("db connection failed", "err", err)
			os.Exit(1)
		}

		defer pool.Close()

		store = postgres.NewUsersRepo(pool, prom)
		ping = func() error {
			ctx, cancel := config.WithTimeout(1 * time.Second)
			defer cancel()

			return pool.Ping(ctx)
		}
	} else {
		log.Warn("no DB_HOST configured, using in-memory store")
		store = memory.NewUsersRepo()
	}

	// profile cache: redis when configured, in-process TTL map otherwise

	var profiles cache.ProfileCache = cache.NewMemoryProfileCache(profileCacheTTL)

	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := config.WithTimeout(2 * time.Second)
		err := rc.Ping(pingCtx)
		cancel()

		if err != nil {
			log.Warn("redis unreachable, using in-memory profile cache", "err", err)
			_ = rc.Close()
		} else {
			defer rc.Close()
			profiles = cache.NewRedisProfileCache(rc.Raw(), profileCacheTTL)
		}
	}

	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Store:    store,
		JWT:      auth.NewManager(cfg.JWTSecret),
		Profiles: profiles,
		Metrics:  prom,
		Registry: registry,
		Ping:     ping,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
