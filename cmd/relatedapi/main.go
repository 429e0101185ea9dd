package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/lookup"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/server"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting related posts lookup service", "port", cfg.Server.Port)

	m := metrics.New(prometheus.DefaultRegisterer)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var cache lookup.Cache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, lookups go straight to postgres", "error", err)
	} else {
		defer redisClient.Close()
		cache = redisClient
		slog.Info("lookup cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	svc := lookup.New(cache, lookup.NewPostgresStore(db.DB), cfg.Redis.CacheTTL, lookup.NewStoreBreaker(m), m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cache != nil {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RunComplete, svc.RunCompleteHandler())
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("run-complete consumer stopped", "error", err)
			}
		}()
		slog.Info("listening for completed runs", "topic", cfg.Kafka.Topics.RunComplete)
	}

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db, true))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient, false))
	} else {
		checker.Register("redis", func(context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		})
	}

	mux := http.NewServeMux()
	server.New(svc).Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler(nil))

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Metrics(m),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("lookup service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("lookup service stopped")
}
