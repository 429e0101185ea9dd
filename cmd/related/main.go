package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/publish"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/redis"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes one ranking run and returns the process exit code. Cleanup is
// deferred here so it happens before main exits.
func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("related", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	input := fs.String("input", "", "corpus path (overrides input.path)")
	out := fs.String("output", "", "results path (overrides output.path)")
	strategy := fs.String("strategy", "", "sequential or parallel (overrides ranking.strategy)")
	selector := fs.String("selector", "", "sort or heap (overrides ranking.selector)")
	k := fs.Int("k", 0, "related posts per post (overrides ranking.k)")
	workers := fs.Int("workers", -1, "parallel workers, 0 for GOMAXPROCS (overrides ranking.workers)")
	pretty := fs.Bool("pretty", false, "indent the results file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	applyFlags(cfg, *input, *out, *strategy, *selector, *k, *workers, *pretty)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 1
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	runID := uuid.NewString()
	slog.Info("starting related posts run",
		"run_id", runID,
		"input", cfg.Input.Path,
		"strategy", cfg.Ranking.Strategy,
		"selector", cfg.Ranking.Selector,
		"k", cfg.Ranking.K,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := pipeline.Deps{}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New(prometheus.DefaultRegisterer)
		shutdown := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	if cfg.Publish.Enabled() {
		pub, closeAll, err := buildPublisher(ctx, cfg, deps.Metrics)
		if err != nil {
			slog.Error("failed to set up publishing", "error", err)
			return 1
		}
		defer closeAll()
		deps.Publisher = pub
	}

	report, err := pipeline.Run(ctx, cfg, runID, deps)
	if err != nil {
		slog.Error("run failed", "run_id", runID, "error", err)
		return 1
	}
	fmt.Fprintf(stdout, "ranked %d posts in %v (index %v, rank %v) -> %s\n",
		report.Stats.Posts,
		report.Duration.Round(time.Millisecond),
		report.Stats.IndexDuration.Round(time.Microsecond),
		report.Stats.RankDuration.Round(time.Microsecond),
		report.OutputPath,
	)
	return 0
}

func applyFlags(cfg *config.Config, input, out, strategy, selector string, k, workers int, pretty bool) {
	if input != "" {
		cfg.Input.Path = input
	}
	if out != "" {
		cfg.Output.Path = out
	}
	if strategy != "" {
		cfg.Ranking.Strategy = strategy
	}
	if selector != "" {
		cfg.Ranking.Selector = selector
	}
	if k > 0 {
		cfg.Ranking.K = k
	}
	if workers >= 0 {
		cfg.Ranking.Workers = workers
	}
	if pretty {
		cfg.Output.Pretty = true
	}
}

// buildPublisher connects every enabled sink. The returned func closes the
// connections it opened.
func buildPublisher(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*publish.Publisher, func(), error) {
	var sinks []publish.Sink
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	var announcer publish.Announcer

	if cfg.Publish.Kafka {
		results := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RelatedPosts)
		complete := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RunComplete)
		closers = append(closers, results.Close, complete.Close)
		sinks = append(sinks, publish.NewKafkaSink(results))
		announcer = publish.NewKafkaAnnouncer(complete)
	}
	if cfg.Publish.Redis {
		rc, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, rc.Close)
		sinks = append(sinks, publish.NewRedisSink(rc, cfg.Redis.CacheTTL))
	}
	if cfg.Publish.Postgres {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		sink := publish.NewPostgresSink(db)
		if err := sink.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("ensuring related_posts schema: %w", err)
		}
		sinks = append(sinks, sink)
	}

	pub := publish.New(publish.Options{
		BatchSize: cfg.Publish.BatchSize,
		Timeout:   cfg.Publish.Timeout,
		Metrics:   m,
	}, sinks...)
	if announcer != nil {
		pub.WithAnnouncer(announcer)
	}
	return pub, closeAll, nil
}
