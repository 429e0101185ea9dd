// Package publish fans a finished run out to downstream sinks: Kafka for
// consumers of the result stream, Redis for the lookup cache, and PostgreSQL
// as the durable store behind it. Sinks run concurrently; each batch is
// retried with backoff and the whole sink is bounded by a timeout.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/resilience"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 500

// Sink receives a run's results in batches, then a single Finish once every
// batch has been written.
type Sink interface {
	Name() string
	Write(ctx context.Context, runID string, batch []post.RankedResult) error
	Finish(ctx context.Context, runID string, total int) error
}

// Announcer is told about a run once every sink has finished it.
type Announcer interface {
	Announce(ctx context.Context, done post.RunComplete) error
}

// Options tunes a Publisher.
type Options struct {
	BatchSize int
	Timeout   time.Duration
	Retry     resilience.RetryConfig
	Metrics   *metrics.Metrics
}

// Publisher writes a run to every configured sink.
type Publisher struct {
	sinks     []Sink
	announcer Announcer
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Publisher over sinks.
func New(opts Options, sinks ...Sink) *Publisher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Publisher{
		sinks:  sinks,
		opts:   opts,
		logger: slog.Default().With("component", "publisher"),
		now:    time.Now,
	}
}

// WithAnnouncer sets the Announcer called after a fully published run.
func (p *Publisher) WithAnnouncer(a Announcer) *Publisher {
	p.announcer = a
	return p
}

// Sinks returns the configured sink names in order.
func (p *Publisher) Sinks() []string {
	names := make([]string, len(p.sinks))
	for i, s := range p.sinks {
		names[i] = s.Name()
	}
	return names
}

// Publish writes results to all sinks concurrently. The first sink to fail
// cancels the others, and its error is returned. The announcer runs only
// after every sink succeeded.
func (p *Publisher) Publish(ctx context.Context, runID string, results []post.RankedResult) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range p.sinks {
		g.Go(func() error {
			return resilience.WithTimeout(gctx, p.opts.Timeout, "publish "+sink.Name(), func(ctx context.Context) error {
				return p.publishTo(ctx, sink, runID, results)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if p.announcer == nil {
		return nil
	}
	done := post.RunComplete{RunID: runID, Posts: len(results), CompletedAt: p.now().UTC()}
	err := resilience.Retry(ctx, "announce run", p.opts.Retry, func() error {
		return p.announcer.Announce(ctx, done)
	})
	if err != nil {
		return fmt.Errorf("announcing run %s: %w", runID, err)
	}
	return nil
}

func (p *Publisher) publishTo(ctx context.Context, sink Sink, runID string, results []post.RankedResult) error {
	start := time.Now()
	written := 0
	for lo := 0; lo < len(results); lo += p.opts.BatchSize {
		hi := min(lo+p.opts.BatchSize, len(results))
		batch := results[lo:hi]
		err := resilience.Retry(ctx, sink.Name()+" write", p.opts.Retry, func() error {
			return sink.Write(ctx, runID, batch)
		})
		if err != nil {
			p.count(sink.Name(), "error", len(results)-written)
			return fmt.Errorf("sink %s: batch %d-%d: %w", sink.Name(), lo, hi, err)
		}
		written += len(batch)
		p.count(sink.Name(), "ok", len(batch))
	}

	err := resilience.Retry(ctx, sink.Name()+" finish", p.opts.Retry, func() error {
		return sink.Finish(ctx, runID, len(results))
	})
	if err != nil {
		return fmt.Errorf("sink %s: finishing run %s: %w", sink.Name(), runID, err)
	}

	p.logger.Info("sink published",
		"sink", sink.Name(),
		"run_id", runID,
		"records", written,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (p *Publisher) count(sink, status string, n int) {
	if p.opts.Metrics == nil || n <= 0 {
		return
	}
	p.opts.Metrics.SinkRecordsTotal.WithLabelValues(sink, status).Add(float64(n))
}
