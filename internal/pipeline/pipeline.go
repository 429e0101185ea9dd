// Package pipeline runs one batch: load the corpus, rank every post, write
// the results file, and optionally publish the results downstream.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/output"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post/loader"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/related"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/tracing"
)

// Publisher is satisfied by *publish.Publisher.
type Publisher interface {
	Publish(ctx context.Context, runID string, results []post.RankedResult) error
	Sinks() []string
}

// Deps are the optional collaborators of a run.
type Deps struct {
	Metrics   *metrics.Metrics
	Publisher Publisher
}

// Report describes a finished run.
type Report struct {
	RunID      string
	Stats      related.Stats
	OutputPath string
	Published  []string
	Duration   time.Duration
}

// Run executes one batch under runID. The results file is only replaced
// once ranking has succeeded; publishing happens after the file is durable.
func Run(ctx context.Context, cfg *config.Config, runID string, deps Deps) (*Report, error) {
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx).With("component", "pipeline")
	start := time.Now()

	ctx, root := tracing.StartSpan(ctx, "run", runID, stageObserver(deps.Metrics))
	defer func() {
		root.End()
		root.Log(log)
	}()

	report := &Report{RunID: runID, OutputPath: cfg.Output.Path}

	posts, err := stage(ctx, "load", func(ctx context.Context, span *tracing.Span) ([]post.Post, error) {
		posts, err := loader.LoadFileLimit(ctx, cfg.Input.Path, cfg.Input.MaxBytes)
		span.SetAttr("posts", len(posts))
		return posts, err
	})
	if err != nil {
		return nil, err
	}

	engine, err := related.New(cfg.Ranking, rankingHooks(deps.Metrics))
	if err != nil {
		return nil, fmt.Errorf("configuring ranking: %w", err)
	}
	results, err := stage(ctx, "rank", func(ctx context.Context, span *tracing.Span) ([]post.RankedResult, error) {
		results, stats, err := engine.Rank(ctx, posts)
		report.Stats = stats
		span.SetAttr("strategy", stats.Strategy)
		span.SetAttr("index_ms", stats.IndexDuration.Milliseconds())
		return results, err
	})
	if err != nil {
		return nil, err
	}
	if m := deps.Metrics; m != nil {
		m.CorpusPosts.Set(float64(report.Stats.Posts))
		m.CorpusTags.Set(float64(report.Stats.Tags))
		m.PostsRankedTotal.WithLabelValues(report.Stats.Strategy).Add(float64(len(results)))
		m.StageDuration.WithLabelValues("index").Observe(report.Stats.IndexDuration.Seconds())
	}

	_, err = stage(ctx, "write", func(ctx context.Context, span *tracing.Span) (struct{}, error) {
		span.SetAttr("path", cfg.Output.Path)
		return struct{}{}, output.WriteFile(cfg.Output.Path, results, cfg.Output.Pretty)
	})
	if err != nil {
		return nil, err
	}

	if deps.Publisher != nil {
		_, err = stage(ctx, "publish", func(ctx context.Context, span *tracing.Span) (struct{}, error) {
			span.SetAttr("sinks", deps.Publisher.Sinks())
			return struct{}{}, deps.Publisher.Publish(ctx, runID, results)
		})
		if err != nil {
			return nil, err
		}
		report.Published = deps.Publisher.Sinks()
	}

	report.Duration = time.Since(start)
	log.Info("run complete",
		"posts", report.Stats.Posts,
		"tags", report.Stats.Tags,
		"avg_related", report.Stats.AvgRelated(),
		"output", report.OutputPath,
		"published", report.Published,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// stage runs fn inside a child span named after the stage and tags any
// error with the stage name.
func stage[T any](ctx context.Context, name string, fn func(context.Context, *tracing.Span) (T, error)) (T, error) {
	ctx, span := tracing.StartChildSpan(ctx, name)
	defer span.End()
	v, err := fn(ctx, span)
	if err != nil {
		span.SetAttr("error", err.Error())
		return v, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func stageObserver(m *metrics.Metrics) tracing.Observer {
	if m == nil {
		return nil
	}
	return func(s *tracing.Span) {
		m.StageDuration.WithLabelValues(s.Name).Observe(s.Duration.Seconds())
	}
}

func rankingHooks(m *metrics.Metrics) related.Options {
	if m == nil {
		return related.Options{}
	}
	return related.Options{
		OnResult:  func(r *post.RankedResult) { m.RelatedListLength.Observe(float64(len(r.Related))) },
		OnBacklog: func(n int) { m.CollectorBacklog.Set(float64(n)) },
	}
}

