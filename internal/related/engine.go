// Package related computes, for every post in a corpus, the K other posts
// sharing the most tags with it. Ranking runs in four steps: build the
// inverted tag index, count shared tags per candidate, select the top K, and
// gather one result per post, either sequentially or through a bounded
// worker pipeline.
package related

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/tagindex"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/config"
)

// Stats summarises a ranking run.
type Stats struct {
	Strategy      string
	Selector      string
	Posts         int
	Tags          int
	Postings      int
	RelatedTotal  int
	IndexDuration time.Duration
	RankDuration  time.Duration
}

// AvgRelated is the mean length of the related lists.
func (s Stats) AvgRelated() float64 {
	if s.Posts == 0 {
		return 0
	}
	return float64(s.RelatedTotal) / float64(s.Posts)
}

// Engine runs the configured strategy over a corpus.
type Engine struct {
	strategy     Strategy
	strategyName string
	selectorName string
	opts         Options
	logger       *slog.Logger
}

// New builds an Engine from the ranking config. Hooks in opts (OnResult,
// OnBacklog) are kept; K, selector, workers and channel capacity come from cfg.
func New(cfg config.RankingConfig, opts Options) (*Engine, error) {
	strategy, err := StrategyByName(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	selector, err := SelectorByName(cfg.Selector)
	if err != nil {
		return nil, err
	}
	opts.K = cfg.K
	opts.Selector = selector
	opts.Workers = cfg.Workers
	opts.ChannelCapacity = cfg.ChannelCapacity
	if _, err := opts.withDefaults(); err != nil {
		return nil, err
	}
	return &Engine{
		strategy:     strategy,
		strategyName: cfg.Strategy,
		selectorName: cfg.Selector,
		opts:         opts,
		logger:       slog.Default().With("component", "related-engine"),
	}, nil
}

// Rank indexes posts and ranks every one of them. Either every post gets a
// result or an error is returned and no results are.
func (e *Engine) Rank(ctx context.Context, posts []post.Post) ([]post.RankedResult, Stats, error) {
	stats := Stats{
		Strategy: e.strategyName,
		Selector: e.selectorName,
		Posts:    len(posts),
	}

	start := time.Now()
	ix := tagindex.Build(posts)
	stats.IndexDuration = time.Since(start)
	stats.Tags = ix.Tags()
	stats.Postings = ix.Postings()
	e.logger.Debug("tag index built",
		"posts", ix.Posts(),
		"tags", ix.Tags(),
		"postings", ix.Postings(),
		"duration_ms", stats.IndexDuration.Milliseconds(),
	)

	start = time.Now()
	results, err := e.strategy(ctx, posts, ix, e.opts)
	if err != nil {
		return nil, stats, fmt.Errorf("ranking %d posts (%s): %w", len(posts), e.strategyName, err)
	}
	stats.RankDuration = time.Since(start)
	for i := range results {
		stats.RelatedTotal += len(results[i].Related)
	}

	e.logger.Info("ranking complete",
		"strategy", stats.Strategy,
		"selector", stats.Selector,
		"posts", stats.Posts,
		"tags", stats.Tags,
		"avg_related", stats.AvgRelated(),
		"index_ms", stats.IndexDuration.Milliseconds(),
		"rank_ms", stats.RankDuration.Milliseconds(),
	)
	return results, stats, nil
}
