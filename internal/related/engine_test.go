package related

import (
	"context"
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/config"
)

func TestEngineRank(t *testing.T) {
	for _, strategy := range []string{config.StrategySequential, config.StrategyParallel} {
		t.Run(strategy, func(t *testing.T) {
			seen := 0
			e, err := New(config.RankingConfig{
				K:               5,
				Strategy:        strategy,
				Selector:        config.SelectorHeap,
				Workers:         2,
				ChannelCapacity: 8,
			}, Options{OnResult: func(*post.RankedResult) { seen++ }})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			posts := mkPosts("A:x,y", "B:x", "C:y", "D:z")
			results, stats, err := e.Rank(context.Background(), posts)
			if err != nil {
				t.Fatalf("Rank() error = %v", err)
			}
			if got := results[0].RelatedIDs(); !slices.Equal(got, []string{"B", "C"}) {
				t.Errorf("A.related = %v", got)
			}
			if stats.Posts != 4 || stats.Tags != 3 || stats.Postings != 5 {
				t.Errorf("stats = %+v", stats)
			}
			if stats.RelatedTotal != 4 {
				t.Errorf("RelatedTotal = %d, want 4", stats.RelatedTotal)
			}
			if stats.AvgRelated() != 1 {
				t.Errorf("AvgRelated() = %v, want 1", stats.AvgRelated())
			}
			if seen != 4 {
				t.Errorf("OnResult hook called %d times", seen)
			}
		})
	}
}

func TestEngineRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RankingConfig
	}{
		{"zero k", config.RankingConfig{K: 0, Strategy: "sequential", Selector: "heap"}},
		{"bad strategy", config.RankingConfig{K: 5, Strategy: "mapreduce", Selector: "heap"}},
		{"bad selector", config.RankingConfig{K: 5, Strategy: "parallel", Selector: "bogo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, Options{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStatsAvgRelatedEmpty(t *testing.T) {
	if got := (Stats{}).AvgRelated(); got != 0 {
		t.Errorf("AvgRelated() on empty stats = %v", got)
	}
}
