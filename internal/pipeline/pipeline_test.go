package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/output"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const corpus = `[
  {"_id": "A", "title": "Alpha", "tags": ["go", "db"]},
  {"_id": "B", "title": "Beta", "tags": ["go"]},
  {"_id": "C", "title": "Gamma", "tags": ["db"]},
  {"_id": "D", "title": "Delta", "tags": ["rust"]}
]`

func testConfig(t *testing.T, strategy string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "posts.json")
	if err := os.WriteFile(in, []byte(corpus), 0o644); err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		Ranking: config.RankingConfig{K: 5, Strategy: strategy, Selector: config.SelectorHeap, Workers: 2},
		Input:   config.InputConfig{Path: in},
		Output:  config.OutputConfig{Path: filepath.Join(dir, "out", "related_posts.json")},
	}
}

type stubPublisher struct {
	runID string
	got   int
	err   error
}

func (p *stubPublisher) Publish(_ context.Context, runID string, results []post.RankedResult) error {
	p.runID, p.got = runID, len(results)
	return p.err
}

func (p *stubPublisher) Sinks() []string { return []string{"stub"} }

func TestRun(t *testing.T) {
	for _, strategy := range []string{config.StrategySequential, config.StrategyParallel} {
		t.Run(strategy, func(t *testing.T) {
			cfg := testConfig(t, strategy)
			pub := &stubPublisher{}
			reg := prometheus.NewRegistry()

			report, err := Run(context.Background(), cfg, "run-1", Deps{Metrics: metrics.New(reg), Publisher: pub})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if report.Stats.Posts != 4 || !slices.Equal(report.Published, []string{"stub"}) {
				t.Errorf("report = %+v", report)
			}
			if pub.runID != "run-1" || pub.got != 4 {
				t.Errorf("publisher saw run %q with %d results", pub.runID, pub.got)
			}

			results, err := output.ReadFile(cfg.Output.Path)
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			if len(results) != 4 {
				t.Fatalf("wrote %d results", len(results))
			}
			if got := results[0].RelatedIDs(); !slices.Equal(got, []string{"B", "C"}) {
				t.Errorf("A.related = %v", got)
			}
			if len(results[3].Related) != 0 {
				t.Errorf("D.related = %v", results[3].RelatedIDs())
			}

			families, err := reg.Gather()
			if err != nil {
				t.Fatal(err)
			}
			stages := map[string]bool{}
			for _, f := range families {
				if f.GetName() != "related_stage_duration_seconds" {
					continue
				}
				for _, m := range f.GetMetric() {
					for _, l := range m.GetLabel() {
						stages[l.GetValue()] = true
					}
				}
			}
			for _, s := range []string{"run", "load", "index", "rank", "write", "publish"} {
				if !stages[s] {
					t.Errorf("stage %q not observed (have %v)", s, stages)
				}
			}
		})
	}
}

func TestRunMalformedInputLeavesOutputAlone(t *testing.T) {
	cfg := testConfig(t, config.StrategySequential)
	if err := os.WriteFile(cfg.Input.Path, []byte(`[{"_id": "A", "tags": ["x"]}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Run(context.Background(), cfg, "run-2", Deps{})
	if !errors.Is(err, apperrors.ErrMalformedInput) {
		t.Fatalf("Run() error = %v, want ErrMalformedInput", err)
	}
	if _, statErr := os.Stat(cfg.Output.Path); !os.IsNotExist(statErr) {
		t.Errorf("output written for a failed run: %v", statErr)
	}
}

func TestRunOversizedCorpus(t *testing.T) {
	cfg := testConfig(t, config.StrategyParallel)
	cfg.Input.MaxBytes = int64(len(corpus) / 2)
	_, err := Run(context.Background(), cfg, "run-big", Deps{})
	if !errors.Is(err, apperrors.ErrResourceExhausted) {
		t.Fatalf("Run() error = %v, want ErrResourceExhausted", err)
	}
	if _, statErr := os.Stat(cfg.Output.Path); !os.IsNotExist(statErr) {
		t.Errorf("output written for a refused corpus: %v", statErr)
	}
}

func TestRunPublishFailure(t *testing.T) {
	cfg := testConfig(t, config.StrategyParallel)
	_, err := Run(context.Background(), cfg, "run-3", Deps{Publisher: &stubPublisher{err: errors.New("broker down")}})
	if err == nil {
		t.Fatal("expected publish error")
	}
	if _, statErr := os.Stat(cfg.Output.Path); statErr != nil {
		t.Errorf("results file should exist before publishing: %v", statErr)
	}
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t, config.StrategyParallel)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, cfg, "run-4", Deps{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}
