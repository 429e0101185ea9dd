// Package e2e runs the batch pipeline end to end on generated corpora and,
// when a lookup service is reachable, checks it serves the same lists.
//
// Run with:
//
//	go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/corpusgen"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/output"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/config"
	"github.com/goccy/go-json"
)

func writeCorpus(t *testing.T, dir string, posts []post.Post) string {
	t.Helper()
	data, err := json.Marshal(posts)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "posts.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestStrategiesProduceIdenticalFiles ranks one corpus with every strategy
// and selector combination and compares the written files byte for byte.
func TestStrategiesProduceIdenticalFiles(t *testing.T) {
	opts := corpusgen.Defaults()
	opts.Posts = 3000
	posts, err := corpusgen.Generate(opts)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	in := writeCorpus(t, dir, posts)

	var reference []byte
	for _, strategy := range []string{config.StrategySequential, config.StrategyParallel} {
		for _, selector := range []string{config.SelectorSort, config.SelectorHeap} {
			name := strategy + "-" + selector
			cfg := &config.Config{
				Ranking: config.RankingConfig{K: 5, Strategy: strategy, Selector: selector, Workers: 4, ChannelCapacity: 16},
				Input:   config.InputConfig{Path: in},
				Output:  config.OutputConfig{Path: filepath.Join(dir, name+".json")},
			}
			report, err := pipeline.Run(context.Background(), cfg, name, pipeline.Deps{})
			if err != nil {
				t.Fatalf("%s: Run() error = %v", name, err)
			}
			if report.Stats.Posts != len(posts) {
				t.Fatalf("%s: ranked %d posts", name, report.Stats.Posts)
			}
			data, err := os.ReadFile(cfg.Output.Path)
			if err != nil {
				t.Fatal(err)
			}
			if reference == nil {
				reference = data
				continue
			}
			if !bytes.Equal(reference, data) {
				t.Errorf("%s output differs from %s-%s", name, config.StrategySequential, config.SelectorSort)
			}
		}
	}

	results, err := output.ReadFile(filepath.Join(dir, "sequential-sort.json"))
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r.ID != posts[i].ID {
			t.Fatalf("result %d is %s, want corpus order (%s)", i, r.ID, posts[i].ID)
		}
		if len(r.Related) > 5 {
			t.Fatalf("%s has %d related posts", r.ID, len(r.Related))
		}
		for _, rel := range r.Related {
			if rel.ID == r.ID {
				t.Fatalf("%s lists itself", r.ID)
			}
		}
	}
}

// TestLookupServiceServesPublishedLists queries a running lookup service.
// Set E2E_API_URL and publish a run first; the test skips otherwise.
func TestLookupServiceServesPublishedLists(t *testing.T) {
	base := os.Getenv("E2E_API_URL")
	if base == "" {
		t.Skip("E2E_API_URL not set")
	}
	resultsPath := os.Getenv("E2E_RESULTS_PATH")
	if resultsPath == "" {
		resultsPath = "related_posts.json"
	}
	results, err := output.ReadFile(resultsPath)
	if err != nil {
		t.Skipf("no published results at %s: %v", resultsPath, err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	for _, want := range results[:min(len(results), 20)] {
		resp, err := client.Get(fmt.Sprintf("%s/api/v1/related/%s", base, want.ID))
		if err != nil {
			t.Fatalf("GET %s: %v", want.ID, err)
		}
		var got post.RankedResult
		err = json.NewDecoder(resp.Body).Decode(&got)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decoding %s: %v", want.ID, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status %d", want.ID, resp.StatusCode)
		}
		if !slices.Equal(got.RelatedIDs(), want.RelatedIDs()) {
			t.Errorf("%s: service returned %v, file has %v", want.ID, got.RelatedIDs(), want.RelatedIDs())
		}
	}
}
