// Package corpusgen generates synthetic corpora for benchmarks and load runs.
// Tag popularity follows a Zipf distribution so a few tags have very large
// buckets, which is the shape that stresses the co-occurrence counter.
package corpusgen

import (
	"fmt"
	"math/rand/v2"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
)

// Options shapes a generated corpus.
type Options struct {
	Posts   int
	Tags    int
	MinTags int
	MaxTags int
	// Skew is the Zipf exponent; values closer to 1 spread tags more evenly.
	Skew float64
	Seed uint64
}

// Defaults returns a corpus of the size commonly used in local benchmarks.
func Defaults() Options {
	return Options{Posts: 5000, Tags: 100, MinTags: 1, MaxTags: 5, Skew: 1.3, Seed: 1}
}

func (o Options) validate() error {
	switch {
	case o.Posts < 0:
		return fmt.Errorf("posts must not be negative, got %d", o.Posts)
	case o.Tags < 1:
		return fmt.Errorf("tags must be at least 1, got %d", o.Tags)
	case o.MinTags < 0 || o.MaxTags < o.MinTags:
		return fmt.Errorf("tag range [%d, %d] is invalid", o.MinTags, o.MaxTags)
	case o.Skew <= 1:
		return fmt.Errorf("skew must be greater than 1, got %v", o.Skew)
	}
	return nil
}

// Generate returns a deterministic corpus for opts. Tags within a post are
// distinct, and ids are unique.
func Generate(opts Options) ([]post.Post, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	zipf := rand.NewZipf(rng, opts.Skew, 1, uint64(opts.Tags-1))

	posts := make([]post.Post, opts.Posts)
	maxDistinct := min(opts.MaxTags, opts.Tags)
	for i := range posts {
		n := opts.MinTags
		if opts.MaxTags > opts.MinTags {
			n += rng.IntN(opts.MaxTags - opts.MinTags + 1)
		}
		n = min(n, maxDistinct)

		seen := make(map[uint64]struct{}, n)
		tags := make([]string, 0, n)
		for len(tags) < n {
			t := zipf.Uint64()
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, fmt.Sprintf("tag%03d", t))
		}
		posts[i] = post.Post{
			ID:    fmt.Sprintf("post-%07d", i),
			Title: fmt.Sprintf("Post %d", i),
			Tags:  tags,
		}
	}
	return posts, nil
}
