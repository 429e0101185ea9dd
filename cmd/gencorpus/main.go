package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/corpusgen"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/logger"
	"github.com/goccy/go-json"
)

func main() {
	d := corpusgen.Defaults()
	out := flag.String("out", "posts.json", "where to write the corpus")
	posts := flag.Int("posts", d.Posts, "number of posts")
	tags := flag.Int("tags", d.Tags, "size of the tag vocabulary")
	minTags := flag.Int("min-tags", d.MinTags, "minimum tags per post")
	maxTags := flag.Int("max-tags", d.MaxTags, "maximum tags per post")
	skew := flag.Float64("skew", d.Skew, "Zipf exponent for tag popularity (> 1)")
	seed := flag.Uint64("seed", d.Seed, "random seed")
	flag.Parse()

	logger.Setup("info", "text")

	corpus, err := corpusgen.Generate(corpusgen.Options{
		Posts:   *posts,
		Tags:    *tags,
		MinTags: *minTags,
		MaxTags: *maxTags,
		Skew:    *skew,
		Seed:    *seed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid options: %v\n", err)
		os.Exit(2)
	}
	if err := write(*out, corpus); err != nil {
		slog.Error("failed to write corpus", "path", *out, "error", err)
		os.Exit(1)
	}
	slog.Info("corpus written", "path", *out, "posts", len(corpus), "seed", *seed)
}

func write(path string, corpus []post.Post) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := json.NewEncoder(w).Encode(corpus); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
