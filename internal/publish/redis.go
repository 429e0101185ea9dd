package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/goccy/go-json"
)

// KeyValueWriter is satisfied by *redis.Client.
type KeyValueWriter interface {
	SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error
}

// RedisSink warms the lookup cache with every result of a run.
type RedisSink struct {
	kv  KeyValueWriter
	ttl time.Duration
}

// NewRedisSink creates a RedisSink writing entries that expire after ttl.
func NewRedisSink(kv KeyValueWriter, ttl time.Duration) *RedisSink {
	return &RedisSink{kv: kv, ttl: ttl}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Write(ctx context.Context, _ string, batch []post.RankedResult) error {
	entries := make(map[string][]byte, len(batch))
	for i := range batch {
		data, err := json.Marshal(&batch[i])
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", batch[i].ID, err)
		}
		entries[post.CacheKey(batch[i].ID)] = data
	}
	return s.kv.SetMany(ctx, entries, s.ttl)
}

// Finish is a no-op; stale entries age out through the TTL.
func (s *RedisSink) Finish(context.Context, string, int) error { return nil }
