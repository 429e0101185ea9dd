// Package integration checks the publish sinks and the lookup service against
// real PostgreSQL and Redis instances. Tests skip when either is unreachable.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"context"
	"os"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/lookup"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/publish"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/redis"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// skipIfNoRedis skips the test when Redis is unavailable.
func skipIfNoRedis(t *testing.T) *pkgredis.Client {
	t.Helper()
	rc, err := pkgredis.NewClient(config.RedisConfig{
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		DB:       envOrDefaultInt("TEST_REDIS_DB", 15),
		PoolSize: 4,
	})
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { rc.Close() })
	return rc
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "relatedposts_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "relatedposts"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func sample(ids ...string) []post.RankedResult {
	out := make([]post.RankedResult, len(ids))
	for i, id := range ids {
		out[i] = post.RankedResult{
			ID:      id,
			Tags:    []string{"go"},
			Related: []*post.Post{{ID: "rel-" + id, Title: "Related to " + id, Tags: []string{"go"}}},
		}
	}
	return out
}

func TestPostgresSinkAndStore(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	sink := publish.NewPostgresSink(db)
	if err := sink.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if _, err := db.DB.ExecContext(ctx, `TRUNCATE related_posts`); err != nil {
		t.Fatal(err)
	}

	p := publish.New(publish.Options{BatchSize: 2}, sink)
	if err := p.Publish(ctx, "run-1", sample("a", "b", "c")); err != nil {
		t.Fatalf("Publish(run-1) error = %v", err)
	}
	if err := p.Publish(ctx, "run-2", sample("a", "b")); err != nil {
		t.Fatalf("Publish(run-2) error = %v", err)
	}

	store := lookup.NewPostgresStore(db.DB)
	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}
	if !slices.Equal(got.RelatedIDs(), []string{"rel-a"}) {
		t.Errorf("a.related = %v", got.RelatedIDs())
	}
	if _, err := store.Get(ctx, "c"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("row from the previous run not pruned: %v", err)
	}
}

func TestRedisSinkFeedsLookup(t *testing.T) {
	rc := skipIfNoRedis(t)
	ctx := context.Background()
	if _, err := rc.FlushByPattern(ctx, post.CacheKeyPrefix+"*"); err != nil {
		t.Fatal(err)
	}

	sink := publish.NewRedisSink(rc, time.Minute)
	if err := publish.New(publish.Options{}, sink).Publish(ctx, "run-1", sample("x", "y")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	svc := lookup.New(rc, unavailableStore{}, time.Minute, nil, nil)
	got, src, err := svc.Related(ctx, "y")
	if err != nil {
		t.Fatalf("Related(y) error = %v", err)
	}
	if src != lookup.SourceCache || got.Related[0].ID != "rel-y" {
		t.Errorf("Related(y) = %+v from %s", got, src)
	}

	if n, err := svc.Invalidate(ctx); err != nil || n != 2 {
		t.Fatalf("Invalidate() = %d, %v", n, err)
	}
	if _, _, err := svc.Related(ctx, "y"); !apperrors.Is(err, apperrors.ErrUnavailable) {
		t.Errorf("lookup after flush should reach the store: %v", err)
	}
}

type unavailableStore struct{}

func (unavailableStore) Get(context.Context, string) (*post.RankedResult, error) {
	return nil, apperrors.ErrUnavailable
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
