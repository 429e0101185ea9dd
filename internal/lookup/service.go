// Package lookup serves precomputed related lists by post id. Reads go
// cache-aside through Redis in front of PostgreSQL; concurrent misses for the
// same id collapse into one store query, and the store sits behind a circuit
// breaker so an outage fails fast instead of piling up requests.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/related-posts/pkg/resilience"
	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"
)

// Cache is satisfied by *redis.Client.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

const defaultStoreTimeout = 5 * time.Second

// Source tells where a lookup was answered from.
type Source string

const (
	SourceCache Source = "cache"
	SourceStore Source = "store"
)

// Service answers related-post lookups.
type Service struct {
	cache   Cache
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger

	storeTimeout time.Duration
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a Service. cache and m may be nil.
func New(cache Cache, store Store, ttl time.Duration, breaker *resilience.CircuitBreaker, m *metrics.Metrics) *Service {
	return &Service{
		cache:   cache,
		store:   store,
		ttl:     ttl,
		breaker: breaker,
		metrics: m,
		logger:  slog.Default().With("component", "lookup"),

		storeTimeout: defaultStoreTimeout,
	}
}

// NewStoreBreaker returns a breaker for the store that ignores not-found
// answers and mirrors its state into m.
func NewStoreBreaker(m *metrics.Metrics) *resilience.CircuitBreaker {
	cfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     10 * time.Second,
		IsFailure: func(err error) bool {
			return !apperrors.Is(err, apperrors.ErrNotFound) &&
				!errors.Is(err, context.Canceled) &&
				!errors.Is(err, context.DeadlineExceeded)
		},
	}
	if m != nil {
		cfg.OnStateChange = func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return resilience.NewCircuitBreaker("related-store", cfg)
}

// Related returns the related list for id. A caller whose ctx ends while
// waiting gets ctx.Err(); the shared store query keeps running for the other
// waiters.
func (s *Service) Related(ctx context.Context, id string) (*post.RankedResult, Source, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, "", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "post id is required")
	}

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	if result, ok := s.fromCache(ctx, id); ok {
		s.observe("cache")
		return result, SourceCache, nil
	}

	// The shared call outlives any single caller; each caller waits on its
	// own ctx.
	ch := s.group.DoChan(id, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
		defer cancel()
		if result, ok := s.peekCache(sctx, id); ok {
			return result, nil
		}
		result, err := s.fromStore(sctx, id)
		if err != nil {
			return nil, err
		}
		s.fill(sctx, id, result)
		return result, nil
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		s.observe("cancelled")
		return nil, "", ctx.Err()
	}
	val, err := res.Val, res.Err
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			s.observe("not_found")
		} else {
			s.observe("error")
		}
		return nil, "", err
	}
	s.observe("store")
	return val.(*post.RankedResult), SourceStore, nil
}

func (s *Service) fromStore(ctx context.Context, id string) (*post.RankedResult, error) {
	var result *post.RankedResult
	call := func() error {
		var err error
		result, err = s.store.Get(ctx, id)
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: store lookup for %q exceeded %v", apperrors.ErrTimeout, id, s.storeTimeout)
		}
		return err
	}
	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(call)
	} else {
		err = call()
	}
	if apperrors.Is(err, resilience.ErrCircuitOpen) {
		return nil, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, err.Error())
	}
	return result, err
}

// fromCache counts hits and misses; peekCache does not.
func (s *Service) fromCache(ctx context.Context, id string) (*post.RankedResult, bool) {
	result, ok := s.peekCache(ctx, id)
	if ok {
		s.hits.Add(1)
		if s.metrics != nil {
			s.metrics.CacheHitsTotal.Inc()
		}
		return result, true
	}
	s.misses.Add(1)
	if s.metrics != nil {
		s.metrics.CacheMissesTotal.Inc()
	}
	return nil, false
}

func (s *Service) peekCache(ctx context.Context, id string) (*post.RankedResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	key := post.CacheKey(id)
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			logger.FromContext(ctx).Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var result post.RankedResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.FromContext(ctx).Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

func (s *Service) fill(ctx context.Context, id string, result *post.RankedResult) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("cache marshal failed", "id", id, "error", err)
		return
	}
	if err := s.cache.Set(ctx, post.CacheKey(id), data, s.ttl); err != nil {
		logger.FromContext(ctx).Error("cache set failed", "id", id, "error", err)
	}
}

// Invalidate drops the cached lists for ids, or every cached list when ids
// is empty. It returns the number of keys targeted.
func (s *Service) Invalidate(ctx context.Context, ids ...string) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	if len(ids) == 0 {
		deleted, err := s.cache.FlushByPattern(ctx, post.CacheKeyPrefix+"*")
		if err != nil {
			return deleted, fmt.Errorf("invalidating cache: %w", err)
		}
		s.logger.Info("cache invalidated", "keys_deleted", deleted)
		return deleted, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = post.CacheKey(id)
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("invalidating %d keys: %w", len(keys), err)
	}
	s.logger.Info("cache invalidated", "keys", len(keys))
	return int64(len(keys)), nil
}

// Stats returns cache hit and miss counts since start.
func (s *Service) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// RunCompleteHandler flushes the cache whenever a batch run announces
// completion, so lists from the previous run are not served past it.
func (s *Service) RunCompleteHandler() kafka.MessageHandler {
	return func(ctx context.Context, _ []byte, value []byte) error {
		done, err := kafka.DecodeJSON[post.RunComplete](value)
		if err != nil {
			return fmt.Errorf("decoding run-complete event: %w", err)
		}
		deleted, err := s.Invalidate(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("run complete, cache flushed",
			"run_id", done.RunID,
			"posts", done.Posts,
			"keys_deleted", deleted,
		)
		return nil
	}
}

func (s *Service) observe(result string) {
	if s.metrics != nil {
		s.metrics.LookupsTotal.WithLabelValues(result).Inc()
	}
}
