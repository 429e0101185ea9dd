package related

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/tagindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/errors"
)

const (
	DefaultK               = 5
	DefaultChannelCapacity = 1000

	// ctxCheckInterval is how many posts the sequential loop ranks between
	// cancellation checks.
	ctxCheckInterval = 256
)

// Options configures a ranking run.
type Options struct {
	K        int
	Selector Selector

	// Parallel strategy only. Zero values pick GOMAXPROCS workers and
	// DefaultChannelCapacity.
	Workers         int
	ChannelCapacity int

	// OnResult, when set, is called once per ranked post from a single
	// goroutine.
	OnResult func(r *post.RankedResult)
	// OnBacklog, when set, receives the collector channel length after every
	// receive. Parallel strategy only.
	OnBacklog func(n int)
}

func (o Options) withDefaults() (Options, error) {
	if o.K <= 0 {
		return o, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "k must be positive, got %d", o.K)
	}
	if o.Selector == nil {
		o.Selector = HeapTopK
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.ChannelCapacity <= 0 {
		o.ChannelCapacity = DefaultChannelCapacity
	}
	return o, nil
}

// Strategy ranks every post of the corpus against ix and returns one result
// per post in corpus order.
type Strategy func(ctx context.Context, posts []post.Post, ix *tagindex.Index, opts Options) ([]post.RankedResult, error)

// StrategyByName maps the configured strategy name to its implementation.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "sequential", "":
		return Sequential, nil
	case "parallel":
		return Parallel, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// Sequential ranks posts one after another on the calling goroutine, reusing
// a single map accumulator and candidate buffer for the whole corpus.
func Sequential(ctx context.Context, posts []post.Post, ix *tagindex.Index, opts Options) ([]post.RankedResult, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	acc := NewMapAccumulator(len(posts))
	buf := make([]Candidate, 0, len(posts))
	results := make([]post.RankedResult, 0, len(posts))
	for i := range posts {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		acc.Reset()
		Count(posts, ix, i, acc)
		buf = opts.Selector(posts, acc, opts.K, buf[:0])
		results = append(results, buildResult(posts, i, buf))
		if opts.OnResult != nil {
			opts.OnResult(&results[i])
		}
	}
	return results, nil
}

// ranked carries a result with the corpus position it belongs to.
type ranked struct {
	pos    int
	result post.RankedResult
}

// Parallel fans one task per post out over opts.Workers goroutines. Each task
// ranks with its own slice accumulator and sends the result over a channel
// of opts.ChannelCapacity to a single collector, which writes it into the
// slot for its corpus position. The channel is closed exactly once, after
// every task has returned, which is the collector's only end-of-stream
// signal. Output order therefore matches Sequential.
func Parallel(ctx context.Context, posts []post.Post, ix *tagindex.Index, opts Options) ([]post.RankedResult, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	n := len(posts)
	results := make([]post.RankedResult, n)
	ch := make(chan ranked, opts.ChannelCapacity)
	collected := make(chan error, 1)

	go func() {
		collected <- collect(ch, results, opts)
	}()

	pool := sync.Pool{
		New: func() any { return NewSliceAccumulator(n) },
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			acc := pool.Get().(*SliceAccumulator)
			Count(posts, ix, i, acc)
			top := opts.Selector(posts, acc, opts.K, make([]Candidate, 0, min(opts.K, acc.Len())))
			acc.Reset()
			pool.Put(acc)

			select {
			case ch <- ranked{pos: i, result: buildResult(posts, i, top)}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	werr := g.Wait()
	close(ch)
	cerr := <-collected

	if werr != nil {
		return nil, werr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cerr != nil {
		return nil, cerr
	}
	return results, nil
}

// collect drains ch into results until ch is closed, then checks that every
// slot was filled exactly once.
func collect(ch <-chan ranked, results []post.RankedResult, opts Options) error {
	filled := make([]bool, len(results))
	received := 0
	var dup error
	for r := range ch {
		if opts.OnBacklog != nil {
			opts.OnBacklog(len(ch))
		}
		if filled[r.pos] {
			if dup == nil {
				dup = fmt.Errorf("%w: duplicate result for position %d", apperrors.ErrChannelProtocol, r.pos)
			}
			continue
		}
		filled[r.pos] = true
		results[r.pos] = r.result
		received++
		if opts.OnResult != nil {
			opts.OnResult(&results[r.pos])
		}
	}
	if dup != nil {
		return dup
	}
	if received != len(results) {
		return fmt.Errorf("%w: collected %d of %d results", apperrors.ErrChannelProtocol, received, len(results))
	}
	return nil
}

func buildResult(posts []post.Post, self int, top []Candidate) post.RankedResult {
	related := make([]*post.Post, len(top))
	for i, c := range top {
		related[i] = &posts[c.Pos]
	}
	return post.RankedResult{
		ID:      posts[self].ID,
		Tags:    posts[self].Tags,
		Related: related,
	}
}
