package related

// Accumulator holds the shared-tag count of every candidate post for one
// source post. An Accumulator is owned by exactly one goroutine at a time and
// must be Reset before it is used for the next source post.
type Accumulator interface {
	// Add increments the count for the post at pos.
	Add(pos int)
	// Each calls fn for every position with a non-zero count.
	Each(fn func(pos, count int))
	// Len returns the number of positions with a non-zero count.
	Len() int
	// Reset forgets every count.
	Reset()
}

// MapAccumulator stores counts in a map keyed by corpus position. Its
// footprint follows the number of candidates, which suits the sequential
// strategy where one accumulator is reused for the whole corpus.
type MapAccumulator struct {
	counts map[int]int
}

// NewMapAccumulator returns a MapAccumulator with room for sizeHint
// candidates.
func NewMapAccumulator(sizeHint int) *MapAccumulator {
	return &MapAccumulator{counts: make(map[int]int, sizeHint)}
}

func (a *MapAccumulator) Add(pos int) {
	a.counts[pos]++
}

func (a *MapAccumulator) Each(fn func(pos, count int)) {
	for pos, count := range a.counts {
		fn(pos, count)
	}
}

func (a *MapAccumulator) Len() int {
	return len(a.counts)
}

func (a *MapAccumulator) Reset() {
	clear(a.counts)
}

// SliceAccumulator stores counts in a slice indexed by corpus position, so Add
// is a plain array increment. Touched positions are remembered so that Each
// and Reset cost O(candidates) rather than O(corpus).
type SliceAccumulator struct {
	counts  []int
	touched []int
}

// NewSliceAccumulator returns a SliceAccumulator for a corpus of n posts.
func NewSliceAccumulator(n int) *SliceAccumulator {
	return &SliceAccumulator{
		counts:  make([]int, n),
		touched: make([]int, 0, 64),
	}
}

func (a *SliceAccumulator) Add(pos int) {
	if a.counts[pos] == 0 {
		a.touched = append(a.touched, pos)
	}
	a.counts[pos]++
}

func (a *SliceAccumulator) Each(fn func(pos, count int)) {
	for _, pos := range a.touched {
		fn(pos, a.counts[pos])
	}
}

func (a *SliceAccumulator) Len() int {
	return len(a.touched)
}

func (a *SliceAccumulator) Reset() {
	for _, pos := range a.touched {
		a.counts[pos] = 0
	}
	a.touched = a.touched[:0]
}
