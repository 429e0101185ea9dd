package related

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
)

// Candidate is a post position with its shared-tag count.
type Candidate struct {
	Pos   int
	Count int
}

// Selector extracts the k best candidates from acc, best first, appending
// them to dst[:0]. Fewer than k are returned when fewer have a non-zero count.
type Selector func(posts []post.Post, acc Accumulator, k int, dst []Candidate) []Candidate

// ranksBefore orders candidates by count descending, then _id ascending, then
// position ascending. Every selector uses it, so sort and heap agree on ties.
func ranksBefore(posts []post.Post, a, b Candidate) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	if idA, idB := posts[a.Pos].ID, posts[b.Pos].ID; idA != idB {
		return idA < idB
	}
	return a.Pos < b.Pos
}

// SortTopK collects every candidate, sorts them and truncates to k.
// O(n log n) in the number of candidates.
func SortTopK(posts []post.Post, acc Accumulator, k int, dst []Candidate) []Candidate {
	result := dst[:0]
	if k <= 0 {
		return result
	}
	acc.Each(func(pos, count int) {
		result = append(result, Candidate{Pos: pos, Count: count})
	})
	sort.Slice(result, func(i, j int) bool {
		return ranksBefore(posts, result[i], result[j])
	})
	if len(result) > k {
		result = result[:k]
	}
	return result
}

// HeapTopK keeps a bounded min-heap of at most k candidates, replacing the
// worst one whenever a better candidate shows up. O(n log k).
func HeapTopK(posts []post.Post, acc Accumulator, k int, dst []Candidate) []Candidate {
	if k <= 0 {
		return dst[:0]
	}
	h := &candidateHeap{posts: posts, items: make([]Candidate, 0, min(k, acc.Len()))}
	acc.Each(func(pos, count int) {
		c := Candidate{Pos: pos, Count: count}
		if h.Len() < k {
			heap.Push(h, c)
			return
		}
		if ranksBefore(posts, c, h.items[0]) {
			h.items[0] = c
			heap.Fix(h, 0)
		}
	})
	n := h.Len()
	result := dst[:0]
	if cap(result) < n {
		result = make([]Candidate, n)
	} else {
		result = result[:n]
	}
	for i := n - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(Candidate)
	}
	return result
}

// SelectorByName maps the configured selector name to its implementation.
func SelectorByName(name string) (Selector, error) {
	switch name {
	case "sort":
		return SortTopK, nil
	case "heap", "":
		return HeapTopK, nil
	default:
		return nil, fmt.Errorf("unknown selector %q", name)
	}
}

// candidateHeap is a min-heap: the root is the candidate that would be
// evicted first.
type candidateHeap struct {
	posts []post.Post
	items []Candidate
}

func (h *candidateHeap) Len() int { return len(h.items) }

func (h *candidateHeap) Less(i, j int) bool {
	return ranksBefore(h.posts, h.items[j], h.items[i])
}

func (h *candidateHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *candidateHeap) Push(x interface{}) {
	h.items = append(h.items, x.(Candidate))
}

func (h *candidateHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
