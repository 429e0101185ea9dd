// Package tagindex provides the inverted tag index: every tag maps to the
// corpus positions of the posts carrying it, in corpus order. An Index is
// built once and never mutated, so it can be shared by any number of
// goroutines without locking.
package tagindex

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
)

// Index maps tags to ascending corpus positions.
type Index struct {
	buckets  map[string][]int
	posts    int
	postings int
}

// Build indexes posts. A post listing the same tag twice appears twice in
// that tag's bucket.
func Build(posts []post.Post) *Index {
	ix := &Index{
		buckets: make(map[string][]int),
		posts:   len(posts),
	}
	for pos := range posts {
		for _, tag := range posts[pos].Tags {
			bucket, ok := ix.buckets[tag]
			if !ok {
				bucket = make([]int, 0, len(posts[pos].Tags))
			}
			ix.buckets[tag] = append(bucket, pos)
			ix.postings++
		}
	}
	for tag, bucket := range ix.buckets {
		ix.buckets[tag] = bucket[:len(bucket):len(bucket)]
	}
	return ix
}

// Bucket returns the positions of the posts tagged with tag. The slice is
// shared with the index and must not be modified.
func (ix *Index) Bucket(tag string) []int {
	return ix.buckets[tag]
}

// Posts returns the size of the corpus the index was built from.
func (ix *Index) Posts() int {
	return ix.posts
}

// Tags returns the number of distinct tags.
func (ix *Index) Tags() int {
	return len(ix.buckets)
}

// Postings returns the total number of (tag, position) entries.
func (ix *Index) Postings() int {
	return ix.postings
}

// TagNames lists the distinct tags in lexical order.
func (ix *Index) TagNames() []string {
	names := make([]string, 0, len(ix.buckets))
	for tag := range ix.buckets {
		names = append(names, tag)
	}
	sort.Strings(names)
	return names
}
