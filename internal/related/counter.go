package related

import (
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/tagindex"
)

// Count adds, for every tag of posts[self], one to each other post in that
// tag's bucket. Posts sharing N tags with the source end up with count N;
// posts sharing none are never touched. Self matches are excluded by _id, so
// the comparison does not depend on how positions were assigned.
//
// Only acc is modified.
func Count(posts []post.Post, ix *tagindex.Index, self int, acc Accumulator) {
	selfID := posts[self].ID
	for _, tag := range posts[self].Tags {
		for _, other := range ix.Bucket(tag) {
			if posts[other].ID != selfID {
				acc.Add(other)
			}
		}
	}
}
