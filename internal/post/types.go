// Package post defines the corpus record and the ranked result emitted for
// each record. Field names follow the corpus file format (_id, title, tags).
package post

import "slices"

// Post is one corpus record. Posts are immutable once loaded.
type Post struct {
	ID    string   `json:"_id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// Equal compares every field, tags in order.
func (p *Post) Equal(other *Post) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.ID == other.ID && p.Title == other.Title && slices.Equal(p.Tags, other.Tags)
}

// RankedResult is the related-posts entry for a single source post. ID and
// Tags share storage with the source post, and Related points into the corpus,
// ordered by descending shared-tag count.
type RankedResult struct {
	ID      string   `json:"_id"`
	Tags    []string `json:"tags"`
	Related []*Post  `json:"related"`
}

// RelatedIDs returns the ids of the related posts in rank order.
func (r *RankedResult) RelatedIDs() []string {
	ids := make([]string, len(r.Related))
	for i, p := range r.Related {
		ids[i] = p.ID
	}
	return ids
}
