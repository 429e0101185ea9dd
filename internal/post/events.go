package post

import "time"

// CacheKeyPrefix namespaces related-post entries in the shared cache.
const CacheKeyPrefix = "related:"

// CacheKey is the cache key holding the RankedResult for post id.
func CacheKey(id string) string {
	return CacheKeyPrefix + id
}

// RunComplete is announced once every sink has accepted a run's results.
type RunComplete struct {
	RunID       string    `json:"run_id"`
	Posts       int       `json:"posts"`
	CompletedAt time.Time `json:"completed_at"`
}
