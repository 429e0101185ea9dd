package lookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/errors"
	"github.com/goccy/go-json"
)

// Store is the durable source of related lists.
type Store interface {
	// Get returns the stored result for id or an error wrapping
	// apperrors.ErrNotFound.
	Get(ctx context.Context, id string) (*post.RankedResult, error)
}

// PostgresStore reads the related_posts table written by the batch job.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*post.RankedResult, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM related_posts WHERE post_id = $1`, id,
	).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "post %q has no related list", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying related list for %s: %w", id, err)
	}
	var result post.RankedResult
	if err := json.Unmarshal(record, &result); err != nil {
		return nil, fmt.Errorf("decoding related list for %s: %w", id, err)
	}
	return &result, nil
}
