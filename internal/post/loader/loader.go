// Package loader reads a corpus file (a JSON array of {_id, title, tags}
// records) into memory and validates it. Any decoding or validation failure
// aborts the load; there is no partial corpus.
package loader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/errors"
)

const readBufferSize = 512 * 1024

// record mirrors post.Post with pointer fields so absent keys and explicit
// nulls can be told apart from empty values.
type record struct {
	ID    *string   `json:"_id"`
	Title *string   `json:"title"`
	Tags  *[]string `json:"tags"`
}

// LoadFile opens path and decodes the corpus it holds.
func LoadFile(ctx context.Context, path string) ([]post.Post, error) {
	return LoadFileLimit(ctx, path, 0)
}

// LoadFileLimit is LoadFile with a cap on the file size. A file larger than
// maxBytes is refused with ErrResourceExhausted before anything is decoded.
// maxBytes <= 0 disables the cap.
func LoadFileLimit(ctx context.Context, path string, maxBytes int64) ([]post.Post, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus %s: %w", path, err)
	}
	defer f.Close()

	if maxBytes > 0 {
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat corpus %s: %w", path, err)
		}
		if info.Size() > maxBytes {
			return nil, fmt.Errorf("%w: corpus %s is %d bytes, limit is %d",
				apperrors.ErrResourceExhausted, path, info.Size(), maxBytes)
		}
	}

	posts, err := Decode(ctx, bufio.NewReaderSize(f, readBufferSize))
	if err != nil {
		return nil, fmt.Errorf("loading corpus %s: %w", path, err)
	}
	slog.Default().With("component", "loader").Info("corpus loaded",
		"path", path,
		"posts", len(posts),
	)
	return posts, nil
}

// Decode reads a JSON array of posts from r. Every record must carry _id,
// title and tags; ids must be non-empty and unique.
func Decode(ctx context.Context, r io.Reader) ([]post.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []record
	if err := json.NewDecoder(r).DecodeContext(ctx, &records); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: decoding posts: %v", apperrors.ErrMalformedInput, err)
	}

	verr := &validator.ValidationError{}
	posts := make([]post.Post, len(records))
	for i, rec := range records {
		var id string
		if rec.ID != nil {
			id = *rec.ID
		} else {
			verr.Add(i, "", "missing field _id")
		}
		if rec.Title == nil {
			verr.Add(i, id, "missing field title")
		}
		if rec.Tags == nil {
			verr.Add(i, id, "missing field tags")
		}
		posts[i].ID = id
		if rec.Title != nil {
			posts[i].Title = *rec.Title
		}
		if rec.Tags != nil {
			posts[i].Tags = *rec.Tags
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if err := validator.ValidateCorpus(posts); err != nil {
		return nil, err
	}
	return posts, nil
}
