// Package validator checks that a loaded corpus is well formed before the
// ranking engine sees it. Every offending record is reported, not just the
// first one.
package validator

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/errors"
)

const maxReported = 10

// Problem describes one invalid record.
type Problem struct {
	Index  int
	ID     string
	Reason string
}

func (p Problem) String() string {
	if p.ID == "" {
		return fmt.Sprintf("record %d: %s", p.Index, p.Reason)
	}
	return fmt.Sprintf("record %d (%s): %s", p.Index, p.ID, p.Reason)
}

// ValidationError holds every problem found in a corpus. It unwraps to
// ErrMalformedInput.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, maxReported+1)
	for i, p := range e.Problems {
		if i == maxReported {
			parts = append(parts, fmt.Sprintf("and %d more", len(e.Problems)-maxReported))
			break
		}
		parts = append(parts, p.String())
	}
	return fmt.Sprintf("%d invalid records: %s", len(e.Problems), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrMalformedInput
}

// Add records a problem. Loaders use it to report missing fields they detect
// while decoding.
func (e *ValidationError) Add(index int, id, reason string) {
	e.Problems = append(e.Problems, Problem{Index: index, ID: id, Reason: reason})
}

// Err returns e when it holds problems and nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// ValidateCorpus requires a non-empty, unique _id on every post.
func ValidateCorpus(posts []post.Post) error {
	verr := &ValidationError{}
	seen := make(map[string]int, len(posts))
	for i := range posts {
		id := posts[i].ID
		if strings.TrimSpace(id) == "" {
			verr.Add(i, "", "_id is required")
			continue
		}
		if first, dup := seen[id]; dup {
			verr.Add(i, id, fmt.Sprintf("duplicate _id (first seen at record %d)", first))
			continue
		}
		seen[id] = i
	}
	return verr.Err()
}
