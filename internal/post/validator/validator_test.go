package validator

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-posts/pkg/errors"
)

func TestValidateCorpus(t *testing.T) {
	tests := []struct {
		name     string
		posts    []post.Post
		problems int
	}{
		{"empty corpus", nil, 0},
		{"valid", []post.Post{{ID: "a"}, {ID: "b", Tags: []string{"x"}}}, 0},
		{"blank id", []post.Post{{ID: "a"}, {ID: "  "}}, 1},
		{"duplicate id", []post.Post{{ID: "a"}, {ID: "b"}, {ID: "a"}}, 1},
		{"several", []post.Post{{ID: ""}, {ID: "a"}, {ID: "a"}, {ID: ""}}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCorpus(tt.posts)
			if tt.problems == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if len(verr.Problems) != tt.problems {
				t.Errorf("got %d problems, want %d: %v", len(verr.Problems), tt.problems, verr.Problems)
			}
			if !errors.Is(err, apperrors.ErrMalformedInput) {
				t.Error("validation error should unwrap to ErrMalformedInput")
			}
		})
	}
}

func TestValidationErrorTruncatesMessage(t *testing.T) {
	verr := &ValidationError{}
	for i := 0; i < 25; i++ {
		verr.Add(i, fmt.Sprintf("p%d", i), "bad")
	}
	msg := verr.Error()
	if !strings.HasPrefix(msg, "25 invalid records") {
		t.Errorf("unexpected prefix: %q", msg)
	}
	if !strings.Contains(msg, "and 15 more") {
		t.Errorf("expected truncation note in %q", msg)
	}
}
