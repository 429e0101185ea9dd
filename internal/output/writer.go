// Package output serialises ranked results as a JSON array of
// {_id, tags, related: [{_id, title, tags}]} records.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
)

const writeBufferSize = 512 * 1024

// Encode writes results to w. With pretty set, records are indented.
func Encode(w io.Writer, results []post.RankedResult, pretty bool) error {
	if results == nil {
		results = []post.RankedResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encoding related posts: %w", err)
	}
	return nil
}

// WriteFile atomically replaces path with the encoded results. It writes to
// a .tmp file in the same directory first and renames it on success, so
// readers never observe a partially written file.
func WriteFile(path string, results []post.RankedResult, pretty bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp output file: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(tmpPath)
	}

	bw := bufio.NewWriterSize(f, writeBufferSize)
	if err := Encode(bw, results, pretty); err != nil {
		cleanup()
		return err
	}
	if err := bw.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("flushing output: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing output: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing output: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming output into place: %w", err)
	}
	return nil
}

// Decode reads back a file produced by Encode.
func Decode(r io.Reader) ([]post.RankedResult, error) {
	var results []post.RankedResult
	if err := json.NewDecoder(r).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding related posts: %w", err)
	}
	return results, nil
}

// ReadFile decodes the results stored at path.
func ReadFile(path string) ([]post.RankedResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Decode(bufio.NewReaderSize(f, writeBufferSize))
}
