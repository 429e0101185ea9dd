package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/related-posts/internal/post"
)

func sample() []post.RankedResult {
	posts := []post.Post{
		{ID: "a", Title: "A & B", Tags: []string{"x", "y"}},
		{ID: "b", Title: "B", Tags: []string{"x"}},
	}
	return []post.RankedResult{
		{ID: "a", Tags: posts[0].Tags, Related: []*post.Post{&posts[1]}},
		{ID: "b", Tags: posts[1].Tags, Related: []*post.Post{&posts[0]}},
	}
}

func TestEncodeCompact(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sample(), false); err != nil {
		t.Fatal(err)
	}
	want := `[{"_id":"a","tags":["x","y"],"related":[{"_id":"b","title":"B","tags":["x"]}]},` +
		`{"_id":"b","tags":["x"],"related":[{"_id":"a","title":"A & B","tags":["x","y"]}]}]` + "\n"
	if buf.String() != want {
		t.Errorf("got  %s\nwant %s", buf.String(), want)
	}
}

func TestEncodeEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, nil, false); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty output = %q, want []", got)
	}
}

func TestEncodePretty(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sample(), true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n  {") {
		t.Errorf("pretty output not indented: %s", buf.String())
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "related_posts.json")
	if err := WriteFile(path, sample(), false); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[0].Related[0].Title != "B" {
		t.Errorf("round trip = %+v", got)
	}

	first, _ := os.ReadFile(path)
	if err := WriteFile(path, sample(), false); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(path)
	if !bytes.Equal(first, second) {
		t.Error("rewriting identical results changed the file")
	}
}
