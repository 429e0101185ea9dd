package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", `[
		{"_id": "A", "title": "Alpha", "tags": ["go", "db"]},
		{"_id": "B", "title": "Beta", "tags": ["go"]}
	]`)
	bad := writeFile(t, dir, "bad.json", `[{"_id": "A", "tags": ["go"]}]`)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{"ranks corpus", []string{"-input", good, "-output", filepath.Join(dir, "out.json"), "-strategy", "parallel"}, 0, "ranked 2 posts"},
		{"malformed corpus", []string{"-input", bad, "-output", filepath.Join(dir, "bad-out.json")}, 1, ""},
		{"invalid selector", []string{"-input", good, "-selector", "radix"}, 1, ""},
		{"unknown flag", []string{"-nope"}, 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			if code := run(tt.args, &stdout); code != tt.wantCode {
				t.Fatalf("run() = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(stdout.String(), tt.wantOut) {
				t.Errorf("stdout %q does not contain %q", stdout.String(), tt.wantOut)
			}
		})
	}
}
