// Package testutil provides golden file testing utilities.
package testutil

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

var update = flag.Bool("update", false, "update golden files")

// CompareGolden compares the actual output with the golden file content.
// If the -update flag is provided, it updates the golden file with the actual output.
func CompareGolden(t *testing.T, goldenPath string, actual string) {
	t.Helper()

	if *update {
		writeGoldenFile(t, goldenPath, []byte(actual))
		return
	}

	expected := readGoldenFile(t, goldenPath)
	if actual != string(expected) {
		t.Errorf("Golden file mismatch for %s\nExpected:\n%s\nActual:\n%s", goldenPath, expected, actual)
	}
}

// CompareGoldenJSON encodes v as indented JSON, without HTML escaping, and
// compares it with the golden file
func CompareGoldenJSON(t *testing.T, goldenPath string, v any) {
	t.Helper()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		t.Fatalf("Failed to encode value for %s: %v", goldenPath, err)
	}

	CompareGolden(t, goldenPath, buf.String())
}

// CompareGoldenSlice compares the actual string slice with the golden file content.
// The golden file should contain a JSON array of strings.
func CompareGoldenSlice(t *testing.T, goldenPath string, actual []string) {
	t.Helper()

	if *update {
		data, err := json.Marshal(actual)
		if err != nil {
			t.Fatalf("Failed to marshal slice to JSON: %v", err)
		}
		writeGoldenFile(t, goldenPath, data)
		return
	}

	var expected []string
	if err := json.Unmarshal(readGoldenFile(t, goldenPath), &expected); err != nil {
		t.Fatalf("Failed to parse JSON from golden file %s: %v", goldenPath, err)
	}

	if !slices.Equal(actual, expected) {
		t.Errorf("Golden file mismatch for %s\nExpected: %v\nActual: %v", goldenPath, expected, actual)
	}
}

func readGoldenFile(t *testing.T, goldenPath string) []byte {
	t.Helper()

	content, err := os.ReadFile(goldenPath)
	if err != nil {
		t.Fatalf("Failed to read golden file %s: %v", goldenPath, err)
	}
	return content
}

func writeGoldenFile(t *testing.T, goldenPath string, data []byte) {
	t.Helper()

	dir := filepath.Dir(goldenPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(goldenPath, data, 0o644); err != nil {
		t.Fatalf("Failed to update golden file %s: %v", goldenPath, err)
	}
	t.Logf("Updated golden file: %s", goldenPath)
}
