// Test fixture loading: the word list and state-adjacency graph used
// by the larger scenario tests. Loaded from testdata/ by default, or
// from the directory named by the TESTDATA environment variable —
// the same override jpl-au-folio's test suite uses for large corpora
// kept outside the repo.
package ss

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
)

// newTestHeap creates a fresh heap file in t.TempDir and returns a
// write handle, closed automatically via t.Cleanup.
func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.ss")
	h, err := Open(path, Trunc, Config{})
	if err != nil {
		t.Fatalf("Open(Trunc): %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

// testdataDir resolves the fixture directory, honoring TESTDATA.
func testdataDir() string {
	if d := os.Getenv("TESTDATA"); d != "" {
		return d
	}
	return "testdata"
}

// stateEdge is one entry of the adjacency fixture.
type stateEdge struct {
	A string `json:"a"`
	B string `json:"b"`
}

// loadWordList decodes testdata/words.json.
func loadWordList() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(testdataDir(), "words.json"))
	if err != nil {
		return nil, err
	}
	var words []string
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, err
	}
	return words, nil
}

// loadStateAdjacency decodes testdata/state_adjacency.json.
func loadStateAdjacency() ([]stateEdge, error) {
	data, err := os.ReadFile(filepath.Join(testdataDir(), "state_adjacency.json"))
	if err != nil {
		return nil, err
	}
	var edges []stateEdge
	if err := json.Unmarshal(data, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}
