package ss

import "testing"

func TestInternReturnsCanonicalRef(t *testing.T) {
	h := newTestHeap(t)
	table := InitTable(h, Nil)

	ref1, err := table.Intern([]byte("shared"))
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	ref2, err := table.Intern([]byte("shared"))
	if err != nil {
		t.Fatalf("Intern (repeat): %v", err)
	}
	if ref1 != ref2 {
		t.Errorf("Intern of identical content returned %v then %v", ref1, ref2)
	}

	ref3, err := table.Intern([]byte("distinct"))
	if err != nil {
		t.Fatalf("Intern (distinct): %v", err)
	}
	if ref3 == ref1 {
		t.Error("Intern of different content returned the same ref")
	}
}

func TestInternSoftMissAndHit(t *testing.T) {
	h := newTestHeap(t)
	table := InitTable(h, Nil)

	if ref, err := table.InternSoft([]byte("absent")); err != nil || !ref.IsNil() {
		t.Fatalf("InternSoft(absent) = (%v, %v), want (Nil, nil)", ref, err)
	}

	ref, err := table.Intern([]byte("present"))
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	soft, err := table.InternSoft([]byte("present"))
	if err != nil {
		t.Fatalf("InternSoft: %v", err)
	}
	if soft != ref {
		t.Errorf("InternSoft = %v, want %v", soft, ref)
	}
}

func TestTableStatsCountsDistinctEntries(t *testing.T) {
	h := newTestHeap(t)
	table := InitTable(h, Nil)

	for _, s := range []string{"a", "b", "c", "a", "b"} {
		if _, err := table.Intern([]byte(s)); err != nil {
			t.Fatalf("Intern(%q): %v", s, err)
		}
	}

	if got := table.Stats().Count; got != 3 {
		t.Errorf("Stats().Count = %d, want 3", got)
	}
}

func TestTableIterEntriesVisitsEveryDistinctBlob(t *testing.T) {
	h := newTestHeap(t)
	table := InitTable(h, Nil)

	want := map[string]bool{"one": true, "two": true, "three": true}
	for s := range want {
		if _, err := table.Intern([]byte(s)); err != nil {
			t.Fatalf("Intern(%q): %v", s, err)
		}
	}

	seen := map[string]bool{}
	table.IterEntries(func(ref Ref) bool {
		seen[string(h.BlobBytes(ref))] = true
		return true
	})
	if len(seen) != len(want) {
		t.Fatalf("IterEntries visited %d entries, want %d", len(seen), len(want))
	}
	for s := range want {
		if !seen[s] {
			t.Errorf("IterEntries missed %q", s)
		}
	}
}

// TestTableIterEntriesStopsOnFalse confirms a caller that returns false
// from yield (as a native `for range t.IterEntries` loop's `break`
// would, via the range-over-func protocol) actually stops the walk
// instead of silently visiting every entry.
func TestTableIterEntriesStopsOnFalse(t *testing.T) {
	h := newTestHeap(t)
	table := InitTable(h, Nil)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		if _, err := table.Intern([]byte(s)); err != nil {
			t.Fatalf("Intern(%q): %v", s, err)
		}
	}

	visited := 0
	table.IterEntries(func(ref Ref) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("IterEntries visited %d entries after yield returned false, want 1", visited)
	}
}

func TestTableFinishUnregistersBuilder(t *testing.T) {
	h := newTestHeap(t)
	table := InitTable(h, Nil)
	if _, err := table.Intern([]byte("x")); err != nil {
		t.Fatalf("Intern: %v", err)
	}
	root, err := table.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if root.IsNil() {
		t.Error("Finish returned a Nil root for a non-empty table")
	}
	if len(h.liveBuilders()) != 0 {
		t.Error("builder still registered after Finish")
	}
	if _, err := table.Intern([]byte("y")); err != ErrClosed {
		t.Errorf("Intern after Finish = %v, want ErrClosed", err)
	}
}

func TestTableAbortUnregistersBuilder(t *testing.T) {
	h := newTestHeap(t)
	table := InitTable(h, Nil)
	table.Abort()
	if len(h.liveBuilders()) != 0 {
		t.Error("builder still registered after Abort")
	}
	if _, err := table.Intern([]byte("y")); err != ErrClosed {
		t.Errorf("Intern after Abort = %v, want ErrClosed", err)
	}
}

func TestInitTableReopensExistingRoot(t *testing.T) {
	h := newTestHeap(t)
	first := InitTable(h, Nil)
	ref, err := first.Intern([]byte("kept"))
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	root, err := first.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	second := InitTable(h, root)
	got, err := second.Intern([]byte("kept"))
	if err != nil {
		t.Fatalf("Intern (reopened): %v", err)
	}
	if got != ref {
		t.Errorf("reopened Intern = %v, want %v", got, ref)
	}
}
