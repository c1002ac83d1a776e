package ss

import "testing"

func blobKey(t *testing.T, h *Heap, s string) Ref {
	t.Helper()
	ref, err := h.AllocBlob(0, []byte(s))
	if err != nil {
		t.Fatalf("AllocBlob(%q): %v", s, err)
	}
	return ref
}

func TestDictStrongSetGetDel(t *testing.T) {
	h := newTestHeap(t)
	d := InitDict(h, DictKindStrong, Nil)

	k := blobKey(t, h, "key")
	v := blobKey(t, h, "value")
	if err := d.Set(k, v); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := d.Get(blobKey(t, h, "key"))
	if !ok {
		t.Fatal("Get: not found")
	}
	if got != v {
		t.Errorf("Get = %v, want %v", got, v)
	}

	if err := d.Del(blobKey(t, h, "key")); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok := d.Get(blobKey(t, h, "key")); ok {
		t.Error("Get after Del still found the entry")
	}
}

func TestDictStrongOverwrite(t *testing.T) {
	h := newTestHeap(t)
	d := InitDict(h, DictKindStrong, Nil)

	k := blobKey(t, h, "key")
	v1 := blobKey(t, h, "v1")
	v2 := blobKey(t, h, "v2")

	if err := d.Set(k, v1); err != nil {
		t.Fatalf("Set v1: %v", err)
	}
	if err := d.Set(blobKey(t, h, "key"), v2); err != nil {
		t.Fatalf("Set v2: %v", err)
	}

	got, ok := d.Get(blobKey(t, h, "key"))
	if !ok || got != v2 {
		t.Errorf("Get = (%v, %v), want (%v, true)", got, ok, v2)
	}
}

func TestDictAddOnNonWeakSetsRejected(t *testing.T) {
	h := newTestHeap(t)
	for _, kind := range []DictKind{DictKindStrong, DictKindWeakKeys} {
		d := InitDict(h, kind, Nil)
		if err := d.Add(blobKey(t, h, "k"), blobKey(t, h, "m")); err != ErrSchemaError {
			t.Errorf("kind %v: Add = %v, want ErrSchemaError", kind, err)
		}
	}
}

func TestDictSetOnWeakSetsRejected(t *testing.T) {
	h := newTestHeap(t)
	d := InitDict(h, DictKindWeakSets, Nil)
	if err := d.Set(blobKey(t, h, "k"), blobKey(t, h, "v")); err != ErrSchemaError {
		t.Errorf("Set on WeakSets = %v, want ErrSchemaError", err)
	}
}

func TestDictWeakSetsAddIsIdempotent(t *testing.T) {
	h := newTestHeap(t)
	d := InitDict(h, DictKindWeakSets, Nil)

	key := blobKey(t, h, "groupA")
	m1 := blobKey(t, h, "member1")

	if err := d.Add(key, m1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := d.Add(blobKey(t, h, "groupA"), m1); err != nil {
		t.Fatalf("Add (repeat): %v", err)
	}

	members := d.Members(blobKey(t, h, "groupA"))
	if len(members) != 1 {
		t.Errorf("Members() = %d entries, want 1 (idempotent Add)", len(members))
	}
}

func TestDictWeakSetsAddAccumulatesDistinctMembers(t *testing.T) {
	h := newTestHeap(t)
	d := InitDict(h, DictKindWeakSets, Nil)

	key := blobKey(t, h, "groupB")
	want := []string{"m1", "m2", "m3"}
	for _, m := range want {
		if err := d.Add(blobKey(t, h, "groupB"), blobKey(t, h, m)); err != nil {
			t.Fatalf("Add(%q): %v", m, err)
		}
	}

	members := d.Members(key)
	if len(members) != len(want) {
		t.Fatalf("Members() = %d, want %d", len(members), len(want))
	}
	seen := map[string]bool{}
	for _, m := range members {
		seen[string(h.BlobBytes(m))] = true
	}
	for _, m := range want {
		if !seen[m] {
			t.Errorf("Members() missing %q", m)
		}
	}
}

func TestDictIterEntriesAndEntryMembers(t *testing.T) {
	h := newTestHeap(t)
	d := InitDict(h, DictKindWeakSets, Nil)

	if err := d.Add(blobKey(t, h, "k1"), blobKey(t, h, "a")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := d.Add(blobKey(t, h, "k1"), blobKey(t, h, "b")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := d.Add(blobKey(t, h, "k2"), blobKey(t, h, "c")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	pairCount := 0
	d.IterEntryMembers(func(key, member Ref) bool {
		pairCount++
		return true
	})
	if pairCount != 3 {
		t.Errorf("IterEntryMembers visited %d pairs, want 3", pairCount)
	}

	entryCount := 0
	d.IterEntries(func(key, value Ref) bool {
		entryCount++
		return true
	})
	if entryCount != 2 {
		t.Errorf("IterEntries visited %d entries, want 2", entryCount)
	}
}

// TestDictIterEntriesAndIterEntryMembersStopOnFalse confirms both
// iterators actually stop walking once yield returns false, rather
// than discarding it and visiting every remaining entry/member.
func TestDictIterEntriesAndIterEntryMembersStopOnFalse(t *testing.T) {
	h := newTestHeap(t)
	strong := InitDict(h, DictKindStrong, Nil)
	for _, k := range []string{"k1", "k2", "k3", "k4"} {
		if err := strong.Set(blobKey(t, h, k), blobKey(t, h, k+"-v")); err != nil {
			t.Fatalf("Set(%q): %v", k, err)
		}
	}
	visited := 0
	strong.IterEntries(func(key, value Ref) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("IterEntries visited %d entries after yield returned false, want 1", visited)
	}

	sets := InitDict(h, DictKindWeakSets, Nil)
	for _, m := range []string{"m1", "m2", "m3"} {
		if err := sets.Add(blobKey(t, h, "key"), blobKey(t, h, m)); err != nil {
			t.Fatalf("Add(%q): %v", m, err)
		}
	}
	visitedMembers := 0
	sets.IterEntryMembers(func(key, member Ref) bool {
		visitedMembers++
		return false
	})
	if visitedMembers != 1 {
		t.Errorf("IterEntryMembers visited %d pairs after yield returned false, want 1", visitedMembers)
	}
}

func TestDictFinishAbortUnregister(t *testing.T) {
	h := newTestHeap(t)
	d := InitDict(h, DictKindStrong, Nil)
	if err := d.Set(blobKey(t, h, "k"), blobKey(t, h, "v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := d.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(h.liveBuilders()) != 0 {
		t.Error("builder still registered after Finish")
	}
	if err := d.Set(blobKey(t, h, "k2"), blobKey(t, h, "v2")); err != ErrClosed {
		t.Errorf("Set after Finish = %v, want ErrClosed", err)
	}

	d2 := InitDict(h, DictKindStrong, Nil)
	d2.Abort()
	if len(h.liveBuilders()) != 0 {
		t.Error("builder still registered after Abort")
	}
}
