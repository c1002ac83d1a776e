// Content-addressed interning table: a HAMT (hamt.go) whose leaves are
// blob references, keyed on blob content (spec §4.3). Builder protocol
// mirrors jpl-au-folio's index-then-flush pattern (build an in-memory
// map, keep using it across calls, flush on finish) — here "flush" is
// finish, and because the trie is itself persistent every intern call
// already writes its nodes into the heap; finish just hands back the
// current root.
package ss

// Table is a transient builder over a persistent interning trie.
type Table struct {
	h        *Heap
	root     Ref
	finished bool
	filter   *bloom // negative-lookup cache, see bloom.go
}

// InitTable opens a builder on top of an existing persistent root (or
// Nil for an empty table) and registers it with h so a concurrent GC
// treats its root as a live strong root. If root already holds
// entries, the negative-lookup filter is seeded by walking it once so
// it never reports a false negative for content interned before this
// builder was opened.
func InitTable(h *Heap, root Ref) *Table {
	t := &Table{h: h, root: root, filter: newBloom()}
	hamtIterate(h, root, 1, func(entry []Ref) bool {
		t.filter.Add(refHash(h, entry[0], h.algorithm))
		return true
	})
	h.register(t)
	return t
}

// Intern returns the canonical reference for bytes, allocating and
// inserting a new blob only if no equal one is already present. When
// the negative-lookup filter is certain bytes was never interned, the
// insert path skips straight to "not found" instead of running
// EqualDeep against whatever bucket the hash lands in.
func (t *Table) Intern(bytes []byte) (Ref, error) {
	if t.finished {
		return Nil, ErrClosed
	}
	hash := hashBytes(bytes, t.h.algorithm)
	definitelyAbsent := !t.filter.Contains(hash)
	if !definitelyAbsent {
		existing, err := t.InternSoft(bytes)
		if err != nil {
			return Nil, err
		}
		if !existing.IsNil() {
			return existing, nil
		}
	}

	candidate, err := t.h.AllocBlob(0, bytes)
	if err != nil {
		return Nil, err
	}
	eq := func(a, b Ref) bool {
		if definitelyAbsent {
			return false
		}
		return EqualDeep(t.h, a, b)
	}
	inserted := false
	update := func(old []Ref, found bool) (Ref, bool) {
		if found {
			return old[0], true
		}
		inserted = true
		return candidate, true
	}
	newRoot, result, err := hamtUpsert(t.h, t.root, hash, 1, candidate, eq, update)
	if err != nil {
		return Nil, err
	}
	t.root = newRoot
	if inserted {
		t.filter.Add(hash)
	}
	return result, nil
}

// InternSoft looks up bytes without allocating; returns Nil if absent.
func (t *Table) InternSoft(bytes []byte) (Ref, error) {
	if t.finished {
		return Nil, ErrClosed
	}
	// A lookup still needs a candidate reference to hash and compare
	// against, but it must never become visible if absent: allocate it
	// in a throwaway spot is unavoidable without a separate
	// hash-of-bytes path, so hash the bytes directly instead.
	hash := hashBytes(bytes, t.h.algorithm)
	if !t.filter.Contains(hash) {
		return Nil, nil
	}
	found := Nil
	ok := false
	hamtIterateMatch(t.h, t.root, hash, func(ref Ref) bool {
		return string(t.h.BlobBytes(ref)) == string(bytes)
	}, &found, &ok)
	if !ok {
		return Nil, nil
	}
	return found, nil
}

// hamtIterateMatch is a narrow lookup helper for InternSoft, walking
// only the branch matching hash without allocating a candidate ref.
func hamtIterateMatch(h *Heap, root Ref, hash uint32, match func(Ref) bool, out *Ref, ok *bool) {
	node := root
	depth := 0
	for {
		if node.IsNil() {
			return
		}
		hdr := h.objectAt(node)
		if hdr.tag == TagBucket {
			for i := 0; i < hdr.len; i++ {
				ref := h.Field(node, i)
				if match(ref) {
					*out, *ok = ref, true
					return
				}
			}
			return
		}
		bitmap := uint32(ToInt(h.Field(node, 0)))
		nib := nibble(hash, depth)
		bit := uint32(1) << nib
		if bitmap&bit == 0 {
			return
		}
		idx := 1
		for b := uint32(0); b < nib; b++ {
			if bitmap&(1<<b) != 0 {
				idx++
			}
		}
		node = h.Field(node, idx)
		depth++
	}
}

// IterEntries yields every interned blob reference in trie order.
func (t *Table) IterEntries(yield func(Ref) bool) {
	hamtIterate(t.h, t.root, 1, func(entry []Ref) bool {
		return yield(entry[0])
	})
}

// Stats reports how many distinct blobs are currently interned.
type TableStats struct {
	Count int
}

// Stats walks the trie to report its current size. O(n).
func (t *Table) Stats() TableStats {
	n := 0
	hamtIterate(t.h, t.root, 1, func([]Ref) bool { n++; return true })
	return TableStats{Count: n}
}

// Finish returns the builder's current root as the new persistent
// form and unregisters the builder.
func (t *Table) Finish() (Ref, error) {
	if t.finished {
		return Nil, ErrClosed
	}
	t.finished = true
	t.h.unregister(t)
	return t.root, nil
}

// Abort discards the builder without producing a persistent root.
func (t *Table) Abort() {
	if t.finished {
		return
	}
	t.finished = true
	t.h.unregister(t)
}

func (t *Table) gcKind() DictKind { return DictKindStrong }
func (t *Table) gcRoot() Ref      { return t.root }
func (t *Table) gcSetRoot(r Ref)  { t.root = r }
func (t *Table) gcWidth() int     { return 1 }
