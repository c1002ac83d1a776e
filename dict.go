// Persistent dictionary: STRONG, WEAK_KEYS, and WEAK_SETS variants
// over the same HAMT shape as the interning table (spec §4.4), widened
// to key/value (or key/member-set) leaf tuples. Builder protocol and
// GC registration mirror intern.go.
package ss

// DictKind selects a dictionary's key/value liveness policy.
type DictKind int

const (
	// DictKindStrong: both keys and values are ordinary strong
	// references, kept alive by the dict itself.
	DictKindStrong DictKind = iota
	// DictKindWeakKeys: an entry survives GC only if its key is
	// reachable some other way; if so, its value is kept too.
	DictKindWeakKeys
	// DictKindWeakSets: values are member sets; an entry survives GC
	// only if its key is reachable elsewhere and at least one member
	// is too, with unreachable members pruned individually.
	DictKindWeakSets
)

// Dict is a transient builder over a persistent dictionary trie.
type Dict struct {
	h        *Heap
	kind     DictKind
	root     Ref
	finished bool
}

// InitDict opens a builder of the given kind on top of an existing
// persistent root (or Nil for an empty dict) and registers it with h.
func InitDict(h *Heap, kind DictKind, root Ref) *Dict {
	d := &Dict{h: h, kind: kind, root: root}
	h.register(d)
	return d
}

func dictEq(h *Heap) func(Ref, Ref) bool {
	return func(a, b Ref) bool { return EqualDeep(h, a, b) }
}

// Set stores value at key, overwriting any existing value. Valid for
// DictKindStrong and DictKindWeakKeys; returns ErrSchemaError on a
// WeakSets dict (use Add instead).
func (d *Dict) Set(key, value Ref) error {
	if d.finished {
		return ErrClosed
	}
	if d.kind == DictKindWeakSets {
		return ErrSchemaError
	}
	hash := refHash(d.h, key, d.h.algorithm)
	update := func(old []Ref, found bool) (Ref, bool) { return value, true }
	newRoot, _, err := hamtUpsert(d.h, d.root, hash, 2, key, dictEq(d.h), update)
	if err != nil {
		return err
	}
	d.root = newRoot
	return nil
}

// Get returns the value stored at key, or Nil if absent. For a
// WeakSets dict the returned reference is the member-set record; use
// Members for the expanded member list.
func (d *Dict) Get(key Ref) (Ref, bool) {
	hash := refHash(d.h, key, d.h.algorithm)
	return hamtLookup(d.h, d.root, hash, 2, key, dictEq(d.h))
}

// Del removes key, a no-op if absent.
func (d *Dict) Del(key Ref) error {
	if d.finished {
		return ErrClosed
	}
	hash := refHash(d.h, key, d.h.algorithm)
	update := func(old []Ref, found bool) (Ref, bool) { return Nil, false }
	newRoot, _, err := hamtUpsert(d.h, d.root, hash, 2, key, dictEq(d.h), update)
	if err != nil {
		return err
	}
	d.root = newRoot
	return nil
}

// Add inserts m into the member set at key, creating the set if key is
// new. Idempotent: adding an already-present member is a no-op. Valid
// only for DictKindWeakSets; returns ErrSchemaError otherwise.
func (d *Dict) Add(key, m Ref) error {
	if d.finished {
		return ErrClosed
	}
	if d.kind != DictKindWeakSets {
		return ErrSchemaError
	}
	hash := refHash(d.h, key, d.h.algorithm)
	var allocErr error
	update := func(old []Ref, found bool) (Ref, bool) {
		var members []Ref
		if found {
			members = d.h.memberSetFields(old[1])
			for _, existing := range members {
				if EqualShallow(existing, m) {
					return old[1], true
				}
			}
		}
		members = append(members, m)
		ref, err := d.h.AllocRecord(TagMemberSet, members)
		if err != nil {
			allocErr = err
		}
		return ref, true
	}
	newRoot, _, err := hamtUpsert(d.h, d.root, hash, 2, key, dictEq(d.h), update)
	if err != nil {
		return err
	}
	if allocErr != nil {
		return allocErr
	}
	d.root = newRoot
	return nil
}

// memberSetFields returns the member refs of a WeakSets value record.
func (h *Heap) memberSetFields(set Ref) []Ref {
	if set.IsNil() {
		return nil
	}
	n := h.Len(set)
	out := make([]Ref, n)
	for i := 0; i < n; i++ {
		out[i] = h.Field(set, i)
	}
	return out
}

// Members returns the current member list of key in a WeakSets dict,
// nil if key is absent.
func (d *Dict) Members(key Ref) []Ref {
	set, ok := d.Get(key)
	if !ok {
		return nil
	}
	return d.h.memberSetFields(set)
}

// IterEntries yields (key, value) pairs in trie order. For a WeakSets
// dict, value is the member-set reference; use IterEntryMembers to see
// individual members.
func (d *Dict) IterEntries(yield func(key, value Ref) bool) {
	hamtIterate(d.h, d.root, 2, func(entry []Ref) bool {
		return yield(entry[0], entry[1])
	})
}

// IterEntryMembers yields (key, member) pairs, expanding member sets
// for a WeakSets dict (and behaving like IterEntries for the others).
func (d *Dict) IterEntryMembers(yield func(key, member Ref) bool) {
	hamtIterate(d.h, d.root, 2, func(entry []Ref) bool {
		if d.kind != DictKindWeakSets {
			return yield(entry[0], entry[1])
		}
		for _, m := range d.h.memberSetFields(entry[1]) {
			if !yield(entry[0], m) {
				return false
			}
		}
		return true
	})
}

// Finish returns the builder's current root as the new persistent
// form and unregisters the builder.
func (d *Dict) Finish() (Ref, error) {
	if d.finished {
		return Nil, ErrClosed
	}
	d.finished = true
	d.h.unregister(d)
	return d.root, nil
}

// Abort discards the builder without producing a persistent root.
func (d *Dict) Abort() {
	if d.finished {
		return
	}
	d.finished = true
	d.h.unregister(d)
}

func (d *Dict) gcKind() DictKind { return d.kind }
func (d *Dict) gcRoot() Ref      { return d.root }
func (d *Dict) gcSetRoot(r Ref)  { d.root = r }
func (d *Dict) gcWidth() int     { return 2 }
