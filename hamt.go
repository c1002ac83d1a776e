// The 16-way bitmap-indexed trie shared by the interning table (width
// 1: a bucket entry is just a key) and the dictionary (width 2: a
// bucket entry is a key/value pair, where "value" for a WEAK_SETS dict
// is itself a member-set record). Neither the teacher nor the rest of
// the retrieval pack carries a HAMT; this is spec domain logic (§4.3,
// §4.5) written in the corpus's prevailing shape — small top-level
// functions taking *Heap explicitly, mirroring jpl-au-folio's
// free-function-over-*os.File style (scan.go, bloom.go) rather than a
// method-heavy type.
package ss

import (
	"math/bits"
	"sort"
)

const (
	hamtBitsPerLevel = 4
	hamtFanout       = 1 << hamtBitsPerLevel // 16
	hamtMaxDepth     = 8                     // 8 * 4 = 32 bits of hash consumed
)

func nibble(hash uint32, depth int) uint32 {
	return (hash >> (uint(depth) * hamtBitsPerLevel)) & (hamtFanout - 1)
}

// makeBucket allocates a terminal node holding entries verbatim,
// width refs each.
func makeBucket(h *Heap, entries [][]Ref, width int) (Ref, error) {
	fields := make([]Ref, 0, len(entries)*width)
	for _, e := range entries {
		fields = append(fields, e...)
	}
	return h.AllocRecord(TagBucket, fields)
}

// makeTrieNode allocates a branch node: bitmap followed by children in
// ascending nibble order.
func makeTrieNode(h *Heap, bitmap uint32, children []Ref) (Ref, error) {
	fields := make([]Ref, 0, len(children)+1)
	fields = append(fields, FromInt(int32(bitmap)))
	fields = append(fields, children...)
	return h.AllocRecord(TagTrieNode, fields)
}

func decodeBucketEntries(h *Heap, node Ref, width int) [][]Ref {
	hdr := h.objectAt(node)
	n := hdr.len / width
	out := make([][]Ref, n)
	for i := 0; i < n; i++ {
		e := make([]Ref, width)
		for j := 0; j < width; j++ {
			e[j] = h.Field(node, i*width+j)
		}
		out[i] = e
	}
	return out
}

// hamtLookup returns the value half of the entry (width 2) or the
// stored key itself (width 1, interning) matching key under hash.
func hamtLookup(h *Heap, root Ref, hash uint32, width int, key Ref, eq func(Ref, Ref) bool) (Ref, bool) {
	node := root
	depth := 0
	for {
		if node.IsNil() {
			return Nil, false
		}
		hdr := h.objectAt(node)
		if hdr.tag == TagBucket {
			n := hdr.len / width
			for i := 0; i < n; i++ {
				if eq(h.Field(node, i*width), key) {
					if width == 1 {
						return h.Field(node, i*width), true
					}
					return h.Field(node, i*width+1), true
				}
			}
			return Nil, false
		}
		bitmap := uint32(ToInt(h.Field(node, 0)))
		bit := uint32(1) << nibble(hash, depth)
		if bitmap&bit == 0 {
			return Nil, false
		}
		idx := 1 + bits.OnesCount32(bitmap&(bit-1))
		node = h.Field(node, idx)
		depth++
	}
}

// hamtUpsert inserts or updates the entry for key. update is called
// with the existing entry (nil, false if absent) and must return the
// new value half (ignored for width 1) and whether to keep an entry at
// all; returning keep=false on an existing entry deletes it.
func hamtUpsert(h *Heap, root Ref, hash uint32, width int, key Ref, eq func(Ref, Ref) bool, update func(old []Ref, found bool) (Ref, bool)) (Ref, Ref, error) {
	return hamtUpsertAt(h, root, hash, 0, width, key, eq, update)
}

func hamtUpsertAt(h *Heap, node Ref, hash uint32, depth, width int, key Ref, eq func(Ref, Ref) bool, update func(old []Ref, found bool) (Ref, bool)) (Ref, Ref, error) {
	if node.IsNil() {
		val, keep := update(nil, false)
		if !keep {
			return Nil, Nil, nil
		}
		entry := buildEntry(key, val, width)
		b, err := makeBucket(h, [][]Ref{entry}, width)
		return b, resultOf(entry, width), err
	}

	hdr := h.objectAt(node)
	if hdr.tag == TagBucket {
		entries := decodeBucketEntries(h, node, width)
		for i, e := range entries {
			if eq(e[0], key) {
				val, keep := update(e, true)
				if !keep {
					entries = append(entries[:i:i], entries[i+1:]...)
					if len(entries) == 0 {
						return Nil, Nil, nil
					}
					nb, err := makeBucket(h, entries, width)
					return nb, Nil, err
				}
				entries[i] = buildEntry(e[0], val, width)
				nb, err := makeBucket(h, entries, width)
				return nb, resultOf(entries[i], width), err
			}
		}
		val, keep := update(nil, false)
		if !keep {
			return node, Nil, nil
		}
		newEntry := buildEntry(key, val, width)
		if depth >= hamtMaxDepth {
			entries = append(entries, newEntry)
			nb, err := makeBucket(h, entries, width)
			return nb, resultOf(newEntry, width), err
		}
		all := append(append([][]Ref{}, entries...), newEntry)
		nb, err := splitEntries(h, all, depth, width)
		return nb, resultOf(newEntry, width), err
	}

	// Branch node.
	bitmap := uint32(ToInt(h.Field(node, 0)))
	nib := nibble(hash, depth)
	bit := uint32(1) << nib
	idx := 1 + bits.OnesCount32(bitmap&(bit-1))
	hasChild := bitmap&bit != 0
	var child Ref
	if hasChild {
		child = h.Field(node, idx)
	}
	newChild, result, err := hamtUpsertAt(h, child, hash, depth+1, width, key, eq, update)
	if err != nil {
		return Nil, Nil, err
	}

	children := make([]Ref, 0, hdr.len-1)
	for i := 1; i < hdr.len; i++ {
		children = append(children, h.Field(node, i))
	}
	switch {
	case newChild.IsNil():
		if hasChild {
			children = append(children[:idx-1:idx-1], children[idx:]...)
			bitmap &^= bit
		}
	case hasChild:
		children[idx-1] = newChild
	default:
		tail := append([]Ref{newChild}, children[idx-1:]...)
		children = append(children[:idx-1:idx-1], tail...)
		bitmap |= bit
	}
	if bitmap == 0 {
		return Nil, result, nil
	}
	nn, err := makeTrieNode(h, bitmap, children)
	return nn, result, err
}

// splitEntries builds a subtree for entries that all collide at depth,
// pushing the collision down one level at a time until they diverge or
// hamtMaxDepth is reached.
func splitEntries(h *Heap, entries [][]Ref, depth, width int) (Ref, error) {
	if depth >= hamtMaxDepth || len(entries) <= 1 {
		return makeBucket(h, entries, width)
	}

	groups := map[uint32][][]Ref{}
	var order []uint32
	for _, e := range entries {
		hh := refHash(h, e[0], h.algorithm)
		nib := nibble(hh, depth)
		if _, ok := groups[nib]; !ok {
			order = append(order, nib)
		}
		groups[nib] = append(groups[nib], e)
	}
	if len(groups) == 1 {
		child, err := splitEntries(h, entries, depth+1, width)
		if err != nil {
			return Nil, err
		}
		return makeTrieNode(h, 1<<order[0], []Ref{child})
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	bitmap := uint32(0)
	children := make([]Ref, 0, len(order))
	for _, nib := range order {
		g := groups[nib]
		var childRef Ref
		var err error
		if len(g) == 1 {
			childRef, err = makeBucket(h, g, width)
		} else {
			childRef, err = splitEntries(h, g, depth+1, width)
		}
		if err != nil {
			return Nil, err
		}
		children = append(children, childRef)
		bitmap |= 1 << nib
	}
	return makeTrieNode(h, bitmap, children)
}

// hamtIterate walks every entry depth-first, fields in index order and
// trie children in bitmap order — the determinism spec §4.5 requires.
// It stops as soon as yield returns false, like range-over-func's
// iter.Seq2 protocol its callers expose.
func hamtIterate(h *Heap, root Ref, width int, yield func(entry []Ref) bool) bool {
	if root.IsNil() {
		return true
	}
	hdr := h.objectAt(root)
	if hdr.tag == TagBucket {
		for _, e := range decodeBucketEntries(h, root, width) {
			if !yield(e) {
				return false
			}
		}
		return true
	}
	for i := 1; i < hdr.len; i++ {
		if !hamtIterate(h, h.Field(root, i), width, yield) {
			return false
		}
	}
	return true
}

func buildEntry(key, val Ref, width int) []Ref {
	if width == 1 {
		return []Ref{key}
	}
	return []Ref{key, val}
}

func resultOf(entry []Ref, width int) Ref {
	return entry[width-1]
}

// refHash computes a deterministic 32-bit digest of a heap value,
// recursing through record fields so that structurally equal values
// hash identically regardless of physical sharing.
func refHash(h *Heap, ref Ref, alg int) uint32 {
	if ref.IsImmediate() {
		v := uint32(ToInt(ref))
		return hashBytes([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}, alg)
	}
	if ref.IsNil() {
		return hashBytes(nil, alg)
	}
	hdr := h.objectAt(ref)
	if hdr.kind == KindBlob {
		return hashBytes(h.BlobBytes(ref), alg)
	}
	acc := uint32(hdr.tag)*2654435761 + uint32(hdr.len)
	for i := 0; i < hdr.len; i++ {
		acc = acc*16777619 ^ refHash(h, h.Field(ref, i), alg)
	}
	return acc
}
