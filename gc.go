// Compacting garbage collector: a semispace-style copy where "to
// space" is a freshly created file rather than a reserved half of the
// mapping (spec §4.5). Modeled on jpl-au-folio's Repair (repair.go):
// heavy work happens against a ".tmp" file built from scratch, then
// the handles are swapped onto it — here via natefinch/atomic instead
// of manual rename, since swap failure must leave the old file
// completely untouched.
package ss

import (
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

const forwardFlag = 0x80000000

func loadWord(mem []byte, off uint32) uint32 {
	return uint32(mem[off]) | uint32(mem[off+1])<<8 | uint32(mem[off+2])<<16 | uint32(mem[off+3])<<24
}

func isForwardedRef(mem []byte, ref Ref) (Ref, bool) {
	if ref.IsNil() || ref.IsImmediate() {
		return ref, true
	}
	off := ref.offset()
	word := loadWord(mem, off)
	if word&forwardFlag == 0 {
		return Nil, false
	}
	return refFromOffset(loadWord(mem, off+headerWordBytes)), true
}

func markForwarded(mem []byte, off, newOff uint32) {
	word := loadWord(mem, off)
	putWord(mem, off, word|forwardFlag)
	putWord(mem, off+headerWordBytes, newOff)
}

// forwardRef copies ref (and, transitively, everything it strongly
// reaches) from old into new, memoizing via forwarding words written
// directly into old's mapping so a shared subtree is copied once no
// matter how many parents reference it.
func forwardRef(old, new *Heap, ref Ref) (Ref, error) {
	if ref.IsNil() || ref.IsImmediate() {
		return ref, nil
	}
	if nr, ok := isForwardedRef(old.mem, ref); ok {
		return nr, nil
	}
	hdr := old.objectAt(ref)

	var newRef Ref
	var err error
	if hdr.kind == KindBlob {
		newRef, err = new.AllocBlob(hdr.tag, old.BlobBytes(ref))
	} else {
		fields := make([]Ref, hdr.len)
		for i := 0; i < hdr.len; i++ {
			fields[i], err = forwardRef(old, new, old.Field(ref, i))
			if err != nil {
				return Nil, err
			}
		}
		newRef, err = new.AllocRecord(hdr.tag, fields)
	}
	if err != nil {
		return Nil, err
	}
	markForwarded(old.mem, ref.offset(), newRef.offset())
	return newRef, nil
}

// rebuildWeak reconstructs a WeakKeys or WeakSets dict's trie in new,
// reading the old trie directly (it is untouched by the strong trace,
// since weak builders never contribute their root to it) and keeping
// only entries the strong trace reached some other way.
func rebuildWeak(old, new *Heap, root Ref, kind DictKind, width int) (Ref, error) {
	var newRoot Ref
	var stepErr error
	hamtIterate(old, root, width, func(entry []Ref) bool {
		key := entry[0]
		newKey, ok := isForwardedRef(old.mem, key)
		if !ok {
			return true // key unreachable elsewhere: whole entry dropped
		}

		var newValue Ref
		switch kind {
		case DictKindWeakKeys:
			nv, err := forwardRef(old, new, entry[1])
			if err != nil {
				stepErr = err
				return false
			}
			newValue = nv
		case DictKindWeakSets:
			var members []Ref
			for _, m := range old.memberSetFields(entry[1]) {
				if nm, ok := isForwardedRef(old.mem, m); ok {
					members = append(members, nm)
				}
			}
			if len(members) == 0 {
				return true // set emptied: whole entry dropped
			}
			nv, err := new.AllocRecord(TagMemberSet, members)
			if err != nil {
				stepErr = err
				return false
			}
			newValue = nv
		default:
			stepErr = &ProgramError{Msg: "rebuildWeak on a strong dict"}
			return false
		}

		hash := refHash(new, newKey, new.algorithm)
		nr, _, err := hamtUpsert(new, newRoot, hash, 2, newKey, dictEq(new), func(old []Ref, found bool) (Ref, bool) {
			return newValue, true
		})
		if err != nil {
			stepErr = err
			return false
		}
		newRoot = nr
		return true
	})
	return newRoot, stepErr
}

// GCStats summarizes a completed collection.
type GCStats struct {
	UsedBefore uint32
	UsedAfter  uint32
}

// GC runs a full stop-the-world compaction: every object reachable
// from the persistent root or a currently registered builder's strong
// root is copied into a fresh file; weak dict builders are then
// rebuilt dropping anything the strong trace didn't reach. On success
// the heap's file handle, mapping, and root are all updated in place;
// h.path continues to name the same file. On any failure the old file
// and every handle are left exactly as they were.
func (h *Heap) GC() (GCStats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mode != Write {
		return GCStats{}, fmt.Errorf("%w: GC requires a write handle", ErrIOError)
	}

	tmpPath := h.path + ".gc.tmp"
	newHeap, err := createHeap(tmpPath, Config{HashAlgorithm: h.algorithm, GrowthIncrement: h.growthIncrement})
	if err != nil {
		return GCStats{}, err
	}

	before := h.used
	builders := h.liveBuilders()

	// Capture the pre-collection bytes before forwarding marks are
	// written into the old mapping; best-effort, archival failure
	// doesn't abort an otherwise ready GC.
	var archived []byte
	if h.archiveReplaced {
		if data, err := os.ReadFile(h.path); err == nil {
			archived = data
		}
	}

	newRoot, err := forwardRef(h, newHeap, h.root)
	if err != nil {
		newHeap.Close()
		os.Remove(tmpPath)
		return GCStats{}, err
	}
	for _, b := range builders {
		if b.gcKind() == DictKindStrong {
			r, err := forwardRef(h, newHeap, b.gcRoot())
			if err != nil {
				newHeap.Close()
				os.Remove(tmpPath)
				return GCStats{}, err
			}
			b.gcSetRoot(r)
		}
	}
	for _, b := range builders {
		if b.gcKind() != DictKindStrong {
			r, err := rebuildWeak(h, newHeap, b.gcRoot(), b.gcKind(), b.gcWidth())
			if err != nil {
				newHeap.Close()
				os.Remove(tmpPath)
				return GCStats{}, err
			}
			b.gcSetRoot(r)
		}
	}

	if err := newHeap.SetRoot(newRoot); err != nil {
		newHeap.Close()
		os.Remove(tmpPath)
		return GCStats{}, err
	}
	if err := newHeap.Commit(); err != nil {
		newHeap.Close()
		os.Remove(tmpPath)
		return GCStats{}, err
	}
	after := newHeap.used

	// Detach the new heap's own handle/lock before the swap: the
	// in-place Heap below takes over the same path under its own file
	// handle and lock.
	newMem := newHeap.mem
	newHeap.mem = nil
	newHeap.lock.Unlock()
	newHeap.lock.setFile(nil)
	newHeap.file.Close()

	oldPath := h.path

	if archived != nil {
		_ = writeArchive(oldPath, archived)
	}

	if err := atomic.ReplaceFile(tmpPath, oldPath); err != nil {
		munmapFile(newMem)
		os.Remove(tmpPath)
		return GCStats{}, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	if err := munmapFile(h.mem); err != nil {
		return GCStats{}, err
	}
	if err := h.lock.Unlock(); err != nil {
		return GCStats{}, err
	}
	h.lock.setFile(nil)
	if err := h.file.Close(); err != nil {
		return GCStats{}, err
	}

	f, err := os.OpenFile(oldPath, os.O_RDWR, 0o644)
	if err != nil {
		return GCStats{}, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	h.lock.setFile(f)
	if ok, err := h.lock.TryLock(LockExclusive); err != nil || !ok {
		f.Close()
		return GCStats{}, fmt.Errorf("%w: reacquiring lock after gc", ErrLockError)
	}

	h.file = f
	h.mem = newMem
	h.used = after
	h.committed = after
	h.root = newRoot

	return GCStats{UsedBefore: before, UsedAfter: after}, nil
}
