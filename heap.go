// Heap lifecycle: Open/Close, the mmap-backed arena, the bump
// allocator, and the root/Commit/Abort transaction boundary. Modeled
// on jpl-au-folio's DB (db.go): an *os.File plus an os-level lock
// guard a single writer, and a fixed-size header at the front of the
// file records everything needed to reopen safely after a crash —
// here that's used_bytes and the root reference instead of folio's
// index/history offsets.
package ss

import (
	"fmt"
	"os"
	"sync"
)

// Mode selects how Open attaches to a heap file.
type Mode int

const (
	// Read opens an existing heap file for read-only access. Multiple
	// Read handles, and a Read handle alongside a Write handle, may
	// coexist.
	Read Mode = iota
	// Write opens an existing heap file for read-write access,
	// acquiring an exclusive OS-level lock. Fails with ErrLockError if
	// another Write handle already holds it.
	Write
	// Trunc creates a new, empty heap file (or truncates an existing
	// one), then opens it as Write.
	Trunc
)

// registeredBuilder is implemented by Table and Dict. GC contributes a
// Strong builder's root to the strong trace directly; WeakKeys and
// WeakSets builders are instead rebuilt from scratch after the strong
// trace completes, dropping entries whose key (and, for WeakSets,
// whose members) the strong trace never reached. gcSetRoot installs
// the result back into the builder so it keeps working across the
// collection without the caller re-reading anything.
type registeredBuilder interface {
	gcKind() DictKind
	gcRoot() Ref
	gcSetRoot(Ref)
	gcWidth() int
}

// Heap is an open handle onto a single heap file: a mapped arena plus
// the bookkeeping needed to allocate into it, commit a new root, or
// abort back to the last committed state.
type Heap struct {
	path string
	mode Mode

	file *os.File
	lock *fileLock
	mem  []byte // mapped arena, len == current file size

	algorithm int

	mu        sync.RWMutex
	used      uint32 // first unallocated byte, including the header
	committed uint32 // used as of the last Commit (Abort rolls back to this)
	root      Ref
	closed    bool

	growthIncrement int
	syncWrites      bool
	archiveReplaced bool

	regMu    sync.Mutex
	builders map[registeredBuilder]struct{}
}

// Open attaches to the heap file at path under mode. config's
// HashAlgorithm is only consulted when mode is Trunc; an existing
// heap's hash algorithm comes from its own header. The other Config
// fields apply in every mode.
func Open(path string, mode Mode, config Config) (*Heap, error) {
	switch mode {
	case Trunc:
		return createHeap(path, config)
	case Write:
		return openHeap(path, config, true)
	case Read:
		return openHeap(path, config, false)
	default:
		return nil, &ProgramError{Msg: "unknown heap mode"}
	}
}

func createHeap(path string, config Config) (*Heap, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	l := &fileLock{}
	l.setFile(f)
	ok, err := l.TryLock(LockExclusive)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	if !ok {
		f.Close()
		return nil, fmt.Errorf("%w: can't lock %s: resource temporarily unavailable", ErrLockError, path)
	}

	hdr := fileHeader{UsedBytes: HeaderSize, Root: Nil, Algorithm: config.algorithm()}
	if err := growFile(f, int64(HeaderSize)); err != nil {
		f.Close()
		return nil, err
	}
	mem, err := mmapFile(f, HeaderSize, true)
	if err != nil {
		f.Close()
		if isOutOfMemory(err) {
			fatal(fmt.Sprintf("ss: out of memory mapping %d bytes: %v", HeaderSize, err))
		}
		return nil, err
	}
	copy(mem, hdr.encode())

	h := &Heap{
		path:            path,
		mode:            Write,
		file:            f,
		lock:            l,
		mem:             mem,
		algorithm:       hdr.Algorithm,
		used:            hdr.UsedBytes,
		committed:       hdr.UsedBytes,
		root:            hdr.Root,
		growthIncrement: config.growthIncrement(),
		syncWrites:      config.SyncWrites,
		archiveReplaced: config.ArchiveReplacedHeaps,
		builders:        make(map[registeredBuilder]struct{}),
	}
	if err := h.Commit(); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func openHeap(path string, config Config, writable bool) (*Heap, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrIOError, err)
	}
	size := info.Size()
	if size < HeaderSize {
		f.Close()
		return nil, ErrFormatError
	}

	l := &fileLock{}
	if writable {
		l.setFile(f)
		ok, err := l.TryLock(LockExclusive)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %v", ErrIOError, err)
		}
		if !ok {
			f.Close()
			return nil, fmt.Errorf("%w: can't lock %s: resource temporarily unavailable", ErrLockError, path)
		}
	}

	mem, err := mmapFile(f, int(size), writable)
	if err != nil {
		f.Close()
		if isOutOfMemory(err) {
			fatal(fmt.Sprintf("ss: out of memory mapping %d bytes: %v", size, err))
		}
		return nil, err
	}

	hdr, err := decodeFileHeader(mem)
	if err != nil {
		munmapFile(mem)
		f.Close()
		return nil, err
	}
	// A crash between allocating and the next Commit leaves stale bytes
	// past used_bytes; the header's own UsedBytes is authoritative, the
	// file's length is just an upper bound.
	if uint64(hdr.UsedBytes) > uint64(size) {
		munmapFile(mem)
		f.Close()
		return nil, ErrFormatError
	}

	mode := Read
	if writable {
		mode = Write
	}
	h := &Heap{
		path:            path,
		mode:            mode,
		file:            f,
		lock:            l,
		mem:             mem,
		algorithm:       hdr.Algorithm,
		used:            hdr.UsedBytes,
		committed:       hdr.UsedBytes,
		root:            hdr.Root,
		growthIncrement: config.growthIncrement(),
		syncWrites:      config.SyncWrites,
		archiveReplaced: config.ArchiveReplacedHeaps,
		builders:        make(map[registeredBuilder]struct{}),
	}
	return h, nil
}

// Algorithm returns the hash algorithm this heap's header pins.
func (h *Heap) Algorithm() int {
	return h.algorithm
}

// Path returns the filesystem path this heap was opened from.
func (h *Heap) Path() string {
	return h.path
}

// GetRoot returns the heap's current root reference, Nil for a freshly
// created empty heap.
func (h *Heap) GetRoot() Ref {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.root
}

// SetRoot stages a new root reference. The change is not durable until
// Commit.
func (h *Heap) SetRoot(ref Ref) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mode != Write {
		return fmt.Errorf("%w: heap opened read-only", ErrIOError)
	}
	h.root = ref
	return nil
}

// AllocRecord allocates a record object with the given tag and field
// words, returning its reference.
func (h *Heap) AllocRecord(tag int, fields []Ref) (Ref, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mode != Write {
		return Nil, fmt.Errorf("%w: heap opened read-only", ErrIOError)
	}
	n := wordsForRecord(len(fields))
	off, err := h.reserve(n)
	if err != nil {
		return Nil, err
	}
	putWord(h.mem, off, encodeHeader(KindRecord, tag, len(fields)))
	for i, f := range fields {
		putWord(h.mem, off+headerWordBytes+uint32(i*headerWordBytes), uint32(f))
	}
	if h.syncWrites {
		if err := syncFile(h.file, h.mem); err != nil {
			return Nil, err
		}
	}
	return refFromOffset(off), nil
}

// AllocBlob allocates a blob object carrying a copy of data, returning
// its reference.
func (h *Heap) AllocBlob(tag int, data []byte) (Ref, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mode != Write {
		return Nil, fmt.Errorf("%w: heap opened read-only", ErrIOError)
	}
	n := wordsForBlob(len(data))
	off, err := h.reserve(n)
	if err != nil {
		return Nil, err
	}
	putWord(h.mem, off, encodeHeader(KindBlob, tag, len(data)))
	copy(h.mem[off+headerWordBytes:], data)
	if h.syncWrites {
		if err := syncFile(h.file, h.mem); err != nil {
			return Nil, err
		}
	}
	return refFromOffset(off), nil
}

// reserve bumps the allocator by n words, growing and remapping the
// arena first if it doesn't fit. Caller holds h.mu.
func (h *Heap) reserve(n int) (uint32, error) {
	need := uint64(h.used) + uint64(n)*headerWordBytes
	if need > uint64(len(h.mem)) {
		if err := h.grow(need); err != nil {
			return 0, err
		}
	}
	off := h.used
	h.used = uint32(need)
	return off, nil
}

// grow extends the backing file and remaps it to at least atLeast
// bytes. Caller holds h.mu.
func (h *Heap) grow(atLeast uint64) error {
	newSize := uint64(len(h.mem))
	if newSize < uint64(h.growthIncrement) {
		newSize = uint64(h.growthIncrement)
	}
	for newSize < atLeast {
		newSize *= 2
	}
	if newSize > uint64(^uint32(0)) {
		return ErrOutOfSpace
	}

	if err := munmapFile(h.mem); err != nil {
		return err
	}
	if err := growFile(h.file, int64(newSize)); err != nil {
		return err
	}
	mem, err := mmapFile(h.file, int(newSize), true)
	if err != nil {
		if isOutOfMemory(err) {
			fatal(fmt.Sprintf("ss: out of memory mapping %d bytes: %v", newSize, err))
		}
		return err
	}
	h.mem = mem
	return nil
}

// putWord stores a little-endian 32-bit word at byte offset off.
func putWord(mem []byte, off uint32, w uint32) {
	mem[off] = byte(w)
	mem[off+1] = byte(w >> 8)
	mem[off+2] = byte(w >> 16)
	mem[off+3] = byte(w >> 24)
}

// Commit writes the current used/root state into the header and
// fsyncs it, making it the durable state an Abort rolls back to and a
// crash recovers to.
func (h *Heap) Commit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mode != Write {
		return fmt.Errorf("%w: heap opened read-only", ErrIOError)
	}
	hdr := fileHeader{UsedBytes: h.used, Root: h.root, Algorithm: h.algorithm}
	copy(h.mem[:HeaderSize], hdr.encode())
	if err := syncFile(h.file, h.mem); err != nil {
		return err
	}
	h.committed = h.used
	return nil
}

// Abort discards every allocation and root change made since the last
// Commit. Objects allocated since then are not erased: the allocator
// moves back to the committed offset, so later allocations reuse and
// overwrite their space.
func (h *Heap) Abort() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mode != Write {
		return fmt.Errorf("%w: heap opened read-only", ErrIOError)
	}
	hdr, err := decodeFileHeader(h.mem)
	if err != nil {
		return err
	}
	h.used = h.committed
	h.root = hdr.Root
	return nil
}

// Stat reports size and utilization of the heap's arena.
type Stat struct {
	UsedBytes     uint32
	CapacityBytes uint32
	FormatVersion uint32
	Algorithm     int
}

// Stat returns the heap's current size statistics.
func (h *Heap) Stat() Stat {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stat{
		UsedBytes:     h.used,
		CapacityBytes: uint32(len(h.mem)),
		FormatVersion: FormatVersion,
		Algorithm:     h.algorithm,
	}
}

// Close releases the mapping, the OS lock, and the file handle. Safe
// to call more than once.
func (h *Heap) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	var firstErr error
	if err := munmapFile(h.mem); err != nil && firstErr == nil {
		firstErr = err
	}
	h.mem = nil
	if h.lock != nil {
		h.lock.setFile(nil)
	}
	if err := h.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// register adds b to the set of builders consulted for extra GC
// roots. Table.InitTable / Dict.InitDict call this.
func (h *Heap) register(b registeredBuilder) {
	h.regMu.Lock()
	defer h.regMu.Unlock()
	h.builders[b] = struct{}{}
}

// unregister removes b, called from Finish/Abort on a builder.
func (h *Heap) unregister(b registeredBuilder) {
	h.regMu.Lock()
	defer h.regMu.Unlock()
	delete(h.builders, b)
}

// liveBuilders snapshots the currently registered builders, used by GC
// to collect extra roots and later rebind them.
func (h *Heap) liveBuilders() []registeredBuilder {
	h.regMu.Lock()
	defer h.regMu.Unlock()
	out := make([]registeredBuilder, 0, len(h.builders))
	for b := range h.builders {
		out = append(out, b)
	}
	return out
}
