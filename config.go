// Configuration accepted by Open, generalizing jpl-au-folio's Config
// pattern (hash algorithm selection, sync behavior) to the heap.
package ss

// Hash algorithm identifiers for the interning table / dictionary HAMT.
// AlgFNV1a is format version 1's mandated default (spec §9 Open
// Questions: "FNV-1a is adequate"); AlgXXHash3 and AlgBlake2b are
// available for a store that opts into a newer format version.
const (
	AlgFNV1a   = 1
	AlgXXHash3 = 2
	AlgBlake2b = 3
)

// Config configures a heap at Open/Create time.
type Config struct {
	// HashAlgorithm selects the 32-bit hash used by the interning table
	// and dictionary HAMTs. Zero defaults to AlgFNV1a. Only meaningful
	// when creating a new heap — an existing heap's algorithm is read
	// from its header and this field is ignored.
	HashAlgorithm int

	// SyncWrites, when true, fsyncs after every allocation in addition
	// to the fsync Commit always performs. Off by default: durability
	// is only guaranteed at Commit boundaries per spec §5.
	SyncWrites bool

	// GrowthIncrement is the initial mmap growth step in bytes when the
	// arena must be extended; each subsequent growth doubles the
	// previous increment. Zero defaults to 1 MiB.
	GrowthIncrement int

	// ArchiveReplacedHeaps, when true, zstd-compresses the file GC is
	// about to discard instead of deleting it outright, keeping it
	// alongside the live file as "<path>.<unix-ms>.gc.zst" for forensic
	// retention. See gc.go / archive.go.
	ArchiveReplacedHeaps bool
}

func (c Config) algorithm() int {
	if c.HashAlgorithm == 0 {
		return AlgFNV1a
	}
	return c.HashAlgorithm
}

func (c Config) growthIncrement() int {
	if c.GrowthIncrement <= 0 {
		return 1 << 20
	}
	return c.GrowthIncrement
}
