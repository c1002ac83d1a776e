// Hash algorithm implementations for the interning table and
// dictionary HAMTs. Three algorithms are supported, selectable via
// Config.HashAlgorithm and pinned per heap in the file header — see
// jpl-au-folio/hash.go, whose Config.HashAlgorithm enum this mirrors
// (same constants, same switch shape), narrowed from a 64-bit digest to
// the 32-bit one the HAMT consumes.
package ss

import (
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// hashBytes returns a deterministic 32-bit digest of b under the given
// algorithm. The digest must be fixed per format version (spec §9 Open
// Questions); AlgFNV1a is what format version 1 always uses.
func hashBytes(b []byte, alg int) uint32 {
	switch alg {
	case AlgXXHash3:
		return uint32(xxh3.Hash(b))
	case AlgBlake2b:
		sum := blake2b.Sum256(b)
		return uint32(sum[0]) | uint32(sum[1])<<8 | uint32(sum[2])<<16 | uint32(sum[3])<<24
	case AlgFNV1a:
		fallthrough
	default:
		h := fnv.New32a()
		h.Write(b)
		return h.Sum32()
	}
}
