// Heap word encoding: immediate integers and object references share a
// single 32-bit word. See object.go for the object-header encoding that
// a non-immediate word points to.
package ss

// Ref is a heap word: either an immediate signed integer (low bit 1) or
// a byte offset into the arena pointing at an object header (low bit 0,
// nonzero), or the nil reference (zero).
type Ref uint32

// Nil is the reference to no object.
const Nil Ref = 0

// immediate layout: bit 0 = 1, bits 1..31 carry a signed 31-bit integer.
const (
	immTagBit  = 1
	immShift   = 1
	immMinInt  = -(1 << 30)
	immMaxInt  = (1 << 30) - 1
)

// IsImmediate reports whether r encodes a small integer rather than a
// heap offset.
func (r Ref) IsImmediate() bool {
	return r&immTagBit == 1
}

// IsNil reports whether r is the nil reference.
func (r Ref) IsNil() bool {
	return r == Nil
}

// IsReference reports whether r is nil or a heap offset (i.e. not an
// immediate integer).
func (r Ref) IsReference() bool {
	return !r.IsImmediate()
}

// FromInt packs a signed integer into an immediate reference. i must be
// representable in 31 signed bits; callers that accept externally
// supplied integers should check with FitsImmediate first.
func FromInt(i int32) Ref {
	return Ref(uint32(i)<<immShift) | immTagBit
}

// FitsImmediate reports whether i can round-trip through FromInt/ToInt.
func FitsImmediate(i int64) bool {
	return i >= immMinInt && i <= immMaxInt
}

// ToInt unpacks the signed integer carried by an immediate reference.
// The result is meaningless if r is not immediate; callers check
// IsImmediate first.
func ToInt(r Ref) int32 {
	return int32(r) >> immShift
}

// offset returns the byte offset into the arena that r points to. Valid
// only when r is a non-nil reference.
func (r Ref) offset() uint32 {
	return uint32(r)
}

// refFromOffset builds a reference word from a 4-byte-aligned arena
// offset.
func refFromOffset(off uint32) Ref {
	return Ref(off)
}
