// Value is a convenience wrapper pairing a Ref with the Heap that
// resolves it, so callers can dispatch on shape without repeatedly
// threading the heap through Is/Tag/Field calls. Mirrors the original
// C's ss_val "is string / is pair" reflection (original_source
// libdpm/util.c), expressed as a Go tagged struct instead of runtime
// type assertions.
package ss

// ValueKind distinguishes the four shapes a Value can take.
type ValueKind int

const (
	KindNil ValueKind = iota
	KindInt
	KindBlobValue
	KindRecordValue
)

// Value pairs a reference with the heap it resolves against.
type Value struct {
	h   *Heap
	ref Ref
}

// Wrap builds a Value from a reference already known to belong to h.
func Wrap(h *Heap, ref Ref) Value {
	return Value{h: h, ref: ref}
}

// Ref returns the wrapped reference.
func (v Value) Ref() Ref {
	return v.ref
}

// Kind dispatches on the reference's shape.
func (v Value) Kind() ValueKind {
	switch {
	case v.ref.IsNil():
		return KindNil
	case v.ref.IsImmediate():
		return KindInt
	case v.h.IsBlob(v.ref):
		return KindBlobValue
	default:
		return KindRecordValue
	}
}

// Int returns the wrapped integer. Panics with a ProgramError if Kind
// is not KindInt.
func (v Value) Int() int32 {
	if v.Kind() != KindInt {
		panic(&ProgramError{Msg: "Value.Int on non-integer value"})
	}
	return ToInt(v.ref)
}

// Bytes returns the wrapped blob's payload. Panics if Kind is not
// KindBlobValue.
func (v Value) Bytes() []byte {
	if v.Kind() != KindBlobValue {
		panic(&ProgramError{Msg: "Value.Bytes on non-blob value"})
	}
	return v.h.BlobBytes(v.ref)
}

// Tag returns the wrapped object's domain tag. Panics if Kind is
// KindNil or KindInt.
func (v Value) Tag() int {
	if v.Kind() == KindNil || v.Kind() == KindInt {
		panic(&ProgramError{Msg: "Value.Tag on nil or immediate value"})
	}
	return v.h.Tag(v.ref)
}

// Len returns the wrapped object's field or byte count. Panics if Kind
// is KindNil or KindInt.
func (v Value) Len() int {
	if v.Kind() == KindNil || v.Kind() == KindInt {
		panic(&ProgramError{Msg: "Value.Len on nil or immediate value"})
	}
	return v.h.Len(v.ref)
}

// Field returns the i-th field of a wrapped record, itself wrapped.
// Panics if Kind is not KindRecordValue.
func (v Value) Field(i int) Value {
	if v.Kind() != KindRecordValue {
		panic(&ProgramError{Msg: "Value.Field on non-record value"})
	}
	return Value{h: v.h, ref: v.h.Field(v.ref, i)}
}
