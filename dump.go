// Structured introspection: a read-only JSON view of a heap's object
// graph, for debugging a corrupted or surprising store. Not part of
// the bit-exact on-disk format — purely a diagnostic rendering, in the
// same spirit as jpl-au-folio's JSON-lines records but produced
// on-demand instead of being the storage format itself.
package ss

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// DumpNode is the JSON shape of a single object in a Dump tree.
type DumpNode struct {
	Kind   string     `json:"kind"` // "nil", "int", "blob", "record"
	Int    int32      `json:"int,omitempty"`
	Tag    int        `json:"tag,omitempty"`
	Bytes  []byte     `json:"bytes,omitempty"`
	Fields []DumpNode `json:"fields,omitempty"`
}

// DumpReport is the top-level JSON document Dump writes.
type DumpReport struct {
	Path      string   `json:"path"`
	Stat      Stat      `json:"stat"`
	Algorithm int      `json:"algorithm"`
	Root      DumpNode `json:"root"`
}

// Dump renders the heap's root and its full reachable object graph as
// indented JSON. Intended for interactive debugging, not for parsing
// by other tools — cmd/ssdump is its CLI front-end.
func (h *Heap) Dump(w io.Writer) error {
	report := DumpReport{
		Path:      h.Path(),
		Stat:      h.Stat(),
		Algorithm: h.Algorithm(),
		Root:      dumpValue(Wrap(h, h.GetRoot())),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	return nil
}

func dumpValue(v Value) DumpNode {
	switch v.Kind() {
	case KindNil:
		return DumpNode{Kind: "nil"}
	case KindInt:
		return DumpNode{Kind: "int", Int: v.Int()}
	case KindBlobValue:
		return DumpNode{Kind: "blob", Tag: v.Tag(), Bytes: v.Bytes()}
	default:
		n := v.Len()
		fields := make([]DumpNode, n)
		for i := 0; i < n; i++ {
			fields[i] = dumpValue(v.Field(i))
		}
		return DumpNode{Kind: "record", Tag: v.Tag(), Fields: fields}
	}
}
