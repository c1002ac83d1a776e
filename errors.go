// Package ss implements the persistent object store underlying a
// Debian-style package manager's database: a single-writer, mmap-backed
// heap of immutable typed records and blobs, a compacting garbage
// collector, and two persistent data structures (an interning table and
// a dictionary) built on a shared HAMT.
package ss

import (
	"errors"
	"fmt"
	"os"
)

// Sentinel errors returned by heap, table, and dict operations. Each
// maps to one taxonomy case from the store's error design: callers use
// errors.Is against these, never string matching, to decide how to
// recover.
var (
	// ErrIOError wraps a failed file open/read/write/fsync.
	ErrIOError = errors.New("i/o error")

	// ErrLockError is returned when a writer cannot acquire the
	// exclusive file lock because another writer already holds it.
	ErrLockError = errors.New("can't lock heap file")

	// ErrFormatError is returned when a heap file's magic, version, or
	// recorded size is not recognized.
	ErrFormatError = errors.New("bad heap format")

	// ErrOutOfSpace is returned when the arena cannot be grown further.
	// Callers typically run GC and retry, or abort the builder.
	ErrOutOfSpace = errors.New("heap out of space")

	// ErrSchemaError is returned when a dynamic value does not match an
	// expected structural shape, including calling Set on a WeakSets
	// dict or Add on a Strong/WeakKeys one (see DESIGN.md Open
	// Question 2).
	ErrSchemaError = errors.New("value does not match expected schema")

	// ErrClosed is returned when operating on a Table or Dict builder
	// that has already been finished or aborted.
	ErrClosed = errors.New("heap is closed")
)

// ProgramError signals a violated invariant: a bad reference, an
// out-of-range field index, or similar caller error. These are fatal in
// the sense that the store makes no attempt to recover meaningful
// state — they are raised with panic so a test (or a caller-established
// Scope, see scope.go) can still observe them, but production code
// should treat a recovered ProgramError as a bug, not a retryable
// condition.
type ProgramError struct {
	Msg string
}

func (e *ProgramError) Error() string {
	return "program error: " + e.Msg
}

// fatal reports an unrecoverable allocation failure and terminates the
// process. Called only when the OS itself refuses to give back pages
// for the mmap'd region — there is no heap state left to preserve.
func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "Out of memory.")
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
