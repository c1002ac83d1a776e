//go:build unix || linux || darwin

// mmap(2) implementation for Unix platforms, mirroring the LazyDLL
// shape of lock_windows.go on the other side of the same build-tag
// split: one file per OS, same set of functions, no shared interface
// type since there's exactly one implementation active per build.
package ss

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func msync(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return unix.Msync(mem, unix.MS_SYNC)
}

// mmapFile maps the first size bytes of f. size must already match
// the file's length (callers grow the file before calling this).
func mmapFile(f *os.File, size int, writable bool) ([]byte, error) {
	prot := syscall.PROT_READ
	if writable {
		prot |= syscall.PROT_WRITE
	}
	mem, err := syscall.Mmap(int(f.Fd()), 0, size, prot, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %w", ErrIOError, err)
	}
	return mem, nil
}

// isOutOfMemory reports whether err reflects the OS itself refusing to
// back a mapping — mmap's ENOMEM, not a transient or caller-fixable
// I/O failure. grow() treats this as unrecoverable, per the
// dpm_xmalloc abort-on-OOM taxonomy case spec §7 describes.
func isOutOfMemory(err error) bool {
	return errors.Is(err, syscall.ENOMEM)
}

// munmapFile releases a mapping obtained from mmapFile.
func munmapFile(mem []byte) error {
	if mem == nil {
		return nil
	}
	if err := syscall.Munmap(mem); err != nil {
		return fmt.Errorf("%w: munmap: %v", ErrIOError, err)
	}
	return nil
}

// growFile truncates f to newSize. Growing a sparse file is
// instantaneous on every platform Go supports; the new region reads
// as zero until written, which is exactly the bump allocator's
// expectation.
func growFile(f *os.File, newSize int64) error {
	if err := f.Truncate(newSize); err != nil {
		return fmt.Errorf("%w: truncate: %v", ErrIOError, err)
	}
	return nil
}

// syncFile flushes both the mapping and the file's own metadata to
// stable storage.
func syncFile(f *os.File, mem []byte) error {
	if err := msync(mem); err != nil {
		return fmt.Errorf("%w: msync: %v", ErrIOError, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: fsync: %v", ErrIOError, err)
	}
	return nil
}
