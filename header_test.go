// Binary header encode/decode tests: round-trip fidelity and rejection
// of bad magic/version, mirroring jpl-au-folio's header_test.go shape
// for its own fixed-layout header.
package ss

import (
	"encoding/binary"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := fileHeader{
		Magic:     Magic,
		Version:   FormatVersion,
		UsedBytes: 12345,
		Root:      refFromOffset(HeaderSize),
		Algorithm: AlgBlake2b,
	}

	buf := h.encode()
	if len(buf) != HeaderSize {
		t.Fatalf("encode length = %d, want %d", len(buf), HeaderSize)
	}

	got, err := decodeFileHeader(buf)
	if err != nil {
		t.Fatalf("decodeFileHeader: %v", err)
	}
	if got != h {
		t.Errorf("decoded header = %+v, want %+v", got, h)
	}
}

func TestHeaderRejectsBadMagic(t *testing.T) {
	buf := fileHeader{Magic: Magic, Version: FormatVersion}.encode()
	binary.LittleEndian.PutUint32(buf[offMagic:], 0xDEADBEEF)
	if _, err := decodeFileHeader(buf); err != ErrFormatError {
		t.Errorf("decodeFileHeader(bad magic) = %v, want ErrFormatError", err)
	}
}

func TestHeaderRejectsBadVersion(t *testing.T) {
	buf := fileHeader{Magic: Magic, Version: FormatVersion}.encode()
	binary.LittleEndian.PutUint32(buf[offVersion:], 99)
	if _, err := decodeFileHeader(buf); err != ErrFormatError {
		t.Errorf("decodeFileHeader(bad version) = %v, want ErrFormatError", err)
	}
}

func TestHeaderRejectsShortBuffer(t *testing.T) {
	if _, err := decodeFileHeader(make([]byte, HeaderSize-1)); err != ErrFormatError {
		t.Errorf("decodeFileHeader(short buffer) = %v, want ErrFormatError", err)
	}
}

func TestHeaderConstants(t *testing.T) {
	if Magic != 0xB5C0BEEF {
		t.Errorf("Magic = %#x, want 0xB5C0BEEF", uint32(Magic))
	}
	if HeaderSize != 32 {
		t.Errorf("HeaderSize = %d, want 32", HeaderSize)
	}
	if FormatVersion != 1 {
		t.Errorf("FormatVersion = %d, want 1", FormatVersion)
	}
}
