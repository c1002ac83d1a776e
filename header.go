// Binary file header: the first 32 bytes of every heap file, bit-exact
// per the on-disk format (magic, format version, used_bytes, root,
// reserved). See heap.go for how the header is read at Open and
// rewritten at Commit.
package ss

import "encoding/binary"

// HeaderSize is the fixed size of the file header in bytes.
const HeaderSize = 32

// Magic identifies a dpm object store heap file.
const Magic uint32 = 0xB5C0BEEF

// FormatVersion is the only on-disk format version this store writes.
const FormatVersion uint32 = 1

// Byte offsets within the 32-byte header.
const (
	offMagic     = 0
	offVersion   = 4
	offUsedBytes = 8
	offRoot      = 12
	offReserved  = 16 // 16 bytes, of which byte 0 carries Config.HashAlgorithm
)

// fileHeader is the decoded form of the 32-byte on-disk header.
type fileHeader struct {
	Magic     uint32
	Version   uint32
	UsedBytes uint32
	Root      Ref
	Algorithm int // stored in reserved[0]; 0 hashes as AlgFNV1a (hashBytes's fallback)
}

func decodeFileHeader(buf []byte) (fileHeader, error) {
	if len(buf) < HeaderSize {
		return fileHeader{}, ErrFormatError
	}
	h := fileHeader{
		Magic:     binary.LittleEndian.Uint32(buf[offMagic:]),
		Version:   binary.LittleEndian.Uint32(buf[offVersion:]),
		UsedBytes: binary.LittleEndian.Uint32(buf[offUsedBytes:]),
		Root:      Ref(binary.LittleEndian.Uint32(buf[offRoot:])),
		Algorithm: int(buf[offReserved]),
	}
	if h.Magic != Magic {
		return fileHeader{}, ErrFormatError
	}
	if h.Version != FormatVersion {
		return fileHeader{}, ErrFormatError
	}
	return h, nil
}

func (h fileHeader) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[offMagic:], Magic)
	binary.LittleEndian.PutUint32(buf[offVersion:], FormatVersion)
	binary.LittleEndian.PutUint32(buf[offUsedBytes:], h.UsedBytes)
	binary.LittleEndian.PutUint32(buf[offRoot:], uint32(h.Root))
	buf[offReserved] = byte(h.Algorithm)
	// remaining reserved bytes are already zero
	return buf
}
