// Forensic retention for GC-retired heap files, adapted from
// jpl-au-folio's compress.go: the same shared zstd encoder (allocated
// once, SpeedFastest — archival runs on the GC's swap path, not a hot
// request path, but the heap can be large so encode speed still
// matters more than ratio) without the ascii85 layer, since the output
// here is a standalone file rather than a value embedded in JSON.
package ss

import (
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
)

var archiveEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))

// writeArchive compresses data (the about-to-be-replaced contents of
// path) into a sibling "<path>.<unix-ms>.gc.zst". Used by GC when
// Config.ArchiveReplacedHeaps is set, instead of letting the retired
// file vanish in the atomic swap.
func writeArchive(path string, data []byte) error {
	compressed := archiveEncoder.EncodeAll(data, nil)
	dst := fmt.Sprintf("%s.%d.gc.zst", path, time.Now().UnixMilli())
	if err := os.WriteFile(dst, compressed, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIOError, err)
	}
	return nil
}
