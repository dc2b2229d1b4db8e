package jobs

import (
	"fmt"
	"io"

	"github.com/carbocation/pfx"
	"github.com/minio/blake2b-simd"
)

// HashContent fingerprints an upload with BLAKE2b-256, returned as uppercase
// hex. Two submissions of the same bytes share a fingerprint regardless of
// filename.
func HashContent(r io.Reader) (string, error) {
	h, err := blake2b.New(&blake2b.Config{Size: 32})
	if err != nil {
		return "", pfx.Err(err)
	}

	if _, err := io.Copy(h, r); err != nil {
		return "", pfx.Err(err)
	}

	return fmt.Sprintf("%X", h.Sum(nil)), nil
}
