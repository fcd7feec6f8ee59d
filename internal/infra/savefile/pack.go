package savefile

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"

	"github.com/idle-bit/idlebit/internal/domain"
)

// ─── Packed Blobs ───────────────────────────────────────────────────────────
// The save store keeps snapshots as lz4-compressed JSON next to a BLAKE3
// digest of the uncompressed JSON.

// Pack compresses a snapshot and returns the blob with its hex digest.
func Pack(data domain.SaveData) (blob []byte, digest string, err error) {
	b, err := Marshal(data)
	if err != nil {
		return nil, "", fmt.Errorf("pack: %w", err)
	}

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, "", fmt.Errorf("pack: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("pack: compress: %w", err)
	}
	return buf.Bytes(), Digest(b), nil
}

// Unpack decompresses a blob, verifies digest, and decodes the snapshot.
func Unpack(blob []byte, digest string) (domain.SaveData, error) {
	b, err := io.ReadAll(lz4.NewReader(bytes.NewReader(blob)))
	if err != nil {
		return domain.SaveData{}, fmt.Errorf("unpack: %w: %v", domain.ErrSaveCorrupted, err)
	}
	if got := Digest(b); got != digest {
		return domain.SaveData{}, fmt.Errorf("unpack: %w: digest %s, want %s", domain.ErrSaveCorrupted, got, digest)
	}
	return Unmarshal(b)
}

// Digest returns the hex BLAKE3-256 digest of b.
func Digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}
