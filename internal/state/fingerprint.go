package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// fingerprintBlockSize is the read block size used while hashing.
// Files are streamed so hashing never loads a whole file into memory.
const fingerprintBlockSize = 8192

// Fingerprint computes the hex-encoded SHA-256 digest of the reader's bytes.
func Fingerprint(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, fingerprintBlockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintFile computes the content fingerprint of a file on disk.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return Fingerprint(f)
}

// FingerprintBytes computes the fingerprint of an in-memory byte slice.
// Used by tests and by callers that already hold the content.
func FingerprintBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
