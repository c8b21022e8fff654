package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// TeeSHA256 hashes everything written through it while forwarding the bytes to w
type TeeSHA256 struct {
	w io.Writer
	h hash.Hash
}

// NewTeeSHA256 wraps w
func NewTeeSHA256(w io.Writer) *TeeSHA256 {
	return &TeeSHA256{w: w, h: sha256.New()}
}

func (t *TeeSHA256) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	t.h.Write(p[:n])
	return n, err
}

// Sum returns the hex digest of the bytes written so far
func (t *TeeSHA256) Sum() string {
	return hex.EncodeToString(t.h.Sum(nil))
}

// CalculateFileSHA256 hashes a file already on disk, e.g. one found from an earlier run
func CalculateFileSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: opening '%s': %w", ErrFilesystem, filePath, err)
	}
	defer file.Close()

	tee := NewTeeSHA256(io.Discard)
	if _, err := io.Copy(tee, file); err != nil {
		return "", fmt.Errorf("%w: reading '%s': %w", ErrFilesystem, filePath, err)
	}
	return tee.Sum(), nil
}
