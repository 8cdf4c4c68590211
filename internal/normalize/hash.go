package normalize

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilesHash computes a hex-encoded SHA-256 over the base name and contents
// of each file in order. It fingerprints a dataset directory.
func FilesHash(paths ...string) (string, error) {
	h := sha256.New()
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open file for hash: %w", err)
		}
		h.Write([]byte(filepath.Base(path)))
		h.Write([]byte{0})
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", path, err)
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// NamesHash computes a stable SHA-256 over an ordered list of names,
// separated by NUL bytes so that ["ab","c"] and ["a","bc"] differ.
func NamesHash(names []string) string {
	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
