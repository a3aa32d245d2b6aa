package util

import (
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// NewPassID returns a unique identifier for an indexing pass.
func NewPassID() string {
	return uuid.NewString()
}

// HashReader returns the xxhash64 of everything read from r.
func HashReader(r io.Reader) (uint64, error) {
	d := xxhash.New()
	if _, err := io.Copy(d, r); err != nil {
		return 0, err
	}
	return d.Sum64(), nil
}

// HashFile returns the xxhash64 of the file contents.
func HashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return HashReader(f)
}
