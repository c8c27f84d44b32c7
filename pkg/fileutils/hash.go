package fileutils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

const hashBufferSize = 8 << 20

var hashBuffers = sync.Pool{
	New: func() any {
		b := make([]byte, hashBufferSize)
		return &b
	},
}

// HashFile streams the file at path through sha256 and returns the hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	buf := hashBuffers.Get().(*[]byte)
	defer hashBuffers.Put(buf)

	h := sha256.New()
	// Hide the file's WriterTo so the pooled buffer is actually used.
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{f}, *buf); err != nil {
		return "", errors.WithStack(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
