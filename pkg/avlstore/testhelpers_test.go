package avlstore_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/michael9422/avl-file/pkg/avlstore"
)

// byteCompare is the simplest possible CompareFunc: lexicographic byte
// comparison under every key. Tests that need per-key orderings build
// their own.
func byteCompare(_ int, a, b []byte) int {
	return bytes.Compare(a, b)
}

// record builds a fixed-length payload, left-padding n as a big-endian
// prefix and filling the remainder with fill.
func record(t *testing.T, dataLen int, n byte, fill byte) []byte {
	t.Helper()
	buf := make([]byte, dataLen)
	if dataLen > 0 {
		buf[0] = n
	}
	for i := 1; i < dataLen; i++ {
		buf[i] = fill
	}
	return buf
}

func mustOpen(t *testing.T, opts avlstore.Options) *avlstore.Handle {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "test.avl")
	}
	h, err := avlstore.Open(opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}
