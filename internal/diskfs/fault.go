package diskfs

import (
	"os"
	"sync/atomic"
)

// Fault wraps an [FS] and injects a failure into the Nth I/O call made
// through any file it opens, for exercising avlstore's fatal-corruption
// path (spec §7: "an I/O primitive returning short or failing").
//
// This is a deliberately small stand-in for the teacher's much larger
// Chaos/Crash fault-injection framework, which modeled mmap/msync
// durability windows that don't exist in avlstore's plain Seek+Read/Write
// arena; see DESIGN.md.
type Fault struct {
	inner FS

	// FailAfter is the 1-indexed call number (across all wrapped files'
	// Read/Write/Seek calls) that should fail. 0 disables injection.
	FailAfter int64

	calls atomic.Int64
}

// NewFault wraps inner with fault injection disabled (FailAfter == 0).
func NewFault(inner FS) *Fault {
	return &Fault{inner: inner}
}

func (c *Fault) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	f, err := c.inner.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &faultFile{File: f, owner: c}, nil
}

func (c *Fault) Stat(path string) (os.FileInfo, error) { return c.inner.Stat(path) }
func (c *Fault) Remove(path string) error               { return c.inner.Remove(path) }

// errInjectedFault is returned in place of the real I/O error once the
// configured call count is reached.
var errInjectedFault = os.ErrClosed

func (c *Fault) shouldFail() bool {
	if c.FailAfter <= 0 {
		return false
	}

	n := c.calls.Add(1)

	return n == c.FailAfter
}

type faultFile struct {
	File
	owner *Fault
}

func (f *faultFile) Read(p []byte) (int, error) {
	if f.owner.shouldFail() {
		return 0, errInjectedFault
	}

	return f.File.Read(p)
}

func (f *faultFile) Write(p []byte) (int, error) {
	if f.owner.shouldFail() {
		return 0, errInjectedFault
	}

	return f.File.Write(p)
}

func (f *faultFile) Seek(offset int64, whence int) (int64, error) {
	if f.owner.shouldFail() {
		return 0, errInjectedFault
	}

	return f.File.Seek(offset, whence)
}

var _ FS = (*Fault)(nil)
