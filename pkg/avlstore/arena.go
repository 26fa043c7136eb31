package avlstore

import (
	"fmt"
	"io"

	"github.com/michael9422/avl-file/internal/diskfs"
)

// arena exposes bounded read/write by absolute offset over the single
// backing file. Any read or write strictly past the current high-water
// mark is a fatal corruption signal, as is any I/O error (spec §4.1, §7).
//
// The high-water mark is cached: append extends it, truncate shrinks the
// file and then lowers it, and withTxn (handle.go) resets it from the OS
// file size at the start of every transaction, since another handle may
// have changed the file's length in between.
type arena struct {
	f  diskfs.File
	hw int64 // high-water mark: bytes currently in logical use
}

// read fills buf from the file at off. off+len(buf) must not exceed the
// high-water mark.
func (a *arena) read(off int64, buf []byte) error {
	if off < 0 || off+int64(len(buf)) > a.hw {
		return fmt.Errorf("%w: read [%d,%d) past high-water mark %d", ErrCorrupt, off, off+int64(len(buf)), a.hw)
	}

	if _, err := a.f.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek: %v", ErrCorrupt, err)
	}

	n, err := io.ReadFull(a.f, buf)
	if err != nil || n != len(buf) {
		return fmt.Errorf("%w: short read at %d: %v", ErrCorrupt, off, err)
	}

	return nil
}

// write stores buf at off. off+len(buf) must not exceed the high-water mark;
// use append to extend it.
func (a *arena) write(off int64, buf []byte) error {
	if off < 0 || off+int64(len(buf)) > a.hw {
		return fmt.Errorf("%w: write [%d,%d) past high-water mark %d", ErrCorrupt, off, off+int64(len(buf)), a.hw)
	}

	if _, err := a.f.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek: %v", ErrCorrupt, err)
	}

	n, err := a.f.Write(buf)
	if err != nil || n != len(buf) {
		return fmt.Errorf("%w: short write at %d: %v", ErrCorrupt, off, err)
	}

	return nil
}

// append writes buf at the current high-water mark and extends it,
// returning the offset buf was written at.
func (a *arena) append(buf []byte) (int64, error) {
	off := a.hw

	if _, err := a.f.Seek(off, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: seek: %v", ErrCorrupt, err)
	}

	n, err := a.f.Write(buf)
	if err != nil || n != len(buf) {
		return 0, fmt.Errorf("%w: short append write at %d: %v", ErrCorrupt, off, err)
	}

	a.hw += int64(len(buf))

	return off, nil
}

// truncate shrinks the high-water mark and the underlying file to size.
// size must not exceed the current high-water mark.
func (a *arena) truncate(size int64) error {
	if size > a.hw {
		return fmt.Errorf("%w: truncate(%d) exceeds high-water mark %d", ErrCorrupt, size, a.hw)
	}

	if err := a.f.Truncate(size); err != nil {
		return fmt.Errorf("%w: truncate: %v", ErrCorrupt, err)
	}

	a.hw = size

	return nil
}
