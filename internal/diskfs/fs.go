// Package diskfs provides filesystem abstractions for the avlstore arena.
//
// The main types are:
//   - [FS]: interface for filesystem operations
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os]
//   - [Fault]: testing implementation that injects I/O failures, used to
//     exercise avlstore's fatal-corruption path (spec §7: "an I/O primitive
//     returning short or failing" is a corruption signal)
package diskfs

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File]. The intent is os-like behavior:
// implementations must behave like [os.File], including that [File.Fd]
// returns a valid OS file descriptor usable with syscalls (for example
// [golang.org/x/sys/unix.FcntlFlock]) until the file is closed.
//
// avlstore's arena reads and writes through a single file position via
// Seek+Read/Write rather than ReadAt/WriteAt, because the in-process mutex
// that serializes threads sharing one handle exists precisely to protect
// that shared position (spec §5).
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Truncate changes the size of the file. See [os.File.Truncate].
	Truncate(size int64) error

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error
}

// FS defines the filesystem operations avlstore needs.
//
// Implementations:
//   - [Real]: production use, wraps [os]
//   - [Fault]: testing use, injects failures on selected calls
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Remove deletes a file. See [os.Remove].
	Remove(path string) error
}

// Compile-time interface check.
var _ File = (*os.File)(nil)
