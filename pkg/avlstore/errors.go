package avlstore

import "errors"

// Sentinel errors returned by avlstore operations.
//
// Callers should classify errors with [errors.Is].
var (
	// ErrNotFound indicates the requested record does not exist, or that
	// iteration is exhausted. Non-fatal.
	ErrNotFound = errors.New("avlstore: not found")

	// ErrInvalidArgument indicates a bad key index or mismatched open options.
	// Non-fatal.
	ErrInvalidArgument = errors.New("avlstore: invalid argument")

	// ErrFull indicates a record count or allocation would overflow.
	// Non-fatal.
	ErrFull = errors.New("avlstore: full")

	// ErrIncompatible indicates an existing file's KeyCount/DataLen/RecordLen
	// does not match the options passed to Open. Non-fatal.
	ErrIncompatible = errors.New("avlstore: incompatible file")

	// ErrClosed indicates the handle has already been closed.
	ErrClosed = errors.New("avlstore: closed")

	// ErrBusy indicates a non-blocking lock acquisition would block.
	ErrBusy = errors.New("avlstore: busy")

	// ErrCorrupt is the fatal-corruption class of error (spec §7): an
	// offset past the file end, an impossible balance byte, a scan
	// invariant mismatch, or a short/failed I/O primitive. The Handle
	// keeps no poisoned state after ErrCorrupt: each later call runs
	// against the file as it then is, and may succeed or fail on its own.
	ErrCorrupt = errors.New("avlstore: corrupt")
)
