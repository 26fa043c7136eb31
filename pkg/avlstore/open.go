package avlstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/michael9422/avl-file/internal/diskfs"
)

// Options configures [Open].
type Options struct {
	// Path is the file to open, created if it does not already exist.
	Path string

	// KeyCount is the number of independent orderings (AVL trees) records
	// are indexed by. Must be >= 1. Fixed for the life of the file: an
	// existing file opened with a different KeyCount is ErrIncompatible.
	KeyCount int

	// DataLen is the payload size in bytes for every record. Fixed for
	// the life of the file, same compatibility rule as KeyCount.
	DataLen int

	// Compare orders two payloads under a given key index. Required.
	Compare CompareFunc

	// Threaded enables an in-process mutex shared by every Handle open on
	// the same file within this process (spec §5), for callers sharing a
	// single Handle across goroutines. When false (the default) the
	// caller is responsible for serializing its own use of the Handle,
	// the same as with a bare *os.File.
	Threaded bool

	// fsys overrides the filesystem implementation; nil means the real
	// one. The field is unexported, so callers outside this package always
	// get the real filesystem.
	fsys diskfs.FS
}

// Open opens or creates an avlstore file according to opts, returning a
// ready-to-use [Handle]. The returned Handle owns its own cursor slot;
// callers must call [Handle.Close] when done.
func Open(opts Options) (*Handle, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: Path is required", ErrInvalidArgument)
	}
	if opts.KeyCount < 1 {
		return nil, fmt.Errorf("%w: KeyCount must be >= 1", ErrInvalidArgument)
	}
	if opts.DataLen < 0 {
		return nil, fmt.Errorf("%w: DataLen must be >= 0", ErrInvalidArgument)
	}
	if opts.Compare == nil {
		return nil, fmt.Errorf("%w: Compare is required", ErrInvalidArgument)
	}

	fsys := opts.fsys
	if fsys == nil {
		fsys = diskfs.NewReal()
	}

	f, err := fsys.OpenFile(opts.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Path, err)
	}

	recLen, err := loadOrInitHeader(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat: %v", ErrCorrupt, err)
	}

	a := &arena{f: f, hw: fi.Size()}

	id, err := fileIdentityOf(fi)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	entry := getOrCreateRegistryEntry(id)

	h := &Handle{
		fsys:     fsys,
		f:        f,
		fd:       int(f.Fd()),
		arena:    a,
		keyCount: opts.KeyCount,
		dataLen:  opts.DataLen,
		recLen:   recLen,
		compare:  opts.Compare,
		threaded: opts.Threaded,
		regEntry: entry,
		id:       id,
	}

	if err := h.withTxn(func(t *txn) error {
		off, err := t.registerCursor(h.fd, int32(os.Getpid()))
		if err != nil {
			return err
		}
		h.cursorOff = off
		return nil
	}); err != nil {
		releaseRegistryEntry(id)
		_ = f.Close()
		return nil, err
	}

	return h, nil
}

// loadOrInitHeader writes a fresh header for an empty file, or reads and
// validates an existing one against opts. It returns the file's RecordLen.
func loadOrInitHeader(f diskfs.File, opts Options) (int, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat: %v", ErrCorrupt, err)
	}

	recLen := recordLen(opts.KeyCount, opts.DataLen)

	if fi.Size() == 0 {
		hdr := &header{
			keyCount:  uint32(opts.KeyCount),
			dataLen:   uint32(opts.DataLen),
			recordLen: uint32(recLen),
			roots:     make([]uint64, opts.KeyCount),
		}

		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return 0, fmt.Errorf("%w: seek: %v", ErrCorrupt, err)
		}
		if _, err := f.Write(encodeHeader(hdr)); err != nil {
			return 0, fmt.Errorf("%w: write header: %v", ErrCorrupt, err)
		}
		if err := f.Sync(); err != nil {
			return 0, fmt.Errorf("%w: sync: %v", ErrCorrupt, err)
		}

		return recLen, nil
	}

	fixed := make([]byte, headerFixedSize)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: seek: %v", ErrCorrupt, err)
	}
	if _, err := io.ReadFull(f, fixed); err != nil {
		return 0, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	if !bytes.Equal(fixed[offMagic:offMagic+8], magic[:]) {
		return 0, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}

	existingKeyCount := int(byteOrder.Uint32(fixed[offKeyCount:]))
	if existingKeyCount < 1 {
		return 0, fmt.Errorf("%w: stored KeyCount %d is invalid", ErrCorrupt, existingKeyCount)
	}

	rest := make([]byte, headerSize(existingKeyCount)-headerFixedSize)
	if _, err := io.ReadFull(f, rest); err != nil {
		return 0, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}

	all := append(fixed, rest...)
	hdr := decodeHeader(all, existingKeyCount)

	if int(hdr.keyCount) != opts.KeyCount || int(hdr.dataLen) != opts.DataLen {
		return 0, fmt.Errorf("%w: file has KeyCount=%d DataLen=%d, opened with KeyCount=%d DataLen=%d",
			ErrIncompatible, hdr.keyCount, hdr.dataLen, opts.KeyCount, opts.DataLen)
	}
	if int(hdr.recordLen) != recLen {
		return 0, fmt.Errorf("%w: file has RecordLen=%d, expected %d", ErrIncompatible, hdr.recordLen, recLen)
	}

	return int(hdr.recordLen), nil
}

func fileIdentityOf(fi os.FileInfo) (fileIdentity, error) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fileIdentity{}, fmt.Errorf("%w: file identity requires a syscall.Stat_t-backed FileInfo", ErrInvalidArgument)
	}
	return fileIdentity{dev: uint64(st.Dev), ino: st.Ino}, nil
}
