package avlstore

import (
	"fmt"

	"github.com/michael9422/avl-file/internal/diskfs"
)

// Handle is one open reference to an avlstore file. A Handle is not safe
// for concurrent use from multiple goroutines unless Options.Threaded was
// set, per spec §4.1/§5: without it, callers are expected to serialize
// their own access to a single Handle the way a bare *os.File would
// require.
type Handle struct {
	fsys diskfs.FS
	f    diskfs.File
	fd   int

	arena *arena

	keyCount int
	dataLen  int
	recLen   int
	compare  CompareFunc
	threaded bool

	regEntry *registryEntry
	id       fileIdentity

	cursorOff uint64
	lastErr   string
	closed    bool
}

// withTxn acquires the gate (and, if Threaded, the in-process mutex),
// refreshes the high-water mark from the file's current size (another
// handle may have grown or truncated it), loads the header, runs fn
// against a fresh txn, and flushes on success.
// Any error from fn or from flush is recorded for LastError and returned.
func (h *Handle) withTxn(fn func(t *txn) error) error {
	if h.threaded {
		h.regEntry.mu.Lock()
		defer h.regEntry.mu.Unlock()
	}

	if h.closed {
		return ErrClosed
	}

	if err := gateLock(h.fd); err != nil {
		h.lastErr = err.Error()
		return err
	}
	defer gateUnlock(h.fd)

	fi, err := h.f.Stat()
	if err != nil {
		err = fmt.Errorf("%w: stat: %v", ErrCorrupt, err)
		h.lastErr = err.Error()
		return err
	}
	h.arena.hw = fi.Size()

	hdrBuf := make([]byte, headerSize(h.keyCount))
	if err := h.arena.read(0, hdrBuf); err != nil {
		h.lastErr = err.Error()
		return err
	}
	hdr := decodeHeader(hdrBuf, h.keyCount)

	t := newTxn(h.arena, hdr, h.keyCount, h.dataLen, h.recLen)

	if err := fn(t); err != nil {
		h.lastErr = err.Error()
		return err
	}

	if err := t.flush(); err != nil {
		h.lastErr = err.Error()
		return err
	}

	return nil
}

func (h *Handle) checkKey(key int) error {
	if key < 0 || key >= h.keyCount {
		return fmt.Errorf("%w: key %d out of range [0,%d)", ErrInvalidArgument, key, h.keyCount)
	}
	return nil
}

func (h *Handle) checkBuf(buf []byte) error {
	if len(buf) != h.dataLen {
		return fmt.Errorf("%w: buf length %d, DataLen is %d", ErrInvalidArgument, len(buf), h.dataLen)
	}
	return nil
}

// Close releases this handle's cursor slot and underlying file. Close is
// idempotent.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}

	releaseErr := h.withTxn(func(t *txn) error {
		return t.releaseCursor(h.cursorOff)
	})

	_ = cursorSlotUnlock(h.fd, int64(h.cursorOff), int64(h.recLen))

	closeErr := h.f.Close()
	releaseRegistryEntry(h.id)
	h.closed = true

	if releaseErr != nil {
		return releaseErr
	}
	return closeErr
}

// GetNum atomically increments the file's NextNumber counter and returns
// the new value, letting the host synthesise unique primary keys
// independent of where records actually land in the file (spec §4.8).
// N consecutive calls return N consecutive strictly increasing values.
func (h *Handle) GetNum() (int64, error) {
	var n int64
	err := h.withTxn(func(t *txn) error {
		t.h.nextNumber++
		n = t.h.nextNumber
		return nil
	})
	return n, err
}

// Lock blocks until the caller-visible advisory lock is held.
func (h *Handle) Lock() error {
	if err := userLockBlocking(h.fd); err != nil {
		h.lastErr = err.Error()
		return err
	}
	return nil
}

// Unlock releases the caller-visible advisory lock.
func (h *Handle) Unlock() error {
	if err := userUnlock(h.fd); err != nil {
		h.lastErr = err.Error()
		return err
	}
	return nil
}

// LastError returns the message of the most recent error this handle
// produced, or the empty string. It is a per-handle diagnostic string,
// not an error value: callers should still check the error returned from
// the operation itself.
func (h *Handle) LastError() string {
	return h.lastErr
}
