package avlstore

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Byte offsets of the two independent advisory locks within the arena
// file (spec §4.1, §5). gateByte backs every mutating/most-reading
// operation; userLockByte backs the caller-visible Lock/Unlock pair and
// never blocks the gate.
const (
	gateByte     = 0
	userLockByte = 1
)

// byteRangeLock acquires or releases an advisory lock on [off, off+length)
// of fd using fcntl F_OFD_SETLK(W).
//
// Open file description (OFD) locks, rather than classic whole-process
// F_SETLK locks, are used deliberately: F_OFD_* locks are associated with
// the open file description (one per [Open] call), not the calling
// process, so a second handle opened by the *same* process on the same
// file correctly contends with the first one, and a non-blocking probe
// from this process never spuriously reports "unlocked" just because this
// process already holds it elsewhere (spec §9's flagged caveat about
// test-lock not reporting the caller's own locks is specific to classic
// F_SETLK/fcntl(F_GETLK) semantics and does not apply to OFD locks).
func byteRangeLock(fd int, off, length int64, lockType int16, blocking bool) error {
	lk := unix.Flock_t{
		Type:   lockType,
		Whence: 0, // SEEK_SET
		Start:  off,
		Len:    length,
	}

	cmd := unix.F_OFD_SETLK
	if blocking {
		cmd = unix.F_OFD_SETLKW
	}

	for {
		err := unix.FcntlFlock(uintptr(fd), cmd, &lk)
		if err == nil {
			return nil
		}

		if errors.Is(err, unix.EINTR) {
			continue
		}

		if !blocking && (errors.Is(err, unix.EACCES) || errors.Is(err, unix.EAGAIN)) {
			return ErrBusy
		}

		return fmt.Errorf("fcntl lock: %w", err)
	}
}

// gateLock blocks until the gate byte is exclusively locked.
func gateLock(fd int) error {
	return byteRangeLock(fd, gateByte, 1, unix.F_WRLCK, true)
}

func gateUnlock(fd int) error {
	return byteRangeLock(fd, gateByte, 1, unix.F_UNLCK, true)
}

// userLockTry attempts, without blocking, to acquire the user-visible lock.
func userLockTry(fd int) error {
	return byteRangeLock(fd, userLockByte, 1, unix.F_WRLCK, false)
}

func userLockBlocking(fd int) error {
	return byteRangeLock(fd, userLockByte, 1, unix.F_WRLCK, true)
}

func userUnlock(fd int) error {
	return byteRangeLock(fd, userLockByte, 1, unix.F_UNLCK, true)
}

// cursorSlotLock exclusively locks the byte range of the cursor slot at
// off for length bytes (RecordLen), for the lifetime of the open handle
// (spec §4.2).
func cursorSlotLockTry(fd int, off, length int64) error {
	return byteRangeLock(fd, off, length, unix.F_WRLCK, false)
}

func cursorSlotUnlock(fd int, off, length int64) error {
	return byteRangeLock(fd, off, length, unix.F_UNLCK, true)
}
