package avlstore

import "fmt"

// cursor.go manages the registry of cursor slots threaded through
// HeadCursor (spec §4.2, §4.5). A cursor slot is allocated once per open
// [Handle] and holds, per key, two independent offsets set by
// Find/StartLT/StartGE and consumed by Prev and Next (the record each
// will yield next; see slot.go), plus a sequential-read position for
// StartSeq/ReadSeq.
//
// Slot reuse favors reclaiming a cursor abandoned by a crashed or killed
// process over growing the file: every cursor slot is covered by its own
// byte-range lock for the lifetime of the owning handle, so a
// non-blocking probe of that range distinguishes "still open somewhere"
// from "owner is gone" without any explicit heartbeat.

// registerCursor allocates a cursor slot for a new handle, preferring to
// steal one whose owning process no longer holds its slot lock.
func (t *txn) registerCursor(fd int, pid int32) (uint64, error) {
	cur := t.h.headCursor
	for cur != 0 {
		sv, err := t.slot(cur)
		if err != nil {
			return 0, err
		}
		next := sv.cursorListNext()

		if sv.kind() == slotCursor {
			if err := cursorSlotLockTry(fd, int64(cur), int64(t.recLen)); err == nil {
				sv.setCursorPID(pid)
				sv.setCursorReadSeq(0)
				for k := 0; k < t.keyCount; k++ {
					sv.setCursorLeft(k, 0)
					sv.setCursorRight(k, 0)
				}
				return cur, nil
			}
		}

		cur = next
	}

	off, sv, err := t.newSlot()
	if err != nil {
		return 0, err
	}

	sv.setKindCursor()
	sv.setCursorPID(pid)
	sv.setCursorReadSeq(0)
	sv.setCursorListNext(t.h.headCursor)
	t.h.headCursor = off

	if err := cursorSlotLockTry(fd, int64(off), int64(t.recLen)); err != nil {
		return 0, err
	}

	return off, nil
}

// cursorUnlink splices off out of the singly linked cursor list.
func (t *txn) cursorUnlink(off uint64) error {
	if t.h.headCursor == off {
		sv, err := t.slot(off)
		if err != nil {
			return err
		}
		t.h.headCursor = sv.cursorListNext()
		return nil
	}

	cur := t.h.headCursor
	for cur != 0 {
		sv, err := t.slot(cur)
		if err != nil {
			return err
		}
		next := sv.cursorListNext()
		if next == off {
			ns, err := t.slot(off)
			if err != nil {
				return err
			}
			sv.setCursorListNext(ns.cursorListNext())
			return nil
		}
		cur = next
	}

	return fmt.Errorf("%w: cursor slot %d is not linked into the cursor list", ErrCorrupt, off)
}

// releaseCursor unlinks and frees a cursor slot on handle close.
func (t *txn) releaseCursor(off uint64) error {
	if err := t.cursorUnlink(off); err != nil {
		return err
	}
	return t.freeSlot(off)
}

// repointCursorsOnDelete updates every cursor (this handle's own
// included) whose next-to-yield position names delOff, for every key —
// computed before delOff is spliced out of any tree (spec §4.5). A
// cursor's Left channel (fed to Prev) is only ever replaced by delOff's
// predecessor, and its Right channel (fed to Next) only ever by delOff's
// successor: the two channels are independent, so repointing one never
// disturbs where the other will resume. A sequential-read position that
// names delOff moves on to delOff's successor in the sequential list.
func (t *txn) repointCursorsOnDelete(delOff uint64) error {
	pred := make([]uint64, t.keyCount)
	succ := make([]uint64, t.keyCount)
	for k := 0; k < t.keyCount; k++ {
		if p, ok, err := t.prev(k, delOff); err != nil {
			return err
		} else if ok {
			pred[k] = p
		}
		if n, ok, err := t.next(k, delOff); err != nil {
			return err
		} else if ok {
			succ[k] = n
		}
	}

	ds, err := t.slot(delOff)
	if err != nil {
		return err
	}
	seqNext := ds.nextSeq()

	cur := t.h.headCursor
	for cur != 0 {
		sv, err := t.slot(cur)
		if err != nil {
			return err
		}
		if sv.cursorReadSeq() == delOff {
			sv.setCursorReadSeq(seqNext)
		}
		for k := 0; k < t.keyCount; k++ {
			if sv.cursorLeft(k) == delOff {
				sv.setCursorLeft(k, pred[k])
			}
			if sv.cursorRight(k) == delOff {
				sv.setCursorRight(k, succ[k])
			}
		}
		cur = sv.cursorListNext()
	}

	return nil
}
