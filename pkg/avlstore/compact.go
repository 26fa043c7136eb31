package avlstore

import "fmt"

// compact.go implements Squash (spec §4.6): free the slots held by
// cursors whose owning process is gone, then repeatedly relocate the
// highest-addressed live record down into the lowest-addressed free
// slot, rewriting every pointer that named the old address, and
// truncate the file behind it. Compaction stops the moment it can no
// longer make progress — another handle's active cursor slot at the tail
// blocks truncation past it (this handle's own cursor slot is relocated
// like a live record), and an empty free list blocks further migration —
// rather than erroring, since a partially compacted file is still
// perfectly valid.

// squash performs one full compaction pass. ownCursorOff is this
// handle's own cursor slot, excluded from abandonment reaping. It
// returns the handle's cursor slot offset, which changes if squash
// relocates it (spec §4.7 step 2).
func (t *txn) squash(fd int, ownCursorOff uint64, cmp CompareFunc) (uint64, error) {
	if err := t.reapAbandonedCursors(fd, ownCursorOff); err != nil {
		return ownCursorOff, err
	}

	base := uint64(headerSize(t.keyCount))

	for {
		if uint64(t.a.hw) <= base {
			return ownCursorOff, nil
		}
		highest := uint64(t.a.hw) - uint64(t.recLen)

		hsv, err := t.slot(highest)
		if err != nil {
			return ownCursorOff, err
		}

		switch {
		case hsv.kind() == slotFree:
			if err := t.removeFromFreeList(highest); err != nil {
				return ownCursorOff, err
			}
			if err := t.a.truncate(int64(highest)); err != nil {
				return ownCursorOff, err
			}
			delete(t.dirty, highest)

		case hsv.kind() == slotCursor && highest == ownCursorOff:
			lowest, err := t.lowestFreeSlot()
			if err != nil {
				return ownCursorOff, err
			}
			if lowest == 0 || lowest >= highest {
				return ownCursorOff, nil
			}
			if err := t.removeFromFreeList(lowest); err != nil {
				return ownCursorOff, err
			}
			if err := t.migrateCursorSlot(fd, highest, lowest); err != nil {
				return ownCursorOff, err
			}
			if err := t.a.truncate(int64(highest)); err != nil {
				return ownCursorOff, err
			}
			delete(t.dirty, highest)
			ownCursorOff = lowest

		case hsv.kind() == slotCursor:
			// A foreign opener's cursor slot: its byte-range lock is
			// pinned to this offset and it has no way to learn of a
			// move, so it blocks further compaction.
			return ownCursorOff, nil

		default: // slotLive
			lowest, err := t.lowestFreeSlot()
			if err != nil {
				return ownCursorOff, err
			}
			if lowest == 0 || lowest >= highest {
				return ownCursorOff, nil
			}
			if err := t.removeFromFreeList(lowest); err != nil {
				return ownCursorOff, err
			}
			if err := t.migrateLiveSlot(highest, lowest, cmp); err != nil {
				return ownCursorOff, err
			}
			if err := t.a.truncate(int64(highest)); err != nil {
				return ownCursorOff, err
			}
			delete(t.dirty, highest)
		}
	}
}

// migrateCursorSlot relocates this handle's own cursor slot from oldOff
// to newOff: splice the cursor list, re-acquire the byte-range lock at
// the new offset, and copy the slot's bytes across (spec §4.7 step 2).
// Unlike a live record, a cursor slot carries no tree/sequential-list
// references that point *into* it from elsewhere except the singly
// linked cursor list itself.
func (t *txn) migrateCursorSlot(fd int, oldOff, newOff uint64) error {
	oldSlot, err := t.slot(oldOff)
	if err != nil {
		return err
	}
	oldBuf := append([]byte(nil), oldSlot.buf...)

	if t.h.headCursor == oldOff {
		t.h.headCursor = newOff
	} else {
		cur := t.h.headCursor
		for cur != 0 {
			sv, err := t.slot(cur)
			if err != nil {
				return err
			}
			next := sv.cursorListNext()
			if next == oldOff {
				sv.setCursorListNext(newOff)
				break
			}
			cur = next
		}
	}

	if err := cursorSlotUnlock(fd, int64(oldOff), int64(t.recLen)); err != nil {
		return err
	}
	if err := cursorSlotLockTry(fd, int64(newOff), int64(t.recLen)); err != nil {
		return fmt.Errorf("%w: re-lock relocated cursor slot: %v", ErrCorrupt, err)
	}

	newSlot, err := t.slot(newOff)
	if err != nil {
		return err
	}
	copy(newSlot.buf, oldBuf)

	return nil
}

// reapAbandonedCursors frees every cursor slot whose byte-range lock is
// no longer held by anyone, other than skipOff.
func (t *txn) reapAbandonedCursors(fd int, skipOff uint64) error {
	cur := t.h.headCursor
	for cur != 0 {
		sv, err := t.slot(cur)
		if err != nil {
			return err
		}
		next := sv.cursorListNext()

		if cur != skipOff {
			if err := cursorSlotLockTry(fd, int64(cur), int64(t.recLen)); err == nil {
				_ = cursorSlotUnlock(fd, int64(cur), int64(t.recLen))
				if err := t.releaseCursor(cur); err != nil {
					return err
				}
			}
		}

		cur = next
	}
	return nil
}

func (t *txn) lowestFreeSlot() (uint64, error) {
	var lowest uint64
	cur := t.h.headEmpty
	for cur != 0 {
		if lowest == 0 || cur < lowest {
			lowest = cur
		}
		sv, err := t.slot(cur)
		if err != nil {
			return 0, err
		}
		cur = sv.freeNext()
	}
	return lowest, nil
}

func (t *txn) removeFromFreeList(off uint64) error {
	if t.h.headEmpty == off {
		sv, err := t.slot(off)
		if err != nil {
			return err
		}
		t.h.headEmpty = sv.freeNext()
		return nil
	}

	cur := t.h.headEmpty
	for cur != 0 {
		sv, err := t.slot(cur)
		if err != nil {
			return err
		}
		next := sv.freeNext()
		if next == off {
			os, err := t.slot(off)
			if err != nil {
				return err
			}
			sv.setFreeNext(os.freeNext())
			return nil
		}
		cur = next
	}

	return fmt.Errorf("%w: free slot %d is not linked into the free list", ErrCorrupt, off)
}

// migrateLiveSlot relocates the live record at oldOff to newOff (a
// just-vacated free slot), rewriting every tree, sequential-list and
// cursor reference that named oldOff.
func (t *txn) migrateLiveSlot(oldOff, newOff uint64, cmp CompareFunc) error {
	oldSlot, err := t.slot(oldOff)
	if err != nil {
		return err
	}
	oldBuf := append([]byte(nil), oldSlot.buf...)
	oldView := newSlotView(oldBuf, t.keyCount)
	payload := append([]byte(nil), oldView.payload()...)

	for k := 0; k < t.keyCount; k++ {
		path, found, err := t.locate(k, oldOff, payload, cmp)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: key %d: slot %d is not linked into its tree during squash", ErrCorrupt, k, oldOff)
		}

		if len(path) == 0 {
			t.h.roots[k] = newOff
		} else if err := t.relink(k, path[len(path)-1], newOff); err != nil {
			return err
		}

		if predOff, ok, err := t.prev(k, oldOff); err != nil {
			return err
		} else if ok {
			ps, err := t.slot(predOff)
			if err != nil {
				return err
			}
			if r := ps.right(k); r.kind == linkThread && r.off == oldOff {
				ps.setRight(k, threadLink(newOff))
			}
		}

		if succOff, ok, err := t.next(k, oldOff); err != nil {
			return err
		} else if ok {
			ss, err := t.slot(succOff)
			if err != nil {
				return err
			}
			if l := ss.left(k); l.kind == linkThread && l.off == oldOff {
				ss.setLeft(k, threadLink(newOff))
			}
		}
	}

	prevOff := oldView.prevSeq()
	nextOff := oldView.nextSeq()
	if prevOff != 0 {
		ps, err := t.slot(prevOff)
		if err != nil {
			return err
		}
		ps.setNextSeq(newOff)
	} else if t.h.headSeq == oldOff {
		t.h.headSeq = newOff
	}
	if nextOff != 0 {
		ns, err := t.slot(nextOff)
		if err != nil {
			return err
		}
		ns.setPrevSeq(newOff)
	}

	cur := t.h.headCursor
	for cur != 0 {
		cs, err := t.slot(cur)
		if err != nil {
			return err
		}
		if cs.cursorReadSeq() == oldOff {
			cs.setCursorReadSeq(newOff)
		}
		for k := 0; k < t.keyCount; k++ {
			if cs.cursorLeft(k) == oldOff {
				cs.setCursorLeft(k, newOff)
			}
			if cs.cursorRight(k) == oldOff {
				cs.setCursorRight(k, newOff)
			}
		}
		cur = cs.cursorListNext()
	}

	newSlot, err := t.slot(newOff)
	if err != nil {
		return err
	}
	copy(newSlot.buf, oldBuf)

	return nil
}
