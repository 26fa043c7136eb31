package avlstore

import "fmt"

// txn is the transaction-scoped working set for a single public operation:
// the decoded header plus every slot touched so far, held in memory and
// mutated in place. flush is the only point at which bytes travel back to
// the arena, matching spec §1's data-flow description (acquire the gate,
// read the header, perform mutations against the in-memory structures,
// write the header back, release the gate).
type txn struct {
	a        *arena
	h        *header
	keyCount int
	dataLen  int
	recLen   int

	dirty map[uint64][]byte // slot offset -> owned buffer
}

func newTxn(a *arena, h *header, keyCount, dataLen, recLen int) *txn {
	return &txn{
		a:        a,
		h:        h,
		keyCount: keyCount,
		dataLen:  dataLen,
		recLen:   recLen,
		dirty:    make(map[uint64][]byte),
	}
}

// slot returns a view over the slot at off, loading it from the arena on
// first touch and caching the owned buffer for the rest of the
// transaction. Mutations through the returned slotView are visible to
// every later call to slot with the same offset, and are written back by
// flush.
func (t *txn) slot(off uint64) (slotView, error) {
	if buf, ok := t.dirty[off]; ok {
		return newSlotView(buf, t.keyCount), nil
	}

	buf := make([]byte, t.recLen)
	if err := t.a.read(int64(off), buf); err != nil {
		return slotView{}, err
	}

	t.dirty[off] = buf
	return newSlotView(buf, t.keyCount), nil
}

// newSlot allocates a fresh slot: popped from the free list if one is
// available, otherwise appended to the arena (spec §4.3).
func (t *txn) newSlot() (uint64, slotView, error) {
	if t.h.headEmpty != 0 {
		off := t.h.headEmpty
		sv, err := t.slot(off)
		if err != nil {
			return 0, slotView{}, err
		}
		if sv.kind() != slotFree {
			return 0, slotView{}, fmt.Errorf("%w: free-list head %d is not a free slot", ErrCorrupt, off)
		}
		t.h.headEmpty = sv.freeNext()
		return off, sv, nil
	}

	buf := make([]byte, t.recLen)
	off, err := t.a.append(buf)
	if err != nil {
		return 0, slotView{}, err
	}

	t.dirty[uint64(off)] = buf
	return uint64(off), newSlotView(buf, t.keyCount), nil
}

// freeSlot pushes off onto the head of the free list.
func (t *txn) freeSlot(off uint64) error {
	sv, err := t.slot(off)
	if err != nil {
		return err
	}

	sv.setKindFree()
	sv.setFreeNext(t.h.headEmpty)
	t.h.headEmpty = off

	return nil
}

// flush writes every dirtied slot and the header back to the arena, in
// offset order so repeated runs are easier to reason about under the
// fault injector.
func (t *txn) flush() error {
	offs := make([]uint64, 0, len(t.dirty))
	for off := range t.dirty {
		offs = append(offs, off)
	}
	sortUint64s(offs)

	for _, off := range offs {
		if err := t.a.write(int64(off), t.dirty[off]); err != nil {
			return err
		}
	}

	return t.a.write(0, encodeHeader(t.h))
}

func sortUint64s(s []uint64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
