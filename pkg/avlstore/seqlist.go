package avlstore

// seqlist maintains the doubly linked, insertion-order chain threaded
// through every live slot's PrevSeq/NextSeq fields. New records are
// prepended, so ReadSeq walks most-recently-inserted first (spec §4.2).

func (t *txn) seqPrepend(off uint64) error {
	sv, err := t.slot(off)
	if err != nil {
		return err
	}

	oldHead := t.h.headSeq
	sv.setPrevSeq(0)
	sv.setNextSeq(oldHead)

	if oldHead != 0 {
		head, err := t.slot(oldHead)
		if err != nil {
			return err
		}
		head.setPrevSeq(off)
	}

	t.h.headSeq = off
	return nil
}

// seqUnlink splices off out of the sequential list.
func (t *txn) seqUnlink(off uint64) error {
	sv, err := t.slot(off)
	if err != nil {
		return err
	}

	prevOff := sv.prevSeq()
	nextOff := sv.nextSeq()

	if prevOff != 0 {
		prev, err := t.slot(prevOff)
		if err != nil {
			return err
		}
		prev.setNextSeq(nextOff)
	} else {
		t.h.headSeq = nextOff
	}

	if nextOff != 0 {
		next, err := t.slot(nextOff)
		if err != nil {
			return err
		}
		next.setPrevSeq(prevOff)
	}

	return nil
}
