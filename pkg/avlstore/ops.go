package avlstore

import (
	"bytes"
	"fmt"
)

// ops.go implements the public record operations. Every one of them
// acquires the gate for its entire duration via [Handle.withTxn], so two
// operations from different handles (in this process or another) never
// interleave (spec §4.1).

// Insert adds a new record holding buf, linking it into every key's tree
// and onto the head of the sequential list.
func (h *Handle) Insert(buf []byte) error {
	if err := h.checkBuf(buf); err != nil {
		return err
	}

	return h.withTxn(func(t *txn) error {
		off, sv, err := t.newSlot()
		if err != nil {
			return err
		}
		copy(sv.payload(), buf)

		for k := 0; k < t.keyCount; k++ {
			if err := t.avlInsert(k, off, h.compare); err != nil {
				return err
			}
		}
		if err := t.seqPrepend(off); err != nil {
			return err
		}

		t.h.liveCount++
		t.h.nextNumber++
		return nil
	})
}

// Update finds the record whose every key compares equal to buf and
// overwrites its payload with buf. Key 0 duplicates are disambiguated the
// same way Delete does: a record only qualifies if every other key also
// compares equal, since changing an indexed field in place would corrupt
// that key's tree without a full delete-and-reinsert.
func (h *Handle) Update(buf []byte) error {
	if err := h.checkBuf(buf); err != nil {
		return err
	}

	return h.withTxn(func(t *txn) error {
		off, err := h.findUpdateTarget(t, buf)
		if err != nil {
			return err
		}

		sv, err := t.slot(off)
		if err != nil {
			return err
		}
		copy(sv.payload(), buf)
		return nil
	})
}

// findUpdateTarget locates the slot whose value compares equal to buf
// under every key, among the run of records comparing equal to buf under
// key 0 — the same duplicate-disambiguation shape as findExact, but
// matching on every key's comparator rather than on exact payload bytes.
func (h *Handle) findUpdateTarget(t *txn, buf []byte) (uint64, error) {
	matches := func(off uint64) (bool, error) {
		sv, err := t.slot(off)
		if err != nil {
			return false, err
		}
		for k := 1; k < t.keyCount; k++ {
			if h.compare(k, buf, sv.payload()) != 0 {
				return false, nil
			}
		}
		return true, nil
	}

	off, ok, err := t.find(0, buf, h.compare)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}
	if ok, err := matches(off); err != nil {
		return 0, err
	} else if ok {
		return off, nil
	}

	cur := off
	for {
		n, ok, err := t.next(0, cur)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		sv, err := t.slot(n)
		if err != nil {
			return 0, err
		}
		if h.compare(0, buf, sv.payload()) != 0 {
			break
		}
		if m, err := matches(n); err != nil {
			return 0, err
		} else if m {
			return n, nil
		}
		cur = n
	}

	cur = off
	for {
		p, ok, err := t.prev(0, cur)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		sv, err := t.slot(p)
		if err != nil {
			return 0, err
		}
		if h.compare(0, buf, sv.payload()) != 0 {
			break
		}
		if m, err := matches(p); err != nil {
			return 0, err
		} else if m {
			return p, nil
		}
		cur = p
	}

	return 0, ErrNotFound
}

// Delete removes the record whose payload exactly equals buf. If several
// records compare equal to buf under key 0, the cluster of duplicates is
// searched for the one with a byte-identical payload.
func (h *Handle) Delete(buf []byte) error {
	if err := h.checkBuf(buf); err != nil {
		return err
	}

	return h.withTxn(func(t *txn) error {
		off, err := h.findExact(t, buf)
		if err != nil {
			return err
		}

		if err := t.repointCursorsOnDelete(off); err != nil {
			return err
		}

		sv, err := t.slot(off)
		if err != nil {
			return err
		}
		payload := append([]byte(nil), sv.payload()...)

		for k := 0; k < t.keyCount; k++ {
			if err := t.avlDelete(k, off, payload, h.compare); err != nil {
				return err
			}
		}
		if err := t.seqUnlink(off); err != nil {
			return err
		}
		if err := t.freeSlot(off); err != nil {
			return err
		}

		t.h.liveCount--
		return nil
	})
}

// findExact locates the slot whose full payload equals buf, among the run
// of records comparing equal to buf under key 0.
func (h *Handle) findExact(t *txn, buf []byte) (uint64, error) {
	off, ok, err := t.find(0, buf, h.compare)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}

	cur := off
	for {
		sv, err := t.slot(cur)
		if err != nil {
			return 0, err
		}
		if bytes.Equal(sv.payload(), buf) {
			return cur, nil
		}
		if h.compare(0, buf, sv.payload()) != 0 {
			break
		}
		n, ok, err := t.next(0, cur)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		cur = n
	}

	cur = off
	for {
		p, ok, err := t.prev(0, cur)
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		sv, err := t.slot(p)
		if err != nil {
			return 0, err
		}
		if h.compare(0, buf, sv.payload()) != 0 {
			break
		}
		if bytes.Equal(sv.payload(), buf) {
			return p, nil
		}
		cur = p
	}

	return 0, ErrNotFound
}

// Find searches for a record comparing equal to buf under key, filling
// buf with its full payload and positioning the handle's cursor for key
// there on success.
func (h *Handle) Find(buf []byte, key int) (bool, error) {
	if err := h.checkKey(key); err != nil {
		return false, err
	}
	if err := h.checkBuf(buf); err != nil {
		return false, err
	}

	return h.seekAndFill(buf, key, func(t *txn) (uint64, bool, error) {
		return t.find(key, buf, h.compare)
	})
}

// StartGE positions the handle's cursor for key at the leftmost record
// whose value is >= buf, filling buf with it on success.
func (h *Handle) StartGE(buf []byte, key int) (bool, error) {
	if err := h.checkKey(key); err != nil {
		return false, err
	}
	if err := h.checkBuf(buf); err != nil {
		return false, err
	}

	return h.seekAndFill(buf, key, func(t *txn) (uint64, bool, error) {
		return t.startGE(key, buf, h.compare)
	})
}

// StartLT positions the handle's cursor for key at the rightmost record
// whose value is < buf, filling buf with it on success.
func (h *Handle) StartLT(buf []byte, key int) (bool, error) {
	if err := h.checkKey(key); err != nil {
		return false, err
	}
	if err := h.checkBuf(buf); err != nil {
		return false, err
	}

	return h.seekAndFill(buf, key, func(t *txn) (uint64, bool, error) {
		return t.startLT(key, buf, h.compare)
	})
}

// seekAndFill runs fn to locate a record, then primes the handle's
// cursor for key with that record's (predecessor, successor) pair: Left
// feeds the next Prev() call, Right feeds the next Next() call (spec
// §3/§4.9). The two channels are independent from this point on, so a
// Next() after this seek never disturbs what a following Prev() yields.
func (h *Handle) seekAndFill(buf []byte, key int, fn func(t *txn) (uint64, bool, error)) (bool, error) {
	var found bool
	err := h.withTxn(func(t *txn) error {
		off, ok, err := fn(t)
		if err != nil {
			return err
		}

		cs, err := t.slot(h.cursorOff)
		if err != nil {
			return err
		}
		if !ok {
			cs.setCursorLeft(key, 0)
			cs.setCursorRight(key, 0)
			return nil
		}

		sv, err := t.slot(off)
		if err != nil {
			return err
		}
		copy(buf, sv.payload())

		pred, predOK, err := t.prev(key, off)
		if err != nil {
			return err
		}
		if !predOK {
			pred = 0
		}
		succ, succOK, err := t.next(key, off)
		if err != nil {
			return err
		}
		if !succOK {
			succ = 0
		}
		cs.setCursorLeft(key, pred)
		cs.setCursorRight(key, succ)

		found = true
		return nil
	})
	return found, err
}

// Next yields the record held in the handle's Right channel for key,
// filling buf and advancing Right to that record's own successor. The
// handle must already be positioned via Find/StartGE/StartLT. Next never
// touches the Left channel, so a Prev afterwards still resumes from the
// original seek point, not from Next's new position.
func (h *Handle) Next(buf []byte, key int) (bool, error) {
	if err := h.checkKey(key); err != nil {
		return false, err
	}
	if err := h.checkBuf(buf); err != nil {
		return false, err
	}

	var found bool
	err := h.withTxn(func(t *txn) error {
		cs, err := t.slot(h.cursorOff)
		if err != nil {
			return err
		}
		cur := cs.cursorRight(key)
		if cur == 0 {
			return nil
		}

		sv, err := t.slot(cur)
		if err != nil {
			return err
		}
		copy(buf, sv.payload())

		next, ok, err := t.next(key, cur)
		if err != nil {
			return err
		}
		if !ok {
			next = 0
		}
		cs.setCursorRight(key, next)

		found = true
		return nil
	})
	return found, err
}

// Prev is the mirror of Next, driven by the Left channel.
func (h *Handle) Prev(buf []byte, key int) (bool, error) {
	if err := h.checkKey(key); err != nil {
		return false, err
	}
	if err := h.checkBuf(buf); err != nil {
		return false, err
	}

	var found bool
	err := h.withTxn(func(t *txn) error {
		cs, err := t.slot(h.cursorOff)
		if err != nil {
			return err
		}
		cur := cs.cursorLeft(key)
		if cur == 0 {
			return nil
		}

		sv, err := t.slot(cur)
		if err != nil {
			return err
		}
		copy(buf, sv.payload())

		prev, ok, err := t.prev(key, cur)
		if err != nil {
			return err
		}
		if !ok {
			prev = 0
		}
		cs.setCursorLeft(key, prev)

		found = true
		return nil
	})
	return found, err
}

// StartSeq resets the handle's sequential-read position to the most
// recently inserted live record.
func (h *Handle) StartSeq() error {
	return h.withTxn(func(t *txn) error {
		cs, err := t.slot(h.cursorOff)
		if err != nil {
			return err
		}
		cs.setCursorReadSeq(t.h.headSeq)
		return nil
	})
}

// ReadSeq fills buf with the record at the handle's current sequential
// position and advances it, walking most-recently-inserted first.
func (h *Handle) ReadSeq(buf []byte) (bool, error) {
	if err := h.checkBuf(buf); err != nil {
		return false, err
	}

	var found bool
	err := h.withTxn(func(t *txn) error {
		cs, err := t.slot(h.cursorOff)
		if err != nil {
			return err
		}
		cur := cs.cursorReadSeq()
		if cur == 0 {
			return nil
		}

		sv, err := t.slot(cur)
		if err != nil {
			return err
		}
		copy(buf, sv.payload())
		cs.setCursorReadSeq(sv.nextSeq())
		found = true
		return nil
	})
	return found, err
}

// Squash compacts the file: it reaps cursor slots whose owning process is
// gone and relocates live records to close gaps left by deletes,
// truncating the file where possible.
func (h *Handle) Squash() error {
	return h.withTxn(func(t *txn) error {
		newOff, err := t.squash(h.fd, h.cursorOff, h.compare)
		if err != nil {
			return err
		}
		h.cursorOff = newOff
		return nil
	})
}

// ScanReport holds the result of walking one key's tree with [Handle.Scan].
type ScanReport struct {
	// LiveCount is the number of nodes found in the tree.
	LiveCount int64

	// Height is the tree's height (0 for an empty tree, 1 for a single node).
	Height int

	// Balanced is true only if no inconsistency was found.
	Balanced bool

	// Errors describes every inconsistency found: out-of-order payloads,
	// balance factors that don't match actual subtree heights, or a node
	// count that disagrees with the file's LiveCount.
	Errors []string
}

// Scan walks the key-th tree end to end, verifying in-order ordering and
// every stored balance factor against the actual subtree heights, and
// returns the tree's height. It is a read-only diagnostic: it still
// acquires the gate, for a consistent snapshot.
func (h *Handle) Scan(key int, out *ScanReport) (int, error) {
	if err := h.checkKey(key); err != nil {
		return 0, err
	}

	var height int
	err := h.withTxn(func(t *txn) error {
		*out = ScanReport{}
		var count int64
		var lastPayload []byte
		haveLast := false

		var walk func(off uint64) (int, error)
		walk = func(off uint64) (int, error) {
			if off == 0 {
				return 0, nil
			}
			sv, err := t.slot(off)
			if err != nil {
				return 0, err
			}

			var leftH, rightH int
			if l := sv.left(key); l.kind == linkChild {
				leftH, err = walk(l.off)
				if err != nil {
					return 0, err
				}
			}

			count++
			p := append([]byte(nil), sv.payload()...)
			if haveLast && h.compare(key, lastPayload, p) > 0 {
				out.Errors = append(out.Errors, fmt.Sprintf("key %d: payload at slot %d is out of order", key, off))
			}
			lastPayload = p
			haveLast = true

			if r := sv.right(key); r.kind == linkChild {
				rightH, err = walk(r.off)
				if err != nil {
					return 0, err
				}
			}

			want := int8(rightH - leftH)
			if want != sv.balance(key) {
				out.Errors = append(out.Errors, fmt.Sprintf("key %d: slot %d balance is %d, expected %d", key, off, sv.balance(key), want))
			}

			hh := leftH
			if rightH > hh {
				hh = rightH
			}
			return hh + 1, nil
		}

		hh, err := walk(t.h.roots[key])
		if err != nil {
			return err
		}

		height = hh
		out.Height = hh
		out.LiveCount = count
		if count != t.h.liveCount {
			out.Errors = append(out.Errors, fmt.Sprintf("key %d: tree holds %d nodes, LiveCount is %d", key, count, t.h.liveCount))
		}
		out.Balanced = len(out.Errors) == 0

		return nil
	})

	return height, err
}
