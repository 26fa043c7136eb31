package avlstore

import "fmt"

// avl.go implements the classical threaded-AVL algorithms described in
// spec §4.4: per-key insert, delete, find and boundary seeks, all over the
// slot arena addressed through a txn. Every tree is independent: a record
// occupies one slot but participates in KeyCount separate trees, one per
// index, each with its own root, balance factors and thread pointers
// living in that key's node within the slot.
//
// Rotations and retrace are written once and shared between insert and
// delete by tagging each step of the walk from a leaf back to the root
// with the direction taken, exactly mirroring how the on-disk thread
// pointers themselves only ever mean "go this way to find the next
// in-order node" (spec §9).

// pathStep records one step of a root-to-node walk: the ancestor's offset
// and whether the walk continued via its left child.
type pathStep struct {
	off      uint64
	wentLeft bool
}

// avlInsert adds newOff as a fresh node into the key-th tree. newOff's
// payload must already be written, since comparisons read through it.
func (t *txn) avlInsert(key int, newOff uint64, cmp CompareFunc) error {
	newSlot, err := t.slot(newOff)
	if err != nil {
		return err
	}

	root := t.h.roots[key]
	if root == 0 {
		newSlot.setBalance(key, 0)
		newSlot.setLeft(key, nilLink())
		newSlot.setRight(key, nilLink())
		t.h.roots[key] = newOff
		return nil
	}

	newPayload := append([]byte(nil), newSlot.payload()...)

	var path []pathStep
	cur := root
	var wentLeft bool

	for {
		curSlot, err := t.slot(cur)
		if err != nil {
			return err
		}

		c := cmp(key, newPayload, curSlot.payload())
		if c < 0 {
			wentLeft = true
			l := curSlot.left(key)
			if l.kind == linkChild {
				path = append(path, pathStep{cur, true})
				cur = l.off
				continue
			}
			newSlot.setLeft(key, l)
			newSlot.setRight(key, threadLink(cur))
			curSlot.setLeft(key, childLink(newOff))
		} else {
			// Equal keys are always inserted to the right of existing
			// ones, so Find and the sequential thread walk see later
			// inserts later among a run of duplicates.
			wentLeft = false
			r := curSlot.right(key)
			if r.kind == linkChild {
				path = append(path, pathStep{cur, false})
				cur = r.off
				continue
			}
			newSlot.setRight(key, r)
			newSlot.setLeft(key, threadLink(cur))
			curSlot.setRight(key, childLink(newOff))
		}
		break
	}

	newSlot.setBalance(key, 0)
	path = append(path, pathStep{cur, wentLeft})

	return t.retraceInsert(key, path)
}

// retraceInsert walks path bottom-up after a leaf insertion, updating
// balance factors and rotating at the first node that goes out of
// balance. A single rotation always fully absorbs the height increase, so
// the walk stops there.
func (t *txn) retraceInsert(key int, path []pathStep) error {
	for i := len(path) - 1; i >= 0; i-- {
		p := path[i].off
		ps, err := t.slot(p)
		if err != nil {
			return err
		}

		if path[i].wentLeft {
			ps.setBalance(key, ps.balance(key)-1)
		} else {
			ps.setBalance(key, ps.balance(key)+1)
		}

		bal := ps.balance(key)
		switch bal {
		case 0:
			return nil // subtree height unchanged above this point
		case -2, 2:
			newRoot, err := t.rebalance(key, p)
			if err != nil {
				return err
			}
			if i == 0 {
				t.h.roots[key] = newRoot
			} else {
				if err := t.relink(key, path[i-1], newRoot); err != nil {
					return err
				}
			}
			return nil
		}
		// bal == ±1: height increased by one, keep propagating up.
	}
	return nil
}

func (t *txn) relink(key int, parent pathStep, childOff uint64) error {
	ps, err := t.slot(parent.off)
	if err != nil {
		return err
	}
	if parent.wentLeft {
		ps.setLeft(key, childLink(childOff))
	} else {
		ps.setRight(key, childLink(childOff))
	}
	return nil
}

// rotateRight lifts p's left child into p's place. p is returned's new
// right child. If the lifted node had no right child, p's left link is
// left empty and becomes a thread to the lifted node, which is p's
// in-order predecessor. The caller relinks p's parent to the returned node.
func (t *txn) rotateRight(key int, p uint64) (uint64, error) {
	ps, err := t.slot(p)
	if err != nil {
		return 0, err
	}
	lOff := ps.left(key).off
	ls, err := t.slot(lOff)
	if err != nil {
		return 0, err
	}

	lRight := ls.right(key)
	if lRight.kind == linkChild {
		ps.setLeft(key, lRight)
	} else {
		ps.setLeft(key, threadLink(lOff))
	}
	ls.setRight(key, childLink(p))

	return lOff, nil
}

// rotateLeft is the mirror of rotateRight: an emptied right link of p
// becomes a thread to the lifted node, p's in-order successor.
func (t *txn) rotateLeft(key int, p uint64) (uint64, error) {
	ps, err := t.slot(p)
	if err != nil {
		return 0, err
	}
	rOff := ps.right(key).off
	rs, err := t.slot(rOff)
	if err != nil {
		return 0, err
	}

	rLeft := rs.left(key)
	if rLeft.kind == linkChild {
		ps.setRight(key, rLeft)
	} else {
		ps.setRight(key, threadLink(rOff))
	}
	rs.setLeft(key, childLink(p))

	return rOff, nil
}

// rebalance restores the AVL property at p, whose balance factor is
// exactly ±2, by a single or double rotation, and returns the offset of
// the node now occupying p's former position.
func (t *txn) rebalance(key int, p uint64) (uint64, error) {
	ps, err := t.slot(p)
	if err != nil {
		return 0, err
	}

	if ps.balance(key) < 0 {
		lOff := ps.left(key).off
		ls, err := t.slot(lOff)
		if err != nil {
			return 0, err
		}

		if ls.balance(key) <= 0 {
			// Left-Left case.
			lBal := ls.balance(key)
			newRoot, err := t.rotateRight(key, p)
			if err != nil {
				return 0, err
			}
			if lBal == 0 {
				ps.setBalance(key, -1)
				ls.setBalance(key, 1)
			} else {
				ps.setBalance(key, 0)
				ls.setBalance(key, 0)
			}
			return newRoot, nil
		}

		// Left-Right case.
		rOff := ls.right(key).off
		rs, err := t.slot(rOff)
		if err != nil {
			return 0, err
		}
		rBal := rs.balance(key)

		if _, err := t.rotateLeft(key, lOff); err != nil {
			return 0, err
		}
		ps.setLeft(key, childLink(rOff))
		newRoot, err := t.rotateRight(key, p)
		if err != nil {
			return 0, err
		}

		switch {
		case rBal < 0:
			ps.setBalance(key, 1)
			ls.setBalance(key, 0)
		case rBal > 0:
			ps.setBalance(key, 0)
			ls.setBalance(key, -1)
		default:
			ps.setBalance(key, 0)
			ls.setBalance(key, 0)
		}
		rs.setBalance(key, 0)
		return newRoot, nil
	}

	// Mirror image: p.balance > 0.
	rOff := ps.right(key).off
	rs, err := t.slot(rOff)
	if err != nil {
		return 0, err
	}

	if rs.balance(key) >= 0 {
		// Right-Right case.
		rBal := rs.balance(key)
		newRoot, err := t.rotateLeft(key, p)
		if err != nil {
			return 0, err
		}
		if rBal == 0 {
			ps.setBalance(key, 1)
			rs.setBalance(key, -1)
		} else {
			ps.setBalance(key, 0)
			rs.setBalance(key, 0)
		}
		return newRoot, nil
	}

	// Right-Left case.
	lOff := rs.left(key).off
	ls, err := t.slot(lOff)
	if err != nil {
		return 0, err
	}
	lBal := ls.balance(key)

	if _, err := t.rotateRight(key, rOff); err != nil {
		return 0, err
	}
	ps.setRight(key, childLink(lOff))
	newRoot, err := t.rotateLeft(key, p)
	if err != nil {
		return 0, err
	}

	switch {
	case lBal > 0:
		ps.setBalance(key, -1)
		rs.setBalance(key, 0)
	case lBal < 0:
		ps.setBalance(key, 0)
		rs.setBalance(key, 1)
	default:
		ps.setBalance(key, 0)
		rs.setBalance(key, 0)
	}
	ls.setBalance(key, 0)
	return newRoot, nil
}

// locate finds targetOff within the key-th tree by payload comparison,
// returning the path of ancestors from the root down to (but excluding)
// targetOff. Ties are explored right-first, mirroring insertion order,
// then left, since rotations can otherwise scatter a run of duplicates on
// either side of an ancestor.
func (t *txn) locate(key int, targetOff uint64, payload []byte, cmp CompareFunc) ([]pathStep, bool, error) {
	root := t.h.roots[key]
	if root == 0 {
		return nil, false, nil
	}
	return t.locateFrom(key, root, targetOff, payload, cmp, nil)
}

func (t *txn) locateFrom(key int, node, targetOff uint64, payload []byte, cmp CompareFunc, path []pathStep) ([]pathStep, bool, error) {
	if node == targetOff {
		return path, true, nil
	}

	sv, err := t.slot(node)
	if err != nil {
		return nil, false, err
	}

	c := cmp(key, payload, sv.payload())
	switch {
	case c < 0:
		l := sv.left(key)
		if l.kind != linkChild {
			return nil, false, nil
		}
		return t.locateFrom(key, l.off, targetOff, payload, cmp, appendStep(path, node, true))

	case c > 0:
		r := sv.right(key)
		if r.kind != linkChild {
			return nil, false, nil
		}
		return t.locateFrom(key, r.off, targetOff, payload, cmp, appendStep(path, node, false))

	default:
		if r := sv.right(key); r.kind == linkChild {
			if p, ok, err := t.locateFrom(key, r.off, targetOff, payload, cmp, appendStep(path, node, false)); err != nil {
				return nil, false, err
			} else if ok {
				return p, true, nil
			}
		}
		if l := sv.left(key); l.kind == linkChild {
			if p, ok, err := t.locateFrom(key, l.off, targetOff, payload, cmp, appendStep(path, node, true)); err != nil {
				return nil, false, err
			} else if ok {
				return p, true, nil
			}
		}
		return nil, false, nil
	}
}

func appendStep(path []pathStep, off uint64, wentLeft bool) []pathStep {
	out := make([]pathStep, len(path), len(path)+1)
	copy(out, path)
	return append(out, pathStep{off, wentLeft})
}

func (t *txn) rightmost(key int, start uint64) (uint64, error) {
	cur := start
	for {
		sv, err := t.slot(cur)
		if err != nil {
			return 0, err
		}
		r := sv.right(key)
		if r.kind != linkChild {
			return cur, nil
		}
		cur = r.off
	}
}

func (t *txn) leftmost(key int, start uint64) (uint64, error) {
	cur := start
	for {
		sv, err := t.slot(cur)
		if err != nil {
			return 0, err
		}
		l := sv.left(key)
		if l.kind != linkChild {
			return cur, nil
		}
		cur = l.off
	}
}

// avlDelete removes targetOff from the key-th tree.
func (t *txn) avlDelete(key int, targetOff uint64, payload []byte, cmp CompareFunc) error {
	path, found, err := t.locate(key, targetOff, payload, cmp)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: key %d: slot %d is not linked into its tree", ErrCorrupt, key, targetOff)
	}

	zs, err := t.slot(targetOff)
	if err != nil {
		return err
	}
	zl := zs.left(key)
	zr := zs.right(key)

	switch {
	case zl.kind != linkChild && zr.kind != linkChild:
		return t.deleteLeaf(key, path, zl, zr)
	case zl.kind != linkChild:
		return t.deleteOneChild(key, path, targetOff, zr.off, false)
	case zr.kind != linkChild:
		return t.deleteOneChild(key, path, targetOff, zl.off, true)
	default:
		return t.deleteTwoChildren(key, path, targetOff)
	}
}

// deleteLeaf removes a childless node whose predecessor/successor threads
// are predOff/succOff (zero meaning none), patching its parent's link in
// one step. A neighbor's link is rewritten only where it is a thread; a
// real child link of a neighbor is left as it is.
func (t *txn) deleteLeaf(key int, path []pathStep, zl, zr link) error {
	predOff, succOff := zl.off, zr.off

	if predOff != 0 {
		ps, err := t.slot(predOff)
		if err != nil {
			return err
		}
		if ps.right(key).kind == linkThread {
			ps.setRight(key, threadLink(succOff))
		}
	}
	if succOff != 0 {
		ss, err := t.slot(succOff)
		if err != nil {
			return err
		}
		if ss.left(key).kind == linkThread {
			ss.setLeft(key, threadLink(predOff))
		}
	}

	if len(path) == 0 {
		t.h.roots[key] = 0
		return nil
	}

	last := path[len(path)-1]
	replacement := succOff
	if last.wentLeft {
		replacement = predOff
	}
	if err := t.installChildOrThread(key, last, replacement); err != nil {
		return err
	}

	return t.retraceDeleteRoot(key, path)
}

// installChildOrThread sets parent's link (in the direction recorded by
// step) to a thread pointing at neighborOff, used when a removed node's
// position becomes empty again.
func (t *txn) installChildOrThread(key int, step pathStep, neighborOff uint64) error {
	ps, err := t.slot(step.off)
	if err != nil {
		return err
	}
	if step.wentLeft {
		ps.setLeft(key, threadLink(neighborOff))
	} else {
		ps.setRight(key, threadLink(neighborOff))
	}
	return nil
}

// deleteOneChild removes zOff, a node with exactly one real child,
// childOff, known to sit on the side childIsLeft.
func (t *txn) deleteOneChild(key int, path []pathStep, zOff, childOff uint64, childIsLeft bool) error {
	zs, err := t.slot(zOff)
	if err != nil {
		return err
	}

	if childIsLeft {
		// z's right was a thread to its successor; z's predecessor is
		// the rightmost node of childOff's subtree, whose thread must
		// now skip z.
		succOff := zs.right(key).off
		predOff, err := t.rightmost(key, childOff)
		if err != nil {
			return err
		}
		ps, err := t.slot(predOff)
		if err != nil {
			return err
		}
		ps.setRight(key, threadLink(succOff))
		if succOff != 0 {
			sc, err := t.slot(succOff)
			if err != nil {
				return err
			}
			if sc.left(key).kind == linkThread {
				sc.setLeft(key, threadLink(predOff))
			}
		}
	} else {
		predOff := zs.left(key).off
		succOff, err := t.leftmost(key, childOff)
		if err != nil {
			return err
		}
		sc, err := t.slot(succOff)
		if err != nil {
			return err
		}
		sc.setLeft(key, threadLink(predOff))
		if predOff != 0 {
			ps, err := t.slot(predOff)
			if err != nil {
				return err
			}
			if ps.right(key).kind == linkThread {
				ps.setRight(key, threadLink(succOff))
			}
		}
	}

	if len(path) == 0 {
		t.h.roots[key] = childOff
	} else if err := t.relink(key, path[len(path)-1], childOff); err != nil {
		return err
	}

	return t.retraceDeleteRoot(key, path)
}

// deleteTwoChildren removes targetOff, whose both children are real
// subtrees, by promoting its in-order successor (the leftmost node of its
// right subtree) into its place.
func (t *txn) deleteTwoChildren(key int, path []pathStep, targetOff uint64) error {
	zs, err := t.slot(targetOff)
	if err != nil {
		return err
	}
	zBal := zs.balance(key)
	lOff := zs.left(key).off
	rOff := zs.right(key).off

	yOff := rOff
	var yPath []pathStep
	for {
		ysv, err := t.slot(yOff)
		if err != nil {
			return err
		}
		l := ysv.left(key)
		if l.kind != linkChild {
			break
		}
		yPath = append(yPath, pathStep{yOff, true})
		yOff = l.off
	}

	ys, err := t.slot(yOff)
	if err != nil {
		return err
	}
	yRight := ys.right(key)

	if len(yPath) == 0 {
		// Y is rOff itself: its right subtree is untouched, only its
		// left (formerly a thread to z) becomes L.
		predOff, err := t.rightmost(key, lOff)
		if err != nil {
			return err
		}
		if predOff != 0 {
			ps, err := t.slot(predOff)
			if err != nil {
				return err
			}
			ps.setRight(key, threadLink(yOff))
		}
		ys.setLeft(key, childLink(lOff))
	} else {
		yParent := yPath[len(yPath)-1]
		yParentSlot, err := t.slot(yParent.off)
		if err != nil {
			return err
		}
		if yRight.kind == linkChild {
			yParentSlot.setLeft(key, yRight)
		} else {
			yParentSlot.setLeft(key, threadLink(yOff))
		}

		predOff, err := t.rightmost(key, lOff)
		if err != nil {
			return err
		}
		if predOff != 0 {
			ps, err := t.slot(predOff)
			if err != nil {
				return err
			}
			ps.setRight(key, threadLink(yOff))
		}

		ys.setLeft(key, childLink(lOff))
		ys.setRight(key, childLink(rOff))
	}

	ys.setBalance(key, zBal)

	if len(path) == 0 {
		t.h.roots[key] = yOff
	} else if err := t.relink(key, path[len(path)-1], yOff); err != nil {
		return err
	}

	// The combined ancestor chain is: z's own ancestors, then Y (which
	// takes z's place, having gone right towards rOff), then Y's former
	// ancestors down to its old position, in that root-to-leaf order.
	fullPath := make([]pathStep, 0, len(path)+len(yPath)+1)
	fullPath = append(fullPath, path...)
	fullPath = append(fullPath, pathStep{yOff, false})
	fullPath = append(fullPath, yPath...)

	return t.retraceDeleteRoot(key, fullPath)
}

// retraceDeleteWalk is the delete-side mirror of retraceInsert: each step
// up path had its child shrink by one, so the balance delta is reversed
// relative to insert, and the walk keeps propagating while the node's own
// height decreased, stopping as soon as one does not.
func (t *txn) retraceDeleteWalk(key int, path []pathStep) (uint64, bool, error) {
	if len(path) == 0 {
		return 0, true, nil
	}

	topOff := path[0].off
	heightDecreased := true

	for i := len(path) - 1; i >= 0; i-- {
		p := path[i].off
		ps, err := t.slot(p)
		if err != nil {
			return 0, false, err
		}

		if path[i].wentLeft {
			ps.setBalance(key, ps.balance(key)+1)
		} else {
			ps.setBalance(key, ps.balance(key)-1)
		}

		bal := ps.balance(key)
		newRoot := p
		stop := false

		switch bal {
		case 1, -1:
			heightDecreased = false
			stop = true
		case 2, -2:
			nr, err := t.rebalance(key, p)
			if err != nil {
				return 0, false, err
			}
			newRoot = nr
			nrs, err := t.slot(nr)
			if err != nil {
				return 0, false, err
			}
			if nrs.balance(key) != 0 {
				heightDecreased = false
			}
			stop = !heightDecreased
		}

		if i == 0 {
			topOff = newRoot
		} else if err := t.relink(key, path[i-1], newRoot); err != nil {
			return 0, false, err
		}

		if stop {
			return topOff, heightDecreased, nil
		}
	}

	return topOff, heightDecreased, nil
}

func (t *txn) retraceDeleteRoot(key int, path []pathStep) error {
	if len(path) == 0 {
		return nil
	}
	topOff, _, err := t.retraceDeleteWalk(key, path)
	if err != nil {
		return err
	}
	t.h.roots[key] = topOff
	return nil
}

// find returns the offset of a node comparing equal to payload under key,
// if one exists.
func (t *txn) find(key int, payload []byte, cmp CompareFunc) (uint64, bool, error) {
	cur := t.h.roots[key]
	for cur != 0 {
		sv, err := t.slot(cur)
		if err != nil {
			return 0, false, err
		}
		c := cmp(key, payload, sv.payload())
		switch {
		case c == 0:
			return cur, true, nil
		case c < 0:
			l := sv.left(key)
			if l.kind != linkChild {
				return 0, false, nil
			}
			cur = l.off
		default:
			r := sv.right(key)
			if r.kind != linkChild {
				return 0, false, nil
			}
			cur = r.off
		}
	}
	return 0, false, nil
}

// startGE returns the leftmost node whose value is >= target.
func (t *txn) startGE(key int, target []byte, cmp CompareFunc) (uint64, bool, error) {
	cur := t.h.roots[key]
	if cur == 0 {
		return 0, false, nil
	}
	var candidate uint64
	for {
		sv, err := t.slot(cur)
		if err != nil {
			return 0, false, err
		}
		c := cmp(key, target, sv.payload())
		if c <= 0 {
			candidate = cur
			l := sv.left(key)
			if l.kind != linkChild {
				return candidate, true, nil
			}
			cur = l.off
		} else {
			r := sv.right(key)
			if r.kind != linkChild {
				if candidate != 0 {
					return candidate, true, nil
				}
				return 0, false, nil
			}
			cur = r.off
		}
	}
}

// startLT returns the rightmost node whose value is < target.
func (t *txn) startLT(key int, target []byte, cmp CompareFunc) (uint64, bool, error) {
	cur := t.h.roots[key]
	if cur == 0 {
		return 0, false, nil
	}
	var candidate uint64
	for {
		sv, err := t.slot(cur)
		if err != nil {
			return 0, false, err
		}
		c := cmp(key, target, sv.payload())
		if c > 0 {
			candidate = cur
			r := sv.right(key)
			if r.kind != linkChild {
				return candidate, true, nil
			}
			cur = r.off
		} else {
			l := sv.left(key)
			if l.kind != linkChild {
				if candidate != 0 {
					return candidate, true, nil
				}
				return 0, false, nil
			}
			cur = l.off
		}
	}
}

// next returns cur's in-order successor under key.
func (t *txn) next(key int, cur uint64) (uint64, bool, error) {
	sv, err := t.slot(cur)
	if err != nil {
		return 0, false, err
	}
	r := sv.right(key)
	if r.kind == linkThread {
		return r.off, true, nil
	}
	if r.kind != linkChild {
		return 0, false, nil
	}
	n := r.off
	for {
		ns, err := t.slot(n)
		if err != nil {
			return 0, false, err
		}
		l := ns.left(key)
		if l.kind != linkChild {
			return n, true, nil
		}
		n = l.off
	}
}

// prev returns cur's in-order predecessor under key.
func (t *txn) prev(key int, cur uint64) (uint64, bool, error) {
	sv, err := t.slot(cur)
	if err != nil {
		return 0, false, err
	}
	l := sv.left(key)
	if l.kind == linkThread {
		return l.off, true, nil
	}
	if l.kind != linkChild {
		return 0, false, nil
	}
	n := l.off
	for {
		ns, err := t.slot(n)
		if err != nil {
			return 0, false, err
		}
		r := ns.right(key)
		if r.kind != linkChild {
			return n, true, nil
		}
		n = r.off
	}
}
