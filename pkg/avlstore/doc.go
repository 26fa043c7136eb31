// Package avlstore is an embeddable, file-backed associative store.
//
// A store file holds a fixed-length record collection indexed by one or
// more user-supplied orderings. Each index is a threaded AVL tree sharing
// one record arena; records additionally belong to a sequential
// (insertion-order) list, a free list, and a cursor list, all co-resident
// in the same file.
//
// # Basic usage
//
//	h, err := avlstore.Open(avlstore.Options{
//	    Path:     "/tmp/my.avl",
//	    DataLen:  64,
//	    KeyCount: 1,
//	    Compare:  myCompare,
//	})
//	if err != nil {
//	    // ErrCorrupt/ErrIncompatible: the file cannot be reasoned about further
//	}
//	defer h.Close()
//
//	buf := make([]byte, 64)
//	// ... populate buf ...
//	err = h.Insert(buf)
//
// # Concurrency
//
// Every mutating call and most reading calls acquire an exclusive
// byte-range lock (the "gate") on the first byte of the file for their
// entire duration, so operations are linearizable across every process
// with the file open. A second, independent byte-range lock is exposed as
// [Handle.Lock] / [Handle.Unlock] for callers who need a coarser
// transaction spanning multiple library calls.
//
// # Crash safety
//
// There is no transactional crash recovery, no in-memory cache, and no
// checksum: an interrupted mutation can leave the file inconsistent. This
// is a deliberate non-goal, not an oversight — see the package's design
// notes for the reasoning.
package avlstore
