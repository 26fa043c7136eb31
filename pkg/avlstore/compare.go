package avlstore

// CompareFunc orders two payloads under a given key index. It must return
// a value <0, 0, or >0 the same way bytes.Compare does, and must be a
// total order consistent with itself across the lifetime of a file: the
// same two payloads must always compare the same way, or the tree
// invariants silently break (spec §4.4).
//
// keyIndex identifies which of the file's KeyCount independent orderings
// is being evaluated; most stores only need a single key and can ignore
// it.
type CompareFunc func(keyIndex int, a, b []byte) int
