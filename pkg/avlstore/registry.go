package avlstore

import (
	"sync"
	"sync/atomic"
)

// fileIdentity uniquely identifies a file by device and inode, so that
// multiple Open calls in one process against the same path share one
// in-process mutex (spec §5: "a process-local binary semaphore serialises
// threads sharing one open handle").
type fileIdentity struct {
	dev uint64
	ino uint64
}

type registryEntry struct {
	mu        sync.Mutex
	openCount atomic.Int32
}

var fileRegistry sync.Map // map[fileIdentity]*registryEntry

func getOrCreateRegistryEntry(id fileIdentity) *registryEntry {
	for {
		if v, ok := fileRegistry.Load(id); ok {
			e := v.(*registryEntry)
			for {
				old := e.openCount.Load()
				if old <= 0 {
					break
				}
				if e.openCount.CompareAndSwap(old, old+1) {
					return e
				}
			}
		}

		e := &registryEntry{}
		e.openCount.Store(1)

		if _, loaded := fileRegistry.LoadOrStore(id, e); !loaded {
			return e
		}
	}
}

func releaseRegistryEntry(id fileIdentity) {
	v, ok := fileRegistry.Load(id)
	if !ok {
		return
	}

	e := v.(*registryEntry)
	if e.openCount.Add(-1) <= 0 {
		fileRegistry.CompareAndDelete(id, e)
	}
}
