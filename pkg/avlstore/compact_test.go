package avlstore_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/michael9422/avl-file/pkg/avlstore"
)

func Test_Squash_Truncates_Trailing_Free_Slots_Without_Migration(t *testing.T) {
	const dataLen = 4
	path := filepath.Join(t.TempDir(), "test.avl")
	h := mustOpen(t, avlstore.Options{Path: path, DataLen: dataLen, KeyCount: 1, Compare: byteCompare})

	var inserted [][]byte
	for i := range 5 {
		buf := record(t, dataLen, byte(i), byte(i))
		if err := h.Insert(buf); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		inserted = append(inserted, buf)
	}

	sizeBeforeDelete, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	// Delete the two most recently appended records: their slots sit at
	// the tail of the arena with nothing live above them, so Squash
	// should be able to reclaim them by truncation alone.
	if err := h.Delete(inserted[4]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := h.Delete(inserted[3]); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := h.Squash(); err != nil {
		t.Fatalf("Squash: %v", err)
	}

	sizeAfter, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if sizeAfter.Size() >= sizeBeforeDelete.Size() {
		t.Fatalf("file size after squash = %d, want smaller than %d", sizeAfter.Size(), sizeBeforeDelete.Size())
	}

	var report avlstore.ScanReport
	if _, err := h.Scan(0, &report); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.LiveCount != 3 {
		t.Fatalf("Scan LiveCount = %d, want 3", report.LiveCount)
	}
	if !report.Balanced {
		t.Fatalf("tree not balanced after squash: %v", report.Errors)
	}
}

func Test_Squash_Migrates_A_Live_Slot_Into_An_Earlier_Free_Slot(t *testing.T) {
	const dataLen = 4
	path := filepath.Join(t.TempDir(), "test.avl")
	h := mustOpen(t, avlstore.Options{Path: path, DataLen: dataLen, KeyCount: 1, Compare: byteCompare})

	var inserted [][]byte
	for i := range 5 {
		buf := record(t, dataLen, byte(i), byte(i))
		if err := h.Insert(buf); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		inserted = append(inserted, buf)
	}

	// Free a slot in the middle of the arena (not at the tail), forcing
	// Squash to migrate the highest live slot down into it rather than
	// simply truncating.
	if err := h.Delete(inserted[2]); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := h.Squash(); err != nil {
		t.Fatalf("Squash: %v", err)
	}

	for _, want := range []([]byte){inserted[0], inserted[1], inserted[3], inserted[4]} {
		buf := append([]byte(nil), want...)
		found, err := h.Find(buf, 0)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if !found {
			t.Fatalf("record %x missing after squash", want)
		}
	}

	var report avlstore.ScanReport
	if _, err := h.Scan(0, &report); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.LiveCount != 4 {
		t.Fatalf("Scan LiveCount = %d, want 4", report.LiveCount)
	}
	if !report.Balanced {
		t.Fatalf("tree not balanced after squash: %v", report.Errors)
	}
}

func Test_Squash_Relocates_The_Calling_Handles_Own_Cursor_Slot(t *testing.T) {
	const dataLen = 4
	path := filepath.Join(t.TempDir(), "test.avl")

	h1 := mustOpen(t, avlstore.Options{Path: path, DataLen: dataLen, KeyCount: 1, Compare: byteCompare})

	v1 := record(t, dataLen, 1, 1)
	v2 := record(t, dataLen, 2, 2)
	v3 := record(t, dataLen, 3, 3)
	for _, r := range []([]byte){v1, v2, v3} {
		if err := h1.Insert(r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	// h2 is opened after h1's inserts, so its cursor slot lands at the
	// tail of the arena, above every live record: exactly the layout
	// where Squash must relocate the *caller's own* cursor slot rather
	// than halting, per spec §4.7 step 2.
	h2 := mustOpen(t, avlstore.Options{Path: path, DataLen: dataLen, KeyCount: 1, Compare: byteCompare})

	sizeBefore, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	// Free a slot below h2's cursor slot so Squash has somewhere to
	// relocate it into.
	if err := h2.Delete(v2); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := h2.Squash(); err != nil {
		t.Fatalf("Squash: %v", err)
	}

	sizeAfter, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if sizeAfter.Size() >= sizeBefore.Size() {
		t.Fatalf("file size after squash = %d, want smaller than %d", sizeAfter.Size(), sizeBefore.Size())
	}

	// h2 must still be fully usable through its relocated cursor slot.
	buf := append([]byte(nil), v1...)
	found, err := h2.Find(buf, 0)
	if err != nil || !found {
		t.Fatalf("Find(v1) after squash: found=%v err=%v", found, err)
	}
	ok, err := h2.Next(buf, 0)
	if err != nil {
		t.Fatalf("Next after squash: %v", err)
	}
	if !ok || !bytes.Equal(buf, v3) {
		t.Fatalf("Next() after squash = %x, ok=%v, want %x", buf, ok, v3)
	}

	if err := h2.Close(); err != nil {
		t.Fatalf("Close h2: %v", err)
	}
	if err := h1.Close(); err != nil {
		t.Fatalf("Close h1: %v", err)
	}
}
