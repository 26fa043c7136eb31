package avlstore

import "testing"

func newTestSlot(keyCount, dataLen int) slotView {
	return newSlotView(make([]byte, recordLen(keyCount, dataLen)), keyCount)
}

func Test_SlotView_Balance_Left_Right_Round_Trip_Per_Key(t *testing.T) {
	sv := newTestSlot(3, 8)

	sv.setBalance(0, -1)
	sv.setBalance(1, 2)
	sv.setBalance(2, 0)
	sv.setLeft(0, childLink(10))
	sv.setRight(0, threadLink(20))
	sv.setLeft(1, nilLink())
	sv.setRight(2, childLink(99))

	if sv.balance(0) != -1 || sv.balance(1) != 2 || sv.balance(2) != 0 {
		t.Fatalf("balances did not round-trip: %d %d %d", sv.balance(0), sv.balance(1), sv.balance(2))
	}
	if got := sv.left(0); got.kind != linkChild || got.off != 10 {
		t.Fatalf("left(0) = %+v", got)
	}
	if got := sv.right(0); got.kind != linkThread || got.off != 20 {
		t.Fatalf("right(0) = %+v", got)
	}
	if got := sv.left(1); got.kind != linkNil {
		t.Fatalf("left(1) = %+v, want nil", got)
	}
	if got := sv.right(2); got.kind != linkChild || got.off != 99 {
		t.Fatalf("right(2) = %+v", got)
	}
}

func Test_SlotView_PrevSeq_NextSeq_Round_Trip(t *testing.T) {
	sv := newTestSlot(1, 8)
	sv.setPrevSeq(123)
	sv.setNextSeq(456)

	if sv.prevSeq() != 123 || sv.nextSeq() != 456 {
		t.Fatalf("prevSeq=%d nextSeq=%d", sv.prevSeq(), sv.nextSeq())
	}
}

func Test_SlotView_Payload_Is_Independent_Of_Key_Count(t *testing.T) {
	sv := newTestSlot(4, 6)
	copy(sv.payload(), []byte("abcdef"))
	if string(sv.payload()) != "abcdef" {
		t.Fatalf("payload = %q", sv.payload())
	}
	if len(sv.payload()) != 6 {
		t.Fatalf("len(payload) = %d, want 6", len(sv.payload()))
	}
}

func Test_SlotView_Kind_Defaults_To_Live(t *testing.T) {
	sv := newTestSlot(2, 4)
	if sv.kind() != slotLive {
		t.Fatalf("fresh slot kind = %v, want slotLive", sv.kind())
	}
}

func Test_SlotView_SetKindFree_Then_SetKindCursor_Are_Distinguishable(t *testing.T) {
	sv := newTestSlot(2, 4)

	sv.setKindFree()
	if sv.kind() != slotFree {
		t.Fatalf("kind after setKindFree = %v, want slotFree", sv.kind())
	}

	sv.setKindCursor()
	if sv.kind() != slotCursor {
		t.Fatalf("kind after setKindCursor = %v, want slotCursor", sv.kind())
	}
}

func Test_SlotView_FreeNext_Round_Trips(t *testing.T) {
	sv := newTestSlot(1, 0)
	sv.setKindFree()
	sv.setFreeNext(777)
	if sv.freeNext() != 777 {
		t.Fatalf("freeNext() = %d, want 777", sv.freeNext())
	}
}

func Test_SlotView_Cursor_Fields_Survive_Zero_DataLen(t *testing.T) {
	// A cursor slot must work even when DataLen is 0: the per-key channels
	// live in the node area and the list/read-seq links in the seq-link
	// area. Only the PID lives in the payload, so with DataLen 0 none is
	// stored and cursorPID reports 0.
	sv := newTestSlot(2, 0)
	sv.setKindCursor()

	sv.setCursorPID(4242)
	sv.setCursorLeft(0, 111)
	sv.setCursorRight(0, 333)
	sv.setCursorLeft(1, 222)
	sv.setCursorRight(1, 444)
	sv.setCursorListNext(333)
	sv.setCursorReadSeq(444)

	if sv.cursorPID() != 0 {
		t.Fatalf("cursorPID() = %d, want 0 (no payload to hold it)", sv.cursorPID())
	}
	withPID := newTestSlot(2, pidSize)
	withPID.setKindCursor()
	withPID.setCursorPID(4242)
	withPID.setCursorRight(0, 333)
	if withPID.cursorPID() != 4242 {
		t.Fatalf("cursorPID() with a %d-byte payload = %d, want 4242", pidSize, withPID.cursorPID())
	}
	if sv.cursorLeft(0) != 111 || sv.cursorRight(0) != 333 {
		t.Fatalf("cursorLeft(0)/cursorRight(0) = %d,%d", sv.cursorLeft(0), sv.cursorRight(0))
	}
	if sv.cursorLeft(1) != 222 || sv.cursorRight(1) != 444 {
		t.Fatalf("cursorLeft(1)/cursorRight(1) = %d,%d", sv.cursorLeft(1), sv.cursorRight(1))
	}
	if sv.cursorListNext() != 333 {
		t.Fatalf("cursorListNext() = %d, want 333", sv.cursorListNext())
	}
	if sv.cursorReadSeq() != 444 {
		t.Fatalf("cursorReadSeq() = %d, want 444", sv.cursorReadSeq())
	}
}
