package avlstore_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/michael9422/avl-file/pkg/avlstore"
)

func Test_ReadSeq_Walks_Most_Recently_Inserted_First(t *testing.T) {
	const dataLen = 4
	h := mustOpen(t, avlstore.Options{DataLen: dataLen, KeyCount: 1, Compare: byteCompare})

	var inserted [][]byte
	for i := range 5 {
		buf := record(t, dataLen, byte(i), byte(i))
		if err := h.Insert(buf); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		inserted = append(inserted, buf)
	}

	if err := h.StartSeq(); err != nil {
		t.Fatalf("StartSeq: %v", err)
	}

	buf := make([]byte, dataLen)
	for i := len(inserted) - 1; i >= 0; i-- {
		found, err := h.ReadSeq(buf)
		if err != nil {
			t.Fatalf("ReadSeq: %v", err)
		}
		if !found {
			t.Fatalf("ReadSeq ran out early at i=%d", i)
		}
		if !bytes.Equal(buf, inserted[i]) {
			t.Fatalf("ReadSeq = %x, want %x", buf, inserted[i])
		}
	}

	found, err := h.ReadSeq(buf)
	if err != nil {
		t.Fatalf("ReadSeq past the end: %v", err)
	}
	if found {
		t.Fatalf("ReadSeq should be exhausted")
	}
}

func Test_Find_Reports_Not_Found_For_Missing_Key(t *testing.T) {
	const dataLen = 4
	h := mustOpen(t, avlstore.Options{DataLen: dataLen, KeyCount: 1, Compare: byteCompare})

	buf := record(t, dataLen, 1, 1)
	found, err := h.Find(buf, 0)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found {
		t.Fatalf("Find reported a record in an empty store")
	}
}

func Test_Operations_Reject_Out_Of_Range_Key_Index(t *testing.T) {
	const dataLen = 4
	h := mustOpen(t, avlstore.Options{DataLen: dataLen, KeyCount: 1, Compare: byteCompare})

	buf := make([]byte, dataLen)
	if _, err := h.Find(buf, 1); !errors.Is(err, avlstore.ErrInvalidArgument) {
		t.Fatalf("Find(key=1) err = %v, want ErrInvalidArgument", err)
	}
	if _, err := h.StartGE(buf, -1); !errors.Is(err, avlstore.ErrInvalidArgument) {
		t.Fatalf("StartGE(key=-1) err = %v, want ErrInvalidArgument", err)
	}
}

func Test_Operations_Reject_Wrong_Length_Buffers(t *testing.T) {
	const dataLen = 4
	h := mustOpen(t, avlstore.Options{DataLen: dataLen, KeyCount: 1, Compare: byteCompare})

	if err := h.Insert(make([]byte, dataLen+1)); !errors.Is(err, avlstore.ErrInvalidArgument) {
		t.Fatalf("Insert with wrong length err = %v, want ErrInvalidArgument", err)
	}
}

func Test_Next_Without_A_Prior_Seek_Finds_Nothing(t *testing.T) {
	const dataLen = 4
	h := mustOpen(t, avlstore.Options{DataLen: dataLen, KeyCount: 1, Compare: byteCompare})

	if err := h.Insert(record(t, dataLen, 1, 1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	buf := make([]byte, dataLen)
	found, err := h.Next(buf, 0)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if found {
		t.Fatalf("Next() without a positioned cursor should find nothing")
	}
}
