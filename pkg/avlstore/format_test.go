package avlstore

import "testing"

func Test_Header_Round_Trips_Through_Encode_Decode(t *testing.T) {
	h := &header{
		keyCount:   3,
		dataLen:    64,
		recordLen:  uint32(recordLen(3, 64)),
		liveCount:  7,
		nextNumber: 9,
		headSeq:    100,
		headEmpty:  200,
		headCursor: 300,
		roots:      []uint64{11, 22, 33},
	}

	buf := encodeHeader(h)
	if len(buf) != headerSize(3) {
		t.Fatalf("encoded header length = %d, want %d", len(buf), headerSize(3))
	}

	got := decodeHeader(buf, 3)

	if got.keyCount != h.keyCount || got.dataLen != h.dataLen || got.recordLen != h.recordLen {
		t.Fatalf("fixed fields did not round-trip: got %+v, want %+v", got, h)
	}
	if got.liveCount != h.liveCount || got.nextNumber != h.nextNumber {
		t.Fatalf("counters did not round-trip: got %+v, want %+v", got, h)
	}
	if got.headSeq != h.headSeq || got.headEmpty != h.headEmpty || got.headCursor != h.headCursor {
		t.Fatalf("list heads did not round-trip: got %+v, want %+v", got, h)
	}
	for i := range h.roots {
		if got.roots[i] != h.roots[i] {
			t.Fatalf("roots[%d] = %d, want %d", i, got.roots[i], h.roots[i])
		}
	}
}

func Test_HeaderSize_Grows_With_KeyCount(t *testing.T) {
	if headerSize(1) >= headerSize(2) {
		t.Fatalf("headerSize(1)=%d should be < headerSize(2)=%d", headerSize(1), headerSize(2))
	}
	if headerSize(2)-headerSize(1) != 8 {
		t.Fatalf("each extra key should add exactly 8 bytes of Roots, got delta %d", headerSize(2)-headerSize(1))
	}
}

func Test_RecordLen_Accounts_For_Every_Key_Plus_Seq_Links_Plus_Payload(t *testing.T) {
	got := recordLen(2, 10)
	want := 2*nodeSize + 16 + 10
	if got != want {
		t.Fatalf("recordLen(2,10) = %d, want %d", got, want)
	}
}

func Test_Link_Encoding_Distinguishes_Nil_Child_And_Thread(t *testing.T) {
	cases := []struct {
		name string
		in   link
	}{
		{"nil", nilLink()},
		{"child", childLink(42)},
		{"thread", threadLink(42)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			encoded := encodeLink(c.in)
			got := decodeLink(encoded)
			if got != c.in {
				t.Fatalf("decodeLink(encodeLink(%+v)) = %+v", c.in, got)
			}
		})
	}
}

func Test_ThreadLink_Of_Zero_Collapses_To_Nil(t *testing.T) {
	got := threadLink(0)
	if got.kind != linkNil {
		t.Fatalf("threadLink(0) = %+v, want linkNil", got)
	}
}
