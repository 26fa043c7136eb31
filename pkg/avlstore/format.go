package avlstore

import "encoding/binary"

// On-disk byte order. The spec allows either endianness "native to the
// creating host"; cross-endian portability is explicitly not a goal.
var byteOrder = binary.NativeEndian

// magic is the literal 8-byte file signature (two trailing spaces).
var magic = [8]byte{'A', 'V', 'L', '.', 'M', 'W', ' ', ' '}

// Header field offsets. The header is variable-length: Roots has KeyCount
// entries, so HeaderSize is computed per-open rather than a compile-time
// constant (spec §9: "model slots as byte-array views ... not as
// compile-time-sized aggregates").
const (
	offMagic      = 0  // [8]byte
	offKeyCount   = 8  // uint32
	offDataLen    = 12 // uint32
	offRecordLen  = 16 // uint32
	offReserved   = 20 // uint32, zero
	offLiveCount  = 24 // int64
	offNextNumber = 32 // int64
	offHeadSeq    = 40 // uint64
	offHeadEmpty  = 48 // uint64
	offHeadCpr    = 56 // uint64, reserved: always zero, no field reads/writes it yet
	offHeadCursor = 64 // uint64: head of the process-wide cursor-slot list
	offRoots      = 72 // [KeyCount]uint64
)

// headerFixedSize is the size of the header before the Roots array.
const headerFixedSize = offRoots

func headerSize(keyCount int) int {
	return headerFixedSize + keyCount*8
}

// header is the decoded in-memory form of the 0-offset file header.
type header struct {
	keyCount   uint32
	dataLen    uint32
	recordLen  uint32
	liveCount  int64
	nextNumber int64
	headSeq    uint64
	headEmpty  uint64
	headCpr    uint64 // reserved, always zero
	headCursor uint64
	roots      []uint64 // len == keyCount
}

func encodeHeader(h *header) []byte {
	buf := make([]byte, headerSize(int(h.keyCount)))

	copy(buf[offMagic:], magic[:])
	byteOrder.PutUint32(buf[offKeyCount:], h.keyCount)
	byteOrder.PutUint32(buf[offDataLen:], h.dataLen)
	byteOrder.PutUint32(buf[offRecordLen:], h.recordLen)
	byteOrder.PutUint64(buf[offLiveCount:], uint64(h.liveCount))
	byteOrder.PutUint64(buf[offNextNumber:], uint64(h.nextNumber))
	byteOrder.PutUint64(buf[offHeadSeq:], h.headSeq)
	byteOrder.PutUint64(buf[offHeadEmpty:], h.headEmpty)
	byteOrder.PutUint64(buf[offHeadCpr:], h.headCpr)
	byteOrder.PutUint64(buf[offHeadCursor:], h.headCursor)

	for i, r := range h.roots {
		byteOrder.PutUint64(buf[offRoots+i*8:], r)
	}

	return buf
}

// decodeHeader parses a header of exactly headerSize(keyCount) bytes.
// It does not validate the magic or field ranges; callers validate
// separately (open.go) so the corruption classification stays in one place.
func decodeHeader(buf []byte, keyCount int) *header {
	h := &header{
		keyCount:   byteOrder.Uint32(buf[offKeyCount:]),
		dataLen:    byteOrder.Uint32(buf[offDataLen:]),
		recordLen:  byteOrder.Uint32(buf[offRecordLen:]),
		liveCount:  int64(byteOrder.Uint64(buf[offLiveCount:])),
		nextNumber: int64(byteOrder.Uint64(buf[offNextNumber:])),
		headSeq:    byteOrder.Uint64(buf[offHeadSeq:]),
		headEmpty:  byteOrder.Uint64(buf[offHeadEmpty:]),
		headCpr:    byteOrder.Uint64(buf[offHeadCpr:]),
		headCursor: byteOrder.Uint64(buf[offHeadCursor:]),
		roots:      make([]uint64, keyCount),
	}

	for i := range h.roots {
		h.roots[i] = byteOrder.Uint64(buf[offRoots+i*8:])
	}

	return h
}

// --- Slot layout ---
//
// A slot is RecordLen bytes: a per-key node array, then PrevSeq/NextSeq,
// then the Payload. Each node is 17 bytes: a 1-byte balance followed by two
// 8-byte signed, threaded child offsets (spec §9: the threaded-pointer sign
// trick is folded to a signed on-disk representation at the disk boundary;
// it is exposed in memory as the [link] tagged-offset type in slot.go).

const nodeSize = 1 + 8 + 8

func nodeOffset(key int) int { return key * nodeSize }

func recordLen(keyCount, dataLen int) int {
	return keyCount*nodeSize + 16 + dataLen
}

func prevSeqOffset(keyCount int) int { return keyCount * nodeSize }
func nextSeqOffset(keyCount int) int { return keyCount*nodeSize + 8 }
func payloadOffset(keyCount int) int { return keyCount*nodeSize + 16 }

// Slot-kind sentinel values for the balance byte of key 0. Real balance
// factors are bounded to [-2, 2] even mid-rebalance, so these are outside
// the valid balance domain and can never be confused with one, provided
// every read site checks for them before interpreting the byte as a
// balance (spec §9 Open Question).
const (
	balanceCursor int8 = 0x20
	balanceFree   int8 = 0x40
)

type slotKind int

const (
	slotLive slotKind = iota
	slotCursor
	slotFree
)

// pidSize is sizeof(pid_t) on the platforms this package supports (int32).
const pidSize = 4
