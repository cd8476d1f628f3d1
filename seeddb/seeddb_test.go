package seeddb

import (
	"bytes"
	"testing"
)

// bb2Packed is the packed binary encoding of 1RB1LB_1LA1RH (2 states).
var bb2Packed = []byte{
	1, 0, 2, // state A symbol 0: write 1, move R, next B
	1, 1, 2, // state A symbol 1: write 1, move L, next B
	1, 1, 1, // state B symbol 0: write 1, move L, next A
	1, 0, 0, // state B symbol 1: write 1, move R, halt
}

func TestOpenAndFetchGeneralizedBinary(t *testing.T) {
	buf := append([]byte{}, bb2Packed...)
	buf = append(buf, bb2Packed...) // two machines
	db, err := Open(bytes.NewReader(buf), int64(len(buf)), 2, FormatBinary)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if db.NMachines() != 2 {
		t.Fatalf("expected 2 machines, got %d", db.NMachines())
	}
	for i := uint32(0); i < 2; i++ {
		spec, err := db.Fetch(i)
		if err != nil {
			t.Fatalf("Fetch(%d): %v", i, err)
		}
		if spec.States != 2 {
			t.Fatalf("expected 2-state spec, got %d", spec.States)
		}
		if spec.Table[2][1].Next != 0 {
			t.Fatalf("expected machine to halt in state B on 1")
		}
	}
}

func TestFetchOutOfRange(t *testing.T) {
	db, err := Open(bytes.NewReader(bb2Packed), int64(len(bb2Packed)), 2, FormatBinary)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.Fetch(1); err == nil {
		t.Fatal("expected error fetching out-of-range index")
	}
}

func TestOpenOriginal5StateHeader(t *testing.T) {
	var buf bytes.Buffer
	writeBE32(&buf, 1) // nTimeLimited
	writeBE32(&buf, 1) // nSpaceLimited
	writeBE32(&buf, 2) // nMachines
	buf.Write(make([]byte, 30))
	buf.Write(make([]byte, 30))

	db, err := Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()), 5, FormatBinary)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if db.NMachines() != 2 {
		t.Fatalf("expected 2 machines from header, got %d", db.NMachines())
	}
	if db.Header() == nil || db.Header().NTimeLimited != 1 {
		t.Fatalf("expected header to be populated")
	}
}

func TestOpenOriginal5StateHeaderMismatch(t *testing.T) {
	var buf bytes.Buffer
	writeBE32(&buf, 1)
	writeBE32(&buf, 1)
	writeBE32(&buf, 3) // inconsistent: should be 2
	buf.Write(make([]byte, 60))

	if _, err := Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()), 5, FormatBinary); err == nil {
		t.Fatal("expected error for inconsistent header counts")
	}
}

func TestOpenRejectsBadFileSize(t *testing.T) {
	// Truncate by 2 bytes: not a whole number of records, and short by more
	// than the single-byte "missing trailing newline" tolerance.
	buf := bb2Packed[:len(bb2Packed)-2]
	if _, err := Open(bytes.NewReader(buf), int64(len(buf)), 2, FormatBinary); err == nil {
		t.Fatal("expected error for file size not a multiple of record size")
	}
}

func writeBE32(buf *bytes.Buffer, n uint32) {
	buf.WriteByte(byte(n >> 24))
	buf.WriteByte(byte(n >> 16))
	buf.WriteByte(byte(n >> 8))
	buf.WriteByte(byte(n))
}
