package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/seeddb"
	"github.com/bbchallenge/decider-core/tm"
)

// seekBuffer is an in-memory io.WriteSeeker over a growable byte slice, the
// same minimal
// adapter codec's own tests use for VerificationWriter.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	n := copy(s.buf[s.pos:], p)
	if n < len(p) {
		s.buf = append(s.buf, p[n:]...)
		n = len(p)
	}
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	if whence != 0 {
		panic("unsupported whence")
	}
	s.pos = int(offset)
	return offset, nil
}

func buildTestDB(t *testing.T, nMachines int) *seeddb.DB {
	t.Helper()
	var raw []byte
	for i := 0; i < nMachines; i++ {
		raw = append(raw, []byte("1RB1LB_1LA1RH\n")...)
	}
	db, err := seeddb.Open(bytes.NewReader(raw), int64(len(raw)), 2, seeddb.FormatASCII)
	if err != nil {
		t.Fatalf("seeddb.Open: %v", err)
	}
	return db
}

func TestDriverRunDecidesEvenIndices(t *testing.T) {
	db := buildTestDB(t, 10)
	indices := make([]uint32, 10)
	for i := range indices {
		indices[i] = uint32(i)
	}

	decide := func(machineIndex uint32, spec tm.Spec) ([]byte, bool) {
		if machineIndex%2 == 0 {
			return []byte{0, 0, 0, byte(machineIndex)}, true
		}
		return nil, false
	}

	sb := &seekBuffer{}
	vw, err := codec.NewVerificationWriter(sb)
	if err != nil {
		t.Fatalf("NewVerificationWriter: %v", err)
	}
	var umfBuf bytes.Buffer
	uw := codec.NewUndecidedWriter(&umfBuf)

	d := &Driver{Tag: codec.TagCycler, Decide: decide, Threads: 3, ChunkSize: 2}
	decided, err := d.Run(context.Background(), db, indices, vw, uw)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if decided != 5 {
		t.Fatalf("decided = %d, want 5", decided)
	}
	if err := vw.Close(); err != nil {
		t.Fatalf("vw.Close: %v", err)
	}

	entries, err := codec.ReadVerificationFile(bytes.NewReader(sb.buf))
	if err != nil {
		t.Fatalf("ReadVerificationFile: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("len(entries) = %d, want 5", len(entries))
	}
	for _, e := range entries {
		if e.SeedIndex%2 != 0 {
			t.Fatalf("unexpected odd SeedIndex %d in verification stream", e.SeedIndex)
		}
	}

	undecided, err := codec.ReadUndecidedFile(bytes.NewReader(umfBuf.Bytes()))
	if err != nil {
		t.Fatalf("ReadUndecidedFile: %v", err)
	}
	if len(undecided) != 5 {
		t.Fatalf("len(undecided) = %d, want 5", len(undecided))
	}
	for _, idx := range undecided {
		if idx%2 == 0 {
			t.Fatalf("unexpected even index %d in undecided stream", idx)
		}
	}
}

func TestDriverRunPropagatesDecideFetchError(t *testing.T) {
	db := buildTestDB(t, 2)
	indices := []uint32{0, 1, 99} // 99 is out of range
	decide := func(machineIndex uint32, spec tm.Spec) ([]byte, bool) { return nil, false }

	d := &Driver{Tag: codec.TagCycler, Decide: decide, Threads: 1, ChunkSize: 1}
	if _, err := d.Run(context.Background(), db, indices, nil, nil); err == nil {
		t.Fatal("expected an error for an out-of-range machine index")
	}
}

func TestDriverRunTagForOverridesTag(t *testing.T) {
	db := buildTestDB(t, 4)
	indices := []uint32{0, 1, 2, 3}
	decide := func(machineIndex uint32, spec tm.Spec) ([]byte, bool) {
		if machineIndex%2 == 0 {
			return []byte{0}, true
		}
		return []byte{1}, true
	}

	sb := &seekBuffer{}
	vw, err := codec.NewVerificationWriter(sb)
	if err != nil {
		t.Fatalf("NewVerificationWriter: %v", err)
	}

	d := &Driver{
		Tag:    codec.TagTranslatedCyclerRight,
		Decide: decide,
		TagFor: func(info []byte) codec.Tag {
			if info[0] == 0 {
				return codec.TagTranslatedCyclerRight
			}
			return codec.TagTranslatedCyclerLeft
		},
		Threads: 2, ChunkSize: 1,
	}
	if _, err := d.Run(context.Background(), db, indices, vw, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := vw.Close(); err != nil {
		t.Fatalf("vw.Close: %v", err)
	}

	entries, err := codec.ReadVerificationFile(bytes.NewReader(sb.buf))
	if err != nil {
		t.Fatalf("ReadVerificationFile: %v", err)
	}
	for _, e := range entries {
		wantRight := e.SeedIndex%2 == 0
		gotRight := e.Tag == codec.TagTranslatedCyclerRight
		if wantRight != gotRight {
			t.Fatalf("machine %d: tag %s does not match expected direction", e.SeedIndex, e.Tag)
		}
	}
}

func TestDriverRunSingleThreadMatchesMultiThread(t *testing.T) {
	db := buildTestDB(t, 20)
	indices := make([]uint32, 20)
	for i := range indices {
		indices[i] = uint32(i)
	}
	decide := func(machineIndex uint32, spec tm.Spec) ([]byte, bool) {
		return []byte(fmt.Sprintf("%04d", machineIndex)), machineIndex%3 == 0
	}

	runOnce := func(threads int) uint32 {
		d := &Driver{Tag: codec.TagCycler, Decide: decide, Threads: threads, ChunkSize: 4}
		decided, err := d.Run(context.Background(), db, indices, nil, nil)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return decided
	}

	single := runOnce(1)
	multi := runOnce(4)
	if single != multi {
		t.Fatalf("decided count differs by thread count: single=%d multi=%d", single, multi)
	}
}
