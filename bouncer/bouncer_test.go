package bouncer

import (
	"reflect"
	"testing"

	"github.com/bbchallenge/decider-core/tm"
)

// alwaysRightWriter is the simplest possible unilateral bouncer: both
// states write 1, move right, and loop to state A. Every step extends the
// visited region by exactly one cell of value 1, so after n steps the live
// tape is a single repeater (period 1, value 1) repeated n times, with the
// head sitting at the frontier between the repeater and the unvisited
// (still-zero) tape beyond it.
func alwaysRightWriter(t *testing.T) tm.Spec {
	t.Helper()
	spec, err := tm.ParseASCII(2, "1RA1RA_1RA1RA")
	if err != nil {
		t.Fatalf("ParseASCII: %v", err)
	}
	return spec
}

func TestCheckTapeMatchesLiveMachine(t *testing.T) {
	spec := alwaysRightWriter(t)
	m := tm.NewMachine(10)
	m.Init(0, spec)
	for i := 0; i < 4; i++ {
		if m.Step() != tm.StepOK {
			t.Fatalf("step %d: unexpected result", i)
		}
	}

	td := TapeDescriptor{
		State:          1,
		TapeHeadWall:   1,
		TapeHeadOffset: 0,
		Leftmost:       0,
		Rightmost:      3,
		Wall:           [][]uint8{{}, {}},
		Repeater:       [][]uint8{{1}},
		RepeaterCount:  []uint32{4},
	}
	core := Core{NPartitions: 1}
	if err := core.CheckTape(m, td); err != nil {
		t.Fatalf("CheckTape: %v", err)
	}
}

func TestCheckTapeRejectsStateMismatch(t *testing.T) {
	spec := alwaysRightWriter(t)
	m := tm.NewMachine(10)
	m.Init(0, spec)
	for i := 0; i < 4; i++ {
		m.Step()
	}
	td := TapeDescriptor{
		State:         2,
		TapeHeadWall:  1,
		Leftmost:      0,
		Rightmost:     3,
		Wall:          [][]uint8{{}, {}},
		Repeater:      [][]uint8{{1}},
		RepeaterCount: []uint32{4},
	}
	core := Core{NPartitions: 1}
	if err := core.CheckTape(m, td); err == nil {
		t.Fatal("expected a state-mismatch error")
	}
}

func TestCheckTransitionReplaysCorrectly(t *testing.T) {
	spec := alwaysRightWriter(t)
	core := Core{NPartitions: 0}
	tr := Transition{
		NSteps:  1,
		Initial: Segment{State: 1, Head: 0, Tape: []uint8{0}},
		Final:   Segment{State: 1, Head: 1, Tape: []uint8{1}},
	}
	if err := core.CheckTransition(spec, 2, tr); err != nil {
		t.Fatalf("CheckTransition: %v", err)
	}
}

func TestCheckTransitionRejectsWrongFinalState(t *testing.T) {
	spec := alwaysRightWriter(t)
	core := Core{NPartitions: 0}
	tr := Transition{
		NSteps:  1,
		Initial: Segment{State: 1, Head: 0, Tape: []uint8{0}},
		Final:   Segment{State: 2, Head: 1, Tape: []uint8{1}},
	}
	if err := core.CheckTransition(spec, 2, tr); err == nil {
		t.Fatal("expected an error for a final state that does not match replay")
	}
}

func TestCheckFollowOnAcceptsAlignedSegments(t *testing.T) {
	core := Core{}
	seg1 := Segment{State: 1, Head: 2, Tape: []uint8{1, 1, 1}}
	seg2 := Segment{State: 1, Head: 0, Tape: []uint8{1, 1}}
	if err := core.CheckFollowOn(seg1, seg2); err != nil {
		t.Fatalf("CheckFollowOn: %v", err)
	}
}

func TestCheckFollowOnRejectsStateMismatch(t *testing.T) {
	core := Core{}
	seg1 := Segment{State: 1, Head: 2, Tape: []uint8{1, 1, 1}}
	seg2 := Segment{State: 2, Head: 0, Tape: []uint8{1, 1}}
	if err := core.CheckFollowOn(seg1, seg2); err == nil {
		t.Fatal("expected a state-mismatch error")
	}
}

func TestCheckFollowOnRejectsTapeMismatch(t *testing.T) {
	core := Core{}
	seg1 := Segment{State: 1, Head: 2, Tape: []uint8{1, 1, 1}}
	seg2 := Segment{State: 1, Head: 0, Tape: []uint8{0, 1}}
	if err := core.CheckFollowOn(seg1, seg2); err == nil {
		t.Fatal("expected a tape-mismatch error over the overlapping region")
	}
}

func identicalTapeDescriptors() (TapeDescriptor, TapeDescriptor) {
	td := TapeDescriptor{
		State:          1,
		TapeHeadWall:   1,
		TapeHeadOffset: 2,
		Wall:           [][]uint8{{0, 0}, {1, 1, 0}},
		Repeater:       [][]uint8{{1, 0}},
		RepeaterCount:  []uint32{5},
	}
	return td.clone(), td.clone()
}

func TestCheckTapesEquivalentIdentity(t *testing.T) {
	td0, td1 := identicalTapeDescriptors()
	core := Core{NPartitions: 1}
	if err := core.CheckTapesEquivalent(td0, td1); err != nil {
		t.Fatalf("CheckTapesEquivalent: %v", err)
	}
}

func TestCheckTapesEquivalentDetectsWallMismatch(t *testing.T) {
	td0, td1 := identicalTapeDescriptors()
	td1.Wall[1][0] = 0
	core := Core{NPartitions: 1}
	if err := core.CheckTapesEquivalent(td0, td1); err == nil {
		t.Fatal("expected a mismatch error")
	}
}

func TestCheckTapesEquivalentAcceptsRotatedRepeater(t *testing.T) {
	// Both describe the tape 5656565656. TD1 keeps the first cell in wall 0
	// and drops one cell from wall 1, so its repeater 0 is TD0's rotated by
	// the resulting slippage of one cell.
	td0 := TapeDescriptor{
		State:          1,
		TapeHeadWall:   0,
		TapeHeadOffset: 0,
		Wall:           [][]uint8{{}, {5, 6}},
		Repeater:       [][]uint8{{5, 6}},
		RepeaterCount:  []uint32{4},
	}
	td1 := TapeDescriptor{
		State:          1,
		TapeHeadWall:   0,
		TapeHeadOffset: 0,
		Wall:           [][]uint8{{5}, {6}},
		Repeater:       [][]uint8{{6, 5}},
		RepeaterCount:  []uint32{4},
	}
	core := Core{NPartitions: 1}
	if err := core.CheckTapesEquivalent(td0, td1); err != nil {
		t.Fatalf("CheckTapesEquivalent: %v", err)
	}
}

func TestCheckSegmentMatchesWallRegion(t *testing.T) {
	td := TapeDescriptor{
		TapeHeadOffset: 0,
		Wall:           [][]uint8{{7, 8, 9}},
		Repeater:       [][]uint8{},
		RepeaterCount:  []uint32{},
	}
	core := Core{NPartitions: 0}
	seg := Segment{Head: 0, Tape: []uint8{7, 8, 9}}
	if err := core.CheckSegment(td, seg, 0); err != nil {
		t.Fatalf("CheckSegment: %v", err)
	}
}

func TestCheckSegmentRejectsMismatch(t *testing.T) {
	td := TapeDescriptor{
		TapeHeadOffset: 0,
		Wall:           [][]uint8{{7, 8, 9}},
		Repeater:       [][]uint8{},
		RepeaterCount:  []uint32{},
	}
	core := Core{NPartitions: 0}
	seg := Segment{Head: 0, Tape: []uint8{7, 8, 0}}
	if err := core.CheckSegment(td, seg, 0); err == nil {
		t.Fatal("expected a mismatch error")
	}
}

func TestExpandWallsRightwardMovesWholeRepeaters(t *testing.T) {
	td0 := TapeDescriptor{
		TapeHeadWall:  0,
		Wall:          [][]uint8{{}, {}},
		Repeater:      [][]uint8{{1, 2}},
		RepeaterCount: []uint32{5},
	}
	td1 := td0.clone()
	core := Core{NPartitions: 1}
	if err := core.ExpandWallsRightward(&td0, &td1, 0, 3); err != nil {
		t.Fatalf("ExpandWallsRightward: %v", err)
	}
	// Amount 3 rounds up to 2 whole repeaters (ceil(3/2)=2); RepeaterCount
	// drops from 5 to 3, and the wall gains the two repeater copies.
	if td0.RepeaterCount[0] != 3 {
		t.Fatalf("got repeater count %d, want 3", td0.RepeaterCount[0])
	}
	want := []uint8{1, 2, 1, 2}
	if !reflect.DeepEqual(td0.Wall[0], want) {
		t.Fatalf("got wall %v, want %v", td0.Wall[0], want)
	}
}

func TestExpandWallsRightwardRejectsLowRepeaterCount(t *testing.T) {
	td0 := TapeDescriptor{
		Wall:          [][]uint8{{}, {}},
		Repeater:      [][]uint8{{1, 2}},
		RepeaterCount: []uint32{3},
	}
	td1 := td0.clone()
	core := Core{NPartitions: 1}
	// Needs 2 repeater copies (4 cells), leaving RepeaterCount at 1 < 3.
	if err := core.ExpandWallsRightward(&td0, &td1, 0, 3); err == nil {
		t.Fatal("expected a safety-margin error")
	}
}

func TestCertificateEncodeDecodeRoundTrip(t *testing.T) {
	cert := Certificate{
		Type:             TypeUnilateral,
		NPartitions:      1,
		InitialSteps:     10,
		InitialLeftmost:  0,
		InitialRightmost: 10,
		FinalSteps:       11,
		FinalLeftmost:    0,
		FinalRightmost:   11,
		RepeaterCount:    []uint32{5},
		InitialTape: TapeDescriptor{
			State:          1,
			TapeHeadWall:   1,
			TapeHeadOffset: 0,
			Wall:           [][]uint8{nil, nil},
			Repeater:       [][]uint8{{1}},
		},
		Runs: []RunDescriptor{
			{
				Partition: 0,
				RepeaterTransition: Transition{
					NSteps:  1,
					Initial: Segment{State: 1, Head: 0, Tape: []uint8{0}},
					Final:   Segment{State: 1, Head: 1, Tape: []uint8{1}},
				},
				TD0: TapeDescriptor{
					State:          1,
					TapeHeadWall:   1,
					TapeHeadOffset: 0,
					Wall:           [][]uint8{nil, nil},
					Repeater:       [][]uint8{{1}},
				},
				WallTransition: Transition{},
				TD1: TapeDescriptor{
					State:          1,
					TapeHeadWall:   1,
					TapeHeadOffset: 0,
					Wall:           [][]uint8{nil, nil},
					Repeater:       [][]uint8{{1}},
				},
			},
		},
	}

	got, err := Decode(cert.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != cert.Type || got.NPartitions != cert.NPartitions {
		t.Fatalf("header mismatch: got %+v", got)
	}
	if got.InitialSteps != cert.InitialSteps || got.FinalSteps != cert.FinalSteps {
		t.Fatalf("step counts mismatch: got %+v", got)
	}
	if !reflect.DeepEqual(got.RepeaterCount, cert.RepeaterCount) {
		t.Fatalf("repeater count mismatch: got %v want %v", got.RepeaterCount, cert.RepeaterCount)
	}
	if !reflect.DeepEqual(got.InitialTape, cert.InitialTape) {
		t.Fatalf("initial tape mismatch: got %+v want %+v", got.InitialTape, cert.InitialTape)
	}
	if len(got.Runs) != 1 || !reflect.DeepEqual(got.Runs[0], cert.Runs[0]) {
		t.Fatalf("run mismatch: got %+v want %+v", got.Runs, cert.Runs)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	cert := Certificate{
		Type:        TypeUnilateral,
		NPartitions: 0,
		InitialTape: TapeDescriptor{Wall: [][]uint8{{}}},
	}
	info := append(cert.Encode(), 0xFF)
	if _, err := Decode(info); err == nil {
		t.Fatal("expected an error for trailing bytes")
	}
}

func TestDecodeRejectsInvalidPartitionCount(t *testing.T) {
	info := []byte{byte(TypeUnilateral), MaxPartitions + 1, 0, 0}
	if _, err := Decode(info); err == nil {
		t.Fatal("expected an error for a partition count over the limit")
	}
}
