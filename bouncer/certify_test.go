package bouncer

import "testing"

func TestGcdLcm(t *testing.T) {
	if got := gcd(12, 18); got != 6 {
		t.Fatalf("gcd(12,18) = %d, want 6", got)
	}
	if got := lcm(4, 6); got != 12 {
		t.Fatalf("lcm(4,6) = %d, want 12", got)
	}
	if got := lcm(4, 4); got != 4 {
		t.Fatalf("lcm(4,4) = %d, want 4", got)
	}
}

func TestConfigEqIgnoresTapeHead(t *testing.T) {
	a := config{tapeHead: 0, state: 1, cell: 0}
	b := config{tapeHead: 100, state: 1, cell: 0}
	if !a.eq(b) {
		t.Fatal("expected configs differing only in tapeHead to be equal")
	}
	c := config{tapeHead: 0, state: 1, cell: 1}
	if a.eq(c) {
		t.Fatal("expected configs with different cells to be unequal")
	}
}

// TestAssignPartitionsAcceptsSingleBilateralPartition hand-verifies the
// two-run Bilateral case (one rightward run, one leftward run, both
// assigned partition 0): AssignPartitions's partition walk never leaves 0,
// so it both computes and accepts nPartitions == 1.
func TestAssignPartitionsAcceptsSingleBilateralPartition(t *testing.T) {
	runs := []runData{
		{direction: 1},
		{direction: -1},
	}
	n, ok := assignPartitions(runs)
	if !ok {
		t.Fatal("expected a single-partition result to be accepted")
	}
	if n != 1 {
		t.Fatalf("nPartitions = %d, want 1", n)
	}
	for i, rd := range runs {
		if rd.partition != 0 {
			t.Fatalf("runs[%d].partition = %d, want 0", i, rd.partition)
		}
	}
}

// TestAssignPartitionsDeclinesMultiPartition hand-verifies a four-run walk
// (right, right, left, left) that AssignPartitions's own algorithm places
// across two partitions (0 and 1): the port still reports the true
// nPartitions it found, but declines to certify since this port only
// certifies nPartitions == 1.
func TestAssignPartitionsDeclinesMultiPartition(t *testing.T) {
	runs := []runData{
		{direction: 1},
		{direction: 1},
		{direction: -1},
		{direction: -1},
	}
	n, ok := assignPartitions(runs)
	if ok {
		t.Fatal("expected a two-partition result to be declined")
	}
	if n != 2 {
		t.Fatalf("nPartitions = %d, want 2", n)
	}
}

// TestDecrementRepeaterCountShrinksRun hand-verifies DecrementRepeaterCount
// against one run: the repeater shrinks by a single period, and that
// period's steps move from the repeater into the wall that follows it.
func TestDecrementRepeaterCountShrinksRun(t *testing.T) {
	pd := &partitionData{repeaterCount: 5}
	runs := []runData{
		{repeaterCount: 5, repeaterSteps: 10, repeaterPeriod: 2, wallOff: 20, wallSteps: 5},
	}
	if !decrementRepeaterCount(runs, pd) {
		t.Fatal("expected decrementRepeaterCount to succeed from repeaterCount 5")
	}
	if pd.repeaterCount != 4 {
		t.Fatalf("pd.repeaterCount = %d, want 4", pd.repeaterCount)
	}
	rd := runs[0]
	if rd.repeaterCount != 4 || rd.repeaterSteps != 8 || rd.wallOff != 18 || rd.wallSteps != 7 {
		t.Fatalf("unexpected run after decrement: %+v", rd)
	}
}

// TestDecrementRepeaterCountDeclinesBelowFloor checks the port's
// decline-instead-of-crash substitution for the original's
// "RepeaterCount < 5" TM_ERROR.
func TestDecrementRepeaterCountDeclinesBelowFloor(t *testing.T) {
	pd := &partitionData{repeaterCount: 4}
	runs := []runData{{repeaterCount: 4, repeaterSteps: 8, repeaterPeriod: 2}}
	if decrementRepeaterCount(runs, pd) {
		t.Fatal("expected decrementRepeaterCount to decline once repeaterCount is below 5")
	}
}

// TestEqualiseRepeatersSingleRun hand-verifies the no-op case: one run
// already has a whole number (5) of its own period, so EqualiseRepeaters
// changes nothing but the (trivially computed) RepeaterShift.
func TestEqualiseRepeatersSingleRun(t *testing.T) {
	ws := make([]config, 16)
	ws[0] = config{tapeHead: 0}
	ws[2] = config{tapeHead: 4}
	runs := []runData{
		{partition: 0, direction: 1, repeaterOff: 0, repeaterPeriod: 2, repeaterSteps: 10, wallOff: 20, wallSteps: 5},
	}
	pd := make([]partitionData, 1)
	if !equaliseRepeaters(ws, runs, pd) {
		t.Fatal("expected equaliseRepeaters to succeed")
	}
	rd := runs[0]
	if rd.repeaterPeriod != 2 || rd.repeaterShift != 4 || rd.repeaterCount != 5 {
		t.Fatalf("unexpected run: %+v", rd)
	}
	if rd.repeaterSteps != 10 || rd.wallOff != 20 || rd.wallSteps != 5 {
		t.Fatalf("expected a zero remainder to leave steps/wall untouched, got: %+v", rd)
	}
	if pd[0].repeaterShift != 4 || pd[0].repeaterCount != 5 {
		t.Fatalf("unexpected partition data: %+v", pd[0])
	}
}

// TestEqualiseRepeatersRejectsShortRepeater checks the "RepeaterCount < 3"
// decline: two repetitions of a period-2 block is too short to certify.
func TestEqualiseRepeatersRejectsShortRepeater(t *testing.T) {
	ws := make([]config, 8)
	ws[0] = config{tapeHead: 0}
	ws[2] = config{tapeHead: 2}
	runs := []runData{
		{partition: 0, direction: 1, repeaterOff: 0, repeaterPeriod: 2, repeaterSteps: 4},
	}
	pd := make([]partitionData, 1)
	if equaliseRepeaters(ws, runs, pd) {
		t.Fatal("expected equaliseRepeaters to reject a repeater seen only twice")
	}
}

// TestConvertRunDataBuildsRepeaterTransition hand-verifies ConvertRunData
// against the alwaysRightWriter machine: a single-cell, single-step
// repeater (write 1, move right, state unchanged) and an empty
// (wallSteps == 0) wall.
func TestConvertRunDataBuildsRepeaterTransition(t *testing.T) {
	spec := alwaysRightWriter(t)
	ws := []config{
		{tapeHead: 5, state: 1, cell: 0},
		{tapeHead: 6, state: 1, cell: 0},
	}
	rd := runData{repeaterOff: 0, repeaterPeriod: 1, wallOff: 1, wallSteps: 0}

	out := convertRunData(ws, rd, spec)

	rt := out.RepeaterTransition
	if rt.NSteps != 1 {
		t.Fatalf("RepeaterTransition.NSteps = %d, want 1", rt.NSteps)
	}
	if rt.Initial.State != 1 || rt.Initial.Head != 0 {
		t.Fatalf("unexpected Initial segment: %+v", rt.Initial)
	}
	if len(rt.Initial.Tape) != 1 || rt.Initial.Tape[0] != 0 {
		t.Fatalf("unexpected Initial tape: %v", rt.Initial.Tape)
	}
	if len(rt.Final.Tape) != 1 || rt.Final.Tape[0] != 1 {
		t.Fatalf("unexpected Final tape: %v, want [1] (the cell this run wrote)", rt.Final.Tape)
	}
	if rt.Final.State != 1 || rt.Final.Head != 1 {
		t.Fatalf("unexpected Final segment: %+v", rt.Final)
	}

	wt := out.WallTransition
	if wt.NSteps != 0 {
		t.Fatalf("WallTransition.NSteps = %d, want 0", wt.NSteps)
	}
	if wt.Initial.State != 1 || wt.Final.State != 1 {
		t.Fatalf("expected a zero-length wall to carry the run's state through unchanged, got %+v / %+v", wt.Initial, wt.Final)
	}
}
