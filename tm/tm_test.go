package tm

import "testing"

// bb2x2 is the well-known 2-state busy beaver champion: 1RB 1LB / 1LA 1RH.
func bb2x2(t *testing.T) Spec {
	t.Helper()
	spec, err := ParseASCII(2, "1RB1LB_1LA1RH")
	if err != nil {
		t.Fatalf("ParseASCII: %v", err)
	}
	return spec
}

func TestParseASCIIHaltAndRun(t *testing.T) {
	spec := bb2x2(t)
	m := NewMachine(16)
	m.Init(0, spec)

	steps := 0
	for {
		r := m.Step()
		steps++
		if r == StepHalt {
			break
		}
		if r == StepOutOfBounds {
			t.Fatalf("unexpected out-of-bounds at step %d", steps)
		}
		if steps > 100 {
			t.Fatalf("machine did not halt within 100 steps")
		}
	}
	// BB(2) produces 4 ones in 6 steps.
	if steps != 6 {
		t.Fatalf("expected 6 steps to halt, got %d", steps)
	}
	ones := 0
	for h := m.Leftmost(); h <= m.Rightmost(); h++ {
		if m.ReadAt(h) == 1 {
			ones++
		}
	}
	if ones != 4 {
		t.Fatalf("expected 4 ones on tape, got %d", ones)
	}
}

func TestParsePackedRoundTripsASCII(t *testing.T) {
	spec := bb2x2(t)
	var packed []byte
	for state := uint8(1); state <= spec.States; state++ {
		for symbol := uint8(0); symbol < 2; symbol++ {
			tr := spec.Table[state][symbol]
			packed = append(packed, tr.Write, uint8(tr.Move), tr.Next)
		}
	}
	got, err := ParsePacked(2, packed)
	if err != nil {
		t.Fatalf("ParsePacked: %v", err)
	}
	if got != spec {
		t.Fatalf("ParsePacked result does not match ASCII spec: got %+v want %+v", got, spec)
	}
}

func TestStepOutOfBounds(t *testing.T) {
	spec := bb2x2(t)
	m := NewMachine(1)
	m.Init(0, spec)
	for i := 0; i < 10; i++ {
		r := m.Step()
		if r == StepOutOfBounds {
			return
		}
		if r == StepHalt {
			t.Fatal("machine halted before leaving the tiny tape window")
		}
	}
	t.Fatal("expected StepOutOfBounds within 10 steps on a 1-cell half-width tape")
}

func TestRecordBrokenSign(t *testing.T) {
	spec := bb2x2(t)
	m := NewMachine(16)
	m.Init(0, spec)

	sawLeft, sawRight := false, false
	for i := 0; i < 6; i++ {
		prevL, prevR := m.Leftmost(), m.Rightmost()
		m.Step()
		switch m.RecordBroken() {
		case 1:
			if m.Rightmost() <= prevR {
				t.Fatalf("RecordBroken=+1 but rightmost did not grow")
			}
			sawRight = true
		case -1:
			if m.Leftmost() >= prevL {
				t.Fatalf("RecordBroken=-1 but leftmost did not shrink")
			}
			sawLeft = true
		case 0:
			if m.Leftmost() != prevL || m.Rightmost() != prevR {
				t.Fatalf("RecordBroken=0 but bounds changed")
			}
		}
	}
	if !sawLeft || !sawRight {
		t.Fatalf("expected both left and right records to be broken during BB(2): left=%v right=%v", sawLeft, sawRight)
	}
}

func TestCloneShapeMismatch(t *testing.T) {
	spec := bb2x2(t)
	src := NewMachine(16)
	src.Init(0, spec)
	dst := NewMachine(8)
	if err := src.Clone(dst); err == nil {
		t.Fatal("expected Clone to fail on tape-window shape mismatch")
	}
}

func TestCloneIndependence(t *testing.T) {
	spec := bb2x2(t)
	src := NewMachine(16)
	src.Init(42, spec)
	src.Step()
	src.Step()

	dst := NewMachine(16)
	if err := src.Clone(dst); err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if dst.Index() != 42 || dst.StepCount() != src.StepCount() || dst.Head() != src.Head() {
		t.Fatalf("clone did not copy scalar fields correctly")
	}

	// Mutating src after Clone must not affect dst.
	src.Step()
	if dst.StepCount() == src.StepCount() {
		t.Fatalf("clone aliases src state instead of copying it")
	}
}

func TestParsePackedRejectsWrongLength(t *testing.T) {
	if _, err := ParsePacked(5, make([]byte, 10)); err == nil {
		t.Fatal("expected error for wrong-length packed spec")
	}
}

func TestParseASCIIRejectsBadBlockCount(t *testing.T) {
	if _, err := ParseASCII(3, "1RB1LB_1LA1RH"); err == nil {
		t.Fatal("expected error: 2 blocks supplied for a 3-state machine")
	}
}
