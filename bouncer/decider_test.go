package bouncer

import (
	"testing"

	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/tm"
)

// TestQuadraticProgressionAcceptsQuadraticSequence hand-verifies the
// "a4-3a3+3a2-a1==0" check against 0, 1, 4, 9 (perfect squares: first
// differences 1,3,5, second difference constant at 2).
func TestQuadraticProgressionAcceptsQuadraticSequence(t *testing.T) {
	if !quadraticProgression(0, 1, 4, 9) {
		t.Fatal("expected 0,1,4,9 to satisfy the quadratic progression check")
	}
}

// TestQuadraticProgressionRejectsArithmeticSequence checks that a purely
// linear sequence (constant first difference, so a3-a2 == a2-a1) is
// rejected by the strict "a3-a2 > a2-a1" guard before the quadratic
// equality is even evaluated.
func TestQuadraticProgressionRejectsArithmeticSequence(t *testing.T) {
	if quadraticProgression(10, 20, 30, 40) {
		t.Fatal("expected a purely linear step-count sequence to be rejected")
	}
}

// TestQuadraticProgressionRejectsNonQuadratic checks an accelerating but
// non-quadratic sequence is rejected by the closing equality.
func TestQuadraticProgressionRejectsNonQuadratic(t *testing.T) {
	if quadraticProgression(0, 1, 8, 27) {
		t.Fatal("expected a cubic step-count sequence to be rejected")
	}
}

// TestRepetitionParamsExtrapolates hand-verifies GetRepetitionParams's
// extrapolation against the same 0,1,4,9 quadratic used above: the next
// two first differences, 5 and 7, continue the sequence to 16 and 25.
func TestRepetitionParamsExtrapolates(t *testing.T) {
	stepCount1, stepCount2 := repetitionParams(0, 1, 4)
	if stepCount1 != 5 {
		t.Fatalf("StepCount1 = %d, want 5 (continuing 0,1,4,9,16: next step is 9-4=5)", stepCount1)
	}
	if stepCount2 != 7 {
		t.Fatalf("StepCount2 = %d, want 7 (continuing to 16,25: next step is 16-9=7)", stepCount2)
	}
}

// TestDetectCycleNoFalsePositiveOnHalter checks soundness: a machine that
// genuinely halts must never be reported as exhibiting bouncer-shaped
// growth, regardless of how far the search runs before the halt.
func TestDetectCycleNoFalsePositiveOnHalter(t *testing.T) {
	spec, err := tm.ParseASCII(2, "1RB1LB_1LA1RH")
	if err != nil {
		t.Fatalf("ParseASCII: %v", err)
	}
	sink := decidererr.NewSink(func(int) {})
	d := NewDecider(2, 10_000, 0, sink)

	if _, ok := d.DetectCycle(0, spec); ok {
		t.Fatal("expected no cycle witness for a machine that actually halts")
	}
	// This machine halts inside the 1000-step warmup, which RunDecider
	// treats as an ordinary "give up" rather than a contract violation
	// (the sink is only used for a halt discovered after warmup, mid-search).
	if err := sink.Last(); err != nil {
		t.Fatalf("expected no contract violation, got: %v", err)
	}
}

// TestDecideDeclinesOnHalter checks that Decide, like DetectCycle, never
// reports a witness for a machine that actually halts: confirmAndCertify is
// never even reached because search itself finds nothing to confirm.
func TestDecideDeclinesOnHalter(t *testing.T) {
	spec, err := tm.ParseASCII(2, "1RB1LB_1LA1RH")
	if err != nil {
		t.Fatalf("ParseASCII: %v", err)
	}
	sink := decidererr.NewSink(func(int) {})
	d := NewDecider(2, 10_000, 0, sink)

	if _, ok := d.Decide(0, spec); ok {
		t.Fatal("expected no certificate for a machine that actually halts")
	}
}

// TestDecideDeclinesWithoutFalseCertificate checks that a machine whose
// growth never reaches the quadratic-progression test (here: uniform
// one-cell-per-step growth, a purely arithmetic step-count sequence) is
// never handed to confirmAndCertify, so Decide declines rather than
// fabricating a certificate Verify would reject.
func TestDecideDeclinesWithoutFalseCertificate(t *testing.T) {
	spec := alwaysRightWriter(t)
	sink := decidererr.NewSink(func(int) {})
	d := NewDecider(2, 10_000, 0, sink)

	if _, ok := d.Decide(0, spec); ok {
		t.Fatal("expected Decide to decline a non-quadratic (purely linear) growth pattern")
	}
}

// TestDetectCycleRepeatable checks that a Decider's per-state record
// chains from one machine don't leak into the search for the next.
func TestDetectCycleRepeatable(t *testing.T) {
	halts, err := tm.ParseASCII(2, "1RB1LB_1LA1RH")
	if err != nil {
		t.Fatalf("ParseASCII: %v", err)
	}
	sink := decidererr.NewSink(func(int) {})
	d := NewDecider(2, 10_000, 0, sink)

	if _, ok := d.DetectCycle(0, halts); ok {
		t.Fatal("expected no witness for the halting machine")
	}
	// A second call against the same Decider must independently run its
	// own warmup and record chains rather than continuing the first
	// call's (now-halted) search.
	if _, ok := d.DetectCycle(1, halts); ok {
		t.Fatal("expected no witness for the halting machine on the second call")
	}
}
