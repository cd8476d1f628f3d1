package haltseg

import (
	"testing"

	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/tm"
)

func noSinkErrors(t *testing.T, sink *decidererr.Sink) {
	t.Helper()
	if err := sink.Last(); err != nil {
		t.Fatalf("decider reported a contract violation: %v", err)
	}
}

// TestDecideFindsHalfWidthOneCertificate exercises a machine with no
// transition into HALT at all: the backward search from state 0 has no
// predecessors to explore, so the very first segment (half-width 1, width 3)
// closes the search immediately with zero recursion nodes.
func TestDecideFindsHalfWidthOneCertificate(t *testing.T) {
	spec, err := tm.ParseASCII(2, "1RA1RA_1RA1RA")
	if err != nil {
		t.Fatalf("ParseASCII: %v", err)
	}
	sink := decidererr.NewSink(func(int) {})
	d := NewDecider(2, 5, 0, sink)

	cert, ok := d.Decide(0, spec)
	noSinkErrors(t, sink)
	if !ok {
		t.Fatal("expected a halting-segment certificate for a machine with no transition into HALT")
	}
	want := Certificate{Leftmost: 0, Rightmost: 0, MaxDepth: 1, NNodes: 0, SegmentWidth: 3}
	if cert != want {
		t.Fatalf("got %+v, want %+v", cert, want)
	}
}

// TestDecideUndecidedForActualHalter checks soundness: a machine that
// genuinely halts must never be handed a non-halting certificate, at any
// segment width the sweep tries.
func TestDecideUndecidedForActualHalter(t *testing.T) {
	spec, err := tm.ParseASCII(2, "1RB1LB_1LA1RH")
	if err != nil {
		t.Fatalf("ParseASCII: %v", err)
	}
	sink := decidererr.NewSink(func(int) {})
	d := NewDecider(2, 11, 0, sink)

	if _, ok := d.Decide(0, spec); ok {
		t.Fatal("expected no halting-segment certificate for a machine that actually halts")
	}
	noSinkErrors(t, sink)
}

// TestDecideRepeatable checks that a Decider can be reused across machines:
// the pools and memo tables from a previous Decide call must not leak state
// into the next one.
func TestDecideRepeatable(t *testing.T) {
	neverHalts, err := tm.ParseASCII(2, "1RA1RA_1RA1RA")
	if err != nil {
		t.Fatalf("ParseASCII: %v", err)
	}
	halts, err := tm.ParseASCII(2, "1RB1LB_1LA1RH")
	if err != nil {
		t.Fatalf("ParseASCII: %v", err)
	}
	sink := decidererr.NewSink(func(int) {})
	d := NewDecider(2, 11, 0, sink)

	if _, ok := d.Decide(0, halts); ok {
		t.Fatal("expected no certificate for the halting machine")
	}
	cert, ok := d.Decide(1, neverHalts)
	noSinkErrors(t, sink)
	if !ok {
		t.Fatal("expected a certificate for the non-halting machine on the second call")
	}
	if cert.SegmentWidth != 3 {
		t.Fatalf("got segment width %d, want 3", cert.SegmentWidth)
	}
}

func TestCertificateEncodeDecodeRoundTrip(t *testing.T) {
	cert := Certificate{Leftmost: -4, Rightmost: 7, MaxDepth: 120, NNodes: 9001, SegmentWidth: 9}
	got, err := Decode(cert.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != cert {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, cert)
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	if _, err := Decode(make([]byte, 16)); err == nil {
		t.Fatal("expected an error for a short payload")
	}
}
