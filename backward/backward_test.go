package backward

import (
	"testing"

	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/tm"
)

// noHaltSpec has no transition into state 0, so the predecessor table for
// the halt state is empty and Decide must succeed trivially at depth 0.
func noHaltSpec(t *testing.T) tm.Spec {
	t.Helper()
	spec, err := tm.ParseASCII(2, "1RB1RA_1LA1LB")
	if err != nil {
		t.Fatalf("ParseASCII: %v", err)
	}
	return spec
}

func TestDecideTrivialNoHaltTransition(t *testing.T) {
	spec := noHaltSpec(t)
	sink := decidererr.NewSink(nil)
	d := NewDecider(2, 50, 64, sink)

	cert, ok := d.Decide(0, spec)
	if !ok {
		t.Fatal("expected Decide to succeed: no transition reaches halt")
	}
	if cert.MaxDepth != 0 {
		t.Fatalf("expected MaxDepth 0 (search closes immediately), got %d", cert.MaxDepth)
	}
	if cert.NNodes != 1 {
		t.Fatalf("expected NNodes 1, got %d", cert.NNodes)
	}
}

func TestDecideUndecidedForActualHalter(t *testing.T) {
	spec, err := tm.ParseASCII(2, "1RB1LB_1LA1RH")
	if err != nil {
		t.Fatalf("ParseASCII: %v", err)
	}
	sink := decidererr.NewSink(nil)
	d := NewDecider(2, 3, 64, sink)

	// This machine genuinely halts, so its real backward trajectory never
	// contradicts; a shallow depth limit must leave it undecided.
	if _, ok := d.Decide(0, spec); ok {
		t.Fatal("expected Decide to be undecided for a machine that actually halts")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cert := Certificate{Leftmost: -5, Rightmost: 12, MaxDepth: 7, NNodes: 99}
	got, err := Decode(cert.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != cert {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, cert)
	}
}

func TestDecodeRejectsBadLength(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for wrong-length payload")
	}
}
