// Package cycler implements the exact configuration-repeat decider of
// spec.md §4.4, grounded on original_source/Cyclers/Cyclers.cpp.
//
// A cycler detects that the machine has returned to a tape configuration it
// has seen before (same state, same head, byte-identical visited tape
// window); since the transition table is deterministic, the run from that
// point on must repeat forever, so the machine cannot halt.
package cycler

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/internal/conv"
	"github.com/bbchallenge/decider-core/internal/tapescan"
	"github.com/bbchallenge/decider-core/tm"
)

// Certificate is the non-halting proof emitted by Decide: the tape window
// and configuration at two step indices between which the visited tape and
// (state, head) are identical (spec.md §4.4, §6; 24 bytes, big-endian).
type Certificate struct {
	Leftmost    int32
	Rightmost   int32
	State       uint8
	TapeHead    int32
	InitialStep uint32
	FinalStep   uint32
}

// Encode serialises the certificate for a dvf CYCLER entry.
func (c Certificate) Encode() []byte {
	buf := make([]byte, 24)
	binary.BigEndian.PutUint32(buf[0:4], uint32(c.Leftmost))
	binary.BigEndian.PutUint32(buf[4:8], uint32(c.Rightmost))
	binary.BigEndian.PutUint32(buf[8:12], uint32(c.State))
	binary.BigEndian.PutUint32(buf[12:16], uint32(c.TapeHead))
	binary.BigEndian.PutUint32(buf[16:20], c.InitialStep)
	binary.BigEndian.PutUint32(buf[20:24], c.FinalStep)
	return buf
}

// Decode parses a CYCLER dvf info payload.
func Decode(info []byte) (Certificate, error) {
	if len(info) != 24 {
		return Certificate{}, fmt.Errorf("cycler: certificate length %d, want 24", len(info))
	}
	return Certificate{
		Leftmost:    int32(binary.BigEndian.Uint32(info[0:4])),
		Rightmost:   int32(binary.BigEndian.Uint32(info[4:8])),
		State:       uint8(binary.BigEndian.Uint32(info[8:12])),
		TapeHead:    int32(binary.BigEndian.Uint32(info[12:16])),
		InitialStep: binary.BigEndian.Uint32(info[16:20]),
		FinalStep:   binary.BigEndian.Uint32(info[20:24]),
	}, nil
}

// Verify ports CyclerVerifier::Verify (VerifyCyclers.cpp): replay spec from
// the canonical start configuration for cert.FinalStep steps, snapshotting
// the tape window at cert.InitialStep, and confirm the (state, head, tape
// window) at cert.InitialStep reappears unchanged at cert.FinalStep. It is a
// pure function, independent of decider heuristics, matching the original's
// "Verifier depends only on the certificate and the machine spec" design.
func Verify(spec tm.Spec, states uint8, cert Certificate) error {
	if cert.Leftmost > 0 {
		return fmt.Errorf("cycler: leftmost %d is positive", cert.Leftmost)
	}
	if cert.Rightmost < 0 {
		return fmt.Errorf("cycler: rightmost %d is negative", cert.Rightmost)
	}
	if cert.State == 0 || cert.State > states {
		return fmt.Errorf("cycler: state %d out of range [1,%d]", cert.State, states)
	}
	if cert.TapeHead < cert.Leftmost || cert.TapeHead > cert.Rightmost {
		return fmt.Errorf("cycler: tape head %d outside [%d,%d]", cert.TapeHead, cert.Leftmost, cert.Rightmost)
	}
	if cert.FinalStep < cert.InitialStep {
		return fmt.Errorf("cycler: final step %d precedes initial step %d", cert.FinalStep, cert.InitialStep)
	}

	space := int(cert.Rightmost-cert.Leftmost) + 1
	m := tm.NewMachine(space)
	m.Init(0, spec)

	var initialTape []uint8
	for m.StepCount() < uint64(cert.FinalStep) {
		if m.StepCount() == uint64(cert.InitialStep) {
			if m.State() != cert.State || m.Head() != int(cert.TapeHead) {
				return fmt.Errorf("cycler: initial configuration mismatch at step %d: state=%d head=%d, want state=%d head=%d",
					cert.InitialStep, m.State(), m.Head(), cert.State, cert.TapeHead)
			}
			initialTape = m.TapeWindow(int(cert.Leftmost), int(cert.Rightmost))
		}
		switch m.Step() {
		case tm.StepOK:
		case tm.StepOutOfBounds:
			return fmt.Errorf("cycler: tape head left the certified window at step %d", m.StepCount())
		case tm.StepHalt:
			return fmt.Errorf("cycler: machine halted unexpectedly at step %d", m.StepCount())
		}
	}

	if m.State() != cert.State || m.Head() != int(cert.TapeHead) {
		return fmt.Errorf("cycler: final configuration mismatch at step %d: state=%d head=%d, want state=%d head=%d",
			cert.FinalStep, m.State(), m.Head(), cert.State, cert.TapeHead)
	}
	finalTape := m.TapeWindow(int(cert.Leftmost), int(cert.Rightmost))
	if off, mismatch := tapescan.FirstMismatch(initialTape, finalTape); mismatch {
		return fmt.Errorf("cycler: tape at step %d does not match tape at step %d (first differs at window offset %d)",
			cert.FinalStep, cert.InitialStep, off)
	}
	if conv.IntToInt32(m.Leftmost()) != cert.Leftmost || conv.IntToInt32(m.Rightmost()) != cert.Rightmost {
		return fmt.Errorf("cycler: leftmost/rightmost discrepancy: got [%d,%d], want [%d,%d]",
			m.Leftmost(), m.Rightmost(), cert.Leftmost, cert.Rightmost)
	}
	return nil
}

// Decider holds the reusable tape-history and record-chain workspace for
// repeated Decide calls against machines sharing the same time/space
// limits. Not safe for concurrent use.
type Decider struct {
	space     int
	rowLen    int
	timeLimit uint64

	// history is a TimeLimit x rowLen row-major array of tape snapshots,
	// one row per step at which a right-then-left head turn was observed
	// (spec.md §4.4 "4-local pattern used as a cheap filter").
	history []uint8

	// previousConfig[step] chains backward to the previous step with the
	// same (state, head), or -1.
	previousConfig []int32

	// previous[state][head+space] is the most recent step index recorded
	// for that (state, head), or -1.
	previous [][]int32

	sink *decidererr.Sink
}

// NewDecider allocates workspace sized for the given machine-state count,
// step budget, and tape half-width.
func NewDecider(states uint8, timeLimit uint64, space int, sink *decidererr.Sink) *Decider {
	rowLen := 2*space + 1
	previous := make([][]int32, int(states)+1)
	for s := range previous {
		previous[s] = make([]int32, rowLen)
	}
	return &Decider{
		space:          space,
		rowLen:         rowLen,
		timeLimit:      timeLimit,
		history:        make([]uint8, rowLen*int(timeLimit)),
		previousConfig: make([]int32, timeLimit),
		previous:       previous,
		sink:           sink,
	}
}

// Decide runs m (already Init'd by the caller) up to the configured time
// limit, looking for an exact repeated configuration.
func (d *Decider) Decide(machineIndex uint32, m *tm.Machine) (Certificate, bool) {
	for _, row := range d.previous {
		for i := range row {
			row[i] = -1
		}
	}

	tape := m.RawTape()
	// Outside [-space, space]: a sentinel the real head can never reach, so
	// the first two iterations never spuriously pass the 4-local filter.
	tapeHeadMinus1, tapeHeadMinus2 := d.space+1, d.space+1

	for m.StepCount() < d.timeLimit {
		head := m.Head()
		if head == tapeHeadMinus2 && head+1 == tapeHeadMinus1 {
			state := m.State()
			idx := head + d.space
			prev := d.previous[state][idx]
			step := m.StepCount()
			d.previousConfig[step] = prev
			d.previous[state][idx] = int32(step)

			lo, hi := m.Leftmost()+d.space, m.Rightmost()+d.space
			cur := tape[lo : hi+1]

			for prev != -1 {
				rowStart := int(prev) * d.rowLen
				row := d.history[rowStart+lo : rowStart+hi+1]
				if bytes.Equal(cur, row) {
					return Certificate{
						Leftmost:    conv.IntToInt32(m.Leftmost()),
						Rightmost:   conv.IntToInt32(m.Rightmost()),
						State:       state,
						TapeHead:    conv.IntToInt32(head),
						InitialStep: uint32(prev),
						FinalStep:   conv.Uint64ToUint32(step),
					}, true
				}
				prev = d.previousConfig[prev]
			}

			rowStart := int(step) * d.rowLen
			copy(d.history[rowStart+lo:rowStart+hi+1], cur)
		}

		tapeHeadMinus2 = tapeHeadMinus1
		tapeHeadMinus1 = head

		switch m.Step() {
		case tm.StepOK:
		case tm.StepHalt:
			d.sink.Report(&decidererr.ContractError{
				File:    "cycler.go",
				Machine: machineIndex,
				Pass:    "decide",
				Message: "unexpected HALT reached by a pre-filtered candidate machine",
			})
			return Certificate{}, false
		case tm.StepOutOfBounds:
			return Certificate{}, false
		}
	}
	return Certificate{}, false
}
