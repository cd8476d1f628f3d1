package tm

import "fmt"

// StepResult is the outcome of one simulation step (spec.md §4.1).
type StepResult uint8

const (
	StepOK StepResult = iota
	StepHalt
	StepOutOfBounds
)

func (r StepResult) String() string {
	switch r {
	case StepOK:
		return "OK"
	case StepHalt:
		return "HALT"
	case StepOutOfBounds:
		return "OUT_OF_BOUNDS"
	default:
		return fmt.Sprintf("StepResult(%d)", uint8(r))
	}
}

// Machine is a value type holding one machine's transition table, tape
// window, and run state. It has no dynamic dispatch and is never
// subclassed; engines embed it by value (design note §9).
type Machine struct {
	spec Spec

	space int     // tape window is [-space, +space]
	tape  []uint8 // length 2*space+1, index i corresponds to head (i-space)

	index uint32
	head  int
	state uint8

	leftmost, rightmost int
	stepCount            uint64
	recordBroken         int8 // -1, 0, +1: set by the most recent Step

	halted bool
}

// NewMachine allocates a machine with a tape window of [-space, +space].
func NewMachine(space int) *Machine {
	return &Machine{
		space: space,
		tape:  make([]uint8, 2*space+1),
	}
}

// Init resets the machine to the canonical start configuration (state 1,
// head 0, blank tape) and installs spec as its transition table.
func (m *Machine) Init(index uint32, spec Spec) {
	m.index = index
	m.spec = spec
	for i := range m.tape {
		m.tape[i] = 0
	}
	m.head = 0
	m.state = 1
	m.leftmost = 0
	m.rightmost = 0
	m.stepCount = 0
	m.recordBroken = 0
	m.halted = false
}

// Reset re-initializes the machine to the start configuration using its
// current spec, without requiring the caller to re-supply it.
func (m *Machine) Reset() {
	m.Init(m.index, m.spec)
}

// Spec returns the machine's transition table.
func (m *Machine) Spec() Spec { return m.spec }

// Index returns the seed-database index this machine was initialised with.
func (m *Machine) Index() uint32 { return m.index }

// State returns the current state (0 after halting).
func (m *Machine) State() uint8 { return m.state }

// Head returns the current tape-head position.
func (m *Machine) Head() int { return m.head }

// Leftmost and Rightmost return the furthest-visited tape bounds.
func (m *Machine) Leftmost() int  { return m.leftmost }
func (m *Machine) Rightmost() int { return m.rightmost }

// StepCount returns the number of steps executed so far.
func (m *Machine) StepCount() uint64 { return m.stepCount }

// RecordBroken reports whether the most recent Step broke a left (-1) or
// right (+1) record, or neither (0) — spec.md §3 "Records".
func (m *Machine) RecordBroken() int8 { return m.recordBroken }

// Halted reports whether the machine has halted.
func (m *Machine) Halted() bool { return m.halted }

// ReadAt returns the tape symbol at absolute head position h. h must lie
// within [-space, +space]; callers that need bounds safety should check
// InBounds first.
func (m *Machine) ReadAt(h int) uint8 { return m.tape[h+m.space] }

// RawTape returns the backing tape array directly, indexed by h+Space()
// rather than by absolute head position. Record-history engines (cycler,
// translated cycler, bouncer) compare and snapshot whole tape windows every
// step; going through ReadAt/TapeWindow per cell there would be one bounds
// check and one allocation per comparison. The returned slice aliases the
// machine's live tape and is only valid until the next Step.
func (m *Machine) RawTape() []uint8 { return m.tape }

// InBounds reports whether h lies within the tape window.
func (m *Machine) InBounds(h int) bool { return h >= -m.space && h <= m.space }

// Space returns the configured tape half-width.
func (m *Machine) Space() int { return m.space }

// Step executes one transition. If that transition moves the head onto a
// cell outside the tape window, the write, move and state change are still
// applied and Step returns StepOutOfBounds (the sentinel-hit signal of
// spec.md §3/§4.1); any further Step then returns StepOutOfBounds without
// changing anything.
func (m *Machine) Step() StepResult {
	if m.halted {
		return StepHalt
	}
	if !m.InBounds(m.head) {
		return StepOutOfBounds
	}
	cell := m.tape[m.head+m.space]
	tr := m.spec.Table[m.state][cell]
	m.tape[m.head+m.space] = tr.Write

	m.recordBroken = 0
	if tr.Move == MoveLeft {
		m.head--
		if m.head < m.leftmost {
			m.leftmost = m.head
			m.recordBroken = -1
		}
	} else {
		m.head++
		if m.head > m.rightmost {
			m.rightmost = m.head
			m.recordBroken = 1
		}
	}
	m.state = tr.Next
	m.stepCount++

	if m.state == 0 {
		m.halted = true
		return StepHalt
	}
	if !m.InBounds(m.head) {
		return StepOutOfBounds
	}
	return StepOK
}

// Clone copies dst's tape window and all scalar fields from m. It returns
// an error (rather than partially mutating dst) if dst's tape window is a
// different size, matching §4.1's "must fail deterministically if shapes
// mismatch".
func (m *Machine) Clone(dst *Machine) error {
	if dst.space != m.space || len(dst.tape) != len(m.tape) {
		return fmt.Errorf("tm: clone shape mismatch: src space=%d dst space=%d", m.space, dst.space)
	}
	copy(dst.tape, m.tape)
	dst.spec = m.spec
	dst.index = m.index
	dst.head = m.head
	dst.state = m.state
	dst.leftmost = m.leftmost
	dst.rightmost = m.rightmost
	dst.stepCount = m.stepCount
	dst.recordBroken = m.recordBroken
	dst.halted = m.halted
	return nil
}

// PrepareReplay resets StepCount to 0 and re-centres Leftmost/Rightmost at
// the current head, without touching the tape, state, or index. Engines
// that clone a machine and replay it forward from the clone's current
// configuration (translated cycler, bouncer) use this so that record
// breaks and bounding-box growth measured on the clone reflect only the
// replay, not the original run that produced the clone.
func (m *Machine) PrepareReplay() {
	m.leftmost = m.head
	m.rightmost = m.head
	m.stepCount = 0
	m.recordBroken = 0
}

// TapeWindow returns a copy of the tape contents between lo and hi
// (inclusive, absolute head coordinates). Cells outside the visited
// [Leftmost,Rightmost] range are implicitly 0, which is already how the
// backing array is initialised and maintained.
func (m *Machine) TapeWindow(lo, hi int) []uint8 {
	if lo > hi {
		return nil
	}
	out := make([]uint8, hi-lo+1)
	for h := lo; h <= hi; h++ {
		if m.InBounds(h) {
			out[h-lo] = m.tape[h+m.space]
		}
	}
	return out
}
