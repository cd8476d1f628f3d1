// Package backward implements the backward-reasoning decider and its
// certificate encoding (spec.md §4.2), grounded on
// original_source/BackwardReasoning/BackwardReasoning.cpp.
//
// The search starts at the halt state with an entirely undetermined tape
// and recurses over predecessor transitions; if every branch terminates
// within a depth limit without ever needing to distinguish the true start
// configuration, the machine cannot reach halt and is non-halting. No
// verifier exists for this engine — the original notes that one was never
// written, since the certificate (Leftmost, Rightmost, MaxDepth, nNodes) is
// too little information to independently re-derive the proof from.
package backward

import (
	"encoding/binary"
	"fmt"

	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/internal/conv"
	"github.com/bbchallenge/decider-core/tm"
)

// tapeUnset marks a tape cell whose value has not yet been constrained by
// any predecessor in the current search branch.
const tapeUnset = 3

type predecessor struct {
	write uint8
	move  tm.Move
	state uint8
	read  uint8
}

type configuration struct {
	state    uint8
	tapeHead int
}

// Certificate is the non-halting proof emitted by Decide, matching the
// on-disk layout of spec.md §6 (Leftmost, Rightmost, MaxDepth, nNodes; 16
// bytes, big-endian).
type Certificate struct {
	Leftmost  int32
	Rightmost int32
	MaxDepth  uint32
	NNodes    uint32
}

// Encode serialises the certificate for a dvf BACKWARD_REASONING entry.
func (c Certificate) Encode() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[0:4], uint32(c.Leftmost))
	binary.BigEndian.PutUint32(buf[4:8], uint32(c.Rightmost))
	binary.BigEndian.PutUint32(buf[8:12], c.MaxDepth)
	binary.BigEndian.PutUint32(buf[12:16], c.NNodes)
	return buf
}

// Decode parses a BACKWARD_REASONING dvf info payload.
func Decode(info []byte) (Certificate, error) {
	if len(info) != 16 {
		return Certificate{}, fmt.Errorf("backward: certificate length %d, want 16", len(info))
	}
	return Certificate{
		Leftmost:  int32(binary.BigEndian.Uint32(info[0:4])),
		Rightmost: int32(binary.BigEndian.Uint32(info[4:8])),
		MaxDepth:  binary.BigEndian.Uint32(info[8:12]),
		NNodes:    binary.BigEndian.Uint32(info[12:16]),
	}, nil
}

// Decider holds the reusable predecessor-table and tape workspace for one
// machine-state count and depth/space limit. It is not safe for concurrent
// use; each worker goroutine owns its own Decider.
type Decider struct {
	predecessorTable [][]predecessor
	tape             []uint8
	space            int
	depthLimit       uint32
	sink             *decidererr.Sink

	leftmost, rightmost int
	maxDepth, nNodes     uint32
}

// NewDecider allocates a Decider sized for machines of the given state
// count, with the given predecessor-search depth limit and tape half-width.
func NewDecider(states uint8, depthLimit uint32, space int, sink *decidererr.Sink) *Decider {
	return &Decider{
		predecessorTable: make([][]predecessor, int(states)+1),
		tape:             make([]uint8, 2*space+1),
		space:            space,
		depthLimit:       depthLimit,
		sink:             sink,
	}
}

// Decide runs the backward search for one machine. ok is true, with a
// Certificate, iff every predecessor branch terminated within the depth
// limit; otherwise the machine is undecided by this engine.
func (d *Decider) Decide(machineIndex uint32, spec tm.Spec) (Certificate, bool) {
	for i := range d.predecessorTable {
		d.predecessorTable[i] = d.predecessorTable[i][:0]
	}
	for state := uint8(1); state <= spec.States; state++ {
		for cell := uint8(0); cell < 2; cell++ {
			tr := spec.Transition(state, cell)
			d.predecessorTable[tr.Next] = append(d.predecessorTable[tr.Next], predecessor{
				write: tr.Write, move: tr.Move, state: state, read: cell,
			})
		}
	}

	for i := range d.tape {
		d.tape[i] = tapeUnset
	}
	d.maxDepth, d.nNodes = 0, 0
	d.leftmost, d.rightmost = 0, 0

	if !d.recurse(machineIndex, 0, configuration{state: 0, tapeHead: 0}) {
		return Certificate{}, false
	}
	return Certificate{
		Leftmost:  conv.IntToInt32(d.leftmost),
		Rightmost: conv.IntToInt32(d.rightmost),
		MaxDepth:  d.maxDepth,
		NNodes:    d.nNodes,
	}, true
}

// recurse explores every predecessor of cfg.state at depth. It returns false
// ("undecided") as soon as any branch reaches the depth limit; true means
// every branch at and below this node terminated.
func (d *Decider) recurse(machineIndex uint32, depth uint32, cfg configuration) bool {
	if depth == d.depthLimit {
		return false
	}
	d.nNodes++
	if depth > d.maxDepth {
		d.maxDepth = depth
	}

	for _, p := range d.predecessorTable[cfg.state] {
		var prevHead int
		if p.move == tm.MoveLeft {
			prevHead = cfg.tapeHead + 1
			if prevHead > d.rightmost {
				d.rightmost = prevHead
			}
		} else {
			prevHead = cfg.tapeHead - 1
			if prevHead < d.leftmost {
				d.leftmost = prevHead
			}
		}

		idx := prevHead + d.space
		if idx < 0 || idx >= len(d.tape) {
			d.sink.Report(&decidererr.ContractError{
				File:    "backward.go",
				Machine: machineIndex,
				Pass:    "decide",
				Message: "tape bounds exceeded",
			})
			return false
		}

		cell := d.tape[idx]
		switch cell {
		case tapeUnset:
			d.tape[idx] = p.read
		default:
			if cell != p.write {
				continue // clash with a required cell value: impossible path
			}
			d.tape[idx] = p.read
		}

		prevCfg := configuration{state: p.state, tapeHead: prevHead}
		if !d.recurse(machineIndex, depth+1, prevCfg) {
			return false
		}
		d.tape[idx] = cell
	}
	return true
}
