// Package tm implements the Turing-machine model of spec.md §3/§4.1: a
// transition table (Spec), a bounded tape, and a step simulator (Machine).
//
// Following design note §9 ("deep inheritance... re-express as
// composition"), Machine is a plain value type embedding Spec by value; no
// engine subclasses it. Clone is an explicit, fallible copy instead of
// aliasing, matching "Clone must copy the entire tape window and scalar
// fields; it must fail deterministically if shapes mismatch" (§4.1).
package tm

import (
	"fmt"
	"strings"
)

// MinStates and MaxStates bound the supported machine sizes (spec.md §3:
// "A machine of N ∈ {2..6} states").
const (
	MinStates = 2
	MaxStates = 6
)

// Move is the tape-head direction of a transition.
type Move uint8

const (
	// MoveRight matches the on-disk encoding move=0 (spec.md §6).
	MoveRight Move = 0
	// MoveLeft matches the on-disk encoding move=1.
	MoveLeft Move = 1
)

func (m Move) String() string {
	if m == MoveLeft {
		return "L"
	}
	return "R"
}

// Transition is one (write, move, next) triple. Next == 0 denotes halt.
type Transition struct {
	Write uint8
	Move  Move
	Next  uint8
}

// Halts reports whether this transition halts the machine.
func (t Transition) Halts() bool { return t.Next == 0 }

// Spec is a machine's full transition table: States ∈ {2..6}, indexed
// [state][symbol] with state 1..States (index 0 is unused/reserved so a
// zero Spec is detectably invalid).
type Spec struct {
	States uint8
	Table  [MaxStates + 1][2]Transition
}

// Transition returns the transition for (state, symbol). state must be in
// 1..Spec.States and symbol in {0,1}.
func (s *Spec) Transition(state uint8, symbol uint8) Transition {
	return s.Table[state][symbol]
}

// PackedSize returns the on-disk packed-binary record size for a spec with
// this many states: 3 bytes per transition, 2 transitions per state (§6).
func PackedSize(states uint8) int { return int(states) * 2 * 3 }

// ParsePacked decodes a packed binary machine spec (3 bytes per transition:
// write, move, next) as read from the seed database (spec.md §6).
func ParsePacked(states uint8, b []byte) (Spec, error) {
	if states < MinStates || states > MaxStates {
		return Spec{}, fmt.Errorf("tm: states %d out of range [%d,%d]", states, MinStates, MaxStates)
	}
	want := PackedSize(states)
	if len(b) != want {
		return Spec{}, fmt.Errorf("tm: packed spec length %d, want %d for %d states", len(b), want, states)
	}
	var spec Spec
	spec.States = states
	i := 0
	for state := uint8(1); state <= states; state++ {
		for symbol := uint8(0); symbol < 2; symbol++ {
			write, move, next := b[i], b[i+1], b[i+2]
			i += 3
			if write > 1 {
				return Spec{}, fmt.Errorf("tm: invalid write symbol %d at state %d symbol %d", write, state, symbol)
			}
			if move > 1 {
				return Spec{}, fmt.Errorf("tm: invalid move code %d at state %d symbol %d", move, state, symbol)
			}
			if next > states {
				return Spec{}, fmt.Errorf("tm: next state %d exceeds state count %d", next, states)
			}
			spec.Table[state][symbol] = Transition{Write: write, Move: Move(move), Next: next}
		}
	}
	return spec, nil
}

// ParseASCII decodes the fixed-width ASCII machine-spec form of spec.md §6:
// six characters per state (two 3-char transitions: write symbol, move
// letter L/R, next-state letter), blocks joined by '_'. A halting
// transition is written either "---" (write 0, move R) or with the
// next-state letter 'H', which keeps its write symbol and move.
func ParseASCII(states uint8, s string) (Spec, error) {
	if states < MinStates || states > MaxStates {
		return Spec{}, fmt.Errorf("tm: states %d out of range [%d,%d]", states, MinStates, MaxStates)
	}
	blocks := strings.Split(strings.Trim(s, "_"), "_")
	if len(blocks) != int(states) {
		return Spec{}, fmt.Errorf("tm: ascii spec has %d state blocks, want %d", len(blocks), states)
	}
	var spec Spec
	spec.States = states
	for i, block := range blocks {
		if len(block) != 6 {
			return Spec{}, fmt.Errorf("tm: state block %q has length %d, want 6", block, len(block))
		}
		state := uint8(i + 1)
		for symbol := uint8(0); symbol < 2; symbol++ {
			triple := block[symbol*3 : symbol*3+3]
			tr, err := parseTriple(triple, states)
			if err != nil {
				return Spec{}, fmt.Errorf("tm: state %d symbol %d: %w", state, symbol, err)
			}
			spec.Table[state][symbol] = tr
		}
	}
	return spec, nil
}

func parseTriple(triple string, states uint8) (Transition, error) {
	if triple == "---" {
		return Transition{Write: 0, Move: MoveRight, Next: 0}, nil
	}
	if len(triple) != 3 {
		return Transition{}, fmt.Errorf("invalid transition triple %q", triple)
	}
	var write uint8
	switch triple[0] {
	case '0':
		write = 0
	case '1':
		write = 1
	default:
		return Transition{}, fmt.Errorf("invalid write symbol %q", triple[0])
	}
	var move Move
	switch triple[1] {
	case 'L':
		move = MoveLeft
	case 'R':
		move = MoveRight
	default:
		return Transition{}, fmt.Errorf("invalid move %q", triple[1])
	}
	letter := triple[2]
	if letter == 'H' {
		return Transition{Write: write, Move: move, Next: 0}, nil
	}
	if letter < 'A'|| letter > 'A'+states-1 {
		return Transition{}, fmt.Errorf("invalid next-state letter %q", letter)
	}
	next := letter - 'A' + 1
	return Transition{Write: write, Move: move, Next: next}, nil
}
