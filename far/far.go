package far

import (
	"encoding/binary"
	"fmt"

	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/tm"
)

// Certificate is the FAR_DFA_ONLY non-halting proof: a scan direction and
// the transition table of a DFA whose product with the machine induces a
// closed, non-accepting NFA (spec.md §4.7, §6).
type Certificate struct {
	Direction uint8 // 0 = left-to-right, 1 = right-to-left
	DFAStates uint32
	DFA       [][2]uint8 // DFA[i][0], DFA[i][1]; length DFAStates
}

// NFACertificate is the FAR_DFA_NFA variant: the DFA plus the reconstructed
// NFA transition matrices and accepting vector, so a verifier need not
// reconstruct the NFA by itself to check it.
type NFACertificate struct {
	Certificate
	NFAStates uint32
	R         [2]Matrix
	A         Vector
}

// Encode serialises a FAR_DFA_ONLY dvf info payload: direction, then the
// DFA's flat transition table.
func (c Certificate) Encode() []byte {
	buf := make([]byte, 1+2*c.DFAStates)
	buf[0] = c.Direction
	for i := uint32(0); i < c.DFAStates; i++ {
		buf[1+2*i] = c.DFA[i][0]
		buf[1+2*i+1] = c.DFA[i][1]
	}
	return buf
}

// Decode parses a FAR_DFA_ONLY dvf info payload (original's
// ReadVerificationInfo, DeciderTag::FAR_DFA_ONLY branch: DFA_States is
// derived from the info length, not stored explicitly).
func Decode(info []byte) (Certificate, error) {
	if len(info) < 1 || (len(info)-1)%2 != 0 {
		return Certificate{}, fmt.Errorf("far: certificate length %d is not 1+2k", len(info))
	}
	dfaStates := uint32((len(info) - 1) / 2)
	if dfaStates == 0 || dfaStates > MaxDFAStates {
		return Certificate{}, fmt.Errorf("far: dfa states %d out of range [1,%d]", dfaStates, MaxDFAStates)
	}
	dfa := make([][2]uint8, dfaStates)
	for i := uint32(0); i < dfaStates; i++ {
		dfa[i] = [2]uint8{info[1+2*i], info[1+2*i+1]}
	}
	return Certificate{Direction: info[0], DFAStates: dfaStates, DFA: dfa}, nil
}

// Encode serialises a FAR_DFA_NFA dvf info payload (original's main() in
// DecideFAR.cpp, the Params.OutputNFA branch): direction, dfa/nfa widths,
// the flat DFA table, both transition matrices, and the accepting vector,
// each matrix row and the vector packed LSB-first into ⌈NFAStates/8⌉ bytes.
func (c NFACertificate) Encode() []byte {
	nBytes := (c.NFAStates + 7) / 8
	buf := make([]byte, 5+2*c.DFAStates+(2*c.NFAStates+1)*nBytes)
	buf[0] = c.Direction
	binary.BigEndian.PutUint16(buf[1:3], uint16(c.DFAStates))
	binary.BigEndian.PutUint16(buf[3:5], uint16(c.NFAStates))
	off := 5
	for i := uint32(0); i < c.DFAStates; i++ {
		buf[off] = c.DFA[i][0]
		buf[off+1] = c.DFA[i][1]
		off += 2
	}
	for _, m := range c.R {
		for _, row := range m {
			copy(buf[off:off+int(nBytes)], encodeVector(row, c.NFAStates))
			off += int(nBytes)
		}
	}
	copy(buf[off:off+int(nBytes)], encodeVector(c.A, c.NFAStates))
	return buf
}

// DecodeNFA parses a FAR_DFA_NFA dvf info payload.
func DecodeNFA(info []byte) (NFACertificate, error) {
	if len(info) < 5 {
		return NFACertificate{}, fmt.Errorf("far: nfa certificate too short: %d bytes", len(info))
	}
	direction := info[0]
	dfaStates := uint32(binary.BigEndian.Uint16(info[1:3]))
	nfaStates := uint32(binary.BigEndian.Uint16(info[3:5]))
	if dfaStates > MaxDFAStates || nfaStates > MaxNFAStates {
		return NFACertificate{}, fmt.Errorf("far: dfa/nfa states out of range: %d/%d", dfaStates, nfaStates)
	}
	nBytes := (nfaStates + 7) / 8
	want := 5 + 2*dfaStates + (2*nfaStates+1)*nBytes
	if uint32(len(info)) != want {
		return NFACertificate{}, fmt.Errorf("far: nfa certificate length %d, want %d", len(info), want)
	}
	off := 5
	dfa := make([][2]uint8, dfaStates)
	for i := uint32(0); i < dfaStates; i++ {
		dfa[i] = [2]uint8{info[off], info[off+1]}
		off += 2
	}
	var r [2]Matrix
	for k := range r {
		m := NewMatrix(int(nfaStates))
		for i := range m {
			m[i] = decodeVector(info[off:off+int(nBytes)], nfaStates)
			off += int(nBytes)
		}
		r[k] = m
	}
	a := decodeVector(info[off:off+int(nBytes)], nfaStates)

	return NFACertificate{
		Certificate: Certificate{Direction: direction, DFAStates: dfaStates, DFA: dfa},
		NFAStates:   nfaStates,
		R:           r,
		A:           a,
	}, nil
}

func encodeVector(v Vector, width uint32) []byte {
	n := (width + 7) / 8
	buf := make([]byte, n)
	for i := uint32(0); i < width; i++ {
		if v.Bit(i) {
			buf[i/8] |= 1 << (i % 8)
		}
	}
	return buf
}

func decodeVector(buf []byte, width uint32) Vector {
	var v Vector
	for i := uint32(0); i < width; i++ {
		if buf[i/8]&(1<<(i%8)) != 0 {
			v.SetBit(i)
		}
	}
	return v
}

// search holds the in-progress DFA transition table for one (direction,
// dfaStates) backtracking attempt (original's flattened DFA array, which
// RunDecider also addresses as t[] and reads from ExtendNFA).
type search struct {
	machineStates uint8
	direction     uint8
	spec          tm.Spec

	dfa [2 * MaxDFAStates]uint8
}

// extendNFA folds the k-th flat DFA transition (0-based index k-1) into R/a:
// first it adds the direct "right-rule" edges that transition induces (step
// 9' in the original), then saturates R under "left-rule" composition (step
// 8'), then refixes the accepting vector a = lfp(R[0] a) (original's
// ExtendNFA). It reports whether the resulting configuration still rejects
// the initial NFA state, i.e. whether the search may continue.
func (s *search) extendNFA(r [2]Matrix, a *Vector, k uint32) bool {
	i := (k - 1) / 2
	w := uint8((k - 1) & 1)
	d := s.dfa[k-1]

	for f := uint8(0); f < s.machineStates; f++ {
		for sym := uint8(0); sym < 2; sym++ {
			tr := s.spec.Table[f+1][sym]
			if tr.Next != 0 && uint8(tr.Move) == s.direction && tr.Write == w {
				t := tr.Next - 1
				row := uint32(s.machineStates)*i + uint32(f)
				col := uint32(s.machineStates)*uint32(d) + uint32(t)
				r[sym][row].SetBit(col)
			}
		}
	}

	for {
		changed := false
		for f := uint8(0); f < s.machineStates; f++ {
			for sym := uint8(0); sym < 2; sym++ {
				tr := s.spec.Table[f+1][sym]
				if tr.Next == 0 || uint8(tr.Move) == s.direction {
					continue
				}
				t := tr.Next - 1
				ww := tr.Write
				for j := uint32(1); j <= k; j++ {
					jj := (j - 1) / 2
					b := uint8((j - 1) & 1)
					dd := s.dfa[j-1]
					v := VecMatMul(r[b][uint32(s.machineStates)*jj+uint32(t)], r[ww])
					row := uint32(s.machineStates)*uint32(dd) + uint32(f)
					if !v.LE(r[sym][row]) {
						r[sym][row] = r[sym][row].Or(v)
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}

	cur := *a
	for {
		next := MatVecMul(r[0], cur)
		if next == cur {
			break
		}
		cur = next
	}
	*a = cur

	return !r[0][0].Intersects(*a)
}

// Decider searches, for a candidate DFA width, for a finite-automata
// reduction certificate (original's FiniteAutomataReduction::RunDecider). A
// caller sweeps dfaStates upward (1, 2, 3, ... up to MaxDFAStates) itself,
// since a wider DFA is strictly more expensive to search and most provable
// machines are decided at a small width.
type Decider struct {
	states uint8
	sink   *decidererr.Sink
}

// NewDecider allocates a Decider for machines of the given state count.
func NewDecider(states uint8, sink *decidererr.Sink) *Decider {
	return &Decider{states: states, sink: sink}
}

// Decide tries both scan directions for the given DFA width.
func (d *Decider) Decide(machineIndex uint32, spec tm.Spec, dfaStates uint32) (Certificate, bool) {
	for direction := uint8(0); direction <= 1; direction++ {
		if cert, ok := d.runOneDirection(machineIndex, direction, dfaStates, spec); ok {
			return cert, true
		}
	}
	return Certificate{}, false
}

// DecideNFA behaves like Decide but also returns the NFA built during the
// search, for the -F "FAR_DFA_NFA" dvf variant.
func (d *Decider) DecideNFA(machineIndex uint32, spec tm.Spec, dfaStates uint32) (NFACertificate, bool) {
	cert, ok := d.Decide(machineIndex, spec, dfaStates)
	if !ok {
		return NFACertificate{}, false
	}
	r0, r1, a := reconstructNFA(spec, d.states, cert.Direction, cert.DFAStates, cert.DFA)
	return NFACertificate{Certificate: cert, NFAStates: uint32(d.states)*cert.DFAStates + 1, R: [2]Matrix{r0, r1}, A: a}, true
}

func (d *Decider) runOneDirection(machineIndex uint32, direction uint8, dfaStates uint32, spec tm.Spec) (Certificate, bool) {
	nfaStates := uint32(d.states)*dfaStates + 1
	halt := nfaStates - 1

	s := &search{machineStates: d.states, direction: direction, spec: spec}

	rStack := make([][2]Matrix, 2*dfaStates+1)
	aStack := make([]Vector, 2*dfaStates+1)

	r0, r1, a0 := baseNFA(spec, d.states, dfaStates, nfaStates, halt)
	rStack[0] = [2]Matrix{r0, r1}
	aStack[0] = a0

	// mArr tracks, per flat DFA index, the largest destination state used so
	// far at or below that index — the canonical-order symmetry break that
	// keeps RunDecider from re-exploring DFAs that only differ by a
	// relabelling of states (original's m[]).
	mArr := make([]uint8, 2*dfaStates)

	k := uint32(1)
	for {
		rPair := [2]Matrix{rStack[k-1][0].Clone(), rStack[k-1][1].Clone()}
		a := aStack[k-1]
		rStack[k] = rPair

		ok := s.extendNFA(rPair, &a, k)
		aStack[k] = a

		if ok {
			if k == 2*dfaStates {
				dfa := make([][2]uint8, dfaStates)
				for i := uint32(0); i < dfaStates; i++ {
					dfa[i] = [2]uint8{s.dfa[2*i], s.dfa[2*i+1]}
				}
				cert := Certificate{Direction: direction, DFAStates: dfaStates, DFA: dfa}
				if err := checkCertificate(spec, d.states, direction, dfaStates, dfa, halt, rStack[k], aStack[k]); err != nil {
					d.sink.Report(&decidererr.ContractError{
						File:    "far.go",
						Machine: machineIndex,
						Pass:    "decide",
						Message: "freshly built reduction certificate failed its own invariants: " + err.Error(),
					})
					return Certificate{}, false
				}
				return cert, true
			}
			qNew := mArr[k-1] + 1
			if uint32(qNew) < dfaStates && 2*uint32(qNew)-1 == k {
				s.dfa[k] = qNew
			} else {
				s.dfa[k] = 0
			}
		} else {
			for {
				if k <= 1 {
					return Certificate{}, false
				}
				k--
				if !(s.dfa[k] > mArr[k-1] || uint32(s.dfa[k]) >= dfaStates-1) {
					break
				}
			}
			s.dfa[k]++
		}
		mArr[k] = maxU8(mArr[k-1], s.dfa[k])
		k++
	}
}

// baseNFA builds RStack[0]/aStack[0]: the halt state is absorbing under
// both symbols, and every halting machine transition feeds directly into it
// regardless of which DFA state it is paired with (original's "5'"/"7'"
// blocks, hoisted out since they don't depend on the DFA being searched).
func baseNFA(spec tm.Spec, states uint8, dfaStates, nfaStates, halt uint32) (Matrix, Matrix, Vector) {
	r0 := NewMatrix(int(nfaStates))
	r1 := NewMatrix(int(nfaStates))
	r0[halt].SetBit(halt)
	r1[halt].SetBit(halt)

	for f := uint8(0); f < states; f++ {
		for sym := uint8(0); sym < 2; sym++ {
			tr := spec.Table[f+1][sym]
			if tr.Next != 0 {
				continue
			}
			for i := uint32(0); i < dfaStates; i++ {
				row := uint32(states)*i + uint32(f)
				if sym == 0 {
					r0[row].SetBit(halt)
				} else {
					r1[row].SetBit(halt)
				}
			}
		}
	}

	var a Vector
	a.SetBit(halt)
	return r0, r1, a
}

// reconstructNFA rebuilds R/a from a complete DFA table in one pass
// (original's FiniteAutomataReduction::ReconstructNFA): this is exactly
// extendNFA applied for k = 1..2*dfaStates against a DFA that is already
// fully known, rather than being discovered incrementally with backtracking.
func reconstructNFA(spec tm.Spec, states uint8, direction uint8, dfaStates uint32, dfa [][2]uint8) (Matrix, Matrix, Vector) {
	nfaStates := uint32(states)*dfaStates + 1
	halt := nfaStates - 1

	s := &search{machineStates: states, direction: direction, spec: spec}
	for i := uint32(0); i < dfaStates; i++ {
		s.dfa[2*i] = dfa[i][0]
		s.dfa[2*i+1] = dfa[i][1]
	}

	r0, r1, a := baseNFA(spec, states, dfaStates, nfaStates, halt)
	r := [2]Matrix{r0, r1}
	for k := uint32(1); k <= 2*dfaStates; k++ {
		s.extendNFA(r, &a, k)
	}
	return r[0], r[1], a
}

// checkCertificate implements the structural invariants of
// original_source/FAR/FAR_Verifier.cpp Verify(): the DFA is well-formed and
// rooted at state 0, the NFA closure is a fixed point of R[0] that rejects
// the initial configuration, the halt state is absorbing and reachable from
// every halting transition, and every machine transition is represented by
// a direct edge (right-rule) or an already-saturated composition
// (left-rule) in R[Direction]/R[1-Direction].
func checkCertificate(spec tm.Spec, states uint8, direction uint8, dfaStates uint32, dfa [][2]uint8, halt uint32, r [2]Matrix, a Vector) error {
	for i := uint32(0); i < dfaStates; i++ {
		if uint32(dfa[i][0]) >= dfaStates || uint32(dfa[i][1]) >= dfaStates {
			return fmt.Errorf("dfa state %d has an out-of-range transition", i)
		}
	}
	if dfa[0][0] != 0 {
		return fmt.Errorf("dfa transition (state 0, symbol 0) must stay at state 0")
	}
	if MatVecMul(r[0], a) != a {
		return fmt.Errorf("accepting vector is not a fixed point of R[0]")
	}
	if r[0][0].Intersects(a) {
		return fmt.Errorf("initial NFA configuration already accepts")
	}
	if !a.Bit(halt) {
		return fmt.Errorf("accepting vector does not include the halt state")
	}
	if !r[0][halt].Bit(halt) || !r[1][halt].Bit(halt) {
		return fmt.Errorf("halt state is not absorbing under both read symbols")
	}

	for f := uint8(0); f < states; f++ {
		for sym := uint8(0); sym < 2; sym++ {
			tr := spec.Table[f+1][sym]
			if tr.Next == 0 {
				for i := uint32(0); i < dfaStates; i++ {
					row := uint32(states)*i + uint32(f)
					if !r[sym][row].Bit(halt) {
						return fmt.Errorf("halting transition at state %d symbol %d is not represented in R[%d]", f, sym, sym)
					}
				}
				continue
			}

			w := tr.Write
			t := tr.Next - 1
			if uint8(tr.Move) == direction {
				for i := uint32(0); i < dfaStates; i++ {
					dst := uint32(dfa[i][w])
					row := uint32(states)*i + uint32(f)
					col := uint32(states)*dst + uint32(t)
					if !r[sym][row].Bit(col) {
						return fmt.Errorf("right-rule transition at state %d symbol %d is not represented", f, sym)
					}
				}
			} else {
				for i := uint32(0); i < dfaStates; i++ {
					for b := uint8(0); b < 2; b++ {
						dst := uint32(dfa[i][b])
						row := uint32(states)*dst + uint32(f)
						v := VecMatMul(r[b][uint32(states)*i+uint32(t)], r[w])
						if !v.LE(r[sym][row]) {
							return fmt.Errorf("left-rule closure at state %d symbol %d is incomplete", f, sym)
						}
					}
				}
			}
		}
	}
	return nil
}

// Verify checks a FAR_DFA_ONLY certificate against spec, reconstructing the
// NFA from the DFA first (original's Verify() with Tag == FAR_DFA_ONLY).
func Verify(spec tm.Spec, states uint8, cert Certificate) error {
	if cert.DFAStates == 0 || cert.DFAStates > MaxDFAStates || uint32(len(cert.DFA)) != cert.DFAStates {
		return fmt.Errorf("far: malformed certificate: %d dfa states, %d entries", cert.DFAStates, len(cert.DFA))
	}
	nfaStates := uint32(states)*cert.DFAStates + 1
	halt := nfaStates - 1
	r0, r1, a := reconstructNFA(spec, states, cert.Direction, cert.DFAStates, cert.DFA)
	return checkCertificate(spec, states, cert.Direction, cert.DFAStates, cert.DFA, halt, [2]Matrix{r0, r1}, a)
}

// VerifyNFA checks a FAR_DFA_NFA certificate directly against the recorded
// R/a (original's Verify() with Tag == FAR_DFA_NFA). If checkNFA is true it
// additionally reconstructs the NFA from the DFA and requires it to match
// exactly, matching the verifier's "-F" command-line option.
func VerifyNFA(spec tm.Spec, states uint8, cert NFACertificate, checkNFA bool) error {
	if cert.DFAStates == 0 || cert.DFAStates > MaxDFAStates || uint32(len(cert.DFA)) != cert.DFAStates {
		return fmt.Errorf("far: malformed certificate: %d dfa states, %d entries", cert.DFAStates, len(cert.DFA))
	}
	wantNFA := uint32(states)*cert.DFAStates + 1
	if cert.NFAStates != wantNFA {
		return fmt.Errorf("far: nfa states %d, want %d for %d dfa states", cert.NFAStates, wantNFA, cert.DFAStates)
	}
	halt := cert.NFAStates - 1
	if err := checkCertificate(spec, states, cert.Direction, cert.DFAStates, cert.DFA, halt, cert.R, cert.A); err != nil {
		return err
	}
	if checkNFA {
		r0, r1, a := reconstructNFA(spec, states, cert.Direction, cert.DFAStates, cert.DFA)
		if !matrixEqual(r0, cert.R[0]) || !matrixEqual(r1, cert.R[1]) || a != cert.A {
			return fmt.Errorf("far: recorded NFA does not match the one reconstructed from the DFA")
		}
	}
	return nil
}

func maxU8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

func matrixEqual(a, b Matrix) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
