// Package bouncer implements the Bouncer decider/verifier pair of spec.md
// §4.6: certification that a machine's tape settles into a repeating
// pattern of alternating fixed walls and growing periodic "repeater" runs,
// so that the tape after one super-cycle is a provably-equivalent,
// provably-larger copy of the tape before it.
//
// Grounded on original_source/Bouncers/Bouncer.h/.cpp (shared tape-descriptor
// machinery used by both the decider and the verifier in the source) and
// BouncerVerifier.h/.cpp (the certificate replay driver). Design note §9
// ("deep inheritance... re-express as composition... a free-standing
// BouncerCore type that owns run/descriptor machinery") is realised
// directly: Core holds only nPartitions and exposes CheckTape,
// CheckTransition, CheckWallTransition, CheckRepeaterTransition,
// CheckTapesEquivalent as plain methods, consumed by Verify here and,
// through Verify's self-check in decider.go, by the decider.
package bouncer

import (
	"fmt"

	"github.com/bbchallenge/decider-core/internal/conv"
	"github.com/bbchallenge/decider-core/tm"
)

// Limits from Bouncer.h.
const (
	MaxPartitions = 16
	MaxRuns       = 500
)

// BouncerType classifies how the tape's bounding box grows across a
// super-cycle (spec.md §4.6 step 4).
type BouncerType uint8

const (
	TypeUnknown BouncerType = iota
	TypeUnilateral
	TypeBilateral
	TypeTranslated
	// TypeBell is "not a bouncer but counted anyway" (original's comment):
	// a bilateral machine whose records fall outside the detected cycle
	// bounds. It is never a valid certificate type (see Verify).
	TypeBell
)

func (t BouncerType) String() string {
	switch t {
	case TypeUnilateral:
		return "unilateral"
	case TypeBilateral:
		return "bilateral"
	case TypeTranslated:
		return "translated"
	case TypeBell:
		return "bell"
	default:
		return "unknown"
	}
}

// Segment is a self-contained simulated run of tape: a substring plus the
// state and head position (relative to the substring) at one endpoint of a
// Transition (spec.md §3 "Run (Bouncer)").
type Segment struct {
	State uint8
	Head  int
	Tape  []uint8
}

// Transition replays nSteps from Initial and must land exactly on Final.
// Final.Head may lie one cell outside Final.Tape: the segment's neighbour
// is expected to continue from there (Bouncer.cpp CheckTransition).
type Transition struct {
	NSteps  uint32
	Initial Segment
	Final   Segment
}

// TapeDescriptor is the alternating Wall/Repeater tape encoding of spec.md
// §3: Wall[0] RepeaterCount[0]*Repeater[0] Wall[1] ... Wall[nPartitions].
// Leftmost and Rightmost are not carried on the wire (spec.md §6): the
// verifier reconstructs them from the certificate's InitialLeftmost/
// InitialRightmost and FinalLeftmost/FinalRightmost, since the represented
// tape span is invariant across every TapeDescriptor inside one
// super-cycle (moving a repeater copy into a wall does not change the
// total length it represents) until the final augmentation step.
type TapeDescriptor struct {
	State          uint8
	TapeHeadWall   uint32
	TapeHeadOffset int
	Leftmost       int
	Rightmost      int
	Wall           [][]uint8 // length nPartitions+1
	Repeater       [][]uint8 // length nPartitions
	RepeaterCount  []uint32  // length nPartitions
}

// clone deep-copies a TapeDescriptor (original's TapeDescriptor::operator=,
// used everywhere a Check* method takes "by value, not by reference" so it
// is free to mutate its own copy).
func (td TapeDescriptor) clone() TapeDescriptor {
	out := TapeDescriptor{
		State:          td.State,
		TapeHeadWall:   td.TapeHeadWall,
		TapeHeadOffset: td.TapeHeadOffset,
		Leftmost:       td.Leftmost,
		Rightmost:      td.Rightmost,
		Wall:           make([][]uint8, len(td.Wall)),
		Repeater:       make([][]uint8, len(td.Repeater)),
		RepeaterCount:  append([]uint32(nil), td.RepeaterCount...),
	}
	for i, w := range td.Wall {
		out.Wall[i] = append([]uint8(nil), w...)
	}
	for i, r := range td.Repeater {
		out.Repeater[i] = append([]uint8(nil), r...)
	}
	return out
}

// RunDescriptor is one (partition, RepeaterTransition, TD0, WallTransition,
// TD1) entry of a super-cycle (spec.md §3 "Run (Bouncer)").
type RunDescriptor struct {
	Partition          uint8
	RepeaterTransition Transition
	TD0                TapeDescriptor
	WallTransition     Transition
	TD1                TapeDescriptor
}

// Certificate is the Bouncer non-halting proof of spec.md §4.6, §6.
type Certificate struct {
	Type             BouncerType
	NPartitions      uint8
	InitialSteps     uint32
	InitialLeftmost  int32
	InitialRightmost int32
	FinalSteps       uint32
	FinalLeftmost    int32
	FinalRightmost   int32
	RepeaterCount    []uint32 // length NPartitions
	InitialTape      TapeDescriptor
	Runs             []RunDescriptor
}

// Core owns the tape-descriptor machinery shared by decision and
// verification (design note §9's BouncerCore), parameterised only by how
// many partitions the descriptor it is checking has.
type Core struct {
	NPartitions uint32
}

func errf(format string, args ...any) error {
	return fmt.Errorf("bouncer: "+format, args...)
}

// CheckTape walks TD cell-by-cell against the live machine's tape and
// state, matching Bouncer::CheckTape.
func (c Core) CheckTape(m *tm.Machine, td TapeDescriptor) error {
	if td.State != m.State() {
		return errf("tape descriptor state %d does not match machine state %d", td.State, m.State())
	}
	if td.TapeHeadWall > c.NPartitions {
		return errf("tape head wall %d exceeds partition count %d", td.TapeHeadWall, c.NPartitions)
	}

	tapeHead := td.Leftmost
	for i := uint32(0); ; i++ {
		if i == td.TapeHeadWall && m.Head() != tapeHead+td.TapeHeadOffset {
			return errf("tape head %d does not match wall %d offset %d (expected %d)",
				m.Head(), i, td.TapeHeadOffset, tapeHead+td.TapeHeadOffset)
		}
		for _, b := range td.Wall[i] {
			if !m.InBounds(tapeHead) || m.ReadAt(tapeHead) != b {
				return errf("wall %d mismatch at tape position %d", i, tapeHead)
			}
			tapeHead++
		}
		if i == c.NPartitions {
			break
		}
		for j := uint32(0); j < td.RepeaterCount[i]; j++ {
			for _, b := range td.Repeater[i] {
				if !m.InBounds(tapeHead) || m.ReadAt(tapeHead) != b {
					return errf("repeater %d mismatch at tape position %d", i, tapeHead)
				}
				tapeHead++
			}
		}
	}
	if tapeHead != td.Rightmost+1 {
		return errf("tape descriptor spans to %d, want %d", tapeHead-1, td.Rightmost)
	}
	return nil
}

// CheckTransition replays Tr.NSteps from Tr.Initial against spec and
// requires the result to land exactly on Tr.Final, matching
// Bouncer::CheckTransition. states bounds the valid machine state range
// (generalising the original's hardcoded 5-state check to spec.md's
// N in {2..6}).
func (c Core) CheckTransition(spec tm.Spec, states uint8, tr Transition) error {
	if len(tr.Initial.Tape) != len(tr.Final.Tape) {
		return errf("transition initial/final tape length mismatch: %d vs %d", len(tr.Initial.Tape), len(tr.Final.Tape))
	}
	if len(tr.Initial.Tape) == 0 {
		if tr.NSteps != 0 {
			return errf("empty-tape transition must have zero steps, got %d", tr.NSteps)
		}
		if tr.Initial.Head != 0 || tr.Final.Head != 0 {
			return errf("empty-tape transition must have zero heads")
		}
		return nil
	}

	if tr.Initial.Head < 0 || tr.Initial.Head >= len(tr.Initial.Tape) {
		return errf("transition initial head %d out of tape bounds [0,%d)", tr.Initial.Head, len(tr.Initial.Tape))
	}
	if tr.Final.Head < -1 || tr.Final.Head > len(tr.Final.Tape) {
		return errf("transition final head %d out of bounds [-1,%d]", tr.Final.Head, len(tr.Final.Tape))
	}

	tape := append([]uint8(nil), tr.Initial.Tape...)
	state := tr.Initial.State
	head := tr.Initial.Head
	for i := uint32(0); i < tr.NSteps; i++ {
		if head < 0 || head >= len(tape) {
			return errf("transition step %d: head %d left the tape", i, head)
		}
		cell := tape[head]
		if cell > 1 {
			return errf("transition step %d: invalid cell value %d", i, cell)
		}
		next := spec.Transition(state, cell)
		tape[head] = next.Write
		if next.Move == tm.MoveLeft {
			head--
		} else {
			head++
		}
		state = next.Next
		if state < 1 || state > states {
			return errf("transition step %d: next state %d out of range [1,%d]", i, state, states)
		}
	}

	if state != tr.Final.State {
		return errf("transition final state %d, want %d", state, tr.Final.State)
	}
	if head != tr.Final.Head {
		return errf("transition final head %d, want %d", head, tr.Final.Head)
	}
	for i := range tape {
		if tape[i] != tr.Final.Tape[i] {
			return errf("transition final tape mismatch at offset %d", i)
		}
	}
	return nil
}

// CheckFollowOn checks that Seg2 is a compatible continuation of Seg1: same
// state, and equal tape contents over their overlap once aligned at their
// respective heads. This is the hard-erroring sibling of
// Bouncer::MatchSegments (same file): "Check that each Transition is
// compatible with its predecessor and follower" (BouncerVerifier::Verify).
// A tape value of tapeAny (3) is a wildcard on either side, matching
// MatchSegments' `(Seg1[i] ^ Seg2[i-Shift]) == 1` test (only a genuine 0/1
// mismatch has XOR 1; TAPE_ANY XORed with 0 or 1 never equals 1).
func (c Core) CheckFollowOn(seg1, seg2 Segment) error {
	if seg1.State != seg2.State {
		return errf("segments disagree on state: %d vs %d", seg1.State, seg2.State)
	}
	if len(seg1.Tape) == 0 || len(seg2.Tape) == 0 {
		return nil
	}

	shift := seg1.Head - seg2.Head
	left := 0
	right := len(seg1.Tape)
	if shift > 0 {
		left = shift
		if left > len(seg1.Tape) {
			return errf("segments do not overlap (shift %d exceeds tape length %d)", shift, len(seg1.Tape))
		}
		if right > len(seg2.Tape)+shift {
			right = len(seg2.Tape) + shift
		}
	} else {
		right = len(seg2.Tape) + shift
		if right > len(seg1.Tape) {
			right = len(seg1.Tape)
		}
	}
	if left > right {
		return errf("segments do not overlap")
	}
	for i := left; i < right; i++ {
		if (seg1.Tape[i] ^ seg2.Tape[i-shift]) == 1 {
			return errf("follow-on tape mismatch at offset %d", i)
		}
	}
	return nil
}

// CheckSegment checks Seg against TD's three logical tape regions
// (repeaters to the left of Wall, Wall itself, repeaters to the right),
// matching Bouncer::CheckSegment.
func (c Core) CheckSegment(td TapeDescriptor, seg Segment, wall uint32) error {
	repeaterLeftmost := 0
	if wall != 0 {
		repeaterLeftmost = -int(td.RepeaterCount[wall-1]) * len(td.Repeater[wall-1])
	}
	wallLeftmost := 0
	wallRightmost := len(td.Wall[wall])
	repeaterRightmost := wallRightmost
	if wall != c.NPartitions {
		repeaterRightmost += int(td.RepeaterCount[wall]) * len(td.Repeater[wall])
	}
	shift := seg.Head - td.TapeHeadOffset
	repeaterLeftmost += shift
	wallLeftmost += shift
	wallRightmost += shift
	repeaterRightmost += shift

	if repeaterLeftmost > 0 {
		return errf("segment overflows left of wall %d", wall)
	}
	if repeaterRightmost < len(seg.Tape) {
		return errf("segment overflows right of wall %d", wall)
	}

	i := 0
	for ; i < len(seg.Tape) && i < wallLeftmost; i++ {
		period := len(td.Repeater[wall-1])
		if seg.Tape[i] != td.Repeater[wall-1][mod(i-repeaterLeftmost, period)] {
			return errf("segment left-repeater mismatch at offset %d", i)
		}
	}
	for ; i < len(seg.Tape) && i < wallRightmost; i++ {
		if seg.Tape[i] != td.Wall[wall][i-wallLeftmost] {
			return errf("segment wall mismatch at offset %d", i)
		}
	}
	for ; i < len(seg.Tape); i++ {
		period := len(td.Repeater[wall])
		if seg.Tape[i] != td.Repeater[wall][mod(i-wallRightmost, period)] {
			return errf("segment right-repeater mismatch at offset %d", i)
		}
	}
	return nil
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// CheckTapesEquivalent is the master tape-equality check of spec.md §4.6
// "Tape-equivalence": for every wall index it builds the union segment of
// TD0 and TD1's wall-plus-flanking-repeaters in a common coordinate system
// (tracked by a running Slippage), requires them equal, and requires each
// partition's repeaters to be rotations of one another by Slippage.
// Matches Bouncer::CheckTapesEquivalent.
func (c Core) CheckTapesEquivalent(td0, td1 TapeDescriptor) error {
	if td0.State != td1.State {
		return errf("tape descriptors disagree on state: %d vs %d", td0.State, td1.State)
	}
	if td0.TapeHeadWall != td1.TapeHeadWall {
		return errf("tape descriptors disagree on tape-head wall: %d vs %d", td0.TapeHeadWall, td1.TapeHeadWall)
	}

	slippage := 0
	for i := uint32(0); ; i++ {
		if i == td0.TapeHeadWall && td0.TapeHeadOffset != td1.TapeHeadOffset+slippage {
			return errf("tape-head offsets disagree at wall %d after slippage %d", i, slippage)
		}

		unionLeft := slippage
		if unionLeft > 0 {
			unionLeft = 0
		}
		unionRight := len(td0.Wall[i])
		if w := len(td1.Wall[i]) + slippage; w > unionRight {
			unionRight = w
		}

		seg0 := make([]uint8, unionRight-unionLeft)
		if i != 0 {
			period := len(td0.Repeater[i-1])
			for j := 0; j < -unionLeft; j++ {
				t := (-unionLeft) % period
				t = j + period - t
				t %= period
				seg0[j] = td0.Repeater[i-1][t]
			}
		}
		for j := 0; j < len(td0.Wall[i]); j++ {
			seg0[j-unionLeft] = td0.Wall[i][j]
		}
		if i != c.NPartitions {
			period := len(td0.Repeater[i])
			for j := len(td0.Wall[i]); j < unionRight; j++ {
				seg0[j-unionLeft] = td0.Repeater[i][(j-len(td0.Wall[i]))%period]
			}
		}

		unionLeft1 := unionLeft - slippage
		unionRight1 := unionRight - slippage
		seg1 := make([]uint8, unionRight1-unionLeft1)
		if i != 0 {
			period := len(td1.Repeater[i-1])
			for j := 0; j < -unionLeft1; j++ {
				t := (-unionLeft1) % period
				t = j + period - t
				t %= period
				seg1[j] = td1.Repeater[i-1][t]
			}
		}
		for j := 0; j < len(td1.Wall[i]); j++ {
			seg1[j-unionLeft1] = td1.Wall[i][j]
		}
		if i != c.NPartitions {
			period := len(td1.Repeater[i])
			for j := len(td1.Wall[i]); j < unionRight1; j++ {
				seg1[j-unionLeft1] = td1.Repeater[i][(j-len(td1.Wall[i]))%period]
			}
		}

		if len(seg0) != len(seg1) {
			return errf("wall %d union segments differ in length: %d vs %d", i, len(seg0), len(seg1))
		}
		for j := range seg0 {
			if seg0[j] != seg1[j] {
				return errf("wall %d union segments differ at offset %d", i, j)
			}
		}

		slippage += len(td1.Wall[i]) - len(td0.Wall[i])

		if i == c.NPartitions {
			break
		}

		if td0.RepeaterCount[i] != td1.RepeaterCount[i] {
			return errf("repeater count %d differs: %d vs %d", i, td0.RepeaterCount[i], td1.RepeaterCount[i])
		}
		period := len(td0.Repeater[i])
		if len(td1.Repeater[i]) != period {
			return errf("repeater %d length differs: %d vs %d", i, period, len(td1.Repeater[i]))
		}
		if slippage >= 0 {
			for j := 0; j < period; j++ {
				if td1.Repeater[i][j] != td0.Repeater[i][(j+slippage)%period] {
					return errf("repeater %d is not a rotation by slippage %d", i, slippage)
				}
			}
		} else {
			for j := 0; j < period; j++ {
				if td1.Repeater[i][mod(j-slippage, period)] != td0.Repeater[i][j] {
					return errf("repeater %d is not a rotation by slippage %d", i, slippage)
				}
			}
		}
	}
	if slippage != 0 {
		return errf("total wall slippage %d is not zero", slippage)
	}
	return nil
}

// ExpandWallsLeftward moves whole repeater copies out of Repeater[wall-1]
// and into Wall[wall] (in both td0 and td1) until at least amount cells
// have moved, requiring a RepeaterCount >= deltaCount+3 safety margin.
// Matches Bouncer::ExpandWallsLeftward.
func (c Core) ExpandWallsLeftward(td0, td1 *TapeDescriptor, wall uint32, amount int) error {
	if amount <= 0 {
		return nil
	}
	if wall == 0 {
		return errf("cannot expand wall 0 leftward")
	}
	period := len(td0.Repeater[wall-1])
	deltaCount := (amount + period - 1) / period
	amount = deltaCount * period

	if int(td0.RepeaterCount[wall-1]) < deltaCount+3 {
		return errf("expanding wall %d leftward would leave repeater count below 3", wall)
	}
	td0.RepeaterCount[wall-1] -= uint32(deltaCount)
	td1.RepeaterCount[wall-1] -= uint32(deltaCount)
	for ; deltaCount > 0; deltaCount-- {
		td0.Wall[wall] = append(append([]uint8(nil), td0.Repeater[wall-1]...), td0.Wall[wall]...)
		td1.Wall[wall] = append(append([]uint8(nil), td1.Repeater[wall-1]...), td1.Wall[wall]...)
	}

	if wall == td0.TapeHeadWall {
		td0.TapeHeadOffset += amount
	}
	if wall == td1.TapeHeadWall {
		td1.TapeHeadOffset += amount
	}
	return nil
}

// ExpandWallsRightward is the mirror of ExpandWallsLeftward, moving
// repeater copies out of Repeater[wall] into the right end of Wall[wall].
// Matches Bouncer::ExpandWallsRightward.
func (c Core) ExpandWallsRightward(td0, td1 *TapeDescriptor, wall uint32, amount int) error {
	if amount <= 0 {
		return nil
	}
	if wall == c.NPartitions {
		return errf("cannot expand wall %d rightward", wall)
	}
	period := len(td0.Repeater[wall])
	deltaCount := (amount + period - 1) / period

	if int(td0.RepeaterCount[wall]) < deltaCount+3 {
		return errf("expanding wall %d rightward would leave repeater count below 3", wall)
	}
	td0.RepeaterCount[wall] -= uint32(deltaCount)
	td1.RepeaterCount[wall] -= uint32(deltaCount)
	for ; deltaCount > 0; deltaCount-- {
		td0.Wall[wall] = append(td0.Wall[wall], td0.Repeater[wall]...)
		td1.Wall[wall] = append(td1.Wall[wall], td1.Repeater[wall]...)
	}
	return nil
}

// ExpandTapeLeftward grows the unbounded outer Wall[0] by amount zero
// cells. Matches Bouncer::ExpandTapeLeftward.
func (c Core) ExpandTapeLeftward(td *TapeDescriptor, amount int) error {
	if amount < 0 {
		return errf("negative leftward tape expansion %d", amount)
	}
	if amount == 0 {
		return nil
	}
	td.Wall[0] = append(make([]uint8, amount), td.Wall[0]...)
	td.Leftmost -= amount
	if td.TapeHeadWall == 0 {
		td.TapeHeadOffset += amount
	}
	return nil
}

// ExpandTapeRightward grows the unbounded outer Wall[nPartitions] by amount
// zero cells. Matches Bouncer::ExpandTapeRightward.
func (c Core) ExpandTapeRightward(td *TapeDescriptor, amount int) error {
	if amount < 0 {
		return errf("negative rightward tape expansion %d", amount)
	}
	if amount == 0 {
		return nil
	}
	td.Wall[c.NPartitions] = append(td.Wall[c.NPartitions], make([]uint8, amount)...)
	td.Rightmost += amount
	return nil
}

// CheckWallTransition checks that tr transforms tape td0 into tape td1
// (matches Bouncer::CheckWallTransition). td0 and td1 are taken by value
// and cloned immediately, mirroring the original's pass-by-value-not-
// reference comment: this function is free to mutate its own copies.
func (c Core) CheckWallTransition(td0In, td1In TapeDescriptor, tr Transition) error {
	td0 := td0In.clone()
	td1 := td1In.clone()

	if td0.State != tr.Initial.State {
		return errf("wall transition: td0 state %d != initial segment state %d", td0.State, tr.Initial.State)
	}
	if td1.State != tr.Final.State {
		return errf("wall transition: td1 state %d != final segment state %d", td1.State, tr.Final.State)
	}
	for i := uint32(0); i < c.NPartitions; i++ {
		if td0.RepeaterCount[i] != td1.RepeaterCount[i] {
			return errf("wall transition: repeater count %d differs", i)
		}
		if len(td0.Repeater[i]) != len(td1.Repeater[i]) {
			return errf("wall transition: repeater %d length differs", i)
		}
	}
	var len0, len1 int
	for i := uint32(0); i <= c.NPartitions; i++ {
		len0 += len(td0.Wall[i])
		len1 += len(td1.Wall[i])
	}
	if len0 != len1 {
		return errf("wall transition: total wall length differs: %d vs %d", len0, len1)
	}

	wall := td0.TapeHeadWall
	if td1.TapeHeadWall != wall {
		return errf("wall transition: tape-head wall differs: %d vs %d", wall, td1.TapeHeadWall)
	}

	if err := c.CheckSegment(td0, tr.Initial, wall); err != nil {
		return err
	}
	if err := c.CheckSegment(td1, tr.Final, wall); err != nil {
		return err
	}

	td0.State = tr.Final.State

	wallLeftmost := 0
	wallRightmost := len(td0.Wall[wall])
	shift := tr.Initial.Head - td0.TapeHeadOffset
	wallLeftmost += shift
	wallRightmost += shift
	if err := c.ExpandWallsLeftward(&td0, &td1, wall, wallLeftmost); err != nil {
		return err
	}
	if err := c.ExpandWallsRightward(&td0, &td1, wall, len(tr.Final.Tape)-wallRightmost); err != nil {
		return err
	}

	if td0.TapeHeadOffset < tr.Initial.Head {
		return errf("wall transition: tape-head offset precedes initial segment head")
	}
	splice := td0.TapeHeadOffset - tr.Initial.Head
	if splice+len(tr.Final.Tape) > len(td0.Wall[wall]) {
		return errf("wall transition: final segment does not fit in the expanded wall")
	}
	copy(td0.Wall[wall][splice:splice+len(tr.Final.Tape)], tr.Final.Tape)
	td0.TapeHeadOffset += tr.Final.Head - tr.Initial.Head

	return c.CheckTapesEquivalent(td0, td1)
}

// CheckRepeaterTransition checks that tr transforms tape td0 into tape td1
// by one period of the repeater at the head's wall (matches
// Bouncer::CheckRepeaterTransition).
func (c Core) CheckRepeaterTransition(td0, td1 TapeDescriptor, tr Transition) error {
	if td0.State != tr.Initial.State {
		return errf("repeater transition: td0 state %d != initial segment state %d", td0.State, tr.Initial.State)
	}
	if td1.State != tr.Final.State {
		return errf("repeater transition: td1 state %d != final segment state %d", td1.State, tr.Final.State)
	}
	if tr.Initial.State != tr.Final.State {
		return errf("repeater transition must be idempotent in state: %d vs %d", tr.Initial.State, tr.Final.State)
	}
	for i := uint32(0); i < c.NPartitions; i++ {
		if td0.RepeaterCount[i] != td1.RepeaterCount[i] {
			return errf("repeater transition: repeater count %d differs", i)
		}
		if len(td0.Repeater[i]) != len(td1.Repeater[i]) {
			return errf("repeater transition: repeater %d length differs", i)
		}
	}
	var len0, len1 int
	for i := uint32(0); i <= c.NPartitions; i++ {
		len0 += len(td0.Wall[i])
		len1 += len(td1.Wall[i])
	}
	if len0 != len1 {
		return errf("repeater transition: total wall length differs: %d vs %d", len0, len1)
	}

	if err := c.CheckSegment(td0, tr.Initial, td0.TapeHeadWall); err != nil {
		return err
	}
	if err := c.CheckSegment(td1, tr.Final, td1.TapeHeadWall); err != nil {
		return err
	}

	shift := tr.Final.Head - tr.Initial.Head
	if shift == 0 {
		return errf("repeater transition does not move the tape head")
	}
	if shift < 0 {
		return c.checkLeftwardRepeater(td0, td1, tr)
	}
	return c.checkRightwardRepeater(td0, td1, tr)
}

// checkLeftwardRepeater matches Bouncer::CheckLeftwardRepeater: td0 and td1
// are taken by value and cloned, since this function mutates its own
// copies before the final equivalence check.
func (c Core) checkLeftwardRepeater(td0In, td1In TapeDescriptor, tr Transition) error {
	td0 := td0In.clone()
	td1 := td1In.clone()
	td0.State = tr.Final.State

	wall := td0.TapeHeadWall
	if wall == 0 {
		return errf("leftward repeater transition has no partition to its left")
	}
	stride := len(td0.Repeater[wall-1])
	if stride != tr.Initial.Head-tr.Final.Head {
		return errf("leftward repeater stride %d != head shift %d", stride, tr.Initial.Head-tr.Final.Head)
	}

	t := len(tr.Initial.Tape) - tr.Initial.Head
	t -= len(td0.Wall[wall]) - td0.TapeHeadOffset
	if err := c.ExpandWallsRightward(&td0, &td1, wall, t); err != nil {
		return err
	}

	t = tr.Initial.Head - td0.TapeHeadOffset
	t -= len(td0.Wall[wall-1])
	t -= stride
	if err := c.ExpandWallsLeftward(&td0, &td1, wall-1, t); err != nil {
		return err
	}

	if err := c.CheckSegment(td0, tr.Initial, td0.TapeHeadWall); err != nil {
		return err
	}

	overhang := tr.Initial.Head - td0.TapeHeadOffset
	if overhang < 0 {
		return errf("leftward repeater: negative overhang")
	}
	if tr.Initial.Head > len(tr.Initial.Tape)+td0.TapeHeadOffset {
		return errf("leftward repeater: gap between wall and initial segment")
	}

	for i := 0; i < len(tr.Initial.Tape)-overhang; i++ {
		if td0.Wall[wall][i] != tr.Initial.Tape[i+overhang] {
			return errf("leftward repeater: wall does not match initial segment at offset %d", i)
		}
	}

	rotate := overhang % stride
	rotate = stride - rotate
	rotate %= stride
	for i := 0; i < overhang; i++ {
		if tr.Initial.Tape[i] != td0.Repeater[wall-1][(i+rotate)%stride] {
			return errf("leftward repeater: overhang is not an aligned repeater copy at offset %d", i)
		}
	}

	for i := 0; i < overhang-stride; i++ {
		if tr.Initial.Tape[i] != td0.Wall[wall-1][i+len(td0.Wall[wall-1])-overhang+stride] {
			return errf("leftward repeater: destination wall tail mismatch at offset %d", i)
		}
	}

	td0.TapeHeadOffset = len(td0.Wall[wall-1]) + tr.Initial.Head - overhang
	td0.Wall[wall-1] = append(td0.Wall[wall-1], tr.Initial.Tape[overhang:]...)
	td0.Wall[wall] = append([]uint8(nil), td0.Wall[wall][len(tr.Initial.Tape)-overhang:]...)

	for i := 0; i < stride; i++ {
		td0.Repeater[wall-1][i] = tr.Final.Tape[len(tr.Final.Tape)-stride+i]
	}
	td0.TapeHeadWall = wall - 1

	return c.CheckTapesEquivalent(td0, td1)
}

// checkRightwardRepeater matches Bouncer::CheckRightwardRepeater.
func (c Core) checkRightwardRepeater(td0In, td1In TapeDescriptor, tr Transition) error {
	td0 := td0In.clone()
	td1 := td1In.clone()
	td0.State = tr.Final.State

	wall := td0.TapeHeadWall
	stride := len(td0.Repeater[wall])
	if stride != tr.Final.Head-tr.Initial.Head {
		return errf("rightward repeater stride %d != head shift %d", stride, tr.Final.Head-tr.Initial.Head)
	}

	t := tr.Initial.Head - td0.TapeHeadOffset
	if err := c.ExpandWallsLeftward(&td0, &td1, wall, t); err != nil {
		return err
	}

	t = len(tr.Initial.Tape) - tr.Initial.Head
	t -= len(td0.Wall[wall]) - td0.TapeHeadOffset
	t -= len(td0.Wall[wall+1])
	t -= stride
	if err := c.ExpandWallsRightward(&td0, &td1, wall+1, t); err != nil {
		return err
	}

	if err := c.CheckSegment(td0, tr.Initial, td0.TapeHeadWall); err != nil {
		return err
	}

	initOffset := td0.TapeHeadOffset - tr.Initial.Head
	if initOffset < 0 {
		return errf("rightward repeater: negative init offset")
	}

	overhang := initOffset + len(tr.Initial.Tape) - len(td0.Wall[wall])
	if overhang < 0 {
		return errf("rightward repeater: negative overhang")
	}
	if td0.TapeHeadOffset > len(td0.Wall[wall])+tr.Initial.Head {
		return errf("rightward repeater: gap between wall and initial segment")
	}

	for i := initOffset; i < len(td0.Wall[wall]); i++ {
		if td0.Wall[wall][i] != tr.Initial.Tape[i-initOffset] {
			return errf("rightward repeater: wall does not match initial segment at offset %d", i)
		}
	}

	for i := len(td0.Wall[wall]) - initOffset; i < len(tr.Initial.Tape); i++ {
		if tr.Initial.Tape[i] != td0.Repeater[wall][(i-(len(td0.Wall[wall])-initOffset))%stride] {
			return errf("rightward repeater: overhang is not an aligned repeater copy at offset %d", i)
		}
	}

	for i := len(td0.Wall[wall]) - initOffset + stride; i < len(tr.Initial.Tape); i++ {
		if tr.Initial.Tape[i] != td0.Wall[wall+1][i-(len(td0.Wall[wall])-initOffset+stride)] {
			return errf("rightward repeater: destination wall head mismatch at offset %d", i)
		}
	}

	prefixLen := len(td0.Wall[wall]) - initOffset
	td0.Wall[wall+1] = append(append([]uint8(nil), tr.Initial.Tape[:prefixLen]...), td0.Wall[wall+1]...)
	td0.Wall[wall] = append([]uint8(nil), td0.Wall[wall][:initOffset]...)

	for i := 0; i < stride; i++ {
		td0.Repeater[wall][i] = tr.Final.Tape[i]
	}
	td0.TapeHeadOffset = tr.Initial.Head
	td0.TapeHeadWall = wall + 1

	return c.CheckTapesEquivalent(td0, td1)
}

// Verify replays a Bouncer certificate against spec from the start of the
// tape, matching BouncerVerifier::Verify. states bounds the valid machine
// state range (spec.md §3: N in {2..6}), generalising the original's
// hardcoded 5-state checks in ReadSegment/ReadTapeDescriptor.
func Verify(spec tm.Spec, states uint8, cert Certificate) error {
	if cert.Type != TypeUnilateral && cert.Type != TypeBilateral && cert.Type != TypeTranslated {
		return errf("certificate type %s is not a valid bouncer certificate", cert.Type)
	}
	if cert.NPartitions > MaxPartitions {
		return errf("partition count %d exceeds limit %d", cert.NPartitions, MaxPartitions)
	}
	if len(cert.Runs) > MaxRuns {
		return errf("run count %d exceeds limit %d", len(cert.Runs), MaxRuns)
	}
	if uint32(len(cert.RepeaterCount)) != uint32(cert.NPartitions) {
		return errf("repeater count array has %d entries, want %d", len(cert.RepeaterCount), cert.NPartitions)
	}

	core := Core{NPartitions: uint32(cert.NPartitions)}

	space := absInt(int(cert.FinalLeftmost))
	if r := absInt(int(cert.FinalRightmost)); r > space {
		space = r
	}
	m := tm.NewMachine(space + 1)
	m.Init(0, spec)
	for m.StepCount() < uint64(cert.InitialSteps) {
		if m.Step() != tm.StepOK {
			return errf("machine halted or left the tape before reaching the initial step count")
		}
	}
	if int32(m.Leftmost()) != cert.InitialLeftmost || int32(m.Rightmost()) != cert.InitialRightmost {
		return errf("leftmost/rightmost at the initial step do not match the certificate")
	}

	initialTape := cert.InitialTape
	initialTape.RepeaterCount = cert.RepeaterCount
	initialTape.Leftmost = int(cert.InitialLeftmost)
	initialTape.Rightmost = int(cert.InitialRightmost)
	if err := core.CheckTape(m, initialTape); err != nil {
		return err
	}

	var previousSeg, firstSeg Segment
	previousTape := initialTape.clone()
	for i, rd := range cert.Runs {
		if err := core.CheckTransition(spec, states, rd.RepeaterTransition); err != nil {
			return err
		}
		if err := core.CheckTransition(spec, states, rd.WallTransition); err != nil {
			return err
		}

		if i == 0 {
			firstSeg = rd.RepeaterTransition.Initial
		} else if err := core.CheckFollowOn(previousSeg, rd.RepeaterTransition.Initial); err != nil {
			return err
		}
		if err := core.CheckFollowOn(rd.RepeaterTransition.Final, rd.RepeaterTransition.Initial); err != nil {
			return err
		}
		if len(rd.WallTransition.Initial.Tape) == 0 {
			previousSeg = rd.RepeaterTransition.Final
		} else {
			if err := core.CheckFollowOn(rd.RepeaterTransition.Final, rd.WallTransition.Initial); err != nil {
				return err
			}
			previousSeg = rd.WallTransition.Final
		}

		repeaterSteps := uint64(rd.RepeaterTransition.NSteps) * uint64(cert.RepeaterCount[rd.Partition])
		for j := uint64(0); j < repeaterSteps; j++ {
			if m.Step() != tm.StepOK {
				return errf("machine halted or left the tape during run %d's repeater steps", i)
			}
		}
		td0 := rd.TD0
		td0.RepeaterCount = cert.RepeaterCount
		td0.Leftmost, td0.Rightmost = int(cert.FinalLeftmost), int(cert.FinalRightmost)
		if err := core.CheckTape(m, td0); err != nil {
			return err
		}
		if err := core.CheckRepeaterTransition(previousTape, td0, rd.RepeaterTransition); err != nil {
			return err
		}

		for j := uint32(0); j < rd.WallTransition.NSteps; j++ {
			if m.Step() != tm.StepOK {
				return errf("machine halted or left the tape during run %d's wall steps", i)
			}
		}
		td1 := rd.TD1
		td1.RepeaterCount = cert.RepeaterCount
		td1.Leftmost, td1.Rightmost = int(cert.FinalLeftmost), int(cert.FinalRightmost)
		if err := core.CheckTape(m, td1); err != nil {
			return err
		}
		if err := core.CheckWallTransition(td0, td1, rd.WallTransition); err != nil {
			return err
		}

		previousTape = td1.clone()
	}

	if err := core.CheckFollowOn(previousSeg, firstSeg); err != nil {
		return err
	}

	if m.StepCount() != uint64(cert.FinalSteps) {
		return errf("final step count %d does not match certificate's %d", m.StepCount(), cert.FinalSteps)
	}
	if int32(m.Leftmost()) != cert.FinalLeftmost || int32(m.Rightmost()) != cert.FinalRightmost {
		return errf("leftmost/rightmost at the final step do not match the certificate")
	}

	// Augmenting every wall in the initial descriptor by one copy of its
	// repeater should produce a tape equivalent to the final descriptor
	// (spec.md §8 "Bouncer equivalence").
	augmented := initialTape.clone()
	for i := uint32(0); i < core.NPartitions; i++ {
		augmented.Wall[i] = append(augmented.Wall[i], augmented.Repeater[i]...)
	}
	leftShift := int(cert.InitialLeftmost) - int(cert.FinalLeftmost)
	rightShift := int(cert.FinalRightmost) - int(cert.InitialRightmost)
	previousTape.Wall[0] = append(make([]uint8, leftShift), previousTape.Wall[0]...)
	previousTape.Wall[core.NPartitions] = append(previousTape.Wall[core.NPartitions], make([]uint8, rightShift)...)
	augmented.Leftmost = int(cert.FinalLeftmost) - leftShift
	previousTape.Leftmost = augmented.Leftmost
	augmented.Rightmost = int(cert.FinalRightmost) + rightShift
	previousTape.Rightmost = augmented.Rightmost
	if augmented.TapeHeadWall == 0 {
		previousTape.TapeHeadOffset += leftShift
	}

	return core.CheckTapesEquivalent(augmented, previousTape)
}

// --- Certificate encoding (spec.md §6) ---
//
// Wire layout: u8 bouncer_type; u8 nPartitions; u16 nRuns; u32 initialSteps;
// i32 initialLeftmost; i32 initialRightmost; u32 finalSteps;
// i32 finalLeftmost; i32 finalRightmost; u16 repeaterCount[nPartitions];
// TapeDescriptor initialTape; RunDescriptor run[nRuns].
//
// nRuns is encoded as a big-endian u16, not u8: original's
// BouncerVerifier::Verify reads it with Read16u, and the stated bound of up
// to MaxRuns=500 (spec.md §8, exercised by seed #3957107 with 156 runs)
// does not fit in a single byte.
//
// TapeDescriptor on the wire carries no RepeaterCount, Leftmost, or
// Rightmost: RepeaterCount is the certificate-level array (constant across
// every descriptor in one super-cycle), and Leftmost/Rightmost are
// reconstructed from InitialLeftmost/InitialRightmost and
// FinalLeftmost/FinalRightmost, matching
// BouncerVerifier::ReadTapeDescriptor's `TD.Leftmost = TapeLeftmost`.

type writer struct{ buf []byte }

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = append(w.buf, byte(v>>8), byte(v)) }
func (w *writer) i16(v int16)  { w.u16(uint16(v)) }
func (w *writer) u32(v uint32) {
	w.buf = append(w.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
func (w *writer) i32(v int32) { w.u32(uint32(v)) }
func (w *writer) bytes(b []byte) {
	w.u16(conv.IntToUint16(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) segment(s Segment) {
	w.u8(s.State)
	w.i16(conv.IntToInt16(s.Head))
	w.bytes(s.Tape)
}

func (w *writer) transition(t Transition) {
	w.u16(conv.IntToUint16(int(t.NSteps)))
	w.segment(t.Initial)
	w.segment(t.Final)
}

func (w *writer) tapeDescriptor(td TapeDescriptor, nPartitions uint8) {
	w.u8(td.State)
	w.u8(conv.IntToUint8(int(td.TapeHeadWall)))
	w.i16(conv.IntToInt16(td.TapeHeadOffset))
	for i := 0; i <= int(nPartitions); i++ {
		w.bytes(td.Wall[i])
	}
	for i := 0; i < int(nPartitions); i++ {
		w.bytes(td.Repeater[i])
	}
}

// Encode serialises the certificate for a dvf BOUNCER entry.
func (c Certificate) Encode() []byte {
	w := &writer{}
	w.u8(uint8(c.Type))
	w.u8(c.NPartitions)
	w.u16(conv.IntToUint16(len(c.Runs)))
	w.u32(c.InitialSteps)
	w.i32(c.InitialLeftmost)
	w.i32(c.InitialRightmost)
	w.u32(c.FinalSteps)
	w.i32(c.FinalLeftmost)
	w.i32(c.FinalRightmost)
	for i := 0; i < int(c.NPartitions); i++ {
		w.u16(conv.IntToUint16(int(c.RepeaterCount[i])))
	}
	w.tapeDescriptor(c.InitialTape, c.NPartitions)
	for _, rd := range c.Runs {
		w.u8(rd.Partition)
		w.transition(rd.RepeaterTransition)
		w.tapeDescriptor(rd.TD0, c.NPartitions)
		w.transition(rd.WallTransition)
		w.tapeDescriptor(rd.TD1, c.NPartitions)
	}
	return w.buf
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.buf) {
		return 0, errf("unexpected end of certificate")
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.pos+2 > len(r.buf) {
		return 0, errf("unexpected end of certificate")
	}
	v := uint16(r.buf[r.pos])<<8 | uint16(r.buf[r.pos+1])
	r.pos += 2
	return v, nil
}

func (r *reader) i16() (int16, error) {
	v, err := r.u16()
	return int16(v), err
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, errf("unexpected end of certificate")
	}
	v := uint32(r.buf[r.pos])<<24 | uint32(r.buf[r.pos+1])<<16 | uint32(r.buf[r.pos+2])<<8 | uint32(r.buf[r.pos+3])
	r.pos += 4
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, errf("unexpected end of certificate")
	}
	b := append([]uint8(nil), r.buf[r.pos:r.pos+int(n)]...)
	r.pos += int(n)
	return b, nil
}

func (r *reader) segment() (Segment, error) {
	state, err := r.u8()
	if err != nil {
		return Segment{}, err
	}
	head, err := r.i16()
	if err != nil {
		return Segment{}, err
	}
	tape, err := r.bytes()
	if err != nil {
		return Segment{}, err
	}
	return Segment{State: state, Head: int(head), Tape: tape}, nil
}

func (r *reader) transition() (Transition, error) {
	nSteps, err := r.u16()
	if err != nil {
		return Transition{}, err
	}
	initial, err := r.segment()
	if err != nil {
		return Transition{}, err
	}
	final, err := r.segment()
	if err != nil {
		return Transition{}, err
	}
	return Transition{NSteps: uint32(nSteps), Initial: initial, Final: final}, nil
}

func (r *reader) tapeDescriptor(nPartitions uint8) (TapeDescriptor, error) {
	state, err := r.u8()
	if err != nil {
		return TapeDescriptor{}, err
	}
	tapeHeadWall, err := r.u8()
	if err != nil {
		return TapeDescriptor{}, err
	}
	tapeHeadOffset, err := r.i16()
	if err != nil {
		return TapeDescriptor{}, err
	}
	td := TapeDescriptor{
		State:          state,
		TapeHeadWall:   uint32(tapeHeadWall),
		TapeHeadOffset: int(tapeHeadOffset),
		Wall:           make([][]uint8, int(nPartitions)+1),
		Repeater:       make([][]uint8, int(nPartitions)),
	}
	for i := 0; i <= int(nPartitions); i++ {
		w, err := r.bytes()
		if err != nil {
			return TapeDescriptor{}, err
		}
		td.Wall[i] = w
	}
	for i := 0; i < int(nPartitions); i++ {
		rep, err := r.bytes()
		if err != nil {
			return TapeDescriptor{}, err
		}
		td.Repeater[i] = rep
	}
	return td, nil
}

// Decode parses a dvf BOUNCER info payload.
func Decode(info []byte) (Certificate, error) {
	r := &reader{buf: info}
	bt, err := r.u8()
	if err != nil {
		return Certificate{}, err
	}
	nPartitions, err := r.u8()
	if err != nil {
		return Certificate{}, err
	}
	if nPartitions > MaxPartitions {
		return Certificate{}, errf("partition count %d exceeds limit %d", nPartitions, MaxPartitions)
	}
	nRuns, err := r.u16()
	if err != nil {
		return Certificate{}, err
	}
	if nRuns > MaxRuns {
		return Certificate{}, errf("run count %d exceeds limit %d", nRuns, MaxRuns)
	}
	initialSteps, err := r.u32()
	if err != nil {
		return Certificate{}, err
	}
	initialLeftmost, err := r.i32()
	if err != nil {
		return Certificate{}, err
	}
	initialRightmost, err := r.i32()
	if err != nil {
		return Certificate{}, err
	}
	finalSteps, err := r.u32()
	if err != nil {
		return Certificate{}, err
	}
	finalLeftmost, err := r.i32()
	if err != nil {
		return Certificate{}, err
	}
	finalRightmost, err := r.i32()
	if err != nil {
		return Certificate{}, err
	}

	repeaterCount := make([]uint32, nPartitions)
	for i := range repeaterCount {
		rc, err := r.u16()
		if err != nil {
			return Certificate{}, err
		}
		repeaterCount[i] = uint32(rc)
	}

	initialTape, err := r.tapeDescriptor(nPartitions)
	if err != nil {
		return Certificate{}, err
	}

	runs := make([]RunDescriptor, nRuns)
	for i := range runs {
		partition, err := r.u8()
		if err != nil {
			return Certificate{}, err
		}
		repeaterTr, err := r.transition()
		if err != nil {
			return Certificate{}, err
		}
		td0, err := r.tapeDescriptor(nPartitions)
		if err != nil {
			return Certificate{}, err
		}
		wallTr, err := r.transition()
		if err != nil {
			return Certificate{}, err
		}
		td1, err := r.tapeDescriptor(nPartitions)
		if err != nil {
			return Certificate{}, err
		}
		runs[i] = RunDescriptor{
			Partition:          partition,
			RepeaterTransition: repeaterTr,
			TD0:                td0,
			WallTransition:     wallTr,
			TD1:                td1,
		}
	}

	if r.pos != len(r.buf) {
		return Certificate{}, errf("certificate has %d trailing bytes", len(r.buf)-r.pos)
	}

	return Certificate{
		Type:             BouncerType(bt),
		NPartitions:      nPartitions,
		InitialSteps:     initialSteps,
		InitialLeftmost:  initialLeftmost,
		InitialRightmost: initialRightmost,
		FinalSteps:       finalSteps,
		FinalLeftmost:    finalLeftmost,
		FinalRightmost:   finalRightmost,
		RepeaterCount:    repeaterCount,
		InitialTape:      initialTape,
		Runs:             runs,
	}, nil
}
