// Certificate construction: grounded on BouncerDecider.cpp's FindRuns,
// FindRepeat, AssignPartitions, GetMaxWallExtents, EqualiseRepeaters,
// MakeRunDescriptors/ConvertRunData, AnalyseTape_Wall, AnalyseTape_Repeater,
// GetRepeaterExtent_leftward/rightward, DecrementRepeaterCount, RemoveGap
// and TruncateWall (original_source/Bouncers/BouncerDecider.cpp, roughly
// lines 160-1660).
//
// This port is scoped to single-partition (nPartitions == 1) Unilateral
// and Bilateral bouncers: a growing repeater flanked by one or two fixed
// walls, with no interior wall ever splitting the tape into further
// partitions. OldFindRepeat (dead code behind an `#if 0` in the original)
// is not ported. Translated bouncers and genuine multi-partition
// configurations are detected (FindRuns/AssignPartitions still run) but
// declined rather than certified; see DESIGN.md's [[bouncer]] entry for
// why, and for what a fuller port would still need
// (MakeTranslatedBouncerData and the partition-boundary terms
// GetRepeaterExtent_*/AnalyseTape_* drop when nPartitions == 1).
//
// Where the original treats an inconsistency as an unconditional abort
// (TM_ERROR, e.g. a repeater-count shortfall that only has a neighbouring
// partition to borrow from), this port has no such neighbour to fall back
// on by construction, so it declines the whole candidate instead of
// crashing the run. The original's own retry loop (DecrementRepeaterCount,
// capped at 3 attempts) still runs as ported. Every emitted Certificate is
// checked against Verify before Decide returns it, so a mistake in this
// file can only ever cost a missed detection, never a wrong one.
package bouncer

import (
	"github.com/bbchallenge/decider-core/tm"
)

// config is one recorded (tape head, state, cell-before-step) triple,
// matching BouncerDecider::Config. Equality (used throughout FindRuns and
// FindRepeat) compares State and Cell only, never TapeHead.
type config struct {
	tapeHead int
	state    uint8
	cell     uint8
}

func (c config) eq(o config) bool { return c.state == o.state && c.cell == o.cell }

// tapeAny is TAPE_ANY (Bouncer.h): a transition-tape cell whose initial
// value is unconstrained because ConvertRunData never observed it being
// read.
const tapeAny uint8 = 3

// runData is BouncerDecider::RunData translated to ws-relative offsets in
// place of Config pointers: repeaterOff/wallOff index the same shared
// config trace FindRuns was given, exactly as Repeater/Wall pointers index
// the same ConfigWorkspace array in the original.
type runData struct {
	partition      uint8
	direction      int8 // +1 rightward, -1 leftward
	hasRepeater    bool
	repeaterOff    int
	repeaterShift  int
	repeaterSteps  uint32
	repeaterPeriod uint32
	repeaterCount  uint32
	wallOff        int
	wallSteps      uint32
}

type partitionData struct {
	repeaterShift      int
	repeaterCount      uint32
	maxLeftWallExtent  int
	minRightWallExtent int
}

func gcd(x, y int) int {
	for y != 0 {
		x, y = y, x%y
	}
	return x
}

func lcm(x, y int) int {
	d := gcd(x, y)
	return x / d * y
}

// findRepeat ports BouncerDecider::FindRepeat: it looks for a Wall
// (matching steps of Cycle1) followed by a Repeater (a periodic segment
// repeated at least 5 times, covering at least a quarter of the matched
// run), and fills in r accordingly.
func findRepeat(ws []config, cycle1, cycle2 int) (runData, bool) {
	var r runData
	r.wallOff = cycle2

	matchLen := 0
	for !ws[cycle1+matchLen].eq(ws[cycle2+matchLen]) {
		matchLen++
	}
	if ws[cycle2+matchLen].state == 0 {
		// Wrapped around.
		r.wallSteps = uint32(matchLen)
		return r, true
	}

	maxRepeaterPeriod := matchLen / 4
	minRepeaterSteps := matchLen / 4

	for period := 1; period < maxRepeaterPeriod; period++ {
		p := period + 1
		for ; p <= matchLen; p++ {
			if !ws[cycle2+matchLen-p].eq(ws[cycle2+matchLen-p+period]) {
				break
			}
		}
		p--
		if p < minRepeaterSteps {
			continue
		}
		repeaterCount := p / period
		if repeaterCount < 5 {
			continue
		}
		if !r.hasRepeater || repeaterCount*period > int(r.repeaterSteps) {
			r.wallSteps = uint32(matchLen - p)
			r.repeaterOff = cycle2 + int(r.wallSteps)
			r.hasRepeater = true
			r.repeaterPeriod = uint32(period)
			r.repeaterSteps = uint32(p)
		}
	}

	if !r.hasRepeater {
		return r, false
	}

	// Cycle2 should have a whole number of repeated segments before it
	// matches Cycle1 again.
	diff := 0
	for ws[cycle2+matchLen+diff].eq(ws[cycle2+matchLen+diff-int(r.repeaterPeriod)]) {
		diff++
	}
	if diff == 0 {
		return r, false
	}
	r.repeaterSteps += uint32(diff)
	if diff%int(r.repeaterPeriod) != 0 {
		if ws[r.repeaterOff+int(r.repeaterSteps)].state != 0 {
			return r, false
		}
		r.repeaterSteps += r.repeaterPeriod - uint32(diff)
	} else {
		r.repeaterPeriod = uint32(diff)
	}

	if ws[r.repeaterOff+int(r.repeaterSteps)].tapeHead > ws[r.repeaterOff].tapeHead {
		r.direction = 1
	} else {
		r.direction = -1
	}
	return r, true
}

// findRuns ports BouncerDecider::FindRuns. cycle1/cycle2 are the starting
// ws offsets of the two replayed cycles; stepCount2 is Cycle2's length,
// used (like the original) to place end-of-cycle sentinels on the first
// run's repeater so FindRepeat's "wrapped around" check has somewhere
// definite to land.
func findRuns(ws []config, cycle1Start, cycle2Start int, stepCount2 uint64) ([]runData, bool) {
	var sentinelSaved [2]config
	originalCycle2 := -1
	defer func() {
		if originalCycle2 >= 0 {
			ws[originalCycle2] = sentinelSaved[0]
			ws[originalCycle2+int(stepCount2)] = sentinelSaved[1]
		}
	}()

	var runs []runData
	cycle1, cycle2 := cycle1Start, cycle2Start
	for {
		if len(runs) >= MaxRuns {
			return nil, false
		}
		r, ok := findRepeat(ws, cycle1, cycle2)
		if !ok {
			return nil, false
		}
		runs = append(runs, r)
		idx := len(runs) - 1

		if idx == 0 {
			if !r.hasRepeater {
				return nil, false
			}
			originalCycle2 = r.repeaterOff
			sentinelSaved[0] = ws[originalCycle2]
			sentinelSaved[1] = ws[originalCycle2+int(stepCount2)]
			ws[originalCycle2].state, ws[originalCycle2].cell = 0, 0
			ws[originalCycle2+int(stepCount2)].state, ws[originalCycle2+int(stepCount2)].cell = 0, 1
		} else {
			prev := &runs[idx-1]
			prev.wallOff = runs[idx].wallOff
			prev.wallSteps = runs[idx].wallSteps
		}

		if !runs[idx].hasRepeater {
			// Wrapped around.
			runs = runs[:idx]
			break
		}

		rr := runs[idx]
		cycle1 += int(rr.repeaterSteps) + int(rr.wallSteps) - int(rr.repeaterPeriod)
		cycle2 += int(rr.repeaterSteps) + int(rr.wallSteps)
		if ws[cycle2].state == 0 {
			// Wrapped around ending in an empty wall.
			runs[idx].wallOff = cycle2
			runs[idx].wallSteps = 0
			break
		}
	}

	if len(runs)%2 == 1 {
		return nil, false
	}
	return runs, true
}

// assignPartitions ports BouncerDecider::AssignPartitions, numbering
// partitions left to right. It reports the partition count it computed
// even when declining, so the caller can log why a witness was out of
// scope; ok is false both for a malformed partition walk and for any
// result other than the single partition this port certifies.
func assignPartitions(runs []runData) (nPartitions uint32, ok bool) {
	n := len(runs)
	partitions := make([]int, n)
	leftmost, rightmost, partition := 0, 0, 0
	for i := 1; i < n; i++ {
		if runs[i].direction == runs[i-1].direction {
			partition += int(runs[i].direction)
		}
		partitions[i] = partition
		if partition < leftmost {
			leftmost = partition
		} else if partition > rightmost {
			rightmost = partition
		}
	}
	if leftmost != 0 && rightmost != 0 {
		return 0, false
	}
	if partitions[n-1] != 0 {
		return 0, false
	}

	nPartitions = uint32(rightmost - leftmost + 1)
	if nPartitions > MaxPartitions {
		return 0, false
	}
	for i := 0; i < n; i++ {
		runs[i].partition = uint8(partitions[i] - leftmost)
	}
	return nPartitions, nPartitions == 1
}

// getMaxWallExtents ports BouncerDecider::GetMaxWallExtents, minus the
// TB_Direction cases (always 0 outside Translated bouncers, which this
// port never certifies).
func getMaxWallExtents(ws []config, runs []runData, pd []partitionData) {
	for i := range pd {
		pd[i].maxLeftWallExtent = minInt
		pd[i].minRightWallExtent = maxInt
	}

	for i := range runs {
		rd := &runs[i]
		leftmostWall, rightmostWall := maxInt, minInt
		if rd.wallSteps == 0 {
			leftmostWall = ws[rd.wallOff].tapeHead
			rightmostWall = leftmostWall - 1
		}
		for j := 0; j < int(rd.wallSteps); j++ {
			th := ws[rd.wallOff+j].tapeHead
			if th < leftmostWall {
				leftmostWall = th
			}
			if th > rightmostWall {
				rightmostWall = th
			}
		}
		p := &pd[rd.partition]
		if rd.direction == -1 {
			if rightmostWall > p.maxLeftWallExtent {
				p.maxLeftWallExtent = rightmostWall
			}
			if rd.partition > 0 && leftmostWall < pd[rd.partition-1].minRightWallExtent {
				pd[rd.partition-1].minRightWallExtent = leftmostWall
			}
		} else {
			if leftmostWall < p.minRightWallExtent {
				p.minRightWallExtent = leftmostWall
			}
			if int(rd.partition) < len(pd)-1 && rightmostWall > pd[rd.partition+1].maxLeftWallExtent {
				pd[rd.partition+1].maxLeftWallExtent = rightmostWall
			}
		}
	}
}

const (
	minInt = -1 << 62
	maxInt = 1<<62 - 1
)

// equaliseRepeaters ports BouncerDecider::EqualiseRepeaters: every run in
// a partition is given the same (LCM-derived) RepeaterShift, and the
// partition's RepeaterCount drops to the minimum across its runs.
func equaliseRepeaters(ws []config, runs []runData, pd []partitionData) bool {
	for i := range pd {
		pd[i].repeaterShift = 1
	}
	for i := range runs {
		rd := &runs[i]
		rd.repeaterShift = ws[rd.repeaterOff+int(rd.repeaterPeriod)].tapeHead - ws[rd.repeaterOff].tapeHead
		p := &pd[rd.partition]
		p.repeaterShift = lcm(p.repeaterShift, absInt(rd.repeaterShift))
	}
	for i := range runs {
		rd := &runs[i]
		p := &pd[rd.partition]
		rd.repeaterPeriod = uint32(int(rd.repeaterPeriod) * (p.repeaterShift / absInt(rd.repeaterShift)))
		rd.repeaterShift = int(rd.direction) * p.repeaterShift
	}

	for i := range pd {
		pd[i].repeaterCount = 1<<32 - 1
	}
	for i := range runs {
		rd := &runs[i]
		p := &pd[rd.partition]
		repeaterCount := rd.repeaterSteps / rd.repeaterPeriod
		if repeaterCount < 3 {
			return false
		}
		if repeaterCount < p.repeaterCount {
			p.repeaterCount = repeaterCount
		}
	}
	for i := range runs {
		rd := &runs[i]
		rd.repeaterCount = pd[rd.partition].repeaterCount
		remainder := int(rd.repeaterSteps) - int(rd.repeaterCount)*int(rd.repeaterPeriod)
		if remainder < 0 {
			return false
		}
		rd.wallOff -= remainder
		rd.wallSteps += uint32(remainder)
		rd.repeaterSteps -= uint32(remainder)
	}
	return true
}

// convertRunData ports BouncerDecider::ConvertRunData, building the
// RepeaterTransition and WallTransition for one run from its config trace.
// An initial-tape cell keeps tapeAny until the first step reads it
// (matching the original's "first read wins" Initial.Tape.at(i) ==
// TAPE_ANY check).
func convertRunData(ws []config, rd runData, spec tm.Spec) RunDescriptor {
	var out RunDescriptor
	out.Partition = rd.partition

	leftmost, rightmost := ws[rd.repeaterOff].tapeHead, ws[rd.repeaterOff].tapeHead
	for i := 1; i < int(rd.repeaterPeriod); i++ {
		th := ws[rd.repeaterOff+i].tapeHead
		if th < leftmost {
			leftmost = th
		}
		if th > rightmost {
			rightmost = th
		}
	}
	out.RepeaterTransition.NSteps = rd.repeaterPeriod
	out.RepeaterTransition.Initial.State = ws[rd.repeaterOff].state
	out.RepeaterTransition.Initial.Head = ws[rd.repeaterOff].tapeHead - leftmost

	size := rightmost - leftmost + 1
	initTape := make([]uint8, size)
	finalTape := make([]uint8, size)
	for i := range initTape {
		initTape[i], finalTape[i] = tapeAny, tapeAny
	}
	for i := 0; i < int(rd.repeaterPeriod); i++ {
		c := ws[rd.repeaterOff+i]
		th := c.tapeHead - leftmost
		if initTape[th] == tapeAny {
			initTape[th] = c.cell
		}
		finalTape[th] = spec.Transition(c.state, c.cell).Write
	}
	out.RepeaterTransition.Initial.Tape = initTape
	out.RepeaterTransition.Final.Tape = finalTape
	out.RepeaterTransition.Final.State = ws[rd.repeaterOff+int(rd.repeaterPeriod)].state
	out.RepeaterTransition.Final.Head = ws[rd.repeaterOff+int(rd.repeaterPeriod)].tapeHead - leftmost

	out.WallTransition.NSteps = rd.wallSteps
	if rd.wallSteps == 0 {
		out.WallTransition.Initial.State = ws[rd.wallOff].state
		out.WallTransition.Final.State = ws[rd.wallOff].state
		return out
	}

	leftmost, rightmost = ws[rd.wallOff].tapeHead, ws[rd.wallOff].tapeHead
	for i := 1; i < int(rd.wallSteps); i++ {
		th := ws[rd.wallOff+i].tapeHead
		if th < leftmost {
			leftmost = th
		}
		if th > rightmost {
			rightmost = th
		}
	}
	out.WallTransition.Initial.State = ws[rd.wallOff].state
	out.WallTransition.Initial.Head = ws[rd.wallOff].tapeHead - leftmost

	size = rightmost - leftmost + 1
	initTape = make([]uint8, size)
	finalTape = make([]uint8, size)
	for i := range initTape {
		initTape[i], finalTape[i] = tapeAny, tapeAny
	}
	for i := 0; i < int(rd.wallSteps); i++ {
		c := ws[rd.wallOff+i]
		th := c.tapeHead - leftmost
		if initTape[th] == tapeAny {
			initTape[th] = c.cell
		}
		finalTape[th] = spec.Transition(c.state, c.cell).Write
	}
	out.WallTransition.Initial.Tape = initTape
	out.WallTransition.Final.Tape = finalTape
	out.WallTransition.Final.State = ws[rd.wallOff+int(rd.wallSteps)].state
	out.WallTransition.Final.Head = ws[rd.wallOff+int(rd.wallSteps)].tapeHead - leftmost
	return out
}

// decrementRepeaterCount ports DecrementRepeaterCount, specialised to the
// single partition this port certifies: it shrinks that partition's
// repeater count by one and adjusts every run accordingly, reporting
// false once the count would drop below the minimum AnalyseTape_* relies
// on (matching the original's "RepeaterCount < 5" abort, made a decline
// instead of a crash).
func decrementRepeaterCount(runs []runData, pd *partitionData) bool {
	if pd.repeaterCount < 5 {
		return false
	}
	pd.repeaterCount--
	for i := range runs {
		rd := &runs[i]
		rd.repeaterCount--
		rd.repeaterSteps -= rd.repeaterPeriod
		rd.wallOff -= int(rd.repeaterPeriod)
		rd.wallSteps += rd.repeaterPeriod
	}
	return true
}

func inBoundsRead(m *tm.Machine, h int) (uint8, bool) {
	if !m.InBounds(h) {
		return 0, false
	}
	return m.ReadAt(h), true
}

// getRepeaterExtentLeftward ports GetRepeaterExtent_leftward, dropping the
// neighbouring-partition LeftLimit/RightLimit adjustments: with a single
// partition both of the original's "Partition != 0"/"Partition !=
// nPartitions - 1" guards are always false.
func getRepeaterExtentLeftward(m *tm.Machine, pd *partitionData, leftLimit, rightLimit int) (start, end int, ok bool) {
	minLen := int(pd.repeaterCount) * pd.repeaterShift
	end = rightLimit
	start = end - pd.repeaterShift
	for {
		for {
			a, aok := inBoundsRead(m, start)
			b, bok := inBoundsRead(m, start+pd.repeaterShift)
			if !aok || !bok {
				return 0, 0, false
			}
			if a == b {
				break
			}
			start--
		}
		end = start + pd.repeaterShift
		if end-minLen < leftLimit-1 {
			return 0, 0, false
		}
		for start >= leftLimit {
			a, aok := inBoundsRead(m, start)
			b, bok := inBoundsRead(m, start+pd.repeaterShift)
			if !aok || !bok || a != b {
				break
			}
			start--
		}
		if start <= end-minLen {
			start++
			return start, end, true
		}
		end = start + pd.repeaterShift
		if end-minLen < leftLimit {
			return 0, 0, false
		}
	}
}

// getRepeaterExtentRightward ports GetRepeaterExtent_rightward, under the
// same single-partition simplification as getRepeaterExtentLeftward.
func getRepeaterExtentRightward(m *tm.Machine, pd *partitionData, leftLimit, rightLimit int) (start, end int, ok bool) {
	minLen := int(pd.repeaterCount) * pd.repeaterShift
	start = leftLimit
	end = start + pd.repeaterShift
	for {
		for {
			a, aok := inBoundsRead(m, end)
			b, bok := inBoundsRead(m, end-pd.repeaterShift)
			if !aok || !bok {
				return 0, 0, false
			}
			if a == b {
				break
			}
			end++
		}
		start = end - pd.repeaterShift
		if start+minLen > rightLimit+1 {
			return 0, 0, false
		}
		for end <= rightLimit {
			a, aok := inBoundsRead(m, end)
			b, bok := inBoundsRead(m, end-pd.repeaterShift)
			if !aok || !bok || a != b {
				break
			}
			end++
		}
		if end >= start+minLen {
			end--
			return start, end, true
		}
		start = end - pd.repeaterShift
		if start+minLen > rightLimit {
			return 0, 0, false
		}
	}
}

// analyseTapeWall ports AnalyseTape_Wall for a single partition: wall is 0
// or 1, so at most one of the original's "from the left"/"from the right"
// boundary searches ever runs.
func analyseTapeWall(m *tm.Machine, td *TapeDescriptor, currentWall uint32, pd *partitionData, leftmost, rightmost int) bool {
	td.State = m.State()
	td.Repeater = [][]uint8{make([]uint8, pd.repeaterShift)}
	td.RepeaterCount = []uint32{pd.repeaterCount}

	var wallLeftmost, wallRightmost [2]int
	wallLeftmost[0] = td.Leftmost
	wallRightmost[1] = td.Rightmost
	minLen := int(pd.repeaterCount) * pd.repeaterShift

	if currentWall == 1 {
		start, end, ok := getRepeaterExtentRightward(m, pd, leftmost, rightmost)
		if !ok {
			return false
		}
		wallRightmost[0] = start - 1
		if end >= start+minLen {
			end = start + minLen - 1
		}
		wallLeftmost[1] = end + 1
	} else {
		start, end, ok := getRepeaterExtentLeftward(m, pd, leftmost, rightmost)
		if !ok {
			return false
		}
		wallLeftmost[1] = end + 1
		if start <= end-minLen {
			start = end - minLen + 1
		}
		wallRightmost[0] = start - 1
	}

	return fillWallsAndRepeaters(m, td, wallLeftmost, wallRightmost, pd, currentWall)
}

// analyseTapeRepeater ports AnalyseTape_Repeater for a single partition,
// dropping the neighbouring-partition search loops (both are no-ops when
// CurrentPartition == 0 == nPartitions - 1) but keeping the
// retry-on-short-sequence logic, which the original expresses as
// TM_ERROR when there is no neighbouring partition to borrow from: this
// port declines (and lets the caller retry via decrementRepeaterCount)
// instead.
func analyseTapeRepeater(m *tm.Machine, td *TapeDescriptor, currentWall uint32, tr Transition, leftmost, rightmost int, pd *partitionData) bool {
	td.State = m.State()
	td.Repeater = [][]uint8{make([]uint8, pd.repeaterShift)}
	td.RepeaterCount = []uint32{pd.repeaterCount}

	var wallLeftmost, wallRightmost [2]int
	wallLeftmost[0] = td.Leftmost
	wallRightmost[1] = td.Rightmost
	minLen := int(pd.repeaterCount) * pd.repeaterShift

	var seqStart, seqEnd int
	if tr.Final.Head < tr.Initial.Head {
		// Leftward run.
		if rightmost > m.Head()+minLen/2 {
			rightmost = m.Head() + minLen/2
		}
		start, end, ok := getRepeaterExtentLeftward(m, pd, leftmost, rightmost)
		if !ok {
			return false
		}
		seqStart, seqEnd = start, end
		if seqEnd < m.Head()-tr.Initial.Head+pd.repeaterShift-1 {
			return false
		}
		seqEnd = m.Head() - tr.Initial.Head + pd.repeaterShift - 1
		if seqEnd > wallRightmost[1] {
			return false
		}
		if seqEnd < seqStart+minLen-1 {
			return false
		}
		seqStart = seqEnd - minLen + 1
	} else {
		// Rightward run.
		if leftmost < m.Head()-minLen/2 {
			leftmost = m.Head() - minLen/2
		}
		start, end, ok := getRepeaterExtentRightward(m, pd, leftmost, rightmost)
		if !ok {
			return false
		}
		seqStart, seqEnd = start, end
		if seqStart > len(tr.Initial.Tape)-tr.Initial.Head+m.Head()-pd.repeaterShift {
			return false
		}
		seqStart = len(tr.Initial.Tape) - tr.Initial.Head + m.Head() - pd.repeaterShift
		if seqStart < wallLeftmost[0] {
			return false
		}
		if seqEnd < seqStart+minLen-1 {
			return false
		}
		seqEnd = seqStart + minLen - 1
	}

	wallLeftmost[1] = seqEnd + 1
	wallRightmost[0] = seqStart - 1

	return fillWallsAndRepeaters(m, td, wallLeftmost, wallRightmost, pd, currentWall)
}

// fillWallsAndRepeaters is the common tail of AnalyseTape_Wall and
// AnalyseTape_Repeater: once both wall boundaries are known, copy the live
// tape into td's Wall/Repeater slices and record the tape-head position.
func fillWallsAndRepeaters(m *tm.Machine, td *TapeDescriptor, wallLeftmost, wallRightmost [2]int, pd *partitionData, currentWall uint32) bool {
	td.Wall = make([][]uint8, 2)
	for p := 0; p <= 1; p++ {
		if wallLeftmost[p] > wallRightmost[p]+1 {
			return false
		}
		wallLen := wallRightmost[p] - wallLeftmost[p] + 1
		w := make([]uint8, wallLen)
		for i := 0; i < wallLen; i++ {
			v, ok := inBoundsRead(m, wallLeftmost[p]+i)
			if !ok {
				return false
			}
			w[i] = v
		}
		td.Wall[p] = w
		if p == 1 {
			break
		}
		r := make([]uint8, pd.repeaterShift)
		for i := 0; i < pd.repeaterShift; i++ {
			v, ok := inBoundsRead(m, wallLeftmost[p]+wallLen+i)
			if !ok {
				return false
			}
			r[i] = v
		}
		td.Repeater[p] = r
	}

	td.TapeHeadWall = currentWall
	td.TapeHeadOffset = m.Head() - wallLeftmost[currentWall]
	return true
}

// removeGap ports BouncerDecider::RemoveGap, returning false either when
// there is no gap to close (the original's early `return false`) or when
// the gap's contents are not the aligned repeater copies they are
// required to be (the original's TM_ERROR): either way the caller moves
// on without this cosmetic tidy-up, relying on the final Verify call to
// catch any genuine defect.
func removeGap(td *TapeDescriptor, tr Transition) bool {
	wall := td.TapeHeadWall
	if tr.Final.Head < tr.Initial.Head {
		stride := tr.Initial.Head - tr.Final.Head
		if tr.Initial.Head-td.TapeHeadOffset <= 0 {
			return false
		}
		gap := tr.Initial.Head - len(tr.Initial.Tape) - td.TapeHeadOffset
		if gap <= 0 {
			return false
		}
		gap += stride - 1
		gap -= gap % stride
		rotate := gap % stride
		rotate = (stride - rotate) % stride
		if len(td.Wall[wall-1]) < gap {
			return false
		}
		for i := 0; i < gap; i++ {
			if td.Wall[wall-1][i+len(td.Wall[wall-1])-gap] != td.Repeater[wall-1][(i+rotate)%stride] {
				return false
			}
		}
		prefix := make([]uint8, gap)
		for i := 0; i < gap; i++ {
			prefix[i] = td.Repeater[wall-1][(i+rotate)%stride]
		}
		td.Wall[wall] = append(prefix, td.Wall[wall]...)
		td.Wall[wall-1] = td.Wall[wall-1][:len(td.Wall[wall-1])-gap]

		rep := append([]uint8(nil), td.Repeater[wall-1]...)
		for i := range rep {
			td.Repeater[wall-1][i] = rep[(i+rotate)%stride]
		}
		td.TapeHeadOffset += gap
	} else {
		initOffset := td.TapeHeadOffset - tr.Initial.Head
		stride := tr.Final.Head - tr.Initial.Head
		if initOffset+len(tr.Initial.Tape)-len(td.Wall[wall]) <= 0 {
			return false
		}
		gap := td.TapeHeadOffset - len(td.Wall[wall]) - tr.Initial.Head
		if gap <= 0 {
			return false
		}
		gap += stride - 1
		gap -= gap % stride
		if len(td.Wall[wall+1]) < gap {
			return false
		}
		for i := 0; i < gap; i++ {
			if td.Wall[wall+1][i] != td.Repeater[wall][i%stride] {
				return false
			}
		}
		for i := 0; i < gap; i++ {
			td.Wall[wall] = append(td.Wall[wall], td.Repeater[wall][i%stride])
		}
		td.Wall[wall+1] = td.Wall[wall+1][gap:]

		rep := append([]uint8(nil), td.Repeater[wall]...)
		for i := range rep {
			td.Repeater[wall][i] = rep[(i+gap)%stride]
		}
	}
	return true
}

// truncateWall ports BouncerDecider::TruncateWall, the mirror of
// removeGap: it trims the wall back so the next Transition's initial
// segment starts exactly at the repeater boundary.
func truncateWall(td *TapeDescriptor, tr Transition) bool {
	wall := td.TapeHeadWall
	if tr.Final.Head < tr.Initial.Head {
		stride := tr.Initial.Head - tr.Final.Head
		overhang := tr.Initial.Head - td.TapeHeadOffset
		if overhang >= 0 {
			return false
		}
		overhang = -overhang
		if len(td.Wall[wall]) < overhang || len(td.Repeater[wall-1]) == 0 {
			return false
		}
		for i := 0; i < overhang; i++ {
			if td.Wall[wall][i] != td.Repeater[wall-1][i%stride] {
				return false
			}
		}
		td.Wall[wall-1] = append(td.Wall[wall-1], td.Wall[wall][:overhang]...)
		td.Wall[wall] = td.Wall[wall][overhang:]

		rep := append([]uint8(nil), td.Repeater[wall-1]...)
		for i := range rep {
			td.Repeater[wall-1][i] = rep[(i+overhang)%stride]
		}
		for i := 0; i < len(td.Repeater[wall-1]); i++ {
			if td.Repeater[wall-1][i] != tr.Initial.Tape[i] {
				return false
			}
		}
		td.TapeHeadOffset -= overhang
	} else {
		initOffset := td.TapeHeadOffset - tr.Initial.Head
		stride := tr.Final.Head - tr.Initial.Head
		overhang := initOffset + len(tr.Initial.Tape) - len(td.Wall[wall])
		if overhang >= 0 {
			return false
		}
		overhang = -overhang
		for i := initOffset + len(tr.Initial.Tape); i < len(td.Wall[wall]); i++ {
			t := len(td.Wall[wall]) - i
			t %= stride
			t = (stride - t) % stride
			if td.Wall[wall][i] != td.Repeater[wall][t] {
				return false
			}
		}
		split := initOffset + len(tr.Initial.Tape)
		td.Wall[wall+1] = append(append([]uint8(nil), td.Wall[wall][split:]...), td.Wall[wall+1]...)
		td.Wall[wall] = td.Wall[wall][:split]

		rep := append([]uint8(nil), td.Repeater[wall]...)
		for i := range rep {
			td.Repeater[wall][(i+overhang)%stride] = rep[i]
		}
		for i := 0; i < len(td.Repeater[wall]); i++ {
			if td.Repeater[wall][i] != tr.Initial.Tape[len(tr.Initial.Tape)-stride+i] {
				return false
			}
		}
	}
	return true
}
