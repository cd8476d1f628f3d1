// Detection is grounded on BouncerDecider.cpp's RunDecider/DetectRepetition/
// QuadraticProgression/GetRepetitionParams (lines 1-160): it runs the
// machine, keeps a per-state linked list of tape-head records on each side
// of the tape, and on every new record checks whether the four most recent
// same-state records (or some coarser stride through the chain) fall on a
// quadratic step-count progression with a constant tape-head shift. That
// signature is exactly what a Bouncer's growing resweep looks like: each
// pass across the (growing) repeater block takes longer than the last by a
// constant second difference.
//
// Certification (certify.go) ports the rest of BouncerDecider.cpp
// (FindRuns, FindRepeat, AssignPartitions, EqualiseRepeaters,
// MakeRunDescriptors, and the AnalyseTape_*/RemoveGap/TruncateWall replay
// that builds each RunDescriptor's TapeDescriptors) to turn a confirmed
// quadratic witness into a Certificate. Decide and DetectCycle share the
// same search loop and differ only in what they do with a confirmed
// witness: DetectCycle hands it to confirmCycle (bounding-box bookkeeping
// only, used by Describe); Decide hands it to confirmAndCertify, which
// additionally records the full Config trace the certification machinery
// needs and, on success, self-checks the result against Verify before
// returning it.
package bouncer

import (
	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/tm"
)

const (
	backwardScanLength = 1000
	warmupSteps        = 1000
	wraparoundSteps    = 2000
)

type record struct {
	stepCount uint64
	tapeHead  int
	prev      *record
}

// CycleWitness is the evidence DetectCycle finds: two further replays from
// the current configuration, of StepCount1 and StepCount2 steps
// respectively, each returning to the same state and read cell, with the
// tape head advancing by one and two copies of CycleShift. Matches the
// Cycle1/Cycle2 construction in BouncerDecider::DetectRepetition.
type CycleWitness struct {
	State       uint8
	CycleShift  int
	StepCount1  uint64
	StepCount2  uint64
	Type        BouncerType
	Cycle1Left  int
	Cycle1Right int
	Cycle2Left  int
	Cycle2Right int
}

// Decider searches for Bouncer-shaped tape growth and, within the scope
// described by certify.go's package comment, certifies it. See DESIGN.md's
// [[bouncer]] entry for the full scope statement.
type Decider struct {
	states     uint8
	timeLimit  uint64
	spaceLimit int
	sink       *decidererr.Sink
}

func NewDecider(states uint8, timeLimit uint64, spaceLimit int, sink *decidererr.Sink) *Decider {
	if spaceLimit == 0 {
		spaceLimit = int(timeLimit)/2 + 10
	}
	return &Decider{states: states, timeLimit: timeLimit, spaceLimit: spaceLimit, sink: sink}
}

// confirmFunc checks a candidate quadratic witness (CycleShift over
// StepCount1 then StepCount2 further steps from m's current configuration)
// and reports whether it is acceptable. DetectCycle and Decide share the
// same search/detectRepetition loop and differ only in which confirmFunc
// they pass in.
type confirmFunc func(m *tm.Machine, cycleShift int, stepCount1, stepCount2 uint64) (CycleWitness, bool)

// Decide runs the same search DetectCycle does, but on a confirmed witness
// goes on to build a Certificate (certify.go) and self-checks it against
// Verify before returning it. A witness that confirmAndCertify can't
// certify — out of this port's scope, or the retry budget exhausted — just
// makes the search continue looking for a different witness; Decide never
// returns a certificate Verify itself would reject.
func (d *Decider) Decide(machineIndex uint32, spec tm.Spec) (Certificate, bool) {
	m := tm.NewMachine(d.spaceLimit)
	m.Init(machineIndex, spec)

	var cert Certificate
	var found bool
	confirm := func(mm *tm.Machine, cycleShift int, stepCount1, stepCount2 uint64) (CycleWitness, bool) {
		w, c, ok := d.confirmAndCertify(mm, cycleShift, stepCount1, stepCount2, spec)
		if ok {
			cert, found = c, true
		}
		return w, ok
	}
	if _, ok := d.search(m, confirm); ok && found {
		return cert, true
	}
	return Certificate{}, false
}

// DetectCycle ports RunDecider's search loop and DetectRepetition. It
// reports whether some right-moving or left-moving record chain exhibits a
// quadratic step-count progression with a matching tape-head shift, and
// independently confirms it by replaying StepCount1 and StepCount2 further
// steps from the current configuration.
func (d *Decider) DetectCycle(machineIndex uint32, spec tm.Spec) (CycleWitness, bool) {
	m := tm.NewMachine(d.spaceLimit)
	m.Init(machineIndex, spec)
	return d.search(m, d.confirmCycle)
}

// search is RunDecider's driving loop: warm up, then track the rightmost
// and leftmost tape-head records reached in each state, checking each new
// record against detectRepetition.
func (d *Decider) search(m *tm.Machine, confirm confirmFunc) (CycleWitness, bool) {
	for i := 0; i < warmupSteps; i++ {
		if m.Step() != tm.StepOK {
			return CycleWitness{}, false
		}
	}

	rightRecord := m.Head()
	leftRecord := m.Head()
	latestRight := make([]*record, int(d.states)+1)
	latestLeft := make([]*record, int(d.states)+1)

	for m.StepCount() < d.timeLimit {
		if m.Head() > rightRecord {
			r := &record{stepCount: m.StepCount(), tapeHead: m.Head(), prev: latestRight[m.State()]}
			latestRight[m.State()] = r
			rightRecord = m.Head()
			if w, ok := d.detectRepetition(m, latestRight[m.State()], confirm); ok {
				return w, true
			}
		}
		if m.Head() < leftRecord {
			r := &record{stepCount: m.StepCount(), tapeHead: m.Head(), prev: latestLeft[m.State()]}
			latestLeft[m.State()] = r
			leftRecord = m.Head()
			if w, ok := d.detectRepetition(m, latestLeft[m.State()], confirm); ok {
				return w, true
			}
		}
		switch m.Step() {
		case tm.StepOK:
		case tm.StepOutOfBounds:
			return CycleWitness{}, false
		case tm.StepHalt:
			d.sink.Report(&decidererr.ContractError{
				File:    "decider.go",
				Machine: m.Index(),
				Pass:    "decide",
				Message: "machine halted during bouncer search",
			})
			return CycleWitness{}, false
		}
	}
	return CycleWitness{}, false
}

// detectRepetition ports BouncerDecider::DetectRepetition: it walks the
// record chain back in strides of 1, 2, 3, ... looking for four records
// (at stride-apart positions) whose tape-head shifts agree and whose step
// counts fall on a quadratic progression, then hands the candidate to
// confirm to replay forward from the live machine and check it's
// self-consistent.
func (d *Decider) detectRepetition(m *tm.Machine, latest *record, confirm confirmFunc) (CycleWitness, bool) {
	workspace := make([]*record, 4*backwardScanLength)
	cur := latest

	for scanLen := 1; scanLen <= backwardScanLength; scanLen++ {
		for j := 0; j < 4; j++ {
			if cur == nil {
				return CycleWitness{}, false
			}
			workspace[4*(scanLen-1)+j] = cur
			cur = cur.prev
		}
		w0 := workspace[0]
		w1 := workspace[scanLen]
		w2 := workspace[2*scanLen]
		w3 := workspace[3*scanLen]

		cycleShift := w0.tapeHead - w1.tapeHead
		if w1.tapeHead-w2.tapeHead != cycleShift || w2.tapeHead-w3.tapeHead != cycleShift {
			continue
		}
		if !quadraticProgression(int64(w0.stepCount), int64(w1.stepCount), int64(w2.stepCount), int64(w3.stepCount)) {
			continue
		}

		stepCount1, stepCount2 := repetitionParams(int64(w2.stepCount), int64(w1.stepCount), int64(w0.stepCount))
		if stepCount1 <= 0 || stepCount2 <= stepCount1 {
			continue
		}

		if w, ok := confirm(m, cycleShift, uint64(stepCount1), uint64(stepCount2)); ok {
			return w, true
		}
	}
	return CycleWitness{}, false
}

// quadraticProgression matches BouncerDecider::QuadraticProgression: reject
// arithmetic (linear) or descending step-count progressions, and require
// the second difference to vanish exactly.
func quadraticProgression(a1, a2, a3, a4 int64) bool {
	if a3-a2 <= a2-a1 {
		return false
	}
	return a4-3*a3+3*a2-a1 == 0
}

// repetitionParams matches BouncerDecider::GetRepetitionParams: given three
// step counts in quadratic progression, extrapolate the next two
// differences.
func repetitionParams(a1, a2, a3 int64) (stepCount1, stepCount2 int64) {
	a3 -= a2
	a2 -= a1
	stepCount1 = 2*a3 - a2
	stepCount2 = 2*stepCount1 - a3
	return stepCount1, stepCount2
}

// confirmCycle replays stepCount1 then stepCount2 steps forward from the
// live machine's current configuration on a clone, checking that each
// replay returns to the same state and read cell with the tape head
// advanced by one and two copies of cycleShift respectively. Matches the
// two Cycle1/Cycle2 construction loops in DetectRepetition, minus the
// Config trace only the certification path (confirmAndCertify) needs.
func (d *Decider) confirmCycle(m *tm.Machine, cycleShift int, stepCount1, stepCount2 uint64) (CycleWitness, bool) {
	state := m.State()
	head := m.Head()
	cell := m.ReadAt(head)

	clone := tm.NewMachine(d.spaceLimit)
	if err := m.Clone(clone); err != nil {
		return CycleWitness{}, false
	}

	c1Left, c1Right := clone.Head(), clone.Head()
	for i := uint64(0); i < stepCount1; i++ {
		if clone.Head() < c1Left {
			c1Left = clone.Head()
		}
		if clone.Head() > c1Right {
			c1Right = clone.Head()
		}
		if clone.Step() != tm.StepOK {
			return CycleWitness{}, false
		}
	}
	if clone.Head() < c1Left {
		c1Left = clone.Head()
	}
	if clone.Head() > c1Right {
		c1Right = clone.Head()
	}
	if clone.State() != state || clone.ReadAt(clone.Head()) != cell || clone.Head() != head+cycleShift {
		return CycleWitness{}, false
	}

	c2Left, c2Right := clone.Head(), clone.Head()
	for i := uint64(0); i < stepCount2; i++ {
		if clone.Head() < c2Left {
			c2Left = clone.Head()
		}
		if clone.Head() > c2Right {
			c2Right = clone.Head()
		}
		if clone.Step() != tm.StepOK {
			return CycleWitness{}, false
		}
	}
	if clone.Head() < c2Left {
		c2Left = clone.Head()
	}
	if clone.Head() > c2Right {
		c2Right = clone.Head()
	}
	if clone.State() != state || clone.ReadAt(clone.Head()) != cell || clone.Head() != head+2*cycleShift {
		return CycleWitness{}, false
	}

	typ := TypeTranslated
	switch {
	case c1Left == c2Left || c1Right == c2Right:
		typ = TypeUnilateral
	case c2Left < c1Left && c2Right > c1Right:
		typ = TypeBilateral
	}

	return CycleWitness{
		State:       state,
		CycleShift:  cycleShift,
		StepCount1:  stepCount1,
		StepCount2:  stepCount2,
		Type:        typ,
		Cycle1Left:  c1Left,
		Cycle1Right: c1Right,
		Cycle2Left:  c2Left,
		Cycle2Right: c2Right,
	}, true
}

// confirmAndCertify is confirmCycle plus certification: it records the
// full Config trace over both cycles (and wraparoundSteps further, exactly
// as DetectRepetition does before calling FindRuns) and, for witnesses
// within this port's scope (see certify.go), runs the
// FindRuns/AssignPartitions/EqualiseRepeaters/MakeRunDescriptors/
// AnalyseTape_* pipeline to build a Certificate. Any panic from the
// certification machinery (a bounds miss in a pathological trace, for
// instance) is recovered and treated as a decline, on the same reasoning
// as every other failure path here: Decide is a best-effort engine and a
// missed detection is always an acceptable outcome, a wrong one is not.
func (d *Decider) confirmAndCertify(m *tm.Machine, cycleShift int, stepCount1, stepCount2 uint64, spec tm.Spec) (witness CycleWitness, cert Certificate, ok bool) {
	defer func() {
		if recover() != nil {
			witness, cert, ok = CycleWitness{}, Certificate{}, false
		}
	}()

	state := m.State()
	head := m.Head()
	cell := m.ReadAt(head)

	wsLen := int(stepCount1) + int(stepCount2) + wraparoundSteps
	ws := make([]config, wsLen)

	clone := tm.NewMachine(d.spaceLimit)
	if err := m.Clone(clone); err != nil {
		return CycleWitness{}, Certificate{}, false
	}

	c1Left, c1Right := clone.Head(), clone.Head()
	for i := uint64(0); i < stepCount1; i++ {
		if clone.Head() < c1Left {
			c1Left = clone.Head()
		}
		if clone.Head() > c1Right {
			c1Right = clone.Head()
		}
		ws[i] = config{tapeHead: clone.Head(), state: clone.State(), cell: clone.ReadAt(clone.Head())}
		if clone.Step() != tm.StepOK {
			return CycleWitness{}, Certificate{}, false
		}
	}
	if clone.Head() < c1Left {
		c1Left = clone.Head()
	}
	if clone.Head() > c1Right {
		c1Right = clone.Head()
	}
	if clone.State() != state || clone.ReadAt(clone.Head()) != cell || clone.Head() != head+cycleShift {
		return CycleWitness{}, Certificate{}, false
	}

	c2Left, c2Right := clone.Head(), clone.Head()
	for i := uint64(0); i < stepCount2; i++ {
		if clone.Head() < c2Left {
			c2Left = clone.Head()
		}
		if clone.Head() > c2Right {
			c2Right = clone.Head()
		}
		ws[int(stepCount1)+int(i)] = config{tapeHead: clone.Head(), state: clone.State(), cell: clone.ReadAt(clone.Head())}
		if clone.Step() != tm.StepOK {
			return CycleWitness{}, Certificate{}, false
		}
	}
	if clone.Head() < c2Left {
		c2Left = clone.Head()
	}
	if clone.Head() > c2Right {
		c2Right = clone.Head()
	}
	if clone.State() != state || clone.ReadAt(clone.Head()) != cell || clone.Head() != head+2*cycleShift {
		return CycleWitness{}, Certificate{}, false
	}

	typ := TypeTranslated
	switch {
	case c1Left == c2Left || c1Right == c2Right:
		typ = TypeUnilateral
	case c2Left < c1Left && c2Right > c1Right:
		typ = TypeBilateral
	}

	witness = CycleWitness{
		State: state, CycleShift: cycleShift, StepCount1: stepCount1, StepCount2: stepCount2,
		Type: typ, Cycle1Left: c1Left, Cycle1Right: c1Right, Cycle2Left: c2Left, Cycle2Right: c2Right,
	}

	if typ == TypeTranslated {
		// MakeTranslatedBouncerData's dummy-partition machinery is not
		// ported; see certify.go's package comment.
		return witness, Certificate{}, false
	}
	if typ == TypeBilateral && (c1Left > m.Leftmost() || c1Right < m.Rightmost()) {
		// A Bilateral cycle that hasn't yet swept past the machine's full
		// historical extent is only provisionally a Bouncer: the original
		// marks this "Bell" and keeps searching rather than certifying it.
		return witness, Certificate{}, false
	}

	base := int(stepCount1) + int(stepCount2)
	for i := 0; i < wraparoundSteps; i++ {
		ws[base+i] = config{tapeHead: clone.Head(), state: clone.State(), cell: clone.ReadAt(clone.Head())}
		if clone.Step() != tm.StepOK {
			return witness, Certificate{}, false
		}
	}

	runs, ok := findRuns(ws, 0, int(stepCount1), stepCount2)
	if !ok {
		return witness, Certificate{}, false
	}

	nPartitions, ok := assignPartitions(runs)
	if !ok {
		// Either a malformed partition walk, or (nPartitions != 1) a
		// genuine multi-partition Bouncer this port doesn't certify; see
		// certify.go's package comment.
		_ = nPartitions
		return witness, Certificate{}, false
	}

	pd := make([]partitionData, 1)
	if !equaliseRepeaters(ws, runs, pd) {
		return witness, Certificate{}, false
	}

	rds := make([]RunDescriptor, len(runs))
	for i, rd := range runs {
		rds[i] = convertRunData(ws, rd, spec)
	}

	built, ok := d.certifyTape(m, clone, runs, rds, pd, int(stepCount1), int(stepCount2), typ, ws, spec)
	if !ok {
		return witness, Certificate{}, false
	}
	return witness, built, true
}

// certifyTape ports the remainder of RunDecider::DetectRepetition: the
// step-to-first-repeater replay, GetMaxWallExtents, and the
// TryAgain-labelled retry loop that runs AnalyseTape_Repeater/
// AnalyseTape_Wall/RemoveGap/TruncateWall for every run to build each
// RunDescriptor's TapeDescriptors. Where the original calls CheckTape/
// CheckRepeaterTransition/CheckWallTransition/CheckTapesEquivalent inline
// as it goes, this port builds the whole Certificate and checks it in one
// pass with Verify at the end — see certify.go's package comment for why.
func (d *Decider) certifyTape(live, clone *tm.Machine, runs []runData, rds []RunDescriptor, pd []partitionData, stepCount1, stepCount2 int, typ BouncerType, ws []config, spec tm.Spec) (Certificate, bool) {
	getMaxWallExtents(ws, runs, pd)

	n := runs[0].repeaterOff
	base := tm.NewMachine(d.spaceLimit)
	if err := live.Clone(base); err != nil {
		return Certificate{}, false
	}
	for i := 0; i < n; i++ {
		if base.Step() != tm.StepOK {
			return Certificate{}, false
		}
	}
	if base.Head() != ws[n].tapeHead {
		return Certificate{}, false
	}
	initialSteps := base.StepCount()

	initialLeftmost, initialRightmost := base.Leftmost(), base.Rightmost()
	for i := n - stepCount1; i <= n; i++ {
		if ws[i].tapeHead < initialLeftmost {
			initialLeftmost = ws[i].tapeHead
		}
		if ws[i].tapeHead > initialRightmost {
			initialRightmost = ws[i].tapeHead
		}
	}

	finalLeftmost, finalRightmost := initialLeftmost, initialRightmost
	tapeLeftmost, tapeRightmost := base.Leftmost(), base.Rightmost()
	for i := n; i <= n+stepCount2; i++ {
		if ws[i].tapeHead < finalLeftmost {
			finalLeftmost = ws[i].tapeHead
		}
		if ws[i].tapeHead > finalRightmost {
			finalRightmost = ws[i].tapeHead
		}
		if ws[i].tapeHead < tapeLeftmost {
			tapeLeftmost = ws[i].tapeHead
		}
		if ws[i].tapeHead > tapeRightmost {
			tapeRightmost = ws[i].tapeHead
		}
	}

	for retries := 0; retries < 3; retries++ {
		if retries > 0 {
			for i, rd := range runs {
				rds[i] = convertRunData(ws, rd, spec)
			}
			getMaxWallExtents(ws, runs, pd)
		}

		replay := tm.NewMachine(d.spaceLimit)
		if err := base.Clone(replay); err != nil {
			return Certificate{}, false
		}

		wall0 := uint32(0)
		if runs[0].direction == -1 {
			wall0 = 1
		}
		initialTape := TapeDescriptor{Leftmost: tapeLeftmost, Rightmost: tapeRightmost}
		if !analyseTapeRepeater(replay, &initialTape, wall0, rds[0].RepeaterTransition, replay.Leftmost(), replay.Rightmost(), &pd[0]) {
			if !decrementRepeaterCount(runs, &pd[0]) {
				return Certificate{}, false
			}
			continue
		}
		removeGap(&initialTape, rds[0].RepeaterTransition)
		truncateWall(&initialTape, rds[0].RepeaterTransition)

		failed := false
		for i, rd := range runs {
			for j := uint32(0); j < rd.repeaterSteps; j++ {
				if replay.Step() != tm.StepOK {
					return Certificate{}, false
				}
			}
			wall := uint32(0)
			if rd.direction == 1 {
				wall = 1
			}
			td0 := TapeDescriptor{Leftmost: tapeLeftmost, Rightmost: tapeRightmost}
			if !analyseTapeWall(replay, &td0, wall, &pd[0], replay.Leftmost(), replay.Rightmost()) {
				if !decrementRepeaterCount(runs, &pd[0]) {
					return Certificate{}, false
				}
				failed = true
				break
			}

			for j := uint32(0); j < rd.wallSteps; j++ {
				if replay.Step() != tm.StepOK {
					return Certificate{}, false
				}
			}
			td1 := TapeDescriptor{Leftmost: tapeLeftmost, Rightmost: tapeRightmost}
			next := rds[(i+1)%len(runs)].RepeaterTransition
			if !analyseTapeRepeater(replay, &td1, wall, next, replay.Leftmost(), replay.Rightmost(), &pd[0]) {
				if !decrementRepeaterCount(runs, &pd[0]) {
					return Certificate{}, false
				}
				failed = true
				break
			}
			if i < len(runs)-1 {
				removeGap(&td1, rds[i+1].RepeaterTransition)
				truncateWall(&td1, rds[i+1].RepeaterTransition)
			}

			rds[i].TD0 = td0
			rds[i].TD1 = td1
		}
		if failed {
			continue
		}

		cert := Certificate{
			Type:             typ,
			NPartitions:      1,
			InitialSteps:     uint32(initialSteps),
			InitialLeftmost:  int32(initialLeftmost),
			InitialRightmost: int32(initialRightmost),
			FinalSteps:       uint32(initialSteps) + uint32(stepCount2),
			FinalLeftmost:    int32(finalLeftmost),
			FinalRightmost:   int32(finalRightmost),
			RepeaterCount:    []uint32{pd[0].repeaterCount},
			InitialTape:      initialTape,
			Runs:             append([]RunDescriptor(nil), rds...),
		}
		if err := Verify(spec, d.states, cert); err != nil {
			return Certificate{}, false
		}
		return cert, true
	}
	return Certificate{}, false
}
