// Package haltseg implements the halting-segment decider of spec.md §4.3,
// grounded on original_source/HaltingSegments/HaltingSegments.cpp.
//
// The search starts from the HALT state with a fixed-width tape segment
// around the head and recursively generates every possible predecessor
// configuration within that segment, plus every configuration that could
// have walked off the segment to the left or right before re-entering it.
// Configurations already proven unreachable from the start state within the
// segment are memoized in a two-direction bit-trie (CompoundTree in the
// original): one direction walks the determined cells to the left of the
// head, and at every prefix length along that walk a second, independent
// trie (ForwardTree) memoizes the determined cells to the right. Exits off
// the left/right edge of the segment get their own one-directional tries
// (ForwardTree/BackwardTree). If no branch can ever reach the true all-blank
// starting tape, the machine cannot reach HALT and is non-halting.
//
// The original's tries are block-allocated (TreePool<TreeType>) and use a
// pointer low-bit tag to fuse an inner node and a leaf holding a node index
// into one pointer-sized field, because C++ pointers need to stay valid
// across reallocation. internal/arena's index-addressed Pool removes that
// constraint (an index survives a slice grow), so the tag collapses to
// arena.NodeRef's high-bit-tagged Ref and the block list collapses to a
// plain growable Pool.
//
// The original's SimpleTree (the untyped two-pointer node shape shared by
// both ForwardTree and BackwardTree via a reinterpret cast, to save one
// block allocator) doesn't survive the port: Go has no layout-compatible
// cast between distinct named struct types, so ForwardTree and BackwardTree
// each get a dedicated, separately-pooled node type instead of sharing one
// untyped pool.
package haltseg

import (
	"encoding/binary"
	"fmt"

	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/internal/arena"
	"github.com/bbchallenge/decider-core/internal/conv"
	"github.com/bbchallenge/decider-core/tm"
)

// Tape cell sentinels. 0 and 1 are ordinary written symbols; tapeAny marks a
// cell no predecessor has constrained yet, and the two sentinel values mark
// the fixed boundary of the tracked segment.
const (
	tapeAny           = 3
	tapeSentinelLeft  = 4
	tapeSentinelRight = 5
)

// defaultMaxStackDepth is the original's CommandLineParams::MaxStackDepth
// default.
const defaultMaxStackDepth = 10000

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
// on-disk layout of spec.md §6 (Leftmost, Rightmost, MaxDepth, nNodes,
// SegmentWidth; 20 bytes, big-endian).
type Certificate struct {
	Leftmost     int32
	Rightmost    int32
	MaxDepth     uint32
	NNodes       uint32
	SegmentWidth uint32
}

// Encode serialises the certificate for a dvf HALTING_SEGMENT entry.
func (c Certificate) Encode() []byte {
	buf := make([]byte, 20)
	binary.BigEndian.PutUint32(buf[0:4], uint32(c.Leftmost))
	binary.BigEndian.PutUint32(buf[4:8], uint32(c.Rightmost))
	binary.BigEndian.PutUint32(buf[8:12], c.MaxDepth)
	binary.BigEndian.PutUint32(buf[12:16], c.NNodes)
	binary.BigEndian.PutUint32(buf[16:20], c.SegmentWidth)
	return buf
}

// Decode parses a HALTING_SEGMENT dvf info payload.
func Decode(info []byte) (Certificate, error) {
	if len(info) != 20 {
		return Certificate{}, fmt.Errorf("haltseg: certificate length %d, want 20", len(info))
	}
	return Certificate{
		Leftmost:     int32(binary.BigEndian.Uint32(info[0:4])),
		Rightmost:    int32(binary.BigEndian.Uint32(info[4:8])),
		MaxDepth:     binary.BigEndian.Uint32(info[8:12]),
		NNodes:       binary.BigEndian.Uint32(info[12:16]),
		SegmentWidth: binary.BigEndian.Uint32(info[16:20]),
	}, nil
}

// forwardNode and backwardNode are the homogeneous two-child trie nodes
// memoizing a run of determined tape cells walked, respectively, left to
// right and right to left. Next is arena.NodeRef so a child can itself be a
// leaf terminating the key at this node (original's IsLeafNode).
type forwardNode struct {
	next [2]arena.NodeRef
}

type backwardNode struct {
	next [2]arena.NodeRef
}

// compoundNode is one step of the left-context walk of the two-direction
// memo (original's CompoundTree): Next chains further left, SubTree holds an
// independent forwardNode trie of the cells to the right of the original
// head. Unlike ForwardTree/BackwardTree, CompoundTree itself never becomes a
// leaf — its termination just means "attach the SubTree here" — so its refs
// stay untagged arena.Ref.
type compoundNode struct {
	next    [2]arena.Ref
	subTree arena.NodeRef
}

// Decider holds the reusable predecessor tables, tape workspace, and trie
// pools for repeated Decide calls. Not safe for concurrent use; each worker
// goroutine owns its own Decider.
type Decider struct {
	widthLimit    int
	maxStackDepth uint32
	offset        int

	predecessorTable              [][]predecessor
	leftOfSegment, rightOfSegment [2][]predecessor

	tape      []uint8
	halfWidth int

	alreadySeen  [][2]arena.Ref
	exitedLeft   arena.NodeRef
	exitedRight  arena.NodeRef
	compoundPool *arena.Pool[compoundNode]
	forwardPool  *arena.Pool[forwardNode]
	backwardPool *arena.Pool[backwardNode]

	leftmost, rightmost int
	maxDepth, nNodes    uint32

	sink *decidererr.Sink
}

// NewDecider allocates a Decider for machines of the given state count. The
// segment-width sweep tries every odd width up to widthLimit (forced odd,
// matching the original's "WidthLimit |= 1"); maxStackDepth caps recursion
// depth per width (0 selects the original's default of 10000).
func NewDecider(states uint8, widthLimit int, maxStackDepth uint32, sink *decidererr.Sink) *Decider {
	widthLimit |= 1
	if maxStackDepth == 0 {
		maxStackDepth = defaultMaxStackDepth
	}
	offset := (widthLimit + 1) / 2
	return &Decider{
		widthLimit:       widthLimit,
		maxStackDepth:    maxStackDepth,
		offset:           offset,
		predecessorTable: make([][]predecessor, int(states)+1),
		tape:             make([]uint8, widthLimit+2),
		alreadySeen:      make([][2]arena.Ref, int(states)+1),
		compoundPool:     arena.NewPool[compoundNode](4096),
		forwardPool:      arena.NewPool[forwardNode](4096),
		backwardPool:     arena.NewPool[backwardNode](4096),
		sink:             sink,
	}
}

// Decide sweeps HalfWidth from 1 up to the widest segment that fits within
// widthLimit, trying each in turn. ok is true, with a Certificate, as soon as
// some segment width proves the machine can never reach its true starting
// configuration from HALT.
func (d *Decider) Decide(machineIndex uint32, spec tm.Spec) (Certificate, bool) {
	d.buildPredecessorTables(spec)

	maxHalfWidth := (d.widthLimit - 1) / 2
	for halfWidth := 1; halfWidth <= maxHalfWidth; halfWidth++ {
		d.halfWidth = halfWidth
		d.resetSegment(halfWidth)

		if d.recurse(machineIndex, 0, configuration{state: 0, tapeHead: 0}) {
			return Certificate{
				Leftmost:     conv.IntToInt32(d.leftmost),
				Rightmost:    conv.IntToInt32(d.rightmost),
				MaxDepth:     d.maxDepth,
				NNodes:       d.nNodes,
				SegmentWidth: conv.IntToUint32(2*halfWidth + 1),
			}, true
		}
	}
	return Certificate{}, false
}

func (d *Decider) buildPredecessorTables(spec tm.Spec) {
	for i := range d.predecessorTable {
		d.predecessorTable[i] = d.predecessorTable[i][:0]
	}
	for i := 0; i < 2; i++ {
		d.leftOfSegment[i] = d.leftOfSegment[i][:0]
		d.rightOfSegment[i] = d.rightOfSegment[i][:0]
	}

	for state := uint8(1); state <= spec.States; state++ {
		for cell := uint8(0); cell < 2; cell++ {
			tr := spec.Transition(state, cell)
			p := predecessor{write: tr.Write, move: tr.Move, state: state, read: cell}
			d.predecessorTable[tr.Next] = append(d.predecessorTable[tr.Next], p)
			if tr.Next != 0 {
				if tr.Move == tm.MoveLeft {
					d.leftOfSegment[tr.Write] = append(d.leftOfSegment[tr.Write], p)
				} else {
					d.rightOfSegment[tr.Write] = append(d.rightOfSegment[tr.Write], p)
				}
			}
		}
	}
}

func (d *Decider) resetSegment(halfWidth int) {
	for i := -halfWidth; i <= halfWidth; i++ {
		d.tape[d.offset+i] = tapeAny
	}
	d.tape[d.offset-halfWidth-1] = tapeSentinelLeft
	d.tape[d.offset+halfWidth+1] = tapeSentinelRight

	d.compoundPool.Clear()
	d.forwardPool.Clear()
	d.backwardPool.Clear()
	for i := range d.alreadySeen {
		d.alreadySeen[i][0] = arena.NilRef
		d.alreadySeen[i][1] = arena.NilRef
	}
	d.exitedLeft = 0
	d.exitedRight = 0

	d.maxDepth, d.nNodes = 0, 0
	d.leftmost, d.rightmost = 0, 0
}

// segmentIsBlank reports whether every cell in the current segment is 0 or
// still unconstrained: if so, this configuration could be the machine's true
// all-zero starting tape, and the search must not treat it as closed off.
func (d *Decider) segmentIsBlank() bool {
	for i := -d.halfWidth; i <= d.halfWidth; i++ {
		c := d.tape[d.offset+i]
		if c != 0 && c != tapeAny {
			return false
		}
	}
	return true
}

// recurse explores every predecessor of cfg at the given depth, within the
// current segment. It returns false ("undecided by this segment width") as
// soon as any branch either matches the true starting configuration or
// exceeds maxStackDepth; true means every branch at and below this node
// closed off.
func (d *Decider) recurse(machineIndex uint32, depth uint32, cfg configuration) bool {
	if cfg.state == 1 && d.segmentIsBlank() {
		return false
	}

	if depth != 0 {
		d.nNodes++
	}

	depth++
	if depth > d.maxDepth {
		if depth > d.maxStackDepth {
			return false
		}
		d.maxDepth = depth
	}

	headIdx := d.offset + cfg.tapeHead
	if cell := d.tape[headIdx]; cell <= 1 {
		root := d.alreadySeen[cfg.state][cell]
		if d.findCompound(root, headIdx) {
			return true
		}
		d.alreadySeen[cfg.state][cell] = d.insertCompound(root, headIdx, d.nNodes)
	}

	exitedLeft, exitedRight := false, false
	preds := d.predecessorTable[cfg.state]
	for i := len(preds) - 1; i >= 0; i-- {
		p := preds[i]

		var prevHead int
		switch {
		case depth == 1:
			prevHead = cfg.tapeHead
		case p.move == tm.MoveLeft:
			prevHead = cfg.tapeHead + 1
			if prevHead > d.rightmost {
				d.rightmost = prevHead
			}
		default:
			prevHead = cfg.tapeHead - 1
			if prevHead < d.leftmost {
				d.leftmost = prevHead
			}
		}

		prevIdx := d.offset + prevHead
		if prevIdx < 0 || prevIdx >= len(d.tape) {
			d.sink.Report(&decidererr.ContractError{
				File:    "haltseg.go",
				Machine: machineIndex,
				Pass:    "decide",
				Message: "tape bounds exceeded",
			})
			return false
		}

		cell := d.tape[prevIdx]
		switch cell {
		case tapeSentinelLeft:
			if !exitedLeft {
				if !d.exitSegmentLeft(machineIndex, depth) {
					return false
				}
				exitedLeft = true
			}
			continue

		case tapeSentinelRight:
			if !exitedRight {
				if !d.exitSegmentRight(machineIndex, depth) {
					return false
				}
				exitedRight = true
			}
			continue

		case tapeAny:
			d.tape[prevIdx] = p.read

		default:
			if cell != p.write {
				continue // clash with a required cell value: impossible path
			}
			d.tape[prevIdx] = p.read
		}

		if !d.recurse(machineIndex, depth, configuration{state: p.state, tapeHead: prevHead}) {
			return false
		}
		d.tape[prevIdx] = cell
	}

	return true
}

// exitSegmentLeft handles a predecessor that must have walked off the left
// edge of the segment: the only thing known about it is the symbol it wrote
// there, so every state in leftOfSegment[cell] is a candidate, regardless of
// which state the search was in when it hit the sentinel.
func (d *Decider) exitSegmentLeft(machineIndex uint32, depth uint32) bool {
	if !d.segmentIsBlank() {
		return false
	}

	leftIdx := d.offset - d.halfWidth
	if d.findForward(d.exitedLeft, leftIdx) {
		return true
	}

	d.nNodes++
	depth++
	if depth > d.maxDepth {
		d.maxDepth = depth
	}

	d.exitedLeft = d.insertForward(d.exitedLeft, leftIdx, d.nNodes)

	cell := d.tape[leftIdx]
	preds := d.leftOfSegment[cell]
	for i := len(preds) - 1; i >= 0; i-- {
		p := preds[i]
		d.tape[leftIdx] = p.read
		if !d.recurse(machineIndex, depth, configuration{state: p.state, tapeHead: -d.halfWidth}) {
			return false
		}
		d.tape[leftIdx] = cell
	}
	return true
}

func (d *Decider) exitSegmentRight(machineIndex uint32, depth uint32) bool {
	if !d.segmentIsBlank() {
		return false
	}

	rightIdx := d.offset + d.halfWidth
	if d.findBackward(d.exitedRight, rightIdx) {
		return true
	}

	d.nNodes++
	depth++
	if depth > d.maxDepth {
		d.maxDepth = depth
	}

	d.exitedRight = d.insertBackward(d.exitedRight, rightIdx, d.nNodes)

	cell := d.tape[rightIdx]
	preds := d.rightOfSegment[cell]
	for i := len(preds) - 1; i >= 0; i-- {
		p := preds[i]
		d.tape[rightIdx] = p.read
		if !d.recurse(machineIndex, depth, configuration{state: p.state, tapeHead: d.halfWidth}) {
			return false
		}
		d.tape[rightIdx] = cell
	}
	return true
}

// findForward reports whether some previously-inserted key is a prefix of
// (or equal to) the tape cells starting at head and walking rightward,
// terminated by the first cell that isn't 0/1.
func (d *Decider) findForward(tree arena.NodeRef, head int) bool {
	if !tree.Valid() {
		return false
	}
	if tree.IsLeaf() {
		return true
	}
	for {
		if d.tape[head] > 1 {
			return false
		}
		tree = d.forwardPool.Get(arena.Ref(tree.Index())).next[d.tape[head]]
		if !tree.Valid() {
			return false
		}
		if tree.IsLeaf() {
			return true
		}
		head++
	}
}

// insertForward records the tape cells starting at head and walking
// rightward (up to the first non-0/1 cell) as a new key, tagged with
// nodeIndex, into the forwardNode trie rooted at tree.
func (d *Decider) insertForward(tree arena.NodeRef, head int, nodeIndex uint32) arena.NodeRef {
	if d.tape[head] > 1 {
		return arena.LeafRef(nodeIndex)
	}
	if !tree.Valid() {
		tree = arena.InnerRef(uint32(d.forwardPool.Alloc()))
	}

	cur := tree
	for {
		bit := d.tape[head]
		if d.tape[head+1] > 1 {
			d.forwardPool.Get(arena.Ref(cur.Index())).next[bit] = arena.LeafRef(nodeIndex)
			return tree
		}
		child := d.forwardPool.Get(arena.Ref(cur.Index())).next[bit]
		if !child.Valid() {
			child = arena.InnerRef(uint32(d.forwardPool.Alloc()))
			d.forwardPool.Get(arena.Ref(cur.Index())).next[bit] = child
		}
		cur = child
		head++
	}
}

// findBackward and insertBackward mirror findForward/insertForward, walking
// leftward instead of rightward (original's BackwardTree).
func (d *Decider) findBackward(tree arena.NodeRef, head int) bool {
	if !tree.Valid() {
		return false
	}
	if tree.IsLeaf() {
		return true
	}
	for {
		if d.tape[head] > 1 {
			return false
		}
		tree = d.backwardPool.Get(arena.Ref(tree.Index())).next[d.tape[head]]
		if !tree.Valid() {
			return false
		}
		if tree.IsLeaf() {
			return true
		}
		head--
	}
}

func (d *Decider) insertBackward(tree arena.NodeRef, head int, nodeIndex uint32) arena.NodeRef {
	if d.tape[head] > 1 {
		return arena.LeafRef(nodeIndex)
	}
	if !tree.Valid() {
		tree = arena.InnerRef(uint32(d.backwardPool.Alloc()))
	}

	cur := tree
	for {
		bit := d.tape[head]
		if d.tape[head-1] > 1 {
			d.backwardPool.Get(arena.Ref(cur.Index())).next[bit] = arena.LeafRef(nodeIndex)
			return tree
		}
		child := d.backwardPool.Get(arena.Ref(cur.Index())).next[bit]
		if !child.Valid() {
			child = arena.InnerRef(uint32(d.backwardPool.Alloc()))
			d.backwardPool.Get(arena.Ref(cur.Index())).next[bit] = child
		}
		cur = child
		head--
	}
}

// findCompound walks increasing left-context lengths rooted at tree,
// checking at each length whether the matching node's SubTree accepts the
// (fixed, unchanging) cells to the right of head.
func (d *Decider) findCompound(tree arena.Ref, head int) bool {
	p := head - 1
	for tree != arena.NilRef {
		node := d.compoundPool.Get(tree)
		if d.findForward(node.subTree, head+1) {
			return true
		}
		if d.tape[p] > 1 {
			return false
		}
		tree = node.next[d.tape[p]]
		p--
	}
	return false
}

// insertCompound extends the left-context chain rooted at tree out to the
// first non-0/1 cell to the left of head, then records the cells to the
// right of head as a key in that node's SubTree.
func (d *Decider) insertCompound(tree arena.Ref, head int, nodeIndex uint32) arena.Ref {
	if tree == arena.NilRef {
		tree = d.compoundPool.Alloc()
	}

	cur := tree
	p := head - 1
	for d.tape[p] <= 1 {
		bit := d.tape[p]
		child := d.compoundPool.Get(cur).next[bit]
		if child == arena.NilRef {
			child = d.compoundPool.Alloc()
			d.compoundPool.Get(cur).next[bit] = child
		}
		cur = child
		p--
	}

	node := d.compoundPool.Get(cur)
	node.subTree = d.insertForward(node.subTree, head+1, nodeIndex)
	return tree
}
