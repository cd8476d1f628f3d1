// Command decidebackwardreasoning runs the backward-reasoning decider over
// a seed database, grounded on
// original_source/BackwardReasoning/BackwardReasoning.cpp's main().
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/bbchallenge/decider-core/backward"
	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/internal/cliflag"
	"github.com/bbchallenge/decider-core/internal/rundecider"
	"github.com/bbchallenge/decider-core/pipeline"
	"github.com/bbchallenge/decider-core/tm"
)

// maxSpace mirrors bbchallenge.h's MAX_SPACE; BackwardReasoning.cpp's own
// main() hardcodes it as the decider's space limit rather than exposing it
// as a flag.
const maxSpace = 12289

func main() {
	var depthLimit uint32
	var depthLimitPresent bool

	extra := func(letter byte, rest string) (bool, error) {
		if letter != 'S' {
			return false, nil
		}
		v, err := cliflag.ParseInt("-S", rest)
		if err != nil {
			return true, err
		}
		depthLimit, depthLimitPresent = v, true
		return true, nil
	}

	cfg := rundecider.Config{
		Name:  "decidebackwardreasoning",
		Tag:   codec.TagBackwardReasoning,
		Extra: extra,
		Validate: func(flags *cliflag.DeciderCommon) error {
			if !depthLimitPresent {
				return fmt.Errorf("depth limit not specified (-S<depth>)")
			}
			return nil
		},
		NewDecide: func(flags *cliflag.DeciderCommon) pipeline.Decide {
			sink := decidererr.NewSink(os.Exit)
			states := uint8(flags.MachineStates)
			// backward.Decider is "not safe for concurrent use; each
			// worker goroutine owns its own Decider" (see its doc
			// comment); sync.Pool hands each pipeline goroutine its own
			// instance instead of requiring a fixed per-thread slot.
			deciders := sync.Pool{New: func() any {
				return backward.NewDecider(states, depthLimit, maxSpace, sink)
			}}
			return func(machineIndex uint32, spec tm.Spec) ([]byte, bool) {
				d := deciders.Get().(*backward.Decider)
				defer deciders.Put(d)
				cert, ok := d.Decide(machineIndex, spec)
				if !ok {
					return nil, false
				}
				return cert.Encode(), true
			}
		},
		Describe: func(flags *cliflag.DeciderCommon, idx uint32, spec tm.Spec, decide pipeline.Decide) string {
			info, ok := decide(idx, spec)
			if !ok {
				return fmt.Sprintf("Machine %d: undecided", idx)
			}
			cert, err := backward.Decode(info)
			if err != nil {
				return fmt.Sprintf("Machine %d: decided, but certificate failed to decode: %v", idx, err)
			}
			return fmt.Sprintf("Machine %d: decided (leftmost=%d rightmost=%d maxDepth=%d nodes=%d)",
				idx, cert.Leftmost, cert.Rightmost, cert.MaxDepth, cert.NNodes)
		},
	}
	rundecider.Main(os.Args[1:], cfg)
}
