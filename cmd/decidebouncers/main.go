// Command decidebouncers runs the bouncer decider over a seed database,
// grounded on original_source/Bouncers/DecideBouncers.cpp's main().
//
// bouncer.Decide certifies single-partition (nPartitions == 1) Unilateral
// and Bilateral bouncers; Translated and multi-partition bouncers are
// detected but left undecided (see bouncer's package comments and
// DESIGN.md's [[bouncer]] entry for the full scope statement). Machines
// outside that scope are written to the undecided-file stream, same as any
// machine no cycle was found for.
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/bbchallenge/decider-core/bouncer"
	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/internal/cliflag"
	"github.com/bbchallenge/decider-core/internal/rundecider"
	"github.com/bbchallenge/decider-core/pipeline"
	"github.com/bbchallenge/decider-core/tm"
)

func main() {
	var timeLimit uint64
	var timeLimitPresent bool
	var spaceLimit int
	var spaceLimitPresent bool

	extra := func(letter byte, rest string) (bool, error) {
		switch letter {
		case 'T':
			v, err := cliflag.ParseInt("-T", rest)
			if err != nil {
				return true, err
			}
			timeLimit, timeLimitPresent = uint64(v), true
			return true, nil
		case 'S':
			v, err := cliflag.ParseInt("-S", rest)
			if err != nil {
				return true, err
			}
			spaceLimit, spaceLimitPresent = int(v), true
			return true, nil
		case 'B':
			// OutputBells in the original; this port has no bells-style
			// diagnostic dump, so the flag is accepted and ignored.
			return true, nil
		}
		return false, nil
	}

	cfg := rundecider.Config{
		Name:  "decidebouncers",
		Tag:   codec.TagBouncer,
		Extra: extra,
		Validate: func(flags *cliflag.DeciderCommon) error {
			if !timeLimitPresent {
				return fmt.Errorf("time limit not specified (-T<time>)")
			}
			if !spaceLimitPresent {
				return fmt.Errorf("space limit not specified (-S<space>)")
			}
			return nil
		},
		NewDecide: func(flags *cliflag.DeciderCommon) pipeline.Decide {
			sink := decidererr.NewSink(os.Exit)
			states := uint8(flags.MachineStates)
			deciders := sync.Pool{New: func() any {
				return bouncer.NewDecider(states, timeLimit, spaceLimit, sink)
			}}
			return func(machineIndex uint32, spec tm.Spec) ([]byte, bool) {
				d := deciders.Get().(*bouncer.Decider)
				defer deciders.Put(d)
				cert, ok := d.Decide(machineIndex, spec)
				if !ok {
					return nil, false
				}
				return cert.Encode(), true
			}
		},
		Describe: func(flags *cliflag.DeciderCommon, idx uint32, spec tm.Spec, decide pipeline.Decide) string {
			sink := decidererr.NewSink(os.Exit)
			d := bouncer.NewDecider(uint8(flags.MachineStates), timeLimit, spaceLimit, sink)
			witness, ok := d.DetectCycle(idx, spec)
			if !ok {
				return fmt.Sprintf("Machine %d: no bouncer cycle detected", idx)
			}
			_, certified := d.Decide(idx, spec)
			return fmt.Sprintf("Machine %d: bouncer cycle detected (state=%d shift=%d steps1=%d steps2=%d type=%s certified=%t)",
				idx, witness.State, witness.CycleShift, witness.StepCount1, witness.StepCount2, witness.Type, certified)
		},
	}
	rundecider.Main(os.Args[1:], cfg)
}
