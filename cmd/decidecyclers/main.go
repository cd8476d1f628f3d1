// Command decidecyclers runs the cycler decider over a seed database,
// grounded on original_source/Cyclers/DecideCyclers.cpp's main().
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/cycler"
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
		}
		return false, nil
	}

	cfg := rundecider.Config{
		Name:  "decidecyclers",
		Tag:   codec.TagCycler,
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

			// One Decider/Machine pair per concurrent caller, mirroring
			// the original's DeciderArray[i]/DeciderArray[i]->Clone
			// per-thread allocation; sync.Pool lets goroutines borrow
			// rather than requiring a fixed per-thread slot.
			deciders := sync.Pool{New: func() any {
				return cycler.NewDecider(states, timeLimit, spaceLimit, sink)
			}}
			machines := sync.Pool{New: func() any {
				return tm.NewMachine(spaceLimit)
			}}

			return func(machineIndex uint32, spec tm.Spec) ([]byte, bool) {
				d := deciders.Get().(*cycler.Decider)
				defer deciders.Put(d)
				m := machines.Get().(*tm.Machine)
				defer machines.Put(m)

				m.Init(machineIndex, spec)
				cert, ok := d.Decide(machineIndex, m)
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
			cert, err := cycler.Decode(info)
			if err != nil {
				return fmt.Sprintf("Machine %d: decided, but certificate failed to decode: %v", idx, err)
			}
			return fmt.Sprintf("Machine %d: decided (state=%d head=%d initial=%d final=%d)",
				idx, cert.State, cert.TapeHead, cert.InitialStep, cert.FinalStep)
		},
	}
	rundecider.Main(os.Args[1:], cfg)
}
