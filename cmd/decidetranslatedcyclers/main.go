// Command decidetranslatedcyclers runs the translated-cycler decider over a
// seed database, grounded on
// original_source/TranslatedCyclers/DecideTranslatedCyclers.cpp's main().
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/internal/cliflag"
	"github.com/bbchallenge/decider-core/internal/rundecider"
	"github.com/bbchallenge/decider-core/pipeline"
	"github.com/bbchallenge/decider-core/tm"
	"github.com/bbchallenge/decider-core/translated"
)

// defaultSpaceLimit mirrors DecideTranslatedCyclers.cpp's own fallback
// ("if (!SpaceLimitPresent) SpaceLimit = 100000 ;"), distinct from
// Cyclers, which requires -S.
const defaultSpaceLimit = 100000

// recordLimit mirrors TranslatedCycler.h's "RecordLimit = 50000 ; // for
// now", which the original never exposes as a flag.
const recordLimit = 50000

func main() {
	var timeLimit uint64
	var timeLimitPresent bool
	spaceLimit := defaultSpaceLimit

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
			spaceLimit = int(v)
			return true, nil
		}
		return false, nil
	}

	cfg := rundecider.Config{
		Name: "decidetranslatedcyclers",
		Tag:  codec.TagTranslatedCyclerRight,
		TagFor: func(info []byte) codec.Tag {
			if len(info) > 0 && info[0] == uint8(translated.DirLeft) {
				return codec.TagTranslatedCyclerLeft
			}
			return codec.TagTranslatedCyclerRight
		},
		Extra: extra,
		Validate: func(flags *cliflag.DeciderCommon) error {
			if !timeLimitPresent {
				return fmt.Errorf("time limit not specified (-T<time>)")
			}
			return nil
		},
		NewDecide: func(flags *cliflag.DeciderCommon) pipeline.Decide {
			sink := decidererr.NewSink(os.Exit)
			states := uint8(flags.MachineStates)

			deciders := sync.Pool{New: func() any {
				return translated.NewDecider(states, timeLimit, spaceLimit, recordLimit, sink)
			}}
			machines := sync.Pool{New: func() any {
				return tm.NewMachine(spaceLimit)
			}}

			return func(machineIndex uint32, spec tm.Spec) ([]byte, bool) {
				d := deciders.Get().(*translated.Decider)
				defer deciders.Put(d)
				m := machines.Get().(*tm.Machine)
				defer machines.Put(m)

				m.Init(machineIndex, spec)
				cert, dir, ok := d.Decide(machineIndex, m)
				if !ok {
					return nil, false
				}
				return append([]byte{uint8(dir)}, cert.Encode()...), true
			}
		},
		Describe: func(flags *cliflag.DeciderCommon, idx uint32, spec tm.Spec, decide pipeline.Decide) string {
			info, ok := decide(idx, spec)
			if !ok {
				return fmt.Sprintf("Machine %d: undecided", idx)
			}
			dir := translated.Direction(info[0])
			cert, err := translated.Decode(info[1:])
			if err != nil {
				return fmt.Sprintf("Machine %d: decided, but certificate failed to decode: %v", idx, err)
			}
			return fmt.Sprintf("Machine %d: decided (direction=%s state=%d initial=%d final=%d match=%d)",
				idx, dir, cert.State, cert.InitialStepCount, cert.FinalStepCount, cert.MatchLength)
		},
	}
	rundecider.Main(os.Args[1:], cfg)
}
