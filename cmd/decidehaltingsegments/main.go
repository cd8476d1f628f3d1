// Command decidehaltingsegments runs the halting-segment decider over a
// seed database, grounded on
// original_source/HaltingSegments/HaltingSegments.cpp's main().
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/haltseg"
	"github.com/bbchallenge/decider-core/internal/cliflag"
	"github.com/bbchallenge/decider-core/internal/rundecider"
	"github.com/bbchallenge/decider-core/pipeline"
	"github.com/bbchallenge/decider-core/tm"
)

// defaultMaxStackDepth mirrors HaltingSegments.cpp's own
// "uint32_t MaxStackDepth = 10000" initializer, used when -S is absent.
const defaultMaxStackDepth = 10000

func main() {
	var widthLimit int
	var widthLimitPresent bool
	maxStackDepth := uint32(defaultMaxStackDepth)

	extra := func(letter byte, rest string) (bool, error) {
		switch letter {
		case 'W':
			v, err := cliflag.ParseInt("-W", rest)
			if err != nil {
				return true, err
			}
			if v&1 == 0 {
				return true, fmt.Errorf("segment width limit must be odd")
			}
			widthLimit, widthLimitPresent = int(v), true
			return true, nil
		case 'S':
			v, err := cliflag.ParseInt("-S", rest)
			if err != nil {
				return true, err
			}
			maxStackDepth = v
			return true, nil
		}
		return false, nil
	}

	cfg := rundecider.Config{
		Name:  "decidehaltingsegments",
		Tag:   codec.TagHaltingSegment,
		Extra: extra,
		Validate: func(flags *cliflag.DeciderCommon) error {
			if !widthLimitPresent {
				return fmt.Errorf("width limit not specified (-W<width>)")
			}
			return nil
		},
		NewDecide: func(flags *cliflag.DeciderCommon) pipeline.Decide {
			sink := decidererr.NewSink(os.Exit)
			states := uint8(flags.MachineStates)
			// haltseg.Decider is "not safe for concurrent use; each
			// worker goroutine owns its own Decider" (see its doc
			// comment); sync.Pool hands each pipeline goroutine its
			// own instance instead of requiring a fixed per-thread slot.
			deciders := sync.Pool{New: func() any {
				return haltseg.NewDecider(states, widthLimit, maxStackDepth, sink)
			}}
			return func(machineIndex uint32, spec tm.Spec) ([]byte, bool) {
				d := deciders.Get().(*haltseg.Decider)
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
			cert, err := haltseg.Decode(info)
			if err != nil {
				return fmt.Sprintf("Machine %d: decided, but certificate failed to decode: %v", idx, err)
			}
			return fmt.Sprintf("Machine %d: decided (leftmost=%d rightmost=%d maxDepth=%d nodes=%d width=%d)",
				idx, cert.Leftmost, cert.Rightmost, cert.MaxDepth, cert.NNodes, cert.SegmentWidth)
		},
	}
	rundecider.Main(os.Args[1:], cfg)
}
