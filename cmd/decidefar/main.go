// Command decidefar runs the finite-automata-reduction decider over a seed
// database, grounded on original_source/FAR/DecideFAR.cpp's main().
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/decidererr"
	"github.com/bbchallenge/decider-core/far"
	"github.com/bbchallenge/decider-core/internal/cliflag"
	"github.com/bbchallenge/decider-core/internal/rundecider"
	"github.com/bbchallenge/decider-core/pipeline"
	"github.com/bbchallenge/decider-core/tm"
)

func main() {
	var dfaStates uint32
	var dfaStatesPresent bool
	var outputNFA bool

	extra := func(letter byte, rest string) (bool, error) {
		switch letter {
		case 'A':
			v, err := cliflag.ParseInt("-A", rest)
			if err != nil {
				return true, err
			}
			if v > far.MaxDFAStates {
				return true, fmt.Errorf("dfa states too large (max %d)", far.MaxDFAStates)
			}
			dfaStates, dfaStatesPresent = v, true
			return true, nil
		case 'F':
			outputNFA = true
			return true, nil
		}
		return false, nil
	}

	cfg := rundecider.Config{
		Name: "decidefar",
		Tag:  codec.TagFARDFAOnly,
		TagFor: func(info []byte) codec.Tag {
			if outputNFA {
				return codec.TagFARDFANFA
			}
			return codec.TagFARDFAOnly
		},
		Extra: extra,
		Validate: func(flags *cliflag.DeciderCommon) error {
			if !dfaStatesPresent {
				return fmt.Errorf("dfa states not specified (-A<dfa-states>)")
			}
			return nil
		},
		NewDecide: func(flags *cliflag.DeciderCommon) pipeline.Decide {
			sink := decidererr.NewSink(os.Exit)
			states := uint8(flags.MachineStates)
			deciders := sync.Pool{New: func() any {
				return far.NewDecider(states, sink)
			}}

			if outputNFA {
				return func(machineIndex uint32, spec tm.Spec) ([]byte, bool) {
					d := deciders.Get().(*far.Decider)
					defer deciders.Put(d)
					for width := uint32(1); width <= dfaStates; width++ {
						if cert, ok := d.DecideNFA(machineIndex, spec, width); ok {
							return cert.Encode(), true
						}
					}
					return nil, false
				}
			}
			return func(machineIndex uint32, spec tm.Spec) ([]byte, bool) {
				d := deciders.Get().(*far.Decider)
				defer deciders.Put(d)
				for width := uint32(1); width <= dfaStates; width++ {
					if cert, ok := d.Decide(machineIndex, spec, width); ok {
						return cert.Encode(), true
					}
				}
				return nil, false
			}
		},
		Describe: func(flags *cliflag.DeciderCommon, idx uint32, spec tm.Spec, decide pipeline.Decide) string {
			info, ok := decide(idx, spec)
			if !ok {
				return fmt.Sprintf("Machine %d: undecided", idx)
			}
			if outputNFA {
				cert, err := far.DecodeNFA(info)
				if err != nil {
					return fmt.Sprintf("Machine %d: decided, but certificate failed to decode: %v", idx, err)
				}
				return fmt.Sprintf("Machine %d: decided (dfaStates=%d nfaStates=%d direction=%d)",
					idx, cert.DFAStates, cert.NFAStates, cert.Direction)
			}
			cert, err := far.Decode(info)
			if err != nil {
				return fmt.Sprintf("Machine %d: decided, but certificate failed to decode: %v", idx, err)
			}
			return fmt.Sprintf("Machine %d: decided (dfaStates=%d direction=%d)", idx, cert.DFAStates, cert.Direction)
		},
	}
	rundecider.Main(os.Args[1:], cfg)
}
