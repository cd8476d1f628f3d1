// Command verifyfar replays and checks every finite-automata-reduction
// certificate in a verification file, grounded on
// original_source/FAR/VerifyFAR.cpp's main(). Unlike the other engines,
// a single dvf stream mixes two certificate shapes (FAR_DFA_ONLY and
// FAR_DFA_NFA), dispatched per entry by its own DeciderTag, matching the
// original's single Verifier.Verify call that branches internally; -F
// (CheckNFA) additionally asks FAR_DFA_NFA entries to have their NFA
// reconstruction checked against the NFA recorded in the dvf, rather than
// only checking the DFA half.
package main

import (
	"os"

	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/far"
	"github.com/bbchallenge/decider-core/internal/runverifier"
	"github.com/bbchallenge/decider-core/tm"
)

func main() {
	var checkNFA bool
	extra := func(letter byte, rest string) (bool, error) {
		if letter == 'F' {
			checkNFA = true
			return true, nil
		}
		return false, nil
	}

	cfg := runverifier.Config{
		Name:  "verifyfar",
		Tags:  []codec.Tag{codec.TagFARDFAOnly, codec.TagFARDFANFA},
		Extra: extra,
		VerifyEntry: func(spec tm.Spec, states uint8, tag codec.Tag, info []byte) error {
			if tag == codec.TagFARDFAOnly {
				cert, err := far.Decode(info)
				if err != nil {
					return err
				}
				return far.Verify(spec, states, cert)
			}
			cert, err := far.DecodeNFA(info)
			if err != nil {
				return err
			}
			return far.VerifyNFA(spec, states, cert, checkNFA)
		},
	}
	runverifier.Main(os.Args[1:], cfg)
}
