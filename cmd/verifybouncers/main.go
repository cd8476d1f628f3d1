// Command verifybouncers replays and checks every bouncer certificate in a
// verification file, grounded on
// original_source/Bouncers/VerifyBouncers.cpp's main(). It is independent
// of decidebouncers: it checks the bouncer certificates of any compatible
// dvf file, whether decidebouncers or another program wrote them, the same
// way the original's verifier and decider are separate programs with no
// runtime dependency on each other.
package main

import (
	"os"

	"github.com/bbchallenge/decider-core/bouncer"
	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/internal/runverifier"
	"github.com/bbchallenge/decider-core/tm"
)

func main() {
	cfg := runverifier.Config{
		Name: "verifybouncers",
		Tag:  codec.TagBouncer,
		VerifyEntry: func(spec tm.Spec, states uint8, tag codec.Tag, info []byte) error {
			cert, err := bouncer.Decode(info)
			if err != nil {
				return err
			}
			return bouncer.Verify(spec, states, cert)
		},
	}
	runverifier.Main(os.Args[1:], cfg)
}
