// Command verifycyclers replays and checks every cycler certificate in a
// verification file, grounded on
// original_source/Cyclers/VerifyCyclers.cpp's main().
package main

import (
	"os"

	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/cycler"
	"github.com/bbchallenge/decider-core/internal/runverifier"
	"github.com/bbchallenge/decider-core/tm"
)

func main() {
	cfg := runverifier.Config{
		Name: "verifycyclers",
		Tag:  codec.TagCycler,
		VerifyEntry: func(spec tm.Spec, states uint8, tag codec.Tag, info []byte) error {
			cert, err := cycler.Decode(info)
			if err != nil {
				return err
			}
			return cycler.Verify(spec, states, cert)
		},
	}
	runverifier.Main(os.Args[1:], cfg)
}
