// Command verifytranslatedcyclers replays and checks every translated
// cycler certificate in a verification file, grounded on
// original_source/TranslatedCyclers/VerifyTranslatedCyclers.cpp's main().
//
// decidetranslatedcyclers writes each entry's Info as a 1-byte direction
// marker (translated.Direction) followed by the certificate's own encoding;
// the dvf Tag already distinguishes TagTranslatedCyclerRight/Left, and this
// verifier accepts either, but translated.Verify itself additionally needs
// the direction to know which side of the tape it is checking, so the
// marker travels with the payload instead of being re-derived from the tag.
package main

import (
	"fmt"
	"os"

	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/internal/runverifier"
	"github.com/bbchallenge/decider-core/tm"
	"github.com/bbchallenge/decider-core/translated"
)

func main() {
	cfg := runverifier.Config{
		Name: "verifytranslatedcyclers",
		Tags: []codec.Tag{codec.TagTranslatedCyclerRight, codec.TagTranslatedCyclerLeft},
		VerifyEntry: func(spec tm.Spec, states uint8, tag codec.Tag, info []byte) error {
			if len(info) < 1 {
				return fmt.Errorf("verifytranslatedcyclers: empty entry")
			}
			dir := translated.Direction(info[0])
			cert, err := translated.Decode(info[1:])
			if err != nil {
				return err
			}
			return translated.Verify(spec, states, dir, cert)
		},
	}
	runverifier.Main(os.Args[1:], cfg)
}
