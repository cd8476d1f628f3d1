// Package runverifier is the shared cmd/verify* binary scaffolding,
// grounded on original_source/Cyclers/VerifyCyclers.cpp's main(): read the
// dvf header, then for each entry check its DeciderTag, re-fetch the
// machine spec from the seed database, and verify its certificate,
// printing a running percent and a closing "%d <engine> verified" /
// "Elapsed time %.3f" summary. Every Verify*.cpp in original_source/
// follows this same shape; the only difference between engines is the
// certificate decode-and-check step, which each cmd/verify<engine>/main.go
// supplies.
package runverifier

import (
	"fmt"
	"io"
	"os"

	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/internal/cliflag"
	"github.com/bbchallenge/decider-core/progress"
	"github.com/bbchallenge/decider-core/seeddb"
	"github.com/bbchallenge/decider-core/tm"
)

// Config is what one engine's cmd/verify<engine>/main.go supplies.
type Config struct {
	// Name appears in usage/error messages and the closing summary line.
	Name string
	// Tag is the DeciderTag this verifier accepts; any other tag in the
	// dvf stream is a fatal "Unrecognised DeciderTag" error. Ignored if
	// Tags is non-empty.
	Tag codec.Tag
	// Tags, when non-empty, is the set of DeciderTags this verifier
	// accepts instead of a single Tag — translated cycler's dvf stream
	// carries both TagTranslatedCyclerRight and Left entries, checked by
	// the same VerifyEntry.
	Tags []codec.Tag
	// Extra parses this engine's own verifier-only flags (far's -F). May
	// be nil.
	Extra cliflag.Extra
	// VerifyEntry decodes info and checks it against spec, returning an
	// error describing the first violation found. tag is the entry's own
	// DeciderTag, for verifiers whose dvf stream mixes certificate shapes
	// (far's FAR_DFA_ONLY vs FAR_DFA_NFA).
	VerifyEntry func(spec tm.Spec, states uint8, tag codec.Tag, info []byte) error
}

func (c Config) acceptsTag(tag codec.Tag) bool {
	if len(c.Tags) == 0 {
		return tag == c.Tag
	}
	for _, t := range c.Tags {
		if tag == t {
			return true
		}
	}
	return false
}

// Main runs a cmd/verify* binary's full lifecycle against os.Args[1:],
// exiting with status 1 on any fatal error.
func Main(args []string, cfg Config) {
	if err := Run(args, cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cfg.Name, err)
		os.Exit(1)
	}
}

// Run is Main's testable core.
func Run(args []string, cfg Config, out, errw io.Writer) error {
	var common cliflag.Common
	common.MachineStates = 5
	common.BinaryMachineSpecs = true

	if err := cliflag.Parse(args, cfg.Extra, func(arg string) (bool, error) {
		return cliflag.ParseCommon(&common, arg)
	}); err != nil {
		return err
	}
	if err := cliflag.CheckVerifier(&common); err != nil {
		return err
	}
	if common.VerificationFilename == "" {
		return fmt.Errorf("-V<verification file> is required")
	}
	if common.DatabaseFilename == "" {
		return fmt.Errorf("-D<database> is required")
	}

	vf, err := os.Open(common.VerificationFilename)
	if err != nil {
		return fmt.Errorf("opening verification file: %w", err)
	}
	defer vf.Close()
	entries, err := codec.ReadVerificationFile(vf)
	if err != nil {
		return err
	}

	format := seeddb.FormatBinary
	if !common.BinaryMachineSpecs {
		format = seeddb.FormatASCII
	}
	db, err := seeddb.OpenFile(common.DatabaseFilename, uint8(common.MachineStates), format)
	if err != nil {
		return err
	}
	defer db.Close()

	reporter := progress.New(out)
	states := uint8(common.MachineStates)
	for i, e := range entries {
		if !cfg.acceptsTag(e.Tag) {
			return fmt.Errorf("entry %d: unrecognised decider tag %s", i, e.Tag)
		}
		spec, err := db.Fetch(e.SeedIndex)
		if err != nil {
			return err
		}
		if err := cfg.VerifyEntry(spec, states, e.Tag, e.Info); err != nil {
			return fmt.Errorf("entry %d (machine %d): %w", i, e.SeedIndex, err)
		}
		reporter.Update(uint32(i+1), uint32(len(entries)), uint32(i+1))
	}

	reporter.Finish(uint32(len(entries)), uint32(len(entries)))
	fmt.Fprintf(out, "%d %s verified\n", len(entries), cfg.Name)
	return nil
}
