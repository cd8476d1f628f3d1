// Package rundecider is the shared cmd/decide* binary scaffolding: parse
// the common + decider flag surface, open the seed database and I/O
// files, build the machine-index list, and drive pipeline.Driver. Every
// Decide*.cpp main() in original_source/ follows exactly this shape,
// differing only in which Decider it constructs and which extra flags it
// adds (-T, -S, -W, -A, -F, -B); this package factors out everything
// else so each cmd/decide<engine>/main.go only supplies that difference.
package rundecider

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/internal/cliflag"
	"github.com/bbchallenge/decider-core/pipeline"
	"github.com/bbchallenge/decider-core/progress"
	"github.com/bbchallenge/decider-core/seeddb"
	"github.com/bbchallenge/decider-core/tm"
)

// Config is what one engine's cmd/decide<engine>/main.go supplies.
type Config struct {
	// Name appears in usage/error messages and the closing summary line.
	Name string
	// Tag marks this engine's dvf entries.
	Tag codec.Tag
	// TagFor overrides Tag per certificate (translated cycler picks
	// TagTranslatedCyclerRight/Left by direction). May be nil.
	TagFor func(info []byte) codec.Tag
	// Extra parses this engine's own flags (e.g. -T<time> -S<depth>).
	// May be nil.
	Extra cliflag.Extra
	// Validate checks engine-specific mandatory flags Extra collected
	// (e.g. "Time limit not specified"), mirroring the fatal checks each
	// original Decide*.cpp's own Parse() runs after its parameter loop.
	// May be nil.
	Validate func(flags *cliflag.DeciderCommon) error
	// NewDecide builds the per-run decide function once flags are parsed
	// and checked.
	NewDecide func(flags *cliflag.DeciderCommon) pipeline.Decide
	// Describe formats one machine's outcome for -X/-M single-machine
	// mode (spec.md §6).
	Describe func(flags *cliflag.DeciderCommon, machineIndex uint32, spec tm.Spec, decide pipeline.Decide) string
}

// Main runs a cmd/decide* binary's full lifecycle against os.Args[1:],
// exiting with status 1 on any fatal error (spec.md §6's exit-code
// contract), matching the original's PrintHelpAndExit(1)/exit(1) calls.
func Main(args []string, cfg Config) {
	if err := Run(args, cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cfg.Name, err)
		os.Exit(1)
	}
}

// Run is Main's testable core.
func Run(args []string, cfg Config, out, errw io.Writer) error {
	flags := &cliflag.DeciderCommon{Common: cliflag.Common{MachineStates: 5, BinaryMachineSpecs: true}}

	if err := cliflag.Parse(args, cfg.Extra, func(arg string) (bool, error) {
		return cliflag.ParseDecider(flags, arg)
	}); err != nil {
		return err
	}
	warnings, err := cliflag.CheckDecider(flags)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintln(errw, w)
	}
	if cfg.Validate != nil {
		if err := cfg.Validate(flags); err != nil {
			return err
		}
	}

	decide := cfg.NewDecide(flags)

	if flags.MachineSpec != "" {
		spec, err := tm.ParseASCII(uint8(flags.MachineStates), flags.MachineSpec)
		if err != nil {
			return fmt.Errorf("parsing -M machine spec: %w", err)
		}
		fmt.Fprintln(out, cfg.Describe(flags, 0, spec, decide))
		return nil
	}

	if flags.DatabaseFilename == "" {
		return fmt.Errorf("-D<database> is required")
	}
	format := seeddb.FormatBinary
	if !flags.BinaryMachineSpecs {
		format = seeddb.FormatASCII
	}
	db, err := seeddb.OpenFile(flags.DatabaseFilename, uint8(flags.MachineStates), format)
	if err != nil {
		return err
	}
	defer db.Close()

	if flags.TestMachinePresent {
		spec, err := db.Fetch(flags.TestMachine)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cfg.Describe(flags, flags.TestMachine, spec, decide))
		return nil
	}

	indices, err := loadIndices(flags, db)
	if err != nil {
		return err
	}

	vw, closeV, err := openVerificationWriter(flags)
	if err != nil {
		return err
	}
	if closeV != nil {
		defer closeV()
	}

	uw, closeU, err := openUndecidedWriter(flags)
	if err != nil {
		return err
	}
	if closeU != nil {
		defer closeU()
	}

	reporterOut := io.Discard
	if flags.TraceOutput {
		reporterOut = out
	}
	reporter := progress.New(reporterOut)

	threads := int(flags.NThreads)
	if !flags.NThreadsPresent {
		threads = defaultThreads()
	}

	driver := &pipeline.Driver{Tag: cfg.Tag, TagFor: cfg.TagFor, Decide: decide, Threads: threads, Progress: reporter}
	decided, err := driver.Run(context.Background(), db, indices, vw, uw)
	if err != nil {
		return err
	}
	reporter.Finish(decided, uint32(len(indices)))
	return nil
}

func openVerificationWriter(flags *cliflag.DeciderCommon) (*codec.VerificationWriter, func(), error) {
	if flags.VerificationFilename == "" {
		return nil, nil, nil
	}
	f, err := os.Create(flags.VerificationFilename)
	if err != nil {
		return nil, nil, fmt.Errorf("creating verification file: %w", err)
	}
	vw, err := codec.NewVerificationWriter(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return vw, func() { vw.Close(); f.Close() }, nil
}

func openUndecidedWriter(flags *cliflag.DeciderCommon) (*codec.UndecidedWriter, func(), error) {
	if flags.UndecidedFilename == "" {
		return nil, nil, nil
	}
	f, err := os.Create(flags.UndecidedFilename)
	if err != nil {
		return nil, nil, fmt.Errorf("creating undecided file: %w", err)
	}
	uw := codec.NewUndecidedWriter(f)
	return uw, func() { uw.Close(); f.Close() }, nil
}

func loadIndices(flags *cliflag.DeciderCommon, db *seeddb.DB) ([]uint32, error) {
	if flags.InputFilename != "" {
		f, err := os.Open(flags.InputFilename)
		if err != nil {
			return nil, fmt.Errorf("opening input file: %w", err)
		}
		defer f.Close()
		indices, err := codec.ReadUndecidedFile(f)
		if err != nil {
			return nil, err
		}
		if flags.MachineLimitPresent && uint32(len(indices)) > flags.MachineLimit {
			indices = indices[:flags.MachineLimit]
		}
		return indices, nil
	}

	n := db.NMachines()
	if flags.MachineLimitPresent && flags.MachineLimit < n {
		n = flags.MachineLimit
	}
	indices := make([]uint32, n)
	for i := range indices {
		indices[i] = uint32(i)
	}
	return indices, nil
}

// defaultThreads ports the original's "nThreads defaults to
// NUMBER_OF_PROCESSORS, or 4 if unset" rule.
func defaultThreads() int {
	if v := os.Getenv("NUMBER_OF_PROCESSORS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 4
}
