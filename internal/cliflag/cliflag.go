// Package cliflag parses the single-dash, first-letter-dispatch flag surface
// shared by every cmd/ binary, grounded on original_source/Params.h/.cpp
// (CommonParams/DeciderParams/VerifierParams::ParseParam).
//
// There is no "--long" form and no flag=value form: a flag is a dash, one
// dispatch letter, and the rest of the token as its argument (-D<database>,
// -N<states>). An unrecognized flag is a fatal usage error, matching the
// original's PrintHelpAndExit(1).
package cliflag

import (
	"fmt"
	"strconv"
)

// Common holds the parameters every cmd/ binary accepts, ported from
// CommonParams.
type Common struct {
	MachineStates        uint32
	DatabaseFilename     string
	VerificationFilename string
	TestMachine          uint32
	TestMachinePresent   bool
	MachineSpec          string
	BinaryMachineSpecs   bool
}

// DeciderCommon holds the parameters every decider (as opposed to verifier)
// binary accepts on top of Common, ported from DeciderParams.
type DeciderCommon struct {
	Common
	InputFilename       string
	UndecidedFilename   string
	NThreads            uint32
	NThreadsPresent     bool
	MachineLimit        uint32
	MachineLimitPresent bool
	TraceOutput         bool
}

// Extra is called for any flag Parse does not itself recognize, so a
// decider-specific engine (cycler's -T, haltseg's -W, far's -A, bouncer's
// -T/-S, FAR's -F) can claim it. letter is already upper-cased; rest is the
// remainder of the token after the letter (possibly empty). Extra returns
// whether it claimed the flag; if it did not and returns a nil error, Parse
// reports the flag as unrecognized.
type Extra func(letter byte, rest string) (claimed bool, err error)

// ParseInt ports CommonParams::ParseInt: the remainder must be present and
// be entirely decimal digits, matching the original's isdigit loop (no
// leading +/-, no whitespace, no leading "0x").
func ParseInt(flag, rest string) (uint32, error) {
	if rest == "" {
		return 0, fmt.Errorf("%s: integer expected", flag)
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return 0, fmt.Errorf("%s: invalid integer", flag)
		}
	}
	n, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer", flag)
	}
	return uint32(n), nil
}

// ParseCommon handles the -D/-N/-V flags shared by every binary. It reports
// whether it claimed arg.
func ParseCommon(c *Common, arg string) (bool, error) {
	if len(arg) < 2 || arg[0] != '-' {
		return false, nil
	}
	letter, rest := upper(arg[1]), arg[2:]
	switch letter {
	case 'D':
		if rest == "" {
			return false, fmt.Errorf("%s: filename expected", arg)
		}
		c.DatabaseFilename = rest
		return true, nil
	case 'N':
		n, err := ParseInt(arg, rest)
		if err != nil {
			return false, err
		}
		c.MachineStates = n
		return true, nil
	case 'V':
		if rest == "" {
			return false, fmt.Errorf("%s: filename expected", arg)
		}
		c.VerificationFilename = rest
		return true, nil
	}
	return false, nil
}

// CheckCommon ports CommonParams::CheckParameters.
func CheckCommon(c *Common) error {
	if c.MachineStates < 2 || c.MachineStates > 6 {
		return fmt.Errorf("invalid MachineStates parameter %d", c.MachineStates)
	}
	if c.MachineStates != 5 {
		c.BinaryMachineSpecs = false
	}
	return nil
}

// machineSpecStates ports DeciderParams::CheckParameters's -M length-to-
// states table (13/20/27/34/41 chars for N=2..6: 7*N-1 ASCII bytes per
// state-row "xRBxxx" minus the trailing separator quirks of the original
// encoding).
func machineSpecStates(spec string) (uint32, bool) {
	switch len(spec) {
	case 13:
		return 2, true
	case 20:
		return 3, true
	case 27:
		return 4, true
	case 34:
		return 5, true
	case 41:
		return 6, true
	default:
		return 0, false
	}
}

// ParseDecider handles the decider-only flags (-I -U -X -M -L -H -O) on top
// of ParseCommon.
func ParseDecider(d *DeciderCommon, arg string) (bool, error) {
	if len(arg) < 2 || arg[0] != '-' {
		return false, nil
	}
	letter, rest := upper(arg[1]), arg[2:]
	switch letter {
	case 'I':
		if rest == "" {
			return false, fmt.Errorf("%s: filename expected", arg)
		}
		d.InputFilename = rest
		return true, nil
	case 'U':
		if rest == "" {
			return false, fmt.Errorf("%s: filename expected", arg)
		}
		d.UndecidedFilename = rest
		return true, nil
	case 'X':
		n, err := ParseInt(arg, rest)
		if err != nil {
			return false, err
		}
		d.TestMachine = n
		d.TestMachinePresent = true
		return true, nil
	case 'M':
		if rest == "" {
			return false, fmt.Errorf("invalid parameter %q", arg)
		}
		d.MachineSpec = rest
		d.BinaryMachineSpecs = false
		return true, nil
	case 'L':
		n, err := ParseInt(arg, rest)
		if err != nil {
			return false, err
		}
		d.MachineLimit = n
		d.MachineLimitPresent = true
		return true, nil
	case 'H':
		n, err := ParseInt(arg, rest)
		if err != nil {
			return false, err
		}
		d.NThreads = n
		d.NThreadsPresent = true
		return true, nil
	case 'O':
		d.TraceOutput = true
		return true, nil
	}
	return ParseCommon(&d.Common, arg)
}

// CheckDecider ports DeciderParams::CheckParameters: -I and -L are ignored
// (with a printed notice, here returned as a non-fatal warning string) once
// a single test machine is named via -X or -M, and -V is additionally
// ignored once -M names an inline spec whose length also fixes MachineStates.
func CheckDecider(d *DeciderCommon) (warnings []string, err error) {
	if err := CheckCommon(&d.Common); err != nil {
		return nil, err
	}
	if d.MachineSpec != "" || d.TestMachinePresent {
		if d.InputFilename != "" {
			warnings = append(warnings, "-I parameter ignored")
			d.InputFilename = ""
		}
		if d.MachineLimitPresent {
			warnings = append(warnings, "-L parameter ignored")
			d.MachineLimitPresent = false
		}
	}
	if d.MachineSpec != "" {
		if d.VerificationFilename != "" {
			warnings = append(warnings, "-V parameter ignored")
			d.VerificationFilename = ""
		}
		states, ok := machineSpecStates(d.MachineSpec)
		if !ok {
			return warnings, fmt.Errorf("-M%s: machine spec length invalid", d.MachineSpec)
		}
		d.MachineStates = states
	}
	return warnings, nil
}

// CheckVerifier ports VerifierParams::CheckParameters, which adds nothing
// beyond CommonParams::CheckParameters.
func CheckVerifier(c *Common) error {
	return CheckCommon(c)
}

// Parse walks args (typically os.Args[1:]), handing each token first to
// extra (if non-nil), then to fallback. The first token extra or fallback
// does not claim is reported as an unrecognized-flag error, matching the
// original's "unknown flag is fatal" behavior (spec.md §6).
func Parse(args []string, extra Extra, fallback func(arg string) (bool, error)) error {
	for _, arg := range args {
		if extra != nil && len(arg) >= 2 && arg[0] == '-' {
			claimed, err := extra(upper(arg[1]), arg[2:])
			if err != nil {
				return err
			}
			if claimed {
				continue
			}
		}
		claimed, err := fallback(arg)
		if err != nil {
			return err
		}
		if !claimed {
			return fmt.Errorf("unrecognized parameter %q", arg)
		}
	}
	return nil
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
