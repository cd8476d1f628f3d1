package cliflag

import "testing"

func TestParseIntRejectsEmpty(t *testing.T) {
	if _, err := ParseInt("-N", ""); err == nil {
		t.Fatal("expected error for empty integer argument")
	}
}

func TestParseIntRejectsNonDigit(t *testing.T) {
	if _, err := ParseInt("-N", "4x"); err == nil {
		t.Fatal("expected error for non-digit integer argument")
	}
}

func TestParseIntAccepts(t *testing.T) {
	n, err := ParseInt("-N", "40")
	if err != nil {
		t.Fatalf("ParseInt: %v", err)
	}
	if n != 40 {
		t.Fatalf("n = %d, want 40", n)
	}
}

func TestParseCommonDatabase(t *testing.T) {
	var c Common
	claimed, err := ParseCommon(&c, "-Dseed.bin")
	if err != nil || !claimed {
		t.Fatalf("claimed=%v err=%v", claimed, err)
	}
	if c.DatabaseFilename != "seed.bin" {
		t.Fatalf("DatabaseFilename = %q, want seed.bin", c.DatabaseFilename)
	}
}

func TestParseCommonStates(t *testing.T) {
	var c Common
	if _, err := ParseCommon(&c, "-N5"); err != nil {
		t.Fatalf("ParseCommon: %v", err)
	}
	if c.MachineStates != 5 {
		t.Fatalf("MachineStates = %d, want 5", c.MachineStates)
	}
}

func TestParseCommonUnrecognized(t *testing.T) {
	var c Common
	claimed, err := ParseCommon(&c, "-Z")
	if err != nil {
		t.Fatalf("ParseCommon: %v", err)
	}
	if claimed {
		t.Fatal("expected -Z to be unclaimed by ParseCommon")
	}
}

func TestCheckCommonRejectsOutOfRangeStates(t *testing.T) {
	c := Common{MachineStates: 7}
	if err := CheckCommon(&c); err == nil {
		t.Fatal("expected error for MachineStates=7")
	}
}

func TestCheckCommonClearsBinarySpecsWhenNotFiveStates(t *testing.T) {
	c := Common{MachineStates: 3, BinaryMachineSpecs: true}
	if err := CheckCommon(&c); err != nil {
		t.Fatalf("CheckCommon: %v", err)
	}
	if c.BinaryMachineSpecs {
		t.Fatal("expected BinaryMachineSpecs to be cleared for MachineStates != 5")
	}
}

func TestParseDeciderTestMachine(t *testing.T) {
	d := &DeciderCommon{Common: Common{MachineStates: 5}}
	claimed, err := ParseDecider(d, "-X12345")
	if err != nil || !claimed {
		t.Fatalf("claimed=%v err=%v", claimed, err)
	}
	if !d.TestMachinePresent || d.TestMachine != 12345 {
		t.Fatalf("TestMachine = %d present=%v, want 12345/true", d.TestMachine, d.TestMachinePresent)
	}
}

func TestParseDeciderFallsBackToCommon(t *testing.T) {
	d := &DeciderCommon{}
	claimed, err := ParseDecider(d, "-N4")
	if err != nil || !claimed {
		t.Fatalf("claimed=%v err=%v", claimed, err)
	}
	if d.MachineStates != 4 {
		t.Fatalf("MachineStates = %d, want 4", d.MachineStates)
	}
}

func TestCheckDeciderIgnoresInputAndLimitWithTestMachine(t *testing.T) {
	d := &DeciderCommon{
		Common:              Common{MachineStates: 5},
		InputFilename:       "machines.bin",
		MachineLimitPresent: true,
		MachineLimit:        100,
	}
	d.TestMachinePresent = true
	d.TestMachine = 1

	warnings, err := CheckDecider(d)
	if err != nil {
		t.Fatalf("CheckDecider: %v", err)
	}
	if d.InputFilename != "" {
		t.Fatal("expected InputFilename to be cleared")
	}
	if d.MachineLimitPresent {
		t.Fatal("expected MachineLimitPresent to be cleared")
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want 2 entries", warnings)
	}
}

func TestCheckDeciderMachineSpecLengthSetsStates(t *testing.T) {
	d := &DeciderCommon{Common: Common{MachineStates: 5, MachineSpec: "1RB1LB_1LA1RH"}} // 13 chars -> 2 states
	if _, err := CheckDecider(d); err != nil {
		t.Fatalf("CheckDecider: %v", err)
	}
	if d.MachineStates != 2 {
		t.Fatalf("MachineStates = %d, want 2", d.MachineStates)
	}
}

func TestCheckDeciderRejectsBadMachineSpecLength(t *testing.T) {
	d := &DeciderCommon{Common: Common{MachineStates: 5, MachineSpec: "tooshort"}}
	if _, err := CheckDecider(d); err == nil {
		t.Fatal("expected error for invalid machine spec length")
	}
}

func TestParseRejectsUnrecognizedFlag(t *testing.T) {
	var d DeciderCommon
	err := Parse([]string{"-Z"}, nil, func(arg string) (bool, error) {
		return ParseDecider(&d, arg)
	})
	if err == nil {
		t.Fatal("expected error for unrecognized flag")
	}
}

func TestParseRoutesExtraBeforeFallback(t *testing.T) {
	var d DeciderCommon
	var sawT bool
	extra := func(letter byte, rest string) (bool, error) {
		if letter == 'T' {
			sawT = true
			return true, nil
		}
		return false, nil
	}
	err := Parse([]string{"-T1000000", "-N4"}, extra, func(arg string) (bool, error) {
		return ParseDecider(&d, arg)
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !sawT {
		t.Fatal("expected extra to claim -T")
	}
	if d.MachineStates != 4 {
		t.Fatalf("MachineStates = %d, want 4", d.MachineStates)
	}
}
