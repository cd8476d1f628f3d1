package rundecider

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/internal/cliflag"
	"github.com/bbchallenge/decider-core/pipeline"
	"github.com/bbchallenge/decider-core/tm"
)

func writeSeedDB(t *testing.T, dir string, n int) string {
	t.Helper()
	path := filepath.Join(dir, "seeds.bin")
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		buf.WriteString("1RB1LB_1LA1RH\n")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func evenDecide(flags *cliflag.DeciderCommon) pipeline.Decide {
	return func(machineIndex uint32, spec tm.Spec) ([]byte, bool) {
		if machineIndex%2 == 0 {
			return []byte{0, 0, 0, 0}, true
		}
		return nil, false
	}
}

func TestRunDecidesAndWritesFiles(t *testing.T) {
	dir := t.TempDir()
	dbPath := writeSeedDB(t, dir, 6)
	vPath := filepath.Join(dir, "out.dvf")
	uPath := filepath.Join(dir, "out.umf")

	cfg := Config{
		Name:      "testdecider",
		Tag:       codec.TagCycler,
		NewDecide: evenDecide,
		Describe: func(flags *cliflag.DeciderCommon, idx uint32, spec tm.Spec, decide pipeline.Decide) string {
			_, ok := decide(idx, spec)
			if ok {
				return "decided"
			}
			return "undecided"
		},
	}

	var out, errw bytes.Buffer
	args := []string{"-N2", "-D" + dbPath, "-V" + vPath, "-U" + uPath, "-H1"}
	if err := Run(args, cfg, &out, &errw); err != nil {
		t.Fatalf("Run: %v", err)
	}

	vf, err := os.Open(vPath)
	if err != nil {
		t.Fatalf("opening dvf: %v", err)
	}
	defer vf.Close()
	entries, err := codec.ReadVerificationFile(vf)
	if err != nil {
		t.Fatalf("ReadVerificationFile: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}

	uf, err := os.Open(uPath)
	if err != nil {
		t.Fatalf("opening umf: %v", err)
	}
	defer uf.Close()
	undecided, err := codec.ReadUndecidedFile(uf)
	if err != nil {
		t.Fatalf("ReadUndecidedFile: %v", err)
	}
	if len(undecided) != 3 {
		t.Fatalf("len(undecided) = %d, want 3", len(undecided))
	}
}

func TestRunSingleMachineSpecBypassesFiles(t *testing.T) {
	cfg := Config{
		Name:      "testdecider",
		Tag:       codec.TagCycler,
		NewDecide: evenDecide,
		Describe: func(flags *cliflag.DeciderCommon, idx uint32, spec tm.Spec, decide pipeline.Decide) string {
			return "ran -M machine"
		},
	}
	var out, errw bytes.Buffer
	if err := Run([]string{"-N2", "-M1RB1LB_1LA1RH"}, cfg, &out, &errw); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "ran -M machine") {
		t.Fatalf("output %q missing expected text", out.String())
	}
}

func TestRunRequiresDatabaseWithoutMachineSpec(t *testing.T) {
	cfg := Config{Name: "testdecider", Tag: codec.TagCycler, NewDecide: evenDecide}
	var out, errw bytes.Buffer
	if err := Run([]string{"-N2"}, cfg, &out, &errw); err == nil {
		t.Fatal("expected an error when -D is missing and no -M/-X given")
	}
}

func TestRunValidateRejectsMissingMandatoryFlag(t *testing.T) {
	dir := t.TempDir()
	dbPath := writeSeedDB(t, dir, 2)

	cfg := Config{
		Name:      "testdecider",
		Tag:       codec.TagCycler,
		NewDecide: evenDecide,
		Validate: func(flags *cliflag.DeciderCommon) error {
			return errMissingFlag
		},
	}
	var out, errw bytes.Buffer
	args := []string{"-N2", "-D" + dbPath}
	if err := Run(args, cfg, &out, &errw); err == nil {
		t.Fatal("expected Validate's error to propagate")
	}
}

var errMissingFlag = missingFlagError("time limit not specified")

type missingFlagError string

func (e missingFlagError) Error() string { return string(e) }

func TestRunRespectsMachineLimit(t *testing.T) {
	dir := t.TempDir()
	dbPath := writeSeedDB(t, dir, 10)
	vPath := filepath.Join(dir, "out.dvf")

	cfg := Config{Name: "testdecider", Tag: codec.TagCycler, NewDecide: evenDecide}
	var out, errw bytes.Buffer
	args := []string{"-N2", "-D" + dbPath, "-V" + vPath, "-L3", "-H1"}
	if err := Run(args, cfg, &out, &errw); err != nil {
		t.Fatalf("Run: %v", err)
	}

	vf, err := os.Open(vPath)
	if err != nil {
		t.Fatalf("opening dvf: %v", err)
	}
	defer vf.Close()
	entries, err := codec.ReadVerificationFile(vf)
	if err != nil {
		t.Fatalf("ReadVerificationFile: %v", err)
	}
	// Indices 0, 2 decided within the first 3 machines (0,1,2).
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}
