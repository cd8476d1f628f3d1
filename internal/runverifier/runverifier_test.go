package runverifier

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bbchallenge/decider-core/codec"
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

// *os.File is already an io.WriteSeeker, so writeDVF hands it to
// codec.NewVerificationWriter without a wrapper.

func writeDVF(t *testing.T, dir string, entries []codec.Entry) string {
	t.Helper()
	path := filepath.Join(dir, "v.dvf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()
	vw, err := codec.NewVerificationWriter(f)
	if err != nil {
		t.Fatalf("NewVerificationWriter: %v", err)
	}
	for _, e := range entries {
		if err := vw.Write(e); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := vw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestRunVerifiesAllEntries(t *testing.T) {
	dir := t.TempDir()
	dbPath := writeSeedDB(t, dir, 3)
	vPath := writeDVF(t, dir, []codec.Entry{
		{SeedIndex: 0, Tag: codec.TagCycler, Info: []byte{1}},
		{SeedIndex: 1, Tag: codec.TagCycler, Info: []byte{2}},
	})

	var calls []uint32
	cfg := Config{
		Name: "testverifier",
		Tag:  codec.TagCycler,
		VerifyEntry: func(spec tm.Spec, states uint8, tag codec.Tag, info []byte) error {
			calls = append(calls, uint32(info[0]))
			return nil
		},
	}

	var out, errw bytes.Buffer
	args := []string{"-N2", "-D" + dbPath, "-V" + vPath}
	if err := Run(args, cfg, &out, &errw); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Fatalf("calls = %v, want [1 2]", calls)
	}
	if !strings.Contains(out.String(), "2 testverifier verified") {
		t.Fatalf("output %q missing summary line", out.String())
	}
}

func TestRunFailsOnWrongTag(t *testing.T) {
	dir := t.TempDir()
	dbPath := writeSeedDB(t, dir, 1)
	vPath := writeDVF(t, dir, []codec.Entry{{SeedIndex: 0, Tag: codec.TagBouncer, Info: []byte{1}}})

	cfg := Config{
		Name:        "testverifier",
		Tag:         codec.TagCycler,
		VerifyEntry: func(spec tm.Spec, states uint8, tag codec.Tag, info []byte) error { return nil },
	}
	var out, errw bytes.Buffer
	if err := Run([]string{"-N2", "-D" + dbPath, "-V" + vPath}, cfg, &out, &errw); err == nil {
		t.Fatal("expected an error for a mismatched decider tag")
	}
}

func TestRunPropagatesVerifyEntryError(t *testing.T) {
	dir := t.TempDir()
	dbPath := writeSeedDB(t, dir, 1)
	vPath := writeDVF(t, dir, []codec.Entry{{SeedIndex: 0, Tag: codec.TagCycler, Info: []byte{1}}})

	cfg := Config{
		Name: "testverifier",
		Tag:  codec.TagCycler,
		VerifyEntry: func(spec tm.Spec, states uint8, tag codec.Tag, info []byte) error {
			return bytesEqualError
		},
	}
	var out, errw bytes.Buffer
	if err := Run([]string{"-N2", "-D" + dbPath, "-V" + vPath}, cfg, &out, &errw); err == nil {
		t.Fatal("expected VerifyEntry's error to propagate")
	}
}

var bytesEqualError = errTest("deliberate test failure")

type errTest string

func (e errTest) Error() string { return string(e) }

func TestRunAcceptsAnyConfiguredTag(t *testing.T) {
	dir := t.TempDir()
	dbPath := writeSeedDB(t, dir, 2)
	vPath := writeDVF(t, dir, []codec.Entry{
		{SeedIndex: 0, Tag: codec.TagTranslatedCyclerRight, Info: []byte{1}},
		{SeedIndex: 1, Tag: codec.TagTranslatedCyclerLeft, Info: []byte{2}},
	})

	var calls []uint32
	cfg := Config{
		Name: "testverifier",
		Tags: []codec.Tag{codec.TagTranslatedCyclerRight, codec.TagTranslatedCyclerLeft},
		VerifyEntry: func(spec tm.Spec, states uint8, tag codec.Tag, info []byte) error {
			calls = append(calls, uint32(info[0]))
			return nil
		},
	}
	var out, errw bytes.Buffer
	if err := Run([]string{"-N2", "-D" + dbPath, "-V" + vPath}, cfg, &out, &errw); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("calls = %v, want 2 entries accepted", calls)
	}
}

func TestRunRequiresVerificationFile(t *testing.T) {
	cfg := Config{Name: "testverifier", Tag: codec.TagCycler, VerifyEntry: func(tm.Spec, uint8, codec.Tag, []byte) error { return nil }}
	var out, errw bytes.Buffer
	if err := Run([]string{"-N2", "-Dseeds.bin"}, cfg, &out, &errw); err == nil {
		t.Fatal("expected an error when -V is missing")
	}
}
