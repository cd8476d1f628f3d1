// Package decidererr defines the three error classes of spec.md §7.
//
// The pattern follows the teacher's dfa/lazy/error.go: a small Kind enum
// plus a concrete error type implementing Error/Unwrap/Is, so callers can
// use errors.Is/errors.As instead of comparing strings.
package decidererr

import "fmt"

// Undecided is returned by an engine's Decide function when it could not
// prove non-halting within its configured limits (class 1, §7). It is
// always recoverable: the driver appends the machine index to the umf and
// continues. Undecided is comparable and safe to use with errors.Is.
var Undecided = &EngineError{Kind: KindUndecided, Message: "engine could not decide within configured limits"}

// EngineError reports an engine-level condition that is not a contract
// violation: the engine ran to completion but could not conclude.
type EngineError struct {
	Kind   EngineErrorKind
	Message string
}

func (e *EngineError) Error() string { return e.Message }

func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// EngineErrorKind classifies EngineError values.
type EngineErrorKind uint8

const (
	// KindUndecided: the engine exhausted its budget without a proof.
	KindUndecided EngineErrorKind = iota
)

// ContractError represents a broken invariant or a corrupt certificate
// (class 2, §7): a decider found an impossible internal state, or a
// verifier found that a certificate does not satisfy the invariants it
// claims to. ContractError is always fatal; see Sink.
type ContractError struct {
	File    string
	Line    int
	Machine uint32
	Pass    string // e.g. "decide", "verify"
	Message string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s:%d: #%d (%s): %s", e.File, e.Line, e.Machine, e.Pass, e.Message)
}

// Sink is the single "contract violation" funnel named in spec.md §9: every
// TM_ERROR()/VERIFY_ERROR() call site in the original source is routed
// through one function that prints (file, line, machine_index, pass) and
// terminates. Every caller uses Sink.Report; production sinks exit the
// process, while tests install a non-exiting Exit and assert on the
// recorded error instead of exiting the test binary.
type Sink struct {
	// Exit is called after recording a fatal ContractError. Production
	// code sets this to os.Exit(1); tests override it to capture the
	// error without killing the process.
	Exit func(code int)

	// last records the most recently reported error, for tests.
	last *ContractError
}

// NewSink returns a Sink that calls exit after each reported violation; the
// cmd/ binaries pass os.Exit, matching the original's
// abort-on-contract-violation behavior. A nil exit is replaced by a no-op,
// so Report then returns to its caller.
func NewSink(exit func(code int)) *Sink {
	if exit == nil {
		exit = func(int) {}
	}
	return &Sink{Exit: exit}
}

// Report prints the contract violation and calls Exit(1). It never returns
// control to the caller in production use (Exit is os.Exit); it is a
// regular function, not a panic, so engines cannot accidentally recover
// from it and keep running with a broken invariant.
func (s *Sink) Report(err *ContractError) {
	s.last = err
	fmt.Printf("\n#%d: Error at %s:%d in pass %q: %s\n",
		err.Machine, err.File, err.Line, err.Pass, err.Message)
	s.Exit(1)
}

// Last returns the most recently reported error, or nil. Intended for
// tests that install a non-exiting Exit function.
func (s *Sink) Last() *ContractError { return s.last }
