// Package progress implements the percent-complete/summary output that
// every cmd/ decider binary prints while working through a seed database,
// grounded on original_source/Cyclers/DecideCyclers.cpp's main() (the
// "\r%d%% %d %d" loop and the closing "Decided %d out of %d" / "Elapsed
// time %.3f" lines) and the same pattern in BackwardReasoning.cpp's main().
package progress

import (
	"fmt"
	"io"
	"time"
)

// Reporter prints the running percent-complete line and the final summary.
// A Reporter with a nil or io.Discard writer is a no-op, which is how a
// cmd/ binary implements "-O not given": construct the Reporter against
// io.Discard instead of special-casing every call site.
type Reporter struct {
	w           io.Writer
	lastPercent int
	start       time.Time
}

// New returns a Reporter writing to w. Pass io.Discard to suppress all
// output (the -O flag absent case).
func New(w io.Writer) *Reporter {
	if w == nil {
		w = io.Discard
	}
	return &Reporter{w: w, lastPercent: -1, start: time.Now()}
}

// Update reports progress over a machine count gated by a time/space
// limit: complete machines processed so far, total machines subject to
// that limit, and how many have been decided. It only writes when the
// integer percentage changes, matching the original's "if (Percent !=
// LastPercent)" check that keeps the \r line from flooding stdout.
func (r *Reporter) Update(complete, total, decided uint32) {
	if total == 0 {
		return
	}
	percent := int(int64(complete) * 100 / int64(total))
	if percent == r.lastPercent {
		return
	}
	r.lastPercent = percent
	fmt.Fprintf(r.w, "\r%d%% %d %d", percent, complete, decided)
}

// Finish ends the \r progress line and prints the closing summary,
// matching "printf (\"\\n\")" followed by "Decided %d out of %d" /
// "Elapsed time %.3f".
func (r *Reporter) Finish(decided, total uint32) {
	fmt.Fprintf(r.w, "\nDecided %d out of %d\n", decided, total)
	fmt.Fprintf(r.w, "Elapsed time %.3f\n", time.Since(r.start).Seconds())
}
