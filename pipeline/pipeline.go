// Package pipeline drives a decider engine over a seed database in
// bounded-concurrency chunks, grounded on
// original_source/Cyclers/DecideCyclers.cpp's main(): read CHUNK_SIZE
// machines per thread, run every thread's chunk, join all of them before
// writing a single verification or undecided-file entry, then report
// progress and move to the next round of chunks. Using
// golang.org/x/sync/errgroup in place of raw std::thread + join gives the
// same "wait for every worker in this round" barrier with propagated
// cancellation on the first error.
package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bbchallenge/decider-core/codec"
	"github.com/bbchallenge/decider-core/progress"
	"github.com/bbchallenge/decider-core/seeddb"
	"github.com/bbchallenge/decider-core/tm"
)

// DefaultChunkSize matches the original's CHUNK_SIZE.
const DefaultChunkSize = 1024

// Decide is implemented by a cmd/ binary's engine adapter: attempt to
// decide one machine, returning its certificate's encoded dvf payload and
// true, or false if it remains undecided.
type Decide func(machineIndex uint32, spec tm.Spec) (info []byte, ok bool)

// Result is one decided-or-not outcome for a single machine.
type Result struct {
	Index   uint32
	Info    []byte
	Decided bool
}

// Driver fans a Decide function out across Threads goroutines, ChunkSize
// machines per goroutine per round, preserving machine order in its output
// the way DecideCyclers.cpp's "join every thread in this round, then write
// its chunk's results in thread order" loop does.
type Driver struct {
	Tag       codec.Tag
	Decide    Decide
	Threads   int
	ChunkSize int
	Progress  *progress.Reporter

	// TagFor overrides Tag per result when an engine's dvf tag depends on
	// the certificate itself (translated cycler's direction selects
	// TagTranslatedCyclerRight vs TagTranslatedCyclerLeft). Nil means every
	// entry uses Tag.
	TagFor func(info []byte) codec.Tag
}

func (d *Driver) tagFor(info []byte) codec.Tag {
	if d.TagFor != nil {
		return d.TagFor(info)
	}
	return d.Tag
}

// Run decides every machine named by indices, fetching each one's spec
// from db, and writes each outcome through vw (decided) or uw (undecided).
// Either writer may be nil to discard that stream. It returns how many
// machines were decided.
func (d *Driver) Run(ctx context.Context, db *seeddb.DB, indices []uint32, vw *codec.VerificationWriter, uw *codec.UndecidedWriter) (uint32, error) {
	threads := d.Threads
	if threads <= 0 {
		threads = 1
	}
	chunkSize := d.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	total := uint32(len(indices))
	var complete, decided uint32

	for start := 0; start < len(indices); {
		roundEnd := start + chunkSize*threads
		if roundEnd > len(indices) {
			roundEnd = len(indices)
		}
		round := indices[start:roundEnd]
		start = roundEnd

		nChunks := (len(round) + chunkSize - 1) / chunkSize
		chunkResults := make([][]Result, nChunks)

		g, gctx := errgroup.WithContext(ctx)
		for c := 0; c < nChunks; c++ {
			lo := c * chunkSize
			hi := lo + chunkSize
			if hi > len(round) {
				hi = len(round)
			}
			chunk := round[lo:hi]
			slot := c
			g.Go(func() error {
				out := make([]Result, len(chunk))
				for i, idx := range chunk {
					if err := gctx.Err(); err != nil {
						return err
					}
					spec, err := db.Fetch(idx)
					if err != nil {
						return err
					}
					info, ok := d.Decide(idx, spec)
					out[i] = Result{Index: idx, Info: info, Decided: ok}
				}
				chunkResults[slot] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return decided, err
		}

		for _, results := range chunkResults {
			for _, r := range results {
				if r.Decided {
					if vw != nil {
						if err := vw.Write(codec.Entry{SeedIndex: r.Index, Tag: d.tagFor(r.Info), Info: r.Info}); err != nil {
							return decided, err
						}
					}
					decided++
				} else if uw != nil {
					if err := uw.Write(r.Index); err != nil {
						return decided, err
					}
				}
			}
		}

		complete += uint32(len(round))
		if d.Progress != nil {
			d.Progress.Update(complete, total, decided)
		}
	}
	return decided, nil
}
