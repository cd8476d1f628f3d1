// Package codec implements the big-endian framing of the decided-
// verification file (dvf) and undecided-machines file (umf) streams
// (spec.md §6), grounded on original_source/bbchallenge.h's Read32/Write32
// big-endian helpers and internal/conv's bounds-checked narrowing.
package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Tag identifies which engine produced a certificate (spec.md §6).
type Tag uint32

const (
	TagCycler                 Tag = 1
	TagTranslatedCyclerRight  Tag = 2
	TagTranslatedCyclerLeft   Tag = 3
	TagBackwardReasoning      Tag = 4
	TagHaltingSegment         Tag = 5
	TagBouncer                Tag = 6
	TagFARDFAOnly             Tag = 7
	TagFARDFANFA              Tag = 8
)

func (t Tag) String() string {
	switch t {
	case TagCycler:
		return "CYCLER"
	case TagTranslatedCyclerRight:
		return "TRANSLATED_CYCLER_RIGHT"
	case TagTranslatedCyclerLeft:
		return "TRANSLATED_CYCLER_LEFT"
	case TagBackwardReasoning:
		return "BACKWARD_REASONING"
	case TagHaltingSegment:
		return "HALTING_SEGMENT"
	case TagBouncer:
		return "BOUNCER"
	case TagFARDFAOnly:
		return "FAR_DFA_ONLY"
	case TagFARDFANFA:
		return "FAR_DFA_NFA"
	default:
		return fmt.Sprintf("Tag(%d)", uint32(t))
	}
}

// Entry is one dvf record: a machine index, the engine that decided it, and
// its opaque certificate payload.
type Entry struct {
	SeedIndex uint32
	Tag       Tag
	Info      []byte
}

// VerificationWriter appends dvf entries in input order. The nDecided
// header is backpatched on Close, matching the file's
// "[nDecided u32] then nDecided entries" framing (spec.md §6).
type VerificationWriter struct {
	w       io.WriteSeeker
	bw      *bufio.Writer
	count   uint32
	started bool
}

// NewVerificationWriter wraps w, reserving space for the nDecided header.
func NewVerificationWriter(w io.WriteSeeker) (*VerificationWriter, error) {
	vw := &VerificationWriter{w: w, bw: bufio.NewWriter(w)}
	if err := binary.Write(vw.bw, binary.BigEndian, uint32(0)); err != nil {
		return nil, fmt.Errorf("codec: writing dvf placeholder header: %w", err)
	}
	vw.started = true
	return vw, nil
}

// Write appends one entry.
func (vw *VerificationWriter) Write(e Entry) error {
	if err := binary.Write(vw.bw, binary.BigEndian, e.SeedIndex); err != nil {
		return fmt.Errorf("codec: writing dvf seed_index: %w", err)
	}
	if err := binary.Write(vw.bw, binary.BigEndian, uint32(e.Tag)); err != nil {
		return fmt.Errorf("codec: writing dvf decider_tag: %w", err)
	}
	if err := binary.Write(vw.bw, binary.BigEndian, uint32(len(e.Info))); err != nil {
		return fmt.Errorf("codec: writing dvf info_length: %w", err)
	}
	if _, err := vw.bw.Write(e.Info); err != nil {
		return fmt.Errorf("codec: writing dvf info: %w", err)
	}
	vw.count++
	return nil
}

// Close flushes buffered output and backpatches the nDecided header.
func (vw *VerificationWriter) Close() error {
	if err := vw.bw.Flush(); err != nil {
		return fmt.Errorf("codec: flushing dvf: %w", err)
	}
	if _, err := vw.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("codec: seeking to dvf header: %w", err)
	}
	if err := binary.Write(vw.w, binary.BigEndian, vw.count); err != nil {
		return fmt.Errorf("codec: backpatching dvf header: %w", err)
	}
	return nil
}

// ReadVerificationFile decodes a complete dvf stream.
func ReadVerificationFile(r io.Reader) ([]Entry, error) {
	var nDecided uint32
	if err := binary.Read(r, binary.BigEndian, &nDecided); err != nil {
		return nil, fmt.Errorf("codec: reading dvf header: %w", err)
	}
	entries := make([]Entry, 0, nDecided)
	for i := uint32(0); i < nDecided; i++ {
		var e Entry
		var tag, infoLen uint32
		if err := binary.Read(r, binary.BigEndian, &e.SeedIndex); err != nil {
			return nil, fmt.Errorf("codec: reading dvf entry %d seed_index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("codec: reading dvf entry %d decider_tag: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &infoLen); err != nil {
			return nil, fmt.Errorf("codec: reading dvf entry %d info_length: %w", i, err)
		}
		e.Tag = Tag(tag)
		e.Info = make([]byte, infoLen)
		if _, err := io.ReadFull(r, e.Info); err != nil {
			return nil, fmt.Errorf("codec: reading dvf entry %d info (%d bytes): %w", i, infoLen, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// UndecidedWriter appends umf entries (plain seed_index u32 records, no
// length header in the generic variant per spec.md §6).
type UndecidedWriter struct {
	bw *bufio.Writer
}

// NewUndecidedWriter wraps w.
func NewUndecidedWriter(w io.Writer) *UndecidedWriter {
	return &UndecidedWriter{bw: bufio.NewWriter(w)}
}

// Write appends one undecided machine index.
func (uw *UndecidedWriter) Write(seedIndex uint32) error {
	if err := binary.Write(uw.bw, binary.BigEndian, seedIndex); err != nil {
		return fmt.Errorf("codec: writing umf entry: %w", err)
	}
	return nil
}

// Close flushes buffered output.
func (uw *UndecidedWriter) Close() error {
	if err := uw.bw.Flush(); err != nil {
		return fmt.Errorf("codec: flushing umf: %w", err)
	}
	return nil
}

// ReadUndecidedFile decodes a generic (headerless) umf stream.
func ReadUndecidedFile(r io.Reader) ([]uint32, error) {
	var out []uint32
	for {
		var idx uint32
		err := binary.Read(r, binary.BigEndian, &idx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("codec: reading umf entry %d: %w", len(out), err)
		}
		out = append(out, idx)
	}
	return out, nil
}
