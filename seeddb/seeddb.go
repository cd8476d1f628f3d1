// Package seeddb reads machine specs from a seed-database file by absolute
// offset, matching spec.md §6 ("Shared resources... opened once and read
// with absolute offsets").
//
// Grounded on original_source/Reader.h/.cpp (TuringMachineReader): the
// original 5-state binary SeedDatabase.bin carries a 30-byte header
// (nTimeLimited, nSpaceLimited, nMachines) ahead of fixed 30-byte packed
// records; generalized N-state databases (binary or ASCII) have no header,
// and their machine count is derived from file size.
package seeddb

import (
	"fmt"
	"io"
	"os"

	"github.com/bbchallenge/decider-core/internal/conv"
	"github.com/bbchallenge/decider-core/tm"
)

// Format distinguishes the on-disk record encoding (spec.md §6).
type Format uint8

const (
	// FormatBinary is the packed 3-bytes-per-transition encoding.
	FormatBinary Format = iota
	// FormatASCII is the 6-chars-per-state '_'-joined text encoding.
	FormatASCII
)

// Header describes the original 5-state SeedDatabase.bin preamble.
type Header struct {
	NTimeLimited  uint32
	NSpaceLimited uint32
	NMachines     uint32
}

// DB is a random-access reader over a seed-database file.
type DB struct {
	ra     io.ReaderAt
	states uint8
	format Format

	// headerLen is the number of bytes preceding the first record (30 for
	// the original 5-state binary format, 0 otherwise).
	headerLen int64
	// recordLen is the on-disk size of one machine spec record.
	recordLen int64

	nMachines uint32
	header    *Header // non-nil only for the original 5-state format
}

// OpenFile opens path and wraps it as a DB, inspecting the file size (and,
// for the 5-state binary format, the header) to learn nMachines.
func OpenFile(path string, states uint8, format Format) (*DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seeddb: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("seeddb: stat %s: %w", path, err)
	}
	db, err := Open(f, info.Size(), states, format)
	if err != nil {
		f.Close()
		return nil, err
	}
	return db, nil
}

// Open wraps an already-open io.ReaderAt of the given total size.
func Open(ra io.ReaderAt, size int64, states uint8, format Format) (*DB, error) {
	if states < tm.MinStates || states > tm.MaxStates {
		return nil, fmt.Errorf("seeddb: states %d out of range [%d,%d]", states, tm.MinStates, tm.MaxStates)
	}
	recordLen := int64(tm.PackedSize(states))
	if format == FormatASCII {
		recordLen = int64(states) * 7 // six chars per state plus one '_' or newline
	}

	db := &DB{ra: ra, states: states, format: format, recordLen: recordLen}

	if states == 5 && format == FormatBinary {
		hdr, err := readHeader(ra)
		if err != nil {
			return nil, err
		}
		if hdr.NMachines != hdr.NTimeLimited+hdr.NSpaceLimited {
			return nil, fmt.Errorf("seeddb: invalid seed database file: nMachines=%d != nTimeLimited+nSpaceLimited=%d",
				hdr.NMachines, hdr.NTimeLimited+hdr.NSpaceLimited)
		}
		db.header = &hdr
		db.headerLen = 30
		db.nMachines = hdr.NMachines
		return db, nil
	}

	body := size
	if body%recordLen == recordLen-1 {
		body++ // allow for a missing trailing newline
	}
	if body%recordLen != 0 {
		return nil, fmt.Errorf("seeddb: file size %d is not a multiple of record size %d", size, recordLen)
	}
	db.nMachines = conv.Uint64ToUint32(uint64(body / recordLen))
	return db, nil
}

func readHeader(ra io.ReaderAt) (Header, error) {
	var buf [12]byte
	if _, err := ra.ReadAt(buf[:], 0); err != nil {
		return Header{}, fmt.Errorf("seeddb: reading header: %w", err)
	}
	return Header{
		NTimeLimited:  be32(buf[0:4]),
		NSpaceLimited: be32(buf[4:8]),
		NMachines:     be32(buf[8:12]),
	}, nil
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// States returns the configured machine state count.
func (db *DB) States() uint8 { return db.states }

// NMachines returns the number of machine records in the database.
func (db *DB) NMachines() uint32 { return db.nMachines }

// Header returns the original-format header, or nil for generalized
// databases that carry none.
func (db *DB) Header() *Header { return db.header }

// Fetch reads and decodes the machine spec at the given index.
func (db *DB) Fetch(index uint32) (tm.Spec, error) {
	if index >= db.nMachines {
		return tm.Spec{}, fmt.Errorf("seeddb: invalid machine index %d (nMachines=%d)", index, db.nMachines)
	}
	offset := db.headerLen + int64(index)*db.recordLen
	buf := make([]byte, db.recordLen)
	if _, err := db.ra.ReadAt(buf, offset); err != nil {
		return tm.Spec{}, fmt.Errorf("seeddb: reading machine %d: %w", index, err)
	}

	if db.format == FormatBinary {
		return tm.ParsePacked(db.states, buf[:tm.PackedSize(db.states)])
	}
	// ASCII records are newline- or '_'-terminated; trim the trailing byte.
	text := string(buf)
	if n := len(text); n > 0 && (text[n-1] == '\n' || text[n-1] == '_') {
		text = text[:n-1]
	}
	return tm.ParseASCII(db.states, text)
}

// Close closes the underlying file, if the DB owns one (i.e. was opened via
// OpenFile). It is a no-op for DBs constructed with Open over a caller-owned
// io.ReaderAt.
func (db *DB) Close() error {
	if c, ok := db.ra.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
