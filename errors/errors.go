// Package errors defines all exported error sentinels for the tabstego library.
//
// This is the single source of truth for error values. Both the top-level
// tabstego package and internal pipeline packages import from here,
// ensuring errors.Is checks work across package boundaries.
package errors

import (
	"errors"
	"fmt"
)

// Configuration errors
var (
	ErrInvalidBitPerRow     = errors.New("tabstego: bit_per_row must be 1, 2 or 4")
	ErrInvalidBlockSize     = errors.New("tabstego: data block size must be positive")
	ErrInvalidParitySize    = errors.New("tabstego: parity size must not be negative")
	ErrPacketTooLarge       = errors.New("tabstego: packet exceeds 256 bytes (Reed-Solomon limit)")
	ErrUnknownHashAlgorithm = errors.New("tabstego: unknown hash algorithm")
	ErrUnknownFountain      = errors.New("tabstego: unknown fountain scheme")
	ErrInvalidWorkers       = errors.New("tabstego: worker count must not be negative")
	ErrInvalidMaxPackets    = errors.New("tabstego: max packets must not be negative")
	ErrInvalidSeed          = errors.New("tabstego: seed out of range for the fountain scheme")
)

// Encode errors
var (
	ErrEmptyPayload    = errors.New("tabstego: payload is empty")
	ErrPayloadTooLarge = errors.New("tabstego: payload exceeds the fountain block limit")
	ErrCapacity        = errors.New("tabstego: table capacity exhausted")
	ErrEmptyTable      = errors.New("tabstego: table has no rows")
)

// Table errors
var (
	ErrInvalidOrder = errors.New("tabstego: reorder indices are not a permutation of the rows")
	ErrRaggedRow    = errors.New("tabstego: row width differs from header")
)

// Framing rejections. These are routine during a scan and never surface
// from Decode.
var (
	ErrShortPacket      = errors.New("tabstego: candidate shorter than packet size")
	ErrUncorrectable    = errors.New("tabstego: reed-solomon correction failed")
	ErrChecksumMismatch = errors.New("tabstego: packet checksum mismatch")
	ErrBadHeader        = errors.New("tabstego: packet header is inconsistent")
)

// Fountain errors
var (
	ErrHeaderMismatch = errors.New("tabstego: block header disagrees with earlier blocks")
	ErrNotDecoded     = errors.New("tabstego: not enough blocks to rebuild the payload")
)

// CapacityError reports how far an encode got when the packets that fit
// are not enough for a decoder to rebuild the payload. It matches
// ErrCapacity under errors.Is.
type CapacityError struct {
	Packets       int // packets that fit
	SourceBlocks  int // fountain source blocks of the payload
	RowsPerPacket int
	Rows          int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("tabstego: table capacity exhausted: %d packet(s) fit in %d rows (%d rows each), too few to rebuild %d source blocks",
		e.Packets, e.Rows, e.RowsPerPacket, e.SourceBlocks)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }
