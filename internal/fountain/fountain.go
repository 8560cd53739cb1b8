// Package fountain implements the rateless erasure codes that spread a
// payload over an unbounded sequence of fixed-size blocks.
//
// Two schemes are available. SchemeLT is a Luby transform code with a
// robust soliton degree distribution and a Park-Miller generator; each
// block header carries the generator state that reproduces its source
// indices. SchemeRaptorQ uses github.com/xssnick/raptorq and carries the
// encoding symbol id in the same header field.
package fountain

import (
	"fmt"
	"iter"

	stegerrors "github.com/tamirms/tabstego/errors"
)

// Scheme identifies a fountain code.
type Scheme uint8

const (
	// SchemeLT is the Luby transform code (default).
	SchemeLT Scheme = 0

	// SchemeRaptorQ is RFC 6330 RaptorQ.
	SchemeRaptorQ Scheme = 1
)

// String returns the scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeLT:
		return "lt"
	case SchemeRaptorQ:
		return "raptorq"
	default:
		return "unknown"
	}
}

// ParseScheme resolves a scheme name. The empty string selects SchemeLT.
func ParseScheme(name string) (Scheme, error) {
	switch name {
	case "", "lt":
		return SchemeLT, nil
	case "raptorq":
		return SchemeRaptorQ, nil
	}
	return 0, fmt.Errorf("%w: %q", stegerrors.ErrUnknownFountain, name)
}

// ValidSeed reports whether a header seed is in range for the scheme.
func (s Scheme) ValidSeed(seed uint32) bool {
	switch s {
	case SchemeLT:
		return validLTSeed(seed)
	case SchemeRaptorQ:
		return seed <= maxSymbolID
	}
	return false
}

// Encoder produces the block sequence for one payload.
//
// An Encoder is NOT safe for concurrent use.
type Encoder interface {
	// SourceBlocks returns the number of source blocks K. A decoder needs
	// at least K blocks, usually a few more.
	SourceBlocks() int

	// Next returns the next block. The sequence never ends.
	Next() Block

	// All yields Next() until the consumer stops.
	All() iter.Seq[Block]
}

// Decoder accumulates blocks until the payload can be rebuilt.
//
// A Decoder is NOT safe for concurrent use.
type Decoder interface {
	// Consume adds one block and reports whether decoding is complete.
	// Duplicates are ignored. A block whose header disagrees with the
	// first accepted block is rejected with ErrHeaderMismatch and leaves
	// the decoder unchanged.
	Consume(b Block) (bool, error)

	// Done reports whether the payload is available.
	Done() bool

	// Progress returns (resolved, needed) source counts.
	Progress() (int, int)

	// Bytes returns the payload, or ErrNotDecoded before Done.
	Bytes() ([]byte, error)
}

// NewEncoder creates an encoder for payload. A zero seed picks a random
// one for SchemeLT; for SchemeRaptorQ the seed is the first symbol id.
func NewEncoder(s Scheme, payload []byte, blockSize int, seed uint32) (Encoder, error) {
	if len(payload) == 0 {
		return nil, stegerrors.ErrEmptyPayload
	}
	if blockSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", stegerrors.ErrInvalidBlockSize, blockSize)
	}
	if uint64(len(payload)) > 1<<32-1 || sourceBlocks(len(payload), blockSize) > MaxSourceBlocks {
		return nil, fmt.Errorf("%w: %d bytes in %d-byte blocks", stegerrors.ErrPayloadTooLarge, len(payload), blockSize)
	}
	switch s {
	case SchemeLT:
		if seed != 0 && !validLTSeed(seed) {
			return nil, fmt.Errorf("%w: %d outside [1, %d]", stegerrors.ErrInvalidSeed, seed, prngM-1)
		}
		return newLTEncoder(payload, blockSize, seed), nil
	case SchemeRaptorQ:
		return newRQEncoder(payload, blockSize, seed&maxSymbolID)
	}
	return nil, fmt.Errorf("%w: id %d", stegerrors.ErrUnknownFountain, s)
}

// NewDecoder creates an empty decoder. Payload geometry is taken from the
// first block consumed.
func NewDecoder(s Scheme) (Decoder, error) {
	switch s {
	case SchemeLT:
		return newLTDecoder(), nil
	case SchemeRaptorQ:
		return newRQDecoder(), nil
	}
	return nil, fmt.Errorf("%w: id %d", stegerrors.ErrUnknownFountain, s)
}
