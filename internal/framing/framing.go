// Package framing wraps fountain blocks into fixed-size packets protected
// by a CRC32 checksum and optional Reed-Solomon parity, and validates
// candidate packets read back from a table.
//
// Packet layout:
//
//	Offset         Size        Field
//	0              12          fountain block header (big-endian u32 x3)
//	12             blockSize   block data
//	12+blockSize   4           CRC32 (IEEE, big-endian) over header and data
//	16+blockSize   paritySize  Reed-Solomon parity over the preceding bytes
//
// The code is systematic: the first 16+blockSize bytes are the message
// itself, so a clean candidate can be accepted without running the
// Reed-Solomon decoder.
package framing

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"storj.io/infectious"

	stegerrors "github.com/tamirms/tabstego/errors"
	"github.com/tamirms/tabstego/internal/fountain"
)

const (
	// CRCSize is the size of the checksum trailer.
	CRCSize = 4

	// MaxPacketSize is the Reed-Solomon codeword limit over GF(2^8).
	MaxPacketSize = 256
)

// PacketSize returns the framed size of one block.
func PacketSize(blockSize, paritySize int) int {
	return fountain.HeaderSize + blockSize + CRCSize + paritySize
}

// CheckSizes validates a (blockSize, paritySize) pair.
func CheckSizes(blockSize, paritySize int) error {
	if blockSize <= 0 {
		return fmt.Errorf("%w: got %d", stegerrors.ErrInvalidBlockSize, blockSize)
	}
	if paritySize < 0 {
		return fmt.Errorf("%w: got %d", stegerrors.ErrInvalidParitySize, paritySize)
	}
	if n := PacketSize(blockSize, paritySize); n > MaxPacketSize {
		return fmt.Errorf("%w: %d bytes", stegerrors.ErrPacketTooLarge, n)
	}
	return nil
}

// Packet is a validated candidate.
type Packet struct {
	fountain.Block

	// Corrected is the number of message bytes repaired by Reed-Solomon.
	Corrected int
}

// Framer wraps and validates packets for one configuration.
//
// A Framer is NOT safe for concurrent use. Validate reuses internal
// buffers; parallel scanners create one Framer per worker.
type Framer struct {
	blockSize  int
	paritySize int
	k, n       int // message and codeword length in bytes

	fec    *infectious.FEC // nil without parity
	shares []infectious.Share
	buf    []byte
	msg    []byte
}

// New creates a Framer. paritySize 0 disables Reed-Solomon.
func New(blockSize, paritySize int) (*Framer, error) {
	if err := CheckSizes(blockSize, paritySize); err != nil {
		return nil, err
	}
	f := &Framer{
		blockSize:  blockSize,
		paritySize: paritySize,
		k:          fountain.HeaderSize + blockSize + CRCSize,
	}
	f.n = f.k + paritySize
	if paritySize > 0 {
		fec, err := infectious.NewFEC(f.k, f.n)
		if err != nil {
			return nil, fmt.Errorf("framing: reed-solomon setup: %w", err)
		}
		f.fec = fec
		f.buf = make([]byte, f.n)
		f.shares = make([]infectious.Share, f.n)
		f.msg = make([]byte, 0, f.k)
	}
	return f, nil
}

// BlockSize returns the data bytes per packet.
func (f *Framer) BlockSize() int { return f.blockSize }

// ParitySize returns the parity bytes per packet.
func (f *Framer) ParitySize() int { return f.paritySize }

// PacketSize returns the fixed packet length in bytes.
func (f *Framer) PacketSize() int { return f.n }

// Wrap frames b into a new packet.
func (f *Framer) Wrap(b fountain.Block) ([]byte, error) {
	if len(b.Data) != f.blockSize || int(b.BlockSize) != f.blockSize {
		return nil, fmt.Errorf("framing: block carries %d data bytes (header %d), framer expects %d",
			len(b.Data), b.BlockSize, f.blockSize)
	}
	pkt := make([]byte, 0, f.n)
	pkt = b.AppendBinary(pkt)
	pkt = binary.BigEndian.AppendUint32(pkt, crc32.ChecksumIEEE(pkt))
	if f.fec == nil {
		return pkt, nil
	}
	pkt = pkt[:f.n]
	err := f.fec.Encode(pkt[:f.k], func(s infectious.Share) {
		// Share data is reused between callbacks.
		pkt[s.Number] = s.Data[0]
	})
	if err != nil {
		return nil, fmt.Errorf("framing: reed-solomon encode: %w", err)
	}
	return pkt, nil
}

// Validate checks a candidate of at least PacketSize bytes. Rejections are
// ErrShortPacket, ErrUncorrectable or ErrChecksumMismatch. The returned
// block data does not alias candidate.
func (f *Framer) Validate(candidate []byte) (Packet, error) {
	if len(candidate) < f.n {
		return Packet{}, stegerrors.ErrShortPacket
	}
	if checksumOK(candidate[:f.k]) {
		return f.packet(candidate[:f.k], 0)
	}
	if f.fec == nil {
		return Packet{}, stegerrors.ErrChecksumMismatch
	}

	copy(f.buf, candidate[:f.n])
	for i := range f.shares {
		f.shares[i] = infectious.Share{Number: i, Data: f.buf[i : i+1]}
	}
	msg, err := f.fec.Decode(f.msg[:0], f.shares)
	if err != nil {
		return Packet{}, stegerrors.ErrUncorrectable
	}
	f.msg = msg
	if len(msg) != f.k || !checksumOK(msg) {
		return Packet{}, stegerrors.ErrChecksumMismatch
	}
	corrected := 0
	for i := range msg {
		if msg[i] != candidate[i] {
			corrected++
		}
	}
	return f.packet(msg, corrected)
}

func (f *Framer) packet(msg []byte, corrected int) (Packet, error) {
	b, err := fountain.ParseBlock(msg, f.blockSize)
	if err != nil {
		return Packet{}, err
	}
	b.Data = append([]byte(nil), b.Data...)
	return Packet{Block: b, Corrected: corrected}, nil
}

func checksumOK(msg []byte) bool {
	body := len(msg) - CRCSize
	return crc32.ChecksumIEEE(msg[:body]) == binary.BigEndian.Uint32(msg[body:])
}
