package fountain

import (
	"encoding/binary"

	stegerrors "github.com/tamirms/tabstego/errors"
)

const (
	// HeaderSize is the exact size of the serialized block header (12 bytes).
	HeaderSize = 12

	// MaxSourceBlocks bounds the number of source blocks a payload may
	// split into. Decoders reject headers that imply more.
	MaxSourceBlocks = 1 << 16
)

// Block is one coded block of the fountain sequence.
//
// Layout:
//
//	Offset  Size        Field      Type
//	0       4           TotalSize  uint32_be (payload length in bytes)
//	4       4           BlockSize  uint32_be (bytes per block)
//	8       4           Seed       uint32_be (LT: PRNG state, RaptorQ: symbol id)
//	12      BlockSize   Data       XOR of the selected source blocks
type Block struct {
	TotalSize uint32
	BlockSize uint32
	Seed      uint32
	Data      []byte
}

// SourceBlocks returns K, the number of source blocks the header implies.
func (b Block) SourceBlocks() int {
	return sourceBlocks(int(b.TotalSize), int(b.BlockSize))
}

// AppendBinary appends the header and data to dst.
func (b Block) AppendBinary(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, b.TotalSize)
	dst = binary.BigEndian.AppendUint32(dst, b.BlockSize)
	dst = binary.BigEndian.AppendUint32(dst, b.Seed)
	return append(dst, b.Data...)
}

// ParseBlock reads a header followed by blockSize data bytes. Data aliases
// buf.
func ParseBlock(buf []byte, blockSize int) (Block, error) {
	if len(buf) < HeaderSize+blockSize {
		return Block{}, stegerrors.ErrShortPacket
	}
	return Block{
		TotalSize: binary.BigEndian.Uint32(buf[0:4]),
		BlockSize: binary.BigEndian.Uint32(buf[4:8]),
		Seed:      binary.BigEndian.Uint32(buf[8:12]),
		Data:      buf[HeaderSize : HeaderSize+blockSize],
	}, nil
}

func sourceBlocks(total, blockSize int) int {
	if blockSize <= 0 {
		return 0
	}
	return (total + blockSize - 1) / blockSize
}
