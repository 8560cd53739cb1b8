package tabstego

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// maxDecompressedSize bounds what a decoded payload may expand to.
const maxDecompressedSize = 64 << 20

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

// zstdCodecs lazily builds one encoder and decoder for the process.
// EncodeAll and DecodeAll are safe for concurrent use.
func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedBestCompression),
			zstd.WithEncoderCRC(false))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecompressedSize))
	})
	return zstdEnc, zstdDec, zstdErr
}

// compressPayload drops the frame checksum; packets carry their own CRC.
func compressPayload(data []byte) ([]byte, error) {
	enc, _, err := zstdCodecs()
	if err != nil {
		return nil, fmt.Errorf("zstd setup: %w", err)
	}
	return enc.EncodeAll(data, nil), nil
}

func decompressPayload(data []byte) ([]byte, error) {
	_, dec, err := zstdCodecs()
	if err != nil {
		return nil, fmt.Errorf("zstd setup: %w", err)
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
