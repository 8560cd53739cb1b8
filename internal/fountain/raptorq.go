package fountain

import (
	"fmt"
	"iter"

	"github.com/xssnick/raptorq"

	stegerrors "github.com/tamirms/tabstego/errors"
)

// maxSymbolID is the largest encoding symbol id RaptorQ can address (24 bits).
const maxSymbolID = 1<<24 - 1

// rqEncoder emits RaptorQ symbols in id order, starting with the
// systematic ones. The header seed carries the symbol id.
type rqEncoder struct {
	total     uint32
	blockSize int
	enc       *raptorq.Encoder
	next      uint32
}

func newRQEncoder(payload []byte, blockSize int, start uint32) (*rqEncoder, error) {
	rq := raptorq.NewRaptorQ(uint32(blockSize))
	enc, err := rq.CreateEncoder(payload)
	if err != nil {
		return nil, fmt.Errorf("raptorq encoder: %w", err)
	}
	return &rqEncoder{
		total:     uint32(len(payload)),
		blockSize: blockSize,
		enc:       enc,
		next:      start,
	}, nil
}

func (e *rqEncoder) SourceBlocks() int { return int(e.enc.BaseSymbolsNum()) }

func (e *rqEncoder) Next() Block {
	id := e.next
	e.next = (e.next + 1) & maxSymbolID
	data := make([]byte, e.blockSize)
	copy(data, e.enc.GenSymbol(id))
	return Block{TotalSize: e.total, BlockSize: uint32(e.blockSize), Seed: id, Data: data}
}

func (e *rqEncoder) All() iter.Seq[Block] {
	return func(yield func(Block) bool) {
		for {
			if !yield(e.Next()) {
				return
			}
		}
	}
}

// rqDecoder collects symbols until the RaptorQ decoder can solve the
// generation.
type rqDecoder struct {
	started   bool
	total     uint32
	blockSize int
	dec       *raptorq.Decoder
	seen      map[uint32]struct{}
	payload   []byte
	done      bool
}

func newRQDecoder() *rqDecoder {
	return &rqDecoder{seen: make(map[uint32]struct{})}
}

func (d *rqDecoder) init(b Block) error {
	if b.TotalSize == 0 || b.BlockSize == 0 || b.SourceBlocks() > MaxSourceBlocks {
		return fmt.Errorf("%w: total %d, block %d", stegerrors.ErrBadHeader, b.TotalSize, b.BlockSize)
	}
	rq := raptorq.NewRaptorQ(b.BlockSize)
	dec, err := rq.CreateDecoder(b.TotalSize)
	if err != nil {
		return fmt.Errorf("%w: %v", stegerrors.ErrBadHeader, err)
	}
	d.started = true
	d.total = b.TotalSize
	d.blockSize = int(b.BlockSize)
	d.dec = dec
	return nil
}

func (d *rqDecoder) Consume(b Block) (bool, error) {
	if len(b.Data) != int(b.BlockSize) || b.Seed > maxSymbolID {
		return d.done, fmt.Errorf("%w: symbol id %d, %d data bytes", stegerrors.ErrBadHeader, b.Seed, len(b.Data))
	}
	if !d.started {
		if err := d.init(b); err != nil {
			return false, err
		}
	} else if b.TotalSize != d.total || int(b.BlockSize) != d.blockSize {
		return d.done, fmt.Errorf("%w: got (%d, %d), want (%d, %d)",
			stegerrors.ErrHeaderMismatch, b.TotalSize, b.BlockSize, d.total, d.blockSize)
	}
	if d.done {
		return true, nil
	}
	if _, dup := d.seen[b.Seed]; dup {
		return false, nil
	}
	d.seen[b.Seed] = struct{}{}

	ready, err := d.dec.AddSymbol(b.Seed, append([]byte(nil), b.Data...))
	if err != nil {
		return false, fmt.Errorf("%w: %v", stegerrors.ErrBadHeader, err)
	}
	if !ready {
		return false, nil
	}
	ok, payload, err := d.dec.Decode()
	if err != nil || !ok {
		// Not solvable yet; more symbols may still help.
		return false, nil
	}
	d.payload = payload
	d.done = true
	return true, nil
}

func (d *rqDecoder) Done() bool { return d.done }

func (d *rqDecoder) Progress() (int, int) {
	if !d.started {
		return 0, 0
	}
	need := int(d.dec.FastSymbolsNumRequired())
	if d.done {
		return need, need
	}
	return min(len(d.seen), need), need
}

func (d *rqDecoder) Bytes() ([]byte, error) {
	if !d.done {
		return nil, stegerrors.ErrNotDecoded
	}
	return d.payload[:min(len(d.payload), int(d.total))], nil
}
