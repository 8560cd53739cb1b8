package fountain

import (
	"fmt"
	"iter"

	stegerrors "github.com/tamirms/tabstego/errors"
)

// ltEncoder emits an unbounded LT block sequence over a fixed payload.
type ltEncoder struct {
	total     uint32
	blockSize int
	sources   [][]byte // K zero-padded source blocks
	sampler   *sampler
	next      uint32 // seed of the next block
	idx       []int
}

func newLTEncoder(payload []byte, blockSize int, seed uint32) *ltEncoder {
	k := sourceBlocks(len(payload), blockSize)
	sources := make([][]byte, k)
	for i := range sources {
		b := make([]byte, blockSize)
		copy(b, payload[i*blockSize:])
		sources[i] = b
	}
	if seed == 0 {
		seed = randomSeed()
	}
	return &ltEncoder{
		total:     uint32(len(payload)),
		blockSize: blockSize,
		sources:   sources,
		sampler:   newSampler(k),
		next:      seed,
	}
}

func (e *ltEncoder) SourceBlocks() int { return len(e.sources) }

func (e *ltEncoder) Next() Block {
	seed := e.next
	e.idx = e.sampler.sourceIndices(seed, e.idx[:0])
	e.next = e.sampler.rng.state

	data := make([]byte, e.blockSize)
	for _, i := range e.idx {
		xorInto(data, e.sources[i])
	}
	return Block{TotalSize: e.total, BlockSize: uint32(e.blockSize), Seed: seed, Data: data}
}

func (e *ltEncoder) All() iter.Seq[Block] {
	return func(yield func(Block) bool) {
		for {
			if !yield(e.Next()) {
				return
			}
		}
	}
}

// Belief propagation graph. Nodes reference each other by index into the
// decoder's flat slices.
type sourceNode struct {
	data   []byte  // nil until resolved
	checks []int32 // checks still waiting on this source
}

type checkNode struct {
	data    []byte
	pending []int32 // unresolved sources; nil once the check is used up
}

// ltDecoder rebuilds a payload from LT blocks.
type ltDecoder struct {
	started   bool
	total     uint32
	blockSize int
	sampler   *sampler

	sources  []sourceNode
	checks   []checkNode
	resolved int
	queue    []int32
	seen     map[uint32]struct{}
	idx      []int
}

func newLTDecoder() *ltDecoder {
	return &ltDecoder{seen: make(map[uint32]struct{})}
}

func (d *ltDecoder) init(b Block) error {
	k := b.SourceBlocks()
	if b.TotalSize == 0 || b.BlockSize == 0 || k > MaxSourceBlocks {
		return fmt.Errorf("%w: total %d, block %d", stegerrors.ErrBadHeader, b.TotalSize, b.BlockSize)
	}
	d.started = true
	d.total = b.TotalSize
	d.blockSize = int(b.BlockSize)
	d.sampler = newSampler(k)
	d.sources = make([]sourceNode, k)
	return nil
}

func (d *ltDecoder) Consume(b Block) (bool, error) {
	if len(b.Data) != int(b.BlockSize) {
		return d.Done(), fmt.Errorf("%w: %d data bytes, header says %d", stegerrors.ErrBadHeader, len(b.Data), b.BlockSize)
	}
	if !validLTSeed(b.Seed) {
		return d.Done(), fmt.Errorf("%w: seed %d", stegerrors.ErrBadHeader, b.Seed)
	}
	if !d.started {
		if err := d.init(b); err != nil {
			return false, err
		}
	} else if b.TotalSize != d.total || int(b.BlockSize) != d.blockSize {
		return d.Done(), fmt.Errorf("%w: got (%d, %d), want (%d, %d)",
			stegerrors.ErrHeaderMismatch, b.TotalSize, b.BlockSize, d.total, d.blockSize)
	}
	if d.Done() {
		return true, nil
	}
	if _, dup := d.seen[b.Seed]; dup {
		return false, nil
	}
	d.seen[b.Seed] = struct{}{}

	data := append([]byte(nil), b.Data...)
	d.idx = d.sampler.sourceIndices(b.Seed, d.idx[:0])
	var pending []int32
	for _, i := range d.idx {
		if src := d.sources[i].data; src != nil {
			xorInto(data, src)
		} else {
			pending = append(pending, int32(i))
		}
	}

	switch len(pending) {
	case 0:
		// Every source already known; nothing new.
	case 1:
		d.resolve(pending[0], data)
		d.propagate()
	default:
		c := int32(len(d.checks))
		d.checks = append(d.checks, checkNode{data: data, pending: pending})
		for _, s := range pending {
			d.sources[s].checks = append(d.sources[s].checks, c)
		}
	}
	return d.Done(), nil
}

func (d *ltDecoder) resolve(s int32, data []byte) {
	if d.sources[s].data != nil {
		return
	}
	d.sources[s].data = data
	d.resolved++
	d.queue = append(d.queue, s)
}

// propagate drains the work queue, peeling each newly resolved source out
// of the checks that reference it.
func (d *ltDecoder) propagate() {
	for len(d.queue) > 0 {
		s := d.queue[len(d.queue)-1]
		d.queue = d.queue[:len(d.queue)-1]
		src := &d.sources[s]
		for _, c := range src.checks {
			ch := &d.checks[c]
			if ch.pending == nil {
				continue
			}
			for j, p := range ch.pending {
				if p == s {
					ch.pending = append(ch.pending[:j], ch.pending[j+1:]...)
					break
				}
			}
			xorInto(ch.data, src.data)
			switch len(ch.pending) {
			case 0:
				ch.pending = nil
			case 1:
				t := ch.pending[0]
				ch.pending = nil
				d.resolve(t, ch.data)
			}
		}
		src.checks = nil
	}
}

func (d *ltDecoder) Done() bool {
	return d.started && d.resolved == len(d.sources)
}

func (d *ltDecoder) Progress() (int, int) {
	return d.resolved, len(d.sources)
}

func (d *ltDecoder) Bytes() ([]byte, error) {
	if !d.Done() {
		return nil, stegerrors.ErrNotDecoded
	}
	out := make([]byte, 0, len(d.sources)*d.blockSize)
	for _, s := range d.sources {
		out = append(out, s.data...)
	}
	return out[:d.total], nil
}

func xorInto(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}
