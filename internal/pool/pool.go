// Package pool realizes a bit sequence as an ordering of table rows.
//
// Rows are grouped into buckets by their classification value. Writing a
// field pops the oldest unused row of the matching bucket, so reading the
// classification of the emitted rows in order reproduces the fields.
package pool

import (
	"fmt"
	"math/rand/v2"

	stegerrors "github.com/tamirms/tabstego/errors"
	"github.com/tamirms/tabstego/internal/bits"
)

// Pool holds the per-bucket FIFO queues for one encode call.
//
// Buckets are never shrunk; a per-bucket head counter marks how many rows
// have been consumed, which makes checkpoints a copy of a few integers.
//
// A Pool is NOT safe for concurrent use.
type Pool struct {
	bitPerRow int
	buckets   [][]int // bucket value -> row indices in table order
	heads     []int   // bucket value -> consumed count
	consumed  int
}

// Checkpoint is a snapshot of the consumed counts.
type Checkpoint struct {
	heads    []int
	consumed int
}

// Build groups row indices by bucket value. values[i] is the classification
// of row i.
func Build(values []uint8, bitPerRow int) (*Pool, error) {
	if !bits.ValidWidth(bitPerRow) {
		return nil, fmt.Errorf("%w: got %d", stegerrors.ErrInvalidBitPerRow, bitPerRow)
	}
	n := 1 << bitPerRow
	counts := make([]int, n)
	for i, v := range values {
		if int(v) >= n {
			return nil, fmt.Errorf("pool: row %d has bucket %d, want < %d", i, v, n)
		}
		counts[v]++
	}
	p := &Pool{
		bitPerRow: bitPerRow,
		buckets:   make([][]int, n),
		heads:     make([]int, n),
	}
	for v := range p.buckets {
		p.buckets[v] = make([]int, 0, counts[v])
	}
	for i, v := range values {
		p.buckets[v] = append(p.buckets[v], i)
	}
	return p, nil
}

// BitPerRow returns the field width.
func (p *Pool) BitPerRow() int { return p.bitPerRow }

// Counts returns the total number of rows in each bucket.
func (p *Pool) Counts() []int {
	out := make([]int, len(p.buckets))
	for v, b := range p.buckets {
		out[v] = len(b)
	}
	return out
}

// Available returns the number of unconsumed rows in each bucket.
func (p *Pool) Available() []int {
	out := make([]int, len(p.buckets))
	for v, b := range p.buckets {
		out[v] = len(b) - p.heads[v]
	}
	return out
}

// Consumed returns how many rows have been emitted so far.
func (p *Pool) Consumed() int { return p.consumed }

// Checkpoint snapshots the consumed counts.
func (p *Pool) Checkpoint() Checkpoint {
	return Checkpoint{heads: append([]int(nil), p.heads...), consumed: p.consumed}
}

// Restore rolls the pool back to cp. Rows consumed after cp become
// available again in their original FIFO position.
func (p *Pool) Restore(cp Checkpoint) {
	copy(p.heads, cp.heads)
	p.consumed = cp.consumed
}

// Consume emits one row per field of data, appending the row indices to
// dst. Each byte is split most significant field first.
//
// Consumption is atomic: if any bucket runs dry part way through, the pool
// is restored to its state before the call and ErrCapacity is returned
// together with the original dst.
func (p *Pool) Consume(data []byte, dst []int) ([]int, error) {
	cp := p.Checkpoint()
	start := len(dst)
	var fields [8]uint8
	for _, b := range data {
		for _, v := range bits.SplitByte(fields[:0], b, p.bitPerRow) {
			h := p.heads[v]
			if h == len(p.buckets[v]) {
				p.Restore(cp)
				return dst[:start], stegerrors.ErrCapacity
			}
			dst = append(dst, p.buckets[v][h])
			p.heads[v] = h + 1
			p.consumed++
		}
	}
	return dst, nil
}

// Remaining returns the unconsumed row indices in random order, so the
// tail of the table carries no trace of the bucket layout.
func (p *Pool) Remaining(rng *rand.Rand) []int {
	out := make([]int, 0, p.remaining())
	for v, b := range p.buckets {
		out = append(out, b[p.heads[v]:]...)
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (p *Pool) remaining() int {
	n := 0
	for v, b := range p.buckets {
		n += len(b) - p.heads[v]
	}
	return n
}
