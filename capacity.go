package tabstego

import (
	"context"
	"errors"
	"math/rand/v2"

	stegerrors "github.com/tamirms/tabstego/errors"
	"github.com/tamirms/tabstego/internal/fountain"
	"github.com/tamirms/tabstego/internal/framing"
	"github.com/tamirms/tabstego/internal/pool"
)

// estimateSeed drives the fountain encoder during estimation when the
// configuration leaves Seed at 0. It is valid for both schemes.
const estimateSeed = 0x5EED

// CapacityReport estimates how much a table can carry under a
// configuration.
//
// The estimate embeds a random payload into the table's buckets exactly as
// Encode would, header and framing included, and checks that the packets
// which fit rebuild it. Payload sizes are fountain input bytes, i.e. after
// compression when Compress is set.
type CapacityReport struct {
	Rows          int
	BitPerRow     int
	PacketSize    int   // bytes
	RowsPerPacket int   // rows one packet occupies
	Buckets       []int // rows per classification value
	MaxPackets    int   // upper bound from the row count alone
	// EstimatedPackets is how many packets of an EstimatedPayload-byte
	// random payload fit before a bucket runs dry or MaxPackets is hit.
	EstimatedPackets int
	// PacketsNeeded is how many of those packets the decoder used.
	PacketsNeeded int
	// EstimatedPayload is the largest payload, in bytes, that embedded and
	// decoded with a few packets to spare.
	EstimatedPayload int
}

// EstimateCapacity classifies t and reports its expected capacity.
//
// With Seed set, the fountain overhead is exact for that seed and a
// payload of EstimatedPayload bytes encodes. With Seed 0 Encode draws a
// random seed whose overhead may differ slightly.
func EstimateCapacity(ctx context.Context, t Table, opts ...Option) (*CapacityReport, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	cfg := o.cfg
	c, err := cfg.classifier()
	if err != nil {
		return nil, err
	}
	values, err := classifyRows(ctx, t, c, cfg.Workers)
	if err != nil {
		return nil, err
	}
	p, err := pool.Build(values, cfg.BitPerRow)
	if err != nil {
		return nil, err
	}
	f, err := framing.New(cfg.BlockSize, cfg.ParitySize)
	if err != nil {
		return nil, err
	}

	r := &CapacityReport{
		Rows:          len(values),
		BitPerRow:     cfg.BitPerRow,
		PacketSize:    cfg.PacketSize(),
		RowsPerPacket: cfg.RowsPerPacket(),
		Buckets:       p.Counts(),
	}
	r.MaxPackets = r.Rows / r.RowsPerPacket

	s := &simulator{cfg: cfg, pool: p, start: p.Checkpoint(), framer: f}
	hi := r.MaxPackets * cfg.BlockSize
	if cfg.MaxPackets > 0 {
		hi = min(hi, cfg.MaxPackets*cfg.BlockSize)
	}
	lo := 0
	for lo < hi {
		mid := (lo + hi + 1) / 2
		ok, _, err := s.run(ctx, mid)
		if err != nil {
			return nil, err
		}
		if ok {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	_, e, err := s.run(ctx, max(lo, 1))
	if err != nil {
		return nil, err
	}
	r.EstimatedPayload = lo
	r.EstimatedPackets = e.packets
	if lo > 0 {
		r.PacketsNeeded = e.needed
	}
	return r, nil
}

// simulator replays Encode's embedding for random payloads of a given size
// against one pool.
type simulator struct {
	cfg    Config
	pool   *pool.Pool
	start  pool.Checkpoint
	framer *framing.Framer
	order  []int
}

// spare is the number of packets that must fit beyond the ones the decoder
// needed. It absorbs the variation in bucket draw between the random
// payload used here and a real one of the same size.
func spare(packets int) int {
	return 2 + packets/20
}

// run embeds a size-byte random payload and reports whether it decoded
// with spare packets. A payload the fountain cannot encode reports false.
func (s *simulator) run(ctx context.Context, size int) (bool, embedding, error) {
	s.pool.Restore(s.start)
	rng := rand.New(rand.NewPCG(uint64(size), 0xC0FFEE))
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(rng.Uint32())
	}
	seed := s.cfg.Seed
	if seed == 0 {
		seed = estimateSeed
	}
	enc, err := fountain.NewEncoder(s.cfg.scheme(), payload, s.cfg.BlockSize, seed)
	if errors.Is(err, stegerrors.ErrPayloadTooLarge) {
		return false, embedding{}, nil
	}
	if err != nil {
		return false, embedding{}, err
	}
	e, err := embed(ctx, s.pool, enc, s.framer, s.cfg.scheme(), s.cfg.MaxPackets, s.order[:0])
	if err != nil {
		return false, e, err
	}
	s.order = e.order
	if e.needed == 0 {
		return false, e, nil
	}
	if e.full && e.needed > e.packets-spare(e.packets) {
		return false, e, nil
	}
	return true, e, nil
}
