package tabstego

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	stegerrors "github.com/tamirms/tabstego/errors"
	"github.com/tamirms/tabstego/internal/fountain"
	"github.com/tamirms/tabstego/internal/framing"
	"github.com/tamirms/tabstego/internal/pool"
)

// EncodeStats describes what an Encode call embedded.
type EncodeStats struct {
	Rows          int   // rows in the table
	RowsPerPacket int   // rows one packet occupies
	RowsUsed      int   // rows carrying packets; the rest are shuffled filler
	Packets       int   // packets embedded
	SourceBlocks  int   // fountain source blocks; decoding needs at least this many packets
	PacketsNeeded int   // leading packets that alone rebuild the payload
	PayloadBytes  int   // bytes handed to the fountain encoder, after compression
	Buckets       []int // rows per classification value
}

// Encode hides payload in the row order of t and returns the reordered
// table. t itself is not modified.
//
// Packets are embedded until the table runs out of rows or MaxPackets is
// reached. Every embedded block is also fed to a fountain decoder; if the
// packets that fit cannot rebuild the payload on an undamaged table,
// Encode returns a *CapacityError and no table.
func Encode(ctx context.Context, t Table, payload []byte, opts ...Option) (Table, error) {
	out, _, err := EncodeWithStats(ctx, t, payload, opts...)
	return out, err
}

// EncodeWithStats is Encode that also reports embedding statistics.
func EncodeWithStats(ctx context.Context, t Table, payload []byte, opts ...Option) (Table, *EncodeStats, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, nil, err
	}
	out, stats, err := encode(ctx, t, payload, o.cfg)
	switch {
	case err == nil:
		o.metrics.observeEncode("ok", stats.Packets)
	case errors.Is(err, stegerrors.ErrCapacity):
		o.metrics.observeEncode("capacity", 0)
	default:
		o.metrics.observeEncode("error", 0)
	}
	return out, stats, err
}

func encode(ctx context.Context, t Table, payload []byte, cfg Config) (Table, *EncodeStats, error) {
	if len(payload) == 0 {
		return nil, nil, stegerrors.ErrEmptyPayload
	}
	c, err := cfg.classifier()
	if err != nil {
		return nil, nil, err
	}
	values, err := classifyRows(ctx, t, c, cfg.Workers)
	if err != nil {
		return nil, nil, err
	}
	p, err := pool.Build(values, cfg.BitPerRow)
	if err != nil {
		return nil, nil, err
	}

	data := payload
	if cfg.Compress {
		if data, err = compressPayload(payload); err != nil {
			return nil, nil, err
		}
	}
	enc, err := fountain.NewEncoder(cfg.scheme(), data, cfg.BlockSize, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}
	f, err := framing.New(cfg.BlockSize, cfg.ParitySize)
	if err != nil {
		return nil, nil, err
	}

	stats := &EncodeStats{
		Rows:          t.RowCount(),
		RowsPerPacket: cfg.RowsPerPacket(),
		SourceBlocks:  enc.SourceBlocks(),
		PayloadBytes:  len(data),
		Buckets:       p.Counts(),
	}
	e, err := embed(ctx, p, enc, f, cfg.scheme(), cfg.MaxPackets, make([]int, 0, stats.Rows))
	if err != nil {
		return nil, nil, err
	}
	stats.Packets = e.packets
	stats.PacketsNeeded = e.needed
	stats.RowsUsed = len(e.order)

	log := Logger()
	if e.needed == 0 {
		log.Debug("encode out of capacity",
			zap.Int("packets", stats.Packets),
			zap.Int("source_blocks", stats.SourceBlocks),
			zap.Bool("table_full", e.full),
			zap.Ints("buckets", stats.Buckets))
		return nil, stats, &stegerrors.CapacityError{
			Packets:       stats.Packets,
			SourceBlocks:  stats.SourceBlocks,
			RowsPerPacket: stats.RowsPerPacket,
			Rows:          stats.Rows,
		}
	}

	order := append(e.order, p.Remaining(fillerRNG(cfg.Seed))...)
	out, err := t.Reorder(order)
	if err != nil {
		return nil, nil, fmt.Errorf("reorder table: %w", err)
	}
	log.Debug("encoded payload",
		zap.Int("payload_bytes", stats.PayloadBytes),
		zap.Int("packets", stats.Packets),
		zap.Int("source_blocks", stats.SourceBlocks),
		zap.Int("packets_needed", stats.PacketsNeeded),
		zap.Int("rows_used", stats.RowsUsed),
		zap.Int("rows", stats.Rows),
		zap.Ints("buckets", stats.Buckets),
		zap.Stringer("fountain", cfg.scheme()))
	return out, stats, nil
}

// fillerRNG shuffles the unused rows. A fixed seed makes the whole output
// reproducible.
func fillerRNG(seed uint32) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(seed), 0x9E3779B97F4A7C15))
}

// embedding is the outcome of writing packets into a pool.
type embedding struct {
	order   []int // consumed row indices in output order
	packets int   // packets admitted
	needed  int   // packets after which the decoder completed, 0 if it never did
	full    bool  // stopped because a bucket ran dry
}

// embed frames blocks from enc and admits them into p until a bucket runs
// dry or maxPackets is reached. Admitted blocks feed a decoder of the same
// scheme, which sees exactly what a scan of the undamaged table would.
func embed(ctx context.Context, p *pool.Pool, enc fountain.Encoder, f *framing.Framer, scheme fountain.Scheme, maxPackets int, order []int) (embedding, error) {
	dec, err := fountain.NewDecoder(scheme)
	if err != nil {
		return embedding{}, err
	}
	e := embedding{order: order}
	for b := range enc.All() {
		if maxPackets > 0 && e.packets >= maxPackets {
			break
		}
		if err := ctx.Err(); err != nil {
			return e, err
		}
		pkt, err := f.Wrap(b)
		if err != nil {
			return e, err
		}
		e.order, err = p.Consume(pkt, e.order)
		if errors.Is(err, stegerrors.ErrCapacity) {
			e.full = true
			break
		}
		if err != nil {
			return e, err
		}
		e.packets++
		if e.needed == 0 {
			done, err := dec.Consume(b)
			if err != nil {
				return e, fmt.Errorf("decode embedded block %d: %w", e.packets, err)
			}
			if done {
				e.needed = e.packets
			}
		}
	}
	return e, nil
}
