// Package scan recovers a payload from a table's classification stream by
// probing every packet-sized window.
//
// The scan needs no reference to the original table. Deleted or duplicated
// rows only shift the offsets at which later packets start, and every
// offset is probed, so packets that survive intact are still found.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	stegerrors "github.com/tamirms/tabstego/errors"
	"github.com/tamirms/tabstego/internal/bits"
	"github.com/tamirms/tabstego/internal/fountain"
	"github.com/tamirms/tabstego/internal/framing"
)

const (
	// chunkSize is the number of offsets a worker claims at a time.
	chunkSize = 256

	// ctxCheckInterval is how often the sequential scan polls ctx.
	ctxCheckInterval = 1024
)

// Stream returns the bucket values to scan. With reverse set, the reversed
// reading is appended so a table flipped end to end still decodes.
func Stream(values []uint8, reverse bool) []uint8 {
	if !reverse {
		return values
	}
	out := make([]uint8, 0, 2*len(values))
	out = append(out, values...)
	for i := len(values) - 1; i >= 0; i-- {
		out = append(out, values[i])
	}
	return out
}

// Config describes the packet geometry to look for.
type Config struct {
	BitPerRow  int
	BlockSize  int
	ParitySize int
	Scheme     fountain.Scheme
	Workers    int // <= 1 scans sequentially
}

// Rejections counts discarded candidates by reason.
type Rejections struct {
	Uncorrectable int // Reed-Solomon could not repair the window
	Checksum      int // CRC mismatch
	Header        int // framed correctly but header inconsistent
}

// Total returns the sum of all rejections.
func (r Rejections) Total() int {
	return r.Uncorrectable + r.Checksum + r.Header
}

func (r *Rejections) add(o Rejections) {
	r.Uncorrectable += o.Uncorrectable
	r.Checksum += o.Checksum
	r.Header += o.Header
}

func (r *Rejections) count(err error) {
	switch {
	case errors.Is(err, stegerrors.ErrUncorrectable):
		r.Uncorrectable++
	case errors.Is(err, stegerrors.ErrChecksumMismatch):
		r.Checksum++
	default:
		r.Header++
	}
}

// Result is the outcome of a scan.
type Result struct {
	Payload      []byte
	Success      bool
	ValidPackets int // packets fed to the fountain decoder
	Probes       int // offsets examined
	Corrected    int // bytes repaired across valid packets
	Rejected     Rejections
}

// Scanner probes a stream for packets. It holds no per-scan state and may
// be reused.
type Scanner struct {
	cfg        Config
	packetSize int
	window     int
}

// New validates cfg and creates a Scanner.
func New(cfg Config) (*Scanner, error) {
	if !bits.ValidWidth(cfg.BitPerRow) {
		return nil, fmt.Errorf("%w: got %d", stegerrors.ErrInvalidBitPerRow, cfg.BitPerRow)
	}
	if err := framing.CheckSizes(cfg.BlockSize, cfg.ParitySize); err != nil {
		return nil, err
	}
	if _, err := fountain.NewDecoder(cfg.Scheme); err != nil {
		return nil, err
	}
	ps := framing.PacketSize(cfg.BlockSize, cfg.ParitySize)
	return &Scanner{
		cfg:        cfg,
		packetSize: ps,
		window:     ps * bits.FieldsPerByte(cfg.BitPerRow),
	}, nil
}

// Window returns the number of rows one packet occupies.
func (s *Scanner) Window() int { return s.window }

// checkHeader rejects framed candidates whose header cannot belong to a
// payload written with this configuration.
func (s *Scanner) checkHeader(b fountain.Block) error {
	switch {
	case int(b.BlockSize) != s.cfg.BlockSize:
		return fmt.Errorf("%w: block size %d", stegerrors.ErrBadHeader, b.BlockSize)
	case b.TotalSize == 0:
		return fmt.Errorf("%w: empty payload", stegerrors.ErrBadHeader)
	case b.SourceBlocks() > fountain.MaxSourceBlocks:
		return fmt.Errorf("%w: %d source blocks", stegerrors.ErrBadHeader, b.SourceBlocks())
	case !s.cfg.Scheme.ValidSeed(b.Seed):
		return fmt.Errorf("%w: seed %d", stegerrors.ErrBadHeader, b.Seed)
	}
	return nil
}

// probe validates the window at offset i. cand is scratch space of
// packetSize bytes.
func (s *Scanner) probe(f *framing.Framer, stream []uint8, i int, cand []byte) (framing.Packet, error) {
	bits.Pack(cand, stream[i:i+s.window], s.cfg.BitPerRow)
	pkt, err := f.Validate(cand)
	if err != nil {
		return pkt, err
	}
	return pkt, s.checkHeader(pkt.Block)
}

// Scan probes every offset in [0, len(stream)-Window()] until the decoder
// completes or the stream is exhausted. The error is non-nil only when ctx
// is cancelled.
func (s *Scanner) Scan(ctx context.Context, stream []uint8) (*Result, error) {
	dec, err := fountain.NewDecoder(s.cfg.Scheme)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	if len(stream) >= s.window {
		if s.cfg.Workers > 1 {
			err = s.scanParallel(ctx, stream, dec, res)
		} else {
			err = s.scanSequential(ctx, stream, dec, res)
		}
		if err != nil {
			return nil, err
		}
	}
	if dec.Done() {
		payload, err := dec.Bytes()
		if err != nil {
			return nil, err
		}
		res.Payload = payload
		res.Success = true
	}
	return res, nil
}

// feed hands an accepted packet to the decoder and records the outcome.
func feed(dec fountain.Decoder, pkt framing.Packet, res *Result) bool {
	done, err := dec.Consume(pkt.Block)
	if err != nil {
		res.Rejected.count(err)
		return done
	}
	res.ValidPackets++
	res.Corrected += pkt.Corrected
	return done
}

func (s *Scanner) scanSequential(ctx context.Context, stream []uint8, dec fountain.Decoder, res *Result) error {
	f, err := framing.New(s.cfg.BlockSize, s.cfg.ParitySize)
	if err != nil {
		return err
	}
	cand := make([]byte, s.packetSize)
	last := len(stream) - s.window
	for i := 0; i <= last; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		res.Probes++
		pkt, err := s.probe(f, stream, i, cand)
		if err != nil {
			res.Rejected.count(err)
			continue
		}
		if feed(dec, pkt, res) {
			return nil
		}
	}
	return nil
}

// scanParallel fans offsets out to Workers probe goroutines. Accepted
// packets funnel through one channel into the decoder, which runs on the
// calling goroutine and cancels the workers once it is done.
func (s *Scanner) scanParallel(ctx context.Context, stream []uint8, dec fountain.Decoder, res *Result) error {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(scanCtx)

	last := int64(len(stream) - s.window)
	var next atomic.Int64
	var mu sync.Mutex // guards res.Probes and res.Rejected
	found := make(chan framing.Packet, s.cfg.Workers)

	for range s.cfg.Workers {
		g.Go(func() error {
			f, err := framing.New(s.cfg.BlockSize, s.cfg.ParitySize)
			if err != nil {
				return err
			}
			cand := make([]byte, s.packetSize)
			var probes int
			var rejected Rejections
			defer func() {
				mu.Lock()
				res.Probes += probes
				res.Rejected.add(rejected)
				mu.Unlock()
			}()
			for {
				start := next.Add(chunkSize) - chunkSize
				if start > last || gctx.Err() != nil {
					return nil
				}
				end := min(start+chunkSize-1, last)
				for i := start; i <= end; i++ {
					probes++
					pkt, err := s.probe(f, stream, int(i), cand)
					if err != nil {
						rejected.count(err)
						continue
					}
					select {
					case found <- pkt:
					case <-gctx.Done():
						return nil
					}
				}
			}
		})
	}

	var waitErr error
	go func() {
		waitErr = g.Wait()
		close(found)
	}()

	done := false
	for pkt := range found {
		if done {
			continue
		}
		mu.Lock()
		done = feed(dec, pkt, res)
		mu.Unlock()
		if done {
			cancel()
		}
	}

	if waitErr != nil {
		return waitErr
	}
	if !done {
		return ctx.Err()
	}
	return nil
}
