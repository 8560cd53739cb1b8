package scan

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/tamirms/tabstego/internal/bits"
	"github.com/tamirms/tabstego/internal/fountain"
	"github.com/tamirms/tabstego/internal/framing"
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:])))
}

var defaultCfg = Config{BitPerRow: 2, BlockSize: 20, ParitySize: 10, Scheme: fountain.SchemeLT}

// buildStream frames n blocks of payload and lays their fields out back to
// back, followed by tail random fields.
func buildStream(t *testing.T, rng *rand.Rand, cfg Config, payload []byte, n, tail int) []uint8 {
	t.Helper()
	enc, err := fountain.NewEncoder(cfg.Scheme, payload, cfg.BlockSize, 0)
	if err != nil {
		t.Fatal(err)
	}
	f, err := framing.New(cfg.BlockSize, cfg.ParitySize)
	if err != nil {
		t.Fatal(err)
	}
	var stream []uint8
	for range n {
		pkt, err := f.Wrap(enc.Next())
		if err != nil {
			t.Fatal(err)
		}
		for _, b := range pkt {
			stream = bits.SplitByte(stream, b, cfg.BitPerRow)
		}
	}
	for range tail {
		stream = append(stream, uint8(rng.IntN(1<<cfg.BitPerRow)))
	}
	return stream
}

func TestStreamReverse(t *testing.T) {
	in := []uint8{0, 1, 2, 3}
	if got := Stream(in, false); !slices.Equal(got, in) {
		t.Fatalf("forward = %v", got)
	}
	want := []uint8{0, 1, 2, 3, 3, 2, 1, 0}
	if got := Stream(in, true); !slices.Equal(got, want) {
		t.Fatalf("reverse = %v, want %v", got, want)
	}
}

func TestWindow(t *testing.T) {
	s, err := New(defaultCfg)
	if err != nil {
		t.Fatal(err)
	}
	if s.Window() != 184 {
		t.Fatalf("Window = %d, want 184", s.Window())
	}
}

func TestScanFindsPayload(t *testing.T) {
	rng := newTestRNG(t)
	payload := []byte("a payload long enough to need several source blocks")
	stream := buildStream(t, rng, defaultCfg, payload, 40, 500)
	for _, workers := range []int{1, 4} {
		cfg := defaultCfg
		cfg.Workers = workers
		s, _ := New(cfg)
		res, err := s.Scan(context.Background(), stream)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Success || !bytes.Equal(res.Payload, payload) {
			t.Fatalf("workers=%d: success=%v payload=%q", workers, res.Success, res.Payload)
		}
		if res.ValidPackets == 0 || res.Probes == 0 {
			t.Fatalf("workers=%d: stats %+v", workers, res)
		}
	}
}

// TestScanToleratesDeletions removes single fields inside some packets;
// the damaged packets are lost but the stream realigns for the rest.
func TestScanToleratesDeletions(t *testing.T) {
	rng := newTestRNG(t)
	payload := []byte("hello sacha")
	stream := buildStream(t, rng, defaultCfg, payload, 12, 0)
	s, _ := New(defaultCfg)
	w := s.Window()
	// Drop a field in packets 0, 2 and 4.
	for _, p := range []int{4, 2, 0} {
		pos := p*w + rng.IntN(w)
		stream = slices.Delete(stream, pos, pos+1)
	}
	res, err := s.Scan(context.Background(), stream)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || string(res.Payload) != "hello sacha" {
		t.Fatalf("not recovered: %+v", res)
	}
}

func TestScanCorrectsDamagedPacket(t *testing.T) {
	rng := newTestRNG(t)
	payload := []byte("x")
	stream := buildStream(t, rng, defaultCfg, payload, 1, 0)
	// Flip two whole bytes of the message part.
	for _, byteIdx := range []int{3, 17} {
		for j := range 4 {
			stream[byteIdx*4+j] ^= 1
		}
	}
	s, _ := New(defaultCfg)
	res, err := s.Scan(context.Background(), stream)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Corrected != 2 {
		t.Fatalf("success=%v corrected=%d", res.Success, res.Corrected)
	}
}

// TestScanReversed reads a table that was flipped end to end.
func TestScanReversed(t *testing.T) {
	rng := newTestRNG(t)
	payload := []byte("reversed table")
	stream := buildStream(t, rng, defaultCfg, payload, 6, 50)
	slices.Reverse(stream)
	s, _ := New(defaultCfg)

	res, err := s.Scan(context.Background(), Stream(stream, false))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("forward-only scan of a reversed table should not decode")
	}
	res, err = s.Scan(context.Background(), Stream(stream, true))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || string(res.Payload) != "reversed table" {
		t.Fatalf("reverse reading failed: %+v", res)
	}
}

func TestScanNoise(t *testing.T) {
	rng := newTestRNG(t)
	stream := make([]uint8, 3000)
	for i := range stream {
		stream[i] = uint8(rng.IntN(4))
	}
	for _, workers := range []int{1, 3} {
		cfg := defaultCfg
		cfg.Workers = workers
		s, _ := New(cfg)
		res, err := s.Scan(context.Background(), stream)
		if err != nil {
			t.Fatal(err)
		}
		if res.Success || res.Payload != nil {
			t.Fatalf("decoded noise: %+v", res)
		}
		if want := len(stream) - s.Window() + 1; res.Probes != want {
			t.Fatalf("workers=%d: Probes = %d, want %d", workers, res.Probes, want)
		}
		if res.Rejected.Total() != res.Probes {
			t.Fatalf("rejections %d != probes %d", res.Rejected.Total(), res.Probes)
		}
	}
}

func TestScanShortStream(t *testing.T) {
	s, _ := New(defaultCfg)
	res, err := s.Scan(context.Background(), make([]uint8, 10))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Probes != 0 {
		t.Fatalf("unexpected %+v", res)
	}
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stream := make([]uint8, 2000)
	for _, workers := range []int{1, 2} {
		cfg := defaultCfg
		cfg.Workers = workers
		s, _ := New(cfg)
		if _, err := s.Scan(ctx, stream); !errors.Is(err, context.Canceled) {
			t.Fatalf("workers=%d: got %v, want context.Canceled", workers, err)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	bad := []Config{
		{BitPerRow: 3, BlockSize: 20, ParitySize: 10},
		{BitPerRow: 2, BlockSize: 0, ParitySize: 10},
		{BitPerRow: 2, BlockSize: 250, ParitySize: 10},
		{BitPerRow: 2, BlockSize: 20, ParitySize: 10, Scheme: fountain.Scheme(7)},
	}
	for _, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%+v) succeeded", cfg)
		}
	}
}

func TestRaptorQScan(t *testing.T) {
	rng := newTestRNG(t)
	cfg := defaultCfg
	cfg.Scheme = fountain.SchemeRaptorQ
	payload := []byte("raptorq carried payload of moderate size")
	stream := buildStream(t, rng, cfg, payload, 30, 100)
	s, _ := New(cfg)
	res, err := s.Scan(context.Background(), stream)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || !bytes.Equal(res.Payload, payload) {
		t.Fatalf("raptorq scan failed: %+v", res)
	}
}
