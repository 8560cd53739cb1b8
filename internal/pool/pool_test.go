package pool

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"testing"

	stegerrors "github.com/tamirms/tabstego/errors"
	"github.com/tamirms/tabstego/internal/bits"
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:])))
}

func randomValues(rng *rand.Rand, n, bitPerRow int) []uint8 {
	vals := make([]uint8, n)
	for i := range vals {
		vals[i] = uint8(rng.IntN(1 << bitPerRow))
	}
	return vals
}

// TestConsumeSingleBitExample mirrors the worked example: alternating
// 1/0 rows spelling out "hi".
func TestConsumeSingleBitExample(t *testing.T) {
	vals := []uint8{1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0}
	p, err := Build(vals, 1)
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Consume([]byte("hi"), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 0, 2, 3, 4, 5, 7, 9, 11, 6, 8, 13, 10, 15, 17, 12}
	if !slices.Equal(got, want) {
		t.Fatalf("Consume = %v, want %v", got, want)
	}
}

// TestConsumeReproducesFields checks that reading the bucket values of the
// emitted rows gives back the payload.
func TestConsumeReproducesFields(t *testing.T) {
	rng := newTestRNG(t)
	for _, w := range []int{1, 2, 4} {
		vals := randomValues(rng, 4000, w)
		p, err := Build(vals, w)
		if err != nil {
			t.Fatal(err)
		}
		payload := []byte("the quick brown fox")
		idx, err := p.Consume(payload, nil)
		if err != nil {
			t.Fatalf("width %d: %v", w, err)
		}
		fields := make([]uint8, len(idx))
		for i, r := range idx {
			fields[i] = vals[r]
		}
		got := make([]byte, len(payload))
		bits.Pack(got, fields, w)
		if string(got) != string(payload) {
			t.Fatalf("width %d: decoded %q", w, got)
		}
	}
}

func TestConsumeNoDuplicates(t *testing.T) {
	rng := newTestRNG(t)
	vals := randomValues(rng, 2000, 2)
	p, _ := Build(vals, 2)
	seen := make(map[int]bool)
	var idx []int
	for {
		var err error
		chunk := make([]byte, 16)
		for i := range chunk {
			chunk[i] = byte(rng.Uint32())
		}
		idx, err = p.Consume(chunk, idx)
		if err != nil {
			break
		}
	}
	for _, r := range idx {
		if seen[r] {
			t.Fatalf("row %d emitted twice", r)
		}
		seen[r] = true
	}
	if p.Consumed() != len(idx) {
		t.Fatalf("Consumed() = %d, emitted %d", p.Consumed(), len(idx))
	}
}

// TestConsumeAtomicOnCapacity verifies a failing packet leaves no trace.
func TestConsumeAtomicOnCapacity(t *testing.T) {
	// Three rows of bucket 0 and one of bucket 1.
	p, _ := Build([]uint8{0, 0, 1, 0}, 1)
	dst := []int{42}
	// 0x40 = 0100 0000 needs one 1-row and seven 0-rows.
	got, err := p.Consume([]byte{0x40}, dst)
	if !errors.Is(err, stegerrors.ErrCapacity) {
		t.Fatalf("err = %v, want ErrCapacity", err)
	}
	if !slices.Equal(got, []int{42}) {
		t.Fatalf("dst = %v, want [42]", got)
	}
	if !slices.Equal(p.Available(), []int{3, 1}) {
		t.Fatalf("Available = %v, want [3 1]", p.Available())
	}
	if p.Consumed() != 0 {
		t.Fatalf("Consumed = %d", p.Consumed())
	}
}

func TestCheckpointRestore(t *testing.T) {
	rng := newTestRNG(t)
	vals := randomValues(rng, 500, 4)
	p, _ := Build(vals, 4)
	first, err := p.Consume([]byte{0x12, 0x34}, nil)
	if err != nil {
		t.Fatal(err)
	}
	cp := p.Checkpoint()
	a, err := p.Consume([]byte{0xAB, 0xCD}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Restore(cp)
	b, err := p.Consume([]byte{0xAB, 0xCD}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(a, b) {
		t.Fatalf("after restore got %v, want %v", b, a)
	}
	for _, r := range first {
		if slices.Contains(b, r) {
			t.Fatalf("row %d reused after restore", r)
		}
	}
}

// TestRemainingPartition checks consumed + remaining covers every row once.
func TestRemainingPartition(t *testing.T) {
	rng := newTestRNG(t)
	vals := randomValues(rng, 1000, 2)
	p, _ := Build(vals, 2)
	used, err := p.Consume([]byte("partition check"), nil)
	if err != nil {
		t.Fatal(err)
	}
	rest := p.Remaining(rng)
	all := append(slices.Clone(used), rest...)
	slices.Sort(all)
	for i, r := range all {
		if r != i {
			t.Fatalf("position %d holds row %d", i, r)
		}
	}
}

func TestCountsPartitionRows(t *testing.T) {
	rng := newTestRNG(t)
	vals := randomValues(rng, 777, 4)
	p, _ := Build(vals, 4)
	total := 0
	for _, c := range p.Counts() {
		total += c
	}
	if total != len(vals) {
		t.Fatalf("counts sum to %d, want %d", total, len(vals))
	}
}

func TestBuildRejectsOutOfRange(t *testing.T) {
	if _, err := Build([]uint8{0, 2}, 1); err == nil {
		t.Fatal("expected error for bucket 2 at width 1")
	}
	if _, err := Build(nil, 3); !errors.Is(err, stegerrors.ErrInvalidBitPerRow) {
		t.Fatalf("got %v, want ErrInvalidBitPerRow", err)
	}
}
