package tabstego

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// numericTable builds an n-row table with an integer id column and a
// float column.
func numericTable(rng *rand.Rand, n int) *MemTable {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("%d", i), fmt.Sprintf("%.6f", rng.NormFloat64()*100)}
	}
	t, err := NewMemTable([]string{"id", "value"}, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// rowKeys renders every row as one string, in table order.
func rowKeys(t Table) []string {
	keys := make([]string, t.RowCount())
	for i := range keys {
		keys[i] = strings.Join(t.RowFields(i), "\x1f")
	}
	return keys
}

// asMem materializes any Table as a MemTable.
func asMem(t *testing.T, tbl Table) *MemTable {
	t.Helper()
	if m, ok := tbl.(*MemTable); ok {
		return m
	}
	rows := make([][]string, tbl.RowCount())
	for i := range rows {
		rows[i] = slices.Clone(tbl.RowFields(i))
	}
	m, err := NewMemTable(nil, rows)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func mustEncode(t *testing.T, tbl Table, payload []byte, opts ...Option) *MemTable {
	t.Helper()
	out, err := Encode(context.Background(), tbl, payload, opts...)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return asMem(t, out)
}

func mustDecode(t *testing.T, tbl Table, opts ...Option) *PayloadRecord {
	t.Helper()
	rec, err := Decode(context.Background(), tbl, opts...)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return rec
}

// randomDeletions picks k distinct row positions.
func randomDeletions(rng *rand.Rand, n, k int) []int {
	return rng.Perm(n)[:k]
}
