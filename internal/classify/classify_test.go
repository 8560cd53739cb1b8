package classify

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	stegerrors "github.com/tamirms/tabstego/errors"
)

func rows(n int) [][]string {
	out := make([][]string, n)
	for i := range out {
		out[i] = []string{fmt.Sprintf("%d", i), fmt.Sprintf("%.6f", float64(i)*0.37)}
	}
	return out
}

func TestNewRejectsBadWidth(t *testing.T) {
	for _, w := range []int{0, 3, 5, 8, -1} {
		if _, err := New(w, "", nil); !errors.Is(err, stegerrors.ErrInvalidBitPerRow) {
			t.Errorf("New(%d): got %v, want ErrInvalidBitPerRow", w, err)
		}
	}
}

func TestNewRejectsUnknownAlgorithm(t *testing.T) {
	if _, err := New(2, "crc64", nil); !errors.Is(err, stegerrors.ErrUnknownHashAlgorithm) {
		t.Fatalf("got %v, want ErrUnknownHashAlgorithm", err)
	}
}

func TestDefaultAlgorithm(t *testing.T) {
	c, err := New(2, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Algorithm() != DefaultAlgorithm {
		t.Fatalf("Algorithm() = %q, want %q", c.Algorithm(), DefaultAlgorithm)
	}
}

// TestClassifyRange checks every algorithm and width stays inside
// [0, 2^width) and hits more than one bucket.
func TestClassifyRange(t *testing.T) {
	data := rows(512)
	for _, algo := range Algorithms() {
		for _, w := range []int{1, 2, 4} {
			for _, pw := range [][]byte{nil, []byte("secret")} {
				c, err := New(w, algo, pw)
				if err != nil {
					t.Fatalf("%s/%d: %v", algo, w, err)
				}
				seen := map[uint8]bool{}
				for _, r := range data {
					v := c.Classify(r)
					if int(v) >= 1<<w {
						t.Fatalf("%s/%d: value %d out of range", algo, w, v)
					}
					seen[v] = true
				}
				if len(seen) < 2 {
					t.Errorf("%s/%d keyed=%v: only %d distinct buckets", algo, w, pw != nil, len(seen))
				}
			}
		}
	}
}

// TestClassifyPurity checks repeated calls agree and the result does not
// depend on which rows were classified before.
func TestClassifyPurity(t *testing.T) {
	c, err := New(2, "sha256", []byte("pw"))
	if err != nil {
		t.Fatal(err)
	}
	data := rows(200)
	first := make([]uint8, len(data))
	for i, r := range data {
		first[i] = c.Classify(r)
	}
	for i := len(data) - 1; i >= 0; i-- {
		if got := c.Classify(data[i]); got != first[i] {
			t.Fatalf("row %d: reverse pass %d, forward pass %d", i, got, first[i])
		}
	}
}

func TestClassifyTextMatchesFields(t *testing.T) {
	c, err := New(4, "md5", nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows(64) {
		if a, b := c.Classify(r), c.ClassifyText([]byte(r[0]+r[1])); a != b {
			t.Fatalf("%v: Classify=%d ClassifyText=%d", r, a, b)
		}
	}
}

// TestPasswordChangesClassification checks that keyed and unkeyed
// classifiers disagree on a sizable share of rows.
func TestPasswordChangesClassification(t *testing.T) {
	plain, _ := New(1, "sha256", nil)
	keyed, _ := New(1, "sha256", []byte("secret"))
	other, _ := New(1, "sha256", []byte("Secret"))
	data := rows(1000)
	diffPlain, diffOther := 0, 0
	for _, r := range data {
		k := keyed.Classify(r)
		if plain.Classify(r) != k {
			diffPlain++
		}
		if other.Classify(r) != k {
			diffOther++
		}
	}
	if diffPlain < 300 || diffOther < 300 {
		t.Fatalf("keyed classification too close: %d vs plain, %d vs other password", diffPlain, diffOther)
	}
}

func TestClassifyConcurrent(t *testing.T) {
	c, _ := New(2, "blake2b-256", []byte("k"))
	data := rows(300)
	want := make([]uint8, len(data))
	for i, r := range data {
		want[i] = c.Classify(r)
	}
	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, r := range data {
				if got := c.Classify(r); got != want[i] {
					errs <- fmt.Sprintf("row %d: %d != %d", i, got, want[i])
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}
