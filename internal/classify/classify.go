// Package classify maps table rows to small bucket values by hashing the
// row's text. The bucket is the top bit_per_row bits of the first digest
// byte, so it depends on nothing but the row's own cells and the password.
package classify

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"

	stegerrors "github.com/tamirms/tabstego/errors"
	"github.com/tamirms/tabstego/internal/bits"
)

// DefaultAlgorithm is used when no algorithm name is configured.
const DefaultAlgorithm = "sha256"

var algorithms = map[string]func() hash.Hash{
	"md5":      md5.New,
	"sha1":     sha1.New,
	"sha224":   sha256.New224,
	"sha256":   sha256.New,
	"sha384":   sha512.New384,
	"sha512":   sha512.New,
	"sha3-256": sha3.New256,
	"sha3-512": sha3.New512,
	"blake2b-256": func() hash.Hash {
		h, _ := blake2b.New256(nil) // only fails for keys longer than 64 bytes
		return h
	},
	"blake2s-256": func() hash.Hash {
		h, _ := blake2s.New256(nil)
		return h
	},
	"xxh64":   func() hash.Hash { return xxhash.New() },
	"xxh3":    func() hash.Hash { return xxh3.New() },
	"murmur3": func() hash.Hash { return murmur3.New128() },
}

// Algorithms returns the supported algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Supported reports whether name is a known algorithm. The empty string
// stands for DefaultAlgorithm.
func Supported(name string) bool {
	if name == "" {
		return true
	}
	_, ok := algorithms[name]
	return ok
}

// Classifier assigns a bucket value in [0, 2^BitPerRow) to a row.
// It is safe for concurrent use.
type Classifier struct {
	bitPerRow int
	algorithm string
	keyed     bool
	states    sync.Pool // of *state
}

type state struct {
	h   hash.Hash
	buf []byte
	sum []byte
}

// New builds a classifier. An empty algorithm selects DefaultAlgorithm.
// A non-empty password switches to HMAC over the selected algorithm.
func New(bitPerRow int, algorithm string, password []byte) (*Classifier, error) {
	if !bits.ValidWidth(bitPerRow) {
		return nil, fmt.Errorf("%w: got %d", stegerrors.ErrInvalidBitPerRow, bitPerRow)
	}
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	newHash, ok := algorithms[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", stegerrors.ErrUnknownHashAlgorithm, algorithm)
	}

	c := &Classifier{bitPerRow: bitPerRow, algorithm: algorithm, keyed: len(password) > 0}
	key := slices.Clone(password)
	c.states.New = func() any {
		var h hash.Hash
		if len(key) > 0 {
			h = hmac.New(newHash, key)
		} else {
			h = newHash()
		}
		return &state{h: h}
	}
	return c, nil
}

// BitPerRow returns the bucket width in bits.
func (c *Classifier) BitPerRow() int { return c.bitPerRow }

// Algorithm returns the resolved algorithm name.
func (c *Classifier) Algorithm() string { return c.algorithm }

// Keyed reports whether a password is in use.
func (c *Classifier) Keyed() bool { return c.keyed }

// Classify hashes the row's cells concatenated without a separator.
func (c *Classifier) Classify(fields []string) uint8 {
	s := c.states.Get().(*state)
	s.buf = s.buf[:0]
	for _, f := range fields {
		s.buf = append(s.buf, f...)
	}
	v := c.digest(s, s.buf)
	c.states.Put(s)
	return v
}

// ClassifyText hashes an already concatenated row.
func (c *Classifier) ClassifyText(text []byte) uint8 {
	s := c.states.Get().(*state)
	v := c.digest(s, text)
	c.states.Put(s)
	return v
}

func (c *Classifier) digest(s *state, text []byte) uint8 {
	s.h.Reset()
	s.h.Write(text)
	s.sum = s.h.Sum(s.sum[:0])
	return s.sum[0] >> (8 - c.bitPerRow)
}
