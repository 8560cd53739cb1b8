package tabstego

import (
	"fmt"

	stegerrors "github.com/tamirms/tabstego/errors"
	"github.com/tamirms/tabstego/internal/bits"
	"github.com/tamirms/tabstego/internal/classify"
	"github.com/tamirms/tabstego/internal/fountain"
	"github.com/tamirms/tabstego/internal/framing"
)

// Config holds every setting shared by Encode and Decode. Decode must be
// given the same BitPerRow, BlockSize, ParitySize, HashAlgorithm,
// Password, Fountain and Compress values the table was encoded with.
type Config struct {
	BitPerRow      int    // bits carried by each row: 1, 2 or 4
	BlockSize      int    // fountain block data bytes per packet
	ParitySize     int    // Reed-Solomon parity bytes per packet; 0 disables
	HashAlgorithm  string // row classifier digest, see classify.Algorithms
	Password       string // enables HMAC classification when set
	ReverseReading bool   // also scan the table bottom to top
	Fountain       string // "lt" or "raptorq"
	Seed           uint32 // encoder seed; 0 picks one at random
	MaxPackets     int    // cap on embedded packets; 0 fills the table
	Workers        int    // goroutines for classification and scanning
	Compress       bool   // zstd-compress the payload before encoding
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BitPerRow:     2,
		BlockSize:     20,
		ParitySize:    10,
		HashAlgorithm: classify.DefaultAlgorithm,
		Fountain:      fountain.SchemeLT.String(),
		Workers:       1, // Default to single-threaded; use WithWorkers(n) to parallelize
	}
}

// Validate reports the first configuration error.
func (c Config) Validate() error {
	if !bits.ValidWidth(c.BitPerRow) {
		return fmt.Errorf("%w: got %d", stegerrors.ErrInvalidBitPerRow, c.BitPerRow)
	}
	if err := framing.CheckSizes(c.BlockSize, c.ParitySize); err != nil {
		return err
	}
	if !classify.Supported(c.HashAlgorithm) {
		return fmt.Errorf("%w: %q", stegerrors.ErrUnknownHashAlgorithm, c.HashAlgorithm)
	}
	scheme, err := fountain.ParseScheme(c.Fountain)
	if err != nil {
		return err
	}
	if c.Seed != 0 && !scheme.ValidSeed(c.Seed) {
		return fmt.Errorf("%w: %d for %s", stegerrors.ErrInvalidSeed, c.Seed, scheme)
	}
	if c.MaxPackets < 0 {
		return fmt.Errorf("%w: got %d", stegerrors.ErrInvalidMaxPackets, c.MaxPackets)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: got %d", stegerrors.ErrInvalidWorkers, c.Workers)
	}
	return nil
}

// PacketSize returns the framed packet length in bytes.
func (c Config) PacketSize() int {
	return framing.PacketSize(c.BlockSize, c.ParitySize)
}

// RowsPerPacket returns how many rows one packet occupies.
func (c Config) RowsPerPacket() int {
	return c.PacketSize() * bits.FieldsPerByte(c.BitPerRow)
}

func (c Config) scheme() fountain.Scheme {
	s, _ := fountain.ParseScheme(c.Fountain)
	return s
}

func (c Config) classifier() (*classify.Classifier, error) {
	var pw []byte
	if c.Password != "" {
		pw = []byte(c.Password)
	}
	return classify.New(c.BitPerRow, c.HashAlgorithm, pw)
}

// Option is a functional option for Encode, Decode and friends.
type Option func(*options)

type options struct {
	cfg     Config
	metrics *Metrics
}

func newOptions(opts []Option) (*options, error) {
	o := &options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// WithConfig replaces the whole configuration. Options after it still
// apply on top.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithBitPerRow sets how many bits each row carries.
func WithBitPerRow(n int) Option {
	return func(o *options) {
		o.cfg.BitPerRow = n
	}
}

// WithBlockSize sets the fountain block size in bytes.
func WithBlockSize(n int) Option {
	return func(o *options) {
		o.cfg.BlockSize = n
	}
}

// WithParitySize sets the Reed-Solomon parity bytes per packet.
func WithParitySize(n int) Option {
	return func(o *options) {
		o.cfg.ParitySize = n
	}
}

// WithHashAlgorithm selects the classifier digest.
func WithHashAlgorithm(name string) Option {
	return func(o *options) {
		o.cfg.HashAlgorithm = name
	}
}

// WithPassword enables keyed classification. A wrong password on decode
// looks exactly like a table with no payload.
func WithPassword(pw string) Option {
	return func(o *options) {
		o.cfg.Password = pw
	}
}

// WithReverseReading makes Decode also scan the table bottom to top.
func WithReverseReading(on bool) Option {
	return func(o *options) {
		o.cfg.ReverseReading = on
	}
}

// WithFountain selects the fountain scheme by name.
func WithFountain(name string) Option {
	return func(o *options) {
		o.cfg.Fountain = name
	}
}

// WithSeed fixes the encoder seed for reproducible output.
func WithSeed(seed uint32) Option {
	return func(o *options) {
		o.cfg.Seed = seed
	}
}

// WithMaxPackets caps how many packets Encode embeds.
func WithMaxPackets(n int) Option {
	return func(o *options) {
		o.cfg.MaxPackets = n
	}
}

// WithWorkers sets the number of parallel workers.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.cfg.Workers = n
	}
}

// WithCompression toggles zstd compression of the payload.
func WithCompression(on bool) Option {
	return func(o *options) {
		o.cfg.Compress = on
	}
}

// WithMetrics records counters into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
