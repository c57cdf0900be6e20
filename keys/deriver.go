package keys

import (
	"encoding/hex"
	"fmt"
	"hash"
)

// DefaultAlgorithm is the hash used when none is configured.
const DefaultAlgorithm = "sha256"

// Descriptor identifies one call of a computation.
type Descriptor struct {
	Owner     string
	Operation string
	Args      []any // order-significant
	Version   string
}

// Deriver turns descriptors into cache keys. It is immutable after New and
// safe for concurrent use.
type Deriver struct {
	algorithm string
	newHash   func() hash.Hash
	enc       Encoder
}

type Option func(*config)

type config struct {
	algorithm string
	enc       Encoder
}

// WithAlgorithm selects a registered hash algorithm by name.
func WithAlgorithm(name string) Option {
	return func(c *config) { c.algorithm = name }
}

// WithEncoder replaces the Canonical encoder.
func WithEncoder(enc Encoder) Option {
	return func(c *config) { c.enc = enc }
}

func New(opts ...Option) (*Deriver, error) {
	cfg := config{algorithm: DefaultAlgorithm, enc: Canonical{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.algorithm == "" {
		cfg.algorithm = DefaultAlgorithm
	}
	if cfg.enc == nil {
		cfg.enc = Canonical{}
	}

	newHash, ok := lookupAlgorithm(cfg.algorithm)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, cfg.algorithm)
	}
	return &Deriver{algorithm: cfg.algorithm, newHash: newHash, enc: cfg.enc}, nil
}

// MustNew is like New but panics on error.
func MustNew(opts ...Option) *Deriver {
	d, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Deriver) Algorithm() string { return d.algorithm }

// Derive validates desc and returns the hex digest of its canonical form.
// Validation failures are *ArgumentError matching ErrInvalidArgument and
// are returned before anything is encoded or hashed.
func (d *Deriver) Derive(desc Descriptor) (string, error) {
	if err := desc.Validate(); err != nil {
		return "", err
	}
	b, err := d.enc.Encode(desc)
	if err != nil {
		return "", err
	}
	h := d.newHash()
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}

var defaultDeriver = MustNew()

// Derive uses SHA-256 over the Canonical encoding.
func Derive(desc Descriptor) (string, error) {
	return defaultDeriver.Derive(desc)
}
