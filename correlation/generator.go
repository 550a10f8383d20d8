package correlation

import (
	"crypto/rand"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Generator produces new correlation ids.
type Generator interface {
	Generate() (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (string, error)

func (f GeneratorFunc) Generate() (string, error) { return f() }

// UUIDGenerator renders random (version 4) UUIDs in their canonical 36 character form.
type UUIDGenerator struct {
	rand io.Reader
}

type GeneratorOption func(g *UUIDGenerator)

// WithRandomSource replaces crypto/rand as the entropy source.
func WithRandomSource(r io.Reader) GeneratorOption {
	return func(g *UUIDGenerator) {
		if r != nil {
			g.rand = r
		}
	}
}

func NewUUIDGenerator(opts ...GeneratorOption) *UUIDGenerator {
	g := &UUIDGenerator{rand: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *UUIDGenerator) Generate() (string, error) {
	id, err := uuid.NewRandomFromReader(g.rand)
	if err != nil {
		return "", errors.WithSecondaryError(errors.Wrap(ErrGeneratorUnavailable, "failed to read random source"), err)
	}
	return id.String(), nil
}
