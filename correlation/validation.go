package correlation

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Validation decides whether an id supplied by the caller is trusted.
type Validation int

const (
	// ValidationNone forwards any non-empty value unchanged.
	ValidationNone Validation = iota
	// ValidationStrict treats over-long values and values with control or non-ASCII
	// bytes as missing, so a fresh id replaces them.
	ValidationStrict
)

const maxIDLength = 128

func ParseValidation(s string) (Validation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ValidationNone, nil
	case "strict":
		return ValidationStrict, nil
	default:
		return ValidationNone, errors.Newf("unknown correlation id validation mode %q", s)
	}
}

func (v Validation) String() string {
	switch v {
	case ValidationStrict:
		return "strict"
	default:
		return "none"
	}
}

// check returns why id is refused, or nil.
func (v Validation) check(id string) error {
	if v != ValidationStrict {
		return nil
	}
	if len(id) > maxIDLength {
		return errors.Newf("longer than %d bytes", maxIDLength)
	}
	for i := 0; i < len(id); i++ {
		switch c := id[i]; {
		case c < 0x20 || c == 0x7f:
			return errors.Newf("control character at offset %d", i)
		case c > 0x7f:
			return errors.Newf("non-ASCII byte at offset %d", i)
		}
	}
	return nil
}
