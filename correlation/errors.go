package correlation

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidArgument marks calls made with an empty header name, exchange or id.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrGeneratorUnavailable marks failures of the random source behind a Generator.
	// Requests that hit it are failed rather than served without an id.
	ErrGeneratorUnavailable = errors.New("correlation id generator unavailable")
)

// Failure reasons reported to a Recorder.
const (
	ReasonGeneratorUnavailable = "generator_unavailable"
	ReasonInvalidArgument      = "invalid_argument"
	ReasonInternal             = "internal"
)

// FailureReason classifies err for metrics and transport status mapping.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrGeneratorUnavailable):
		return ReasonGeneratorUnavailable
	case errors.Is(err, ErrInvalidArgument):
		return ReasonInvalidArgument
	default:
		return ReasonInternal
	}
}

func invalidArgument(msg string) error {
	return errors.Wrap(ErrInvalidArgument, msg)
}
