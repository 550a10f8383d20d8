package filter

import "github.com/cockroachdb/errors"

var (
	// ErrAlreadyProceeded is returned when a filter calls Proceed more than once for the
	// same request. The second call never reaches the next stage.
	ErrAlreadyProceeded = errors.New("filter chain already proceeded")

	// ErrNilExchange is returned when a stage hands a nil exchange to the chain.
	ErrNilExchange = errors.New("nil exchange")

	// ErrNilFuture is returned when a filter returns no completion.
	ErrNilFuture = errors.New("filter returned nil future")
)
