package correlation

import (
	"strings"

	"github.com/rainbow-me/gateway-correlation/common/headers"
	"github.com/rainbow-me/gateway-correlation/common/metadata"
	"github.com/rainbow-me/gateway-correlation/exchange"
)

// Accessor reads and writes the correlation header of a request. The header name is
// fixed when the accessor is built and matched case-insensitively.
type Accessor struct {
	header string
}

func NewAccessor(header string) (*Accessor, error) {
	header = strings.ToLower(strings.TrimSpace(header))
	if header == "" {
		return nil, invalidArgument("correlation header name is empty")
	}
	return &Accessor{header: header}, nil
}

// DefaultAccessor uses headers.HeaderXCorrelationID.
func DefaultAccessor() *Accessor {
	return &Accessor{header: headers.HeaderXCorrelationID}
}

// Header returns the lower-cased header name.
func (a *Accessor) Header() string { return a.header }

// ID returns the first value of the correlation header. Missing and empty values both
// report false.
func (a *Accessor) ID(h metadata.Metadata) (string, bool) {
	id := h.First(a.header)
	return id, id != ""
}

// SetID returns a copy of ex whose correlation header holds exactly id. Every other
// header is left as is and ex itself is never modified.
func (a *Accessor) SetID(ex *exchange.Exchange, id string) (*exchange.Exchange, error) {
	if ex == nil {
		return nil, invalidArgument("exchange is nil")
	}
	if id == "" {
		return nil, invalidArgument("correlation id is empty")
	}
	return ex.WithHeader(a.header, id), nil
}
