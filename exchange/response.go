package exchange

import (
	"github.com/rainbow-me/gateway-correlation/common/metadata"
)

// Response is what the terminal stage of a chain produced.
type Response struct {
	StatusCode int
	Header     metadata.Metadata
	Body       []byte

	// Payload holds the handler result for transports that do not deal in bytes (gRPC).
	Payload any
}
