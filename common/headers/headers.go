package headers

// Correlation headers
const (
	// HeaderXCorrelationID carries the correlation identifier used to join the logs of every
	// service a request passes through. Downstream services and log pipelines key on this
	// name, so it must stay stable across releases.
	HeaderXCorrelationID = "x-correlation-id"

	// HeaderXRequestID identifies a single hop, as opposed to the whole transaction
	HeaderXRequestID = "x-request-id"

	// HeaderXTraceID is the Datadog trace id propagated next to the correlation id
	HeaderXTraceID = "x-trace-id"
)

// Client identification headers
const (
	// HeaderClientTaggingHeader tags requests coming from specific clients or applications
	HeaderClientTaggingHeader = "x-client-id"

	HeaderAuthorization = "authorization"
	HeaderContentType   = "content-type"
)

// CORSAllowedHeaders lists the request headers browser clients may send through the
// gateway.
func CORSAllowedHeaders() []string {
	return []string{
		HeaderContentType,
		HeaderAuthorization,
		HeaderXCorrelationID,
		HeaderXRequestID,
		HeaderClientTaggingHeader,
	}
}
