package gateway

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"

	"github.com/rainbow-me/gateway-correlation/common/logger"
)

// hop-by-hop headers, never forwarded in either direction
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder relays requests to a single upstream base URL. It is the last gin handler,
// so the request it sees already carries the correlation id, and the resty client adds it
// again from the context for requests built elsewhere.
type Forwarder struct {
	client *resty.Client
	base   *url.URL
}

// NewForwarder relays to base with client.
func NewForwarder(base string, client *resty.Client) (*Forwarder, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrap(err, "parse upstream url")
	}
	if client == nil {
		return nil, errors.New("upstream client is required")
	}
	return &Forwarder{client: client, base: u}, nil
}

// Handle forwards the request and copies the upstream response back. Transport failures
// answer 502, or 504 when the request deadline expired.
func (f *Forwarder) Handle(c *gin.Context) {
	in := c.Request
	req := f.client.R().
		SetContext(in.Context()).
		SetDoNotParseResponse(true)

	copyHeader(req.Header, in.Header)
	if prior := in.Header.Get("X-Forwarded-For"); prior != "" {
		req.Header.Set("X-Forwarded-For", prior+", "+c.ClientIP())
	} else {
		req.Header.Set("X-Forwarded-For", c.ClientIP())
	}
	if in.Body != nil && in.Body != http.NoBody {
		req.SetBody(in.Body)
	}

	resp, err := req.Execute(in.Method, f.target(in.URL))
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		_ = c.Error(errors.Wrap(err, "forward to upstream"))
		c.AbortWithStatusJSON(status, gin.H{"message": http.StatusText(status)})
		return
	}
	body := resp.RawBody()
	defer body.Close()

	copyHeader(c.Writer.Header(), resp.Header())
	c.Status(resp.StatusCode())
	if _, err = io.Copy(c.Writer, body); err != nil {
		logger.FromContext(in.Context()).Warn("failed to copy upstream response", logger.Error(err))
	}
}

func (f *Forwarder) target(in *url.URL) string {
	u := f.base.JoinPath(in.Path)
	u.RawQuery = in.RawQuery
	return u.String()
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		if slices.Contains(hopHeaders, http.CanonicalHeaderKey(k)) {
			continue
		}
		dst[k] = slices.Clone(vs)
	}
}
