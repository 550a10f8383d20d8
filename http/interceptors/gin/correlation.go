package gin

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/rainbow-me/gateway-correlation/common/logger"
	"github.com/rainbow-me/gateway-correlation/correlation"
	"github.com/rainbow-me/gateway-correlation/exchange"
	"github.com/rainbow-me/gateway-correlation/filter"
)

// CorrelationMiddleware runs every request through pipeline before the remaining gin
// handlers. Headers and context produced by the filters replace those of c.Request, and
// the correlation id is echoed on the response under the accessor's header.
// A pipeline failure aborts the request.
func CorrelationMiddleware(pipeline *filter.Pipeline, accessor *correlation.Accessor) gin.HandlerFunc {
	if accessor == nil {
		accessor = correlation.DefaultAccessor()
	}
	return func(c *gin.Context) {
		terminal := filter.Inline(func(ctx context.Context, ex *exchange.Exchange) (*exchange.Response, error) {
			req := c.Request.WithContext(ctx)
			req.Header = ex.Header().ToHTTPHeader()
			c.Request = req

			if id, ok := accessor.ID(ex.Header()); ok {
				c.Header(accessor.Header(), id)
			}
			c.Next()
			return &exchange.Response{StatusCode: c.Writer.Status()}, nil
		})

		_, err := pipeline.Serve(exchange.FromHTTPRequest(c.Request), terminal).Await(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
		}
	}
}

// StatusCode maps a pipeline failure to the HTTP status returned to the caller.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, correlation.ErrGeneratorUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := StatusCode(err)
	logger.FromContext(c.Request.Context()).Error("Request failed in filter chain",
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
		logger.Error(err),
	)
	tagSpanAsError(c.Request.Context(), correlation.FailureReason(err), err.Error())
	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(status, gin.H{
		"message": http.StatusText(status),
	})
}
