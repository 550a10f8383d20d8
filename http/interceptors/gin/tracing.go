package gin

import (
	"strings"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/ext"
	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/gin-gonic/gin"

	"github.com/rainbow-me/gateway-correlation/common/logger"
)

// TracingMiddleware continues the trace carried by the request headers or starts a new
// one. Later middlewares find the span in the request context; the correlation filter
// tags it with the id.
func TracingMiddleware(c *gin.Context) {
	route := routeOf(c)
	opts := []tracer.StartSpanOption{
		tracer.Tag(ext.Component, componentName),
		tracer.Tag(ext.SpanType, ext.SpanTypeWeb),
		tracer.Tag(ext.SpanKind, ext.SpanKindServer),
		tracer.Tag(ext.HTTPMethod, c.Request.Method),
		tracer.Tag(ext.HTTPURL, c.Request.URL.String()),
		tracer.Tag(ext.HTTPUserAgent, c.Request.UserAgent()),
		tracer.Tag(ext.HTTPRoute, route),
		tracer.ResourceName(c.Request.Method + " " + route),
	}
	if parent, err := tracer.Extract(tracer.HTTPHeadersCarrier(c.Request.Header)); err == nil && parent != nil {
		opts = append(opts, tracer.ChildOf(parent))
	}

	span := tracer.StartSpan(httpHandlerOp, opts...)
	defer span.Finish()

	ctx := tracer.ContextWithSpan(c.Request.Context(), span)
	c.Request = c.Request.WithContext(logger.ContextWithFields(ctx, logger.WithTrace(span.Context())...))
	c.Next()

	status := c.Writer.Status()
	span.SetTag(ext.HTTPCode, status)
	if status >= 500 {
		span.SetTag(ext.Error, true)
	}
}

// routeOf names the matched route. Wildcard routes such as the forwarder's catch-all
// resolve to the request path so every upstream endpoint gets its own resource.
func routeOf(c *gin.Context) string {
	route := c.FullPath()
	if route == "" || strings.Contains(route, "*") {
		return c.Request.URL.Path
	}
	return route
}
