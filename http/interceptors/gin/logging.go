package gin

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rainbow-me/gateway-correlation/common/logger"
)

// maxLoggedBody caps how much of a forwarded body ends up in a trace log line.
const maxLoggedBody = 4 << 10

type loggingCfg struct {
	debug bool
	trace bool
}

// bodyTap keeps the first maxLoggedBody bytes written through it.
type bodyTap struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyTap) Write(data []byte) (int, error) {
	keep(&w.buf, data)
	return w.ResponseWriter.Write(data)
}

func keep(buf *bytes.Buffer, data []byte) {
	if room := maxLoggedBody - buf.Len(); room > 0 {
		buf.Write(data[:min(room, len(data))])
	}
}

// RequestLogging logs one line per request once the rest of the chain returned. The
// line goes through the request context logger, which by then carries the correlation
// and trace fields.
func RequestLogging(cfg loggingCfg) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.debug {
			c.Next()
			return
		}

		var reqBody bytes.Buffer
		var tap *bodyTap
		if cfg.trace {
			if c.Request.Body != nil {
				raw, err := io.ReadAll(c.Request.Body)
				if err == nil {
					keep(&reqBody, raw)
					c.Request.Body = io.NopCloser(bytes.NewReader(raw))
				}
			}
			tap = &bodyTap{ResponseWriter: c.Writer}
			c.Writer = tap
		}
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", status),
			logger.Int("bytes", c.Writer.Size()),
			logger.String("client_ip", c.ClientIP()),
			logger.Duration("duration", time.Since(start)),
			logger.String("component", componentName),
		}
		if tap != nil {
			fields = append(fields,
				logger.ByteString("request_body", reqBody.Bytes()),
				logger.ByteString("response_body", tap.buf.Bytes()),
			)
		}

		level := logger.DebugLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = logger.ErrorLevel
		case status >= http.StatusBadRequest:
			level = logger.WarnLevel
		}
		logger.FromContext(c.Request.Context()).Log(level, "HTTP request handled", fields...)
	}
}
