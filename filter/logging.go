package filter

import (
	"net/http"
	"time"

	"github.com/rainbow-me/gateway-correlation/common/logger"
	"github.com/rainbow-me/gateway-correlation/exchange"
)

// RequestLoggingID is the id RequestLogging is usually registered under.
const RequestLoggingID = "request-logging"

// RequestLoggingOrder places request logging after the stages that enrich the context
// logger (correlation), so its line carries their fields.
const RequestLoggingOrder = 100

// RequestLogging logs one line per request once the rest of the chain completes. The
// logger stored in the request context wins over log, so fields attached by earlier
// filters show up on the line.
func RequestLogging(log *logger.Logger) Filter {
	if log == nil {
		log = logger.NoOp()
	}
	return Func(func(ex *exchange.Exchange, chain Chain) *Future {
		start := time.Now()
		return chain.Proceed(ex).Then(func(resp *exchange.Response, err error) (*exchange.Response, error) {
			fields := []logger.Field{
				logger.String("method", ex.Method()),
				logger.String("path", ex.Path()),
				logger.Duration("duration", time.Since(start)),
			}

			level := logger.DebugLevel
			switch {
			case err != nil:
				level = logger.ErrorLevel
				fields = append(fields, logger.Error(err))
			case resp != nil:
				fields = append(fields, logger.Int("status", resp.StatusCode))
				if resp.StatusCode >= http.StatusInternalServerError {
					level = logger.ErrorLevel
				} else if resp.StatusCode >= http.StatusBadRequest {
					level = logger.WarnLevel
				}
			}

			logger.FromContextOr(ex.Context(), log).Log(level, "request handled", fields...)
			return resp, err
		})
	})
}
