package correlation

import (
	"github.com/rainbow-me/gateway-correlation/common/logger"
	"github.com/rainbow-me/gateway-correlation/exchange"
	"github.com/rainbow-me/gateway-correlation/filter"
)

// TraceFilterOrder runs the trace filter ahead of every stage that reads the id.
const TraceFilterOrder = 1

// TraceFilterID is the registry id the gateway registers the trace filter under.
const TraceFilterID = "correlation-trace"

// TraceFilter makes sure every request leaves it with exactly one non-empty correlation
// id. A caller supplied id is kept; otherwise a new one is generated and set on the
// exchange handed to the rest of the chain.
type TraceFilter struct {
	accessor   *Accessor
	generator  Generator
	log        *logger.Logger
	recorder   Recorder
	validation Validation
}

type TraceFilterOption func(f *TraceFilter)

func WithAccessor(a *Accessor) TraceFilterOption {
	return func(f *TraceFilter) {
		if a != nil {
			f.accessor = a
		}
	}
}

func WithGenerator(g Generator) TraceFilterOption {
	return func(f *TraceFilter) {
		if g != nil {
			f.generator = g
		}
	}
}

func WithLogger(log *logger.Logger) TraceFilterOption {
	return func(f *TraceFilter) {
		if log != nil {
			f.log = log
		}
	}
}

func WithRecorder(r Recorder) TraceFilterOption {
	return func(f *TraceFilter) {
		if r != nil {
			f.recorder = r
		}
	}
}

func WithValidation(v Validation) TraceFilterOption {
	return func(f *TraceFilter) {
		f.validation = v
	}
}

// NewTraceFilter defaults to the x-correlation-id header, UUID ids, a no-op logger and
// no validation of caller supplied ids.
func NewTraceFilter(opts ...TraceFilterOption) *TraceFilter {
	f := &TraceFilter{
		accessor:  DefaultAccessor(),
		generator: NewUUIDGenerator(),
		log:       logger.NoOp(),
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Accessor returns the accessor the filter reads and writes the header with.
func (f *TraceFilter) Accessor() *Accessor { return f.accessor }

func (f *TraceFilter) Filter(ex *exchange.Exchange, chain filter.Chain) *filter.Future {
	if ex == nil {
		return f.fail(invalidArgument("exchange is nil"))
	}

	id, found := f.accessor.ID(ex.Header())
	if found {
		if err := f.validation.check(id); err != nil {
			f.log.Warn("correlation id rejected",
				logger.String("header", f.accessor.Header()),
				logger.String("value", id),
				logger.Error(err),
			)
			f.recorder.RecordOutcome(OutcomeRejected)
			found = false
		}
	}

	if found {
		// repeated headers collapse to the value that was read
		if len(ex.Header().Get(f.accessor.Header())) > 1 {
			var err error
			if ex, err = f.accessor.SetID(ex, id); err != nil {
				return f.fail(err)
			}
		}
		f.log.Debug("correlation id found", LogField(id))
		f.recorder.RecordOutcome(OutcomeFound)
	} else {
		var err error
		if id, err = f.generator.Generate(); err != nil {
			return f.fail(err)
		}
		if ex, err = f.accessor.SetID(ex, id); err != nil {
			return f.fail(err)
		}
		f.log.Debug("correlation id generated", LogField(id))
		f.recorder.RecordOutcome(OutcomeGenerated)
	}

	ex = ex.WithContext(contextWithID(ex.Context(), id, f.log))
	return chain.Proceed(ex)
}

func (f *TraceFilter) fail(err error) *filter.Future {
	f.recorder.RecordFailure(FailureReason(err))
	f.log.Error("failed to establish correlation id", logger.Error(err))
	return filter.Failed(err)
}
