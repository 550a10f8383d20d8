package observability_test

import (
	"context"
	"testing"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainbow-me/gateway-correlation/common/logger"
	"github.com/rainbow-me/gateway-correlation/common/test"
	"github.com/rainbow-me/gateway-correlation/correlation"
	"github.com/rainbow-me/gateway-correlation/observability"
)

func TestStartSpan(t *testing.T) {
	mt := mocktracer.Start()
	defer mt.Stop()

	log, logs := test.NewObservedLogger(t)
	ctx := logger.ContextWithLogger(context.Background(), log)
	ctx = correlation.ContextWithID(ctx, "abc")

	span, ctx := observability.StartSpan(ctx, "upstream.call")
	logger.FromContext(ctx).Info("inside span")
	span.Finish()

	spans := mt.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "abc", spans[0].Tag(correlation.IDKey))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abc", fields[correlation.IDKey])
	assert.NotEmpty(t, fields["dd.trace_id"])
	assert.NotEmpty(t, fields["dd.span_id"])
}
