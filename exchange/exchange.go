// Package exchange holds the request/response context that flows through one filter
// chain invocation.
//
// An Exchange is never mutated after construction. Every With* method returns a new
// Exchange that shares nothing mutable with the receiver, so a filter that changes a
// header must pass the returned value downstream.
package exchange

import (
	"context"
	"maps"
	"net/http"

	"github.com/rainbow-me/gateway-correlation/common/metadata"
)

type Exchange struct {
	ctx        context.Context
	method     string
	path       string
	header     metadata.Metadata
	attributes map[string]any
}

// New builds an exchange. header is copied.
func New(ctx context.Context, method, path string, header metadata.Metadata) *Exchange {
	if ctx == nil {
		ctx = context.Background()
	}
	if header == nil {
		header = metadata.Metadata{}
	}
	return &Exchange{
		ctx:    ctx,
		method: method,
		path:   path,
		header: header.Copy(),
	}
}

// FromHTTPRequest builds an exchange from an inbound HTTP request.
func FromHTTPRequest(r *http.Request) *Exchange {
	return New(r.Context(), r.Method, r.URL.Path, metadata.FromHTTPHeader(r.Header))
}

func (e *Exchange) Context() context.Context { return e.ctx }
func (e *Exchange) Method() string           { return e.method }
func (e *Exchange) Path() string             { return e.path }

// Header returns a copy of the request headers.
func (e *Exchange) Header() metadata.Metadata { return e.header.Copy() }

// HeaderValue returns the first value of the named header, matched case-insensitively.
func (e *Exchange) HeaderValue(name string) string { return e.header.First(name) }

// Attribute returns a value stored with WithAttribute.
func (e *Exchange) Attribute(key string) (any, bool) {
	v, ok := e.attributes[key]
	return v, ok
}

// WithHeader returns a copy of e whose header name holds exactly vals.
// Every other header is carried over unchanged.
func (e *Exchange) WithHeader(name string, vals ...string) *Exchange {
	out := e.clone()
	if len(vals) == 0 {
		out.header.Delete(name)
		return out
	}
	out.header.Set(name, vals...)
	return out
}

// WithContext returns a copy of e carrying ctx.
func (e *Exchange) WithContext(ctx context.Context) *Exchange {
	if ctx == nil {
		panic("exchange: nil context")
	}
	out := e.clone()
	out.ctx = ctx
	return out
}

func (e *Exchange) WithAttribute(key string, val any) *Exchange {
	out := e.clone()
	if out.attributes == nil {
		out.attributes = make(map[string]any, 1)
	}
	out.attributes[key] = val
	return out
}

func (e *Exchange) clone() *Exchange {
	return &Exchange{
		ctx:        e.ctx,
		method:     e.method,
		path:       e.path,
		header:     e.header.Copy(),
		attributes: maps.Clone(e.attributes),
	}
}
