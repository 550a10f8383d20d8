package metadata

import (
	"net/http"
	"strings"
)

// Metadata is a header map whose keys are always stored lower-cased, which makes every
// lookup case-insensitive regardless of how the caller spelled the name.
type Metadata map[string][]string

// New builds Metadata from single-valued pairs.
func New(m map[string]string) Metadata {
	md := make(Metadata, len(m))
	for k, val := range m {
		key := strings.ToLower(k)
		md[key] = append(md[key], val)
	}
	return md
}

// FromHTTPHeader copies an http.Header. Values are copied, not shared.
func FromHTTPHeader(h http.Header) Metadata {
	md := make(Metadata, len(h))
	for k, vals := range h {
		key := strings.ToLower(k)
		md[key] = append(md[key], vals...)
	}
	return md
}

// FromMap copies any map[string][]string, e.g. gRPC metadata.MD.
func FromMap(m map[string][]string) Metadata {
	md := make(Metadata, len(m))
	for k, vals := range m {
		key := strings.ToLower(k)
		md[key] = append(md[key], vals...)
	}
	return md
}

func (md Metadata) Copy() Metadata {
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = copyOf(v)
	}
	return out
}

// Get obtains the values for a given key.
//
// k is converted to lowercase before searching in md.
func (md Metadata) Get(k string) []string {
	return md[strings.ToLower(k)]
}

// First returns the first value stored for k, or "" when there is none.
func (md Metadata) First(k string) string {
	if vals := md.Get(k); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Set replaces the values of k. Calling Set without values is a no-op.
//
// k is converted to lowercase before storing in md.
func (md Metadata) Set(k string, vals ...string) {
	if len(vals) == 0 {
		return
	}
	md[strings.ToLower(k)] = copyOf(vals)
}

// Append adds the values to key k, not overwriting what was already stored at
// that key.
func (md Metadata) Append(k string, vals ...string) {
	if len(vals) == 0 {
		return
	}
	k = strings.ToLower(k)
	md[k] = append(md[k], vals...)
}

// Delete removes the values for a given key k which is converted to lowercase
// before removing it from md.
func (md Metadata) Delete(k string) {
	delete(md, strings.ToLower(k))
}

// ToHTTPHeader renders md as an http.Header with canonical key casing.
func (md Metadata) ToHTTPHeader() http.Header {
	h := make(http.Header, len(md))
	for k, vals := range md {
		h[http.CanonicalHeaderKey(k)] = copyOf(vals)
	}
	return h
}

func copyOf(v []string) []string {
	vals := make([]string, len(v))
	copy(vals, v)
	return vals
}
