package interceptors

import (
	"slices"

	"google.golang.org/grpc"
)

// Chain is an ordered set of named interceptors that can be reshaped before the server or
// client is built. None of the operations are concurrency-safe.
type Chain[T any] struct {
	order []string
	items map[string]T
}

type (
	// UnaryServerInterceptorChain builds an ordered list of grpc.UnaryServerInterceptor's
	UnaryServerInterceptorChain = Chain[grpc.UnaryServerInterceptor]
	// StreamServerInterceptorChain builds an ordered list of grpc.StreamServerInterceptor's
	StreamServerInterceptorChain = Chain[grpc.StreamServerInterceptor]
	// UnaryClientInterceptorChain builds an ordered list of grpc.UnaryClientInterceptor's
	UnaryClientInterceptorChain = Chain[grpc.UnaryClientInterceptor]
	// StreamClientInterceptorChain builds an ordered list of grpc.StreamClientInterceptor's
	StreamClientInterceptorChain = Chain[grpc.StreamClientInterceptor]
)

// NewChain constructs an empty chain.
func NewChain[T any]() *Chain[T] {
	return &Chain[T]{items: make(map[string]T)}
}

func (c *Chain[T]) Exists(id string) bool {
	_, ok := c.items[id]
	return ok
}

// Push adds a new interceptor onto the end of the chain.
// Returns false if an item with the specified ID already exists.
// Push("b", <inter>)
//
//	Before: a
//	After: a -> b
func (c *Chain[T]) Push(id string, inter T) bool {
	if c.Exists(id) {
		return false
	}
	c.items[id] = inter
	c.order = append(c.order, id)
	return true
}

// InsertAfter inserts an interceptor after the specified interceptor in the chain.
// InsertAfter("a", "c", <inter>)
//
//	Before: a -> b
//	After: a -> c -> b
func (c *Chain[T]) InsertAfter(afterID, id string, inter T) bool {
	return c.insert(afterID, id, inter, 1)
}

// InsertBefore inserts an interceptor before the specified interceptor in the chain.
// InsertBefore("b", "c", <inter>)
//
//	Before: a -> b
//	After: a -> c -> b
func (c *Chain[T]) InsertBefore(beforeID, id string, inter T) bool {
	return c.insert(beforeID, id, inter, 0)
}

func (c *Chain[T]) insert(anchor, id string, inter T, offset int) bool {
	if c.Exists(id) {
		return false
	}
	i := slices.Index(c.order, anchor)
	if i < 0 {
		return false
	}
	c.items[id] = inter
	c.order = slices.Insert(c.order, i+offset, id)
	return true
}

// Delete removes the interceptor with the given id.
func (c *Chain[T]) Delete(id string) bool {
	i := slices.Index(c.order, id)
	if i < 0 {
		return false
	}
	delete(c.items, id)
	c.order = slices.Delete(c.order, i, i+1)
	return true
}

// Replace swaps the interceptor registered under id, keeping its position.
func (c *Chain[T]) Replace(id string, inter T) bool {
	if !c.Exists(id) {
		return false
	}
	c.items[id] = inter
	return true
}

// IDs returns the interceptor ids in chain order.
func (c *Chain[T]) IDs() []string {
	return slices.Clone(c.order)
}

// Commit returns the interceptors in chain order, ready for grpc.ChainUnaryInterceptor and
// friends.
func (c *Chain[T]) Commit() []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}
