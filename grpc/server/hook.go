package server

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ShutdownHook runs during GracefulShutdown before the servers drain. Hooks with a lower
// Priority run first; hooks sharing a priority keep their registration order.
type ShutdownHook struct {
	Name     string
	Priority int
	// Timeout bounds this hook alone. DefaultHookTimeout when zero.
	Timeout time.Duration
	Hook    func(context.Context) error
}

func (h ShutdownHook) validate() error {
	if h.Name == "" {
		return errors.New("shutdown hook name is required")
	}
	if h.Hook == nil {
		return errors.Newf("shutdown hook %q: function is required", h.Name)
	}
	if h.Timeout < 0 {
		return errors.Newf("shutdown hook %q: negative timeout %s", h.Name, h.Timeout)
	}
	return nil
}

// ShutdownHooks sorts by Priority.
type ShutdownHooks []ShutdownHook

func (h ShutdownHooks) Len() int           { return len(h) }
func (h ShutdownHooks) Less(i, j int) bool { return h[i].Priority < h[j].Priority }
func (h ShutdownHooks) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
