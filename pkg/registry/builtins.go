package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NewWithBuiltins creates a registry preloaded with the built-in tools
// available to every flock: "now" (current UTC time, RFC 3339) and
// "new_uuid" (a fresh random ID). Hosts register their own tools on top.
func NewWithBuiltins() *Registry {
	r := NewRegistry()

	r.Register("now", "Returns the current UTC time in RFC 3339 format", func(ctx context.Context, args map[string]any) (any, error) {
		return time.Now().UTC().Format(time.RFC3339), nil
	})

	r.Register("new_uuid", "Generates a random UUID", func(ctx context.Context, args map[string]any) (any, error) {
		return uuid.NewString(), nil
	})

	return r
}
