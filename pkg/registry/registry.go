// Package registry manages the tools participants may request during a
// turn. It satisfies the dispatcher's tool-executor seam.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ToolFunction defines the signature for a tool implementation.
// It receives a context and a map of arguments, and returns a result or error.
type ToolFunction func(ctx context.Context, args map[string]any) (any, error)

// Tool is a registered tool with its metadata.
type Tool struct {
	Name        string
	Description string
	Fn          ToolFunction
}

// Registry manages the available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry and returns its handle.
// If a tool with the same name exists, it is overwritten.
func (r *Registry) Register(name, description string, fn ToolFunction) Tool {
	r.mu.Lock()
	defer r.mu.Unlock()
	tool := Tool{Name: name, Description: description, Fn: fn}
	r.tools[name] = tool
	return tool
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Execute looks up a tool by name and executes it.
// Returns an error if the tool is not found.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}

	return tool.Fn(ctx, args)
}
