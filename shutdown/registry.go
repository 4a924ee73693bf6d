// Package shutdown provides graceful-shutdown coordination for the
// bridge worker: ordered cleanup of horde sessions, maintenance mode,
// the audit store and log flushing, with in-flight generation tracking
// and escalating signal handling.
package shutdown

import (
	"context"
	"sort"
	"sync"
)

// Func is one cleanup step executed during shutdown.
type Func func(ctx context.Context) error

// registryEntry holds a registered cleanup function with metadata.
type registryEntry struct {
	name     string
	fn       Func
	priority int // lower runs earlier
}

// Registry maintains an ordered collection of cleanup functions.
//
// Priority convention for the worker:
//   - 0-9: stop accepting work (cancel polling loops)
//   - 10-19: resolve remote state (close sessions, cancel queued jobs,
//     set worker maintenance mode)
//   - 20-29: local resources (audit store)
//   - 30+: flush logs
type Registry struct {
	mu      sync.Mutex
	entries []registryEntry
	closed  bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a cleanup function. Lower priority values execute
// earlier. Registration after Run has been called is a no-op.
func (r *Registry) Register(name string, priority int, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.entries = append(r.entries, registryEntry{name: name, fn: fn, priority: priority})
}

// Run executes all registered cleanup functions in priority order. All
// functions run even if earlier ones fail; failures are collected and
// returned alongside the failing step's name. After Run the registry is
// closed and subsequent calls return nil.
func (r *Registry) Run(ctx context.Context) []NamedError {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sorted := make([]registryEntry, len(r.entries))
	copy(sorted, r.entries)
	r.mu.Unlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority < sorted[j].priority
	})

	var failures []NamedError
	for _, entry := range sorted {
		if err := entry.fn(ctx); err != nil {
			failures = append(failures, NamedError{Name: entry.name, Err: err})
		}
	}
	return failures
}

// NamedError pairs a cleanup failure with the step that produced it.
type NamedError struct {
	Name string
	Err  error
}

// Names returns the registered step names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := make([]registryEntry, len(r.entries))
	copy(sorted, r.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority < sorted[j].priority
	})

	names := make([]string, len(sorted))
	for i, entry := range sorted {
		names[i] = entry.name
	}
	return names
}

// Count returns the number of registered cleanup functions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
