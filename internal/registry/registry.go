// Package registry provides the builder registry that dispatches classified
// log segments to the expression builder for their command kind.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"passthru_parser/internal/passthru"
)

// Builder is implemented by each expression builder.
type Builder interface {
	// Name returns the builder's unique identifier.
	Name() string

	// Kind returns the command kind this builder handles.
	Kind() passthru.CommandKind

	// Build extracts an expression from the segment. An error means the
	// segment cannot produce a usable record and should be dropped.
	Build(seg passthru.Segment) (*passthru.Expression, error)
}

// Registry maps command kinds to builders. Kinds without a dedicated builder
// go to the catch-all builder.
type Registry struct {
	mu sync.RWMutex

	// byKind maps each kind to its dedicated builder
	byKind map[passthru.CommandKind]Builder

	// catchAll handles None and any kind without a dedicated builder
	catchAll Builder
}

// New creates a new Registry instance.
func New() *Registry {
	return &Registry{
		byKind: make(map[passthru.CommandKind]Builder),
	}
}

// Register adds a dedicated builder. Registering a second builder for the
// same kind is an error.
func (r *Registry) Register(b Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byKind[b.Kind()]; ok {
		return fmt.Errorf("kind %v already handled by %s", b.Kind(), existing.Name())
	}
	r.byKind[b.Kind()] = b
	return nil
}

// RegisterCatchAll sets the builder used when no dedicated builder exists.
func (r *Registry) RegisterCatchAll(b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catchAll = b
}

// Lookup returns the builder for kind, falling back to the catch-all.
// It returns nil only when neither exists.
func (r *Registry) Lookup(kind passthru.CommandKind) Builder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if b, ok := r.byKind[kind]; ok {
		return b
	}
	return r.catchAll
}

// Dispatch classifies a segment and builds it with the matching builder.
func (r *Registry) Dispatch(seg passthru.Segment) (passthru.CommandKind, *passthru.Expression, error) {
	kind := passthru.Classify(seg.Text)
	b := r.Lookup(kind)
	if b == nil {
		return kind, nil, fmt.Errorf("no builder for %v", kind)
	}
	expr, err := b.Build(seg)
	return kind, expr, err
}

// Uncovered returns the kinds, other than None, that have no dedicated
// builder and would be handled by the catch-all.
func (r *Registry) Uncovered() []passthru.CommandKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var kinds []passthru.CommandKind
	for _, k := range passthru.Kinds() {
		if k == passthru.None {
			continue
		}
		if _, ok := r.byKind[k]; !ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// BuilderNames returns the names of all registered builders, sorted.
func (r *Registry) BuilderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byKind)+1)
	for _, b := range r.byKind {
		names = append(names, b.Name())
	}
	if r.catchAll != nil {
		names = append(names, r.catchAll.Name())
	}
	sort.Strings(names)
	return names
}
