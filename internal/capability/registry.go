package capability

import (
	"sort"
	"sync"

	"github.com/gobwas/glob"

	"hivekit/internal/errors"
)

// Registry is an optional allow-list of capability names. When patterns
// are configured, agents and tasks may only reference capability names
// matching at least one pattern; an empty registry accepts any name.
//
// Patterns use glob syntax, e.g. "code.*" or "review-?".
type Registry struct {
	mu       sync.RWMutex
	patterns []compiledPattern
	seen     map[string]int // name -> reference count, for catalog reporting
}

type compiledPattern struct {
	raw      string
	compiled glob.Glob
}

// NewRegistry creates a registry with the given allow-list patterns.
// Invalid patterns are rejected up front.
func NewRegistry(patterns []string) (*Registry, error) {
	r := &Registry{
		seen: make(map[string]int),
	}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.NewValidationError("allowed_capabilities", p, "invalid glob pattern")
		}
		r.patterns = append(r.patterns, compiledPattern{raw: p, compiled: g})
	}
	return r, nil
}

// Allowed reports whether a capability name passes the allow-list.
// A registry with no patterns allows every non-empty name.
func (r *Registry) Allowed(name string) bool {
	if name == "" {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.patterns) == 0 {
		return true
	}
	for _, p := range r.patterns {
		if p.compiled.Match(name) {
			return true
		}
	}
	return false
}

// Check validates a capability name against the allow-list, returning a
// descriptive error when the name is rejected.
func (r *Registry) Check(name string) error {
	if !r.Allowed(name) {
		return errors.NewValidationError("capability", name, "not in the allowed capability list")
	}
	return nil
}

// Record notes that a capability name is in use. The registry keeps a
// reference count so status reporting can list the capabilities the
// hive has actually seen.
func (r *Registry) Record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[name]++
}

// Forget decrements the reference count for a name, dropping it from
// the catalog when no references remain.
func (r *Registry) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen[name] <= 1 {
		delete(r.seen, name)
		return
	}
	r.seen[name]--
}

// Known returns the sorted list of capability names currently in use.
func (r *Registry) Known() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.seen))
	for name := range r.seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Patterns returns the configured allow-list patterns.
func (r *Registry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		out[i] = p.raw
	}
	return out
}
