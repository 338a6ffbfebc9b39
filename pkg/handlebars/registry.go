package handlebars

import (
	"context"
	"sort"
	"sync"
)

// Kind distinguishes the two helper forms the engine dispatches on.
type Kind string

const (
	// KindRegular helpers receive evaluated arguments and return a value.
	KindRegular Kind = "regular"
	// KindBlock helpers receive the raw parameter string and the raw body
	// text, and decide themselves what to expand.
	KindBlock Kind = "block"
)

// SourceCore tags helpers registered by the framework itself. Site helpers
// register under "site", plugin helpers under the plugin's name.
const SourceCore = "core"

// Helper is the unified signature for regular helpers. Arguments arrive
// already evaluated (dotted paths resolved, subexpressions computed).
type Helper func(ctx context.Context, st *State, args []any) (any, error)

// BlockHelper is the signature for block helpers. params is the raw
// parameter string from the opening marker; body is the unexpanded text
// between the open and close markers. Most block helpers re-enter the engine
// through st.Expand on some or all of body.
type BlockHelper func(ctx context.Context, st *State, params, body string) (string, error)

// Entry is one registered helper with its origin metadata.
type Entry struct {
	Name   string
	Kind   Kind
	Source string
	Fn     Helper
	Block  BlockHelper
}

// Registry maps helper names to handlers. Registering a name that already
// exists silently replaces the previous entry; this last-write-wins rule is
// how a site or plugin overrides a framework helper. All methods are
// concurrent-safe, though in practice mutation happens once at bootstrap.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds or replaces a regular helper.
func (r *Registry) Register(name string, fn Helper, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = Entry{Name: name, Kind: KindRegular, Source: source, Fn: fn}
}

// RegisterBlock adds or replaces a block helper.
func (r *Registry) RegisterBlock(name string, fn BlockHelper, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = Entry{Name: name, Kind: KindBlock, Source: source, Block: fn}
}

// Get returns the entry for name, if any.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Unregister removes name from the registry. Intended for tests that
// override a helper and restore the original afterwards.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Entries returns a name-sorted snapshot of all registered helpers.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered helpers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
