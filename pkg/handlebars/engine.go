package handlebars

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/jpulse-net/jpulse/pkg/pathres"
)

// Translator is the i18n dependency consumed by the i18n helper. The engine
// treats it as opaque.
type Translator interface {
	Translate(lang, key string, vars map[string]string) string
}

// Engine is the Handlebars-style template expander. It owns the helper
// registry, the include cache and the active configuration. All methods are
// concurrent-safe; registry mutation is expected to happen at bootstrap,
// before requests are served.
type Engine struct {
	logger     *slog.Logger
	registry   *Registry
	resolver   *pathres.Resolver
	includes   *IncludeCache
	translator Translator
	config     *Config
	mu         sync.RWMutex
}

// NewEngine creates an engine, registers the built-in helper set and
// initializes the include cache from config. resolver may be nil when file
// inclusion is not needed (string-only expansion).
func NewEngine(logger *slog.Logger, registry *Registry, resolver *pathres.Resolver, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	e := &Engine{
		logger:   logger,
		registry: registry,
		resolver: resolver,
		config:   config,
		includes: NewIncludeCache(config.CacheIncludes, logger),
	}
	e.registerBuiltins()
	return e
}

// SetConfig applies a new configuration. The include cache is flushed so
// stale TTL or watch settings cannot linger.
func (e *Engine) SetConfig(config *Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = config
	e.includes.Reconfigure(config.CacheIncludes)
}

// Config returns a copy of the current configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.config
}

// SetTranslator wires the i18n collaborator consumed by the i18n helper.
func (e *Engine) SetTranslator(t Translator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.translator = t
}

// Registry returns the helper registry, the site/plugin extension surface.
func (e *Engine) Registry() *Registry { return e.registry }

// Includes returns the include cache, for admin stats and flushing.
func (e *Engine) Includes() *IncludeCache { return e.includes }

// Close releases the include cache watcher, if any.
func (e *Engine) Close() error { return e.includes.Close() }

// State is the per-expansion evaluation state. One State tree is created per
// top-level Expand call and discarded afterwards; it is never shared across
// requests. Vars is the deliberate mutable scratch space written by the let
// helper and visible to later expressions in the same pass.
type State struct {
	Lang    string
	Context map[string]any
	Vars    map[string]any

	engine *Engine
	depth  int
}

// Expand recursively expands source with this state. Block helpers use it to
// re-enter the engine on their body text.
func (st *State) Expand(ctx context.Context, source string) (string, error) {
	return st.engine.expand(ctx, st, source)
}

// With returns a derived state whose context is overlay merged on top of the
// current context. The outer context stays visible; Vars and include depth
// are shared, not copied.
func (st *State) With(overlay map[string]any) *State {
	merged := make(map[string]any, len(st.Context)+len(overlay))
	for k, v := range st.Context {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return &State{
		Lang:    st.Lang,
		Context: merged,
		Vars:    st.Vars,
		engine:  st.engine,
		depth:   st.depth,
	}
}

// Config returns the engine configuration active for this expansion.
func (st *State) Config() Config { return st.engine.Config() }

// Expand expands source against data with no language preference.
func (e *Engine) Expand(ctx context.Context, source string, data map[string]any) (string, error) {
	return e.ExpandLang(ctx, "", source, data)
}

// ExpandLang is the primary entry point: it expands source against data,
// with lang steering the i18n helper. data is owned by this call for its
// duration; the vars scratch map is exposed to templates under "vars".
func (e *Engine) ExpandLang(ctx context.Context, lang, source string, data map[string]any) (string, error) {
	if data == nil {
		data = make(map[string]any)
	}
	st := &State{
		Lang:    lang,
		Context: data,
		Vars:    make(map[string]any),
		engine:  e,
	}
	data["vars"] = st.Vars
	return e.expand(ctx, st, source)
}

// expand is the recursive-descent expander. It walks source left to right,
// copying literal text and evaluating {{...}} and {{#...}}...{{/...}} spans.
// Malformed markers are emitted verbatim; evaluation failures degrade to
// empty output. The only hard error is context cancellation.
func (e *Engine) expand(ctx context.Context, st *State, source string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(source) {
		if err := ctx.Err(); err != nil {
			return out.String(), err
		}

		rel := strings.Index(source[i:], "{{")
		if rel < 0 {
			out.WriteString(source[i:])
			break
		}
		open := i + rel
		out.WriteString(source[i:open])

		inner, end, ok := scanMarker(source, open)
		if !ok {
			// Unterminated marker: keep the rest verbatim.
			out.WriteString(source[open:])
			break
		}

		if strings.HasPrefix(inner, "#") {
			name, params := splitNameParams(strings.TrimPrefix(inner, "#"))
			body, after, found := findBlockEnd(source, end, name)
			if !found {
				// Unclosed block: the opening marker stays verbatim.
				out.WriteString(source[open:end])
				i = end
				continue
			}
			out.WriteString(e.runBlock(ctx, st, name, params, body))
			i = after
			continue
		}

		out.WriteString(stringify(e.evalExpression(ctx, st, inner)))
		i = end
	}
	return out.String(), nil
}

// runBlock dispatches a block helper. Unknown names and helper errors both
// fail soft to empty output so one broken block never blanks the page.
func (e *Engine) runBlock(ctx context.Context, st *State, name, params, body string) string {
	entry, ok := e.registry.Get(name)
	if !ok || entry.Kind != KindBlock {
		e.logger.Debug("Unknown block helper", "name", name)
		return ""
	}
	result, err := entry.Block(ctx, st, params, body)
	if err != nil {
		if ctx.Err() != nil {
			return result
		}
		e.logger.Debug("Block helper failed", "name", name, "error", err)
		return ""
	}
	return result
}

// evalExpression evaluates the inside of an inline {{...}} marker, or a
// parenthesized subexpression, or a block helper's condition parameter.
func (e *Engine) evalExpression(ctx context.Context, st *State, expr string) any {
	tokens := tokenizeArgs(expr)
	if len(tokens) == 0 {
		return ""
	}

	first := tokens[0]
	if first.kind == tokenWord {
		if entry, ok := e.registry.Get(first.text); ok {
			if entry.Kind != KindRegular {
				e.logger.Debug("Block helper invoked inline", "name", first.text)
				return ""
			}
			args := make([]any, 0, len(tokens)-1)
			for _, tok := range tokens[1:] {
				args = append(args, e.evalToken(ctx, st, tok))
			}
			result, err := entry.Fn(ctx, st, args)
			if err != nil {
				e.logger.Debug("Helper failed", "name", first.text, "error", err)
				return ""
			}
			return result
		}
		if len(tokens) > 1 {
			// Looks like a helper invocation but nothing is registered
			// under that name.
			e.logger.Debug("Unknown helper", "name", first.text)
			return ""
		}
	}

	if len(tokens) == 1 {
		return e.evalToken(ctx, st, first)
	}
	return ""
}

// evalToken resolves a single token. Bare words are dotted paths into the
// context, with boolean and numeric literals recognized as a fallback; a
// path that misses at any segment evaluates to nil, which stringifies empty.
func (e *Engine) evalToken(ctx context.Context, st *State, tok argToken) any {
	switch tok.kind {
	case tokenQuoted:
		return tok.text
	case tokenSubexpr:
		return e.evalExpression(ctx, st, tok.text)
	}

	if v, ok := lookupPath(st.Context, tok.text); ok {
		return v
	}
	switch tok.text {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(tok.text, 64); err == nil {
		return n
	}
	return nil
}

// splitNameParams separates a block helper name from its raw parameters.
func splitNameParams(s string) (string, string) {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, " \t\r\n"); idx >= 0 {
		return s[:idx], strings.TrimSpace(s[idx+1:])
	}
	return s, ""
}

// lookupPath walks a dotted path through nested maps and sequences. Numeric
// segments index into slices. A miss at any segment returns false; the
// caller decides what empty means.
func lookupPath(root map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = root
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]string:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		case []string:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// stringify converts an evaluated value to output text. Booleans keep their
// textual true/false form; nil renders empty.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprint(val)
	}
}

// truthy applies the falsy rules the if/unless blocks use: nil, false,
// numeric zero, empty string and empty sequences are all false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case float32:
		return val != 0
	case []any:
		return len(val) > 0
	case []string:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// toNumber coerces a value to float64 for the math helpers.
func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return n, err == nil
	default:
		return 0, false
	}
}
