package handlebars

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// blockIf expands the "then" span when the condition is truthy, otherwise
// the span after a top-level {{else}}. Falsy values: false, nil, zero, empty
// string, empty sequence.
func blockIf(ctx context.Context, st *State, params, body string) (string, error) {
	thenSpan, elseSpan, _ := splitElse(body)
	if truthy(st.engine.evalExpression(ctx, st, params)) {
		return st.Expand(ctx, thenSpan)
	}
	return st.Expand(ctx, elseSpan)
}

// blockUnless is the inverse of blockIf.
func blockUnless(ctx context.Context, st *State, params, body string) (string, error) {
	thenSpan, elseSpan, _ := splitElse(body)
	if truthy(st.engine.evalExpression(ctx, st, params)) {
		return st.Expand(ctx, elseSpan)
	}
	return st.Expand(ctx, thenSpan)
}

// blockEach expands the body once per element of a sequence. The parameter
// form is "sequence" or "sequence as name"; the element binds to name (or
// "this"), and loop metadata is merged on top of the outer context so outer
// variables stay visible: @index, @first, @last, @count.
func blockEach(ctx context.Context, st *State, params, body string) (string, error) {
	seqExpr, name := params, "this"
	if idx := strings.LastIndex(params, " as "); idx >= 0 {
		seqExpr = strings.TrimSpace(params[:idx])
		name = strings.TrimSpace(params[idx+len(" as "):])
		if name == "" {
			name = "this"
		}
	}

	elems := toSequence(st.engine.evalExpression(ctx, st, seqExpr))
	var out strings.Builder
	for i, elem := range elems {
		sub := st.With(map[string]any{
			name:     elem,
			"@index": i,
			"@first": i == 0,
			"@last":  i == len(elems)-1,
			"@count": len(elems),
		})
		piece, err := sub.Expand(ctx, body)
		out.WriteString(piece)
		if err != nil {
			return out.String(), err
		}
	}
	return out.String(), nil
}

// blockRepeat expands the body n times sequentially, with @index bound per
// iteration. Output segments appear in iteration order.
func blockRepeat(ctx context.Context, st *State, params, body string) (string, error) {
	n, ok := toNumber(st.engine.evalExpression(ctx, st, params))
	if !ok || n < 1 {
		return "", nil
	}
	count := int(n)
	var out strings.Builder
	for i := 0; i < count; i++ {
		sub := st.With(map[string]any{
			"@index": i,
			"@first": i == 0,
			"@last":  i == count-1,
			"@count": count,
		})
		piece, err := sub.Expand(ctx, body)
		out.WriteString(piece)
		if err != nil {
			return out.String(), err
		}
	}
	return out.String(), nil
}

// blockWith narrows the context to the value of its parameter. Map values
// are merged over the outer context; anything else binds to "this".
func blockWith(ctx context.Context, st *State, params, body string) (string, error) {
	value := st.engine.evalExpression(ctx, st, params)
	if m, ok := value.(map[string]any); ok {
		return st.With(m).Expand(ctx, body)
	}
	return st.With(map[string]any{"this": value}).Expand(ctx, body)
}

// blockCapture assigns the expanded body to a named entry in the vars
// scratch map: {{#capture greeting}}Hello {{user.name}}{{/capture}} is
// visible to later expressions in the same pass as {{vars.greeting}}.
func blockCapture(ctx context.Context, st *State, params, body string) (string, error) {
	name := strings.TrimSpace(params)
	if name == "" {
		return "", nil
	}
	value, err := st.Expand(ctx, body)
	if err != nil {
		return "", err
	}
	st.Vars[name] = value
	return "", nil
}

// helperLet is the inline assignment form: {{let "name" value}}.
func helperLet(_ context.Context, st *State, args []any) (any, error) {
	if len(args) < 2 {
		return "", nil
	}
	name := stringify(args[0])
	if name == "" {
		return "", nil
	}
	st.Vars[name] = args[1]
	return "", nil
}

// helperInclude resolves a relative path through the override chain, reads
// it and expands it as a template in the current context. Failures render an
// inline HTML-comment marker instead of aborting the page.
func helperInclude(ctx context.Context, st *State, args []any) (any, error) {
	rel := argsText(args)
	if rel == "" {
		return "<!-- include error: empty path -->", nil
	}
	return st.engine.includeFile(ctx, st, rel), nil
}

// includeFile implements the include helper: resolve, read (through the
// cache), recursively expand with the depth guard.
func (e *Engine) includeFile(ctx context.Context, st *State, rel string) string {
	cfg := e.Config()
	if st.depth+1 > cfg.MaxIncludeDepth {
		e.logger.Warn("Include depth limit exceeded", "path", rel, "max_depth", cfg.MaxIncludeDepth)
		return fmt.Sprintf("<!-- include error: max depth %d exceeded at %s -->", cfg.MaxIncludeDepth, rel)
	}
	if e.resolver == nil {
		return fmt.Sprintf("<!-- include error: no resolver for %s -->", rel)
	}

	res, err := e.resolver.Resolve(rel)
	if err != nil {
		e.logger.Debug("Include failed to resolve", "path", rel, "error", err)
		return fmt.Sprintf("<!-- include error: %s not found -->", rel)
	}

	content, err := e.includes.ReadFile(res.AbsPath)
	if err != nil {
		e.logger.Debug("Include failed to read", "path", res.AbsPath, "error", err)
		return fmt.Sprintf("<!-- include error: %s unreadable -->", rel)
	}

	sub := &State{
		Lang:    st.Lang,
		Context: st.Context,
		Vars:    st.Vars,
		engine:  e,
		depth:   st.depth + 1,
	}
	out, _ := e.expand(ctx, sub, content)
	return out
}

// helperI18n translates a key for the expansion's language. Arguments after
// the key are name/value pairs substituted into the translation.
func helperI18n(_ context.Context, st *State, args []any) (any, error) {
	if len(args) == 0 {
		return "", nil
	}
	st.engine.mu.RLock()
	translator := st.engine.translator
	st.engine.mu.RUnlock()
	if translator == nil {
		return "", nil
	}

	key := stringify(args[0])
	var vars map[string]string
	if len(args) > 1 {
		vars = make(map[string]string)
		for i := 1; i+1 < len(args); i += 2 {
			vars[stringify(args[i])] = stringify(args[i+1])
		}
	}
	return translator.Translate(st.Lang, key, vars), nil
}

// toSequence normalizes a value to a []any for iteration helpers. Slices of
// any element type are accepted; maps iterate in sorted key order with each
// element exposing "key" and "value".
func toSequence(v any) []any {
	switch seq := v.(type) {
	case nil:
		return nil
	case []any:
		return seq
	case map[string]any:
		keys := make([]string, 0, len(seq))
		for k := range seq {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(seq))
		for _, k := range keys {
			out = append(out, map[string]any{"key": k, "value": seq[k]})
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
