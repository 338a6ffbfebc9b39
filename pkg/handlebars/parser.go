package handlebars

import "strings"

// scanMarker reads one {{...}} marker starting at open (which must point at
// "{{"). It returns the trimmed inner expression and the index just past the
// closing "}}". Quoted spans inside the marker may contain "}}" without
// terminating it. ok is false for an unterminated marker.
func scanMarker(source string, open int) (inner string, end int, ok bool) {
	i := open + 2
	var quote byte
	for i < len(source) {
		c := source[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			i++
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			i++
		case '}':
			if i+1 < len(source) && source[i+1] == '}' {
				return strings.TrimSpace(source[open+2 : i]), i + 2, true
			}
			i++
		default:
			i++
		}
	}
	return "", 0, false
}

// matchOpen reports whether source at i starts an opening marker for the
// named block ("{{#name" followed by whitespace or the closing braces).
func matchOpen(source string, i int, name string) bool {
	prefix := "{{#" + name
	if !strings.HasPrefix(source[i:], prefix) {
		return false
	}
	rest := source[i+len(prefix):]
	if rest == "" {
		return false
	}
	switch rest[0] {
	case ' ', '\t', '\r', '\n', '}':
		return true
	}
	return false
}

// matchClose matches "{{/name}}" at i, tolerating whitespace around the
// name. It returns the index just past the marker.
func matchClose(source string, i int, name string) (int, bool) {
	if !strings.HasPrefix(source[i:], "{{/") {
		return 0, false
	}
	j := i + 3
	for j < len(source) && (source[j] == ' ' || source[j] == '\t') {
		j++
	}
	if !strings.HasPrefix(source[j:], name) {
		return 0, false
	}
	j += len(name)
	for j < len(source) && (source[j] == ' ' || source[j] == '\t') {
		j++
	}
	if !strings.HasPrefix(source[j:], "}}") {
		return 0, false
	}
	return j + 2, true
}

// findBlockEnd locates the closing marker matching the block opened just
// before from, by counting nested open/close markers of the same name. This
// is what keeps an inner {{#if}} from stealing the outer block's {{/if}}.
// It returns the raw body and the index just past the close marker.
func findBlockEnd(source string, from int, name string) (body string, after int, ok bool) {
	depth := 1
	i := from
	for i < len(source) {
		rel := strings.Index(source[i:], "{{")
		if rel < 0 {
			break
		}
		i += rel
		if matchOpen(source, i, name) {
			depth++
			i += 2
			continue
		}
		if end, closed := matchClose(source, i, name); closed {
			depth--
			if depth == 0 {
				return source[from:i], end, true
			}
			i = end
			continue
		}
		i += 2
	}
	return "", 0, false
}

// splitElse splits a block body into its then/else spans at the first
// {{else}} marker that sits at nesting depth zero. Markers inside nested
// blocks of any name are skipped by tracking open/close depth. hasElse is
// false when the body has no top-level else.
func splitElse(body string) (thenSpan, elseSpan string, hasElse bool) {
	depth := 0
	i := 0
	for i < len(body) {
		rel := strings.Index(body[i:], "{{")
		if rel < 0 {
			break
		}
		i += rel
		inner, end, ok := scanMarker(body, i)
		if !ok {
			break
		}
		switch {
		case strings.HasPrefix(inner, "#"):
			depth++
		case strings.HasPrefix(inner, "/"):
			if depth > 0 {
				depth--
			}
		case inner == "else" && depth == 0:
			return body[:i], body[end:], true
		}
		i = end
	}
	return body, "", false
}
