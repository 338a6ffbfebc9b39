package handlebars

import "strings"

// FilterRule describes which context namespaces are visible to a request.
// WithoutAuth names namespaces (top-level keys or dotted paths) hidden from
// unauthenticated requests; WithAuth names namespaces hidden from
// authenticated ones (rare). AlwaysAllow lists dotted paths that are
// re-exposed even when their namespace is hidden. Only those exact leaves
// come back, never their siblings.
type FilterRule struct {
	WithoutAuth []string `json:"withoutAuth"`
	WithAuth    []string `json:"withAuth"`
	AlwaysAllow []string `json:"alwaysAllow"`
}

// FilterContext produces the filtered view of context for one request. It
// must run before every expansion: it is a security boundary, keeping
// internal configuration out of pages served to anonymous visitors. The
// input map is not modified.
func FilterContext(context map[string]any, authenticated bool, rule FilterRule) map[string]any {
	filtered := make(map[string]any, len(context))
	for k, v := range context {
		filtered[k] = v
	}

	hidden := rule.WithoutAuth
	if authenticated {
		hidden = rule.WithAuth
	}
	for _, ns := range hidden {
		removePath(filtered, ns)
	}

	// Re-insert allowlisted leaves from the pre-filter original, creating
	// intermediate maps as needed. Unknown paths are skipped silently.
	for _, path := range rule.AlwaysAllow {
		value, ok := lookupPath(context, path)
		if !ok {
			continue
		}
		insertPath(filtered, path, value)
	}

	return filtered
}

// removePath deletes the entry at a dotted path. Maps along the path are
// cloned before descending so the caller's input tree stays untouched.
func removePath(root map[string]any, path string) {
	segs := strings.Split(path, ".")
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		clone := make(map[string]any, len(child))
		for k, v := range child {
			clone[k] = v
		}
		cur[seg] = clone
		cur = clone
	}
	delete(cur, segs[len(segs)-1])
}

// insertPath writes value at the dotted path, building intermediate maps.
// Existing non-map intermediates are replaced; the allowlist wins.
func insertPath(root map[string]any, path string, value any) {
	segs := strings.Split(path, ".")
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}
