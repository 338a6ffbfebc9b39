/*
Package handlebars implements the jPulse template expansion engine: a
recursive-descent expander for {{expression}} and {{#block}}...{{/block}}
constructs over a per-request context map.

Helpers live in a Registry keyed by name; re-registering a name replaces the
previous handler, which is how sites and plugins override framework helpers.
Rendering fails soft: unknown helpers and missing context paths
evaluate to empty output, malformed markers pass through verbatim, and a
failed include renders an inline HTML-comment marker. One broken fragment
never blanks a page.

Before expansion the context passes through FilterContext, which hides
configured namespaces from unauthenticated (or authenticated) requests while
re-exposing an explicit allowlist of leaf values. File inclusion resolves
through the site > plugin > framework override chain with a configurable
depth limit and an optional content cache.
*/
package handlebars
