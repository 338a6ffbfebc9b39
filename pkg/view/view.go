// Package view serves site files through the override chain. Expandable
// documents (.shtml, .tmpl, .svg) go through context filtering and template
// expansion; everything else is passed through byte-for-byte with only a
// content-type header, so binary assets never pay the template tax.
package view

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jpulse-net/jpulse/pkg/handlebars"
)

// Request carries the per-request facts the view layer needs: where the
// client is pointed, whether it is authenticated (drives context filtering)
// and which language to translate into.
type Request struct {
	Path          string
	Authenticated bool
	Lang          string
	Host          string
	Proto         string
	Query         url.Values
}

// NewRequest derives a view Request from an incoming HTTP request.
func NewRequest(r *http.Request, authenticated bool, lang string) *Request {
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	return &Request{
		Path:          r.URL.Path,
		Authenticated: authenticated,
		Lang:          lang,
		Host:          r.Host,
		Proto:         proto,
		Query:         r.URL.Query(),
	}
}

// contextMap exposes the request to templates under the "request" namespace.
func (req *Request) contextMap() map[string]any {
	query := make(map[string]any, len(req.Query))
	for k, vals := range req.Query {
		if len(vals) > 0 {
			query[k] = vals[0]
		}
	}
	return map[string]any{
		"path":  req.Path,
		"host":  req.Host,
		"proto": req.Proto,
		"lang":  req.Lang,
		"query": query,
	}
}

// contentTypes maps file extensions to the Content-Type header the server
// emits. Unknown extensions fall back to application/octet-stream.
var contentTypes = map[string]string{
	".html":        "text/html; charset=utf-8",
	".shtml":       "text/html; charset=utf-8",
	".tmpl":        "text/html; charset=utf-8",
	".svg":         "image/svg+xml; charset=utf-8",
	".json":        "application/json; charset=utf-8",
	".css":         "text/css; charset=utf-8",
	".js":          "text/javascript; charset=utf-8",
	".txt":         "text/plain; charset=utf-8",
	".xml":         "text/xml; charset=utf-8",
	".png":         "image/png",
	".jpg":         "image/jpeg",
	".jpeg":        "image/jpeg",
	".gif":         "image/gif",
	".ico":         "image/x-icon",
	".woff2":       "font/woff2",
	".webmanifest": "application/manifest+json; charset=utf-8",
}

// expandable lists the extensions that run through the template engine.
// SVG is included so icons can pick up theme colors from the context.
var expandable = map[string]bool{
	".shtml": true,
	".tmpl":  true,
	".svg":   true,
}

// ContentTypeFor returns the Content-Type header value for a file path.
func ContentTypeFor(path string) string {
	if ctype, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ctype
	}
	return "application/octet-stream"
}

// Expandable reports whether a file of this path gets template expansion.
func Expandable(path string) bool {
	return expandable[strings.ToLower(filepath.Ext(path))]
}

// Expander is the slice of the template engine the view layer depends on.
// *handlebars.Engine satisfies it; tests substitute counters to prove the
// raw-asset path never reaches the engine.
type Expander interface {
	ExpandLang(ctx context.Context, lang, source string, data map[string]any) (string, error)
	Config() handlebars.Config
}

// ExpandHandlebars is the single expansion entry point: it filters the
// context by the request's auth state, exposes the request namespace, and
// hands the result to the engine. A span records what was rendered.
func (s *Server) ExpandHandlebars(ctx context.Context, req *Request, source string, context map[string]any) (string, error) {
	ctx, span := s.tracer.Start(ctx, "view.expand", trace.WithAttributes(
		attribute.String("view.path", req.Path),
		attribute.String("view.lang", req.Lang),
		attribute.Bool("view.authenticated", req.Authenticated),
	))
	defer span.End()

	rule := s.expander.Config().ContextFilter
	filtered := handlebars.FilterContext(context, req.Authenticated, rule)
	filtered["request"] = req.contextMap()

	out, err := s.expander.ExpandLang(ctx, req.Lang, source, filtered)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return out, nil
}
