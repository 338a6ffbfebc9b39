package view

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jpulse-net/jpulse/pkg/pathres"
)

// Server turns resolved site files into HTTP responses.
type Server struct {
	resolver *pathres.Resolver
	expander Expander
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewServer(resolver *pathres.Resolver, expander Expander, logger *slog.Logger) *Server {
	return &Server{
		resolver: resolver,
		expander: expander,
		logger:   logger,
		tracer:   otel.Tracer("jpulse/view"),
	}
}

// ServeFile resolves req.Path through the override chain and writes the
// response. Expandable documents are rendered against baseContext; all other
// files are streamed as-is. Unresolvable paths 404, unreadable files 500.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, req *Request, baseContext map[string]any) {
	rel := strings.TrimPrefix(req.Path, "/")
	resolved, err := s.resolver.Resolve(rel)
	if err != nil {
		var notFound *pathres.NotFoundError
		if errors.As(err, &notFound) || errors.Is(err, pathres.ErrEmptyPath) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("File resolution failed", "path", rel, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data, err := os.ReadFile(resolved.AbsPath)
	if err != nil {
		s.logger.Error("Failed to read resolved file", "path", resolved.AbsPath, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ContentTypeFor(resolved.AbsPath))
	if !Expandable(resolved.AbsPath) {
		_, _ = w.Write(data)
		return
	}

	out, err := s.ExpandHandlebars(r.Context(), req, string(data), baseContext)
	if err != nil {
		s.logger.Error("Template expansion failed", "path", rel, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(out))
}

// ServeConcat concatenates every layer's copy of rel in framework, site,
// plugin order. This backs append-mode assets: a site's extra CSS rules load
// after the framework baseline instead of replacing it.
func (s *Server) ServeConcat(w http.ResponseWriter, r *http.Request, rel string) {
	rel = strings.TrimPrefix(rel, "/")
	layers := s.resolver.CollectAll(rel)
	if len(layers) == 0 {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", ContentTypeFor(rel))
	for _, layer := range layers {
		data, err := os.ReadFile(layer.AbsPath)
		if err != nil {
			s.logger.Error("Failed to read concat layer", "path", layer.AbsPath, "error", err)
			continue
		}
		_, _ = w.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			_, _ = w.Write([]byte{'\n'})
		}
	}
}
