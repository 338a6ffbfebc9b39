package main

import (
	"database/sql"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/jpulse-net/jpulse/pkg/handlebars"
	"github.com/jpulse-net/jpulse/pkg/i18n"
	"github.com/jpulse-net/jpulse/pkg/pathres"
	"github.com/jpulse-net/jpulse/pkg/view"
)

type Server struct {
	cm          *ConfigManager
	db          *sql.DB
	logger      *slog.Logger
	engine      *handlebars.Engine
	store       *i18n.Store
	views       *view.Server
	authAPI     *AuthAPI
	templateAPI *TemplateAPI
	serverAPI   *ServerAPI
	siteMux     *http.ServeMux
	apiMux      *http.ServeMux
}

func NewServer(cm *ConfigManager, logger *slog.Logger, db *sql.DB, engine *handlebars.Engine, store *i18n.Store, resolver *pathres.Resolver, views *view.Server, actionChan chan string) *Server {

	authAPI := NewAuthAPI(db, logger)
	templateAPI := NewTemplateAPI(engine, views, resolver, cm, logger)
	serverAPI := NewServerAPI(cm, actionChan, logger)

	server := &Server{
		cm:          cm,
		db:          db,
		logger:      logger,
		engine:      engine,
		store:       store,
		views:       views,
		authAPI:     authAPI,
		templateAPI: templateAPI,
		serverAPI:   serverAPI,
		siteMux:     http.NewServeMux(),
		apiMux:      http.NewServeMux(),
	}

	apiMux := http.NewServeMux()
	server.authAPI.RegisterRoutes(apiMux)
	server.templateAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)

	// Make sure api functions must pass through authentication first
	authedAPI := server.authAPI.Authenticate(apiMux)
	// ... except for the health check, which is unauthed so something like docker can use it
	server.apiMux.HandleFunc("/api/health", server.serverAPI.handleHealthCheck)
	server.apiMux.Handle("/api/", authedAPI)

	server.siteMux.HandleFunc("/", server.handleSite)

	return server
}

// handleSite serves one site page or asset through the override chain.
func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	config := s.cm.Get()

	rel := r.URL.Path
	if rel == "/" || strings.HasSuffix(rel, "/") {
		rel += "index.shtml"
	}

	if slices.Contains(config.Server.AppendAssets, strings.TrimPrefix(rel, "/")) {
		s.views.ServeConcat(w, r, rel)
		return
	}

	req := view.NewRequest(r, false, s.requestLang(r, config.Server.DefaultLang))
	req.Path = rel

	s.logger.Debug("Serving site request", "path", rel, "lang", req.Lang, "remote_addr", s.clientIP(r))
	s.views.ServeFile(w, r, req, s.cm.ContextMap())
}

// requestLang picks the response language: explicit lang query parameter
// first, then the first Accept-Language tag, then the configured default.
func (s *Server) requestLang(r *http.Request, defaultLang string) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		first := strings.Split(header, ",")[0]
		if lang := strings.TrimSpace(strings.Split(first, ";")[0]); lang != "" && lang != "*" {
			return lang
		}
	}
	return defaultLang
}

// clientIP returns the requester's address, honoring X-Forwarded-For only
// when the direct peer is a configured trusted proxy.
func (s *Server) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if s.cm.IsTrusted(host) {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			parts := strings.Split(fwd, ",")
			return strings.TrimSpace(parts[len(parts)-1])
		}
	}
	return host
}
