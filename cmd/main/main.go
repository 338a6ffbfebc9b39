package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jpulse-net/jpulse/pkg/handlebars"
	"github.com/jpulse-net/jpulse/pkg/i18n"
	"github.com/jpulse-net/jpulse/pkg/pathres"
	"github.com/jpulse-net/jpulse/pkg/view"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	actionChan := make(chan string, 1)

	go func() {
		osSignalChan := make(chan os.Signal, 1)
		signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
		<-osSignalChan // Wait for a signal
		baseLogger.Info("OS signal received, initiating shutdown.")
		actionChan <- actionShutdown
	}()

	for {
		action, err := run(actionChan)
		if err != nil {
			baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
			break
		}

		if action == actionRestart {
			baseLogger.Info("--- Server Restarting ---")
			continue
		} else {
			break
		}
	}

	baseLogger.Info("jPulse has shut down.")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// run hosts both servers for one lifecycle and returns when an action
// (shutdown or restart) arrives from the API or an OS signal.
func run(actionChan chan string) (string, error) {

	cm, err := NewConfigManager("./config.json")
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	config := cm.Get()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(config.Server.LogLevel),
	}))
	cm.SetLogger(logger)
	logger.Info("Starting server cycle...", "version", Version)

	if err = os.MkdirAll(config.Server.DataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := initDB(config.Server.AuthDatabasePath)
	if err != nil {
		return "", fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = setupAuthSchema(db); err != nil {
		logger.Error("Failed to setup auth schema", "error", err)
	}

	var plugins []pathres.PluginDir
	for _, p := range config.Server.Plugins {
		plugins = append(plugins, pathres.PluginDir{Name: p.Name, Dir: p.Dir})
	}
	resolver := pathres.New(config.Server.SiteDir, plugins, config.Server.FrameworkDir, logger)

	engine := handlebars.NewEngine(logger, handlebars.NewRegistry(), resolver, config.Engine)
	cm.SetEngine(engine)

	store := i18n.NewStore(config.Server.DefaultLang, logger)
	if err = loadTranslations(store, resolver, config.Server.I18nDir, logger); err != nil {
		logger.Warn("Translation bundles failed to load", "error", err)
	}
	engine.SetTranslator(store)

	registerPluginHelpers(engine, config.Server.Plugins, logger)

	views := view.NewServer(resolver, engine, logger)

	server := NewServer(cm, logger, db, engine, store, resolver, views, actionChan)

	siteHttpServer := &http.Server{Addr: config.Server.SiteAddr, Handler: server.siteMux}
	apiHttpServer := &http.Server{Addr: config.Server.ApiAddr, Handler: server.apiMux}

	go func() {
		logger.Info("Starting api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Api server failed", "error", err)
		}
	}()

	go func() {
		logger.Info("Starting jPulse site server", "address", siteHttpServer.Addr)
		if err := siteHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Site server failed", "error", err)
		}
	}()

	action := <-actionChan // Block here until API or OS signal sends an action.

	logger.Info("Stopping servers for " + action + "...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = apiHttpServer.Shutdown(ctx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
	}
	if err = siteHttpServer.Shutdown(ctx); err != nil {
		logger.Error("Site server shutdown failed", "error", err)
	}
	logger.Info("HTTP servers stopped.")

	if err = engine.Close(); err != nil {
		logger.Error("Failed to close template engine", "error", err)
	}
	logger.Info("Closing database connection.")
	if err = db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	return action, nil
}

// loadTranslations discovers <lang>.yaml bundles across the override chain
// and merges every layer's copy, framework first so site keys win.
func loadTranslations(store *i18n.Store, resolver *pathres.Resolver, i18nDir string, logger *slog.Logger) error {
	entries, err := resolver.ListDir(i18nDir, "*.yaml")
	if err != nil {
		return err
	}

	for _, entry := range entries {
		lang := strings.TrimSuffix(filepath.Base(entry.RelPath), ".yaml")
		for _, layer := range resolver.CollectAll(entry.RelPath) {
			if err := store.LoadFile(lang, layer.AbsPath); err != nil {
				logger.Warn("Skipping unreadable i18n bundle", "lang", lang, "path", layer.AbsPath, "error", err)
			}
		}
	}
	logger.Info("Translations loaded", "languages", store.Languages())
	return nil
}

// registerPluginHelpers turns each plugin's helpers/*.tmpl files into
// template-defined helpers: calling the helper expands the file body with
// the call arguments exposed under the args namespace. Registration carries
// the plugin's name so listings show where a helper came from.
func registerPluginHelpers(engine *handlebars.Engine, plugins []PluginConfig, logger *slog.Logger) {
	for _, plugin := range plugins {
		dir := filepath.Join(plugin.Dir, "helpers")
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue // plugins without helpers are fine
		}
		for _, de := range entries {
			if de.IsDir() || !strings.HasSuffix(de.Name(), ".tmpl") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, de.Name()))
			if err != nil {
				logger.Warn("Skipping unreadable plugin helper", "plugin", plugin.Name, "file", de.Name(), "error", err)
				continue
			}
			name := strings.TrimSuffix(de.Name(), ".tmpl")
			source := string(data)
			engine.Registry().Register(name, func(ctx context.Context, st *handlebars.State, args []any) (any, error) {
				return st.With(map[string]any{"args": args}).Expand(ctx, source)
			}, plugin.Name)
			logger.Debug("Registered plugin helper", "plugin", plugin.Name, "helper", name)
		}
	}
}
