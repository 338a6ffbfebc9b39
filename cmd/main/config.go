package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/jpulse-net/jpulse/pkg/handlebars"
)

// PluginConfig names one plugin and the directory it contributes files from.
// Order in the config file is consultation order.
type PluginConfig struct {
	Name string `json:"name"`
	Dir  string `json:"dir"`
}

// ServerConfig holds the configuration for the HTTP servers and the layer
// directories behind the override chain.
type ServerConfig struct {
	SiteAddr         string         `json:"site_addr"`
	ApiAddr          string         `json:"api_addr"`
	LogLevel         string         `json:"log_level"`
	TrustedProxies   []string       `json:"trusted_proxies"`
	DataDir          string         `json:"data_dir"`
	AuthDatabasePath string         `json:"auth_database_path"`
	SiteDir          string         `json:"site_dir"`
	FrameworkDir     string         `json:"framework_dir"`
	Plugins          []PluginConfig `json:"plugins"`
	I18nDir          string         `json:"i18n_dir"`
	DefaultLang      string         `json:"default_lang"`
	AppendAssets     []string       `json:"append_assets"`
}

// Config is the top-level configuration struct that aggregates all other configs.
// Site is a free-form tree the site author controls; it surfaces to templates
// under appConfig.site.
type Config struct {
	Server *ServerConfig      `json:"server_config"`
	Site   map[string]any     `json:"site_config"`
	Engine *handlebars.Config `json:"engine_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		SiteAddr:         ":8080",
		ApiAddr:          ":8081",
		LogLevel:         "info",
		TrustedProxies:   []string{},
		DataDir:          "./data",
		AuthDatabasePath: "./data/jpulse_auth.db?_journal_mode=WAL&_busy_timeout=5000",
		SiteDir:          "./data/site",
		FrameworkDir:     "./data/framework",
		Plugins:          []PluginConfig{},
		I18nDir:          "i18n",
		DefaultLang:      "en",
		AppendAssets:     []string{"css/site.css", "js/site.js"},
	}
}

// defaultEngineConfig is the stock engine configuration: appConfig is hidden
// from anonymous visitors except the site-author tree and the theme leaf.
func defaultEngineConfig() *handlebars.Config {
	cfg := handlebars.DefaultConfig()
	cfg.ContextFilter = handlebars.FilterRule{
		WithoutAuth: []string{"appConfig"},
		AlwaysAllow: []string{"appConfig.site", "appConfig.system.defaultLang"},
	}
	return cfg
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		Server: DefaultServerConfig(),
		Site:   map[string]any{"name": "jPulse Site"},
		Engine: defaultEngineConfig(),
	}

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Log a warning instead of failing, as the server can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ConfigManager handles thread-safe access to configuration and derived state
// (trusted proxies, the template-facing context tree).
type ConfigManager struct {
	config       *Config
	mu           sync.RWMutex
	trustedCIDRs []*net.IPNet
	trustedIPs   []net.IP
	configPath   string
	logger       *slog.Logger
	engine       *handlebars.Engine
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	cm := &ConfigManager{
		config:     cfg,
		configPath: path,
		// Log to stdout before the application-specific logger is set.
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})),
	}
	cm.refreshCache()

	return cm, nil
}

// SetEngine registers the template engine to receive config updates.
func (cm *ConfigManager) SetEngine(e *handlebars.Engine) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.engine = e
	if e != nil {
		e.SetConfig(cm.config.Engine)
	}
}

// SetLogger sets the logger. That's about it.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// Get returns a thread-safe copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return *cm.config
}

// Update updates the configuration, saves it to disk, and refreshes derived
// state. The engine picks up the new expansion config immediately; layer
// directory changes require a restart.
func (cm *ConfigManager) Update(newConfig Config) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	*cm.config = newConfig
	cm.refreshCache()

	if cm.engine != nil && cm.config.Engine != nil {
		cm.engine.SetConfig(cm.config.Engine)
	}

	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ContextMap builds the appConfig namespace templates see. The whole tree is
// exposed; the context filter decides per request what survives.
func (cm *ConfigManager) ContextMap() map[string]any {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	system := map[string]any{
		"siteAddr":    cm.config.Server.SiteAddr,
		"defaultLang": cm.config.Server.DefaultLang,
		"dataDir":     cm.config.Server.DataDir,
	}
	return map[string]any{
		"appConfig": map[string]any{
			"system": system,
			"site":   cm.config.Site,
		},
	}
}

// IsTrusted checks if an IP is in the trusted proxies list using the cache.
func (cm *ConfigManager) IsTrusted(ipAddr string) bool {
	parsedIP := net.ParseIP(ipAddr)
	if parsedIP == nil {
		return false
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, ipNet := range cm.trustedCIDRs {
		if ipNet.Contains(parsedIP) {
			return true
		}
	}

	for _, trustedIP := range cm.trustedIPs {
		if trustedIP.Equal(parsedIP) {
			return true
		}
	}

	return false
}

// refreshCache rebuilds the binary IP lists from the config strings.
func (cm *ConfigManager) refreshCache() {
	var cidrs []*net.IPNet
	var ips []net.IP

	for _, t := range cm.config.Server.TrustedProxies {
		if strings.Contains(t, "/") {
			_, ipNet, err := net.ParseCIDR(t)
			if err == nil {
				cidrs = append(cidrs, ipNet)
			} else {
				cm.logger.Warn("Failed to parse trusted proxy CIDR", "cidr", t, "error", err)
			}
		} else {
			ip := net.ParseIP(t)
			if ip != nil {
				ips = append(ips, ip)
			} else {
				cm.logger.Warn("Failed to parse trusted proxy IP", "ip", t)
			}
		}
	}
	cm.trustedCIDRs = cidrs
	cm.trustedIPs = ips
}
