// Package i18n provides the translation store behind the template engine's
// i18n helper. Translations live in one YAML bundle per language; nested
// keys are flattened to dotted form, so "nav: {home: Home}" is addressed as
// "nav.home". A site bundle loaded after the framework bundle overrides it
// key by key.
package i18n

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store holds translation tables keyed by language tag. All methods are
// concurrent-safe; loading happens at bootstrap, lookups at request time.
type Store struct {
	mu          sync.RWMutex
	defaultLang string
	bundles     map[string]map[string]string
	logger      *slog.Logger
}

// NewStore creates an empty store falling back to defaultLang.
func NewStore(defaultLang string, logger *slog.Logger) *Store {
	return &Store{
		defaultLang: defaultLang,
		bundles:     make(map[string]map[string]string),
		logger:      logger,
	}
}

// LoadFile merges one YAML bundle into the table for lang. Keys already
// present are overwritten, which is how site bundles override framework
// defaults: load the framework file first, the site file second.
func (s *Store) LoadFile(lang, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read i18n bundle %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse i18n bundle %s: %w", path, err)
	}

	flat := make(map[string]string)
	flatten("", raw, flat)

	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.bundles[lang]
	if !ok {
		table = make(map[string]string)
		s.bundles[lang] = table
	}
	for k, v := range flat {
		table[k] = v
	}
	s.logger.Debug("Loaded i18n bundle", "lang", lang, "path", path, "keys", len(flat))
	return nil
}

// flatten walks a parsed YAML tree, joining nested keys with dots.
func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Languages returns the loaded language tags.
func (s *Store) Languages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.bundles))
	for lang := range s.bundles {
		out = append(out, lang)
	}
	return out
}

// Translate looks key up for lang, falling back from the exact tag to its
// base language ("en-US" to "en") to the default language. An unknown key
// returns the key itself so missing translations stay visible on the page
// instead of blanking it. {name} placeholders are substituted from vars.
func (s *Store) Translate(lang, key string, vars map[string]string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, ok := s.lookup(lang, key)
	if !ok {
		return key
	}
	for name, value := range vars {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}

func (s *Store) lookup(lang, key string) (string, bool) {
	for _, candidate := range s.fallbackChain(lang) {
		if table, ok := s.bundles[candidate]; ok {
			if text, ok := table[key]; ok {
				return text, true
			}
		}
	}
	return "", false
}

func (s *Store) fallbackChain(lang string) []string {
	var chain []string
	if lang != "" {
		chain = append(chain, lang)
		if idx := strings.IndexByte(lang, '-'); idx > 0 {
			chain = append(chain, lang[:idx])
		}
	}
	if s.defaultLang != "" {
		chain = append(chain, s.defaultLang)
	}
	return chain
}
