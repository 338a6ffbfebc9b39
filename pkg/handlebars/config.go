package handlebars

// Config holds all configuration options for the expansion engine.
type Config struct {
	// MaxIncludeDepth bounds recursive file inclusion. An include past this
	// depth renders an inline error marker instead of recursing further.
	MaxIncludeDepth int `json:"max_include_depth"`

	// CacheIncludes controls the include file cache. Disabled in tests to
	// keep them deterministic; correctness must not depend on it.
	CacheIncludes CacheConfig `json:"cache_includes"`

	// ContextFilter is the visibility rule applied to the expansion context
	// before every render.
	ContextFilter FilterRule `json:"context_filter"`

	// SmallWords are the words string.titlecase keeps lowercase mid-title.
	// The first and last words of the input are always capitalized.
	SmallWords []string `json:"titlecase_small_words"`
}

// CacheConfig configures the include cache.
type CacheConfig struct {
	Enabled bool `json:"enabled"`

	// TTLSeconds is how long a cached file stays valid. Zero means entries
	// never expire on their own (the fsnotify watcher still evicts them).
	TTLSeconds int `json:"ttl_sec"`

	// Watch enables filesystem-event eviction of cached entries.
	Watch bool `json:"watch"`
}

// DefaultConfig returns a Config with safe default values.
func DefaultConfig() *Config {
	return &Config{
		MaxIncludeDepth: 10,
		CacheIncludes: CacheConfig{
			Enabled:    true,
			TTLSeconds: 300,
			Watch:      false,
		},
		ContextFilter: FilterRule{},
		SmallWords: []string{
			"a", "an", "the",
			"and", "but", "or", "nor",
			"as", "at", "by", "for", "in", "of", "off", "on", "per", "to", "up", "via",
		},
	}
}
