package handlebars

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CacheStats is a snapshot of include-cache counters for the admin API.
type CacheStats struct {
	Enabled bool `json:"enabled"`
	Entries int  `json:"entries"`
	Hits    int  `json:"hits"`
	Misses  int  `json:"misses"`
}

type cacheEntry struct {
	content  string
	loadedAt time.Time
}

// IncludeCache caches the raw content of included files, keyed by resolved
// absolute path. It is a pure performance layer: expansion behaves
// identically with it disabled, which is how the tests run. Entries expire
// on a TTL and, when watching is enabled, are evicted when fsnotify reports
// a write or removal.
type IncludeCache struct {
	mu      sync.Mutex
	cfg     CacheConfig
	entries map[string]cacheEntry
	hits    int
	misses  int
	watcher *fsnotify.Watcher
	done    chan struct{}
	logger  *slog.Logger
}

func NewIncludeCache(cfg CacheConfig, logger *slog.Logger) *IncludeCache {
	c := &IncludeCache{
		cfg:     cfg,
		entries: make(map[string]cacheEntry),
		logger:  logger,
	}
	if cfg.Enabled && cfg.Watch {
		c.startWatcher()
	}
	return c
}

// ReadFile returns the content of abs, from cache when possible.
func (c *IncludeCache) ReadFile(abs string) (string, error) {
	c.mu.Lock()
	if c.cfg.Enabled {
		if entry, ok := c.entries[abs]; ok && !c.expired(entry) {
			c.hits++
			c.mu.Unlock()
			return entry.content, nil
		}
		c.misses++
	}
	c.mu.Unlock()

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("failed to read include %s: %w", abs, err)
	}
	content := string(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Enabled {
		c.entries[abs] = cacheEntry{content: content, loadedAt: time.Now()}
		if c.watcher != nil {
			if err := c.watcher.Add(abs); err != nil {
				c.logger.Debug("Failed to watch include file", "path", abs, "error", err)
			}
		}
	}
	return content, nil
}

func (c *IncludeCache) expired(entry cacheEntry) bool {
	if c.cfg.TTLSeconds <= 0 {
		return false
	}
	return time.Since(entry.loadedAt) > time.Duration(c.cfg.TTLSeconds)*time.Second
}

// Flush drops every cached entry.
func (c *IncludeCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Stats returns a snapshot of the cache counters.
func (c *IncludeCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Enabled: c.cfg.Enabled,
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// Reconfigure swaps the cache configuration, flushing all entries and
// starting or stopping the watcher as needed.
func (c *IncludeCache) Reconfigure(cfg CacheConfig) {
	c.mu.Lock()
	c.cfg = cfg
	c.entries = make(map[string]cacheEntry)
	needWatcher := cfg.Enabled && cfg.Watch
	haveWatcher := c.watcher != nil
	c.mu.Unlock()

	if needWatcher && !haveWatcher {
		c.startWatcher()
	} else if !needWatcher && haveWatcher {
		c.stopWatcher()
	}
}

// Close stops the watcher goroutine, if one is running.
func (c *IncludeCache) Close() error {
	c.stopWatcher()
	return nil
}

func (c *IncludeCache) startWatcher() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.logger.Warn("Include cache watcher unavailable, falling back to TTL only", "error", err)
		return
	}
	done := make(chan struct{})

	c.mu.Lock()
	c.watcher = watcher
	c.done = done
	c.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					c.mu.Lock()
					delete(c.entries, event.Name)
					c.mu.Unlock()
					c.logger.Debug("Evicted changed include from cache", "path", event.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Debug("Include watcher error", "error", err)
			case <-done:
				return
			}
		}
	}()
}

func (c *IncludeCache) stopWatcher() {
	c.mu.Lock()
	watcher := c.watcher
	done := c.done
	c.watcher = nil
	c.done = nil
	c.mu.Unlock()

	if watcher != nil {
		close(done)
		_ = watcher.Close()
	}
}
