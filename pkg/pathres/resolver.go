package pathres

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Origin identifies which layer of the override chain a file was found in.
type Origin string

const (
	OriginSite      Origin = "site"
	OriginPlugin    Origin = "plugin"
	OriginFramework Origin = "framework"
)

// PluginDir names one plugin and the directory it contributes files from.
// Plugins are consulted in registration order.
type PluginDir struct {
	Name string
	Dir  string
}

// Resolved is the result of a successful lookup. Plugin is only set when
// Origin is OriginPlugin.
type Resolved struct {
	RequestedPath string
	AbsPath       string
	Origin        Origin
	Plugin        string
}

// Entry is one file from a directory listing, keyed by its path relative to
// the layer root.
type Entry struct {
	RelPath string
	Resolved
}

// ErrEmptyPath is returned when a lookup is attempted with an empty relative
// path. Resolving "" would silently hit a directory, so it fails up front.
var ErrEmptyPath = errors.New("pathres: empty relative path")

// NotFoundError reports a path that exists in none of the configured layers.
type NotFoundError struct {
	RequestedPath string
	Checked       []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pathres: %q not found (checked %s)", e.RequestedPath, strings.Join(e.Checked, ", "))
}

// Resolver locates files through the site > plugin > framework override
// chain. A site file shadows a plugin file of the same relative path, which
// in turn shadows the framework default. All methods are concurrent-safe;
// the resolver is immutable after construction.
type Resolver struct {
	siteDir      string
	plugins      []PluginDir
	frameworkDir string
	logger       *slog.Logger

	// stat is swappable so tests can observe which layers get probed.
	stat func(string) (os.FileInfo, error)
}

// New creates a Resolver over the given layer directories. siteDir may be
// empty when the deployment has no site overlay; plugins may be nil.
func New(siteDir string, plugins []PluginDir, frameworkDir string, logger *slog.Logger) *Resolver {
	return &Resolver{
		siteDir:      siteDir,
		plugins:      plugins,
		frameworkDir: frameworkDir,
		logger:       logger,
		stat:         os.Stat,
	}
}

// normalize cleans a relative path for comparison across platforms. An error
// is returned for empty input.
func normalize(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", ErrEmptyPath
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimPrefix(rel, "/")
	return rel, nil
}

// layers returns the probe order for Resolve: site first, then plugins in
// registration order, then the framework default.
func (r *Resolver) layers() []Resolved {
	var out []Resolved
	if r.siteDir != "" {
		out = append(out, Resolved{AbsPath: r.siteDir, Origin: OriginSite})
	}
	for _, p := range r.plugins {
		out = append(out, Resolved{AbsPath: p.Dir, Origin: OriginPlugin, Plugin: p.Name})
	}
	if r.frameworkDir != "" {
		out = append(out, Resolved{AbsPath: r.frameworkDir, Origin: OriginFramework})
	}
	return out
}

func (r *Resolver) fileAt(dir, rel string) (string, bool) {
	abs := filepath.Join(dir, filepath.FromSlash(rel))
	info, err := r.stat(abs)
	if err != nil || info.IsDir() {
		return "", false
	}
	return abs, true
}

// Resolve returns the highest-priority location of rel. The chain
// short-circuits: once the site copy is confirmed present, no lower layer is
// probed. A *NotFoundError naming every checked location is returned when the
// path exists nowhere.
func (r *Resolver) Resolve(rel string) (Resolved, error) {
	norm, err := normalize(rel)
	if err != nil {
		return Resolved{}, err
	}

	var checked []string
	for _, layer := range r.layers() {
		abs, ok := r.fileAt(layer.AbsPath, norm)
		if ok {
			return Resolved{
				RequestedPath: rel,
				AbsPath:       abs,
				Origin:        layer.Origin,
				Plugin:        layer.Plugin,
			}, nil
		}
		checked = append(checked, layer.AbsPath)
	}
	r.logger.Debug("Path not found in any layer", "path", rel, "checked", checked)
	return Resolved{}, &NotFoundError{RequestedPath: rel, Checked: checked}
}

// CollectAll returns every location that provides rel, in append order:
// framework first, then the site override, then plugin copies. Callers
// concatenate the contents so the framework defines defaults and the
// site/plugins augment or override later-loaded rules.
func (r *Resolver) CollectAll(rel string) []Resolved {
	norm, err := normalize(rel)
	if err != nil {
		return nil
	}

	var out []Resolved
	if r.frameworkDir != "" {
		if abs, ok := r.fileAt(r.frameworkDir, norm); ok {
			out = append(out, Resolved{RequestedPath: rel, AbsPath: abs, Origin: OriginFramework})
		}
	}
	if r.siteDir != "" {
		if abs, ok := r.fileAt(r.siteDir, norm); ok {
			out = append(out, Resolved{RequestedPath: rel, AbsPath: abs, Origin: OriginSite})
		}
	}
	for _, p := range r.plugins {
		if abs, ok := r.fileAt(p.Dir, norm); ok {
			out = append(out, Resolved{RequestedPath: rel, AbsPath: abs, Origin: OriginPlugin, Plugin: p.Name})
		}
	}
	return out
}

// ListDir lists the files directly under relDir across all layers, matched
// against pattern (filepath.Match syntax, applied to the file name).
// Duplicate relative names are deduplicated with site taking precedence over
// plugins, and plugins over the framework. Names containing a
// parent-directory segment are excluded.
func (r *Resolver) ListDir(relDir, pattern string) ([]Entry, error) {
	norm := ""
	if strings.TrimSpace(relDir) != "" {
		var err error
		norm, err = normalize(relDir)
		if err != nil {
			return nil, err
		}
	}

	merged := make(map[string]Entry)

	// Walk lowest priority first so higher layers overwrite on collision.
	scan := func(dir string, origin Origin, plugin string) {
		base := filepath.Join(dir, filepath.FromSlash(norm))
		entries, err := os.ReadDir(base)
		if err != nil {
			return
		}
		for _, de := range entries {
			if de.IsDir() {
				continue
			}
			name := de.Name()
			if strings.Contains(name, "..") {
				continue
			}
			if pattern != "" {
				if ok, err := filepath.Match(pattern, name); err != nil || !ok {
					continue
				}
			}
			relPath := name
			if norm != "" {
				relPath = norm + "/" + name
			}
			merged[relPath] = Entry{
				RelPath: relPath,
				Resolved: Resolved{
					RequestedPath: relPath,
					AbsPath:       filepath.Join(base, name),
					Origin:        origin,
					Plugin:        plugin,
				},
			}
		}
	}

	if r.frameworkDir != "" {
		scan(r.frameworkDir, OriginFramework, "")
	}
	for _, p := range r.plugins {
		scan(p.Dir, OriginPlugin, p.Name)
	}
	if r.siteDir != "" {
		scan(r.siteDir, OriginSite, "")
	}

	out := make([]Entry, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}
