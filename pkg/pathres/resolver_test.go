package pathres

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupLayers creates a site, one plugin and a framework directory and
// returns a resolver over them.
func setupLayers(t *testing.T) (*Resolver, string, string, string) {
	t.Helper()
	root := t.TempDir()
	site := filepath.Join(root, "site")
	plugin := filepath.Join(root, "plugin")
	framework := filepath.Join(root, "framework")
	for _, d := range []string{site, plugin, framework} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("failed to create layer dir %s: %v", d, err)
		}
	}
	r := New(site, []PluginDir{{Name: "gallery", Dir: plugin}}, framework, testLogger())
	return r, site, plugin, framework
}

func writeLayerFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	abs := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatalf("failed to create parent dirs for %s: %v", abs, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", abs, err)
	}
}

func TestResolve_SiteOverridesFramework(t *testing.T) {
	r, site, _, framework := setupLayers(t)
	writeLayerFile(t, site, "view/home.shtml", "site version")
	writeLayerFile(t, framework, "view/home.shtml", "framework version")

	res, err := r.Resolve("view/home.shtml")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Origin != OriginSite {
		t.Errorf("expected site origin, got %q", res.Origin)
	}
	if !strings.HasPrefix(res.AbsPath, site) {
		t.Errorf("expected path under site dir, got %s", res.AbsPath)
	}
}

// TestResolve_ShortCircuit asserts that once the site copy is found, the
// plugin and framework layers are never probed.
func TestResolve_ShortCircuit(t *testing.T) {
	r, site, _, _ := setupLayers(t)
	writeLayerFile(t, site, "view/home.shtml", "site version")

	var probed []string
	realStat := r.stat
	r.stat = func(path string) (os.FileInfo, error) {
		probed = append(probed, path)
		return realStat(path)
	}

	if _, err := r.Resolve("view/home.shtml"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(probed) != 1 {
		t.Fatalf("expected exactly one stat call, got %d: %v", len(probed), probed)
	}
	if !strings.HasPrefix(probed[0], site) {
		t.Errorf("expected the single probe to hit the site dir, got %s", probed[0])
	}
}

func TestResolve_PluginBeforeFramework(t *testing.T) {
	r, _, plugin, framework := setupLayers(t)
	writeLayerFile(t, plugin, "view/gallery.shtml", "plugin version")
	writeLayerFile(t, framework, "view/gallery.shtml", "framework version")

	res, err := r.Resolve("view/gallery.shtml")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Origin != OriginPlugin || res.Plugin != "gallery" {
		t.Errorf("expected plugin 'gallery' origin, got %q/%q", res.Origin, res.Plugin)
	}
}

func TestResolve_NotFoundNamesPath(t *testing.T) {
	r, _, _, _ := setupLayers(t)

	_, err := r.Resolve("view/missing.shtml")
	if err == nil {
		t.Fatal("expected an error for a missing path, got nil")
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *NotFoundError, got %T", err)
	}
	if !strings.Contains(err.Error(), "view/missing.shtml") {
		t.Errorf("error message should name the requested path: %v", err)
	}
	if len(nf.Checked) != 3 {
		t.Errorf("expected all three layers checked, got %v", nf.Checked)
	}
}

func TestResolve_EmptyPath(t *testing.T) {
	r, _, _, _ := setupLayers(t)
	if _, err := r.Resolve(""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("expected ErrEmptyPath, got %v", err)
	}
	if _, err := r.Resolve("   "); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("expected ErrEmptyPath for whitespace path, got %v", err)
	}
}

func TestResolve_DirectoryIsNotAFile(t *testing.T) {
	r, site, _, _ := setupLayers(t)
	if err := os.MkdirAll(filepath.Join(site, "view"), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if _, err := r.Resolve("view"); err == nil {
		t.Error("resolving a directory should fail, got nil error")
	}
}

func TestCollectAll_AppendOrder(t *testing.T) {
	r, site, plugin, framework := setupLayers(t)
	writeLayerFile(t, framework, "css/app.css", "framework")
	writeLayerFile(t, site, "css/app.css", "site")
	writeLayerFile(t, plugin, "css/app.css", "plugin")

	all := r.CollectAll("css/app.css")
	if len(all) != 3 {
		t.Fatalf("expected 3 results, got %d", len(all))
	}
	want := []Origin{OriginFramework, OriginSite, OriginPlugin}
	for i, o := range want {
		if all[i].Origin != o {
			t.Errorf("position %d: expected origin %q, got %q", i, o, all[i].Origin)
		}
	}
}

func TestCollectAll_SkipsMissingLayers(t *testing.T) {
	r, _, _, framework := setupLayers(t)
	writeLayerFile(t, framework, "js/app.js", "framework")

	all := r.CollectAll("js/app.js")
	if len(all) != 1 || all[0].Origin != OriginFramework {
		t.Errorf("expected only the framework copy, got %+v", all)
	}
}

func TestListDir_MergeAndPrecedence(t *testing.T) {
	r, site, plugin, framework := setupLayers(t)
	writeLayerFile(t, framework, "view/a.shtml", "framework a")
	writeLayerFile(t, framework, "view/b.shtml", "framework b")
	writeLayerFile(t, plugin, "view/b.shtml", "plugin b")
	writeLayerFile(t, plugin, "view/c.shtml", "plugin c")
	writeLayerFile(t, site, "view/c.shtml", "site c")

	entries, err := r.ListDir("view", "*.shtml")
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 deduplicated entries, got %d", len(entries))
	}

	byName := make(map[string]Entry)
	for _, e := range entries {
		byName[e.RelPath] = e
	}
	if byName["view/a.shtml"].Origin != OriginFramework {
		t.Errorf("a.shtml should come from the framework, got %q", byName["view/a.shtml"].Origin)
	}
	if byName["view/b.shtml"].Origin != OriginPlugin {
		t.Errorf("b.shtml should be shadowed by the plugin, got %q", byName["view/b.shtml"].Origin)
	}
	if byName["view/c.shtml"].Origin != OriginSite {
		t.Errorf("c.shtml should be shadowed by the site, got %q", byName["view/c.shtml"].Origin)
	}
}

func TestListDir_PatternFilter(t *testing.T) {
	r, _, _, framework := setupLayers(t)
	writeLayerFile(t, framework, "view/a.shtml", "a")
	writeLayerFile(t, framework, "view/a.css", "a")

	entries, err := r.ListDir("view", "*.css")
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].RelPath != "view/a.css" {
		t.Errorf("expected only the css entry, got %+v", entries)
	}
}
