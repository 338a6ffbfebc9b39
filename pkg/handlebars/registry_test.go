package handlebars

import (
	"context"
	"testing"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("greet", func(_ context.Context, _ *State, _ []any) (any, error) {
		return "hi", nil
	}, "site")

	if !r.Has("greet") {
		t.Fatal("registered helper not found")
	}
	entry, ok := r.Get("greet")
	if !ok || entry.Kind != KindRegular || entry.Source != "site" {
		t.Errorf("unexpected entry metadata: %+v", entry)
	}
	if r.Has("missing") {
		t.Error("Has returned true for an unregistered name")
	}
}

// TestRegistry_OverrideThenRestore verifies the last-write-wins override
// round trip that site/plugin bootstrap relies on.
func TestRegistry_OverrideThenRestore(t *testing.T) {
	e := newTestEngine(t)
	r := e.Registry()

	original, ok := r.Get("string.uppercase")
	if !ok {
		t.Fatal("core helper string.uppercase should be registered")
	}

	if got := expand(t, e, `{{string.uppercase "x"}}`, nil); got != "X" {
		t.Fatalf("baseline helper behavior wrong: %q", got)
	}

	// Override from a "plugin".
	r.Register("string.uppercase", func(_ context.Context, _ *State, args []any) (any, error) {
		return "[" + argsText(args) + "]", nil
	}, "shouty-plugin")

	if got := expand(t, e, `{{string.uppercase "x"}}`, nil); got != "[x]" {
		t.Errorf("override not in effect: %q", got)
	}
	entry, _ := r.Get("string.uppercase")
	if entry.Source != "shouty-plugin" {
		t.Errorf("override should carry its source tag, got %q", entry.Source)
	}

	// Restore and verify behavior reverts exactly.
	r.Unregister("string.uppercase")
	if r.Has("string.uppercase") {
		t.Fatal("Unregister left the entry behind")
	}
	r.Register("string.uppercase", original.Fn, original.Source)

	if got := expand(t, e, `{{string.uppercase "x"}}`, nil); got != "X" {
		t.Errorf("restored helper behavior differs: %q", got)
	}
}

func TestRegistry_BlockOverridesRegular(t *testing.T) {
	r := NewRegistry()
	r.Register("thing", func(_ context.Context, _ *State, _ []any) (any, error) {
		return "regular", nil
	}, SourceCore)
	r.RegisterBlock("thing", func(_ context.Context, _ *State, _, _ string) (string, error) {
		return "block", nil
	}, "site")

	entry, ok := r.Get("thing")
	if !ok || entry.Kind != KindBlock {
		t.Errorf("re-registration should fully replace the entry, got %+v", entry)
	}
}

func TestRegistry_Entries(t *testing.T) {
	e := newTestEngine(t)
	entries := e.Registry().Entries()
	if len(entries) == 0 {
		t.Fatal("core helper set should not be empty")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Name > entries[i].Name {
			t.Fatalf("Entries not sorted: %q before %q", entries[i-1].Name, entries[i].Name)
		}
	}
	if got, want := e.Registry().Len(), len(entries); got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}
