package style

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePack(t *testing.T, dir, slug, content string) {
	t.Helper()
	packDir := filepath.Join(dir, slug)
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(packDir, "STYLE.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "noir", "# Hardboiled Noir\n\nShort sentences. Rain on the window.\n\nMore detail here.\n")
	writePack(t, dir, "fairy", "# Fairy Tale\n<!-- always_load: true -->\n\nOnce upon a time cadence.\n")

	lib := Load(dir)
	if got := len(lib.All()); got != 2 {
		t.Fatalf("expected 2 packs, got %d", got)
	}

	noir, ok := lib.Get("noir")
	if !ok {
		t.Fatal("noir pack not found")
	}
	if noir.Name != "Hardboiled Noir" {
		t.Errorf("unexpected name %q", noir.Name)
	}
	if noir.Description != "Short sentences. Rain on the window." {
		t.Errorf("unexpected description %q", noir.Description)
	}
	if noir.AlwaysLoad {
		t.Error("noir should not be always-load")
	}

	fairy, _ := lib.Get("fairy")
	if !fairy.AlwaysLoad {
		t.Error("fairy should be always-load")
	}
}

func TestLoadMissingDir(t *testing.T) {
	lib := Load(filepath.Join(t.TempDir(), "nope"))
	if len(lib.All()) != 0 {
		t.Error("expected empty library")
	}
}

func TestLoadSkipsDirWithoutStyleFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	writePack(t, dir, "noir", "# Noir\n\nBody.\n")

	lib := Load(dir)
	if len(lib.All()) != 1 {
		t.Fatalf("expected 1 pack, got %d", len(lib.All()))
	}
}

func TestNameFallsBackToSlug(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "bare", "No heading here, just prose.\n")

	pack, _ := Load(dir).Get("bare")
	if pack.Name != "bare" {
		t.Errorf("expected slug fallback, got %q", pack.Name)
	}
}

func TestConfig(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "noir", "# Noir\n\nBody.\n")
	cfg := `{"pacing": "slow", "violence": "implied"}`
	if err := os.WriteFile(filepath.Join(dir, "noir", "config.json"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	pack, _ := Load(dir).Get("noir")
	if pack.Config["pacing"] != "slow" {
		t.Errorf("unexpected config %v", pack.Config)
	}
}

func TestResolveKnownSlug(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "noir", "# Hardboiled Noir\n\nShort sentences.\n")

	name, notes := Load(dir).Resolve("noir")
	if name != "Hardboiled Noir" {
		t.Errorf("unexpected name %q", name)
	}
	if !strings.Contains(notes, "Short sentences.") {
		t.Errorf("notes missing pack content: %q", notes)
	}
}

func TestResolveUnknownSlugFallsBackToNeutral(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "noir", "# Noir\n\nBody.\n")

	name, notes := Load(dir).Resolve("western")
	if name != "" {
		t.Errorf("expected empty name, got %q", name)
	}
	if notes != neutralNotes {
		t.Errorf("expected neutral notes, got %q", notes)
	}
}

func TestResolveIncludesAlwaysLoadPacks(t *testing.T) {
	dir := t.TempDir()
	writePack(t, dir, "noir", "# Noir\n\nRain on the window.\n")
	writePack(t, dir, "house", "# House Rules\n<!-- always_load: true -->\n\nNever kill a companion off-screen.\n")

	_, notes := Load(dir).Resolve("noir")
	if !strings.Contains(notes, "Rain on the window.") {
		t.Error("selected pack content missing")
	}
	if !strings.Contains(notes, "Never kill a companion off-screen.") {
		t.Error("always-load pack content missing")
	}

	// Unknown slug still carries always-load packs instead of neutral.
	_, notes = Load(dir).Resolve("")
	if !strings.Contains(notes, "House Rules") {
		t.Error("always-load pack missing for empty slug")
	}
	if strings.Contains(notes, "Rain on the window.") {
		t.Error("non-selected pack should not appear")
	}
}
