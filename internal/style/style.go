// Package style loads narrative style packs from disk. A pack is a
// directory {dir}/{slug}/STYLE.md plus an optional config.json; packs
// shape the designers' and narrator's prose, never the mechanics.
package style

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Pack is one loaded style pack.
type Pack struct {
	Slug        string            `json:"slug"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	AlwaysLoad  bool              `json:"always_load"`
	Content     string            `json:"-"` // full STYLE.md content
	Config      map[string]string `json:"config,omitempty"`
	Dir         string            `json:"-"`
}

// Library holds the packs loaded from one directory.
type Library struct {
	packs []*Pack
}

// Load scans dir and loads every pack with a STYLE.md. A missing
// directory yields an empty library, not an error.
func Load(dir string) *Library {
	lib := &Library{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return lib
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		slug := e.Name()
		if pack := loadPack(slug, filepath.Join(dir, slug)); pack != nil {
			lib.packs = append(lib.packs, pack)
		}
	}
	return lib
}

func loadPack(slug, dir string) *Pack {
	content, err := os.ReadFile(filepath.Join(dir, "STYLE.md"))
	if err != nil {
		return nil // no STYLE.md — skip
	}

	pack := &Pack{
		Slug:    slug,
		Content: string(content),
		Dir:     dir,
	}

	// Metadata comes from frontmatter-style lines: the first heading is
	// the name, an always_load comment marks it for every session.
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") && pack.Name == "" {
			pack.Name = strings.TrimPrefix(line, "# ")
		}
		if strings.Contains(line, "always_load: true") {
			pack.AlwaysLoad = true
		}
	}
	if pack.Name == "" {
		pack.Name = slug
	}
	pack.Description = extractDescription(string(content))

	if data, err := os.ReadFile(filepath.Join(dir, "config.json")); err == nil {
		json.Unmarshal(data, &pack.Config)
	}

	return pack
}

// extractDescription returns the first body paragraph.
func extractDescription(content string) string {
	var desc []string
	inBody := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "<!--") {
			inBody = true
			continue
		}
		if !inBody {
			continue
		}
		if trimmed == "" && len(desc) > 0 {
			break
		}
		if trimmed != "" {
			desc = append(desc, trimmed)
		}
	}
	return strings.Join(desc, " ")
}

// All returns every loaded pack.
func (l *Library) All() []*Pack {
	return l.packs
}

// Get returns a pack by slug.
func (l *Library) Get(slug string) (*Pack, bool) {
	for _, p := range l.packs {
		if p.Slug == slug {
			return p, true
		}
	}
	return nil, false
}

// neutralNotes is the builtin fallback tone used when no pack matches.
const neutralNotes = "Warm, adventurous second-person prose. Keep stakes" +
	" clear and momentum forward; never mention game mechanics."

// Resolve maps a slug to a pack name and prompt notes, satisfying the
// session service's style contract. Unknown or empty slugs resolve to
// the builtin neutral tone plus any always-load packs.
func (l *Library) Resolve(slug string) (string, string) {
	if p, ok := l.Get(slug); ok {
		return p.Name, l.notesFor(p)
	}
	return "", l.notesFor(nil)
}

// notesFor builds the prompt section: the selected pack's content first,
// then every always-load pack not already included. With nothing to say
// it falls back to the neutral tone.
func (l *Library) notesFor(selected *Pack) string {
	var parts []string
	if selected != nil {
		parts = append(parts, strings.TrimSpace(selected.Content))
	}
	for _, p := range l.packs {
		if p.AlwaysLoad && (selected == nil || p.Slug != selected.Slug) {
			parts = append(parts, fmt.Sprintf("### %s\n\n%s", p.Name, strings.TrimSpace(p.Content)))
		}
	}
	if len(parts) == 0 {
		return neutralNotes
	}
	return strings.Join(parts, "\n\n---\n\n")
}
