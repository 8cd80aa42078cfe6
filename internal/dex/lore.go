package dex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

const (
	maxLoreSize  = 50 * 1024 // 50KB of extracted text
	loreTimeout  = 30 * time.Second
	maxLoreHints = 4
	maxHintLen   = 200
)

// LoreFetcher pulls an article and extracts its readable text for use
// as prompt lore.
type LoreFetcher struct {
	client *http.Client
}

// NewLoreFetcher creates a fetcher with a bounded-timeout client.
func NewLoreFetcher() *LoreFetcher {
	return &LoreFetcher{client: &http.Client{Timeout: loreTimeout}}
}

// Fetch retrieves the URL and returns its readable text, size-capped.
// Non-HTML responses come back as raw text.
func (f *LoreFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("dex: invalid lore url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("dex: create request: %w", err)
	}
	req.Header.Set("User-Agent", "wildtale/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("dex: fetch lore: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dex: fetch lore: HTTP %d", resp.StatusCode)
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(maxLoreSize)))
		return string(body), nil
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("dex: parse lore: %w", err)
	}

	var textBuf bytes.Buffer
	if err := article.RenderText(&textBuf); err != nil {
		return "", fmt.Errorf("dex: render lore: %w", err)
	}

	text := textBuf.String()
	if len(text) > maxLoreSize {
		text = text[:maxLoreSize]
	}
	return text, nil
}

// Hinter derives prompt lore hints from the team's dex records and,
// optionally, from configured lore articles. It satisfies the session
// service's lore contract; lookups are best-effort and failures only
// cost a hint.
type Hinter struct {
	dex     *Client
	fetcher *LoreFetcher
	logger  *slog.Logger

	articleURLs []string
	mu          sync.Mutex
	articles    map[string]string // url → excerpt, fetched once
}

// HinterOption configures a Hinter.
type HinterOption func(*Hinter)

// WithLoreArticles adds article URLs whose extracted text supplements
// the species hints. Each article is fetched once and its excerpt
// cached for the hinter's lifetime.
func WithLoreArticles(urls ...string) HinterOption {
	return func(h *Hinter) {
		h.articleURLs = append(h.articleURLs, urls...)
	}
}

// NewHinter creates a hinter over a dex client.
func NewHinter(dex *Client, logger *slog.Logger, opts ...HinterOption) *Hinter {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hinter{
		dex:      dex,
		fetcher:  NewLoreFetcher(),
		logger:   logger,
		articles: make(map[string]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hints returns one flavor line per team member with a species id,
// followed by excerpts from any configured lore articles, capped at
// maxLoreHints overall.
func (h *Hinter) Hints(ctx context.Context, team []protocol.Combatant) []string {
	var hints []string
	for _, c := range team {
		if len(hints) == maxLoreHints {
			break
		}
		if c.SpeciesID <= 0 {
			continue
		}
		sp, err := h.dex.Species(ctx, c.SpeciesID)
		if err != nil {
			h.logger.Debug("dex lookup failed", "species", c.SpeciesID, "error", err)
			continue
		}
		hint := fmt.Sprintf("%s is a %s (%s type)", c.Name, sp.Name, strings.Join(sp.Types, "/"))
		if sp.FlavorText != "" {
			flavor := sp.FlavorText
			if len(flavor) > maxHintLen {
				flavor = flavor[:maxHintLen]
			}
			hint += ": " + flavor
		}
		hints = append(hints, hint)
	}
	for _, u := range h.articleURLs {
		if len(hints) == maxLoreHints {
			break
		}
		if excerpt, ok := h.articleHint(ctx, u); ok {
			hints = append(hints, excerpt)
		}
	}
	return hints
}

// articleHint returns the cached excerpt for rawURL, fetching and
// extracting it on first use. Failures are not cached so a flaky
// source gets retried on the next session.
func (h *Hinter) articleHint(ctx context.Context, rawURL string) (string, bool) {
	h.mu.Lock()
	excerpt, ok := h.articles[rawURL]
	h.mu.Unlock()
	if ok {
		return excerpt, excerpt != ""
	}

	text, err := h.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		h.logger.Debug("lore fetch failed", "url", rawURL, "error", err)
		return "", false
	}
	excerpt = loreExcerpt(text)

	h.mu.Lock()
	h.articles[rawURL] = excerpt
	h.mu.Unlock()
	return excerpt, excerpt != ""
}

// loreExcerpt takes the first non-empty line of extracted text, capped
// at hint length.
func loreExcerpt(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > maxHintLen {
			line = line[:maxHintLen]
		}
		return line
	}
	return ""
}
