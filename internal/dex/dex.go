// Package dex is the read-only client for the species reference
// service. Everything here feeds prompt flavor; mechanics never depend
// on a dex lookup.
package dex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	defaultCacheSize = 128
	defaultCacheTTL  = time.Hour
	requestTimeout   = 30 * time.Second
)

// Species is one dex record.
type Species struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Types      []string `json:"types"`
	BaseHP     int      `json:"base_hp"`
	BaseAttack int      `json:"base_attack"`
	FlavorText string   `json:"flavor_text,omitempty"`
}

// Client looks species up by numeric id, with a small bounded cache in
// front of the REST service.
type Client struct {
	client  *http.Client
	baseURL string

	mu        sync.Mutex
	cache     map[int]cacheEntry
	cacheSize int
	ttl       time.Duration
}

type cacheEntry struct {
	species Species
	stored  time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Client) { d.client = c }
}

// WithCacheSize bounds the cache entry count.
func WithCacheSize(n int) Option {
	return func(d *Client) {
		if n > 0 {
			d.cacheSize = n
		}
	}
}

// WithCacheTTL bounds how long a cached record stays fresh.
func WithCacheTTL(ttl time.Duration) Option {
	return func(d *Client) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// New creates a dex client against the given base URL.
func New(baseURL string, opts ...Option) *Client {
	d := &Client{
		client:    &http.Client{Timeout: requestTimeout},
		baseURL:   baseURL,
		cache:     make(map[int]cacheEntry),
		cacheSize: defaultCacheSize,
		ttl:       defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Species fetches one record by id, serving fresh cache hits without a
// network round trip.
func (d *Client) Species(ctx context.Context, id int) (*Species, error) {
	if id <= 0 {
		return nil, fmt.Errorf("dex: species id %d is not positive", id)
	}

	d.mu.Lock()
	if e, ok := d.cache[id]; ok && time.Since(e.stored) < d.ttl {
		sp := e.species
		d.mu.Unlock()
		return &sp, nil
	}
	d.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/species/%d", d.baseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("dex: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dex: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("dex: species %d not found", id)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("dex: api error (status %d): %s", resp.StatusCode, string(body))
	}

	var sp Species
	if err := json.NewDecoder(resp.Body).Decode(&sp); err != nil {
		return nil, fmt.Errorf("dex: decode response: %w", err)
	}

	d.store(id, sp)
	return &sp, nil
}

// store caches a record, evicting the oldest entry when full.
func (d *Client) store(id int, sp Species) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.cache) >= d.cacheSize {
		oldest, oldestAt := 0, time.Time{}
		for k, e := range d.cache {
			if oldestAt.IsZero() || e.stored.Before(oldestAt) {
				oldest, oldestAt = k, e.stored
			}
		}
		delete(d.cache, oldest)
	}
	d.cache[id] = cacheEntry{species: sp, stored: time.Now()}
}

// Sweep drops expired cache entries and reports how many were removed.
// The scheduler calls this periodically.
func (d *Client) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, e := range d.cache {
		if time.Since(e.stored) >= d.ttl {
			delete(d.cache, id)
			removed++
		}
	}
	return removed
}

// Cached reports the current cache entry count.
func (d *Client) Cached() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}
