package dex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wildtale-io/wildtale/pkg/protocol"
)

func dexServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			*hits++
		}
		var id int
		if _, err := fmt.Sscanf(r.URL.Path, "/api/species/%d", &id); err != nil {
			http.NotFound(w, r)
			return
		}
		if id > 1000 {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(Species{
			ID:         id,
			Name:       fmt.Sprintf("species-%d", id),
			Types:      []string{"water"},
			BaseHP:     50,
			BaseAttack: 40,
			FlavorText: "Dwells in quiet streams.",
		})
	}))
}

func TestSpeciesLookup(t *testing.T) {
	srv := dexServer(t, nil)
	defer srv.Close()

	d := New(srv.URL)
	sp, err := d.Species(context.Background(), 7)
	if err != nil {
		t.Fatalf("Species: %v", err)
	}
	if sp.ID != 7 || sp.Name != "species-7" {
		t.Errorf("record = %+v", sp)
	}
	if len(sp.Types) != 1 || sp.Types[0] != "water" {
		t.Errorf("types = %v", sp.Types)
	}
}

func TestSpeciesCacheHit(t *testing.T) {
	hits := 0
	srv := dexServer(t, &hits)
	defer srv.Close()

	d := New(srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := d.Species(context.Background(), 7); err != nil {
			t.Fatalf("Species: %v", err)
		}
	}
	if hits != 1 {
		t.Errorf("server saw %d requests, want 1 (cache misses)", hits)
	}
}

func TestSpeciesNotFound(t *testing.T) {
	srv := dexServer(t, nil)
	defer srv.Close()

	d := New(srv.URL)
	if _, err := d.Species(context.Background(), 5000); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestSpeciesInvalidID(t *testing.T) {
	d := New("http://unused")
	if _, err := d.Species(context.Background(), 0); err == nil {
		t.Fatal("expected error for a non-positive id")
	}
}

func TestCacheEviction(t *testing.T) {
	srv := dexServer(t, nil)
	defer srv.Close()

	d := New(srv.URL, WithCacheSize(2))
	for id := 1; id <= 4; id++ {
		if _, err := d.Species(context.Background(), id); err != nil {
			t.Fatalf("Species(%d): %v", id, err)
		}
	}
	if got := d.Cached(); got != 2 {
		t.Errorf("cache holds %d entries, want the bound of 2", got)
	}
}

func TestSweep(t *testing.T) {
	srv := dexServer(t, nil)
	defer srv.Close()

	d := New(srv.URL, WithCacheTTL(time.Nanosecond))
	if _, err := d.Species(context.Background(), 1); err != nil {
		t.Fatalf("Species: %v", err)
	}
	time.Sleep(time.Millisecond)

	if removed := d.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d entries, want 1", removed)
	}
	if d.Cached() != 0 {
		t.Error("expired entry survived the sweep")
	}
}

func TestHinter(t *testing.T) {
	srv := dexServer(t, nil)
	defer srv.Close()

	h := NewHinter(New(srv.URL), nil)
	team := []protocol.Combatant{
		{Name: "Brook", SpeciesID: 7, MaxHealth: 100, CurrentHealth: 100, Types: []string{"water"}},
		{Name: "NoDex", MaxHealth: 80, CurrentHealth: 80, Types: []string{"normal"}},
	}

	hints := h.Hints(context.Background(), team)
	if len(hints) != 1 {
		t.Fatalf("got %d hints, want 1 (only the member with a species id)", len(hints))
	}
	if want := "Brook is a species-7 (water type): Dwells in quiet streams."; hints[0] != want {
		t.Errorf("hint = %q, want %q", hints[0], want)
	}
}

func TestHinterToleratesLookupFailure(t *testing.T) {
	srv := dexServer(t, nil)
	defer srv.Close()

	h := NewHinter(New(srv.URL), nil)
	team := []protocol.Combatant{
		{Name: "Ghost", SpeciesID: 5000, MaxHealth: 10, CurrentHealth: 10},
		{Name: "Brook", SpeciesID: 7, MaxHealth: 100, CurrentHealth: 100},
	}

	hints := h.Hints(context.Background(), team)
	if len(hints) != 1 {
		t.Fatalf("got %d hints, want the surviving lookup only", len(hints))
	}
}
