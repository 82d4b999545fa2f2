package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

type upstreamFake struct {
	mu       sync.Mutex
	details  map[string]domain.ItemDetails
	calls    int
	listings int
}

func (f *upstreamFake) Listing(context.Context, domain.ListingQuery) ([]domain.CatalogItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings++
	return []domain.CatalogItem{{ID: "1", Name: "One"}}, nil
}

func (f *upstreamFake) Details(_ context.Context, id string) (*domain.ItemDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	d, ok := f.details[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrItemNotFound, "details", fmt.Errorf("app %s", id))
	}
	return &d, nil
}

type storeFake struct {
	rows    map[string]domain.ItemDetails
	getErr  error
	puts    int
	lastAge time.Duration
}

func (s *storeFake) GetDetails(_ context.Context, id string, maxAge time.Duration) (*domain.ItemDetails, error) {
	s.lastAge = maxAge
	if s.getErr != nil {
		return nil, s.getErr
	}
	d, ok := s.rows[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrItemNotFound, "get", errors.New(id))
	}
	return &d, nil
}

func (s *storeFake) PutDetails(_ context.Context, d domain.ItemDetails) error {
	if s.rows == nil {
		s.rows = map[string]domain.ItemDetails{}
	}
	s.rows[d.ID] = d
	s.puts++
	return nil
}

func TestDetailsServedFromMemoryAfterFirstFetch(t *testing.T) {
	up := &upstreamFake{details: map[string]domain.ItemDetails{"570": {ID: "570", Name: "Dota 2", Genres: []string{"Action"}}}}
	var hits, misses int
	gw := New(up, Options{Size: 4, TTL: time.Minute, Observer: func(tier string, hit bool) {
		if tier != TierMemory {
			return
		}
		if hit {
			hits++
		} else {
			misses++
		}
	}})

	for range 3 {
		d, err := gw.Details(context.Background(), "570")
		if err != nil {
			t.Fatalf("Details() error = %v", err)
		}
		if d.Name != "Dota 2" {
			t.Fatalf("unexpected name %q", d.Name)
		}
		d.Genres[0] = "mutated"
	}
	if up.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", up.calls)
	}
	if hits != 2 || misses != 1 {
		t.Fatalf("expected 2 hits and 1 miss, got %d/%d", hits, misses)
	}
	d, _ := gw.Details(context.Background(), "570")
	if d.Genres[0] != "Action" {
		t.Fatalf("cached entry was mutated through a returned copy: %v", d.Genres)
	}
}

func TestDetailsNotFoundIsNotCached(t *testing.T) {
	up := &upstreamFake{details: map[string]domain.ItemDetails{}}
	gw := New(up, Options{})

	for range 2 {
		_, err := gw.Details(context.Background(), "404")
		if !domain.IsKind(err, domain.ErrItemNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if up.calls != 2 {
		t.Fatalf("expected both lookups to reach upstream, got %d", up.calls)
	}
	if gw.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", gw.Len())
	}
}

func TestDetailsUsesStoreBeforeUpstream(t *testing.T) {
	up := &upstreamFake{details: map[string]domain.ItemDetails{}}
	store := &storeFake{rows: map[string]domain.ItemDetails{"10": {ID: "10", Name: "Counter-Strike"}}}
	gw := New(up, Options{TTL: time.Hour, Store: store})

	d, err := gw.Details(context.Background(), "10")
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if d.Name != "Counter-Strike" || up.calls != 0 {
		t.Fatalf("expected store hit without upstream call, got %+v calls=%d", d, up.calls)
	}
	if store.lastAge != time.Hour {
		t.Fatalf("expected store lookup bounded by ttl, got %s", store.lastAge)
	}
}

func TestDetailsWritesThroughAndToleratesStoreFailure(t *testing.T) {
	up := &upstreamFake{details: map[string]domain.ItemDetails{"20": {ID: "20", Name: "Team Fortress"}}}
	store := &storeFake{getErr: errors.New("connection refused")}
	gw := New(up, Options{Store: store})

	d, err := gw.Details(context.Background(), "20")
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if d.Name != "Team Fortress" {
		t.Fatalf("unexpected details %+v", d)
	}
	if store.puts != 1 {
		t.Fatalf("expected write-through, got %d puts", store.puts)
	}
}

func TestListingAlwaysGoesUpstream(t *testing.T) {
	up := &upstreamFake{}
	gw := New(up, Options{})
	for range 2 {
		if _, err := gw.Listing(context.Background(), domain.ListingQuery{Surface: domain.SurfaceSearch}); err != nil {
			t.Fatalf("Listing() error = %v", err)
		}
	}
	if up.listings != 2 {
		t.Fatalf("expected 2 listing calls, got %d", up.listings)
	}
}
