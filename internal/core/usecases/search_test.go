package usecases_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/nlzhang/geopin/internal/core/domain"
	"github.com/nlzhang/geopin/internal/core/usecases"
)

// --- Mock Geocoder ---

type mockGeocoder struct {
	searchFn func(ctx context.Context, query string, limit int) ([]domain.PlaceMatch, error)
	calls    int
	lastQ    string
	lastN    int
}

func (m *mockGeocoder) Search(ctx context.Context, query string, limit int) ([]domain.PlaceMatch, error) {
	m.calls++
	m.lastQ = query
	m.lastN = limit
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return []domain.PlaceMatch{{Label: "somewhere", Lat: 1, Lon: 2}}, nil
}

// --- Mock Cache ---

type mockCache struct {
	getFn  func(ctx context.Context, key string) ([]byte, error)
	sets   map[string][]byte
	setTTL int
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, fmt.Errorf("cache miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if m.sets == nil {
		m.sets = make(map[string][]byte)
	}
	m.sets[key] = value
	m.setTTL = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.sets, key)
	return nil
}

func TestSearch_EmptyQuery(t *testing.T) {
	geo := &mockGeocoder{}
	svc := usecases.NewSearchService(geo, nil)

	_, err := svc.Search(context.Background(), "", 10)
	if err == nil {
		t.Fatal("expected error for empty query")
	}
	if geo.calls != 0 {
		t.Errorf("expected no geocoder calls, got %d", geo.calls)
	}
}

func TestSearch_ClampsLimit(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 10},
		{-3, 10},
		{100, 10},
		{5, 5},
		{25, 25},
	}

	for _, tc := range cases {
		geo := &mockGeocoder{}
		svc := usecases.NewSearchService(geo, nil)
		if _, err := svc.Search(context.Background(), "cafe", tc.in); err != nil {
			t.Fatalf("limit %d: unexpected error: %v", tc.in, err)
		}
		if geo.lastN != tc.want {
			t.Errorf("limit %d: expected geocoder limit %d, got %d", tc.in, tc.want, geo.lastN)
		}
	}
}

func TestSearch_CacheHit(t *testing.T) {
	cached := []domain.PlaceMatch{{Label: "Shanghai", Lat: 31.2304, Lon: 121.4737, Kind: "city"}}
	data, _ := json.Marshal(cached)

	geo := &mockGeocoder{}
	cache := &mockCache{
		getFn: func(ctx context.Context, key string) ([]byte, error) {
			return data, nil
		},
	}
	svc := usecases.NewSearchService(geo, cache)

	got, err := svc.Search(context.Background(), "shanghai", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Label != "Shanghai" {
		t.Errorf("expected cached match, got %+v", got)
	}
	if geo.calls != 0 {
		t.Errorf("expected no geocoder calls on cache hit, got %d", geo.calls)
	}
}

func TestSearch_CacheMissCallsGeocoderAndStores(t *testing.T) {
	geo := &mockGeocoder{
		searchFn: func(ctx context.Context, query string, limit int) ([]domain.PlaceMatch, error) {
			return []domain.PlaceMatch{{Label: "Beijing", Lat: 39.9042, Lon: 116.4074}}, nil
		},
	}
	cache := &mockCache{}
	svc := usecases.NewSearchService(geo, cache)

	got, err := svc.Search(context.Background(), "beijing", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if geo.calls != 1 {
		t.Errorf("expected 1 geocoder call, got %d", geo.calls)
	}
	if _, ok := cache.sets["geocode:beijing:10"]; !ok {
		t.Error("expected result stored under geocode:beijing:10")
	}
	if cache.setTTL != 3600 {
		t.Errorf("expected TTL 3600, got %d", cache.setTTL)
	}
}

func TestSearch_GeocoderError(t *testing.T) {
	geo := &mockGeocoder{
		searchFn: func(ctx context.Context, query string, limit int) ([]domain.PlaceMatch, error) {
			return nil, fmt.Errorf("upstream unreachable")
		},
	}
	cache := &mockCache{}
	svc := usecases.NewSearchService(geo, cache)

	_, err := svc.Search(context.Background(), "nowhere", 10)
	if err == nil {
		t.Fatal("expected geocoder error to propagate")
	}
	if len(cache.sets) != 0 {
		t.Error("expected nothing cached after geocoder failure")
	}
}

func TestSearch_CorruptCacheEntryFallsThrough(t *testing.T) {
	geo := &mockGeocoder{}
	cache := &mockCache{
		getFn: func(ctx context.Context, key string) ([]byte, error) {
			return []byte("{not json["), nil
		},
	}
	svc := usecases.NewSearchService(geo, cache)

	got, err := svc.Search(context.Background(), "cafe", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if geo.calls != 1 {
		t.Errorf("expected geocoder fallback on corrupt cache entry, got %d calls", geo.calls)
	}
	if len(got) == 0 {
		t.Error("expected matches from geocoder")
	}
}
