package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nlzhang/geopin/internal/core/domain"
	"github.com/nlzhang/geopin/internal/core/ports"
)

// SearchService resolves free-text place queries through the geocoder, with
// read-through caching of results. Geocoding is an external collaborator;
// selecting or recording a hit is the caller's next step.
type SearchService struct {
	geocoder ports.Geocoder
	cache    ports.CacheService
}

// NewSearchService creates a new SearchService. cache may be nil.
func NewSearchService(geocoder ports.Geocoder, cache ports.CacheService) *SearchService {
	return &SearchService{geocoder: geocoder, cache: cache}
}

// Search returns up to limit matches for the query.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]domain.PlaceMatch, error) {
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if limit <= 0 || limit > 25 {
		limit = 10
	}

	// Try cache
	cacheKey := fmt.Sprintf("geocode:%s:%d", query, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var matches []domain.PlaceMatch
			if err := json.Unmarshal(data, &matches); err == nil {
				return matches, nil
			}
		}
	}

	matches, err := s.geocoder.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	// Cache for an hour (place lookups rarely move)
	if s.cache != nil {
		if data, err := json.Marshal(matches); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 3600)
		}
	}

	return matches, nil
}
