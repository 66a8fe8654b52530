package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/codyseavey/game-tracker/internal/metrics"
	"github.com/codyseavey/game-tracker/internal/models"
)

// MinQueryLength is the shortest trimmed query the search accepts
const MinQueryLength = 2

// defaultSearchLimit applies when no result limit is configured or requested
const defaultSearchLimit = 10

// ErrInvalidQuery is returned for a missing or too short query
var ErrInvalidQuery = errors.New("Query parameter must be at least 2 characters")

// SearchService runs the primary strategy, falls back to the secondary one when
// the primary finds nothing, and deduplicates the outcome. Upstream failures
// surface as empty results; only a bad query is an error.
type SearchService struct {
	primary    Strategy
	fallback   Strategy
	maxResults int
	group      singleflight.Group
}

// NewSearchService creates a search service. fallback may be nil.
func NewSearchService(primary, fallback Strategy, maxResults int) *SearchService {
	if maxResults <= 0 {
		maxResults = defaultSearchLimit
	}
	return &SearchService{
		primary:    primary,
		fallback:   fallback,
		maxResults: maxResults,
	}
}

// SearchGames searches the store for query. A limit <= 0 means the configured maximum.
func (s *SearchService) SearchGames(ctx context.Context, query string, limit int) (*models.SearchResponse, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return nil, ErrInvalidQuery
	}
	if limit <= 0 || limit > s.maxResults {
		limit = s.maxResults
	}

	// Identical concurrent searches share one upstream run. The shared run is
	// detached from any single caller's cancellation.
	key := strconv.Itoa(limit) + "|" + q
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.run(context.WithoutCancel(ctx), q, limit), nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search aborted: %w", err)
	}

	games := append([]models.GameRecord(nil), v.([]models.GameRecord)...)
	if games == nil {
		games = []models.GameRecord{}
	}
	if shared {
		log.Debug().Str("query", q).Msg("Search result shared with concurrent caller")
	}

	return &models.SearchResponse{
		Games: games,
		Total: len(games),
		Query: q,
	}, nil
}

func (s *SearchService) run(ctx context.Context, query string, limit int) []models.GameRecord {
	start := time.Now()

	strategy := s.primary.Name()
	results := s.primary.Search(ctx, query, limit)
	if len(results) == 0 && s.fallback != nil {
		log.Info().Str("query", query).Msg("Primary search empty, trying fallback")
		strategy = s.fallback.Name()
		results = s.fallback.Search(ctx, query, limit)
	}
	if len(results) == 0 {
		strategy = "empty"
	}

	results = dedupeByExternalID(results)
	if len(results) > limit {
		results = results[:limit]
	}

	metrics.SearchesTotal.WithLabelValues(strategy).Inc()
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchResults.Observe(float64(len(results)))

	log.Info().
		Str("query", query).
		Str("strategy", strategy).
		Int("results", len(results)).
		Dur("took", time.Since(start)).
		Msg("Search finished")
	return results
}

// dedupeByExternalID keeps the first record for every external ID
func dedupeByExternalID(records []models.GameRecord) []models.GameRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.GameRecord, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.ExternalID]; dup {
			continue
		}
		seen[r.ExternalID] = struct{}{}
		out = append(out, r)
	}
	return out
}
