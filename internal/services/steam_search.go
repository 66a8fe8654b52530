package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codyseavey/game-tracker/internal/config"
	"github.com/codyseavey/game-tracker/internal/models"
)

// Strategy is one way of turning a query into normalized games.
// Implementations degrade to an empty result instead of returning errors.
type Strategy interface {
	Name() string
	Search(ctx context.Context, query string, limit int) []models.GameRecord
}

// DetailResolver resolves store IDs to detail records
type DetailResolver interface {
	FetchDetails(ctx context.Context, ids []string) map[string]RawDetailRecord
}

// storeSearchResponse is the storesearch endpoint payload
type storeSearchResponse struct {
	Total flexInt           `json:"total"`
	Items []storeSearchItem `json:"items"`
}

type storeSearchItem struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	ID        flexID `json:"id"`
	TinyImage string `json:"tiny_image"`
}

// candidate is an ID found by a search page plus whatever the page told us about it
type candidate struct {
	id    string
	name  string
	image string
}

// StoreSearchStrategy queries the structured storesearch endpoint page by page
// and resolves the collected IDs through the detail fetcher
type StoreSearchStrategy struct {
	client     *steamClient
	details    DetailResolver
	normalizer *GameNormalizer
	pageSize   int
	maxResults int
}

// NewStoreSearchStrategy creates the primary search strategy
func NewStoreSearchStrategy(cfg config.SteamConfig, details DetailResolver, normalizer *GameNormalizer) *StoreSearchStrategy {
	return newStoreSearchStrategy(newSteamClient(cfg), cfg, details, normalizer)
}

func newStoreSearchStrategy(client *steamClient, cfg config.SteamConfig, details DetailResolver, normalizer *GameNormalizer) *StoreSearchStrategy {
	pageSize := cfg.SearchPageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	return &StoreSearchStrategy{
		client:     client,
		details:    details,
		normalizer: normalizer,
		pageSize:   pageSize,
		maxResults: maxResults,
	}
}

// Name identifies the strategy in logs and metrics
func (s *StoreSearchStrategy) Name() string {
	return "primary"
}

// Search returns normalized games for query, at most limit of them
func (s *StoreSearchStrategy) Search(ctx context.Context, query string, limit int) []models.GameRecord {
	if limit <= 0 || limit > s.maxResults {
		limit = s.maxResults
	}

	candidates := s.collectCandidates(ctx, query, limit)
	if len(candidates) == 0 {
		return []models.GameRecord{}
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	details := s.details.FetchDetails(ctx, ids)

	results := make([]models.GameRecord, 0, len(candidates))
	for _, c := range candidates {
		raw, ok := details[c.id]
		if !ok {
			continue
		}
		rec := s.normalizer.Normalize(raw, c.id)
		if rec == nil {
			continue
		}
		applyHints(rec, c)
		results = append(results, *rec)
	}

	log.Debug().
		Str("query", query).
		Int("candidates", len(candidates)).
		Int("resolved", len(details)).
		Int("results", len(results)).
		Msg("Store search complete")
	return results
}

// collectCandidates pages through storesearch until a short page, a failed
// page, a page with nothing unseen, or limit candidates
func (s *StoreSearchStrategy) collectCandidates(ctx context.Context, query string, limit int) []candidate {
	seen := make(map[string]struct{}, limit)
	// Every item ever listed, filtered types included, keyed by type and ID
	listed := make(map[string]struct{})
	candidates := make([]candidate, 0, limit)

	// The endpoint may ignore the page parameter; never loop past what limit could need
	maxPages := limit/s.pageSize + 2

	for page := 1; page <= maxPages && len(candidates) < limit; page++ {
		items, err := s.fetchPage(ctx, query, page)
		if err != nil {
			log.Warn().Err(err).Str("query", query).Int("page", page).Msg("Store search page failed, stopping pagination")
			break
		}

		fresh := false
		for _, item := range items {
			id := strings.TrimSpace(string(item.ID))
			key := item.Type + ":" + id
			if _, ok := listed[key]; !ok {
				listed[key] = struct{}{}
				fresh = true
			}

			if len(candidates) >= limit {
				continue
			}
			if item.Type != "" && item.Type != "app" {
				continue
			}
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			candidates = append(candidates, candidate{
				id:    id,
				name:  strings.TrimSpace(item.Name),
				image: strings.TrimSpace(item.TinyImage),
			})
		}

		// A page of only already-listed items means the endpoint is repeating itself
		if len(items) < s.pageSize || !fresh {
			if !fresh && len(items) > 0 {
				log.Debug().Str("query", query).Int("page", page).Msg("Store search page repeated earlier items, stopping pagination")
			}
			break
		}
	}

	return candidates
}

func (s *StoreSearchStrategy) fetchPage(ctx context.Context, query string, page int) ([]storeSearchItem, error) {
	params := s.client.localeParams()
	params.Set("term", query)
	params.Set("page", strconv.Itoa(page))

	var resp storeSearchResponse
	if err := s.client.getJSON(ctx, endpointStoreSearch, "/api/storesearch/", params, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// applyHints fills gaps in a normalized record with what the search page returned
func applyHints(rec *models.GameRecord, c candidate) {
	if rec.Title == models.UntitledGame && c.name != "" {
		rec.Title = c.name
	}
	if rec.ImageURL == "" && c.image != "" {
		rec.ImageURL = c.image
	}
}
