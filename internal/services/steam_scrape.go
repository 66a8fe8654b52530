package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/codyseavey/game-tracker/internal/config"
	"github.com/codyseavey/game-tracker/internal/models"
)

// appIDPattern matches the value of a data-ds-appid attribute for a single app.
// Bundles carry comma-separated lists and are skipped.
var appIDPattern = regexp.MustCompile(`^[0-9]+$`)

// HTMLSearchStrategy scrapes the store's HTML search results page for app IDs.
// It is only used when the structured search comes back empty.
type HTMLSearchStrategy struct {
	client        *steamClient
	details       DetailResolver
	normalizer    *GameNormalizer
	maxCandidates int
}

// NewHTMLSearchStrategy creates the fallback search strategy
func NewHTMLSearchStrategy(cfg config.SteamConfig, details DetailResolver, normalizer *GameNormalizer) *HTMLSearchStrategy {
	return newHTMLSearchStrategy(newSteamClient(cfg), cfg, details, normalizer)
}

func newHTMLSearchStrategy(client *steamClient, cfg config.SteamConfig, details DetailResolver, normalizer *GameNormalizer) *HTMLSearchStrategy {
	maxCandidates := cfg.FallbackMaxCandidates
	if maxCandidates < 0 {
		maxCandidates = 0
	}
	return &HTMLSearchStrategy{
		client:        client,
		details:       details,
		normalizer:    normalizer,
		maxCandidates: maxCandidates,
	}
}

// Name identifies the strategy in logs and metrics
func (s *HTMLSearchStrategy) Name() string {
	return "fallback"
}

// Search returns normalized games for the IDs found on the results page
func (s *HTMLSearchStrategy) Search(ctx context.Context, query string, limit int) []models.GameRecord {
	maxIDs := limit
	if maxIDs <= 0 {
		maxIDs = defaultSearchLimit
	}
	if s.maxCandidates > 0 && s.maxCandidates < maxIDs {
		maxIDs = s.maxCandidates
	}

	params := s.client.localeParams()
	params.Set("term", query)
	params.Set("category1", "998") // games only
	params.Set("supportedlang", "english")
	params.Set("ndl", "1")

	doc, err := s.client.getHTML(ctx, endpointHTMLSearch, "/search/results/", params)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("HTML search failed")
		return []models.GameRecord{}
	}

	ids := extractAppIDs(doc, maxIDs)
	if len(ids) == 0 {
		log.Info().Str("query", query).Msg("HTML search found no app IDs")
		return []models.GameRecord{}
	}

	details := s.details.FetchDetails(ctx, ids)

	results := make([]models.GameRecord, 0, len(ids))
	for _, id := range ids {
		raw, ok := details[id]
		if !ok {
			continue
		}
		if rec := s.normalizer.Normalize(raw, id); rec != nil {
			results = append(results, *rec)
		}
	}

	log.Debug().
		Str("query", query).
		Int("ids", len(ids)).
		Int("results", len(results)).
		Msg("HTML search complete")
	return results
}

// extractAppIDs collects app IDs in document order, deduplicated, up to max
func extractAppIDs(doc *goquery.Document, max int) []string {
	seen := make(map[string]struct{})
	var ids []string

	doc.Find("[data-ds-appid]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		v, _ := sel.Attr("data-ds-appid")
		v = strings.TrimSpace(v)
		if !appIDPattern.MatchString(v) {
			return true
		}
		if _, dup := seen[v]; dup {
			return true
		}
		seen[v] = struct{}{}
		ids = append(ids, v)
		return len(ids) < max
	})

	return ids
}
