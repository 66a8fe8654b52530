package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/codyseavey/game-tracker/internal/config"
	"github.com/codyseavey/game-tracker/internal/metrics"
)

// RawDetailRecord is one entry of the store's appdetails response
type RawDetailRecord struct {
	Success bool
	Data    SteamAppData
}

// SteamAppData is the subset of appdetails "data" we read. Optional blocks are
// decoded leniently because the store does not keep their shapes stable.
type SteamAppData struct {
	Type             string                      `json:"type"`
	Name             string                      `json:"name"`
	SteamAppID       flexID                      `json:"steam_appid"`
	ShortDescription string                      `json:"short_description"`
	HeaderImage      string                      `json:"header_image"`
	Developers       lenient[[]string]           `json:"developers"`
	Publishers       lenient[[]string]           `json:"publishers"`
	PriceOverview    lenient[steamPriceOverview] `json:"price_overview"`
	Platforms        lenient[steamPlatforms]     `json:"platforms"`
	Metacritic       lenient[steamMetacritic]    `json:"metacritic"`
	Categories       lenient[[]steamDescription] `json:"categories"`
	Genres           lenient[[]steamDescription] `json:"genres"`
	ReleaseDate      lenient[steamReleaseDate]   `json:"release_date"`
}

type steamPriceOverview struct {
	Currency        string  `json:"currency"`
	Initial         flexInt `json:"initial"`
	Final           flexInt `json:"final"`
	DiscountPercent flexInt `json:"discount_percent"`
}

type steamPlatforms struct {
	Windows bool `json:"windows"`
	Mac     bool `json:"mac"`
	Linux   bool `json:"linux"`
}

type steamMetacritic struct {
	Score flexInt `json:"score"`
	URL   string  `json:"url"`
}

// steamDescription is a genre or category entry. The id field is omitted on
// purpose: genres send it as a string and categories as a number.
type steamDescription struct {
	Description string `json:"description"`
}

type steamReleaseDate struct {
	ComingSoon bool   `json:"coming_soon"`
	Date       string `json:"date"`
}

// lenient decodes T when the JSON matches and otherwise yields the zero value
// with OK=false, so one malformed block does not discard the whole record.
type lenient[T any] struct {
	Value T
	OK    bool
}

func (l *lenient[T]) UnmarshalJSON(b []byte) error {
	var v T
	if string(b) == "null" || json.Unmarshal(b, &v) != nil {
		*l = lenient[T]{}
		return nil
	}
	*l = lenient[T]{Value: v, OK: true}
	return nil
}

type detailEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// DetailFetcherStatus describes the fetcher's cache and batching policy
type DetailFetcherStatus struct {
	CachedEntries int    `json:"cached_entries"`
	CacheCapacity int    `json:"cache_capacity"`
	BatchSize     int    `json:"batch_size"`
	BatchDelay    string `json:"batch_delay"`
}

// DetailFetcher resolves store IDs to detail records. Batches are issued one
// after another, each gated by a shared limiter that enforces the inter-batch
// delay. Successful records are kept in a bounded process-wide LRU cache.
type DetailFetcher struct {
	client     *steamClient
	cache      *lru.Cache[string, RawDetailRecord]
	cacheSize  int
	limiter    *rate.Limiter
	batchSize  int
	batchDelay time.Duration
}

// NewDetailFetcher creates a fetcher with its own HTTP client
func NewDetailFetcher(cfg config.SteamConfig) (*DetailFetcher, error) {
	return newDetailFetcher(newSteamClient(cfg), cfg)
}

func newDetailFetcher(client *steamClient, cfg config.SteamConfig) (*DetailFetcher, error) {
	cacheSize := cfg.DetailCacheSize
	if cacheSize <= 0 {
		cacheSize = 2000
	}
	cache, err := lru.New[string, RawDetailRecord](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create detail cache: %w", err)
	}

	batchSize := cfg.DetailBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	// One batch per delay window across the whole process
	limit := rate.Inf
	if cfg.DetailBatchDelay > 0 {
		limit = rate.Every(cfg.DetailBatchDelay)
	}

	return &DetailFetcher{
		client:     client,
		cache:      cache,
		cacheSize:  cacheSize,
		limiter:    rate.NewLimiter(limit, 1),
		batchSize:  batchSize,
		batchDelay: cfg.DetailBatchDelay,
	}, nil
}

// FetchDetails returns the detail records it could resolve, keyed by ID.
// IDs whose batch failed or whose entry was unsuccessful are simply absent.
func (f *DetailFetcher) FetchDetails(ctx context.Context, ids []string) map[string]RawDetailRecord {
	unique := uniqueIDs(ids)
	result := make(map[string]RawDetailRecord, len(unique))

	var missing []string
	for _, id := range unique {
		if rec, ok := f.cache.Get(id); ok {
			result[id] = rec
			metrics.DetailCacheHits.Inc()
			continue
		}
		metrics.DetailCacheMisses.Inc()
		missing = append(missing, id)
	}

	batches := chunkIDs(missing, f.batchSize)
	for i, batch := range batches {
		if err := f.limiter.Wait(ctx); err != nil {
			skipped := len(batches) - i
			metrics.DetailBatchesTotal.WithLabelValues("skipped").Add(float64(skipped))
			log.Warn().Err(err).Int("batches_skipped", skipped).Msg("Detail fetch interrupted")
			break
		}

		records, err := f.fetchBatch(ctx, batch)
		if err != nil {
			metrics.DetailBatchesTotal.WithLabelValues("failed").Inc()
			log.Warn().Err(err).Strs("batch", batch).Msg("Detail batch failed, skipping")
			continue
		}
		metrics.DetailBatchesTotal.WithLabelValues("ok").Inc()

		for id, rec := range records {
			f.cache.Add(id, rec)
			result[id] = rec
		}
	}

	return result
}

// fetchBatch requests one comma-joined group of IDs
func (f *DetailFetcher) fetchBatch(ctx context.Context, batch []string) (map[string]RawDetailRecord, error) {
	params := appDetailsParams(f.client, batch)

	var raw map[string]json.RawMessage
	if err := f.client.getJSON(ctx, endpointAppDetails, "/api/appdetails", params, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("appdetails returned an empty document")
	}

	return decodeDetailEntries(raw, batch), nil
}

// decodeDetailEntries keeps the requested IDs whose entries are marked
// successful and whose data block decodes
func decodeDetailEntries(raw map[string]json.RawMessage, requested []string) map[string]RawDetailRecord {
	out := make(map[string]RawDetailRecord, len(requested))
	for _, id := range requested {
		entry, ok := raw[id]
		if !ok {
			continue
		}

		var env detailEnvelope
		if err := json.Unmarshal(entry, &env); err != nil {
			log.Debug().Err(err).Str("appid", id).Msg("Malformed detail entry")
			continue
		}
		if !env.Success {
			continue
		}

		var data SteamAppData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			log.Debug().Err(err).Str("appid", id).Msg("Undecodable detail data")
			continue
		}
		out[id] = RawDetailRecord{Success: true, Data: data}
	}
	return out
}

// Status reports cache occupancy and the active batch policy
func (f *DetailFetcher) Status() DetailFetcherStatus {
	return DetailFetcherStatus{
		CachedEntries: f.cache.Len(),
		CacheCapacity: f.cacheSize,
		BatchSize:     f.batchSize,
		BatchDelay:    f.batchDelay.String(),
	}
}

// Purge empties the detail cache and returns how many entries it dropped
func (f *DetailFetcher) Purge() int {
	n := f.cache.Len()
	f.cache.Purge()
	return n
}

// uniqueIDs trims IDs, drops empties and duplicates, and keeps first-seen order
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

func appDetailsParams(c *steamClient, batch []string) url.Values {
	params := c.localeParams()
	params.Set("appids", strings.Join(batch, ","))
	return params
}
