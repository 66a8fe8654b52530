package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codyseavey/game-tracker/internal/config"
)

// fakeStore serves storesearch, appdetails and the HTML results page from
// in-memory fixtures and records what was asked of it
type fakeStore struct {
	mu sync.Mutex

	// appdetails: id -> data object; IDs not present answer success=false
	details map[string]string
	// any batch containing one of these IDs fails with a 500
	failDetailIDs map[string]bool

	// storesearch: term -> item objects, served pageSize per page
	searchItems map[string][]string
	pageSize    int
	ignorePage  bool
	failPage    int
	searchDown  bool

	// HTML search: term -> document
	htmlPages map[string]string
	htmlDown  bool

	detailBatches [][]string
	searchPages   []int
	htmlRequests  int
	userAgents    map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		details:       map[string]string{},
		failDetailIDs: map[string]bool{},
		searchItems:   map[string][]string{},
		htmlPages:     map[string]string{},
		pageSize:      10,
		userAgents:    map[string]string{},
	}
}

func (f *fakeStore) start(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(server.Close)
	return server
}

func (f *fakeStore) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	switch r.URL.Path {
	case "/api/appdetails":
		f.userAgents["appdetails"] = r.Header.Get("User-Agent")
		ids := strings.Split(q.Get("appids"), ",")
		f.detailBatches = append(f.detailBatches, ids)
		for _, id := range ids {
			if f.failDetailIDs[id] {
				http.Error(w, "rate limited", http.StatusInternalServerError)
				return
			}
		}
		entries := make([]string, 0, len(ids))
		for _, id := range ids {
			if data, ok := f.details[id]; ok {
				entries = append(entries, fmt.Sprintf(`%q: {"success": true, "data": %s}`, id, data))
			} else {
				entries = append(entries, fmt.Sprintf(`%q: {"success": false}`, id))
			}
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "{%s}", strings.Join(entries, ","))

	case "/api/storesearch/":
		f.userAgents["storesearch"] = r.Header.Get("User-Agent")
		page, _ := strconv.Atoi(q.Get("page"))
		if page < 1 {
			page = 1
		}
		f.searchPages = append(f.searchPages, page)
		if f.searchDown || page == f.failPage {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		items := f.searchItems[q.Get("term")]
		if f.ignorePage {
			page = 1
		}
		start := (page - 1) * f.pageSize
		end := start + f.pageSize
		if start > len(items) {
			start = len(items)
		}
		if end > len(items) {
			end = len(items)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"total": %d, "items": [%s]}`, len(items), strings.Join(items[start:end], ","))

	case "/search/results/":
		f.userAgents["html"] = r.Header.Get("User-Agent")
		f.htmlRequests++
		if f.htmlDown || q.Get("category1") != "998" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, f.htmlPages[q.Get("term")])

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeStore) batches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.detailBatches...)
}

func (f *fakeStore) pages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.searchPages...)
}

func (f *fakeStore) htmlCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.htmlRequests
}

func (f *fakeStore) addGame(id, name string) {
	f.details[id] = fmt.Sprintf(`{"type": "game", "name": %q, "steam_appid": %s, "price_overview": {"currency": "USD", "initial": 999, "final": 999}}`, name, id)
}

func (f *fakeStore) addDLC(id, name string) {
	f.details[id] = fmt.Sprintf(`{"type": "dlc", "name": %q, "steam_appid": %s}`, name, id)
}

func searchItem(id, name string) string {
	return fmt.Sprintf(`{"type": "app", "name": %q, "id": %s, "tiny_image": "https://cdn.example/%s.jpg"}`, name, id, id)
}

func testSteamConfig(baseURL string) config.SteamConfig {
	return config.SteamConfig{
		BaseURL:               baseURL,
		Language:              "english",
		CountryCode:           "us",
		HTTPTimeout:           2 * time.Second,
		UserAgent:             "Mozilla/5.0 test",
		SearchPageSize:        10,
		MaxResults:            10,
		DetailBatchSize:       10,
		DetailBatchDelay:      0,
		DetailCacheSize:       100,
		FallbackEnabled:       true,
		FallbackMaxCandidates: 0,
	}
}

func newTestFetcher(t *testing.T, cfg config.SteamConfig) *DetailFetcher {
	t.Helper()
	f, err := NewDetailFetcher(cfg)
	if err != nil {
		t.Fatalf("NewDetailFetcher failed: %v", err)
	}
	return f
}
