package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codyseavey/game-tracker/internal/database"
	"github.com/codyseavey/game-tracker/internal/models"
	"github.com/codyseavey/game-tracker/internal/services"
)

type panickingSearcher struct{}

func (panickingSearcher) SearchGames(context.Context, string, int) (*models.SearchResponse, error) {
	panic("boom")
}

type emptySearcher struct{}

func (emptySearcher) SearchGames(_ context.Context, q string, _ int) (*models.SearchResponse, error) {
	return &models.SearchResponse{Games: []models.GameRecord{}, Query: q}, nil
}

type staticStatus struct{}

func (staticStatus) Status() services.DetailFetcherStatus {
	return services.DetailFetcherStatus{CacheCapacity: 10, BatchSize: 5, BatchDelay: "0s"}
}

func (staticStatus) Purge() int { return 0 }

func newTestRouter(t *testing.T, deps RouterDeps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	deps.DB = db
	if deps.Searcher == nil {
		deps.Searcher = emptySearcher{}
	}
	if deps.DetailStatus == nil {
		deps.DetailStatus = staticStatus{}
	}
	return SetupRouter(deps)
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRoutes(t *testing.T) {
	router := newTestRouter(t, RouterDeps{})

	tests := []struct {
		path   string
		status int
	}{
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/search?q=ab", http.StatusOK},
		{"/api/steam/search?q=ab", http.StatusOK},
		{"/api/search/status", http.StatusOK},
		{"/api/games", http.StatusOK},
		{"/api/games/stats", http.StatusOK},
		{"/api/lists", http.StatusOK},
		{"/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if w := get(router, tt.path); w.Code != tt.status {
				t.Errorf("GET %s = %d, want %d: %s", tt.path, w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestMetricsExposition(t *testing.T) {
	router := newTestRouter(t, RouterDeps{})
	get(router, "/health")

	w := get(router, "/metrics")
	if !strings.Contains(w.Body.String(), "gametracker_http_requests_total") {
		t.Error("expected HTTP request counter in metrics output")
	}
}

func TestRecoveryReturnsInternalFault(t *testing.T) {
	router := newTestRouter(t, RouterDeps{Searcher: panickingSearcher{}})

	w := get(router, "/api/search?q=portal")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["error"] == "" || body["details"] != "boom" {
		t.Errorf("expected {error, details}, got %v", body)
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	router := newTestRouter(t, RouterDeps{CORSAllowedOrigins: []string{"https://games.example"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://games.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://games.example" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
}

func TestSPAFallback(t *testing.T) {
	dist := t.TempDir()
	if err := os.WriteFile(filepath.Join(dist, "index.html"), []byte("<html>app</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	router := newTestRouter(t, RouterDeps{FrontendDistPath: dist})

	if w := get(router, "/library/42"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "app") {
		t.Errorf("client routes should serve index.html, got %d %q", w.Code, w.Body.String())
	}
	if w := get(router, "/api/nope"); w.Code != http.StatusNotFound {
		t.Errorf("unknown API routes should 404, got %d", w.Code)
	}
}
