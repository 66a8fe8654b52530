package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/codyseavey/game-tracker/internal/models"
)

func newListRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return newListRouterWithDB(setupTestDB(t))
}

func newListRouterWithDB(db *gorm.DB) *gin.Engine {
	router := gin.New()
	h := NewListHandler(db)
	router.GET("/api/lists", h.GetLists)
	router.POST("/api/lists", h.CreateList)
	return router
}

func TestCreateList(t *testing.T) {
	router := newListRouter(t)

	w := rawBody(t, router, http.MethodPost, "/api/lists", `{"name": "  Backlog  ", "color": "#ff0000"}`)
	expectStatus(t, w, http.StatusCreated)

	list := decodeBody[models.CustomList](t, w)
	if list.ID == "" || list.Name != "Backlog" || list.Color != "#ff0000" {
		t.Errorf("unexpected list: %+v", list)
	}

	w = rawBody(t, router, http.MethodPost, "/api/lists", `{"name": "Backlog"}`)
	expectStatus(t, w, http.StatusConflict)

	for _, body := range []string{`{"name": ""}`, `{"name": "   "}`, `{}`, `not json`} {
		w = rawBody(t, router, http.MethodPost, "/api/lists", body)
		expectStatus(t, w, http.StatusBadRequest)
	}
}

func TestGetLists(t *testing.T) {
	router := newListRouter(t)

	w := doRequest(t, router, http.MethodGet, "/api/lists", nil)
	expectStatus(t, w, http.StatusOK)
	if w.Body.String() != "[]" {
		t.Errorf("expected empty JSON array, got %s", w.Body.String())
	}

	expectStatus(t, rawBody(t, router, http.MethodPost, "/api/lists", `{"name": "First"}`), http.StatusCreated)
	expectStatus(t, rawBody(t, router, http.MethodPost, "/api/lists", `{"name": "Second"}`), http.StatusCreated)

	w = doRequest(t, router, http.MethodGet, "/api/lists", nil)
	expectStatus(t, w, http.StatusOK)
	lists := decodeBody[[]models.CustomList](t, w)
	if len(lists) != 2 || lists[0].Name != "Second" || lists[1].Name != "First" {
		t.Errorf("expected newest first, got %+v", lists)
	}
}

func TestCreateListRowWrittenElsewhere(t *testing.T) {
	db := setupTestDB(t)
	router := newListRouterWithDB(db)

	if err := db.Create(&models.CustomList{ID: "other", Name: "Co-op"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	w := rawBody(t, router, http.MethodPost, "/api/lists", `{"name": "Co-op"}`)
	expectStatus(t, w, http.StatusConflict)
	if body := decodeBody[map[string]any](t, w); body["error"] != "List already exists" {
		t.Errorf("unexpected error: %v", body)
	}
}
