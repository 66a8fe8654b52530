package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/codyseavey/game-tracker/internal/models"
	"github.com/codyseavey/game-tracker/internal/services"
)

// GameSearcher is the search entry point the handler depends on
type GameSearcher interface {
	SearchGames(ctx context.Context, query string, limit int) (*models.SearchResponse, error)
}

type SearchHandler struct {
	searcher GameSearcher
}

func NewSearchHandler(searcher GameSearcher) *SearchHandler {
	return &SearchHandler{
		searcher: searcher,
	}
}

// SearchGames handles GET /api/search?q=&limit=
func (h *SearchHandler) SearchGames(c *gin.Context) {
	query := c.Query("q")

	// Missing or unparseable limit means the configured maximum
	limit := 0
	if n, err := strconv.Atoi(c.Query("limit")); err == nil {
		limit = max(n, 1)
	}

	result, err := h.searcher.SearchGames(c.Request.Context(), query, limit)
	if err != nil {
		if errors.Is(err, services.ErrInvalidQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Str("query", query).Msg("Search failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to search games",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}
