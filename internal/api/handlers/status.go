package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/codyseavey/game-tracker/internal/services"
)

// DetailStatusProvider reports detail cache and batching state
type DetailStatusProvider interface {
	Status() services.DetailFetcherStatus
	Purge() int
}

type StatusHandler struct {
	details         DetailStatusProvider
	fallbackEnabled bool
}

func NewStatusHandler(details DetailStatusProvider, fallbackEnabled bool) *StatusHandler {
	return &StatusHandler{
		details:         details,
		fallbackEnabled: fallbackEnabled,
	}
}

// GetSearchStatus returns the detail cache occupancy and the active batch policy
func (h *StatusHandler) GetSearchStatus(c *gin.Context) {
	resp := gin.H{"fallback_enabled": h.fallbackEnabled}
	if h.details != nil {
		resp["detail_fetcher"] = h.details.Status()
	}
	c.JSON(http.StatusOK, resp)
}

// PurgeDetailCache drops every cached detail record so the next searches
// read fresh store data
func (h *StatusHandler) PurgeDetailCache(c *gin.Context) {
	if h.details == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "detail fetcher not configured"})
		return
	}

	purged := h.details.Purge()
	log.Info().Int("purged", purged).Msg("Detail cache purged")
	c.JSON(http.StatusOK, gin.H{
		"purged":         purged,
		"detail_fetcher": h.details.Status(),
	})
}
