package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/codyseavey/game-tracker/internal/metrics"
	"github.com/codyseavey/game-tracker/internal/models"
)

type GameHandler struct {
	db *gorm.DB
}

func NewGameHandler(db *gorm.DB) *GameHandler {
	return &GameHandler{db: db}
}

// GetGames lists the library, newest first. Optional filters: status, list,
// favorite, onSale, and q for a fuzzy title match.
func (h *GameHandler) GetGames(c *gin.Context) {
	query := h.db.Order("created_at DESC")

	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseGameStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		query = query.Where("status = ?", status)
	}

	if list := strings.TrimSpace(c.Query("list")); list != "" {
		query = query.Where("list = ?", list)
	}

	if raw := c.Query("favorite"); raw != "" {
		fav, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "favorite must be true or false"})
			return
		}
		query = query.Where("is_favorite = ?", fav)
	}

	onSale := false
	if raw := c.Query("onSale"); raw != "" {
		var err error
		if onSale, err = strconv.ParseBool(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "onSale must be true or false"})
			return
		}
	}

	var games []models.Game
	if err := query.Find(&games).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Price is a serialized column, so the discount filter runs after the query
	q := strings.TrimSpace(c.Query("q"))
	if q != "" || onSale {
		filtered := games[:0]
		for _, g := range games {
			if q != "" && !fuzzy.MatchNormalizedFold(q, g.Title) {
				continue
			}
			if onSale && !g.Price.IsDiscounted() {
				continue
			}
			filtered = append(filtered, g)
		}
		games = filtered
	}

	if games == nil {
		games = []models.Game{}
	}
	c.JSON(http.StatusOK, games)
}

// AddGame imports a search result into the library
func (h *GameHandler) AddGame(c *gin.Context) {
	var req models.GameRecord
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ExternalID = strings.TrimSpace(req.ExternalID)
	req.Title = strings.TrimSpace(req.Title)
	if req.ExternalID == "" || req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "externalId and title are required"})
		return
	}

	// The unique index on external_id decides duplicates, so concurrent imports
	// of the same title cannot both succeed
	game := models.NewGameFromRecord(uuid.New().String(), req)
	if err := h.db.Create(&game).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Game already in library"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Info().Str("id", game.ID).Str("external_id", game.ExternalID).Str("title", game.Title).Msg("Game added to library")
	metrics.UpdateLibraryMetrics(h.db)
	c.JSON(http.StatusCreated, game)
}

// UpdateGame changes the personal tracking fields of a library game
func (h *GameHandler) UpdateGame(c *gin.Context) {
	id := c.Param("id")

	var game models.Game
	if err := h.db.First(&game, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var req models.UpdateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Status != nil {
		status, ok := models.ParseGameStatus(*req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of Pending, Playing, Completed, Wishlist"})
			return
		}
		game.Status = status
	}
	if req.UserRating != nil {
		if *req.UserRating < 0 || *req.UserRating > models.MaxUserRating {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userRating must be between 0 and 5"})
			return
		}
		game.UserRating = *req.UserRating
	}
	if req.List != nil {
		list := strings.TrimSpace(*req.List)
		if list == "" {
			list = models.NoList
		}
		game.List = list
	}
	if req.IsFavorite != nil {
		game.IsFavorite = *req.IsFavorite
	}

	if err := h.db.Save(&game).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.UpdateLibraryMetrics(h.db)
	c.JSON(http.StatusOK, game)
}

func (h *GameHandler) DeleteGame(c *gin.Context) {
	id := c.Param("id")

	result := h.db.Delete(&models.Game{}, "id = ?", id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}

	metrics.UpdateLibraryMetrics(h.db)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetStats summarizes the library
func (h *GameHandler) GetStats(c *gin.Context) {
	stats, err := libraryStats(h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func libraryStats(db *gorm.DB) (*models.LibraryStats, error) {
	stats := &models.LibraryStats{ByStatus: make(map[models.GameStatus]int)}
	for _, s := range models.AllGameStatuses() {
		stats.ByStatus[s] = 0
	}

	var byStatus []struct {
		Status models.GameStatus
		Count  int
	}
	if err := db.Model(&models.Game{}).Select("status, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Count
		stats.TotalGames += row.Count
	}

	var totals struct {
		Favorites     int
		RatedGames    int
		FreeGames     int
		AverageRating float64
	}
	err := db.Model(&models.Game{}).Select(
		"COALESCE(SUM(CASE WHEN is_favorite THEN 1 ELSE 0 END), 0) AS favorites, " +
			"COALESCE(SUM(CASE WHEN user_rating > 0 THEN 1 ELSE 0 END), 0) AS rated_games, " +
			"COALESCE(SUM(CASE WHEN is_free THEN 1 ELSE 0 END), 0) AS free_games, " +
			"COALESCE(AVG(CASE WHEN user_rating > 0 THEN user_rating END), 0) AS average_rating",
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	stats.Favorites = totals.Favorites
	stats.RatedGames = totals.RatedGames
	stats.FreeGames = totals.FreeGames
	stats.AverageRating = math.Round(totals.AverageRating*100) / 100
	return stats, nil
}
