package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/codyseavey/game-tracker/internal/api/handlers"
	"github.com/codyseavey/game-tracker/internal/metrics"
)

// RouterDeps carries everything the router needs to build its handlers
type RouterDeps struct {
	DB                 *gorm.DB
	Searcher           handlers.GameSearcher
	DetailStatus       handlers.DetailStatusProvider
	FallbackEnabled    bool
	CORSAllowedOrigins []string
	FrontendDistPath   string
}

func SetupRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), metricsMiddleware(), recoveryMiddleware())

	serveFrontend := deps.FrontendDistPath != "" && dirExists(deps.FrontendDistPath)

	// CORS configuration - allow configured origins or the dev server defaults
	config := cors.DefaultConfig()
	if len(deps.CORSAllowedOrigins) > 0 {
		config.AllowOrigins = deps.CORSAllowedOrigins
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	// Initialize handlers
	searchHandler := handlers.NewSearchHandler(deps.Searcher)
	statusHandler := handlers.NewStatusHandler(deps.DetailStatus, deps.FallbackEnabled)
	gameHandler := handlers.NewGameHandler(deps.DB)
	listHandler := handlers.NewListHandler(deps.DB)

	// API routes
	api := router.Group("/api")
	{
		api.GET("/search", searchHandler.SearchGames)
		api.GET("/search/status", statusHandler.GetSearchStatus)
		api.POST("/search/cache/purge", statusHandler.PurgeDetailCache)
		// Legacy path kept for older web clients
		api.GET("/steam/search", searchHandler.SearchGames)

		games := api.Group("/games")
		{
			games.GET("", gameHandler.GetGames)
			games.POST("", gameHandler.AddGame)
			games.GET("/stats", gameHandler.GetStats)
			games.PUT("/:id", gameHandler.UpdateGame)
			games.DELETE("/:id", gameHandler.DeleteGame)
		}

		lists := api.Group("/lists")
		{
			lists.GET("", listHandler.GetLists)
			lists.POST("", listHandler.CreateList)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Serve frontend static files
	if serveFrontend {
		indexPath := filepath.Join(deps.FrontendDistPath, "index.html")

		router.Static("/assets", filepath.Join(deps.FrontendDistPath, "assets"))
		router.StaticFile("/favicon.ico", filepath.Join(deps.FrontendDistPath, "favicon.ico"))

		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(indexPath)
		})
	} else {
		router.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		})
	}

	return router
}

// recoveryMiddleware turns a panic into a 500 with the {error, details} envelope
func recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Msg("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": fmt.Sprint(recovered),
		})
	})
}

// metricsMiddleware records request counts and latency by route template
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
