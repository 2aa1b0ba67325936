package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"smart-bin-backend/config"
	"smart-bin-backend/internal/mw"
)

// IngestPath is where devices post readings and poll for commands.
const IngestPath = "/ingest"

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()
	r.Use(mw.CORS(cfg.AllowedOrigins, IngestPath))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Any(IngestPath, rateLimiter, h.Ingest)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/bins", caching, h.ListBins)
		api.GET("/bins/:device_id", caching, h.GetBin)
		api.GET("/bins/:device_id/history", caching, h.GetBinHistory)
		api.PUT("/bins/:device_id/command", h.PutCommand)

		// GET /api/fleet?days=7
		api.GET("/fleet", caching, h.GetFleet)

		if h.db != nil {
			api.GET("/subscriptions", h.GetSubscription)
			api.PUT("/subscriptions", h.PutSubscription)
			api.DELETE("/subscriptions", h.DeleteSubscription)
		}
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
