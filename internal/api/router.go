package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"palay-drying-backend/config"
	"palay-drying-backend/internal/identity"
	"palay-drying-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	limit := rate.Limit(cfg.RateLimitPerSec)
	if limit <= 0 {
		limit = rate.Limit(10)
	}
	rateLimiter := mw.RateLimiter(limit, 5)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/login", h.Login)
		api.POST("/staff/login", h.StaffLogin)
		api.POST("/logout", h.RequireSession(), h.Logout)

		farmer := h.RequireRole(identity.RoleFarmer)
		api.POST("/readings", h.RequireSession(), farmer, h.TakeReading)
		api.POST("/records", h.RequireSession(), farmer, h.CreateRecord)
		api.GET("/records", h.RequireSession(), farmer, caching, h.ListRecords)

		api.POST("/sync", h.RequireSession(), farmer, h.RunSync)

		api.PUT("/subscriptions", h.RequireSession(), farmer, h.PutSubscription)

		api.GET("/due", h.RequireSession(), h.RequireRole(identity.RoleStaff), h.ListDueRecords)
	}

	return r
}
