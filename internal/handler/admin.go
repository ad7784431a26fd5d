package handler

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/openwishlist/wishcore/pkg/cache"
	"github.com/openwishlist/wishcore/pkg/middleware"
)

// AdminHandler exposes cache administration endpoints.
type AdminHandler struct {
	cache     *cache.Service
	logger    zerolog.Logger
	startTime time.Time
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(cacheSvc *cache.Service, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		cache:     cacheSvc,
		logger:    logger,
		startTime: time.Now(),
	}
}

// CacheStats handles GET /admin/cache/stats.
func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]any)

	stats["cache"] = h.cache.Stats()
	stats["operations"] = h.cache.Metrics()

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["server_time"] = time.Now().Format(time.RFC3339)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]any{
		"heap_alloc_mb": float64(memStats.HeapAlloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	writeJSON(w, http.StatusOK, stats)
}

// ClearCache handles POST /admin/cache/clear. Clearing also resets the
// hit/miss statistics.
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.ClearAll(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("cache clear failed")
		middleware.WriteError(w, r, middleware.Unavailable("cache backend unavailable"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "cache cleared",
	})
}

// ttlRequest carries the new bucket lifetimes in seconds.
type ttlRequest struct {
	DefaultSeconds         int64 `json:"default_seconds"`
	CustomerSeconds        int64 `json:"customer_seconds"`
	WishlistSeconds        int64 `json:"wishlist_seconds"`
	DefaultWishlistSeconds int64 `json:"default_wishlist_seconds"`
}

// SetTTL handles PUT /admin/cache/ttl. The new lifetimes apply to
// entries written after the change; existing entries keep theirs.
func (h *AdminHandler) SetTTL(w http.ResponseWriter, r *http.Request) {
	var req ttlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, r, middleware.InvalidJSON(""))
		return
	}

	policy := cache.TTLPolicy{
		Default:         time.Duration(req.DefaultSeconds) * time.Second,
		Customer:        time.Duration(req.CustomerSeconds) * time.Second,
		Wishlist:        time.Duration(req.WishlistSeconds) * time.Second,
		DefaultWishlist: time.Duration(req.DefaultWishlistSeconds) * time.Second,
	}
	if err := h.cache.SetTTL(policy); err != nil {
		middleware.WriteError(w, r, middleware.NewError(
			middleware.ErrValidationFailed,
			err.Error(),
			http.StatusBadRequest,
		))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ttl updated",
		"ttl":    policy,
	})
}
