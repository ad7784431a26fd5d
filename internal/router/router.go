// Package router assembles the gateway's HTTP routes and middleware
// chain.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/openwishlist/wishcore/internal/handler"
	"github.com/openwishlist/wishcore/pkg/middleware"
	"github.com/openwishlist/wishcore/pkg/ratelimit"
)

// Config holds the configuration for creating a router.
type Config struct {
	Wishlist *handler.WishlistHandler
	Admin    *handler.AdminHandler
	Health   *handler.HealthHandler

	Limiter       *ratelimit.Limiter
	RateLimitOpts []middleware.RateLimitOption

	Logger zerolog.Logger
}

// New creates and configures the HTTP router. Health and metrics stay
// outside the rate limited group so probes and scrapes never consume
// client quota.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.CustomerIDHeader},
		ExposedHeaders:   []string{"X-Request-ID", ratelimit.HeaderLimit, ratelimit.HeaderRemaining, ratelimit.HeaderReset},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Health)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(middleware.RateLimit(cfg.Limiter, cfg.RateLimitOpts...))
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Wishlist != nil {
				r.Route("/wishlists", func(r chi.Router) {
					r.Post("/", cfg.Wishlist.CreateWishlist)
					r.Route("/{wishlistID}", func(r chi.Router) {
						r.Get("/", cfg.Wishlist.GetWishlist)
						r.Put("/", cfg.Wishlist.UpdateWishlist)
						r.Delete("/", cfg.Wishlist.DeleteWishlist)
						r.Post("/items", cfg.Wishlist.AddItem)
						r.Delete("/items/{itemID}", cfg.Wishlist.RemoveItem)
					})
				})

				r.Route("/customers/{customerID}", func(r chi.Router) {
					r.Get("/wishlists", cfg.Wishlist.GetCustomerWishlists)
					r.Get("/wishlists/default", cfg.Wishlist.GetDefaultWishlist)
				})
			}
		})

		if cfg.Admin != nil {
			r.Route("/admin/cache", func(r chi.Router) {
				r.Get("/stats", cfg.Admin.CacheStats)
				r.Post("/clear", cfg.Admin.ClearCache)
				r.Put("/ttl", cfg.Admin.SetTTL)
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, r, middleware.NotFound(""))
	})

	return r
}
