// The wishcore-gateway command runs the caching gateway in front of a
// wishlist backend. It serves reads through the cache, forwards writes
// with tag invalidation, rate limits per client fingerprint, and
// exposes cache administration plus Prometheus metrics.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openwishlist/wishcore/internal/config"
	"github.com/openwishlist/wishcore/internal/handler"
	"github.com/openwishlist/wishcore/internal/router"
	"github.com/openwishlist/wishcore/pkg/cache"
	"github.com/openwishlist/wishcore/pkg/kv"
	"github.com/openwishlist/wishcore/pkg/logging"
	"github.com/openwishlist/wishcore/pkg/middleware"
	"github.com/openwishlist/wishcore/pkg/origin"
	"github.com/openwishlist/wishcore/pkg/ratelimit"
)

func main() {
	cfg := config.MustLoad()
	logging.Setup(cfg.Log.Logging(cfg.App.Name))
	logger := logging.NewLogger("gateway")

	logger.Info().
		Str("app", cfg.App.Name).
		Str("environment", cfg.App.Environment).
		Str("backend", cfg.Store.Backend).
		Msg("starting")

	if cfg.Origin.BaseURL == "" {
		logger.Fatal().Msg("ORIGIN_BASE_URL is required")
	}

	// Storage backend shared by the cache and the rate limiter.
	var store kv.Store
	var windows ratelimit.WindowStore
	if cfg.Store.UseRedis() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddress(),
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Store.RedisAddress()).Msg("redis unreachable")
		}
		logger.Info().Str("addr", cfg.Store.RedisAddress()).Msg("connected to redis")

		store = kv.NewRedisStore(redisClient, kv.WithNamespace(cfg.Store.Namespace))
		windows = ratelimit.NewRedisWindowStore(redisClient, ratelimit.WithWindowNamespace(cfg.Store.Namespace))
	} else {
		memStore, err := kv.NewMemoryStore()
		if err != nil {
			logger.Fatal().Err(err).Msg("memory store init failed")
		}
		store = memStore
		windows = ratelimit.NewMemoryWindowStore()
		logger.Warn().Msg("using process-local memory backend, entries and quotas are not shared")
	}

	cacheSvc := cache.New(store,
		cache.WithLogger(logging.NewLogger("cache")),
		cache.WithTTLPolicy(cfg.Cache.TTLPolicy()),
	)

	limiter, err := ratelimit.New(windows,
		ratelimit.WithPolicies(cfg.RateLimit.Policies()),
		ratelimit.WithLogger(logging.NewLogger("ratelimit")),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid rate limit policies")
	}

	originClient, err := origin.New(origin.Config{
		BaseURL:   cfg.Origin.BaseURL,
		Timeout:   cfg.Origin.Timeout,
		UserAgent: cfg.App.Name + "/1.0",
		Retry:     origin.DefaultRetryConfig(),
	}, logging.NewLogger("origin"))
	if err != nil {
		logger.Fatal().Err(err).Msg("origin client init failed")
	}
	defer originClient.Close()

	rateLimitOpts := []middleware.RateLimitOption{
		middleware.WithRequestLogger(logging.NewLogger("ratelimit")),
	}
	if cfg.RateLimit.GlobalEnabled() {
		rateLimitOpts = append(rateLimitOpts,
			middleware.WithGlobalLimit(cfg.RateLimit.GlobalPerSecond, cfg.RateLimit.GlobalBurst))
	}

	r := router.New(router.Config{
		Wishlist:      handler.NewWishlistHandler(cacheSvc, originClient, logging.NewLogger("handler")),
		Admin:         handler.NewAdminHandler(cacheSvc, logging.NewLogger("handler")),
		Health:        handler.NewHealthHandler(cfg.Store.Backend),
		Limiter:       limiter,
		RateLimitOpts: rateLimitOpts,
		Logger:        logging.NewLogger("http"),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Address()).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown incomplete")
	}

	logger.Info().Msg("stopped")
}
