package config

import (
	"testing"
	"time"

	"github.com/openwishlist/wishcore/pkg/ratelimit"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Errorf("Address = %q, want 0.0.0.0:8080", cfg.Server.Address())
	}
	if !cfg.Store.UseRedis() {
		t.Error("redis should be the default backend")
	}
	if cfg.Store.RedisAddress() != "localhost:6379" {
		t.Errorf("RedisAddress = %q, want localhost:6379", cfg.Store.RedisAddress())
	}
	if cfg.Store.Namespace != "wishlist" {
		t.Errorf("Namespace = %q, want wishlist", cfg.Store.Namespace)
	}
	if cfg.RateLimit.GlobalEnabled() {
		t.Error("global backstop should be disabled by default")
	}
	if !cfg.App.IsDevelopment() {
		t.Error("development should be the default environment")
	}
}

func TestLoad_TTLPolicyDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	policy := cfg.Cache.TTLPolicy()
	if policy.Default != time.Hour {
		t.Errorf("Default = %v, want 1h", policy.Default)
	}
	if policy.Customer != 30*time.Minute {
		t.Errorf("Customer = %v, want 30m", policy.Customer)
	}
	if policy.Wishlist != time.Hour {
		t.Errorf("Wishlist = %v, want 1h", policy.Wishlist)
	}
	if policy.DefaultWishlist != 2*time.Hour {
		t.Errorf("DefaultWishlist = %v, want 2h", policy.DefaultWishlist)
	}
}

func TestLoad_PolicyDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	policies := cfg.RateLimit.Policies()

	tests := []struct {
		class  ratelimit.Class
		limit  int
		window time.Duration
	}{
		{ratelimit.ClassRead, 200, time.Hour},
		{ratelimit.ClassWrite, 50, time.Hour},
		{ratelimit.ClassBulk, 10, time.Hour},
		{ratelimit.ClassAnalytics, 100, time.Hour},
		{ratelimit.ClassAuth, 20, 15 * time.Minute},
	}

	for _, tt := range tests {
		p, ok := policies[tt.class]
		if !ok {
			t.Fatalf("class %q missing from policies", tt.class)
		}
		if p.Limit != tt.limit || p.Window != tt.window {
			t.Errorf("%s = %d/%v, want %d/%v", tt.class, p.Limit, p.Window, tt.limit, tt.window)
		}
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("CACHE_CUSTOMER_TTL", "5m")
	t.Setenv("RATELIMIT_WRITE_LIMIT", "5")
	t.Setenv("RATELIMIT_GLOBAL_PER_SECOND", "100")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Store.UseRedis() {
		t.Error("backend should be memory")
	}
	if cfg.Cache.TTLPolicy().Customer != 5*time.Minute {
		t.Errorf("Customer TTL = %v, want 5m", cfg.Cache.TTLPolicy().Customer)
	}
	if got := cfg.RateLimit.Policies()[ratelimit.ClassWrite].Limit; got != 5 {
		t.Errorf("write limit = %d, want 5", got)
	}
	if !cfg.RateLimit.GlobalEnabled() {
		t.Error("global backstop should be enabled")
	}
	logCfg := cfg.Log.Logging(cfg.App.Name)
	if logCfg.Level != "debug" {
		t.Errorf("log level = %q, want debug", logCfg.Level)
	}
	if logCfg.Service != "wishcore-gateway" {
		t.Errorf("service = %q, want wishcore-gateway", logCfg.Service)
	}
}
