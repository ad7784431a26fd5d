// Package ratelimit implements per-client sliding-window rate limiting
// for wishlist endpoints. Requests are grouped into endpoint classes,
// each with its own quota, and attributed to clients via a one-way
// fingerprint. Decisions are made atomically against a window store so
// that concurrent requests cannot overshoot a quota.
package ratelimit

import (
	"fmt"
	"time"
)

// Class groups endpoints that share one rate limit quota.
type Class string

const (
	// ClassRead covers list and detail reads.
	ClassRead Class = "read"

	// ClassWrite covers mutations of wishlists and items.
	ClassWrite Class = "write"

	// ClassBulk covers bulk imports and exports.
	ClassBulk Class = "bulk"

	// ClassAnalytics covers reporting and analytics reads.
	ClassAnalytics Class = "analytics"

	// ClassAuth covers authentication attempts, which get the tightest
	// window to slow down credential stuffing.
	ClassAuth Class = "auth"
)

// Valid reports whether c is a known endpoint class.
func (c Class) Valid() bool {
	switch c {
	case ClassRead, ClassWrite, ClassBulk, ClassAnalytics, ClassAuth:
		return true
	}
	return false
}

// Policy is the quota for one endpoint class: at most Limit requests
// within any trailing Window.
type Policy struct {
	Limit  int           `json:"limit"`
	Window time.Duration `json:"window"`
}

// DefaultPolicies returns the standard quota table.
func DefaultPolicies() map[Class]Policy {
	return map[Class]Policy{
		ClassRead:      {Limit: 200, Window: time.Hour},
		ClassWrite:     {Limit: 50, Window: time.Hour},
		ClassBulk:      {Limit: 10, Window: time.Hour},
		ClassAnalytics: {Limit: 100, Window: time.Hour},
		ClassAuth:      {Limit: 20, Window: 15 * time.Minute},
	}
}

func validatePolicies(policies map[Class]Policy) error {
	if _, ok := policies[ClassRead]; !ok {
		return fmt.Errorf("policy table must define the %q class, it backs unknown classes", ClassRead)
	}
	for class, p := range policies {
		if p.Limit <= 0 {
			return fmt.Errorf("limit for class %q must be positive, got %d", class, p.Limit)
		}
		if p.Window <= 0 {
			return fmt.Errorf("window for class %q must be positive, got %v", class, p.Window)
		}
	}
	return nil
}
