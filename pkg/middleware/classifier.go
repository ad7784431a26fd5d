// Package middleware provides the HTTP glue for rate limiting: endpoint
// classification, client identification, request IDs, rate limit
// enforcement with the standard X-RateLimit headers, request logging and
// panic recovery. Handlers compose with chi:
//
//	r := chi.NewRouter()
//	r.Use(middleware.RequestID)
//	r.Use(middleware.Logging(logger))
//	r.Use(middleware.RateLimit(limiter))
//	r.Use(middleware.Recovery(logger))
package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/openwishlist/wishcore/pkg/ratelimit"
)

// CustomerIDHeader carries the authenticated customer id. It is trusted
// the same way X-Real-IP is: only when set by the auth layer in front of
// this service, which must strip the header from client input.
const CustomerIDHeader = "X-Customer-Id"

// Classifier maps a request to its rate limit endpoint class.
type Classifier func(*http.Request) ratelimit.Class

// DefaultClassifier classifies by path segment first, then by method.
// Auth endpoints get the strictest quota, bulk and analytics their own,
// everything else splits into read (safe methods) and write.
func DefaultClassifier(r *http.Request) ratelimit.Class {
	switch {
	case hasSegment(r.URL.Path, "auth", "login", "logout", "token", "register"):
		return ratelimit.ClassAuth
	case hasSegment(r.URL.Path, "analytics"):
		return ratelimit.ClassAnalytics
	case hasSegment(r.URL.Path, "bulk", "batch"):
		return ratelimit.ClassBulk
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ratelimit.ClassRead
	default:
		return ratelimit.ClassWrite
	}
}

// hasSegment reports whether any path segment equals one of the names.
// Segment equality avoids prefix traps ("/authors" is not an auth path).
func hasSegment(path string, names ...string) bool {
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		segment = strings.ToLower(segment)
		for _, name := range names {
			if segment == name {
				return true
			}
		}
	}
	return false
}

// DescribeRequest builds the limiter's view of the caller.
func DescribeRequest(r *http.Request) ratelimit.Request {
	return ratelimit.Request{
		ClientAddr: clientAddr(r),
		UserAgent:  r.UserAgent(),
		Path:       r.URL.Path,
		Method:     r.Method,
		CustomerID: r.Header.Get(CustomerIDHeader),
	}
}

// clientAddr extracts the client address, checking common proxy headers.
func clientAddr(r *http.Request) string {
	// X-Forwarded-For can contain multiple addresses; take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	// X-Real-IP is set by nginx and similar proxies
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr, stripping the port
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
