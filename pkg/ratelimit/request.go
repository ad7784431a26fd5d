package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
)

// Request describes the client behind one incoming request. The zero
// value means the caller has no request context (background jobs,
// internal maintenance); such callers are never rate limited.
type Request struct {
	// ClientAddr is the client IP, without port.
	ClientAddr string

	// UserAgent is the client's User-Agent header.
	UserAgent string

	// Path and Method describe the request for logging only; they do
	// not contribute to the fingerprint.
	Path   string
	Method string

	// CustomerID is the authenticated customer, when known. It keeps
	// the fingerprint stable across address changes for logged-in
	// clients.
	CustomerID string
}

// Attributable reports whether the request carries enough identity to
// rate limit. User-Agent alone identifies nobody.
func (r Request) Attributable() bool {
	return r.ClientAddr != "" || r.CustomerID != ""
}

// Fingerprint derives the stable one-way client identity for a class.
// The raw address and user agent never reach the window store or the
// logs; only this hash does.
func Fingerprint(class Class, req Request) string {
	h := sha256.New()
	h.Write([]byte(req.ClientAddr))
	h.Write([]byte{0})
	h.Write([]byte(req.UserAgent))
	h.Write([]byte{0})
	h.Write([]byte(class))
	if req.CustomerID != "" {
		h.Write([]byte{0})
		h.Write([]byte(req.CustomerID))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// shortFingerprint truncates a fingerprint for log fields.
func shortFingerprint(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}
