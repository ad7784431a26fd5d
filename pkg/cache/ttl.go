package cache

import (
	"fmt"
	"time"
)

// Bucket names a TTL class. Every cached entry belongs to exactly one
// bucket; the bucket decides how long the entry lives.
type Bucket string

const (
	// BucketDefault covers entries without a more specific lifetime.
	BucketDefault Bucket = "default"

	// BucketCustomer covers customer profile entries.
	BucketCustomer Bucket = "customer"

	// BucketWishlist covers individual wishlist entries.
	BucketWishlist Bucket = "wishlist"

	// BucketDefaultWishlist covers a customer's default wishlist, which
	// changes rarely and tolerates a longer lifetime.
	BucketDefaultWishlist Bucket = "default_wishlist"
)

// TTLPolicy holds the lifetime for each bucket.
type TTLPolicy struct {
	Default         time.Duration `json:"default"`
	Customer        time.Duration `json:"customer"`
	Wishlist        time.Duration `json:"wishlist"`
	DefaultWishlist time.Duration `json:"default_wishlist"`
}

// DefaultTTLPolicy returns the standard bucket lifetimes.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Default:         time.Hour,
		Customer:        30 * time.Minute,
		Wishlist:        time.Hour,
		DefaultWishlist: 2 * time.Hour,
	}
}

// For returns the lifetime for the given bucket.
// Unknown buckets fall back to the default lifetime.
func (p TTLPolicy) For(b Bucket) time.Duration {
	switch b {
	case BucketCustomer:
		return p.Customer
	case BucketWishlist:
		return p.Wishlist
	case BucketDefaultWishlist:
		return p.DefaultWishlist
	default:
		return p.Default
	}
}

// Validate reports an error if any bucket lifetime is non-positive.
func (p TTLPolicy) Validate() error {
	buckets := []struct {
		name Bucket
		ttl  time.Duration
	}{
		{BucketDefault, p.Default},
		{BucketCustomer, p.Customer},
		{BucketWishlist, p.Wishlist},
		{BucketDefaultWishlist, p.DefaultWishlist},
	}
	for _, b := range buckets {
		if b.ttl <= 0 {
			return fmt.Errorf("ttl for bucket %q must be positive, got %v", b.name, b.ttl)
		}
	}
	return nil
}
