package cache

// Cache keys and invalidation tags follow fixed naming conventions so
// that every layer of the application addresses the same entries.
//
// Keys:
//
//	wishlist_{wishlistID}          a single wishlist
//	customer_{customerID}          customer-scoped data (profile, listings)
//	default_wishlist_{customerID}  the customer's default wishlist
//
// Tags:
//
//	wishlist_{wishlistID}  everything derived from one wishlist
//	customer_{customerID}  everything owned by one customer
//
// Derived entries (listings, aggregations) should be stored under their
// own keys but tagged with the wishlist or customer tag they depend on,
// so a single invalidation sweeps them along.

// WishlistKey returns the cache key for a wishlist.
func WishlistKey(wishlistID string) string {
	return "wishlist_" + wishlistID
}

// CustomerKey returns the cache key for customer-scoped data.
func CustomerKey(customerID string) string {
	return "customer_" + customerID
}

// DefaultWishlistKey returns the cache key for a customer's default
// wishlist.
func DefaultWishlistKey(customerID string) string {
	return "default_wishlist_" + customerID
}

// WishlistTag returns the invalidation tag covering a wishlist and all
// entries derived from it.
func WishlistTag(wishlistID string) string {
	return "wishlist_" + wishlistID
}

// CustomerTag returns the invalidation tag covering a customer and all
// entries derived from them.
func CustomerTag(customerID string) string {
	return "customer_" + customerID
}
