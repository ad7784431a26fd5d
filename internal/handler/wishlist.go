// Package handler implements the gateway's HTTP endpoints. Reads are
// served through the cache and computed from the origin on a miss;
// writes are forwarded to the origin and invalidate the affected cache
// tags on success.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/openwishlist/wishcore/pkg/cache"
	"github.com/openwishlist/wishcore/pkg/middleware"
	"github.com/openwishlist/wishcore/pkg/origin"
)

// maxRequestBody caps forwarded mutation payloads.
const maxRequestBody = 1 << 20

// WishlistHandler serves wishlist reads and writes.
type WishlistHandler struct {
	cache  *cache.Service
	origin *origin.Client
	logger zerolog.Logger
}

// NewWishlistHandler creates a wishlist handler.
func NewWishlistHandler(cacheSvc *cache.Service, originClient *origin.Client, logger zerolog.Logger) *WishlistHandler {
	return &WishlistHandler{
		cache:  cacheSvc,
		origin: originClient,
		logger: logger,
	}
}

// GetWishlist handles GET /api/v1/wishlists/{wishlistID}.
func (h *WishlistHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	wishlistID := chi.URLParam(r, "wishlistID")

	body, err := h.readThrough(r.Context(),
		cache.WishlistKey(wishlistID),
		cache.BucketWishlist,
		cache.WishlistTag(wishlistID),
		"/wishlists/"+wishlistID,
	)
	if err != nil {
		h.writeOriginError(w, r, err)
		return
	}
	writeRawJSON(w, http.StatusOK, body)
}

// GetCustomerWishlists handles GET /api/v1/customers/{customerID}/wishlists.
func (h *WishlistHandler) GetCustomerWishlists(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")

	body, err := h.readThrough(r.Context(),
		cache.CustomerKey(customerID),
		cache.BucketCustomer,
		cache.CustomerTag(customerID),
		"/customers/"+customerID+"/wishlists",
	)
	if err != nil {
		h.writeOriginError(w, r, err)
		return
	}
	writeRawJSON(w, http.StatusOK, body)
}

// GetDefaultWishlist handles GET /api/v1/customers/{customerID}/wishlists/default.
// Default wishlists change rarely, so they live in the longest bucket.
func (h *WishlistHandler) GetDefaultWishlist(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")

	body, err := h.readThrough(r.Context(),
		cache.DefaultWishlistKey(customerID),
		cache.BucketDefaultWishlist,
		cache.CustomerTag(customerID),
		"/customers/"+customerID+"/wishlists/default",
	)
	if err != nil {
		h.writeOriginError(w, r, err)
		return
	}
	writeRawJSON(w, http.StatusOK, body)
}

// CreateWishlist handles POST /api/v1/wishlists.
func (h *WishlistHandler) CreateWishlist(w http.ResponseWriter, r *http.Request) {
	h.forwardWrite(w, r, http.MethodPost, "/wishlists", "")
}

// UpdateWishlist handles PUT /api/v1/wishlists/{wishlistID}.
func (h *WishlistHandler) UpdateWishlist(w http.ResponseWriter, r *http.Request) {
	wishlistID := chi.URLParam(r, "wishlistID")
	h.forwardWrite(w, r, http.MethodPut, "/wishlists/"+wishlistID, wishlistID)
}

// DeleteWishlist handles DELETE /api/v1/wishlists/{wishlistID}.
func (h *WishlistHandler) DeleteWishlist(w http.ResponseWriter, r *http.Request) {
	wishlistID := chi.URLParam(r, "wishlistID")
	h.forwardWrite(w, r, http.MethodDelete, "/wishlists/"+wishlistID, wishlistID)
}

// AddItem handles POST /api/v1/wishlists/{wishlistID}/items.
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	wishlistID := chi.URLParam(r, "wishlistID")
	h.forwardWrite(w, r, http.MethodPost, "/wishlists/"+wishlistID+"/items", wishlistID)
}

// RemoveItem handles DELETE /api/v1/wishlists/{wishlistID}/items/{itemID}.
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	wishlistID := chi.URLParam(r, "wishlistID")
	itemID := chi.URLParam(r, "itemID")
	h.forwardWrite(w, r, http.MethodDelete, "/wishlists/"+wishlistID+"/items/"+itemID, wishlistID)
}

// readThrough serves a read from the cache, computing it from the origin
// on a miss. Fresh entries are promoted into their domain bucket and tag
// so later writes can invalidate them.
func (h *WishlistHandler) readThrough(ctx context.Context, key string, bucket cache.Bucket, tag, endpoint string) ([]byte, error) {
	fetched := false
	body, err := h.cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
		fetched = true
		return h.origin.FetchJSON(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}
	if fetched {
		h.cache.Set(ctx, key, body, cache.WithBucket(bucket), cache.WithTags(tag))
	}
	return body, nil
}

// forwardWrite relays a mutation to the origin and invalidates the
// affected cache entries when it succeeds. wishlistID may be empty for
// creations; the owning customer is taken from the origin response.
func (h *WishlistHandler) forwardWrite(w http.ResponseWriter, r *http.Request, method, endpoint, wishlistID string) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		middleware.WriteError(w, r, middleware.InvalidJSON("could not read request body"))
		return
	}

	body, status, sendErr := h.origin.Send(r.Context(), method, endpoint, payload)
	if sendErr != nil {
		h.writeOriginError(w, r, sendErr)
		return
	}

	h.invalidateAfterWrite(r.Context(), wishlistID, body)

	if len(body) == 0 {
		w.WriteHeader(status)
		return
	}
	writeRawJSON(w, status, body)
}

// invalidateAfterWrite drops the cache entries a successful mutation may
// have stalled. Invalidation failures are logged, not surfaced: the
// write already happened and stale entries age out with their TTL.
func (h *WishlistHandler) invalidateAfterWrite(ctx context.Context, wishlistID string, originBody []byte) {
	if wishlistID != "" {
		if err := h.cache.InvalidateWishlist(ctx, wishlistID); err != nil {
			h.logger.Warn().Err(err).Str("wishlist_id", wishlistID).Msg("post-write invalidation incomplete")
		}
	}

	var ref struct {
		CustomerID string `json:"customer_id"`
	}
	if err := json.Unmarshal(originBody, &ref); err != nil || ref.CustomerID == "" {
		return
	}
	if err := h.cache.InvalidateCustomer(ctx, ref.CustomerID); err != nil {
		h.logger.Warn().Err(err).Str("customer_id", ref.CustomerID).Msg("post-write invalidation incomplete")
	}
}

// writeOriginError maps origin failures onto the gateway's error
// envelope.
func (h *WishlistHandler) writeOriginError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, origin.ErrNotFound) {
		middleware.WriteError(w, r, middleware.NotFound("wishlist not found"))
		return
	}

	var originErr *origin.Error
	if errors.As(err, &originErr) && originErr.ErrorClass == origin.ErrorClassClient {
		middleware.WriteError(w, r, middleware.NewError(
			middleware.ErrValidationFailed,
			"wishlist backend rejected the request",
			originErr.StatusCode,
		))
		return
	}

	h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("origin request failed")
	middleware.WriteError(w, r, middleware.Unavailable("wishlist backend unavailable"))
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
