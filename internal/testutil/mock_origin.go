// Package testutil provides shared test doubles for the wishlist core.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
)

const jsonContentType = "application/json; charset=utf-8"

// MockOriginResponse is a canned response for one origin path.
type MockOriginResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockOrigin stands in for the upstream wishlist backend. The gateway
// computes cache misses against it, so tests assert backend load
// through the request counter: a cache hit must not move it.
type MockOrigin struct {
	server   *httptest.Server
	requests atomic.Int64

	mu     sync.RWMutex
	routes map[string]http.HandlerFunc
}

// NewMockOrigin starts the mock backend. Paths without a configured
// route answer 200 with an empty wishlist document.
func NewMockOrigin() *MockOrigin {
	m := &MockOrigin{routes: make(map[string]http.HandlerFunc)}
	m.server = httptest.NewServer(http.HandlerFunc(m.dispatch))
	return m
}

func (m *MockOrigin) dispatch(w http.ResponseWriter, r *http.Request) {
	m.requests.Add(1)

	m.mu.RLock()
	route := m.routes[r.URL.Path]
	m.mu.RUnlock()

	if route == nil {
		w.Header().Set("Content-Type", jsonContentType)
		fmt.Fprint(w, `{"id": "", "name": "", "items": []}`)
		return
	}
	route(w, r)
}

// URL returns the backend base URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Close shuts the backend down.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// GetRequestCount reports how many requests reached the backend.
func (m *MockOrigin) GetRequestCount() int {
	return int(m.requests.Load())
}

// SetHandler routes a path to a custom handler. Handlers that need to
// distinguish reads from writes switch on the request method.
func (m *MockOrigin) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	m.routes[path] = handler
	m.mu.Unlock()
}

// SetResponse routes a path to a canned response.
func (m *MockOrigin) SetResponse(path string, resp MockOriginResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetWishlistResponse configures the response for a wishlist read.
func (m *MockOrigin) SetWishlistResponse(wishlistID string, resp MockOriginResponse) {
	m.SetResponse("/wishlists/"+wishlistID, resp)
}

// SetCustomerWishlistsResponse configures the response for a customer's
// wishlist collection.
func (m *MockOrigin) SetCustomerWishlistsResponse(customerID string, resp MockOriginResponse) {
	m.SetResponse("/customers/"+customerID+"/wishlists", resp)
}

// NewWishlistResponse builds a 200 OK wishlist payload.
func NewWishlistResponse(wishlistID, name string, itemCount int) MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusOK,
		Body: fmt.Sprintf(`{"id": %q, "name": %q, "item_count": %d}`,
			wishlistID, name, itemCount),
		Headers: map[string]string{"Content-Type": jsonContentType},
	}
}

// NewNotFoundResponse builds a 404 Not Found response.
func NewNotFoundResponse() MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "not found"}`,
		Headers:    map[string]string{"Content-Type": jsonContentType},
	}
}

// NewServerErrorResponse builds a 500 Internal Server Error response.
func NewServerErrorResponse() MockOriginResponse {
	return MockOriginResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "internal server error"}`,
		Headers:    map[string]string{"Content-Type": jsonContentType},
	}
}
